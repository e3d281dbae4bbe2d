package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/strixweb/strix/internal/config"
	"github.com/strixweb/strix/internal/observability"
)

// NewRootCommand assembles a fresh strix command tree. Every call returns an
// independent instance with its own viper state, so nothing leaks between
// runs or between tests.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "strix",
		Short: "Strix fetches web pages and queries them with CSS selectors",
		Long: `Strix is a headless page toolbox. It fetches pages with browser-grade
redirect, cookie and content-decoding behavior, parses them into documents,
and matches CSS selector groups against the result.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Bring up a default logger so the failure is still recorded.
				observability.InitializeLogger(config.NewDefaultConfig().Logging)
				return err
			}
			observability.InitializeLogger(cfg.Logging)
			observability.GetLogger().Debug("starting strix", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default ./strix.yaml, then ~/.strix/strix.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newQueryCmd(v))
	root.AddCommand(newFetchCmd(v))
	return root
}

// Execute runs the strix command tree under ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// initializeConfig layers defaults, an optional config file, and
// STRIX_-prefixed environment variables into v, in ascending precedence.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".strix"))
		}
		v.SetConfigName("strix")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STRIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
