package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/html"

	"github.com/strixweb/strix/internal/browser/network"
	"github.com/strixweb/strix/internal/config"
	"github.com/strixweb/strix/internal/observability"
)

func newFetchCmd(v *viper.Viper) *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch pages like a browser and print the parsed documents",
		Long: `Fetch navigates to each URL with redirect following, cookie handling and
content decoding, then prints each document re-serialized from its parse
tree. The cookie jar is shared across the given URLs, which are fetched in
order so cookie state stays deterministic.`,
		Example: `  strix fetch https://strixweb.dev/
  strix fetch --show-cookies https://strixweb.dev/login https://strixweb.dev/account
  strix fetch -o page.html https://strixweb.dev/docs`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if err := v.BindPFlag("fetch.timeout", flags.Lookup("timeout")); err != nil {
				return err
			}
			if err := v.BindPFlag("fetch.max_redirects", flags.Lookup("max-redirects")); err != nil {
				return err
			}
			return v.BindPFlag("fetch.ignore_tls_errors", flags.Lookup("insecure"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			outputPath, _ := cmd.Flags().GetString("output")
			showCookies, _ := cmd.Flags().GetBool("show-cookies")
			if outputPath != "" && len(args) > 1 {
				return errors.New("--output expects a single url")
			}

			log := observability.GetLogger().Named("fetch")
			client := network.NewClient(cfg.Fetch, nil, log)
			defer client.CloseIdleConnections()

			pages := make([]*network.Page, 0, len(args))
			for _, raw := range args {
				page, err := client.FetchDocument(cmd.Context(), raw)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", raw, err)
				}
				pages = append(pages, page)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			for _, page := range pages {
				if err := html.Render(w, page.Document.Root()); err != nil {
					return fmt.Errorf("render %s: %w", page.URL, err)
				}
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}

			if showCookies {
				errW := cmd.ErrOrStderr()
				all := client.Jar().All()
				fmt.Fprintf(errW, "jar: %d cookie(s)\n", len(all))
				for _, c := range all {
					fmt.Fprintln(errW, c.String())
				}
			}
			return nil
		},
	}

	fetchCmd.Flags().Duration("timeout", 30*time.Second, "overall timeout per page")
	fetchCmd.Flags().Int("max-redirects", 10, "redirect ceiling per navigation")
	fetchCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	fetchCmd.Flags().StringP("output", "o", "", "write the document to a file instead of stdout")
	fetchCmd.Flags().Bool("show-cookies", false, "print the jar contents to stderr after fetching")
	return fetchCmd
}
