package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/strixweb/strix/internal/browser/dom"
	"github.com/strixweb/strix/internal/browser/network"
	"github.com/strixweb/strix/internal/browser/selector"
	"github.com/strixweb/strix/internal/config"
	"github.com/strixweb/strix/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// matchRecord is one selector hit in a queried document.
type matchRecord struct {
	Source string `json:"source"`
	Tag    string `json:"tag"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`
	HTML   string `json:"html"`
}

// countRecord is the per-source tally emitted by --count.
type countRecord struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

func newQueryCmd(v *viper.Viper) *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query <selector> [source...]",
		Short: "Match a CSS selector group against documents",
		Long: `Query parses each source document and prints the elements matched by the
selector group. A source is a file path, an http(s) URL, or "-" for stdin;
with no source given, stdin is read.`,
		Example: `  strix query 'nav a.active' page.html
  cat page.html | strix query '#main > p:nth-child(2n+1)'
  strix query 'form :checked' https://strixweb.dev/signup --format json`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlag("query.format", cmd.Flags().Lookup("format"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			selectors, err := selector.ParseList(args[0])
			if err != nil {
				return fmt.Errorf("parse selector %q: %w", args[0], err)
			}
			sources := args[1:]
			if len(sources) == 0 {
				sources = []string{"-"}
			}
			firstOnly, _ := cmd.Flags().GetBool("first")
			countOnly, _ := cmd.Flags().GetBool("count")

			log := observability.GetLogger().Named("query")
			client := network.NewClient(cfg.Fetch, nil, log)
			defer client.CloseIdleConnections()

			perSource := make([][]matchRecord, len(sources))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(cfg.Fetch.Concurrency)
			for i, src := range sources {
				g.Go(func() error {
					doc, err := loadDocument(ctx, cmd.InOrStdin(), client, src)
					if err != nil {
						return fmt.Errorf("%s: %w", src, err)
					}
					perSource[i] = collectMatches(doc, src, selectors, firstOnly)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if countOnly {
				return renderCounts(out, cfg.Query.Format, sources, perSource)
			}
			records := make([]matchRecord, 0)
			for _, rs := range perSource {
				records = append(records, rs...)
			}
			return renderMatches(out, cfg.Query.Format, records)
		},
	}

	queryCmd.Flags().StringP("format", "f", "", "output format: text, json or xml")
	queryCmd.Flags().Bool("first", false, "print only the first match per source")
	queryCmd.Flags().Bool("count", false, "print match counts instead of matches")
	return queryCmd
}

// loadDocument resolves a query source argument into a parsed document.
func loadDocument(ctx context.Context, stdin io.Reader, client *network.Client, src string) (*dom.Document, error) {
	switch {
	case src == "-":
		return dom.Parse(stdin, nil)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		page, err := client.FetchDocument(ctx, src)
		if err != nil {
			return nil, err
		}
		return page.Document, nil
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		base := &url.URL{Scheme: "file", Path: src}
		if abs, err := filepath.Abs(src); err == nil {
			base.Path = abs
		}
		return dom.Parse(f, base)
	}
}

func collectMatches(doc *dom.Document, src string, selectors []selector.Selector, firstOnly bool) []matchRecord {
	var nodes []*html.Node
	if firstOnly {
		if n := selector.FindFirst(doc, doc.Root(), selectors); n != nil {
			nodes = []*html.Node{n}
		}
	} else {
		nodes = selector.Collect(doc, doc.Root(), selectors)
	}

	records := make([]matchRecord, 0, len(nodes))
	for _, n := range nodes {
		id, _ := dom.GetAttribute(n, "id")
		records = append(records, matchRecord{
			Source: src,
			Tag:    dom.TagName(n),
			ID:     id,
			Text:   collapseSpace(dom.TextContent(n)),
			HTML:   renderNode(n),
		})
	}
	return records
}

func renderMatches(w io.Writer, format string, records []matchRecord) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "xml":
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root := doc.CreateElement("matches")
		for _, r := range records {
			el := root.CreateElement("match")
			el.CreateAttr("source", r.Source)
			el.CreateAttr("tag", r.Tag)
			if r.ID != "" {
				el.CreateAttr("id", r.ID)
			}
			el.CreateElement("html").SetText(r.HTML)
			if r.Text != "" {
				el.CreateElement("text").SetText(r.Text)
			}
		}
		doc.Indent(2)
		_, err := doc.WriteTo(w)
		return err
	default:
		for _, r := range records {
			if _, err := fmt.Fprintln(w, r.HTML); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderCounts(w io.Writer, format string, sources []string, perSource [][]matchRecord) error {
	counts := make([]countRecord, len(sources))
	for i, src := range sources {
		counts[i] = countRecord{Source: src, Count: len(perSource[i])}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	case "xml":
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root := doc.CreateElement("counts")
		for _, c := range counts {
			el := root.CreateElement("count")
			el.CreateAttr("source", c.Source)
			el.CreateAttr("matches", strconv.Itoa(c.Count))
		}
		doc.Indent(2)
		_, err := doc.WriteTo(w)
		return err
	default:
		for _, c := range counts {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", c.Source, c.Count); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// collapseSpace folds runs of whitespace into single spaces and trims the
// ends, which keeps one-line output readable for text extracted from markup.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
