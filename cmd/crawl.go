package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
)

type crawlOptions struct {
	maxPages int
	maxDepth int
	seeds    []string
	static   bool
	noPDFs   bool
	index    bool
}

// newCrawlCmd creates the 'crawl' subcommand. A crawl always ends with a saved
// snapshot; --index additionally runs the index phase over it.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the site and save a snapshot",
		Long: `Walks the site from the seed URLs one page at a time under the configured
page and depth limits, downloads up to pdf.max_documents linked PDFs and saves
a timestamped snapshot to the configured storage backend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "override crawler.max_pages")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", -1, "override crawler.max_depth")
	cmd.Flags().StringSliceVar(&opts.seeds, "seed", nil, "seed URL (repeatable); defaults to site.base_url")
	cmd.Flags().BoolVar(&opts.static, "static", false, "use the static renderer instead of headless Chrome")
	cmd.Flags().BoolVar(&opts.noPDFs, "no-pdfs", false, "skip PDF ingestion")
	cmd.Flags().BoolVar(&opts.index, "index", false, "index the snapshot after saving it")
	return cmd
}

func (o *crawlOptions) apply(cfg *config.Config) {
	if o.maxPages > 0 {
		cfg.Crawler.MaxPages = o.maxPages
	}
	if o.maxDepth >= 0 {
		cfg.Crawler.MaxDepth = o.maxDepth
	}
	if len(o.seeds) > 0 {
		cfg.Crawler.SeedURLs = o.seeds
	}
	if o.static {
		cfg.Crawler.Renderer = config.RendererStatic
	}
	if o.noPDFs {
		cfg.Features.IngestPDFs = false
	}
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	appOpts := app.Options{Crawl: true, Models: opts.index}
	return withApp(cmd, appOpts, opts.apply, func(ctx context.Context, a *app.App) error {
		report, err := a.Pipeline().Crawl(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				a.Logger().Warn("crawl canceled")
			}
			return fmt.Errorf("run crawl: %w", err)
		}
		a.Logger().Info("crawl finished",
			zap.String("snapshot", report.Snapshot),
			zap.Int("pages", report.Statistics.TotalPages),
			zap.Int("pdfs", report.Statistics.TotalPDFs),
			zap.Int("failed_pages", report.Statistics.FailedPages),
			zap.Duration("duration", report.Duration),
		)
		if opts.index {
			indexReport, err := a.Pipeline().Index(ctx, pipelineIndexOptions(report.Snapshot, false))
			if err != nil {
				return fmt.Errorf("index snapshot: %w", err)
			}
			return printJSON(cmd, map[string]any{"crawl": report, "index": indexReport})
		}
		return printJSON(cmd, report)
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
