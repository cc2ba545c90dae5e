package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/snapshot"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chat, search and crawl/index jobs over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mutate := func(cfg *config.Config) {
				if port > 0 {
					cfg.Server.Port = port
				}
			}
			return withApp(cmd, app.Options{Models: true, Crawl: true}, mutate, func(ctx context.Context, a *app.App) error {
				if err := prepareServing(ctx, a); err != nil {
					return err
				}
				return a.Serve(ctx)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

// prepareServing loads the link database from the newest snapshot. An
// in-memory vector store starts empty, so it is filled from the same snapshot.
func prepareServing(ctx context.Context, a *app.App) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	if rt.cfg.VectorStore.Backend == config.VectorStoreMemory {
		report, err := a.Pipeline().Index(ctx, pipelineIndexOptions("", false))
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
			a.Logger().Warn("no snapshot to index; answers will be empty until one is indexed")
			return nil
		case err != nil:
			return fmt.Errorf("index newest snapshot: %w", err)
		}
		a.Logger().Info("memory vector store filled", zap.String("snapshot", report.Snapshot), zap.Int("stored", report.Result.Stored))
		return nil
	}
	if _, err := a.Pipeline().LoadLinks(ctx, ""); err != nil {
		return fmt.Errorf("load link database: %w", err)
	}
	return nil
}
