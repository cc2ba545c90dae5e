package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
)

// newIndexCmd creates the 'index' subcommand.
func newIndexCmd() *cobra.Command {
	var (
		snapshotName string
		reset        bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk, embed and store a snapshot",
		Long: `Loads a snapshot (the newest one unless --snapshot is given), builds the
link database and document chunks, and stores the chunks in the vector store in
paced batches. Failed batches are skipped and reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, app.Options{Models: true}, nil, func(ctx context.Context, a *app.App) error {
				report, err := a.Pipeline().Index(ctx, pipelineIndexOptions(snapshotName, reset))
				if err != nil {
					return fmt.Errorf("run index: %w", err)
				}
				a.Logger().Info("index finished",
					zap.String("snapshot", report.Snapshot),
					zap.Int("attempted", report.Result.Attempted),
					zap.Int("stored", report.Result.Stored),
					zap.Int("failed_batches", report.Result.FailedBatches),
				)
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&snapshotName, "snapshot", "", "snapshot name (default: newest)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete every stored vector before indexing")
	return cmd
}

func pipelineIndexOptions(name string, reset bool) pipeline.IndexOptions {
	return pipeline.IndexOptions{Snapshot: name, Reset: reset}
}
