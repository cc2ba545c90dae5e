package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
)

// newSnapshotsCmd creates the 'snapshots' subcommand which lists stored snapshots.
func newSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List stored crawl snapshots, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, app.Options{}, nil, func(ctx context.Context, a *app.App) error {
				names, err := a.Snapshots().List(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), n); err != nil {
						return fmt.Errorf("write output: %w", err)
					}
				}
				return nil
			})
		},
	}
}
