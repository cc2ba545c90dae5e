package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
)

// newAskCmd creates the 'ask' subcommand.
func newAskCmd() *cobra.Command {
	var snapshotName string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the indexed content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is required")
			}
			return withApp(cmd, app.Options{Models: true}, nil, func(ctx context.Context, a *app.App) error {
				if _, err := a.Pipeline().LoadLinks(ctx, snapshotName); err != nil {
					return fmt.Errorf("load link database: %w", err)
				}
				answer, err := a.Composer().Chat(ctx, question)
				if err != nil {
					return fmt.Errorf("answer question: %w", err)
				}
				return printJSON(cmd, answer)
			})
		},
	}
	cmd.Flags().StringVar(&snapshotName, "snapshot", "", "snapshot used for the link database (default: newest)")
	return cmd
}
