package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/logging"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the previous checkpoint and discard the newest one",
		Long:  "Requires at least two checkpoints: restores the second-newest without a backup, then deletes the newest.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.undo")

			result, err := e.ctrl.Undo()
			if err != nil {
				return e.logFailure(ctx, "undo", err)
			}

			e.track("undo", e.currentAgent(), nil)
			if result.Code != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Undid last checkpoint; restored %d files.\n", result.Code.FileCount)
			}
			return nil
		},
	}
}
