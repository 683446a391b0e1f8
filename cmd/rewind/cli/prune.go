package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/logging"
)

func newPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest --keep checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.prune")

			if keep < 0 {
				return e.logFailure(ctx, "prune", fmt.Errorf("--keep must be >= 0, got %d", keep))
			}

			deleted, err := e.ctrl.Store.Prune(keep)
			if err != nil {
				return e.logFailure(ctx, "prune", err)
			}

			e.track("prune", e.currentAgent(), map[string]any{"keep": keep, "deleted": deleted})
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d checkpoint(s), keeping the %d newest.\n", deleted, keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "Number of newest checkpoints to keep")

	return cmd
}
