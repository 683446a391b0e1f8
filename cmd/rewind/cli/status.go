package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/logging"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint count, storage location, and tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.status")

			st, err := e.ctrl.GetStatus(string(e.cfg.StorageMode))
			if err != nil {
				return e.logFailure(ctx, "status", err)
			}

			e.track("status", e.currentAgent(), nil)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checkpoints:  %d\n", st.CheckpointCount)
			fmt.Fprintf(out, "Storage:      %s (%s)\n", st.StorageDir, st.StorageMode)
			fmt.Fprintf(out, "Tier:         %s\n", st.Tier)
			if st.Agent != "" {
				fmt.Fprintf(out, "Agent:        %s\n", st.Agent)
			}
			if st.Newest != nil {
				fmt.Fprintf(out, "Newest:       %s (%s)\n", st.Newest.Name, st.Newest.Timestamp)
			}
			return nil
		},
	}
}
