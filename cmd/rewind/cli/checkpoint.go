package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewindhq/rewind/internal/logging"
	"github.com/rewindhq/rewind/internal/redact"
)

func newCheckpointCmd() *cobra.Command {
	var sessionID string
	var transcriptPath string

	cmd := &cobra.Command{
		Use:   "checkpoint [description...]",
		Short: "Snapshot the workspace and current transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.checkpoint")

			description := strings.Join(args, " ")
			var sid *string
			if sessionID != "" {
				sid = &sessionID
			}

			meta, err := e.ctrl.CreateCheckpoint(ctx, description, sid, transcriptPath)
			if err != nil {
				return e.logFailure(ctx, "checkpoint", err)
			}

			logging.Info(ctx, "checkpoint created",
				"name", meta.Name, "fileCount", meta.FileCount, "hasTranscript", meta.HasTranscript,
				"description", redact.String(description))
			e.track("checkpoint", e.currentAgent(), map[string]any{"hasTranscript": meta.HasTranscript})

			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s created (%d files", meta.Name, meta.FileCount)
			if meta.HasTranscript {
				fmt.Fprint(cmd.OutOrStdout(), ", transcript attached")
			}
			fmt.Fprintln(cmd.OutOrStdout(), ")")
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "Associate the checkpoint with an agent session id")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Transcript path to snapshot (defaults to the known current transcript)")

	return cmd
}
