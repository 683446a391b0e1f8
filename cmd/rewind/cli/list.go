package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/rewindhq/rewind/internal/logging"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := buildEnv(cmd, "")
			if err != nil {
				return err
			}
			ctx := logging.WithComponent(cmd.Context(), "cli.list")

			checkpoints, err := e.ctrl.Store.List()
			if err != nil {
				return e.logFailure(ctx, "list", err)
			}

			e.track("list", e.currentAgent(), map[string]any{"count": len(checkpoints)})
			renderCheckpointTable(cmd.OutOrStdout(), checkpoints)
			return nil
		},
	}
	return cmd
}

func renderCheckpointTable(w io.Writer, checkpoints []checkpoint.Metadata) {
	if len(checkpoints) == 0 {
		fmt.Fprintln(w, "No checkpoints yet.")
		return
	}

	descWidth := descriptionWidth(w)

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIMESTAMP\tFILES\tTRANSCRIPT\tDESCRIPTION")
	for _, cp := range checkpoints {
		transcript := "-"
		if cp.HasTranscript && cp.Transcript != nil {
			transcript = cp.Transcript.Agent
		}
		description := cp.Description
		if description == "" {
			description = "-"
		}
		if descWidth > 0 && len(description) > descWidth {
			description = description[:descWidth-1] + "…"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", cp.Name, cp.Timestamp, cp.FileCount, transcript, description)
	}
	tw.Flush()
}

// descriptionWidth caps the DESCRIPTION column so rows fit a real terminal;
// it returns 0 (no cap) when w isn't an attached tty.
func descriptionWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	const fixedColumns = 20 + 24 + 8 + 12 + 6 // name+timestamp+files+transcript+padding
	if avail := width - fixedColumns; avail > 10 {
		return avail
	}
	return 0
}
