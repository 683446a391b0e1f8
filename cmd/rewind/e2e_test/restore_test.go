//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestInteractiveRestorePicker drives the real rewind binary through a pty:
// creates two checkpoints non-interactively, then runs "rewind restore"
// with no checkpoint name so it falls back to the huh select picker, and
// confirms the first (newest) entry by pressing Enter.
func TestInteractiveRestorePicker(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	for i := 0; i < 2; i++ {
		cmd := exec.Command(getTestBinary(), "checkpoint", "snapshot "+string(rune('a'+i)))
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "REWIND_NO_TELEMETRY=1")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("checkpoint %d failed: %v\n%s", i, err, out)
		}
	}

	output, err := runInteractive(dir, []string{"restore"}, func(ptyFile *os.File) string {
		out, waitErr := waitForPromptAndRespond(ptyFile, "Restore which checkpoint?", "\r", 5*time.Second)
		if waitErr != nil {
			t.Errorf("waiting for restore picker: %v", waitErr)
		}
		return out
	})
	if err != nil {
		t.Fatalf("interactive restore failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Restore which checkpoint?") {
		t.Errorf("expected picker prompt in output, got: %q", output)
	}
}
