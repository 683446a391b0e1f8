//go:build e2e

package e2e

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

// runInteractive starts the rewind binary under a pty so huh's select
// prompt renders as it would in a real terminal, then lets respond read
// from and write to the pty. Grounded on the teacher's
// integration_test/interactive.go RunCommandInteractive.
func runInteractive(dir string, args []string, respond func(ptyFile *os.File) string) (string, error) {
	cmd := exec.Command(getTestBinary(), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm", "REWIND_NO_TELEMETRY=1")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("starting pty: %w", err)
	}
	defer ptmx.Close()

	respondDone := make(chan string, 1)
	go func() { respondDone <- respond(ptmx) }()

	var respondOutput string
	select {
	case respondOutput = <-respondDone:
	case <-time.After(10 * time.Second):
	}

	cmdDone := make(chan error, 1)
	go func() { cmdDone <- cmd.Wait() }()

	var cmdErr error
	select {
	case cmdErr = <-cmdDone:
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		cmdErr = fmt.Errorf("process timed out")
	}

	return respondOutput, cmdErr
}

// waitForPromptAndRespond reads from the pty until promptSubstring appears,
// then writes response and returns everything read so far.
func waitForPromptAndRespond(ptyFile *os.File, promptSubstring, response string, timeout time.Duration) (string, error) {
	var output bytes.Buffer
	buf := make([]byte, 1024)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		_ = ptyFile.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := ptyFile.Read(buf)
		if n > 0 {
			output.Write(buf[:n])
			if strings.Contains(output.String(), promptSubstring) {
				_, _ = ptyFile.WriteString(response)
				return output.String(), nil
			}
		}
		if err != nil && !os.IsTimeout(err) {
			return output.String(), err
		}
	}
	return output.String(), fmt.Errorf("timeout waiting for prompt containing %q", promptSubstring)
}
