//go:build e2e

// Package e2e builds the real rewind binary and drives it through a pty,
// grounded on the teacher's cmd/entire/cli/e2e_test TestMain convention.
package e2e

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// testBinaryPath holds the path to the CLI binary built once in TestMain.
var testBinaryPath string

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "rewind-e2e-test-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir for binary: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	testBinaryPath = filepath.Join(tmpDir, "rewind")

	moduleRoot := findModuleRoot()
	ctx := context.Background()

	buildCmd := exec.CommandContext(ctx, "go", "build", "-o", testBinaryPath, ".")
	buildCmd.Dir = filepath.Join(moduleRoot, "cmd", "rewind")

	if out, err := buildCmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build rewind binary: %v\nOutput: %s\n", err, out)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func getTestBinary() string {
	if testBinaryPath == "" {
		panic("testBinaryPath not set - TestMain must run before tests")
	}
	return testBinaryPath
}

// findModuleRoot walks up from this file's directory to the one containing go.mod.
func findModuleRoot() string {
	_, file, _, _ := runtime.Caller(0)
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find module root")
		}
		dir = parent
	}
}
