package controller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rewindhq/rewind/internal/config"
	"github.com/rewindhq/rewind/internal/ignore"
	"github.com/rewindhq/rewind/internal/sessioninfo"
)

func newTestController(t *testing.T) (*Controller, string) {
	t.Helper()
	projectRoot := t.TempDir()
	rewindDir := t.TempDir()

	ctrl, err := New(rewindDir, projectRoot, ignore.New(ignore.DefaultConfig()), nil, config.DefaultTierConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctrl, projectRoot
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func writeTranscriptFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
}

func userLine(text string) string {
	return `{"role":"user","content":"` + text + `"}`
}

func assistantLine(text string) string {
	return `{"role":"assistant","content":"` + text + `"}`
}

func TestCreateCheckpointWithoutTranscript(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "package main\n")

	meta, err := ctrl.CreateCheckpoint(context.Background(), "first", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if meta.HasTranscript {
		t.Errorf("expected HasTranscript=false with no transcript path")
	}
	if meta.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", meta.FileCount)
	}
}

func TestCreateCheckpointAttachesTranscript(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "package main\n")

	transcriptPath := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscriptFile(t, transcriptPath, userLine("hello"), assistantLine("hi"))

	meta, err := ctrl.CreateCheckpoint(context.Background(), "with transcript", nil, transcriptPath)
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if !meta.HasTranscript {
		t.Fatalf("expected HasTranscript=true")
	}
	if meta.Transcript.OriginalPath != transcriptPath {
		t.Errorf("OriginalPath = %q, want %q", meta.Transcript.OriginalPath, transcriptPath)
	}

	snapshotPath := filepath.Join(ctrl.Store.StorageDir, meta.Name, meta.Transcript.Snapshot)
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Errorf("expected transcript snapshot at %s: %v", snapshotPath, err)
	}
}

func TestCreateCheckpointFallsBackToSessionInfo(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "package main\n")

	transcriptPath := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscriptFile(t, transcriptPath, userLine("hello"))

	if err := sessioninfo.Save(ctrl.RewindDir, sessioninfo.Info{TranscriptPath: transcriptPath}); err != nil {
		t.Fatalf("Save session info: %v", err)
	}

	meta, err := ctrl.CreateCheckpoint(context.Background(), "from session info", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if !meta.HasTranscript {
		t.Fatalf("expected HasTranscript=true via Session Info fallback")
	}
}

func TestRestoreCodeOnly(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")
	meta, err := ctrl.CreateCheckpoint(context.Background(), "v1", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	writeFile(t, root, "main.go", "v2\n")

	result, err := ctrl.Restore(meta.Name, RestoreCode, true, TranscriptFork)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.Code == nil || !result.Code.Success {
		t.Fatalf("expected successful code restore, got %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	if err != nil {
		t.Fatalf("read main.go: %v", err)
	}
	if string(data) != "v1\n" {
		t.Errorf("main.go = %q, want %q", data, "v1\n")
	}
}

func TestRestoreContextForkAfterTranscriptGrows(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")

	transcriptPath := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscriptFile(t, transcriptPath, userLine("first"))

	if err := sessioninfo.Save(ctrl.RewindDir, sessioninfo.Info{TranscriptPath: transcriptPath}); err != nil {
		t.Fatalf("Save session info: %v", err)
	}

	meta, err := ctrl.CreateCheckpoint(context.Background(), "checkpoint", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if !meta.HasTranscript {
		t.Fatalf("expected transcript attached")
	}

	// Append more content after the checkpoint. The prefix hash covers the
	// whole file while it is under 64 KiB, so it no longer matches and the
	// fork is inflated from the checkpoint's transcript snapshot.
	f, err := os.OpenFile(transcriptPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	if _, err := f.WriteString(assistantLine("reply") + "\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	result, err := ctrl.Restore(meta.Name, RestoreContext, true, TranscriptFork)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.ContextError != nil {
		t.Fatalf("unexpected context error: %v", result.ContextError)
	}
	if result.ForkPath == "" {
		t.Fatalf("expected a fork path")
	}
	if _, err := os.Stat(result.ForkPath); err != nil {
		t.Errorf("expected fork file to exist: %v", err)
	}
}

func TestUndoRequiresTwoCheckpoints(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")
	if _, err := ctrl.CreateCheckpoint(context.Background(), "only one", nil, ""); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	if _, err := ctrl.Undo(); err == nil {
		t.Fatalf("expected Undo to fail with only one checkpoint")
	}
}

func TestUndoRestoresPreviousAndDeletesNewest(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")
	first, err := ctrl.CreateCheckpoint(context.Background(), "v1", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	writeFile(t, root, "main.go", "v2\n")
	second, err := ctrl.CreateCheckpoint(context.Background(), "v2", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	writeFile(t, root, "main.go", "v3-uncommitted\n")

	if _, err := ctrl.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	if err != nil {
		t.Fatalf("read main.go: %v", err)
	}
	if string(data) != "v1\n" {
		t.Errorf("main.go = %q, want %q", data, "v1\n")
	}

	if ctrl.Store.Get(second.Name) != nil {
		t.Errorf("expected newest checkpoint %s to be deleted", second.Name)
	}
	if ctrl.Store.Get(first.Name) == nil {
		t.Errorf("expected older checkpoint %s to survive", first.Name)
	}
}

func TestRewindBackForksAtBoundary(t *testing.T) {
	ctrl, _ := newTestController(t)

	transcriptPath := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscriptFile(t, transcriptPath,
		userLine("first"),
		assistantLine("ack one"),
		userLine("second"),
		assistantLine("ack two"),
	)
	if err := sessioninfo.Save(ctrl.RewindDir, sessioninfo.Info{TranscriptPath: transcriptPath}); err != nil {
		t.Fatalf("Save session info: %v", err)
	}

	result, err := ctrl.RewindBack(RewindOptions{N: 1})
	if err != nil {
		t.Fatalf("RewindBack: %v", err)
	}
	if len(result.Prompts) != 1 || result.Prompts[0] != "second" {
		t.Errorf("Prompts = %v, want [second]", result.Prompts)
	}
	if result.ForkPath == "" {
		t.Fatalf("expected a fork path")
	}

	data, err := os.ReadFile(result.ForkPath)
	if err != nil {
		t.Fatalf("read fork: %v", err)
	}
	if strings.Contains(string(data), "second") {
		t.Errorf("fork should end before the rewound-past prompt, got %q", data)
	}
}

func TestRewindBackRequiresKnownTranscript(t *testing.T) {
	ctrl, _ := newTestController(t)
	if _, err := ctrl.RewindBack(RewindOptions{N: 1}); err == nil {
		t.Fatalf("expected an error with no Session Info recorded")
	}
}

func TestCompareManifestsReportsAddedAndRemoved(t *testing.T) {
	ctrl, root := newTestController(t)

	writeFile(t, root, "a.txt", "a\n")
	metaA, err := ctrl.CreateCheckpoint(context.Background(), "a", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatalf("remove a.txt: %v", err)
	}
	writeFile(t, root, "b.txt", "b\n")
	metaB, err := ctrl.CreateCheckpoint(context.Background(), "b", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	diff, err := ctrl.CompareManifests(metaA.Name, metaB.Name)
	if err != nil {
		t.Fatalf("CompareManifests: %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0] != "b.txt" {
		t.Errorf("Added = %v, want [b.txt]", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "a.txt" {
		t.Errorf("Removed = %v, want [a.txt]", diff.Removed)
	}
}

func TestGetStatusReportsCheckpointCount(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")
	if _, err := ctrl.CreateCheckpoint(context.Background(), "v1", nil, ""); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	status, err := ctrl.GetStatus("project")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.CheckpointCount != 1 {
		t.Errorf("CheckpointCount = %d, want 1", status.CheckpointCount)
	}
	if status.Newest == nil {
		t.Errorf("expected Newest to be set")
	}
}

func TestValidateSystemDetectsMissingArchive(t *testing.T) {
	ctrl, root := newTestController(t)
	writeFile(t, root, "main.go", "v1\n")
	meta, err := ctrl.CreateCheckpoint(context.Background(), "v1", nil, "")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	archivePath := filepath.Join(ctrl.Store.StorageDir, meta.Name, "snapshot.tar.gz")
	if err := os.Remove(archivePath); err != nil {
		t.Fatalf("remove archive: %v", err)
	}

	status, err := ctrl.ValidateSystem()
	if err != nil {
		t.Fatalf("ValidateSystem: %v", err)
	}
	if len(status.Issues) == 0 {
		t.Errorf("expected an issue reported for the missing archive")
	}
}
