package transcript

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing transcript: %v", err)
	}
	return path
}

func userLine(text string) string {
	b, _ := json.Marshal(map[string]any{"role": "user", "content": text, "uuid": "u-" + text})
	return string(b)
}

func assistantLine(text string) string {
	b, _ := json.Marshal(map[string]any{"role": "assistant", "content": text, "uuid": "a-" + text})
	return string(b)
}

func TestComputeCursorEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", nil)

	cursor, err := ComputeCursor(path, nil)
	if err != nil {
		t.Fatalf("ComputeCursor: %v", err)
	}
	if cursor.ByteOffsetEnd != 0 || cursor.LastEventID != nil {
		t.Errorf("expected empty cursor, got %+v", cursor)
	}
}

func TestComputeCursorReadsLastEventID(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{userLine("hi"), assistantLine("hello")})

	cursor, err := ComputeCursor(path, nil)
	if err != nil {
		t.Fatalf("ComputeCursor: %v", err)
	}
	if cursor.LastEventID == nil || *cursor.LastEventID != "a-hello" {
		t.Errorf("LastEventID = %v, want a-hello", cursor.LastEventID)
	}
}

// Scenario: boundary search finds the n-th most recent user prompt.
func TestFindBoundaryByUserPromptsN1(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		userLine("first"),
		assistantLine("reply1"),
		userLine("second"),
		assistantLine("reply2"),
	}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	result, err := FindBoundaryByUserPrompts(path, 1)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}
	if len(result.Prompts) != 1 || result.Prompts[0] != "second" {
		t.Errorf("Prompts = %v, want [second]", result.Prompts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	remainder := string(data[result.BoundaryOffset:])
	if !strings.HasPrefix(remainder, lines[2]) {
		t.Errorf("boundary offset did not land on the second user line: %q", remainder)
	}
}

func TestFindBoundaryByUserPromptsN2(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		userLine("first"),
		assistantLine("reply1"),
		userLine("second"),
		assistantLine("reply2"),
	}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	result, err := FindBoundaryByUserPrompts(path, 2)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}
	if len(result.Prompts) != 2 || result.Prompts[0] != "first" || result.Prompts[1] != "second" {
		t.Errorf("Prompts = %v, want [first second]", result.Prompts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	remainder := string(data[result.BoundaryOffset:])
	if !strings.HasPrefix(remainder, lines[0]) {
		t.Errorf("boundary offset did not land on the first user line: %q", remainder)
	}
}

func TestFindBoundaryByUserPromptsNotEnough(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{userLine("only")})

	if _, err := FindBoundaryByUserPrompts(path, 5); err == nil {
		t.Fatalf("expected an error requesting more prompts than exist")
	}
}

// Scenario: fork at a boundary preserves content and rewrites a title field.
func TestCreateForkAtOffsetRewritesTitle(t *testing.T) {
	dir := t.TempDir()
	titleLine, _ := json.Marshal(map[string]any{"title": "My Session", "uuid": "t0"})
	lines := []string{string(titleLine), userLine("hi"), assistantLine("hello")}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	boundary, err := FindBoundaryByUserPrompts(path, 1)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}

	mgr := NewManager([]AgentHint{{ID: "claude", TitlePrefixEnabled: true}})
	forkPath, err := mgr.CreateForkAtOffset(path, boundary.BoundaryOffset, dir, "[Fork] ", "claude")
	if err != nil {
		t.Fatalf("CreateForkAtOffset: %v", err)
	}

	data, err := os.ReadFile(forkPath)
	if err != nil {
		t.Fatalf("reading fork: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"title":"[Fork] My Session"`) {
		t.Errorf("fork did not have a rewritten title: %q", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Errorf("fork does not end in a newline")
	}
}

func TestCreateForkAtOffsetSkipsTitleWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	titleLine, _ := json.Marshal(map[string]any{"title": "My Session"})
	lines := []string{string(titleLine), userLine("hi")}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	boundary, err := FindBoundaryByUserPrompts(path, 1)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}

	mgr := NewManager([]AgentHint{{ID: "droid", TitlePrefixEnabled: false}})
	forkPath, err := mgr.CreateForkAtOffset(path, boundary.BoundaryOffset, dir, "[Fork] ", "droid")
	if err != nil {
		t.Fatalf("CreateForkAtOffset: %v", err)
	}

	data, err := os.ReadFile(forkPath)
	if err != nil {
		t.Fatalf("reading fork: %v", err)
	}
	if strings.Contains(string(data), "[Fork]") {
		t.Errorf("title was rewritten despite disabled profile: %q", data)
	}
}

// Scenario: when the first title-bearing line is already prefixed, the
// rewrite leaves it alone instead of falling through and prefixing a
// later title object.
func TestCreateForkAtOffsetLeavesAlreadyPrefixedFirstTitleAlone(t *testing.T) {
	dir := t.TempDir()
	firstTitle, _ := json.Marshal(map[string]any{"title": "[Fork] My Session", "uuid": "t0"})
	secondTitle, _ := json.Marshal(map[string]any{"title": "A Later Title", "uuid": "t1"})
	lines := []string{string(firstTitle), string(secondTitle), userLine("hi")}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	boundary, err := FindBoundaryByUserPrompts(path, 1)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}

	mgr := NewManager([]AgentHint{{ID: "claude", TitlePrefixEnabled: true}})
	forkPath, err := mgr.CreateForkAtOffset(path, boundary.BoundaryOffset, dir, "[Fork] ", "claude")
	if err != nil {
		t.Fatalf("CreateForkAtOffset: %v", err)
	}

	data, err := os.ReadFile(forkPath)
	if err != nil {
		t.Fatalf("reading fork: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"title":"[Fork] My Session"`) {
		t.Errorf("already-prefixed first title was changed: %q", got)
	}
	if strings.Contains(got, `"title":"[Fork] A Later Title"`) {
		t.Errorf("scan fell through and prefixed a later title object: %q", got)
	}
}

// Scenario: in-place rewrite backs up the original before truncating.
func TestRewriteInPlaceAtOffsetBacksUpOriginal(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backup")
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		t.Fatalf("mkdir backup: %v", err)
	}
	lines := []string{userLine("first"), assistantLine("r1"), userLine("second"), assistantLine("r2")}
	path := writeTranscript(t, dir, "t.jsonl", lines)

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading original: %v", err)
	}

	boundary, err := FindBoundaryByUserPrompts(path, 1)
	if err != nil {
		t.Fatalf("FindBoundaryByUserPrompts: %v", err)
	}

	mgr := NewManager(nil)
	backupPath, err := mgr.RewriteInPlaceAtOffset(path, boundary.BoundaryOffset, backupDir)
	if err != nil {
		t.Fatalf("RewriteInPlaceAtOffset: %v", err)
	}

	backupData, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(backupData) != string(original) {
		t.Errorf("backup did not preserve the original transcript")
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rewritten: %v", err)
	}
	if string(rewritten) != string(original[:boundary.BoundaryOffset]) {
		t.Errorf("rewritten transcript should end just before the second user line, got %q", rewritten)
	}
}

func TestSnapshotIntoCheckpointAndInflate(t *testing.T) {
	dir := t.TempDir()
	checkpointDir := filepath.Join(dir, "cp")
	if err := os.MkdirAll(checkpointDir, 0o750); err != nil {
		t.Fatalf("mkdir checkpoint: %v", err)
	}
	path := writeTranscript(t, dir, "t.jsonl", []string{userLine("hi")})

	mgr := NewManager(nil)
	snap, err := mgr.SnapshotIntoCheckpoint(path, checkpointDir, "")
	if err != nil {
		t.Fatalf("SnapshotIntoCheckpoint: %v", err)
	}
	if snap.Agent != "unknown" {
		t.Errorf("Agent = %q, want unknown (no profiles registered)", snap.Agent)
	}

	gzPath := filepath.Join(checkpointDir, snap.SnapshotName)
	f, err := os.Open(gzPath)
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	inflated, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("reading inflated snapshot: %v", err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading original: %v", err)
	}
	if string(inflated) != string(original) {
		t.Errorf("snapshot did not round-trip the transcript contents")
	}
}

func TestPrefixMatchesDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "t.jsonl", []string{userLine("hi")})

	cursor, err := ComputeCursor(path, nil)
	if err != nil {
		t.Fatalf("ComputeCursor: %v", err)
	}
	if !PrefixMatches(path, cursor.PrefixSHA256) {
		t.Errorf("expected prefix to match its own hash")
	}

	if err := os.WriteFile(path, []byte(userLine("different")+"\n"), 0o644); err != nil {
		t.Fatalf("rewriting transcript: %v", err)
	}
	if PrefixMatches(path, cursor.PrefixSHA256) {
		t.Errorf("expected prefix hash to no longer match after divergence")
	}
}
