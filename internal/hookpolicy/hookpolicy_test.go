package hookpolicy

import (
	"testing"

	"github.com/rewindhq/rewind/internal/checkpoint"
)

func withTranscript(path string) []checkpoint.Metadata {
	return []checkpoint.Metadata{
		{Name: "cp1", Transcript: &checkpoint.Transcript{OriginalPath: path}},
	}
}

func TestHasCheckpointForTranscript(t *testing.T) {
	checkpoints := withTranscript("/tmp/project/transcript.jsonl")

	if !HasCheckpointForTranscript(checkpoints, "/tmp/project/transcript.jsonl") {
		t.Error("expected a matching transcript path to be found")
	}
	if HasCheckpointForTranscript(checkpoints, "/tmp/project/other.jsonl") {
		t.Error("expected a non-matching transcript path not to be found")
	}
	if HasCheckpointForTranscript(checkpoints, "") {
		t.Error("expected an empty transcript path never to match")
	}
	if HasCheckpointForTranscript(nil, "/tmp/project/transcript.jsonl") {
		t.Error("expected no checkpoints to never match")
	}
}

func TestSessionStartDescription(t *testing.T) {
	tests := []struct {
		source SessionStartSource
		want   string
	}{
		{SourceStartup, "Session start"},
		{SourceResume, "Session resume"},
		{SourceClear, "Session clear"},
		{SourceCompact, "Session compact"},
		{SessionStartSource("unknown"), "Session start"},
	}
	for _, tt := range tests {
		if got := SessionStartDescription(tt.source); got != tt.want {
			t.Errorf("SessionStartDescription(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestShouldCreateSessionStartBaselineStartupAlwaysCreates(t *testing.T) {
	should, warnings := ShouldCreateSessionStartBaseline(SourceStartup, "", nil)
	if !should {
		t.Error("expected startup to always create a baseline")
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings on startup, got %v", warnings)
	}
}

func TestShouldCreateSessionStartBaselineResumeWithoutTranscriptPath(t *testing.T) {
	should, warnings := ShouldCreateSessionStartBaseline(SourceResume, "", nil)
	if should {
		t.Error("expected resume with unknown transcript path not to create a baseline")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}

func TestShouldCreateSessionStartBaselineResumeAlreadyCovered(t *testing.T) {
	checkpoints := withTranscript("/tmp/project/transcript.jsonl")
	should, warnings := ShouldCreateSessionStartBaseline(SourceResume, "/tmp/project/transcript.jsonl", checkpoints)
	if should {
		t.Error("expected resume with an existing checkpoint not to create another baseline")
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings when already covered, got %v", warnings)
	}
}

func TestShouldCreateSessionStartBaselineResumeUncovered(t *testing.T) {
	should, warnings := ShouldCreateSessionStartBaseline(SourceResume, "/tmp/project/transcript.jsonl", nil)
	if !should {
		t.Error("expected resume with no matching checkpoint to create a baseline")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}

func TestShouldCreateSessionStartBaselineClearAndCompactBehaveLikeResume(t *testing.T) {
	checkpoints := withTranscript("/tmp/project/transcript.jsonl")
	for _, source := range []SessionStartSource{SourceClear, SourceCompact} {
		should, _ := ShouldCreateSessionStartBaseline(source, "/tmp/project/transcript.jsonl", checkpoints)
		if should {
			t.Errorf("source %q: expected no baseline when already covered", source)
		}
		should, _ = ShouldCreateSessionStartBaseline(source, "/tmp/project/other.jsonl", checkpoints)
		if !should {
			t.Errorf("source %q: expected a baseline when uncovered", source)
		}
	}
}
