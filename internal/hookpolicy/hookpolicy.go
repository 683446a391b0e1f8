// Package hookpolicy holds the pure decision functions a hook collaborator
// uses to decide whether a SessionStart event should create a baseline
// checkpoint. Keeping this logic side-effect-free (no filesystem writes, no
// checkpoint creation) means the hook dispatcher — out of this module's
// scope per the collaborator boundary — can unit-test its policy without a
// real project or transcript. Ported from
// original_source/rewind/src/integrations/hooks/policy.py.
package hookpolicy

import (
	"strings"

	"github.com/rewindhq/rewind/internal/checkpoint"
	"github.com/rewindhq/rewind/internal/paths"
)

// SessionStartSource is the "source" field of a SessionStart hook event.
type SessionStartSource string

const (
	SourceStartup SessionStartSource = "startup"
	SourceResume  SessionStartSource = "resume"
	SourceClear   SessionStartSource = "clear"
	SourceCompact SessionStartSource = "compact"
)

// normalizePath expands a leading ~ and reports "" for a blank path, so
// that comparisons between a hook-supplied path and a checkpoint's recorded
// path aren't tripped up by representation differences.
func normalizePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := paths.HomeDir(); err == nil {
			if path == "~" {
				return home
			}
			return home + path[1:]
		}
	}
	return path
}

// CheckpointTranscriptPath returns cp's recorded transcript path,
// normalized, or "" if cp has no transcript.
func CheckpointTranscriptPath(cp checkpoint.Metadata) string {
	if cp.Transcript == nil {
		return ""
	}
	return normalizePath(cp.Transcript.OriginalPath)
}

// HasCheckpointForTranscript reports whether any of checkpoints already
// recorded a snapshot of transcriptPath.
func HasCheckpointForTranscript(checkpoints []checkpoint.Metadata, transcriptPath string) bool {
	tp := normalizePath(transcriptPath)
	if tp == "" {
		return false
	}
	for _, cp := range checkpoints {
		if CheckpointTranscriptPath(cp) == tp {
			return true
		}
	}
	return false
}

// SessionStartDescription is the Checkpoint Metadata description to use for
// a baseline checkpoint created in response to source.
func SessionStartDescription(source SessionStartSource) string {
	switch source {
	case SourceStartup:
		return "Session start"
	case SourceResume:
		return "Session resume"
	case SourceClear:
		return "Session clear"
	case SourceCompact:
		return "Session compact"
	default:
		return "Session start"
	}
}

// ShouldCreateSessionStartBaseline decides whether a SessionStart event
// should create a baseline checkpoint, and returns any warnings to surface
// to the user alongside that decision. A fresh startup always gets one; a
// resume with no checkpoint yet covering its transcript gets one too (so
// rewind has a baseline to fall back on); a resume whose transcript is
// already checkpointed, or whose path is unknown, does not.
func ShouldCreateSessionStartBaseline(source SessionStartSource, transcriptPath string, checkpoints []checkpoint.Metadata) (bool, []string) {
	var warnings []string

	if source == SourceStartup {
		return true, warnings
	}

	if source == SourceResume && normalizePath(transcriptPath) == "" {
		warnings = append(warnings, "[rewind] Resume detected but transcript path is unavailable; cannot verify checkpoint coverage")
		return false, warnings
	}

	if HasCheckpointForTranscript(checkpoints, transcriptPath) {
		return false, warnings
	}

	if source == SourceResume {
		warnings = append(warnings, "[rewind] No existing checkpoint for this transcript; created baseline")
	}

	return true, warnings
}
