package transcript

import (
	"errors"
	"fmt"
	"os"
)

// reverseScanChunkBytes is the chunk size used when scanning a transcript
// backward looking for user-prompt boundaries.
const reverseScanChunkBytes = 128 * 1024

// BoundaryResult is the outcome of FindBoundaryByUserPrompts: the byte
// offset the n-th-from-last user prompt starts at, and the prompt texts
// found along the way, oldest first.
type BoundaryResult struct {
	BoundaryOffset int64
	Prompts        []string
}

// FindBoundaryByUserPrompts scans a transcript backward from its end,
// counting role:"user" records, and returns the byte offset at which the
// n-th most recent one begins. Used to compute where a rewind-back-n-turns
// operation should fork or truncate the transcript.
func FindBoundaryByUserPrompts(path string, n int) (BoundaryResult, error) {
	if n <= 0 {
		return BoundaryResult{}, wrapErr("find boundary", fmt.Errorf("n must be positive, got %d", n))
	}

	f, err := os.Open(path) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return BoundaryResult{}, wrapErr("find boundary", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return BoundaryResult{}, wrapErr("find boundary", err)
	}
	size := info.Size()
	if size == 0 {
		return BoundaryResult{}, wrapErr("find boundary", errors.New("transcript is empty"))
	}

	var promptsNewestFirst []string
	var boundaryOffset int64 = -1

	processLine := func(line []byte, lineStart int64) {
		line = trimTrailingNewlines(line)
		line = stripTrailingCR(line)
		trimmed := trimSpace(line)
		if len(trimmed) == 0 {
			return
		}
		obj, ok := parseJSONObject(trimmed)
		if !ok || !isUserMessage(obj) {
			return
		}
		promptsNewestFirst = append(promptsNewestFirst, extractPromptText(obj, obj))
		if boundaryOffset < 0 && len(promptsNewestFirst) == n {
			boundaryOffset = lineStart
		}
	}

	pos := size
	var buf []byte
	bufStart := size

	for pos > 0 && boundaryOffset < 0 {
		readSize := int64(reverseScanChunkBytes)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize
		chunk := make([]byte, readSize)
		if _, err := f.ReadAt(chunk, pos); err != nil {
			return BoundaryResult{}, wrapErr("find boundary", err)
		}
		buf = append(chunk, buf...)
		bufStart = pos

		for {
			idx := lastIndexByte(buf, '\n')
			if idx < 0 {
				break
			}
			lineStart := bufStart + int64(idx) + 1
			line := buf[idx+1:]
			if len(line) > 0 {
				processLine(line, lineStart)
				if boundaryOffset >= 0 {
					break
				}
			}
			buf = buf[:idx]
		}
		if boundaryOffset >= 0 {
			break
		}
	}

	if boundaryOffset < 0 && len(buf) > 0 {
		processLine(buf, bufStart)
	}

	if boundaryOffset < 0 {
		return BoundaryResult{}, wrapErr("find boundary", fmt.Errorf(
			"not enough user prompts (requested %d, found %d)", n, len(promptsNewestFirst)))
	}

	prompts := make([]string, len(promptsNewestFirst))
	for i, p := range promptsNewestFirst {
		prompts[len(promptsNewestFirst)-1-i] = p
	}
	return BoundaryResult{BoundaryOffset: boundaryOffset, Prompts: prompts}, nil
}

func stripTrailingCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
