// Package transcript implements the byte-precise transcript cursor,
// snapshot, prompt-boundary search, and fork/in-place rewrite primitives
// that let a restore resume a conversation exactly where a checkpoint left
// off.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashWindowBytes is the size of the prefix/tail windows hashed into a
// Cursor, and the chunk size used when scanning backward for the last
// complete line.
const hashWindowBytes = 64 * 1024

// defaultIDFields are the JSONL record fields consulted, in order, for
// last_event_id when an agent profile does not override them.
var defaultIDFields = []string{"uuid", "id"}

// Error wraps a failure in a transcript operation. Fatal to the operation
// that produced it; a checkpoint operation downgrades such an error to
// "no transcript" rather than failing outright.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transcript: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error { return &Error{Op: op, Err: err} }

// Cursor identifies a transcript's state at a point in time.
type Cursor struct {
	ByteOffsetEnd int64   `json:"byte_offset_end"`
	LastEventID   *string `json:"last_event_id"`
	PrefixSHA256  string  `json:"prefix_sha256"`
	TailSHA256    string  `json:"tail_sha256"`
}

// ComputeCursor computes the Cursor for the transcript at path. idFields
// overrides the default ["uuid","id"] lookup order for last_event_id; pass
// nil to use the default.
func ComputeCursor(path string, idFields []string) (Cursor, error) {
	if idFields == nil {
		idFields = defaultIDFields
	}

	f, err := os.Open(path) //nolint:gosec // path is an agent-configured transcript location, not request-controlled
	if err != nil {
		return Cursor{}, wrapErr("stat transcript", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Cursor{}, wrapErr("stat transcript", err)
	}
	size := info.Size()

	prefixHash, err := hashPrefix(f, size)
	if err != nil {
		return Cursor{}, wrapErr("hash prefix", err)
	}
	tailHash, err := hashTail(f, size)
	if err != nil {
		return Cursor{}, wrapErr("hash tail", err)
	}

	if size == 0 {
		return Cursor{ByteOffsetEnd: 0, LastEventID: nil, PrefixSHA256: prefixHash, TailSHA256: tailHash}, nil
	}

	byteOffsetEnd, err := findLastCompleteLineEnd(f, size)
	if err != nil {
		return Cursor{}, wrapErr("scan transcript", err)
	}
	lastEventID, err := readLastEventID(f, byteOffsetEnd, idFields)
	if err != nil {
		return Cursor{}, wrapErr("read last event id", err)
	}

	return Cursor{
		ByteOffsetEnd: byteOffsetEnd,
		LastEventID:   lastEventID,
		PrefixSHA256:  prefixHash,
		TailSHA256:    tailHash,
	}, nil
}

// PrefixMatches recomputes the prefix hash of the transcript at path and
// reports whether it equals expected. Used to decide the fast vs slow fork
// path. A read failure is treated as a non-match rather than an error,
// mirroring the best-effort nature of the decision it feeds.
func PrefixMatches(path, expected string) bool {
	f, err := os.Open(path) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false
	}
	got, err := hashPrefix(f, info.Size())
	if err != nil {
		return false
	}
	return got == expected
}

func hashPrefix(f *os.File, size int64) (string, error) {
	n := min64(size, hashWindowBytes)
	buf := make([]byte, n)
	if n > 0 {
		if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
			return "", err
		}
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func hashTail(f *os.File, size int64) (string, error) {
	start := size - hashWindowBytes
	if start < 0 {
		start = 0
	}
	n := size - start
	buf := make([]byte, n)
	if n > 0 {
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return "", err
		}
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// findLastCompleteLineEnd returns the byte offset immediately after the
// last complete newline-terminated line in the file. If the file does not
// end in a newline, it scans backward in hashWindowBytes chunks for the
// preceding newline; with none found, the whole file counts as one
// (possibly incomplete) line.
func findLastCompleteLineEnd(f *os.File, size int64) (int64, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, err
	}
	if last[0] == '\n' {
		return size, nil
	}

	pos := size
	chunk := make([]byte, hashWindowBytes)
	for pos > 0 {
		readSize := min64(hashWindowBytes, pos)
		pos -= readSize
		buf := chunk[:readSize]
		if _, err := f.ReadAt(buf, pos); err != nil && err != io.EOF {
			return 0, err
		}
		if idx := lastIndexByte(buf, '\n'); idx != -1 {
			return pos + int64(idx) + 1, nil
		}
	}
	return size, nil
}

// readLastEventID reads the last complete line ending at byteOffsetEnd and
// extracts the first non-null value among fields, stringified.
func readLastEventID(f *os.File, byteOffsetEnd int64, fields []string) (*string, error) {
	if byteOffsetEnd == 0 {
		return nil, nil
	}

	start := byteOffsetEnd - hashWindowBytes
	if start < 0 {
		start = 0
	}
	buf := make([]byte, byteOffsetEnd-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, err
	}

	buf = trimTrailingNewlines(buf)
	idx := lastIndexByte(buf, '\n')
	var lastLine []byte
	if idx != -1 {
		lastLine = buf[idx+1:]
	} else {
		lastLine = buf
	}
	lastLine = trimSpace(lastLine)
	if len(lastLine) == 0 {
		return nil, nil
	}

	obj, ok := parseJSONObject(lastLine)
	if !ok {
		return nil, nil
	}

	for _, field := range fields {
		if field == "" {
			continue
		}
		if v, ok := obj[field]; ok && v != nil {
			s := stringifyScalar(v)
			return &s, nil
		}
	}
	return nil, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func trimTrailingNewlines(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == '\n' || b[end-1] == '\r') {
		end--
	}
	return b[:end]
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
