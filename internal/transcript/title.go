package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// prefixFirstTitleField streams the first maxLines lines of path into a
// sibling .tmp file, rewriting the title field of the first line that
// parses as a JSON object with a string title (left unchanged if it is
// already prefixed), then appends the remainder of the file unchanged and
// replaces path with the result. Best-effort by contract: callers that
// want fork/rewrite to succeed regardless of a malformed leading line
// should swallow the returned error, as the teacher does for this exact
// cosmetic rewrite.
func prefixFirstTitleField(path, prefix string, maxLines int) error {
	tmpPath := path + ".title.tmp"

	src, err := os.Open(path) //nolint:gosec // path constructed from a fork/backup directory
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(tmpPath) //nolint:gosec // path constructed alongside src
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup; no-op once renamed

	reader := bufio.NewReaderSize(src, 64*1024)
	writer := bufio.NewWriterSize(dst, 64*1024)

	replaced := false
	for i := 0; i < maxLines; i++ {
		line, readErr := reader.ReadString('\n')
		if line == "" && readErr != nil {
			break
		}

		if !replaced {
			if rewritten, ok := rewriteTitleLine(line, prefix); ok {
				line = rewritten
				replaced = true
			}
		}

		if _, err := writer.WriteString(line); err != nil {
			_ = dst.Close()
			return err
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			_ = dst.Close()
			return readErr
		}
	}

	buf := make([]byte, copyChunkBytes)
	if _, err := io.CopyBuffer(writer, reader, buf); err != nil {
		_ = dst.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// rewriteTitleLine attempts to parse line as a JSON object with a string
// title field. It reports found=true as soon as it locates that first
// title object, whether or not the line actually changes — an
// already-prefixed title is the first title object too, and the scan
// must stop there rather than prefixing a later one.
func rewriteTitleLine(line string, prefix string) (rewritten string, found bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" {
		return "", false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}
	title, ok := obj["title"].(string)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(title, prefix) {
		return line, true
	}
	obj["title"] = prefix + title

	out, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	return string(out) + "\n", true
}
