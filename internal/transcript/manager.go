package transcript

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/rewindhq/rewind/internal/besteffort"
)

// copyChunkBytes is the streaming chunk size used by prefix copies and gzip
// inflation, bounding memory use regardless of transcript size.
const copyChunkBytes = 1 << 20

// maxSniffLines bounds how many leading JSON lines detectAgentBySniffing
// inspects when no agent profile's path regex matches.
const maxSniffLines = 20

// AgentHint is the subset of an agent profile the transcript manager needs:
// how to recognize the agent from a transcript path, which JSONL fields
// hold last_event_id, and whether/how to rewrite a forked transcript's
// title. Built from the agent profile registry; kept separate so this
// package has no dependency on it.
type AgentHint struct {
	ID                  string
	PathRegexes         []*regexp.Regexp
	LastEventIDFields   []string
	TitlePrefixEnabled  bool
	TitlePrefixJSONPath string
}

// Manager resolves agent hints and performs the snapshot, boundary, fork,
// and in-place rewrite operations that need them. The zero Manager (no
// hints) still works for everything that doesn't need agent-specific
// behavior; DetectAgent falls back to content sniffing and returns
// "unknown" rather than erroring.
type Manager struct {
	Profiles []AgentHint
}

func NewManager(profiles []AgentHint) *Manager {
	return &Manager{Profiles: profiles}
}

func (m *Manager) profile(agentID string) (AgentHint, bool) {
	for _, p := range m.Profiles {
		if p.ID == agentID {
			return p, true
		}
	}
	return AgentHint{}, false
}

// DetectAgent identifies which agent produced a transcript, first by
// matching each profile's path regexes against transcriptPath, falling
// back to sniffing the first lines of the file for characteristic record
// shapes, and finally returning "unknown".
func (m *Manager) DetectAgent(transcriptPath string) string {
	for _, p := range m.Profiles {
		for _, re := range p.PathRegexes {
			if re.MatchString(transcriptPath) {
				return p.ID
			}
		}
	}
	return detectAgentBySniffing(transcriptPath)
}

func detectAgentBySniffing(transcriptPath string) string {
	f, err := os.Open(transcriptPath) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	checked := 0
	for scanner.Scan() && checked < maxSniffLines {
		line := trimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		checked++
		obj, ok := parseJSONObject(line)
		if !ok {
			continue
		}
		if _, hasUUID := obj["uuid"]; hasUUID {
			if _, hasParent := obj["parentUuid"]; hasParent {
				return "claude"
			}
		}
		if _, hasID := obj["id"]; hasID {
			if _, hasParent := obj["parentId"]; hasParent {
				return "droid"
			}
		}
	}
	return "unknown"
}

func (m *Manager) titlePrefixEnabled(agentID string) bool {
	p, ok := m.profile(agentID)
	if !ok {
		return false
	}
	if !p.TitlePrefixEnabled {
		return false
	}
	return p.TitlePrefixJSONPath == "" || p.TitlePrefixJSONPath == "$.title"
}

func (m *Manager) lastEventIDFields(agentID string) []string {
	p, ok := m.profile(agentID)
	if !ok || len(p.LastEventIDFields) == 0 {
		return defaultIDFields
	}
	return p.LastEventIDFields
}

// Snapshot records the agent, original location, and stored-archive-relative
// path of a transcript copy taken into a checkpoint directory.
type Snapshot struct {
	Agent        string
	OriginalPath string
	SnapshotName string
	Cursor       Cursor
}

// snapshotArchiveName is the file a transcript snapshot is stored under
// within a checkpoint directory.
const snapshotArchiveName = "transcript.jsonl.gz"

// SnapshotIntoCheckpoint computes the transcript's cursor and streams a
// gzip-compressed copy of it into checkpointDir, for later use as the fork
// source when the live transcript has since diverged. agentHint overrides
// agent detection when the caller already knows it (e.g. from session
// info); pass "" to detect from the path/content.
func (m *Manager) SnapshotIntoCheckpoint(transcriptPath, checkpointDir, agentHint string) (Snapshot, error) {
	agentID := agentHint
	if agentID == "" {
		agentID = m.DetectAgent(transcriptPath)
	}

	cursor, err := ComputeCursor(transcriptPath, m.lastEventIDFields(agentID))
	if err != nil {
		return Snapshot{}, err
	}

	dst := filepath.Join(checkpointDir, snapshotArchiveName)
	if err := gzipFile(transcriptPath, dst); err != nil {
		return Snapshot{}, wrapErr("snapshot transcript", err)
	}

	return Snapshot{Agent: agentID, OriginalPath: transcriptPath, SnapshotName: snapshotArchiveName, Cursor: cursor}, nil
}

func gzipFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath) //nolint:gosec // path constructed from a checkpoint directory
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	buf := make([]byte, copyChunkBytes)
	if _, err := io.CopyBuffer(gz, src, buf); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

// InflateSnapshot decompresses the gzip-compressed transcript snapshot at
// gzPath into dstPath, overwriting it. Used when a live transcript has
// diverged from a checkpoint's recorded cursor and the checkpoint's own
// stored copy is the only faithful source left.
func InflateSnapshot(gzPath, dstPath string) error {
	return inflateGz(gzPath, dstPath)
}

func inflateGz(gzPath, dstPath string) error {
	src, err := os.Open(gzPath) //nolint:gosec // path constructed from a checkpoint directory
	if err != nil {
		return err
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer gz.Close()

	dst, err := os.Create(dstPath) //nolint:gosec // path constructed from a fork directory
	if err != nil {
		return err
	}
	defer dst.Close()

	buf := make([]byte, copyChunkBytes)
	if _, err := io.CopyBuffer(dst, gz, buf); err != nil {
		return err
	}
	return dst.Close()
}

// copyPrefix streams the first byteCount bytes of srcPath into dstPath,
// creating or truncating dstPath.
func copyPrefix(srcPath, dstPath string, byteCount int64) error {
	src, err := os.Open(srcPath) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath) //nolint:gosec // path constructed from a fork/backup directory
	if err != nil {
		return err
	}
	defer dst.Close()

	buf := make([]byte, copyChunkBytes)
	remaining := byteCount
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		read, err := src.Read(buf[:n])
		if read > 0 {
			if _, werr := dst.Write(buf[:read]); werr != nil {
				return werr
			}
			remaining -= int64(read)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return dst.Close()
}

// ensureTrailingNewline appends a newline to path if it doesn't already end
// with one. Best-effort: any failure is swallowed, matching the teacher
// transcript tooling's tolerance for a missing trailing byte never
// blocking a checkpoint or fork.
func ensureTrailingNewline(path string) {
	f, err := os.OpenFile(path, os.O_RDWR, 0) //nolint:gosec // path constructed from a fork/backup directory
	if err != nil {
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return
	}
	if last[0] == '\n' {
		return
	}
	if _, err := f.WriteAt([]byte{'\n'}, info.Size()); err != nil {
		return
	}
}

// CreateForkAtOffset copies the first boundaryOffset bytes of
// currentTranscriptPath into a new `<uuid>.jsonl` file under forkDir
// (defaulting to the source's directory), ensures it ends in a newline,
// and — unless titlePrefix is empty or the agent's profile disables it —
// best-effort rewrites the first title field it finds with titlePrefix.
func (m *Manager) CreateForkAtOffset(currentTranscriptPath string, boundaryOffset int64, forkDir, titlePrefix, agentID string) (string, error) {
	if forkDir == "" {
		forkDir = filepath.Dir(currentTranscriptPath)
	}
	forkPath := filepath.Join(forkDir, uuid.NewString()+".jsonl")

	if err := copyPrefix(currentTranscriptPath, forkPath, boundaryOffset); err != nil {
		return "", wrapErr("create fork", err)
	}
	ensureTrailingNewline(forkPath)

	if titlePrefix != "" && m.titlePrefixEnabled(agentID) {
		besteffort.Do(context.Background(), "transcript.title_prefix", func() error {
			return prefixFirstTitleField(forkPath, titlePrefix, 50)
		})
	}

	return forkPath, nil
}

// CreateForkSession builds a fork transcript representing the state a
// checkpoint was taken at: if the live transcript's current prefix still
// matches the checkpoint's recorded prefix hash, it is truncated directly
// (fast path); otherwise the checkpoint's own stored gzip snapshot is
// inflated instead, since the live transcript has since diverged.
func (m *Manager) CreateForkSession(checkpointCursor Cursor, checkpointSnapshotGz, currentTranscriptPath, forkDir, titlePrefix, agentID string) (string, error) {
	if forkDir == "" {
		forkDir = filepath.Dir(currentTranscriptPath)
	}
	forkPath := filepath.Join(forkDir, uuid.NewString()+".jsonl")

	if PrefixMatches(currentTranscriptPath, checkpointCursor.PrefixSHA256) {
		if err := copyPrefix(currentTranscriptPath, forkPath, checkpointCursor.ByteOffsetEnd); err != nil {
			return "", wrapErr("create fork session", err)
		}
	} else {
		if checkpointSnapshotGz == "" {
			return "", wrapErr("create fork session", fmt.Errorf("live transcript has diverged and no checkpoint snapshot is available"))
		}
		if err := inflateGz(checkpointSnapshotGz, forkPath); err != nil {
			return "", wrapErr("create fork session", err)
		}
	}

	ensureTrailingNewline(forkPath)
	if titlePrefix != "" && m.titlePrefixEnabled(agentID) {
		besteffort.Do(context.Background(), "transcript.title_prefix", func() error {
			return prefixFirstTitleField(forkPath, titlePrefix, 50)
		})
	}
	return forkPath, nil
}

// RewriteInPlaceAtOffset backs up currentTranscriptPath into backupDir,
// then truncates currentTranscriptPath to its first boundaryOffset bytes
// via an atomic tempfile-and-rename. Returns the backup path.
func (m *Manager) RewriteInPlaceAtOffset(currentTranscriptPath string, boundaryOffset int64, backupDir string) (string, error) {
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s_%s.jsonl", time.Now().Format("20060102_150405"), uuid.NewString()))
	if _, err := os.Stat(currentTranscriptPath); err == nil {
		if err := copyFileExact(currentTranscriptPath, backupPath); err != nil {
			return "", wrapErr("backup transcript", err)
		}
	}

	tmpPath := currentTranscriptPath + ".tmp"
	if err := copyPrefix(currentTranscriptPath, tmpPath, boundaryOffset); err != nil {
		return "", wrapErr("rewrite transcript", err)
	}
	ensureTrailingNewline(tmpPath)

	if err := os.Rename(tmpPath, currentTranscriptPath); err != nil {
		return "", wrapErr("rewrite transcript", err)
	}
	return backupPath, nil
}

func copyFileExact(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // path is an agent-configured transcript location
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	buf := make([]byte, copyChunkBytes)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Close()
}
