package storage

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/renameio/v2"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

// OutputExt is the extension of every merged file.
const OutputExt = ".mp4"

const defaultMaxNameLength = 120

// FileStorage owns the output directory: it names output files and merges
// downloaded segments into them.
type FileStorage struct {
	dir           string
	maxNameLength int
	logger        *slog.Logger
}

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string, maxNameLength int, logger *slog.Logger) *FileStorage {
	if maxNameLength <= 0 {
		maxNameLength = defaultMaxNameLength
	}
	return &FileStorage{dir: dir, maxNameLength: maxNameLength, logger: logger}
}

// Dir returns the output directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// OutputPath returns a free path in the output directory for job. The base
// name comes from the sanitized custom name, or from the enqueue time when
// there is none. Existing files are never reused; a numeric suffix is added.
func (s *FileStorage) OutputPath(job *domain.Job) string {
	base := SanitizeName(job.CustomName, s.maxNameLength)
	if base == "" {
		base = TimestampName(job.EnqueuedAt)
	}

	candidate := filepath.Join(s.dir, base+OutputExt)
	for i := 2; fileExists(candidate); i++ {
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, OutputExt))
	}
	return candidate
}

// Merge writes the segments to outputPath in the given order. The file only
// appears once every segment was written; on failure nothing is left behind.
func (s *FileStorage) Merge(segments []domain.Segment, outputPath string) (string, error) {
	pending, err := renameio.NewPendingFile(outputPath,
		renameio.WithTempDir(filepath.Dir(outputPath)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return "", &errpkg.MergeError{Path: outputPath, Cause: fmt.Errorf("create pending file: %w", err)}
	}
	defer pending.Cleanup()

	var written int64
	for _, seg := range segments {
		n, err := copySegment(pending, seg)
		written += n
		if err != nil {
			return "", &errpkg.MergeError{Path: outputPath, Cause: fmt.Errorf("segment %d: %w", seg.Index, err)}
		}
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", &errpkg.MergeError{Path: outputPath, Cause: fmt.Errorf("commit: %w", err)}
	}

	s.logger.Debug("segments merged", "path", outputPath, "segments", len(segments), "bytes", written)
	return outputPath, nil
}

func copySegment(dst io.Writer, seg domain.Segment) (int64, error) {
	if seg.Path == "" {
		return io.Copy(dst, bytes.NewReader(seg.Data))
	}

	f, err := os.Open(seg.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(dst, f)
}

var forbiddenNameChars = `\/*?:"<>|`

// SanitizeName makes a user supplied name safe as a file base name. Path
// separators, reserved characters and control characters are removed, runs of
// whitespace are collapsed, a trailing output extension is dropped and the
// result is cut to maxLen bytes on a rune boundary.
func SanitizeName(name string, maxLen int) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(forbiddenNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	clean := strings.Join(strings.Fields(b.String()), " ")
	if strings.EqualFold(filepath.Ext(clean), OutputExt) {
		clean = strings.TrimSpace(clean[:len(clean)-len(OutputExt)])
	}
	clean = strings.Trim(clean, ". ")

	if maxLen > 0 && len(clean) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = strings.TrimRight(clean[:cut], ". ")
	}
	return clean
}

// TimestampName returns the default base name for a job enqueued at t.
func TimestampName(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return "video_" + t.Format("20060102_150405")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
