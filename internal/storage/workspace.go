package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a scratch directory holding the segments of one job.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh directory under root.
func NewWorkspace(root string) (*Workspace, error) {
	dir := filepath.Join(root, "job-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// WriteSegment stores data for the segment at index and returns its path.
func (w *Workspace) WriteSegment(index int, data []byte) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%06d.seg", index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write segment %d: %w", index, err)
	}
	return path, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
