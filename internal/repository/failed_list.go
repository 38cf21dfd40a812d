package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

// FailedList keeps failed jobs in memory, in the order they failed. When a
// file path is configured the list is also written to disk after every change.
type FailedList struct {
	mu   sync.RWMutex
	jobs []domain.Job
	file string
}

// NewFailedList creates a FailedList. An empty filePath disables persistence;
// otherwise previously recorded jobs are loaded from it if it exists.
func NewFailedList(filePath string) (*FailedList, error) {
	repo := &FailedList{}
	if filePath == "" {
		return repo, nil
	}
	repo.file = filepath.Clean(filePath)

	if err := repo.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	slog.Info("failed list initialized", "file_path", repo.file, "jobs_count", len(repo.jobs))
	return repo, nil
}

func (r *FailedList) restore() error {
	data, err := os.ReadFile(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("state file does not exist, starting with empty failed list", "file_path", r.file)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("state file is empty", "file_path", r.file)
		return nil
	}

	if err := json.Unmarshal(data, &r.jobs); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	return nil
}

func (r *FailedList) persist(jobs []domain.Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	if err := renameio.WriteFile(r.file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	slog.Debug("failed list saved", "jobs_count", len(jobs), "file_path", r.file)
	return nil
}

// Add records a copy of job. The in-memory record is kept even if writing
// the state file fails; the write error is returned.
func (r *FailedList) Add(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.jobs = append(r.jobs, *job)
	var snapshot []domain.Job
	if r.file != "" {
		snapshot = append([]domain.Job(nil), r.jobs...)
	}
	r.mu.Unlock()

	if snapshot == nil {
		return nil
	}
	if err := r.persist(snapshot); err != nil {
		return fmt.Errorf("failed to save state after adding job %d: %w", job.ID, err)
	}
	return nil
}

// Get returns the failed job with the given id.
func (r *FailedList) Get(ctx context.Context, id uint64) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.jobs) - 1; i >= 0; i-- {
		if r.jobs[i].ID == id {
			job := r.jobs[i]
			return &job, nil
		}
	}
	return nil, errpkg.ErrJobNotFound
}

// List returns the failed jobs, oldest first.
func (r *FailedList) List(ctx context.Context) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Job(nil), r.jobs...), nil
}

// Len returns the number of failed jobs.
func (r *FailedList) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
