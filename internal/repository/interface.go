package repository

import (
	"context"

	"github.com/veranemoloko/hls-downloader/internal/domain"
)

// FailedRepo records jobs that ended in the failed state.
type FailedRepo interface {
	Add(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id uint64) (*domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
}
