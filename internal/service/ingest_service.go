package service

import (
	"context"
	"log/slog"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	"github.com/veranemoloko/hls-downloader/internal/metrics"
)

// RequestValidator rejects malformed download requests.
type RequestValidator interface {
	Validate(req *domain.DownloadRequest) error
}

// JobSink accepts new jobs.
type JobSink interface {
	EnqueueNotify(job *domain.Job, onQueued func(job *domain.Job, position int)) int
	Snapshot() []domain.Job
}

// IngestService is the entry point for new download requests.
type IngestService struct {
	queue     JobSink
	validator RequestValidator
	events    EventPublisher
	logger    *slog.Logger
}

func NewIngestService(queue JobSink, validator RequestValidator, events EventPublisher, logger *slog.Logger) *IngestService {
	return &IngestService{
		queue:     queue,
		validator: validator,
		events:    events,
		logger:    logger,
	}
}

// Submit validates req, enqueues a job for it and announces its position.
// The returned job ID is the handle for later inspection; the job itself is
// owned by the queue and dispatcher from here on.
func (s *IngestService) Submit(ctx context.Context, req *domain.DownloadRequest) (domain.EnqueueResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.EnqueueResponse{}, err
	}
	if err := s.validator.Validate(req); err != nil {
		return domain.EnqueueResponse{}, err
	}

	job := domain.NewJob(*req)
	position := s.queue.EnqueueNotify(job, func(job *domain.Job, position int) {
		s.events.Publish(domain.StatusEvent{
			JobID:     job.ID,
			Phase:     domain.PhaseQueued,
			SourceURL: job.SourceURL,
			Position:  position,
			Pending:   position,
			At:        job.EnqueuedAt,
		})
	})
	metrics.JobsEnqueued.Inc()

	s.logger.Info("job enqueued",
		"job_id", job.ID,
		"url", job.SourceURL,
		"custom_name", job.CustomName,
		"position", position,
	)

	return domain.EnqueueResponse{JobID: job.ID, Position: position}, nil
}

// Pending returns the queued jobs in order.
func (s *IngestService) Pending() []domain.Job {
	return s.queue.Snapshot()
}
