package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	"github.com/veranemoloko/hls-downloader/internal/metrics"
	"github.com/veranemoloko/hls-downloader/internal/repository"
	"github.com/veranemoloko/hls-downloader/internal/storage"
)

// JobSource hands out queued jobs one at a time.
type JobSource interface {
	Dequeue(ctx context.Context) (*domain.Job, error)
	Len() int
}

// PlaylistResolver turns a manifest URL into ordered segments.
type PlaylistResolver interface {
	Resolve(ctx context.Context, manifestURL string, onFailure func(attempt int, err error)) ([]domain.Segment, error)
}

// SegmentFetcher downloads one segment, or its byte range, with retries.
type SegmentFetcher interface {
	FetchSegment(ctx context.Context, seg domain.Segment, onFailure func(attempt int, err error)) ([]byte, error)
}

// Merger names output files and concatenates segments into them.
type Merger interface {
	OutputPath(job *domain.Job) string
	Merge(segments []domain.Segment, outputPath string) (string, error)
}

// EventPublisher receives status events. Publish must not block.
type EventPublisher interface {
	Publish(ev domain.StatusEvent)
}

// Dispatcher runs queued jobs strictly one after another:
// resolve, download every segment, merge.
type Dispatcher struct {
	queue    JobSource
	resolver PlaylistResolver
	fetcher  SegmentFetcher
	merger   Merger
	failed   repository.FailedRepo
	events   EventPublisher
	tempDir  string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *domain.Job
}

// DispatcherDeps groups the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Queue    JobSource
	Resolver PlaylistResolver
	Fetcher  SegmentFetcher
	Merger   Merger
	Failed   repository.FailedRepo
	Events   EventPublisher
	TempDir  string
}

// NewDispatcher creates a Dispatcher. Segment files are spooled under TempDir.
func NewDispatcher(deps DispatcherDeps, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    deps.Queue,
		resolver: deps.Resolver,
		fetcher:  deps.Fetcher,
		merger:   deps.Merger,
		failed:   deps.Failed,
		events:   deps.Events,
		tempDir:  deps.TempDir,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes jobs until ctx is canceled. A failing job never stops the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started")
	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("dispatcher stopped")
				return nil
			}
			return fmt.Errorf("dequeue: %w", err)
		}

		d.ProcessJob(ctx, job)
	}
}

// Current returns a copy of the job being processed, or nil when idle.
func (d *Dispatcher) Current() *domain.Job {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.current == nil {
		return nil
	}
	job := *d.current
	return &job
}

// ProcessJob drives one job to completed or failed.
func (d *Dispatcher) ProcessJob(ctx context.Context, job *domain.Job) {
	started := d.now()
	d.mu.Lock()
	d.current = job
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.current = nil
		d.mu.Unlock()
	}()

	logger := d.logger.With("job_id", job.ID, "url", job.SourceURL)

	d.transition(job, domain.JobStateResolving)
	d.emit(job, domain.PhaseResolving, "")
	logger.Info("resolving playlist")

	segments, err := d.resolver.Resolve(ctx, job.SourceURL, d.attemptObserver(job))
	if err != nil {
		d.fail(ctx, job, logger, err)
		return
	}
	d.resetAttempt(job)

	d.update(job, func(j *domain.Job) { j.SegmentsTotal = len(segments) })
	d.transition(job, domain.JobStateDownloading)
	d.emit(job, domain.PhaseDownloading, fmt.Sprintf("%d segments", len(segments)))
	logger.Info("downloading segments", "segments_total", len(segments))

	ws, err := storage.NewWorkspace(d.tempDir)
	if err != nil {
		d.fail(ctx, job, logger, err)
		return
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			logger.Warn("failed to remove workspace", "dir", ws.Dir(), "error", err)
		}
	}()

	for i := range segments {
		data, err := d.fetcher.FetchSegment(ctx, segments[i], d.attemptObserver(job))
		if err != nil {
			d.fail(ctx, job, logger, err)
			return
		}

		path, err := ws.WriteSegment(segments[i].Index, data)
		if err != nil {
			d.fail(ctx, job, logger, err)
			return
		}
		segments[i].Path = path

		d.update(job, func(j *domain.Job) {
			j.SegmentsDone++
			j.Attempt = 0
		})
		if isProgressMilestone(i+1, len(segments)) {
			d.emit(job, domain.PhaseDownloading, "")
		}
	}

	outputPath := d.merger.OutputPath(job)
	d.update(job, func(j *domain.Job) { j.OutputPath = outputPath })
	d.transition(job, domain.JobStateMerging)
	d.emit(job, domain.PhaseMerging, "")
	logger.Info("merging segments", "output_path", outputPath)

	if _, err := d.merger.Merge(segments, outputPath); err != nil {
		d.fail(ctx, job, logger, err)
		return
	}

	d.transition(job, domain.JobStateCompleted)
	d.emit(job, domain.PhaseCompleted, outputPath)

	metrics.JobsCompleted.Inc()
	metrics.JobDuration.Observe(d.now().Sub(started).Seconds())
	logger.Info("job completed", "output_path", outputPath, "duration", d.now().Sub(started))
}

func (d *Dispatcher) fail(ctx context.Context, job *domain.Job, logger *slog.Logger, cause error) {
	stage := job.State
	d.update(job, func(j *domain.Job) { j.FailReason = cause.Error() })
	d.transition(job, domain.JobStateFailed)

	metrics.JobsFailed.WithLabelValues(string(stage)).Inc()
	logger.Error("job failed",
		"stage", stage,
		"segments_done", job.SegmentsDone,
		"segments_total", job.SegmentsTotal,
		"error", cause,
	)

	// The failed list must still get the job during shutdown.
	if err := d.failed.Add(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to record failed job", "error", err)
	}
	d.emit(job, domain.PhaseFailed, cause.Error())
}

func (d *Dispatcher) transition(job *domain.Job, to domain.JobState) {
	d.update(job, func(j *domain.Job) {
		if !domain.CanTransition(j.State, to) {
			// Reaching this is a programming error in the dispatcher.
			panic(fmt.Sprintf("invalid job transition %s -> %s", j.State, to))
		}
		j.State = to
	})
}

func (d *Dispatcher) update(job *domain.Job, fn func(j *domain.Job)) {
	d.mu.Lock()
	fn(job)
	job.UpdatedAt = d.now()
	d.mu.Unlock()
}

func (d *Dispatcher) resetAttempt(job *domain.Job) {
	d.update(job, func(j *domain.Job) { j.Attempt = 0 })
}

func (d *Dispatcher) attemptObserver(job *domain.Job) func(int, error) {
	return func(attempt int, _ error) {
		d.update(job, func(j *domain.Job) { j.Attempt = attempt })
	}
}

func (d *Dispatcher) emit(job *domain.Job, phase domain.Phase, detail string) {
	d.mu.RLock()
	ev := domain.StatusEvent{
		JobID:         job.ID,
		Phase:         phase,
		Detail:        detail,
		SourceURL:     job.SourceURL,
		SegmentsDone:  job.SegmentsDone,
		SegmentsTotal: job.SegmentsTotal,
		OutputPath:    job.OutputPath,
		Pending:       d.queue.Len(),
		At:            d.now(),
	}
	d.mu.RUnlock()

	d.events.Publish(ev)
}

// isProgressMilestone reports whether finishing segment done of total should
// be announced: the first, the last, and every 25% boundary crossed.
func isProgressMilestone(done, total int) bool {
	if total <= 0 {
		return false
	}
	if done == 1 || done == total {
		return true
	}
	return done*4/total > (done-1)*4/total
}
