package queue

import (
	"context"
	"sync"
	"time"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	"github.com/veranemoloko/hls-downloader/internal/metrics"
)

// JobQueue is an unbounded FIFO of pending jobs. Any number of goroutines may
// enqueue; a single consumer dequeues.
type JobQueue struct {
	mu     sync.Mutex
	jobs   []*domain.Job
	nextID uint64
	ready  chan struct{}
	now    func() time.Time
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		ready: make(chan struct{}, 1),
		now:   time.Now,
	}
}

// Enqueue assigns the next sequence number to job, marks it queued and
// appends it to the tail. It returns the job's 1-based position.
func (q *JobQueue) Enqueue(job *domain.Job) int {
	return q.EnqueueNotify(job, nil)
}

// EnqueueNotify is Enqueue with a hook that runs before the job becomes
// visible to the consumer, so anything it publishes precedes the consumer's
// own reaction to the job. onQueued must not block or call back into q.
func (q *JobQueue) EnqueueNotify(job *domain.Job, onQueued func(job *domain.Job, position int)) int {
	q.mu.Lock()
	q.nextID++
	job.ID = q.nextID
	job.State = domain.JobStateQueued
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	job.UpdatedAt = job.EnqueuedAt
	q.jobs = append(q.jobs, job)
	position := len(q.jobs)
	if onQueued != nil {
		onQueued(job, position)
	}
	q.mu.Unlock()

	metrics.QueueDepth.Inc()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return position
}

// Dequeue removes and returns the head of the queue, blocking until a job is
// available or ctx is done.
func (q *JobQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	for {
		if job := q.pop(); job != nil {
			metrics.QueueDepth.Dec()
			return job, nil
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *JobQueue) pop() *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job
}

// Len returns the number of pending jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// IsEmpty is advisory; the answer may be stale by the time it is used.
func (q *JobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Snapshot returns copies of the pending jobs in queue order.
func (q *JobQueue) Snapshot() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}
