package domain

import (
	"time"
)

// Job is one requested download tracked from ingestion until it completes or fails.
type Job struct {
	ID            uint64    `json:"id"`
	SourceURL     string    `json:"source_url"`
	CustomName    string    `json:"custom_name,omitempty"`
	State         JobState  `json:"state"`
	Attempt       int       `json:"attempt"`
	SegmentsTotal int       `json:"segments_total"`
	SegmentsDone  int       `json:"segments_done"`
	OutputPath    string    `json:"output_path,omitempty"`
	FailReason    string    `json:"fail_reason,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewJob builds a Job from an ingestion request. The ID is assigned by the queue.
func NewJob(req DownloadRequest) *Job {
	return &Job{
		SourceURL:  req.URL,
		CustomName: req.CustomName,
		State:      JobStateQueued,
	}
}

// Segment is one media chunk of a resolved playlist. Data holds the payload
// when it is kept in memory, Path when it was spooled to disk.
// A non-zero Length restricts the chunk to Length bytes of URL starting at Offset.
type Segment struct {
	URL    string
	Index  int
	Offset int64
	Length int64
	Data   []byte
	Path   string
}

// StatusEvent is emitted on every Job state transition and on download progress.
type StatusEvent struct {
	JobID         uint64    `json:"job_id"`
	Phase         Phase     `json:"phase"`
	Detail        string    `json:"detail,omitempty"`
	SourceURL     string    `json:"source_url"`
	SegmentsDone  int       `json:"segments_done,omitempty"`
	SegmentsTotal int       `json:"segments_total,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	Position      int       `json:"position,omitempty"`
	Pending       int       `json:"pending"`
	At            time.Time `json:"at"`
}
