package domain

// DownloadRequest represents a request to download one HLS stream.
type DownloadRequest struct {
	URL        string `json:"url" validate:"required,url,m3u8_url"`
	CustomName string `json:"custom_name,omitempty" validate:"omitempty,max=255"`
}

// EnqueueResponse is returned once a request was accepted into the queue.
type EnqueueResponse struct {
	JobID    uint64 `json:"job_id"`
	Position int    `json:"position"`
}

// QueueSnapshot describes the active Job and the pending ones.
type QueueSnapshot struct {
	Active  *Job  `json:"active,omitempty"`
	Pending []Job `json:"pending"`
}
