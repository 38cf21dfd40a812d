package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

// IngestServiceI accepts download requests and lists pending jobs.
type IngestServiceI interface {
	Submit(ctx context.Context, req *domain.DownloadRequest) (domain.EnqueueResponse, error)
	Pending() []domain.Job
}

// ActiveJobProvider exposes the job currently being processed.
type ActiveJobProvider interface {
	Current() *domain.Job
}

// FailedJobsReader lists jobs that ended in the failed state.
type FailedJobsReader interface {
	Get(ctx context.Context, id uint64) (*domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
}

// JobHandler handles HTTP requests for jobs.
type JobHandler struct {
	ingest IngestServiceI
	active ActiveJobProvider
	failed FailedJobsReader
	logger *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(ingest IngestServiceI, active ActiveJobProvider, failed FailedJobsReader, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		ingest: ingest,
		active: active,
		failed: failed,
		logger: logger,
	}
}

// CreateJob handles POST /jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.DownloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.ingest.Submit(ctx, &req)
	if err != nil {
		if errors.Is(err, errpkg.ErrInvalidRequest) {
			h.logger.Warn("validation failed", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to enqueue job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// ListJobs handles GET /jobs.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.QueueSnapshot{
		Active:  h.active.Current(),
		Pending: h.ingest.Pending(),
	})
}

// ListFailed handles GET /jobs/failed.
func (h *JobHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.failed.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list failed jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetFailed handles GET /jobs/failed/{jobID}.
func (h *JobHandler) GetFailed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.failed.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errpkg.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get failed job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
