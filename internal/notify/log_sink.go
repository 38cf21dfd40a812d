package notify

import (
	"context"
	"log/slog"

	"github.com/veranemoloko/hls-downloader/internal/domain"
)

// LogSink writes every status event to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, ev domain.StatusEvent) error {
	level := slog.LevelInfo
	if ev.Phase == domain.PhaseFailed {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "job status",
		"job_id", ev.JobID,
		"phase", ev.Phase,
		"detail", ev.Detail,
		"url", ev.SourceURL,
		"segments_done", ev.SegmentsDone,
		"segments_total", ev.SegmentsTotal,
		"output_path", ev.OutputPath,
		"pending", ev.Pending,
	)
	return nil
}
