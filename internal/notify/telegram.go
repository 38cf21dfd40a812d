package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/hls-downloader/internal/domain"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSink posts status events as chat messages through the Bot API.
type TelegramSink struct {
	apiURL     string
	token      string
	chatID     int64
	httpClient *http.Client
}

// NewTelegramSink creates a sink for the given bot token and chat. An empty
// apiURL selects the public Bot API endpoint.
func NewTelegramSink(apiURL, token string, chatID int64) *TelegramSink {
	if apiURL == "" {
		apiURL = defaultTelegramAPI
	}
	return &TelegramSink{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TelegramSink) Send(ctx context.Context, ev domain.StatusEvent) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(s.chatID, 10))
	form.Set("text", FormatEvent(ev))

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// The error text contains the endpoint and therefore the token.
		return fmt.Errorf("send message for job %d failed", ev.JobID)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send message: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// FormatEvent renders ev as a short human readable message.
func FormatEvent(ev domain.StatusEvent) string {
	switch ev.Phase {
	case domain.PhaseQueued:
		return fmt.Sprintf("🆕 Link added to queue: %s\n📌 Position: %d | Total Pending: %d", ev.SourceURL, ev.Position, ev.Pending)
	case domain.PhaseResolving:
		return fmt.Sprintf("🎯 Starting download: %s\nQueue Remaining: %d", ev.SourceURL, ev.Pending)
	case domain.PhaseDownloading:
		if ev.SegmentsDone == 0 {
			return fmt.Sprintf("📦 Found %d chunks. Downloading...", ev.SegmentsTotal)
		}
		return fmt.Sprintf("⬇️ Downloaded %d/%d chunks (%d%%)", ev.SegmentsDone, ev.SegmentsTotal, percent(ev.SegmentsDone, ev.SegmentsTotal))
	case domain.PhaseMerging:
		return fmt.Sprintf("🧩 Merging %d chunks...", ev.SegmentsTotal)
	case domain.PhaseCompleted:
		return fmt.Sprintf("🎉 Download & merge complete! Saved as %s\nQueue Remaining: %d", filepath.Base(ev.OutputPath), ev.Pending)
	case domain.PhaseFailed:
		return fmt.Sprintf("❌ Download failed for link: %s\nReason: %s\nQueue Remaining: %d", ev.SourceURL, ev.Detail, ev.Pending)
	default:
		return fmt.Sprintf("Job %d: %s %s", ev.JobID, ev.Phase, ev.Detail)
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
