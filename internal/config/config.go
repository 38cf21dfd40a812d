package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	IngestRateLimit int           `envconfig:"INGEST_RATE_LIMIT" default:"30"`

	OutputDir       string `envconfig:"OUTPUT_DIR" required:"true"`
	TempDir         string `envconfig:"TEMP_DIR" default:"./tmp"`
	FailedStateFile string `envconfig:"FAILED_STATE_FILE" default:"./state/failed.json"`

	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	MaxAttempts       int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryBackoff      time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`
	MaxSegmentBytes   int64         `envconfig:"MAX_SEGMENT_BYTES" default:"268435456"`
	MaxNameLength     int           `envconfig:"MAX_NAME_LENGTH" default:"120"`
	AllowPrivateHosts bool          `envconfig:"ALLOW_PRIVATE_HOSTS" default:"false"`

	EventBuffer    int    `envconfig:"EVENT_BUFFER" default:"64"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// TelegramEnabled reports whether status events should be sent to a chat.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp directory cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive: %s", c.RequestTimeout)
	}

	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("max attempts must be between 1 and 10: %d", c.MaxAttempts)
	}

	// Keep the added latency per unit of work to a few seconds.
	if c.RetryBackoff < 0 || c.RetryBackoff*time.Duration(c.MaxAttempts-1) > 5*time.Second {
		return fmt.Errorf("retry backoff out of range: %s", c.RetryBackoff)
	}

	if c.MaxSegmentBytes <= 0 {
		return fmt.Errorf("max segment size must be positive: %d", c.MaxSegmentBytes)
	}

	if c.MaxNameLength < 16 || c.MaxNameLength > 200 {
		return fmt.Errorf("max name length must be between 16 and 200: %d", c.MaxNameLength)
	}

	if c.EventBuffer <= 0 {
		return fmt.Errorf("event buffer must be positive: %d", c.EventBuffer)
	}

	if c.IngestRateLimit < 0 {
		return fmt.Errorf("ingest rate limit cannot be negative: %d", c.IngestRateLimit)
	}

	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		return fmt.Errorf("telegram chat id is required when a telegram token is set")
	}

	return nil
}
