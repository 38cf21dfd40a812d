package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
	"github.com/veranemoloko/hls-downloader/internal/metrics"
	"github.com/veranemoloko/hls-downloader/internal/retry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultDialTimeout    = 5 * time.Second
	maxRedirects          = 10
	userAgent             = "hls-downloader/1.0"

	// maxPreallocBytes caps how much of an advertised Content-Length is
	// reserved before any byte arrives.
	maxPreallocBytes = 8 << 20
)

// SegmentFetcher downloads single resources (segments and manifests) over HTTP.
type SegmentFetcher struct {
	httpClient     *http.Client
	policy         retry.Policy
	requestTimeout time.Duration
	maxBytes       int64
	logger         *slog.Logger
}

// Options tune a SegmentFetcher. Zero values fall back to defaults.
type Options struct {
	RequestTimeout time.Duration
	MaxBytes       int64
	Policy         retry.Policy
	HTTPClient     *http.Client
	// HostCheck, if set, vets every redirect target before it is followed.
	HostCheck func(u *url.URL) error
}

// NewSegmentFetcher creates a SegmentFetcher. Each request is bounded by
// RequestTimeout; failures are retried according to Policy.
func NewSegmentFetcher(opts Options, logger *slog.Logger) *SegmentFetcher {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	client := opts.HTTPClient
	if client == nil {
		client = newHTTPClient(opts.RequestTimeout, opts.HostCheck)
	}

	return &SegmentFetcher{
		httpClient:     client,
		policy:         opts.Policy,
		requestTimeout: opts.RequestTimeout,
		maxBytes:       opts.MaxBytes,
		logger:         logger,
	}
}

func newHTTPClient(timeout time.Duration, hostCheck func(*url.URL) error) *http.Client {
	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}

	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if hostCheck != nil {
				return hostCheck(req.URL)
			}
			return nil
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// Get performs exactly one GET and returns the whole body.
func (f *SegmentFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url, 0, 0)
}

// GetRange performs exactly one GET for length bytes of url starting at offset.
// A zero length requests the whole resource.
func (f *SegmentFetcher) GetRange(ctx context.Context, url string, offset, length int64) ([]byte, error) {
	return f.get(ctx, url, offset, length)
}

func (f *SegmentFetcher) get(ctx context.Context, url string, offset, length int64) ([]byte, error) {
	if length > 0 && f.maxBytes > 0 && length > f.maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", url, errpkg.ErrSegmentTooLarge, f.maxBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if length > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &errpkg.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	partial := length > 0 && resp.StatusCode == http.StatusPartialContent
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes && !partial {
		return nil, fmt.Errorf("%s: %w (advertised %d bytes, limit %d)", url, errpkg.ErrSegmentTooLarge, resp.ContentLength, f.maxBytes)
	}

	limit := f.maxBytes
	if partial {
		limit = length
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 && (limit <= 0 || resp.ContentLength <= limit) {
		buf.Grow(int(min(resp.ContentLength, maxPreallocBytes)))
	}

	var src io.Reader = resp.Body
	if limit > 0 {
		src = io.LimitReader(resp.Body, limit+1)
	}
	n, err := buf.ReadFrom(src)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	if partial {
		if n != length {
			return nil, fmt.Errorf("range of %s returned %d of %d bytes: %w", url, n, length, io.ErrUnexpectedEOF)
		}
		return buf.Bytes(), nil
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", url, errpkg.ErrSegmentTooLarge, f.maxBytes)
	}
	if length == 0 {
		return buf.Bytes(), nil
	}

	// The server ignored Range and sent the whole resource.
	data := buf.Bytes()
	if offset+length > int64(len(data)) {
		return nil, fmt.Errorf("range %d@%d beyond %d bytes of %s: %w", length, offset, len(data), url, io.ErrUnexpectedEOF)
	}
	return data[offset : offset+length], nil
}

// Fetch downloads url, retrying transient failures. onFailure, if not nil,
// observes each failed attempt. A failure that exhausts the budget or is not
// retryable is returned as *errors.SegmentError.
func (f *SegmentFetcher) Fetch(ctx context.Context, url string, onFailure func(attempt int, err error)) ([]byte, error) {
	return f.fetch(ctx, url, 0, 0, onFailure)
}

// FetchSegment downloads seg, honouring its byte range when it has one.
func (f *SegmentFetcher) FetchSegment(ctx context.Context, seg domain.Segment, onFailure func(attempt int, err error)) ([]byte, error) {
	return f.fetch(ctx, seg.URL, seg.Offset, seg.Length, onFailure)
}

func (f *SegmentFetcher) fetch(ctx context.Context, url string, offset, length int64, onFailure func(attempt int, err error)) ([]byte, error) {
	policy := f.policy.WithOnFailure(func(attempt int, err error) {
		metrics.FetchFailures.Inc()
		f.logger.Warn("fetch attempt failed",
			"url", url,
			"attempt", attempt,
			"max_attempts", f.policy.MaxAttempts,
			"error", err,
		)
		if onFailure != nil {
			onFailure(attempt, err)
		}
	})

	data, attempts, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
		metrics.FetchAttempts.Inc()
		return f.get(ctx, url, offset, length)
	})
	if err != nil {
		return nil, &errpkg.SegmentError{URL: url, Attempts: attempts, LastCause: err}
	}

	metrics.FetchBytes.Add(float64(len(data)))
	f.logger.Debug("fetched", "url", url, "bytes", len(data), "attempts", attempts)
	return data, nil
}
