package playlist

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

// maxNesting is how many master playlists may be followed before segments must appear.
const maxNesting = 1

// Fetcher retrieves a URL with retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string, onFailure func(attempt int, err error)) ([]byte, error)
}

// Resolver turns a manifest URL into the ordered list of segment URLs.
type Resolver struct {
	fetcher   Fetcher
	hostCheck func(u *url.URL) error
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHostCheck makes the resolver reject playlists that point variants or
// segments at hosts check refuses.
func WithHostCheck(check func(u *url.URL) error) Option {
	return func(r *Resolver) {
		r.hostCheck = check
	}
}

// NewResolver creates a Resolver backed by fetcher.
func NewResolver(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches and parses manifestURL. For a master playlist the first
// listed variant is followed. Failures are returned as *errors.ManifestError.
func (r *Resolver) Resolve(ctx context.Context, manifestURL string, onFailure func(attempt int, err error)) ([]domain.Segment, error) {
	return r.resolve(ctx, manifestURL, 0, onFailure)
}

func (r *Resolver) resolve(ctx context.Context, manifestURL string, depth int, onFailure func(int, error)) ([]domain.Segment, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonMalformed, Cause: err}
	}

	body, err := r.fetcher.Fetch(ctx, manifestURL, onFailure)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonUnreachable, Cause: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonEmpty}
	}

	m, err := Parse(body, base)
	if err != nil {
		return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonMalformed, Cause: err}
	}

	if m.IsMaster() {
		if depth >= maxNesting {
			return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonTooDeep}
		}
		chosen := m.Variants[0]
		if err := r.checkHost(chosen.URL); err != nil {
			return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonMalformed, Cause: err}
		}
		r.logger.Info("master playlist, following first variant",
			"url", manifestURL,
			"variants", len(m.Variants),
			"variant_url", chosen.URL,
			"bandwidth", chosen.Bandwidth,
			"resolution", chosen.Resolution,
		)
		return r.resolve(ctx, chosen.URL, depth+1, onFailure)
	}

	if len(m.Segments) == 0 {
		return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonEmpty}
	}

	segments := make([]domain.Segment, len(m.Segments))
	for i, s := range m.Segments {
		if err := r.checkHost(s.URL); err != nil {
			return nil, &errpkg.ManifestError{URL: manifestURL, Reason: errpkg.ReasonMalformed, Cause: err}
		}
		segments[i] = domain.Segment{URL: s.URL, Index: i, Offset: s.Offset, Length: s.Length}
	}

	r.logger.Debug("playlist resolved", "url", manifestURL, "segments", len(segments))
	return segments, nil
}

func (r *Resolver) checkHost(raw string) error {
	if r.hostCheck == nil {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	return r.hostCheck(u)
}
