package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrStateFileMissing = errors.New("state file missing")
	ErrJobNotFound      = errors.New("job not found")
	ErrSegmentTooLarge  = errors.New("segment exceeds size limit")
	ErrInvalidRequest   = errors.New("invalid download request")
	ErrHostNotAllowed   = errors.New("host not allowed")
)

// Manifest failure reasons.
const (
	ReasonUnreachable = "unreachable"
	ReasonEmpty       = "empty"
	ReasonMalformed   = "malformed"
	ReasonTooDeep     = "too-deep"
)

// ManifestError is returned when a playlist cannot be turned into a segment list.
type ManifestError struct {
	URL    string
	Reason string
	Cause  error
}

func (e *ManifestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("manifest %s: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("manifest %s: %s", e.URL, e.Reason)
}

func (e *ManifestError) Unwrap() error { return e.Cause }

// SegmentError is returned once a fetch gave up on a URL.
type SegmentError struct {
	URL       string
	Attempts  int
	LastCause error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.LastCause)
}

func (e *SegmentError) Unwrap() error { return e.LastCause }

// MergeError is returned when the output file could not be written.
type MergeError struct {
	Path  string
	Cause error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge into %s: %v", e.Path, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsTransient reports whether err is worth another attempt: network failures,
// timeouts, truncated bodies and 5xx responses. Anything not recognized as
// one of those is final, so broken requests, certificate problems and
// redirect limits are not retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrSegmentTooLarge) ||
		errors.Is(err, ErrHostNotAllowed) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	if isCertificateError(err) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isCertificateError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		recordHdrErr tls.RecordHeaderError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &recordHdrErr)
}
