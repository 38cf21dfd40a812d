package validation

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

var forbiddenHosts = []string{
	"localhost",
	"127.0.0.1",
	"::1",
	"0.0.0.0",
	"169.254.169.254",
}

// RequestValidator checks download requests at the ingestion boundary.
type RequestValidator struct {
	validate          *validator.Validate
	allowPrivateHosts bool
}

// NewRequestValidator creates a validator. With allowPrivateHosts set,
// loopback and private addresses are accepted as manifest hosts.
func NewRequestValidator(allowPrivateHosts bool) *RequestValidator {
	v := &RequestValidator{
		validate:          validator.New(),
		allowPrivateHosts: allowPrivateHosts,
	}
	_ = v.validate.RegisterValidation("m3u8_url", v.validateManifestURL)
	return v
}

// Validate returns an error wrapping errors.ErrInvalidRequest when req is not acceptable.
func (v *RequestValidator) Validate(req *domain.DownloadRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	req.CustomName = strings.TrimSpace(req.CustomName)

	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errpkg.ErrInvalidRequest, err)
	}
	return nil
}

func (v *RequestValidator) validateManifestURL(fl validator.FieldLevel) bool {
	return v.IsManifestURL(fl.Field().String())
}

// IsManifestURL reports whether s is an http(s) URL to an .m3u8 document on
// an allowed host.
func (v *RequestValidator) IsManifestURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	if !strings.EqualFold(path.Ext(u.Path), ".m3u8") {
		return false
	}

	return v.CheckHost(u) == nil
}

// CheckHost returns an error wrapping errors.ErrHostNotAllowed when u points
// at a loopback, private, link-local or metadata address and private hosts
// are not allowed. It is applied to manifest URLs at ingestion and to every
// URI a playlist or redirect leads to.
func (v *RequestValidator) CheckHost(u *url.URL) error {
	if v.allowPrivateHosts {
		return nil
	}

	host := u.Hostname()
	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return fmt.Errorf("%w: %s", errpkg.ErrHostNotAllowed, host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: %s", errpkg.ErrHostNotAllowed, host)
		}
	}

	return nil
}
