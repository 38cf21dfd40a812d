package validation

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/veranemoloko/hls-downloader/internal/domain"
	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

func TestRequestValidator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.DownloadRequest
		wantErr bool
	}{
		{
			name: "valid manifest",
			req:  domain.DownloadRequest{URL: "https://cdn.example.com/live/index.m3u8"},
		},
		{
			name: "valid with query and custom name",
			req:  domain.DownloadRequest{URL: "https://cdn.example.com/v/master.M3U8?token=abc", CustomName: "Lec-1 : DC Machine"},
		},
		{
			name:    "empty url",
			req:     domain.DownloadRequest{},
			wantErr: true,
		},
		{
			name:    "not a playlist",
			req:     domain.DownloadRequest{URL: "https://example.com/video.mp4"},
			wantErr: true,
		},
		{
			name:    "invalid scheme",
			req:     domain.DownloadRequest{URL: "ftp://example.com/a.m3u8"},
			wantErr: true,
		},
		{
			name:    "missing host",
			req:     domain.DownloadRequest{URL: "https:///a.m3u8"},
			wantErr: true,
		},
		{
			name:    "localhost not allowed",
			req:     domain.DownloadRequest{URL: "http://localhost:8080/a.m3u8"},
			wantErr: true,
		},
		{
			name:    "private IP not allowed",
			req:     domain.DownloadRequest{URL: "http://192.168.1.10/a.m3u8"},
			wantErr: true,
		},
		{
			name:    "custom name too long",
			req:     domain.DownloadRequest{URL: "https://example.com/a.m3u8", CustomName: strings.Repeat("x", 300)},
			wantErr: true,
		},
	}

	v := NewRequestValidator(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := v.Validate(&req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestValidator_AllowPrivateHosts(t *testing.T) {
	v := NewRequestValidator(true)
	if !v.IsManifestURL("http://127.0.0.1:8080/a.m3u8") {
		t.Errorf("expected loopback host to be accepted")
	}
	if v.IsManifestURL("http://127.0.0.1:8080/a.ts") {
		t.Errorf("expected non-playlist path to be rejected")
	}
}

func TestRequestValidator_CheckHost(t *testing.T) {
	tests := []struct {
		raw     string
		allowed bool
	}{
		{"https://cdn.example.com/a/seg0.ts", true},
		{"http://93.184.216.34/seg0.ts", true},
		{"http://127.0.0.1:8080/seg0.ts", false},
		{"http://169.254.169.254/latest/meta-data/", false},
		{"http://10.1.2.3/seg0.ts", false},
		{"http://[::1]/seg0.ts", false},
		{"http://LOCALHOST/seg0.ts", false},
	}

	v := NewRequestValidator(false)
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		err = v.CheckHost(u)
		if tt.allowed && err != nil {
			t.Errorf("CheckHost(%q) = %v, want nil", tt.raw, err)
		}
		if !tt.allowed && !errors.Is(err, errpkg.ErrHostNotAllowed) {
			t.Errorf("CheckHost(%q) = %v, want ErrHostNotAllowed", tt.raw, err)
		}
	}

	u, _ := url.Parse("http://127.0.0.1/seg0.ts")
	if err := NewRequestValidator(true).CheckHost(u); err != nil {
		t.Errorf("private hosts allowed but CheckHost returned %v", err)
	}
}
