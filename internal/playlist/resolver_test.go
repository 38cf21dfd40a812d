package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
	"github.com/veranemoloko/hls-downloader/internal/retry"
	"github.com/veranemoloko/hls-downloader/internal/validation"
	"github.com/veranemoloko/hls-downloader/internal/worker"
)

func newTestResolver() *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.DefaultPolicy()
	policy.Delay = time.Millisecond
	fetcher := worker.NewSegmentFetcher(worker.Options{Policy: policy}, logger)
	return NewResolver(fetcher, logger)
}

func serveFiles(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func mediaPlaylist(prefix string, n int) string {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n"
	for i := 0; i < n; i++ {
		body += fmt.Sprintf("#EXTINF:10,\n%s%d.ts\n", prefix, i)
	}
	return body + "#EXT-X-ENDLIST\n"
}

func TestResolver_MediaPlaylist(t *testing.T) {
	server := serveFiles(t, map[string]string{
		"/v/index.m3u8": mediaPlaylist("seg", 4),
	})

	segments, err := newTestResolver().Resolve(context.Background(), server.URL+"/v/index.m3u8", nil)
	require.NoError(t, err)
	require.Len(t, segments, 4)
	for i, s := range segments {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, fmt.Sprintf("%s/v/seg%d.ts", server.URL, i), s.URL)
	}
}

func TestResolver_MasterSelectsFirstVariant(t *testing.T) {
	server := serveFiles(t, map[string]string{
		"/master.m3u8": "#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=500000\nlow/index.m3u8\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=3000000\nhigh/index.m3u8\n",
		"/low/index.m3u8":  mediaPlaylist("l", 3),
		"/high/index.m3u8": mediaPlaylist("h", 5),
	})

	segments, err := newTestResolver().Resolve(context.Background(), server.URL+"/master.m3u8", nil)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, server.URL+"/low/l0.ts", segments[0].URL)
}

func TestResolver_Errors(t *testing.T) {
	server := serveFiles(t, map[string]string{
		"/empty.m3u8":   "",
		"/nosegs.m3u8":  "#EXTM3U\n#EXT-X-ENDLIST\n",
		"/garbage.m3u8": "<html>not a playlist</html>",
		"/outer.m3u8":   "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\ninner.m3u8\n",
		"/inner.m3u8":   "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nmedia.m3u8\n",
		"/media.m3u8":   mediaPlaylist("s", 1),
	})

	tests := []struct {
		path   string
		reason string
	}{
		{"/missing.m3u8", errpkg.ReasonUnreachable},
		{"/empty.m3u8", errpkg.ReasonEmpty},
		{"/nosegs.m3u8", errpkg.ReasonEmpty},
		{"/garbage.m3u8", errpkg.ReasonMalformed},
		{"/outer.m3u8", errpkg.ReasonTooDeep},
	}

	r := newTestResolver()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), server.URL+tt.path, nil)
			var manErr *errpkg.ManifestError
			require.True(t, errors.As(err, &manErr), "got %v", err)
			assert.Equal(t, tt.reason, manErr.Reason)
		})
	}
}

func TestResolver_RetriesManifestFetch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, mediaPlaylist("s", 2))
	}))
	defer server.Close()

	var attempts []int
	segments, err := newTestResolver().Resolve(context.Background(), server.URL+"/i.m3u8", func(attempt int, err error) {
		attempts = append(attempts, attempt)
	})
	require.NoError(t, err)
	assert.Len(t, segments, 2)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestResolver_KeepsByteRanges(t *testing.T) {
	server := serveFiles(t, map[string]string{
		"/v/index.m3u8": "#EXTM3U\n" +
			"#EXTINF:10,\n#EXT-X-BYTERANGE:1000@0\nall.ts\n" +
			"#EXTINF:10,\n#EXT-X-BYTERANGE:1000\nall.ts\n",
	})

	segments, err := newTestResolver().Resolve(context.Background(), server.URL+"/v/index.m3u8", nil)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, int64(0), segments[0].Offset)
	assert.Equal(t, int64(1000), segments[0].Length)
	assert.Equal(t, int64(1000), segments[1].Offset)
	assert.Equal(t, int64(1000), segments[1].Length)
	assert.Equal(t, server.URL+"/v/all.ts", segments[1].URL)
}

func TestResolver_RejectsForbiddenSegmentHosts(t *testing.T) {
	var variantHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meta.m3u8":
			_, _ = io.WriteString(w, "#EXTM3U\n#EXTINF:10,\nhttp://169.254.169.254/latest/meta-data/\n")
		case "/master.m3u8":
			_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nlow/index.m3u8\n")
		case "/low/index.m3u8":
			variantHits++
			_, _ = io.WriteString(w, mediaPlaylist("s", 1))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.DefaultPolicy()
	policy.Delay = time.Millisecond
	fetcher := worker.NewSegmentFetcher(worker.Options{Policy: policy}, logger)
	r := NewResolver(fetcher, logger, WithHostCheck(validation.NewRequestValidator(false).CheckHost))

	for _, p := range []string{"/meta.m3u8", "/master.m3u8"} {
		_, err := r.Resolve(context.Background(), server.URL+p, nil)
		var manErr *errpkg.ManifestError
		require.True(t, errors.As(err, &manErr), "%s: got %v", p, err)
		assert.Equal(t, errpkg.ReasonMalformed, manErr.Reason)
		assert.ErrorIs(t, err, errpkg.ErrHostNotAllowed)
	}
	assert.Zero(t, variantHits)
}
