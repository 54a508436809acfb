package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/downloader"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

const testVideoID = "dQw4w9WgXcQ"

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner returns canned yt-dlp output and counts invocations
type stubRunner struct {
	out   string
	err   error
	calls atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.out), nil
}

type stubDataAPI struct {
	details    *extractor.VideoDetails
	err        error
	videos     []extractor.VideoSummary
	gotQuery   string
	gotRegion  string
	gotMax     int64
	detailHits int
}

func (d *stubDataAPI) Details(ctx context.Context, id string) (*extractor.VideoDetails, error) {
	d.detailHits++
	if d.err != nil {
		return nil, d.err
	}
	return d.details, nil
}

func (d *stubDataAPI) Search(ctx context.Context, query string, maxResults int64) ([]extractor.VideoSummary, error) {
	d.gotQuery, d.gotMax = query, maxResults
	return d.videos, d.err
}

func (d *stubDataAPI) Trending(ctx context.Context, region string, maxResults int64) ([]extractor.VideoSummary, error) {
	d.gotRegion, d.gotMax = region, maxResults
	return d.videos, d.err
}

func singleFormatJSON(url, ext string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"title": "Never Gonna Give You Up",
		"uploader": "Rick Astley",
		"duration": 212.0,
		"url": %q,
		"ext": %q,
		"acodec": "mp4a.40.2",
		"vcodec": "none",
		"abr": 129.5
	}`, testVideoID, url, ext)
}

func newTestServer(cfg config.ServerConfig, runner extractor.Runner, api VideoAPI) *Server {
	deps := Deps{
		Extractor: extractor.NewService(runner, 5*time.Second),
		Proxy:     downloader.NewProxy(nil),
	}
	if api != nil {
		deps.DataAPI = api
	}
	return NewServer(cfg, deps)
}

func doRequest(t *testing.T, s *Server, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAudio_Success(t *testing.T) {
	runner := &stubRunner{out: singleFormatJSON("https://media.example/audio.m4a", "m4a")}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	rec := doRequest(t, s, "/api/audio/"+testVideoID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	want := map[string]any{
		"success":   true,
		"audioUrl":  "https://media.example/audio.m4a",
		"container": "m4a",
		"codecs":    "mp4a.40.2",
		"quality":   "best",
		"title":     "Never Gonna Give You Up",
		"author":    "Rick Astley",
		"videoId":   testVideoID,
		"duration":  float64(212),
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v; want %v", k, body[k], v)
		}
	}
	if _, err := time.Parse(time.RFC3339, body["extractedAt"].(string)); err != nil {
		t.Errorf("extractedAt is not a timestamp: %v", body["extractedAt"])
	}
}

func TestAudio_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		runner     *stubRunner
		wantStatus int
		wantCalls  int32
		wantError  string
	}{
		{
			name:       "short id",
			path:       "/api/audio/abc",
			runner:     &stubRunner{},
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
			wantError:  "Invalid YouTube video ID",
		},
		{
			name:       "long id",
			path:       "/api/audio/dQw4w9WgXcQQ",
			runner:     &stubRunner{},
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
			wantError:  "Invalid YouTube video ID",
		},
		{
			name: "unavailable video",
			path: "/api/audio/" + testVideoID,
			runner: &stubRunner{err: &extractor.ExtractionError{
				Details: "ERROR: [youtube] dQw4w9WgXcQ: Video unavailable",
				Err:     errors.New("exit status 1"),
			}},
			wantStatus: http.StatusNotFound,
			wantCalls:  1,
			wantError:  "Could not extract audio URL",
		},
		{
			name:       "no audio-only format",
			path:       "/api/audio/" + testVideoID,
			runner:     &stubRunner{out: `{"formats":[{"url":"https://x/v.mp4","acodec":"mp4a","vcodec":"avc1"}]}`},
			wantStatus: http.StatusNotFound,
			wantCalls:  1,
			wantError:  "Could not extract audio URL",
		},
		{
			name: "tool failure",
			path: "/api/audio/" + testVideoID,
			runner: &stubRunner{err: &extractor.ExtractionError{
				Details: "ERROR: unable to download webpage",
				Err:     errors.New("exit status 1"),
			}},
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
			wantError:  "Failed to extract audio URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(config.DefaultConfig().Server, tt.runner, nil)
			rec := doRequest(t, s, tt.path, nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
			if got := tt.runner.calls.Load(); got != tt.wantCalls {
				t.Errorf("runner calls = %d; want %d", got, tt.wantCalls)
			}
			body := decodeBody(t, rec)
			if body["error"] != tt.wantError {
				t.Errorf("error = %v; want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestAudio_FailureDetails(t *testing.T) {
	runner := &stubRunner{err: &extractor.ExtractionError{
		Details: "ERROR: unable to download webpage",
		Err:     errors.New("exit status 1"),
	}}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	body := decodeBody(t, doRequest(t, s, "/api/audio/"+testVideoID, nil))
	if body["details"] != "ERROR: unable to download webpage" {
		t.Errorf("details = %v", body["details"])
	}
	if body["videoId"] != testVideoID {
		t.Errorf("videoId = %v", body["videoId"])
	}
}

func TestStream_PartialContent(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAB}, 1000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "audio.m4a", time.Time{}, bytes.NewReader(audio))
	}))
	defer upstream.Close()

	runner := &stubRunner{out: singleFormatJSON(upstream.URL+"/audio.m4a", "m4a")}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	rec := doRequest(t, s, "/api/stream/"+testVideoID, http.Header{"Range": {"bytes=0-9"}})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-9/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.Len() != 10 {
		t.Errorf("body length = %d; want 10", rec.Body.Len())
	}
}

func TestStream_UpstreamRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	runner := &stubRunner{out: singleFormatJSON(upstream.URL, "webm")}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	rec := doRequest(t, s, "/api/stream/"+testVideoID, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Failed to fetch audio from source" {
		t.Errorf("error = %v", body["error"])
	}
	if body["upstreamStatus"] != float64(http.StatusForbidden) {
		t.Errorf("upstreamStatus = %v; want 403", body["upstreamStatus"])
	}
	if body["details"] != "upstream fetch failed with status 403" {
		t.Errorf("details = %v", body["details"])
	}
}

func TestStream_InvalidID(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	rec := doRequest(t, s, "/api/stream/nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if runner.calls.Load() != 0 {
		t.Error("runner must not be called for an invalid id")
	}
}

func TestHealth(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("without api key", func(t *testing.T) {
		s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, nil)
		s.now = func() time.Time { return fixed }

		rec := doRequest(t, s, "/api/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["status"] != "healthy" {
			t.Errorf("status = %v", body["status"])
		}
		if body["timestamp"] != "2024-05-01T12:00:00.000Z" {
			t.Errorf("timestamp = %v", body["timestamp"])
		}
		if body["youtubeApiConfigured"] != false {
			t.Errorf("youtubeApiConfigured = %v", body["youtubeApiConfigured"])
		}
		if body["apiKey"] != "not set" {
			t.Errorf("apiKey = %v", body["apiKey"])
		}
		services := body["services"].(map[string]any)
		if services["ytDlp"] != "active" || services["youtubeDataApi"] != "not configured" {
			t.Errorf("services = %v", services)
		}
	})

	t.Run("with api key", func(t *testing.T) {
		cfg := config.DefaultConfig().Server
		cfg.YouTubeAPIKey = "AIzaSyExampleKey123456"
		s := newTestServer(cfg, &stubRunner{}, &stubDataAPI{})

		body := decodeBody(t, doRequest(t, s, "/api/health", nil))
		if body["youtubeApiConfigured"] != true {
			t.Errorf("youtubeApiConfigured = %v", body["youtubeApiConfigured"])
		}
		if body["apiKey"] != "AIzaSyEx..." {
			t.Errorf("apiKey = %v", body["apiKey"])
		}
		if services := body["services"].(map[string]any); services["youtubeDataApi"] != "configured" {
			t.Errorf("youtubeDataApi = %v", services["youtubeDataApi"])
		}
	})
}

func TestDetails_YtDlpFallbackIsCached(t *testing.T) {
	runner := &stubRunner{out: `{
		"title": "Song",
		"channel": "Band",
		"duration": 61.6,
		"thumbnail": "https://i.ytimg.com/x.jpg",
		"description": "short",
		"upload_date": "20240101",
		"view_count": 42
	}`}
	s := newTestServer(config.DefaultConfig().Server, runner, nil)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, s, "/api/video/"+testVideoID+"/details", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["source"] != "yt-dlp" {
			t.Errorf("source = %v", body["source"])
		}
		video := body["video"].(map[string]any)
		if video["artist"] != "Band" || video["duration"] != "62" || video["viewCount"] != float64(42) {
			t.Errorf("video = %v", video)
		}
	}
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("runner calls = %d; want 1 (second request served from cache)", got)
	}
}

func TestDetails_DataAPI(t *testing.T) {
	api := &stubDataAPI{details: &extractor.VideoDetails{ID: testVideoID, Title: "Song", Duration: "PT3M32S", LikeCount: 7}}
	runner := &stubRunner{}
	s := newTestServer(config.DefaultConfig().Server, runner, api)

	body := decodeBody(t, doRequest(t, s, "/api/video/"+testVideoID+"/details", nil))
	if body["source"] != "youtube-api" {
		t.Errorf("source = %v", body["source"])
	}
	if video := body["video"].(map[string]any); video["duration"] != "PT3M32S" {
		t.Errorf("video = %v", video)
	}
	if runner.calls.Load() != 0 {
		t.Error("yt-dlp must not run when the Data API is configured")
	}
}

func TestDetails_NotFound(t *testing.T) {
	api := &stubDataAPI{err: fmt.Errorf("%w: %s", extractor.ErrNotFound, testVideoID)}
	s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, api)

	rec := doRequest(t, s, "/api/video/"+testVideoID+"/details", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestVideo(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, nil)
		rec := doRequest(t, s, "/api/video/"+testVideoID, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("configured", func(t *testing.T) {
		api := &stubDataAPI{details: &extractor.VideoDetails{ID: testVideoID, Title: "Song", Artist: "Band", ViewCount: 10}}
		s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, api)

		rec := doRequest(t, s, "/api/video/"+testVideoID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["title"] != "Song" || body["artist"] != "Band" || body["viewCount"] != float64(10) {
			t.Errorf("body = %v", body)
		}
	})
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		api        *stubDataAPI
		query      string
		wantStatus int
		wantMax    int64
	}{
		{name: "not configured", api: nil, query: "?q=lofi", wantStatus: http.StatusServiceUnavailable},
		{name: "empty query", api: &stubDataAPI{}, query: "?q=%20", wantStatus: http.StatusBadRequest},
		{name: "default max", api: &stubDataAPI{}, query: "?q=lofi", wantStatus: http.StatusOK, wantMax: 20},
		{name: "explicit max", api: &stubDataAPI{}, query: "?q=lofi&maxResults=5", wantStatus: http.StatusOK, wantMax: 5},
		{name: "clamped max", api: &stubDataAPI{}, query: "?q=lofi&maxResults=500", wantStatus: http.StatusOK, wantMax: 50},
		{name: "api failure", api: &stubDataAPI{err: errors.New("quota exceeded")}, query: "?q=lofi", wantStatus: http.StatusInternalServerError, wantMax: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var api VideoAPI
			if tt.api != nil {
				api = tt.api
			}
			s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, api)

			rec := doRequest(t, s, "/api/search"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantMax != 0 && tt.api.gotMax != tt.wantMax {
				t.Errorf("maxResults = %d; want %d", tt.api.gotMax, tt.wantMax)
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeBody(t, rec)
				if body["query"] != "lofi" || body["totalResults"] != float64(0) {
					t.Errorf("body = %v", body)
				}
			}
		})
	}
}

func TestTrending(t *testing.T) {
	api := &stubDataAPI{videos: []extractor.VideoSummary{{ID: testVideoID, Title: "Song"}}}
	s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, api)

	body := decodeBody(t, doRequest(t, s, "/api/trending", nil))
	if api.gotRegion != "US" {
		t.Errorf("region = %q; want US", api.gotRegion)
	}
	if body["regionCode"] != "US" || body["totalResults"] != float64(1) {
		t.Errorf("body = %v", body)
	}

	doRequest(t, s, "/api/trending?regionCode=gb&maxResults=3", nil)
	if api.gotRegion != "GB" || api.gotMax != 3 {
		t.Errorf("region = %q, max = %d", api.gotRegion, api.gotMax)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s := newTestServer(cfg, &stubRunner{}, nil)

	if rec := doRequest(t, s, "/api/audio/bad", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("first request: expected 400, got %d", rec.Code)
	}
	if rec := doRequest(t, s, "/api/audio/bad", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", rec.Code)
	}
	if rec := doRequest(t, s, "/api/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health must bypass the limiter, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, nil)

	rec := doRequest(t, s, "/api/health", http.Header{"X-Request-Id": {"abc-123"}})
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q; want the caller's id", got)
	}

	rec = doRequest(t, s, "/api/health", nil)
	if len(rec.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("expected a generated UUID, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(config.DefaultConfig().Server, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/stream/"+testVideoID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

// blockingStreamer holds a stream open until released
type blockingStreamer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStreamer) Stream(ctx context.Context, w http.ResponseWriter, rangeHeader string, info *extractor.AudioInfo) error {
	w.Header().Set("Content-Type", info.ContentType())
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()
	close(b.entered)
	<-b.release
	_, err := io.WriteString(w, "done")
	return err
}

func TestStop_DrainsInFlightStream(t *testing.T) {
	streamer := &blockingStreamer{entered: make(chan struct{}), release: make(chan struct{})}
	runner := &stubRunner{out: singleFormatJSON("https://media.example/a.m4a", "m4a")}
	s := NewServer(config.DefaultConfig().Server, Deps{
		Extractor: extractor.NewService(runner, 5*time.Second),
		Proxy:     streamer,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	type result struct {
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream/" + testVideoID)
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		got <- result{string(body), err}
	}()

	select {
	case <-streamer.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Stop(ctx)

	select {
	case err := <-served:
		t.Fatalf("Serve returned %v while a stream was still open", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(streamer.release)

	r := <-got
	if r.err != nil || r.body != "done" {
		t.Errorf("stream = %q, %v; want full body", r.body, r.err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve = %v; want nil after graceful stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the stream drained")
	}
}
