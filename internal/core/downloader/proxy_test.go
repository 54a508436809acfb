package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

var testAudio = bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64 KiB

func serveAudio(t *testing.T, gotHeaders chan<- http.Header) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotHeaders != nil {
			gotHeaders <- r.Header.Clone()
		}
		http.ServeContent(w, r, "a.m4a", time.Time{}, bytes.NewReader(testAudio))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestStream_PartialContent(t *testing.T) {
	headers := make(chan http.Header, 1)
	upstream := serveAudio(t, headers)

	p := NewProxy(upstream.Client())
	rec := httptest.NewRecorder()
	info := &extractor.AudioInfo{AudioURL: upstream.URL + "/a.m4a", Container: "m4a"}

	if err := p.Stream(context.Background(), rec, "bytes=0-99", info); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("expected 206, got %d", rec.Code)
	}
	wantRange := "bytes 0-99/65536"
	if got := rec.Header().Get("Content-Range"); got != wantRange {
		t.Errorf("Content-Range = %q; want %q", got, wantRange)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), testAudio[:100]) {
		t.Error("body does not match requested range")
	}

	h := <-headers
	if h.Get("Range") != "bytes=0-99" {
		t.Errorf("upstream Range = %q", h.Get("Range"))
	}
	if !strings.HasPrefix(h.Get("User-Agent"), "Mozilla/5.0") {
		t.Errorf("upstream User-Agent = %q", h.Get("User-Agent"))
	}
}

func TestStream_DefaultRange(t *testing.T) {
	headers := make(chan http.Header, 1)
	upstream := serveAudio(t, headers)

	p := NewProxy(upstream.Client())
	rec := httptest.NewRecorder()
	info := &extractor.AudioInfo{AudioURL: upstream.URL, Container: "webm"}

	if err := p.Stream(context.Background(), rec, "", info); err != nil {
		t.Fatal(err)
	}
	if h := <-headers; h.Get("Range") != "bytes=0-" {
		t.Errorf("expected default range bytes=0-, got %q", h.Get("Range"))
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/webm" {
		t.Errorf("Content-Type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), testAudio) {
		t.Error("expected the whole body")
	}
}

func TestStream_FullContentWithoutContentRange(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	err := NewProxy(upstream.Client()).Stream(context.Background(), rec, "bytes=0-", &extractor.AudioInfo{AudioURL: upstream.URL})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Range") != "" {
		t.Error("no Content-Range expected")
	}
	if rec.Body.String() != "hello" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestStream_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	err := NewProxy(upstream.Client()).Stream(context.Background(), rec, "", &extractor.AudioInfo{AudioURL: upstream.URL})

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d", upErr.Status)
	}
	if len(rec.Header()) != 0 || rec.Body.Len() != 0 {
		t.Error("nothing should be written on upstream failure")
	}
}

func TestStream_UnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	err := NewProxy(nil).Stream(context.Background(), httptest.NewRecorder(), "", &extractor.AudioInfo{AudioURL: url})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.Status != 0 {
		t.Errorf("expected no status, got %d", upErr.Status)
	}
}

func TestStream_ClientDisconnectAbortsUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		w.Header().Set("Content-Type", "audio/mp4")
		w.WriteHeader(http.StatusOK)
		chunk := make([]byte, 1024)
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer upstream.Close()

	proxyErr := make(chan error, 1)
	p := NewProxy(upstream.Client())
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyErr <- p.Stream(r.Context(), w, r.Header.Get("Range"), &extractor.AudioInfo{AudioURL: upstream.URL})
	}))
	defer downstream.Close()

	resp, err := http.Get(downstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(resp.Body, make([]byte, 4096)); err != nil {
		t.Fatalf("failed to read first bytes: %v", err)
	}
	resp.Body.Close()
	downstream.CloseClientConnections()

	select {
	case <-upstreamDone:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream fetch kept running after the client disconnected")
	}

	select {
	case err := <-proxyErr:
		var copyErr *CopyError
		if !errors.As(err, &copyErr) {
			t.Errorf("expected *CopyError after disconnect, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("proxy did not return after disconnect")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q; want %q", in, got, want)
		}
	}
}
