package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

// UpstreamError means the media host could not be reached or refused the
// request. Status is 0 when no response was received.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream fetch failed with status %d", e.Status)
	}
	return fmt.Sprintf("upstream fetch failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// CopyError is a failure after the response headers were sent. The
// response cannot be replaced at that point, only abandoned.
type CopyError struct {
	Written int64
	Err     error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", e.Written, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Proxy relays an upstream audio URL to a downstream HTTP response
type Proxy struct {
	client    *http.Client
	userAgent string
}

// NewProxy creates a stream proxy. A nil client uses NewHTTPClient defaults.
func NewProxy(client *http.Client) *Proxy {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Proxy{
		client:    client,
		userAgent: DefaultUserAgent,
	}
}

// Stream fetches info.AudioURL and copies it to w as it arrives. ctx should
// be the downstream request's context so a client disconnect aborts the
// upstream fetch. rangeHeader is forwarded as-is, "bytes=0-" when empty.
//
// Errors returned before anything was written are *UpstreamError or a
// request construction error; afterwards only *CopyError is returned.
func (p *Proxy) Stream(ctx context.Context, w http.ResponseWriter, rangeHeader string, info *extractor.AudioInfo) error {
	if rangeHeader == "" {
		rangeHeader = "bytes=0-"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.AudioURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Range", rangeHeader)

	resp, err := p.client.Do(req)
	if err != nil {
		return &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return &UpstreamError{Status: resp.StatusCode}
	}

	h := w.Header()
	h.Set("Content-Type", info.ContentType())
	if resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	status := http.StatusOK
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		h.Set("Content-Range", cr)
		status = http.StatusPartialContent
	}
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)

	written, err := copyStream(ctx, w, resp.Body)
	if err != nil {
		return &CopyError{Written: written, Err: err}
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// copyStream relays src to dst chunk by chunk, flushing each chunk so the
// player can start before the upstream finishes.
func copyStream(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, copyBufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
