package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetcher opens audio sources for local playback or saving
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. A nil client uses NewHTTPClient defaults.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Fetcher{client: client, userAgent: DefaultUserAgent}
}

// Open starts a GET for url and returns its body with the content length,
// -1 when unknown. The caller closes the body; cancelling ctx aborts it.
func (f *Fetcher) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, &UpstreamError{Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		resp.Body.Close()
		return nil, 0, &UpstreamError{Status: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}
