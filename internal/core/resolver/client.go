package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/extractor"
	"github.com/tidwall/gjson"
)

// maxErrorBody caps how much of a failed response is read for its message
const maxErrorBody = 64 * 1024

// APIError is a non-2xx reply from the backend
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("backend returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// HealthReport is the body of GET /api/health
type HealthReport struct {
	Status               string    `json:"status"`
	Timestamp            time.Time `json:"timestamp"`
	YouTubeAPIConfigured bool      `json:"youtubeApiConfigured"`
	APIKey               string    `json:"apiKey"`
	Services             struct {
		YtDlp          string `json:"ytDlp"`
		YouTubeDataAPI string `json:"youtubeDataApi"`
	} `json:"services"`
}

// Timeouts bounds each kind of backend call independently
type Timeouts struct {
	Health  time.Duration
	Extract time.Duration
	Details time.Duration
	Search  time.Duration
}

// Client talks to the extraction backend over HTTP
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
}

// NewClient creates a backend client. baseURL has no trailing slash.
func NewClient(baseURL string, httpClient *http.Client, timeouts Timeouts) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, http: httpClient, timeouts: timeouts}
}

// StreamURL is the proxied stream for id. Building it needs no request.
func (c *Client) StreamURL(id string) string {
	return c.baseURL + "/api/stream/" + url.PathEscape(id)
}

// Health fetches the backend health report
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var report HealthReport
	if err := c.getJSON(ctx, c.timeouts.Health, "/api/health", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Ping is Health without the body, usable as a ProbeFunc
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Audio asks the backend to extract a playable audio URL
func (c *Client) Audio(ctx context.Context, id string) (*extractor.AudioInfo, error) {
	var info extractor.AudioInfo
	if err := c.getJSON(ctx, c.timeouts.Extract, "/api/audio/"+url.PathEscape(id), &info); err != nil {
		return nil, err
	}
	if !info.Success || info.AudioURL == "" {
		return nil, fmt.Errorf("no audio URL in response for %s", id)
	}
	return &info, nil
}

// Details fetches descriptive metadata for a video
func (c *Client) Details(ctx context.Context, id string) (*extractor.VideoDetails, error) {
	var resp struct {
		Success bool                    `json:"success"`
		Video   *extractor.VideoDetails `json:"video"`
	}
	if err := c.getJSON(ctx, c.timeouts.Details, "/api/video/"+url.PathEscape(id)+"/details", &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Video == nil {
		return nil, fmt.Errorf("no video details available for %s", id)
	}
	return resp.Video, nil
}

// Search runs a music search on the backend
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]extractor.VideoSummary, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(maxResults))
	return c.listVideos(ctx, "/api/search?"+q.Encode())
}

// Trending lists popular music videos for a region
func (c *Client) Trending(ctx context.Context, regionCode string, maxResults int) ([]extractor.VideoSummary, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("regionCode", regionCode)
	return c.listVideos(ctx, "/api/trending?"+q.Encode())
}

func (c *Client) listVideos(ctx context.Context, path string) ([]extractor.VideoSummary, error) {
	var resp struct {
		Success bool                     `json:"success"`
		Videos  []extractor.VideoSummary `json:"videos"`
	}
	if err := c.getJSON(ctx, c.timeouts.Search, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("backend reported failure for %s", path)
	}
	return resp.Videos, nil
}

// getJSON performs a GET bounded by timeout and decodes a 2xx body into v.
// Error bodies are read loosely since their shape varies by route.
func (c *Client) getJSON(ctx context.Context, timeout time.Duration, path string, v any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		if gjson.ValidBytes(body) {
			apiErr.Message = gjson.GetBytes(body, "error").String()
			apiErr.Details = gjson.GetBytes(body, "details").String()
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
