// Package resolver decides how a client should play a song: straight from
// the extracted media URL, through the backend's stream proxy, or from a
// fixed pool of fallback tracks when the backend is down.
package resolver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

// Kind is the playback strategy of a Choice
type Kind string

const (
	KindDirect   Kind = "direct"
	KindStream   Kind = "stream"
	KindFallback Kind = "fallback"
)

// Containers most players open without the proxy
var directContainers = map[string]bool{
	"mp3":  true,
	"m4a":  true,
	"mp4":  true,
	"aac":  true,
	"mpeg": true,
}

// Song is what the caller knows about a track before resolving it
type Song struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Duration     string `json:"duration"`
	Thumbnail    string `json:"thumbnail"`
	ChannelTitle string `json:"channelTitle"`
	ViewCount    string `json:"viewCount,omitempty"`
}

// Choice is the resolved playback source. Info is set only when the
// backend extracted the audio during this resolution.
type Choice struct {
	Kind Kind                 `json:"type"`
	URL  string               `json:"url"`
	Info *extractor.AudioInfo `json:"info,omitempty"`
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHTTPClient replaces the client used for backend calls
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithClock injects the time source used by the health cache
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// Resolver turns songs into playback choices. It never fails: every
// backend error degrades to a less direct strategy.
type Resolver struct {
	client *Client
	health *Health
	pool   []string

	httpClient *http.Client
	now        func() time.Time
}

// New creates a resolver for the backend described by cfg
func New(cfg config.ClientConfig, opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	r.pool = cfg.FallbackPool
	if len(r.pool) == 0 {
		r.pool = config.DefaultFallbackPool
	}

	r.client = NewClient(strings.TrimRight(cfg.BackendURL, "/"), r.httpClient, Timeouts{
		Health:  cfg.HealthTimeout,
		Extract: cfg.ExtractTimeout,
		Details: cfg.DetailsTimeout,
		Search:  cfg.SearchTimeout,
	})
	r.health = NewHealth(r.client.Ping, cfg.HealthTTL, r.now)
	return r
}

// Client exposes the underlying backend client
func (r *Resolver) Client() *Client {
	return r.client
}

// Resolve picks the playback source for song. The health check runs
// before extraction, and an unhealthy backend is not contacted again.
func (r *Resolver) Resolve(ctx context.Context, song Song) Choice {
	if !r.health.Check(ctx) {
		log.Printf("Backend unavailable, using fallback audio for %s", song.ID)
		return Choice{Kind: KindFallback, URL: FallbackURL(song.ID, r.pool)}
	}

	info, err := r.client.Audio(ctx, song.ID)
	if err != nil {
		log.Printf("Audio extraction for %s failed, using stream proxy: %v", song.ID, err)
		return Choice{Kind: KindStream, URL: r.client.StreamURL(song.ID)}
	}

	if directContainers[strings.ToLower(info.Container)] {
		return Choice{Kind: KindDirect, URL: info.AudioURL, Info: info}
	}
	return Choice{Kind: KindStream, URL: r.client.StreamURL(song.ID), Info: info}
}

// Status reports the cached backend health without probing
func (r *Resolver) Status() Status {
	return r.health.Status()
}

// Available probes the backend if the cached result has expired
func (r *Resolver) Available(ctx context.Context) bool {
	return r.health.Check(ctx)
}

// Details returns display metadata for a video, nil when the backend is
// unavailable or has nothing.
func (r *Resolver) Details(ctx context.Context, id string) *Song {
	if !r.health.Check(ctx) {
		return nil
	}
	d, err := r.client.Details(ctx, id)
	if err != nil {
		log.Printf("Failed to get video details for %s: %v", id, err)
		return nil
	}
	return &Song{
		ID:           d.ID,
		Title:        d.Title,
		Artist:       d.Artist,
		Duration:     FormatDuration(d.Duration),
		Thumbnail:    d.Thumbnail,
		ChannelTitle: d.Artist,
		ViewCount:    FormatViewCount(d.ViewCount),
	}
}

// Search finds songs through the backend, empty when it is unavailable
func (r *Resolver) Search(ctx context.Context, query string, maxResults int) []Song {
	if !r.health.Check(ctx) {
		return []Song{}
	}
	videos, err := r.client.Search(ctx, query, maxResults)
	if err != nil {
		log.Printf("Search for %q failed: %v", query, err)
		return []Song{}
	}
	songs := make([]Song, 0, len(videos))
	for _, v := range videos {
		songs = append(songs, Song{
			ID:           v.ID,
			Title:        v.Title,
			Artist:       v.Artist,
			Duration:     "Unknown", // search results carry no duration
			Thumbnail:    v.Thumbnail,
			ChannelTitle: v.Artist,
		})
	}
	return songs
}

// Trending lists popular songs for a region, empty when unavailable
func (r *Resolver) Trending(ctx context.Context, regionCode string, maxResults int) []Song {
	if !r.health.Check(ctx) {
		return []Song{}
	}
	videos, err := r.client.Trending(ctx, regionCode, maxResults)
	if err != nil {
		log.Printf("Trending for %s failed: %v", regionCode, err)
		return []Song{}
	}
	songs := make([]Song, 0, len(videos))
	for _, v := range videos {
		songs = append(songs, Song{
			ID:           v.ID,
			Title:        v.Title,
			Artist:       v.Artist,
			Duration:     FormatDuration(v.Duration),
			Thumbnail:    v.Thumbnail,
			ChannelTitle: v.Artist,
			ViewCount:    FormatViewCount(v.ViewCount),
		})
	}
	return songs
}

// FallbackURL maps id onto pool by summing its character codes. The
// mapping is a hash: the same id always gets the same track.
func FallbackURL(id string, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	sum := 0
	for _, c := range id {
		sum += int(c)
	}
	return pool[sum%len(pool)]
}
