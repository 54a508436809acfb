package extractor

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// musicCategoryID is the YouTube "Music" video category
const musicCategoryID = "10"

var videoParts = []string{"snippet", "contentDetails", "statistics"}

// DataAPI reads public metadata from the YouTube Data API v3
type DataAPI struct {
	svc *youtube.Service
}

// NewDataAPI creates a Data API client authenticated with an API key.
// Extra options (endpoint, HTTP client) are appended after the key.
func NewDataAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DataAPI, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Data API client: %w", err)
	}
	return &DataAPI{svc: svc}, nil
}

// Details returns full metadata for one video, ErrNotFound when the API
// knows nothing about it.
func (d *DataAPI) Details(ctx context.Context, id string) (*VideoDetails, error) {
	resp, err := d.svc.Videos.List(videoParts).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item := resp.Items[0]
	details := &VideoDetails{ID: item.Id}
	if sn := item.Snippet; sn != nil {
		details.Title = sn.Title
		details.Artist = sn.ChannelTitle
		details.Thumbnail = thumbnailURL(sn.Thumbnails)
		details.Description = Truncate(sn.Description, 500)
		details.PublishedAt = sn.PublishedAt
	}
	if cd := item.ContentDetails; cd != nil {
		details.Duration = cd.Duration
	}
	if st := item.Statistics; st != nil {
		details.ViewCount = st.ViewCount
		details.LikeCount = st.LikeCount
		details.CommentCount = st.CommentCount
	}
	return details, nil
}

// Search finds music videos matching query
func (d *DataAPI) Search(ctx context.Context, query string, maxResults int64) ([]VideoSummary, error) {
	resp, err := d.svc.Search.List([]string{"snippet"}).
		Q(query + " music").
		Type("video").
		MaxResults(maxResults).
		VideoCategoryId(musicCategoryID).
		Order("relevance").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search.list failed: %w", err)
	}

	videos := make([]VideoSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, VideoSummary{
			ID:          item.Id.VideoId,
			Title:       item.Snippet.Title,
			Artist:      item.Snippet.ChannelTitle,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt: item.Snippet.PublishedAt,
			Description: Truncate(item.Snippet.Description, 150),
		})
	}
	return videos, nil
}

// Trending lists the most popular music videos for a region
func (d *DataAPI) Trending(ctx context.Context, regionCode string, maxResults int64) ([]VideoSummary, error) {
	resp, err := d.svc.Videos.List(videoParts).
		Chart("mostPopular").
		VideoCategoryId(musicCategoryID).
		MaxResults(maxResults).
		RegionCode(regionCode).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list chart failed: %w", err)
	}

	videos := make([]VideoSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		v := VideoSummary{
			ID:          item.Id,
			Title:       item.Snippet.Title,
			Artist:      item.Snippet.ChannelTitle,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt: item.Snippet.PublishedAt,
		}
		if item.Statistics != nil {
			v.ViewCount = item.Statistics.ViewCount
			v.LikeCount = item.Statistics.LikeCount
		}
		if item.ContentDetails != nil {
			v.Duration = item.ContentDetails.Duration
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	if t.Medium != nil && t.Medium.Url != "" {
		return t.Medium.Url
	}
	if t.Default != nil {
		return t.Default.Url
	}
	return ""
}
