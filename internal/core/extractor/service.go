package extractor

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const (
	unknown          = "Unknown"
	defaultContainer = "m4a"
	defaultCodec     = "unknown"
	defaultQuality   = "best"

	// DefaultExtractTimeout bounds one yt-dlp run when no timeout is configured
	DefaultExtractTimeout = 45 * time.Second
)

// Service resolves video identifiers into playable audio through yt-dlp
type Service struct {
	runner  Runner
	timeout time.Duration
	now     func() time.Time
}

// NewService creates an extraction service. A zero timeout uses DefaultExtractTimeout.
func NewService(runner Runner, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &Service{
		runner:  runner,
		timeout: timeout,
		now:     time.Now,
	}
}

// ExtractAudio resolves id to the best audio-only stream. The returned URL
// is short-lived and must not be stored.
func (s *Service) ExtractAudio(ctx context.Context, id string) (*AudioInfo, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	info, err := s.dump(ctx, id, audioArgs(id))
	if err != nil {
		return nil, err
	}

	format, err := SelectAudio(info.sources()...)
	if err != nil {
		return nil, err
	}

	result := &AudioInfo{
		Success:     true,
		AudioURL:    format.URL,
		Quality:     defaultQuality,
		Container:   orDefault(format.Ext, defaultContainer),
		Codecs:      orDefault(format.ACodec, defaultCodec),
		Duration:    info.durationSeconds(),
		Title:       orDefault(info.Title, unknown),
		Author:      orDefault(info.author(), unknown),
		VideoID:     id,
		ExtractedAt: s.now().UTC(),
	}
	return result, nil
}

// Metadata returns descriptive details using yt-dlp alone. It backs the
// details route when no Data API key is configured.
func (s *Service) Metadata(ctx context.Context, id string) (*VideoDetails, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	info, err := s.dump(ctx, id, metadataArgs(id))
	if err != nil {
		return nil, err
	}

	details := &VideoDetails{
		ID:           id,
		Title:        orDefault(info.Title, unknown),
		Artist:       orDefault(info.author(), unknown),
		Duration:     strconv.Itoa(info.durationSeconds()),
		Thumbnail:    info.Thumbnail,
		Description:  Truncate(info.Description, 300),
		PublishedAt:  info.UploadDate,
		ViewCount:    info.ViewCount,
		LikeCount:    info.LikeCount,
		CommentCount: info.CommentCount,
	}
	return details, nil
}

func (s *Service) dump(ctx context.Context, id string, args []string) (*ytdlpInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(ctx, args...)
	if err != nil {
		var extErr *ExtractionError
		if !errors.As(err, &extErr) {
			extErr = &ExtractionError{Err: err}
		}
		extErr.VideoID = id
		extErr.notFound = isNotFound(extErr.Details)
		return nil, extErr
	}

	info, err := parseInfo(out)
	if err != nil {
		return nil, &ExtractionError{VideoID: id, Err: err}
	}
	return info, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
