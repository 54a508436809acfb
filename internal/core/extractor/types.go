package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// VideoIDLength is the exact length of a YouTube video identifier
const VideoIDLength = 11

var (
	// ErrInvalidVideoID is returned before any network or process call
	// when the identifier is malformed.
	ErrInvalidVideoID = errors.New("invalid YouTube video ID")

	// ErrNotFound indicates the video is missing, private or region-blocked
	ErrNotFound = errors.New("video not found")

	// ErrNoAudio indicates no audio-only format could be selected
	ErrNoAudio = errors.New("no playable audio found")
)

// ExtractionError wraps a failed yt-dlp invocation
type ExtractionError struct {
	VideoID string
	Details string // trimmed stderr of the tool
	Err     error

	notFound bool
}

func (e *ExtractionError) Error() string {
	msg := "extraction failed"
	if e.VideoID != "" {
		msg += " for " + e.VideoID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Details != "" {
		msg += " | " + e.Details
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match unavailable videos
func (e *ExtractionError) Is(target error) bool {
	return target == ErrNotFound && e.notFound
}

// Message returns the most useful single line for API error bodies
func (e *ExtractionError) Message() string {
	if e.Details != "" {
		return e.Details
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// ValidateID checks the identifier shape. It never touches the network.
func ValidateID(id string) error {
	if len(id) != VideoIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidVideoID, id)
	}
	return nil
}

// WatchURL returns the canonical watch page for a video
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Format is one encoding variant reported by the extraction tool.
// Formats carry time-limited upstream URLs and must never be persisted.
type Format struct {
	FormatID string
	URL      string
	Ext      string // container, e.g. "m4a", "webm"
	ACodec   string // "" when unknown, "none" when there is no audio
	VCodec   string // "" when unknown, "none" when there is no video
	ABR      float64
}

// HasAudio reports whether the format carries an audio track
func (f Format) HasAudio() bool {
	c := strings.ToLower(strings.TrimSpace(f.ACodec))
	return c != "" && c != "none"
}

// AudioOnly reports whether the format has no video track
func (f Format) AudioOnly() bool {
	c := strings.ToLower(strings.TrimSpace(f.VCodec))
	return c == "" || c == "none"
}

// AudioInfo is a resolved, ready-to-play audio stream plus metadata
type AudioInfo struct {
	Success     bool      `json:"success"`
	AudioURL    string    `json:"audioUrl"`
	Quality     string    `json:"quality"`
	Container   string    `json:"container"`
	Codecs      string    `json:"codecs"`
	Duration    int       `json:"duration"` // seconds
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	VideoID     string    `json:"videoId"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// ContentType maps the container to the MIME type served by the stream proxy
func (a *AudioInfo) ContentType() string {
	return ContainerContentType(a.Container)
}

// ContainerContentType maps a container name to an audio MIME type
func ContainerContentType(container string) string {
	if strings.EqualFold(container, "webm") {
		return "audio/webm"
	}
	return "audio/mp4"
}

// VideoDetails is descriptive metadata for a video
type VideoDetails struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Duration     string `json:"duration"` // ISO-8601 ("PT4M13S") or seconds
	Thumbnail    string `json:"thumbnail"`
	Description  string `json:"description"`
	PublishedAt  string `json:"publishedAt"`
	ViewCount    uint64 `json:"viewCount"`
	LikeCount    uint64 `json:"likeCount"`
	CommentCount uint64 `json:"commentCount"`
}

// VideoSummary is one entry of a search or trending listing
type VideoSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Thumbnail   string `json:"thumbnail"`
	PublishedAt string `json:"publishedAt"`
	Description string `json:"description,omitempty"`
	ViewCount   uint64 `json:"viewCount,omitempty"`
	LikeCount   uint64 `json:"likeCount,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Truncate cuts s to max runes, marking the cut with "..."
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
		"\r", "",
	)
	urlRegex := regexp.MustCompile(`https?://[^\s]+`)
	result := urlRegex.ReplaceAllString(name, "")
	result = replacer.Replace(result)

	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")

	spaceRegex := regexp.MustCompile(`\s+`)
	result = spaceRegex.ReplaceAllString(result, " ")

	// 60 runes keeps multi-byte titles under the usual 255 byte limit
	const maxRunes = 60
	runes := []rune(result)
	if len(runes) > maxRunes {
		result = string(runes[:maxRunes])
	}

	return strings.TrimSpace(result)
}
