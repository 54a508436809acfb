package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strings"
)

// Runner executes the extraction tool and returns its stdout
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, args ...string) ([]byte, error) {
	return f(ctx, args...)
}

// YtDlp runs the yt-dlp binary
type YtDlp struct {
	Path string
}

// NewYtDlp returns a runner for the given binary, defaulting to "yt-dlp" on PATH
func NewYtDlp(path string) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{Path: path}
}

func (y *YtDlp) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The deadline is the real cause when the process was killed for it
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return nil, &ExtractionError{
			Details: lastLine(stderr.String()),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}

// Version returns the yt-dlp version string
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	out, err := y.Run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Options shared by every metadata-only invocation
var baseArgs = []string{
	"--dump-single-json",
	"--no-check-certificates",
	"--no-warnings",
	"--skip-download",
	"--no-playlist",
}

// audioFormatExpr prefers m4a because it plays directly on most clients
const audioFormatExpr = "bestaudio[ext=m4a]/bestaudio"

func audioArgs(id string) []string {
	args := append([]string{}, baseArgs...)
	args = append(args, "-f", audioFormatExpr, WatchURL(id))
	return args
}

func metadataArgs(id string) []string {
	args := append([]string{}, baseArgs...)
	return append(args, WatchURL(id))
}

type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
}

func (f ytdlpFormat) toFormat() Format {
	return Format{
		FormatID: f.FormatID,
		URL:      f.URL,
		Ext:      f.Ext,
		ACodec:   f.ACodec,
		VCodec:   f.VCodec,
		ABR:      f.ABR,
	}
}

// ytdlpInfo is the subset of yt-dlp's --dump-single-json output we read
type ytdlpInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	Duration     float64 `json:"duration"`
	Thumbnail    string  `json:"thumbnail"`
	Description  string  `json:"description"`
	UploadDate   string  `json:"upload_date"`
	ViewCount    uint64  `json:"view_count"`
	LikeCount    uint64  `json:"like_count"`
	CommentCount uint64  `json:"comment_count"`

	// Set when yt-dlp resolved the format expression to a single format
	ytdlpFormat

	RequestedFormats []ytdlpFormat `json:"requested_formats"`
	Formats          []ytdlpFormat `json:"formats"`
}

func parseInfo(data []byte) (*ytdlpInfo, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata parse error: %w", err)
	}
	return &info, nil
}

// sources converts the loosely structured output into explicit variants,
// most specific first.
func (i *ytdlpInfo) sources() []FormatSource {
	var sources []FormatSource
	if i.URL != "" {
		sources = append(sources, SingleFormat{Format: i.ytdlpFormat.toFormat()})
	}
	if len(i.RequestedFormats) > 0 {
		sources = append(sources, RequestedFormats(convertFormats(i.RequestedFormats)))
	}
	if len(i.Formats) > 0 {
		sources = append(sources, FormatList(convertFormats(i.Formats)))
	}
	return sources
}

func (i *ytdlpInfo) author() string {
	if i.Uploader != "" {
		return i.Uploader
	}
	return i.Channel
}

func (i *ytdlpInfo) durationSeconds() int {
	return int(math.Round(i.Duration))
}

func convertFormats(in []ytdlpFormat) []Format {
	out := make([]Format, len(in))
	for i, f := range in {
		out[i] = f.toFormat()
	}
	return out
}

// Phrases yt-dlp prints for videos that exist nowhere we can reach
var notFoundMarkers = []string{
	"video unavailable",
	"private video",
	"has been removed",
	"not available in your country",
	"does not exist",
	"is not a valid url",
}

func isNotFound(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, m := range notFoundMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// lastLine returns the last non-empty line, which is where yt-dlp puts ERROR:
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
