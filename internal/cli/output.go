package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
	"golang.org/x/term"
)

var (
	bold       = color.New(color.Bold)
	green      = color.New(color.FgGreen)
	yellow     = color.New(color.FgYellow)
	cyan       = color.New(color.FgCyan)
	faint      = color.New(color.Faint)
	errorColor = color.New(color.FgRed)
)

// wantJSON reports whether output should be machine readable: either
// requested, or stdout is not a terminal.
func wantJSON() bool {
	return jsonOutput || !term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseVideoID accepts a bare ID or a YouTube watch, share, shorts or
// embed URL and returns the ID.
func parseVideoID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	id := arg

	if strings.Contains(arg, "://") {
		u, err := url.Parse(arg)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		host = strings.TrimPrefix(host, "m.")
		path := strings.Trim(u.Path, "/")

		switch {
		case host == "youtu.be":
			id = path
		case strings.HasSuffix(host, "youtube.com") && path == "watch":
			id = u.Query().Get("v")
		case strings.HasSuffix(host, "youtube.com"):
			for _, prefix := range []string{"shorts/", "embed/", "live/"} {
				if strings.HasPrefix(path, prefix) {
					id = strings.TrimPrefix(path, prefix)
				}
			}
		default:
			return "", fmt.Errorf("not a YouTube URL: %s", arg)
		}
	}

	if err := extractor.ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}
