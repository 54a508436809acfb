package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/project-dream/dreamaudio/internal/core/resolver"
	"github.com/spf13/cobra"
)

var backendURL string

var resolveCmd = &cobra.Command{
	Use:   "resolve <videoId|url>",
	Short: "Pick a playback source for a video",
	Long: `Resolve a video to one of three playback sources:

  direct    the extracted media URL, for containers players open natively
  stream    the backend's stream proxy
  fallback  a fixed track chosen from the video ID when the backend is down

Examples:
  dreamaudio resolve dQw4w9WgXcQ
  dreamaudio resolve https://youtu.be/dQw4w9WgXcQ --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		r, err := newResolver()
		if err != nil {
			return err
		}

		choice := r.Resolve(context.Background(), resolver.Song{ID: id})
		if wantJSON() {
			return printJSON(choice)
		}
		printChoice(choice)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "extraction backend URL (default: http://localhost:3001)")
	rootCmd.AddCommand(resolveCmd)
}

func newResolver() (*resolver.Resolver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.Client.BackendURL = strings.TrimRight(backendURL, "/")
	}
	return resolver.New(cfg.Client), nil
}

func printChoice(c resolver.Choice) {
	kind := green
	switch c.Kind {
	case resolver.KindStream:
		kind = cyan
	case resolver.KindFallback:
		kind = yellow
	}

	fmt.Printf("%s %s\n", bold.Sprint("Source:"), kind.Sprint(c.Kind))
	fmt.Printf("%s    %s\n", bold.Sprint("URL:"), c.URL)
	if info := c.Info; info != nil {
		fmt.Printf("%s  %s\n", bold.Sprint("Title:"), info.Title)
		fmt.Printf("%s %s\n", bold.Sprint("Author:"), info.Author)
		fmt.Printf("%s %s (%s, %s)\n", bold.Sprint("Length:"),
			resolver.FormatSeconds(info.Duration), info.Container, info.Codecs)
	}
}
