package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/project-dream/dreamaudio/internal/core/resolver"
	"github.com/spf13/cobra"
)

var (
	maxResults int
	regionCode string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search music videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResolver()
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		return printSongs(r.Search(context.Background(), query, maxResults))
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "List trending music videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResolver()
		if err != nil {
			return err
		}
		return printSongs(r.Trending(context.Background(), strings.ToUpper(regionCode), maxResults))
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <videoId|url>",
	Short: "Show video metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		r, err := newResolver()
		if err != nil {
			return err
		}

		song := r.Details(context.Background(), id)
		if song == nil {
			return fmt.Errorf("no details available for %s", id)
		}
		if wantJSON() {
			return printJSON(song)
		}

		fmt.Println(bold.Sprint(song.Title))
		fmt.Printf("  %s\n", cyan.Sprint(song.Artist))
		fmt.Printf("  %s · %s views\n", song.Duration, song.ViewCount)
		if song.Thumbnail != "" {
			fmt.Printf("  %s\n", faint.Sprint(song.Thumbnail))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&maxResults, "max", "n", 20, "maximum number of results")
	trendingCmd.Flags().IntVarP(&maxResults, "max", "n", 20, "maximum number of results")
	trendingCmd.Flags().StringVarP(&regionCode, "region", "r", "US", "ISO 3166-1 region code")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(detailsCmd)
}

const maxTitleWidth = 64

func printSongs(songs []resolver.Song) error {
	if wantJSON() {
		return printJSON(songs)
	}
	if len(songs) == 0 {
		fmt.Println(faint.Sprint("No results (is the backend running with a Data API key?)"))
		return nil
	}

	for i, s := range songs {
		// titles are often CJK, so cut by display width
		title := runewidth.Truncate(s.Title, maxTitleWidth, "...")
		fmt.Printf("%2d. %s %s\n", i+1, bold.Sprint(title), faint.Sprintf("[%s]", s.ID))
		line := "    " + cyan.Sprint(s.Artist)
		if s.Duration != "" && s.Duration != "Unknown" {
			line += " · " + s.Duration
		}
		if s.ViewCount != "" {
			line += " · " + s.ViewCount + " views"
		}
		fmt.Println(line)
	}
	return nil
}
