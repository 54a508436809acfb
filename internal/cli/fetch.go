package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/project-dream/dreamaudio/internal/core/downloader"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
	"github.com/project-dream/dreamaudio/internal/core/playback"
	"github.com/project-dream/dreamaudio/internal/core/resolver"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <videoId|url>",
	Short: "Resolve a video and save its audio to a file",
	Long: `Resolve a video like 'resolve' does, then play the chosen source into a file.

When the backend is down the fallback track is saved instead.

Examples:
  dreamaudio fetch dQw4w9WgXcQ
  dreamaudio fetch dQw4w9WgXcQ -o song.m4a`,
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runFetch(ctx, r, id, fetchOutput)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output filename (default: <title>.<ext>)")
	rootCmd.AddCommand(fetchCmd)
}

// fileSink defers creating the output file until the source is known
type fileSink struct {
	file    *os.File
	written atomic.Int64
	total   atomic.Int64
}

func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	s.written.Add(int64(n))
	return n, err
}

func runFetch(ctx context.Context, r *resolver.Resolver, id, output string) error {
	sink := &fileSink{}
	player := playback.NewPlayer(r, downloader.NewFetcher(nil), sink)
	player.Subscribe(playback.ObserverFunc(func(e playback.Event) {
		if e.Kind == playback.EventPlaying {
			sink.total.Store(e.Total)
		}
	}))

	choice := player.Load(ctx, resolver.Song{ID: id})
	if !wantJSON() {
		printChoice(choice)
	}

	if output == "" {
		output = outputName(id, choice)
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	sink.file = file

	playErr := player.Play(ctx)
	if playErr == nil {
		playErr = waitFetch(ctx, player, sink, output, choice)
	}
	closeErr := file.Close()

	if playErr != nil {
		os.Remove(output)
		return fmt.Errorf("fetch failed: %w", playErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write file: %w", closeErr)
	}

	if wantJSON() {
		return printJSON(map[string]any{
			"file":   output,
			"bytes":  sink.written.Load(),
			"choice": choice,
		})
	}
	fmt.Printf("%s %s (%s)\n", green.Sprint("Saved"), output, downloader.FormatBytes(sink.written.Load()))
	return nil
}

// waitFetch blocks until playback ends, showing progress on a terminal
func waitFetch(ctx context.Context, player *playback.Player, sink *fileSink, output string, choice resolver.Choice) error {
	if !wantJSON() && term.IsTerminal(int(os.Stderr.Fd())) {
		title := output
		if choice.Info != nil && choice.Info.Title != "" {
			title = choice.Info.Title
		}
		model := newFetchModel(ctx, player, sink, title, string(choice.Kind))
		final, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
		if err != nil && ctx.Err() == nil {
			player.Stop()
			return err
		}
		if m, ok := final.(fetchModel); ok && m.cancelled {
			player.Stop()
			return context.Canceled
		}
	}

	err := player.Wait(ctx)
	if err == nil {
		// a cancelled fetch is never reported as saved
		err = ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		player.Stop()
	}
	return err
}

// outputName derives a filename from the extracted title and container
func outputName(id string, c resolver.Choice) string {
	name, ext := id, "m4a"
	switch {
	case c.Info != nil:
		if t := extractor.SanitizeFilename(c.Info.Title); t != "" {
			name = t
		}
		if c.Info.Container != "" {
			ext = c.Info.Container
		}
	case c.Kind == resolver.KindFallback:
		ext = "mp3"
	}
	return name + "." + ext
}
