package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/resolver"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the extraction backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResolver()
		if err != nil {
			return err
		}

		ctx := context.Background()
		healthy := r.Available(ctx)
		status := r.Status()

		var report *resolver.HealthReport
		if healthy {
			// the probe result is cached, this call is only for the details
			report, _ = r.Client().Health(ctx)
		}

		if wantJSON() {
			return printJSON(map[string]any{
				"healthy":   status.Healthy,
				"lastCheck": status.LastCheck,
				"backend":   report,
			})
		}

		if !healthy {
			fmt.Printf("%s %s\n", bold.Sprint("Backend:"), errorColor.Sprint("unavailable"))
			fmt.Println(faint.Sprint("Playback will use fallback tracks."))
			return nil
		}

		fmt.Printf("%s %s\n", bold.Sprint("Backend:"), green.Sprint("healthy"))
		fmt.Printf("%s %s\n", bold.Sprint("Checked:"), status.LastCheck.Format(time.RFC3339))
		if report != nil {
			fmt.Printf("%s   %s\n", bold.Sprint("yt-dlp:"), report.Services.YtDlp)
			dataAPI := yellow.Sprint(report.Services.YouTubeDataAPI)
			if report.YouTubeAPIConfigured {
				dataAPI = green.Sprint(report.Services.YouTubeDataAPI)
			}
			fmt.Printf("%s %s (key %s)\n", bold.Sprint("Data API:"), dataAPI, report.APIKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
