package cli

import (
	"fmt"
	"os"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/version"
	"github.com/spf13/cobra"
)

var (
	configFile string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "dreamaudio",
	Short: "YouTube audio extraction server and playback resolver",
	Long: `dreamaudio extracts playable audio from YouTube videos with yt-dlp,
proxies the streams for players that cannot open them directly, and
resolves songs to a playable source even when the backend is down.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: "+config.SavePath()+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprintf("Error: %v", err))
	}
	return err
}

// loadConfig reads --config when given, else the default location
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.LoadOrDefault(), nil
}
