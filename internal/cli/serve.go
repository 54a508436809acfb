package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveAPIKey    string
	serveYtDlp     string
	serveRedisAddr string
	serveRateLimit float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audio extraction and stream proxy server",
	Long: `Start the HTTP server that extracts audio with yt-dlp and proxies streams.

Examples:
  dreamaudio serve              # Start server on port 3001
  dreamaudio serve -p 8080      # Start server on port 8080
  dreamaudio serve --rate 5     # Allow 5 requests per second

API Endpoints:
  GET /api/health                  # Server health and Data API status
  GET /api/audio/:videoId          # Extract a playable audio URL
  GET /api/stream/:videoId         # Proxy the audio stream (Range aware)
  GET /api/video/:videoId/details  # Video metadata
  GET /api/video/:videoId          # Basic Data API metadata
  GET /api/search?q=               # Search music videos
  GET /api/trending                # Trending music videos`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, &cfg.Server)
		return runServer(cfg.Server)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 3001)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "YouTube Data API key")
	serveCmd.Flags().StringVar(&serveYtDlp, "ytdlp", "", "path to the yt-dlp binary")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis", "", "Redis address for the details cache")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate", 0, "requests per second, 0 for unlimited")

	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags lets explicit flags win over env and config values
func applyServeFlags(cmd *cobra.Command, cfg *config.ServerConfig) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("api-key") {
		cfg.YouTubeAPIKey = serveAPIKey
	}
	if flags.Changed("ytdlp") {
		cfg.YtDlpPath = serveYtDlp
	}
	if flags.Changed("redis") {
		cfg.RedisAddr = serveRedisAddr
	}
	if flags.Changed("rate") {
		cfg.RateLimit = serveRateLimit
		if cfg.RateBurst <= 0 {
			cfg.RateBurst = max(1, int(serveRateLimit*2))
		}
	}
}

func runServer(cfg config.ServerConfig) error {
	if !config.Exists() && configFile == "" {
		log.Printf("No config file found, using defaults. Run 'dreamaudio init' to create one.")
	}

	srv, err := server.FromConfig(context.Background(), cfg)
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	// Start returns after Stop has drained in-flight streams
	if err := srv.Start(); err != nil {
		return err
	}
	return nil
}
