package server

import (
	"context"
	"log"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/downloader"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

// FromConfig wires the production collaborators: yt-dlp extraction, the
// Data API when a usable key is set, the stream proxy and the details cache.
func FromConfig(ctx context.Context, cfg config.ServerConfig) (*Server, error) {
	ytdlp := extractor.NewYtDlp(cfg.YtDlpPath)
	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if v, err := ytdlp.Version(versionCtx); err != nil {
		log.Printf("Warning: yt-dlp not usable at %q, extraction will fail: %v", ytdlp.Path, err)
	} else {
		log.Printf("Using yt-dlp %s", v)
	}
	cancel()

	deps := Deps{
		Extractor: extractor.NewService(ytdlp, cfg.ExtractTimeout),
		Proxy:     downloader.NewProxy(downloader.NewHTTPClient(cfg.UpstreamTimeout)),
		Cache:     extractor.NewDetailsCache(ctx, cfg.RedisAddr, cfg.DetailsTTL),
	}

	if cfg.APIKeyConfigured() {
		api, err := extractor.NewDataAPI(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		deps.DataAPI = api
	} else if cfg.YouTubeAPIKey != "" {
		log.Printf("YouTube API key %s looks like a placeholder, Data API disabled", cfg.MaskedAPIKey())
	}

	return NewServer(cfg, deps), nil
}
