package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/version"
	"github.com/project-dream/dreamaudio/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 3001)")
	ytdlp := flag.String("ytdlp", "", "path to the yt-dlp binary")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dreamaudio-server %s\n", version.Version)
		return
	}

	// Load configuration, environment overrides included
	cfg := config.LoadOrDefault().Server

	// Flags win over config
	if *port > 0 {
		cfg.Port = *port
	}
	if *ytdlp != "" {
		cfg.YtDlpPath = *ytdlp
	}

	srv, err := server.FromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
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
		log.Fatalf("Server error: %v", err)
	}
}
