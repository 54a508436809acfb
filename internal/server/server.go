package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/project-dream/dreamaudio/internal/core/config"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
	"golang.org/x/time/rate"
)

// AudioExtractor resolves video IDs through the extraction tool
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, id string) (*extractor.AudioInfo, error)
	Metadata(ctx context.Context, id string) (*extractor.VideoDetails, error)
}

// VideoAPI is the YouTube Data API surface used by the metadata routes
type VideoAPI interface {
	Details(ctx context.Context, id string) (*extractor.VideoDetails, error)
	Search(ctx context.Context, query string, maxResults int64) ([]extractor.VideoSummary, error)
	Trending(ctx context.Context, regionCode string, maxResults int64) ([]extractor.VideoSummary, error)
}

// Streamer relays an extracted audio URL to the client
type Streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, rangeHeader string, info *extractor.AudioInfo) error
}

// Deps are the collaborators the HTTP handlers call into.
// DataAPI is nil when no usable API key is configured.
type Deps struct {
	Extractor AudioExtractor
	DataAPI   VideoAPI
	Proxy     Streamer
	Cache     extractor.DetailsCache
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	VideoID string `json:"videoId,omitempty"`
	Message string `json:"message,omitempty"`

	// UpstreamStatus is the media host's status when it refused a stream
	UpstreamStatus int `json:"upstreamStatus,omitempty"`
}

// Server is the HTTP server for audio extraction and streaming
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	limiter *rate.Limiter
	engine  *gin.Engine
	server  *http.Server
	now     func() time.Time

	stopOnce sync.Once
	stopped  chan struct{} // closed when Stop has drained the server
	stopErr  error
}

// NewServer creates a server and registers its routes
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Cache == nil {
		deps.Cache = extractor.NewMemoryCache(cfg.DetailsTTL)
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		now:     time.Now,
		stopped: make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No timeout for streams
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine = gin.New()

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(loggingMiddleware())
	s.engine.Use(corsMiddleware())
	if s.limiter != nil {
		s.engine.Use(rateLimitMiddleware(s.limiter))
	}

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/audio/:videoId", s.handleAudio)
	api.GET("/stream/:videoId", s.handleStream)
	api.GET("/video/:videoId", s.handleVideo)
	api.GET("/video/:videoId/details", s.handleDetails)
	api.GET("/search", s.handleSearch)
	api.GET("/trending", s.handleTrending)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured port and serves until Stop
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln. After Stop it returns only once in-flight requests,
// streams included, have drained or the Stop deadline passed.
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("Starting dreamaudio server on %s", ln.Addr())
	if s.deps.DataAPI != nil {
		log.Printf("YouTube Data API configured with key: %s", s.cfg.MaskedAPIKey())
	} else {
		log.Printf("YouTube Data API not configured, search and trending are disabled")
	}
	if s.limiter != nil {
		log.Printf("Rate limit: %.1f req/s (burst %d)", s.cfg.RateLimit, s.cfg.RateBurst)
	}

	err := s.server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-s.stopped
	return s.stopErr
}

// Stop gracefully shuts down the server, waiting for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		// streams still open at the deadline are cut
		s.server.Close()
		err = fmt.Errorf("shutdown: %w", err)
	}
	s.stopOnce.Do(func() {
		s.stopErr = err
		close(s.stopped)
	})
	return err
}
