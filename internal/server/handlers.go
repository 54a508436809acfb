package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/project-dream/dreamaudio/internal/core/downloader"
	"github.com/project-dream/dreamaudio/internal/core/extractor"
)

const (
	sourceDataAPI = "youtube-api"
	sourceYtDlp   = "yt-dlp"

	defaultMaxResults = 20
	maxMaxResults     = 50
	defaultRegionCode = "US"

	// Same layout as JavaScript's Date.toISOString, which clients parse
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

func (s *Server) handleHealth(c *gin.Context) {
	configured := s.deps.DataAPI != nil
	dataAPIStatus := "not configured"
	if configured {
		dataAPIStatus = "configured"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":               "healthy",
		"timestamp":            s.now().UTC().Format(isoMillis),
		"youtubeApiConfigured": configured,
		"apiKey":               s.cfg.MaskedAPIKey(),
		"services": gin.H{
			"ytDlp":          "active",
			"youtubeDataApi": dataAPIStatus,
		},
	})
}

func (s *Server) handleAudio(c *gin.Context) {
	id := c.Param("videoId")
	if !validID(c, id) {
		return
	}

	log.Printf("Extracting audio for video: %s", id)
	info, err := s.deps.Extractor.ExtractAudio(c.Request.Context(), id)
	if err != nil {
		log.Printf("Audio extraction failed for %s: %v", id, err)
		writeExtractionError(c, id, err, "Could not extract audio URL", "Failed to extract audio URL")
		return
	}

	log.Printf("Audio extracted: %s (%s)", info.Title, info.Container)
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleStream(c *gin.Context) {
	id := c.Param("videoId")
	if !validID(c, id) {
		return
	}

	ctx := c.Request.Context()
	info, err := s.deps.Extractor.ExtractAudio(ctx, id)
	if err != nil {
		log.Printf("Stream extraction failed for %s: %v", id, err)
		writeExtractionError(c, id, err, "Could not extract audio URL for streaming", "Failed to start stream")
		return
	}

	log.Printf("Streaming: %s (%s)", info.Title, info.Container)
	err = s.deps.Proxy.Stream(ctx, c.Writer, c.GetHeader("Range"), info)
	if err == nil {
		return
	}

	// Headers are gone once the copy started; the connection is all we can drop
	var copyErr *downloader.CopyError
	if errors.As(err, &copyErr) {
		if ctx.Err() != nil {
			log.Printf("Client disconnected from %s after %s", id, downloader.FormatBytes(copyErr.Written))
		} else {
			log.Printf("Stream for %s interrupted: %v", id, err)
		}
		c.Abort()
		return
	}

	var upErr *downloader.UpstreamError
	if errors.As(err, &upErr) {
		log.Printf("Failed to fetch audio for %s: %v", id, err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:          "Failed to fetch audio from source",
			Details:        upErr.Error(),
			VideoID:        id,
			UpstreamStatus: upErr.Status,
		})
		return
	}

	log.Printf("Streaming failed for %s: %v", id, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "Failed to start stream",
		Details: err.Error(),
		VideoID: id,
	})
}

func (s *Server) handleDetails(c *gin.Context) {
	id := c.Param("videoId")
	if !validID(c, id) {
		return
	}

	source := sourceYtDlp
	if s.deps.DataAPI != nil {
		source = sourceDataAPI
	}

	ctx := c.Request.Context()
	if details, ok := s.deps.Cache.Get(ctx, id); ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "video": details, "source": source})
		return
	}

	var (
		details *extractor.VideoDetails
		err     error
	)
	if s.deps.DataAPI != nil {
		details, err = s.deps.DataAPI.Details(ctx, id)
	} else {
		details, err = s.deps.Extractor.Metadata(ctx, id)
	}
	if err != nil {
		log.Printf("Video details failed for %s: %v", id, err)
		if errors.Is(err, extractor.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Video not found", VideoID: id})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get video details",
			Details: errorDetails(err),
			VideoID: id,
		})
		return
	}

	s.deps.Cache.Set(ctx, id, details)
	c.JSON(http.StatusOK, gin.H{"success": true, "video": details, "source": source})
}

func (s *Server) handleVideo(c *gin.Context) {
	if !s.requireDataAPI(c) {
		return
	}
	id := c.Param("videoId")
	if !validID(c, id) {
		return
	}

	details, err := s.deps.DataAPI.Details(c.Request.Context(), id)
	if err != nil {
		log.Printf("Error fetching video metadata for %s: %v", id, err)
		if errors.Is(err, extractor.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Video not found", VideoID: id})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch video metadata", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          details.ID,
		"title":       details.Title,
		"artist":      details.Artist,
		"duration":    details.Duration,
		"thumbnail":   details.Thumbnail,
		"viewCount":   details.ViewCount,
		"publishedAt": details.PublishedAt,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	if !s.requireDataAPI(c) {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Search query is required"})
		return
	}

	log.Printf("Searching YouTube for: %s", query)
	videos, err := s.deps.DataAPI.Search(c.Request.Context(), query, maxResultsParam(c))
	if err != nil {
		log.Printf("Search failed for %q: %v", query, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Search failed", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"videos":       videos,
		"query":        query,
		"totalResults": len(videos),
	})
}

func (s *Server) handleTrending(c *gin.Context) {
	if !s.requireDataAPI(c) {
		return
	}

	region := strings.ToUpper(c.DefaultQuery("regionCode", defaultRegionCode))
	log.Printf("Getting trending music videos for region: %s", region)
	videos, err := s.deps.DataAPI.Trending(c.Request.Context(), region, maxResultsParam(c))
	if err != nil {
		log.Printf("Trending fetch failed for %s: %v", region, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to get trending videos", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"videos":       videos,
		"regionCode":   region,
		"totalResults": len(videos),
	})
}

func (s *Server) requireDataAPI(c *gin.Context) bool {
	if s.deps.DataAPI != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":   "YouTube Data API not configured",
		"message": "Set youtube_api_key in config.yml or the YOUTUBE_API_KEY environment variable",
		"videos":  []extractor.VideoSummary{},
	})
	return false
}

func validID(c *gin.Context, id string) bool {
	if err := extractor.ValidateID(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid YouTube video ID", VideoID: id})
		return false
	}
	return true
}

// writeExtractionError maps extraction failures onto HTTP statuses
func writeExtractionError(c *gin.Context, id string, err error, notFoundMsg, failMsg string) {
	switch {
	case errors.Is(err, extractor.ErrInvalidVideoID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid YouTube video ID", VideoID: id})
	case errors.Is(err, extractor.ErrNoAudio), errors.Is(err, extractor.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: notFoundMsg, Details: errorDetails(err), VideoID: id})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: failMsg, Details: errorDetails(err), VideoID: id})
	}
}

func errorDetails(err error) string {
	var extErr *extractor.ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Message()
	}
	return err.Error()
}

func maxResultsParam(c *gin.Context) int64 {
	n, err := strconv.ParseInt(c.Query("maxResults"), 10, 64)
	if err != nil || n <= 0 {
		return defaultMaxResults
	}
	if n > maxMaxResults {
		return maxMaxResults
	}
	return n
}
