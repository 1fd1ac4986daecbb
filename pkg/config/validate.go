package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	def := Default()

	if strings.TrimSpace(c.UserAgent) == "" {
		warnings = append(warnings, "user_agent is empty, using the default user agent")
		c.UserAgent = def.UserAgent
	}

	// MaxCrawlDepth
	if c.MaxCrawlDepth < 0 {
		warnings = append(warnings, "max_crawl_depth cannot be negative, setting to 0 (seed page only)")
		c.MaxCrawlDepth = 0
	}

	// MaxConcurrentRequests
	if c.MaxConcurrentRequests <= 0 {
		warnings = append(warnings, "max_concurrent_requests should be > 0, defaulting to 5")
		c.MaxConcurrentRequests = def.MaxConcurrentRequests
	}

	// RequestTimeout
	if c.RequestTimeout <= 0 {
		warnings = append(warnings, "request_timeout should be > 0, defaulting to 30 seconds")
		c.RequestTimeout = def.RequestTimeout
	}

	if c.RobotsTimeout <= 0 {
		c.RobotsTimeout = def.RobotsTimeout
	}

	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling per-host delay")
		c.DelayPerHost = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = def.MaxPageSizeBytes
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = def.SemaphoreAcquireTimeout
	}

	// VisitedStore is the only setting without a safe fallback
	switch c.VisitedStore {
	case VisitedStoreMemory, VisitedStoreBadger:
	case "":
		c.VisitedStore = VisitedStoreMemory
	default:
		return warnings, fmt.Errorf("%w: unknown visited_store %q (want %q or %q)",
			utils.ErrConfigValidation, c.VisitedStore, VisitedStoreMemory, VisitedStoreBadger)
	}

	// MaxConcurrentDownloads
	if c.MaxConcurrentDownloads <= 0 {
		warnings = append(warnings, "max_concurrent_downloads should be > 0, defaulting to 10")
		c.MaxConcurrentDownloads = def.MaxConcurrentDownloads
	}

	// Size ceilings
	warnings = append(warnings, defaultSize("max_image_size", &c.MaxImageSize, def.MaxImageSize)...)
	warnings = append(warnings, defaultSize("max_video_size", &c.MaxVideoSize, def.MaxVideoSize)...)
	warnings = append(warnings, defaultSize("max_audio_size", &c.MaxAudioSize, def.MaxAudioSize)...)

	// Thumbnails
	if c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		warnings = append(warnings, "thumbnail_width and thumbnail_height should be > 0, defaulting to 300x300")
		c.ThumbnailWidth = def.ThumbnailWidth
		c.ThumbnailHeight = def.ThumbnailHeight
	}
	if c.ThumbnailQuality <= 0 || c.ThumbnailQuality > 100 {
		c.ThumbnailQuality = def.ThumbnailQuality
	}
	if c.VideoFrameOffset == "" {
		c.VideoFrameOffset = def.VideoFrameOffset
	}
	if c.FFprobePath == "" {
		c.FFprobePath = def.FFprobePath
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = def.FFmpegPath
	}

	// Cache
	if c.CacheDir == "" {
		warnings = append(warnings, "cache_dir is empty, defaulting to '@cachefolder'")
		c.CacheDir = CacheFolderPlaceholder
	}
	if c.CacheExpiry < 0 {
		warnings = append(warnings, "cache_expiry cannot be negative, defaulting to 3600 seconds")
		c.CacheExpiry = def.CacheExpiry
	}
	if c.SweepInterval == "" {
		c.SweepInterval = def.SweepInterval
	}

	// Server
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port <= 0 || c.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("port %d is out of range, defaulting to 5050", c.Port))
		c.Port = def.Port
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

func defaultSize(key string, v *int64, def int64) []string {
	if *v > 0 {
		return nil
	}
	*v = def
	return []string{fmt.Sprintf("%s should be > 0, defaulting to %d bytes", key, def)}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
