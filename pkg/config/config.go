package config

import (
	"net"
	"strconv"
	"time"
)

// CacheFolderPlaceholder in cache_dir resolves to the per-user cache directory
const CacheFolderPlaceholder = "@cachefolder"

// Visited store backends
const (
	VisitedStoreMemory = "memory"
	VisitedStoreBadger = "badger"
)

// AppConfig holds the global application configuration.
// Keys mirror the environment variable names (CACHE_DIR -> cache_dir).
type AppConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Crawling
	MaxCrawlDepth           int           `yaml:"max_crawl_depth" mapstructure:"max_crawl_depth"`
	MaxConcurrentRequests   int           `yaml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	RequestTimeout          int           `yaml:"request_timeout" mapstructure:"request_timeout"` // Seconds
	RespectRobotsTxt        bool          `yaml:"respect_robots_txt" mapstructure:"respect_robots_txt"`
	RobotsTimeout           time.Duration `yaml:"robots_timeout" mapstructure:"robots_timeout"`
	DelayPerHost            time.Duration `yaml:"delay_per_host" mapstructure:"delay_per_host"` // 0 disables per-host politeness
	MaxRetries              int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialRetryDelay       time.Duration `yaml:"initial_retry_delay" mapstructure:"initial_retry_delay"`
	MaxRetryDelay           time.Duration `yaml:"max_retry_delay" mapstructure:"max_retry_delay"`
	MaxPageSizeBytes        int64         `yaml:"max_page_size_bytes" mapstructure:"max_page_size_bytes"`
	SemaphoreAcquireTimeout time.Duration `yaml:"semaphore_acquire_timeout" mapstructure:"semaphore_acquire_timeout"`
	VisitedStore            string        `yaml:"visited_store" mapstructure:"visited_store"` // "memory" or "badger"

	// Downloads
	MaxConcurrentDownloads int   `yaml:"max_concurrent_downloads" mapstructure:"max_concurrent_downloads"`
	MaxImageSize           int64 `yaml:"max_image_size" mapstructure:"max_image_size"` // Bytes
	MaxVideoSize           int64 `yaml:"max_video_size" mapstructure:"max_video_size"`
	MaxAudioSize           int64 `yaml:"max_audio_size" mapstructure:"max_audio_size"`

	// Thumbnails and media inspection
	ThumbnailWidth   int    `yaml:"thumbnail_width" mapstructure:"thumbnail_width"`
	ThumbnailHeight  int    `yaml:"thumbnail_height" mapstructure:"thumbnail_height"`
	ThumbnailQuality int    `yaml:"thumbnail_quality" mapstructure:"thumbnail_quality"`
	VideoFrameOffset string `yaml:"video_frame_offset" mapstructure:"video_frame_offset"`
	FFprobePath      string `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	FFmpegPath       string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`

	// Cache
	CacheDir      string `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheExpiry   int    `yaml:"cache_expiry" mapstructure:"cache_expiry"`     // Seconds
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval"` // Go duration or "<n>d"

	// Server
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`

	// Logging
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings" mapstructure:"http_client_settings"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty" mapstructure:"max_idle_conns"`                   // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty" mapstructure:"max_idle_conns_per_host"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty" mapstructure:"idle_conn_timeout"`             // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty" mapstructure:"tls_handshake_timeout"`     // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty" mapstructure:"expect_continue_timeout"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty" mapstructure:"dialer_timeout"`                   // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty" mapstructure:"dialer_keep_alive"`             // TCP keep-alive interval
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() AppConfig {
	return AppConfig{
		UserAgent:               "MediaCrawler/1.0 (+https://github.com/yourusername/media-crawler)",
		MaxCrawlDepth:           0,
		MaxConcurrentRequests:   5,
		RequestTimeout:          30,
		RespectRobotsTxt:        true,
		RobotsTimeout:           10 * time.Second,
		DelayPerHost:            0,
		MaxRetries:              0,
		InitialRetryDelay:       time.Second,
		MaxRetryDelay:           30 * time.Second,
		MaxPageSizeBytes:        50 * 1024 * 1024,
		SemaphoreAcquireTimeout: 30 * time.Second,
		VisitedStore:            VisitedStoreMemory,
		MaxConcurrentDownloads:  10,
		MaxImageSize:            10 * 1024 * 1024,
		MaxVideoSize:            100 * 1024 * 1024,
		MaxAudioSize:            50 * 1024 * 1024,
		ThumbnailWidth:          300,
		ThumbnailHeight:         300,
		ThumbnailQuality:        85,
		VideoFrameOffset:        "00:00:03",
		FFprobePath:             "ffprobe",
		FFmpegPath:              "ffmpeg",
		CacheDir:                CacheFolderPlaceholder,
		CacheExpiry:             3600,
		SweepInterval:           "10m",
		Host:                    "0.0.0.0",
		Port:                    5050,
		LogLevel:                "info",
		LogFormat:               "text",
		HTTPClientSettings: HTTPClientConfig{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			DialerTimeout:         15 * time.Second,
			DialerKeepAlive:       30 * time.Second,
		},
	}
}

// RequestTimeoutDuration returns the per-request timeout
func (c *AppConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// CacheExpiryDuration returns the session expiry
func (c *AppConfig) CacheExpiryDuration() time.Duration {
	return time.Duration(c.CacheExpiry) * time.Second
}

// Addr returns host:port for the HTTP server
func (c *AppConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
