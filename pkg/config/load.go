package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every key for namespaced environment overrides.
// The bare names (CACHE_DIR, PORT, ...) are honoured as well.
const EnvPrefix = "MEDIA_CRAWLER"

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An explicit path must exist;
// with an empty path "media-crawler.yaml" is searched in the working directory
// and the user's config directory.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("media-crawler")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "media-crawler"))
	}

	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}
}

func defaultValues() map[string]any {
	d := Default()
	h := d.HTTPClientSettings
	return map[string]any{
		"user_agent":                d.UserAgent,
		"max_crawl_depth":           d.MaxCrawlDepth,
		"max_concurrent_requests":   d.MaxConcurrentRequests,
		"request_timeout":           d.RequestTimeout,
		"respect_robots_txt":        d.RespectRobotsTxt,
		"robots_timeout":            d.RobotsTimeout,
		"delay_per_host":            d.DelayPerHost,
		"max_retries":               d.MaxRetries,
		"initial_retry_delay":       d.InitialRetryDelay,
		"max_retry_delay":           d.MaxRetryDelay,
		"max_page_size_bytes":       d.MaxPageSizeBytes,
		"semaphore_acquire_timeout": d.SemaphoreAcquireTimeout,
		"visited_store":             d.VisitedStore,
		"max_concurrent_downloads":  d.MaxConcurrentDownloads,
		"max_image_size":            d.MaxImageSize,
		"max_video_size":            d.MaxVideoSize,
		"max_audio_size":            d.MaxAudioSize,
		"thumbnail_width":           d.ThumbnailWidth,
		"thumbnail_height":          d.ThumbnailHeight,
		"thumbnail_quality":         d.ThumbnailQuality,
		"video_frame_offset":        d.VideoFrameOffset,
		"ffprobe_path":              d.FFprobePath,
		"ffmpeg_path":               d.FFmpegPath,
		"cache_dir":                 d.CacheDir,
		"cache_expiry":              d.CacheExpiry,
		"sweep_interval":            d.SweepInterval,
		"host":                      d.Host,
		"port":                      d.Port,
		"log_level":                 d.LogLevel,
		"log_format":                d.LogFormat,

		"http_client_settings.max_idle_conns":          h.MaxIdleConns,
		"http_client_settings.max_idle_conns_per_host": h.MaxIdleConnsPerHost,
		"http_client_settings.idle_conn_timeout":       h.IdleConnTimeout,
		"http_client_settings.tls_handshake_timeout":   h.TLSHandshakeTimeout,
		"http_client_settings.expect_continue_timeout": h.ExpectContinueTimeout,
		"http_client_settings.dialer_timeout":          h.DialerTimeout,
		"http_client_settings.dialer_keep_alive":       h.DialerKeepAlive,
	}
}

// bindEnvVars binds MEDIA_CRAWLER_<KEY> first and the bare <KEY> second.
// Nested keys only get the prefixed form.
func bindEnvVars(v *viper.Viper) error {
	for key := range defaultValues() {
		upper := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := []string{key, EnvPrefix + "_" + upper}
		if !strings.Contains(key, ".") {
			names = append(names, upper)
		}
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	return nil
}

// YAML renders the configuration as a YAML document.
func (c *AppConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
