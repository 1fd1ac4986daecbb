package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "media-crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfigFile(t, `
max_crawl_depth: 2
max_concurrent_downloads: 4
respect_robots_txt: false
delay_per_host: 250ms
visited_store: badger
thumbnail_width: 128
http_client_settings:
  dialer_timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxCrawlDepth)
	assert.Equal(t, 4, cfg.MaxConcurrentDownloads)
	assert.False(t, cfg.RespectRobotsTxt)
	assert.Equal(t, 250*time.Millisecond, cfg.DelayPerHost)
	assert.Equal(t, VisitedStoreBadger, cfg.VisitedStore)
	assert.Equal(t, 128, cfg.ThumbnailWidth)
	assert.Equal(t, 5*time.Second, cfg.HTTPClientSettings.DialerTimeout)

	// Keys absent from the file keep their defaults
	assert.Equal(t, 300, cfg.ThumbnailHeight)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, "00:00:03", cfg.VideoFrameOffset)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "max_video_size: 1000\n")
	t.Setenv("MAX_VIDEO_SIZE", "2048")
	t.Setenv("MEDIA_CRAWLER_THUMBNAIL_HEIGHT", "64")
	t.Setenv("MEDIA_CRAWLER_ROBOTS_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(2048), cfg.MaxVideoSize)
	assert.Equal(t, 64, cfg.ThumbnailHeight)
	assert.Equal(t, 3*time.Second, cfg.RobotsTimeout)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("MAX_AUDIO_SIZE", "111")
	t.Setenv("MEDIA_CRAWLER_MAX_AUDIO_SIZE", "222")

	cfg, err := Load(writeConfigFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(222), cfg.MaxAudioSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "max_crawl_depth: [unclosed\n"))
	require.Error(t, err)
}

func TestAppConfig_YAML(t *testing.T) {
	cfg := Default()
	data, err := cfg.YAML()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, "@cachefolder", back["cache_dir"])
	assert.Equal(t, 5050, back["port"])
	assert.Equal(t, "10s", back["robots_timeout"])
}

func TestAppConfig_Helpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeoutDuration())
	assert.Equal(t, time.Hour, cfg.CacheExpiryDuration())
	assert.Equal(t, "0.0.0.0:5050", cfg.Addr())
}
