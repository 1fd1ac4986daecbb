package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0.0 seconds"},
		{12.34, "12.3 seconds"},
		{59.94, "59.9 seconds"},
		{60, "1 min 0 sec"},
		{125.7, "2 min 5 sec"},
		{3599, "59 min 59 sec"},
		{3600, "1 hr 0 min"},
		{7384, "2 hr 3 min"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}

func TestStatsManager_UpdateFromPage(t *testing.T) {
	sm := NewStatsManager(testLogger())

	sm.UpdateFromPage(&models.CrawlPage{URL: "a", StatusCode: 200, MediaURLs: []string{"x.png", "y.mp4"}})
	sm.UpdateFromPage(&models.CrawlPage{URL: "b", StatusCode: 404, ErrorMessage: "HTTP 404"})
	sm.UpdateFromPage(&models.CrawlPage{URL: "c", ErrorMessage: "disallowed by robots.txt"})

	stats := sm.Stats()
	assert.Equal(t, 3, stats.TotalPages)
	assert.Equal(t, 1, stats.SuccessfulPages)
	assert.Equal(t, 2, stats.FailedPages)
	assert.Equal(t, 2, stats.TotalMedia)
	assert.False(t, stats.StartTime.IsZero())
	assert.True(t, stats.EndTime.IsZero())
}

func TestStatsManager_SetMediaCounts(t *testing.T) {
	sm := NewStatsManager(testLogger())
	sm.SetMediaCounts([]string{
		"https://x.com/a.png", "https://x.com/b.JPG", "https://x.com/c.mp4",
		"https://x.com/d.mp3", "https://x.com/e.wav", "https://x.com/render?id=1",
	})

	stats := sm.Stats()
	assert.Equal(t, 6, stats.TotalMedia)
	assert.Equal(t, 2, stats.ImageCount)
	assert.Equal(t, 1, stats.VideoCount)
	assert.Equal(t, 2, stats.AudioCount)
}

func TestStatsManager_FinalizeOnce(t *testing.T) {
	sm := NewStatsManager(testLogger())
	sm.Finalize()
	first := sm.Stats().EndTime
	time.Sleep(5 * time.Millisecond)
	sm.Finalize()
	assert.Equal(t, first, sm.Stats().EndTime)

	sm.Reset()
	assert.True(t, sm.Stats().EndTime.IsZero())
	assert.Zero(t, sm.Stats().TotalPages)
}

func TestFormatStats(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := models.CrawlStats{
		TotalPages:      3,
		SuccessfulPages: 2,
		FailedPages:     1,
		TotalMedia:      4,
		ImageCount:      3,
		AudioCount:      1,
		StartTime:       start,
		EndTime:         start.Add(90 * time.Second),
	}

	got := FormatStats(stats, time.Now())

	assert.Equal(t, PageStats{Total: 3, Successful: 2, Failed: 1, SuccessRate: 66.7}, got.Pages)
	assert.Equal(t, MediaStats{Total: 4, Images: 3, Audio: 1}, got.Media)
	assert.Equal(t, 90.0, got.Timing.DurationSeconds)
	assert.Equal(t, "1 min 30 sec", got.Timing.DurationFormatted)
	assert.Equal(t, 0.03, got.Timing.PagesPerSecond)
}

func TestFormatStats_Empty(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := FormatStats(models.CrawlStats{StartTime: start, EndTime: start}, start)

	assert.Zero(t, got.Pages.SuccessRate)
	assert.Zero(t, got.Timing.PagesPerSecond)
	assert.Equal(t, "0.0 seconds", got.Timing.DurationFormatted)
}
