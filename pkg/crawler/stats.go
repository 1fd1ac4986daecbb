package crawler

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
)

// StatsManager accumulates per-page results of one crawl into CrawlStats
type StatsManager struct {
	mu    sync.Mutex
	stats models.CrawlStats
	log   *logrus.Entry
}

// FormattedStats is the presentation form of CrawlStats returned to clients
type FormattedStats struct {
	Pages  PageStats   `json:"pages"`
	Media  MediaStats  `json:"media"`
	Timing TimingStats `json:"timing"`
}

type PageStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

type MediaStats struct {
	Total  int `json:"total"`
	Images int `json:"images"`
	Videos int `json:"videos"`
	Audio  int `json:"audio"`
}

type TimingStats struct {
	DurationSeconds   float64 `json:"duration_seconds"`
	DurationFormatted string  `json:"duration_formatted"`
	PagesPerSecond    float64 `json:"pages_per_second"`
}

// NewStatsManager returns a manager whose clock starts now
func NewStatsManager(log *logrus.Entry) *StatsManager {
	sm := &StatsManager{log: log.WithField("component", "stats")}
	sm.Reset()
	return sm
}

// Reset zeroes every counter and restarts the clock
func (sm *StatsManager) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stats = models.CrawlStats{StartTime: time.Now()}
}

// UpdateFromPage counts one attempted page and the media it referenced
func (sm *StatsManager) UpdateFromPage(page *models.CrawlPage) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats.TotalPages++
	if page.Successful() {
		sm.stats.SuccessfulPages++
		sm.log.Debugf("Crawled %s (depth %d): %d media URLs", page.URL, page.Depth, len(page.MediaURLs))
	} else {
		sm.stats.FailedPages++
		sm.log.Debugf("Failed %s (depth %d): %s", page.URL, page.Depth, page.ErrorMessage)
	}
	sm.stats.TotalMedia += len(page.MediaURLs)
}

// SetMediaCounts replaces the media totals with the de-duplicated result set,
// split by the type each URL's extension suggests.
func (sm *StatsManager) SetMediaCounts(mediaURLs []string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats.TotalMedia = len(mediaURLs)
	sm.stats.ImageCount, sm.stats.VideoCount, sm.stats.AudioCount = 0, 0, 0
	for _, u := range mediaURLs {
		switch parse.MediaTypeForURL(u) {
		case models.MediaTypeImage:
			sm.stats.ImageCount++
		case models.MediaTypeVideo:
			sm.stats.VideoCount++
		case models.MediaTypeAudio:
			sm.stats.AudioCount++
		case models.MediaTypeNone:
		}
	}
}

// Finalize stamps the end time. Later calls keep the first stamp.
func (sm *StatsManager) Finalize() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.stats.EndTime.IsZero() {
		sm.stats.EndTime = time.Now()
	}
}

// Stats returns a copy of the current counters
func (sm *StatsManager) Stats() models.CrawlStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.stats
}

// Formatted returns the counters with derived rates and a readable duration.
// Before Finalize the duration runs up to now.
func (sm *StatsManager) Formatted() FormattedStats {
	return FormatStats(sm.Stats(), time.Now())
}

// FormatStats derives the presentation form of stats. now stands in for the
// end time of an unfinished crawl.
func FormatStats(stats models.CrawlStats, now time.Time) FormattedStats {
	end := stats.EndTime
	if end.IsZero() {
		end = now
	}
	duration := 0.0
	if !stats.StartTime.IsZero() {
		duration = end.Sub(stats.StartTime).Seconds()
	}

	pagesPerSecond := 0.0
	if duration > 0 {
		pagesPerSecond = round(float64(stats.TotalPages)/duration, 2)
	}

	return FormattedStats{
		Pages: PageStats{
			Total:       stats.TotalPages,
			Successful:  stats.SuccessfulPages,
			Failed:      stats.FailedPages,
			SuccessRate: percentage(stats.SuccessfulPages, stats.TotalPages),
		},
		Media: MediaStats{
			Total:  stats.TotalMedia,
			Images: stats.ImageCount,
			Videos: stats.VideoCount,
			Audio:  stats.AudioCount,
		},
		Timing: TimingStats{
			DurationSeconds:   duration,
			DurationFormatted: FormatDuration(duration),
			PagesPerSecond:    pagesPerSecond,
		},
	}
}

// FormatDuration renders seconds as "12.3 seconds", "4 min 5 sec" or "1 hr 2 min"
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d min %d sec", int(seconds/60), int(math.Mod(seconds, 60)))
	}
	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	return fmt.Sprintf("%d hr %d min", hours, minutes)
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(100*float64(part)/float64(total), 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
