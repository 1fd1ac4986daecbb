package models

import (
	"time"
)

// WorkItem represents a URL and its depth waiting in the crawl queue
type WorkItem struct {
	URL   string
	Depth int
}

// CrawlPage is the transient record of one fetch attempt. It is folded into
// engine state and stats, never persisted on its own.
type CrawlPage struct {
	URL          string
	Depth        int
	ParentURL    string
	Links        []string
	MediaURLs    []string
	StatusCode   int // 0 when no response was received
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}

// Successful reports whether a response arrived with a 2xx status.
func (p *CrawlPage) Successful() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// CrawlStats holds aggregate counters for one crawl run
type CrawlStats struct {
	TotalPages      int       `json:"total_pages"`
	SuccessfulPages int       `json:"successful_pages"`
	FailedPages     int       `json:"failed_pages"`
	TotalMedia      int       `json:"total_media"`
	ImageCount      int       `json:"image_count"`
	VideoCount      int       `json:"video_count"`
	AudioCount      int       `json:"audio_count"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitzero"`
}

// Duration is the elapsed run time; zero until the stats are finalized.
func (s CrawlStats) Duration() time.Duration {
	if s.EndTime.IsZero() || s.StartTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// CrawlSession is the persisted identity and outcome of one crawl run
type CrawlSession struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      *time.Time    `json:"end_time"`
	Duration     *float64      `json:"duration"` // Seconds, set with EndTime
	PagesCrawled int           `json:"pages_crawled"`
	MediaFound   int           `json:"media_found"`
	Status       SessionStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	MaxDepth     int           `json:"max_depth"`
	CacheDir     string        `json:"cache_dir,omitempty"`
}

// Finish stamps the terminal end time. Only the first call has any effect.
func (s *CrawlSession) Finish(at time.Time) {
	if s.EndTime != nil {
		return
	}
	end := at
	s.EndTime = &end
	d := end.Sub(s.StartTime).Seconds()
	s.Duration = &d
}

// SessionMetadata is the content of a cache session's metadata file
type SessionMetadata struct {
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	MediaCount   int       `json:"media_count"`
}

// SessionStats summarises one cache session for status endpoints
type SessionStats struct {
	MediaCount   int            `json:"media_count"`
	DiskUsage    int64          `json:"disk_usage"`
	MediaTypes   map[string]int `json:"media_types"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
}
