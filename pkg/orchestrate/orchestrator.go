package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/crawler"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/fetch"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/media"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// NoMediaWarning is reported when a crawl succeeds without finding media
const NoMediaWarning = "No media files found on the page"

// Request describes one crawl-and-download run
type Request struct {
	URL   string
	Depth int // Negative uses the configured max_crawl_depth

	// PreviousSessionID is cleared (when it still exists) before the new
	// session is created
	PreviousSessionID string
}

// CacheInfo describes the session a result was written to
type CacheInfo struct {
	Path       string         `json:"path"`
	MediaCount int            `json:"media_count"`
	DiskUsage  int64          `json:"disk_usage"`
	MediaTypes map[string]int `json:"media_types,omitempty"`
}

// Result is the envelope returned to callers of Run
type Result struct {
	Success    bool                   `json:"success"`
	URL        string                 `json:"url,omitempty"`
	MediaCount int                    `json:"media_count"`
	Stats      models.CrawlStats      `json:"stats"`
	Summary    crawler.FormattedStats `json:"summary"`
	SessionID  string                 `json:"session_id"`
	CacheInfo  *CacheInfo             `json:"cache_info,omitempty"`
	Warning    string                 `json:"warning,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Media      []*models.Media        `json:"media,omitempty"`
}

// Orchestrator runs crawl, download and persistence for one request at a
// time or for several in parallel. The HTTP client, per-host limiter and
// fetch semaphore are shared by every run.
type Orchestrator struct {
	appCfg *config.AppConfig
	cache  *cache.Manager
	runner media.CommandRunner
	log    *logrus.Entry

	// Shared resources
	fetcher         *fetch.Fetcher
	globalSemaphore *semaphore.Weighted
}

// NewOrchestrator creates an orchestrator writing into mgr. runner executes
// ffprobe/ffmpeg; nil runs the real binaries.
func NewOrchestrator(appCfg *config.AppConfig, mgr *cache.Manager, runner media.CommandRunner, log *logrus.Entry) *Orchestrator {
	log = log.WithField("component", "orchestrator")

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	rateLimiter := fetch.NewRateLimiter(appCfg.DelayPerHost, log)
	fetcher := fetch.NewFetcher(httpClient, rateLimiter, appCfg, log)

	limit := appCfg.MaxConcurrentRequests
	if limit <= 0 {
		limit = 5
	}

	return &Orchestrator{
		appCfg:          appCfg,
		cache:           mgr,
		runner:          runner,
		log:             log,
		fetcher:         fetcher,
		globalSemaphore: semaphore.NewWeighted(int64(limit)),
	}
}

// Cache returns the cache manager results are written to
func (o *Orchestrator) Cache() *cache.Manager { return o.cache }

// Run crawls req.URL into a brand new session, downloads every media URL
// found and builds the result envelope.
//
// Invalid URLs fail with ErrParsing and no result. A crawl that aborted
// before finding any media returns a failed result together with
// ErrCrawlFailed. Every other outcome, including zero media and failed
// downloads, is a result with a nil error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if !parse.IsValidURL(req.URL) {
		return nil, fmt.Errorf("%w: invalid URL '%s'", utils.ErrParsing, req.URL)
	}
	url := parse.Normalize(req.URL)
	runLog := o.log.WithField("url", url)

	if req.PreviousSessionID != "" && o.cache.SessionExists(req.PreviousSessionID) {
		runLog.Infof("Clearing previous session: %s", req.PreviousSessionID)
		o.cache.ClearSession(req.PreviousSessionID)
	}
	sessionID, err := o.cache.CreateSession()
	if err != nil {
		return nil, err
	}
	runLog = runLog.WithField("session_id", sessionID)

	c := crawler.NewCrawlerWithOptions(o.appCfg, o.cache, o.fetcher, o.log, &crawler.CrawlerOptions{
		SessionID:       sessionID,
		SharedSemaphore: o.globalSemaphore,
	})
	stats, mediaURLs, sessionID, crawlErr := c.Crawl(ctx, url, req.Depth)

	result := &Result{
		URL:       url,
		Stats:     stats,
		Summary:   crawler.FormatStats(stats, time.Now()),
		SessionID: sessionID,
	}

	if crawlErr != nil {
		if len(mediaURLs) == 0 {
			result.Error = fmt.Sprintf("Crawl failed: %v", crawlErr)
			return result, fmt.Errorf("%w: %w", utils.ErrCrawlFailed, crawlErr)
		}
		result.Warning = fmt.Sprintf("Crawl stopped early: %v", crawlErr)
	}

	if len(mediaURLs) == 0 {
		runLog.Warn("No media URLs found")
		result.Success = true
		result.Warning = NoMediaWarning
		return result, nil
	}
	runLog.Infof("Found %d media URLs", len(mediaURLs))

	downloader, err := media.NewDownloader(sessionID, o.cache, o.fetcher, o.appCfg, o.runner, o.log)
	if err != nil {
		result.Error = fmt.Sprintf("Found %d media URLs but failed to download: %v", len(mediaURLs), err)
		return result, nil
	}
	mediaList := downloader.Download(ctx, mediaURLs, url)
	if len(mediaList) == 0 {
		result.Error = fmt.Sprintf("Found %d media URLs but failed to download: no file could be fetched and verified as media", len(mediaURLs))
		return result, nil
	}

	o.cache.UpdateAccessTime(sessionID)
	sessionStats := o.cache.GetSessionStats(sessionID)

	result.Success = true
	result.MediaCount = len(mediaList)
	result.Media = mediaList
	result.CacheInfo = &CacheInfo{
		Path:       o.cache.GetSessionPath(sessionID),
		MediaCount: len(mediaList),
		DiskUsage:  sessionStats.DiskUsage,
	}
	runLog.WithField("media", len(mediaList)).Info("Crawl and download completed")
	return result, nil
}

// RunAll runs every request in parallel and returns results in request
// order. A request that could not run at all yields a result carrying its
// error message.
func (o *Orchestrator) RunAll(ctx context.Context, reqs []Request) []*Result {
	startTime := time.Now()
	o.log.Infof("Starting parallel crawl of %d URLs", len(reqs))

	results := make([]*Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Run(ctx, req)
			if res == nil {
				res = &Result{URL: req.URL}
			}
			if err != nil && res.Error == "" {
				res.Error = err.Error()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	o.logSummary(results, time.Since(startTime))
	return results
}

// logSummary logs a summary of all run results
func (o *Orchestrator) logSummary(results []*Result, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Parallel crawl completed in %v", totalDuration)

	successCount, failCount, totalMedia := 0, 0, 0
	for _, r := range results {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		totalMedia += r.MediaCount

		o.log.Infof("  %s: %s - %d pages, %d media", r.URL, status, r.Stats.TotalPages, r.MediaCount)
		if r.Error != "" {
			o.log.Infof("    Error: %s", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d URLs (%d success, %d failed), %d media downloaded",
		len(results), successCount, failCount, totalMedia)
	o.log.Info("============================================")
}
