package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/fetch"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// Crawler ties one crawl run to a cache session: it sets the session up,
// drives the engine, accumulates stats and records the outcome.
type Crawler struct {
	appCfg    *config.AppConfig
	cache     *cache.Manager
	fetcher   *fetch.Fetcher
	sessions  *SessionManager
	stats     *StatsManager
	sharedSem *semaphore.Weighted
	log       *logrus.Entry

	mu        sync.Mutex
	sessionID string
	engine    *Engine
}

// CrawlerOptions contains optional parameters for NewCrawler
type CrawlerOptions struct {
	// SessionID reuses an existing cache session when it still exists
	SessionID string

	// SharedSemaphore allows sharing the fetch gate across multiple crawlers.
	// If nil, each crawl gets its own gate sized by appCfg.MaxConcurrentRequests
	SharedSemaphore *semaphore.Weighted
}

// NewCrawler creates a crawler that starts a fresh cache session per crawl
func NewCrawler(appCfg *config.AppConfig, mgr *cache.Manager, fetcher *fetch.Fetcher, log *logrus.Entry) *Crawler {
	return NewCrawlerWithOptions(appCfg, mgr, fetcher, log, nil)
}

// NewCrawlerWithOptions creates a new Crawler with optional configuration
func NewCrawlerWithOptions(appCfg *config.AppConfig, mgr *cache.Manager, fetcher *fetch.Fetcher, log *logrus.Entry, opts *CrawlerOptions) *Crawler {
	c := &Crawler{
		appCfg:   appCfg,
		cache:    mgr,
		fetcher:  fetcher,
		sessions: NewSessionManager(mgr, log),
		stats:    NewStatsManager(log),
		log:      log.WithField("component", "crawler"),
	}
	if opts != nil {
		c.sessionID = opts.SessionID
		c.sharedSem = opts.SharedSemaphore
	}
	return c
}

// SessionID is the cache session of the latest crawl (or the one configured)
func (c *Crawler) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Sessions exposes the crawl-session records manager
func (c *Crawler) Sessions() *SessionManager { return c.sessions }

// FormattedStats returns the stats of the latest crawl in presentation form
func (c *Crawler) FormattedStats() FormattedStats { return c.stats.Formatted() }

// Progress reports on the crawl in flight; idle before the first crawl
func (c *Crawler) Progress() Progress {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return Progress{State: StateIdle}
	}
	return engine.Progress()
}

// Crawl runs one crawl of rawURL to maxDepth (a negative depth uses the
// configured default). Media URLs come back sorted.
//
// On error the stats and media gathered before the failure are still returned
// and the crawl session is marked failed.
func (c *Crawler) Crawl(ctx context.Context, rawURL string, maxDepth int) (stats models.CrawlStats, mediaURLs []string, sessionID string, err error) {
	c.stats.Reset()
	if maxDepth < 0 {
		maxDepth = c.appCfg.MaxCrawlDepth
	}

	normalized := parse.Normalize(rawURL)
	if !parse.IsValidURL(normalized) {
		return c.stats.Stats(), nil, c.SessionID(), fmt.Errorf("%w: invalid URL '%s'", utils.ErrParsing, rawURL)
	}
	crawlLog := c.log.WithFields(logrus.Fields{"url": normalized, "max_depth": maxDepth})

	session, err := c.setupSession(normalized, maxDepth)
	if err != nil {
		crawlLog.Errorf("Could not set up crawl session: %v", err)
		return c.stats.Stats(), nil, c.SessionID(), err
	}
	sessionID = session.ID
	crawlLog = crawlLog.WithField("session_id", sessionID)
	c.sessions.MarkStarted(sessionID)

	engine := NewEngine(c.appCfg, c.fetcher, c.cache.GetSessionPath(sessionID), c.log.WithField("session_id", sessionID))
	if c.sharedSem != nil {
		engine.sem = c.sharedSem
	}
	c.mu.Lock()
	c.engine = engine
	c.mu.Unlock()

	crawlLog.Info("Starting crawl")
	mediaURLs, err = engine.Crawl(ctx, normalized, maxDepth, c.stats.UpdateFromPage)

	c.stats.SetMediaCounts(mediaURLs)
	c.stats.Finalize()
	stats = c.stats.Stats()

	if err != nil {
		crawlLog.WithField("category", utils.CategorizeError(err)).Errorf("Crawl failed: %v", err)
		c.sessions.MarkFailed(sessionID, err.Error())
		return stats, mediaURLs, sessionID, err
	}

	c.sessions.MarkCompleted(sessionID, stats.TotalPages, len(mediaURLs))
	c.cache.UpdateMetadata(sessionID, len(mediaURLs))
	crawlLog.WithFields(logrus.Fields{
		"pages":    stats.TotalPages,
		"media":    len(mediaURLs),
		"duration": stats.Duration().String(),
	}).Info("Crawl completed")
	return stats, mediaURLs, sessionID, nil
}

// setupSession reuses the configured cache session when it still exists,
// otherwise creates a new one
func (c *Crawler) setupSession(url string, maxDepth int) (*models.CrawlSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" {
		if session, ok := c.sessions.Attach(c.sessionID, url, maxDepth); ok {
			return session, nil
		}
		c.log.WithField("session_id", c.sessionID).Info("Configured session is gone, creating a new one")
	}
	session, err := c.sessions.Create(url, maxDepth)
	if err != nil {
		return nil, err
	}
	c.sessionID = session.ID
	return session, nil
}
