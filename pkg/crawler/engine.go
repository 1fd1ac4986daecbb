package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/fetch"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/queue"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/storage"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// EngineState is the lifecycle of one crawl invocation
type EngineState string

const (
	StateIdle      EngineState = "idle"
	StateRunning   EngineState = "running"
	StateCompleted EngineState = "completed"
	StateFailed    EngineState = "failed"
)

// PageObserver receives every page the engine attempted, in crawl order
type PageObserver func(page *models.CrawlPage)

// Progress is a point-in-time view of a running crawl
type Progress struct {
	State          EngineState `json:"state"`
	PagesProcessed int64       `json:"pages_processed"`
	Queued         int         `json:"queued"`
	MediaFound     int         `json:"media_found"`
}

// Engine walks a site breadth-first from a seed URL, collecting media URLs.
// Pages are processed one at a time; fetches additionally pass through a
// weighted semaphore so the concurrency ceiling holds for any caller sharing it.
type Engine struct {
	appCfg     *config.AppConfig
	fetcher    *fetch.Fetcher
	sem        *semaphore.Weighted
	semTimeout time.Duration
	sessionDir string // Only used by the badger visited store
	log        *logrus.Entry

	mu    sync.Mutex
	state EngineState
	queue *queue.CrawlQueue
	store storage.VisitedStore
	media map[string]struct{}

	processed atomic.Int64
}

// NewEngine creates an idle engine. sessionDir may be empty unless the
// badger visited store is configured.
func NewEngine(appCfg *config.AppConfig, fetcher *fetch.Fetcher, sessionDir string, log *logrus.Entry) *Engine {
	limit := appCfg.MaxConcurrentRequests
	if limit <= 0 {
		limit = 5
	}
	return &Engine{
		appCfg:     appCfg,
		fetcher:    fetcher,
		sem:        semaphore.NewWeighted(int64(limit)),
		semTimeout: appCfg.SemaphoreAcquireTimeout,
		sessionDir: sessionDir,
		log:        log.WithField("component", "crawl_engine"),
		state:      StateIdle,
		media:      make(map[string]struct{}),
	}
}

// State returns the current lifecycle state
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress reports the state, pages processed, queue length and media found so far
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := Progress{
		State:          e.state,
		PagesProcessed: e.processed.Load(),
		MediaFound:     len(e.media),
	}
	if e.queue != nil {
		p.Queued = e.queue.Len()
	}
	return p
}

// Crawl visits startURL and, while depth < maxDepth, every same-domain link it
// leads to. It returns the sorted set of media URLs found.
//
// Per-page failures never stop the crawl; they are reported through observe.
// An error is returned only when the crawl itself could not run or was cut
// short (seed unreachable, visited store failure, cancellation, panic), and
// even then the media gathered so far is returned alongside it.
func (e *Engine) Crawl(ctx context.Context, startURL string, maxDepth int, observe PageObserver) (mediaURLs []string, err error) {
	crawlLog := e.log.WithFields(logrus.Fields{"start_url": startURL, "max_depth": maxDepth})
	if startURL == "" {
		return nil, fmt.Errorf("%w: empty start URL", utils.ErrParsing)
	}
	startURL = parse.Normalize(startURL)
	if maxDepth < 0 {
		maxDepth = 0
	}
	if observe == nil {
		observe = func(*models.CrawlPage) {}
	}

	store, openErr := storage.Open(e.appCfg, e.sessionDir, crawlLog)
	if openErr != nil {
		e.setState(StateFailed)
		return nil, fmt.Errorf("opening visited store: %w", openErr)
	}
	if resetErr := store.Reset(); resetErr != nil {
		crawlLog.Warnf("Failed to reset visited store: %v", resetErr)
	}

	// Robots rules live for exactly one crawl run
	robots := fetch.NewRobotsCache(e.fetcher, e.appCfg.RespectRobotsTxt, e.appCfg.RobotsTimeout, crawlLog)
	q := queue.NewCrawlQueue(crawlLog)

	e.mu.Lock()
	e.state = StateRunning
	e.queue = q
	e.store = store
	e.media = make(map[string]struct{})
	e.mu.Unlock()
	e.processed.Store(0)

	defer func() {
		if r := recover(); r != nil {
			crawlLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while draining crawl queue")
			err = fmt.Errorf("crawl aborted by panic: %v", r)
		}
		if dropped := q.Close(); dropped > 0 {
			crawlLog.Debugf("Discarded %d queued URLs", dropped)
		}
		if closeErr := store.Close(); closeErr != nil {
			crawlLog.Warnf("Failed to close visited store: %v", closeErr)
		}

		mediaURLs = e.collectedMedia()
		if err != nil {
			e.setState(StateFailed)
			return
		}
		e.setState(StateCompleted)
	}()

	crawlLog.Info("Starting crawl")
	q.Add(models.WorkItem{URL: startURL, Depth: 0})

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			crawlLog.Warnf("Crawl interrupted: %v", ctxErr)
			return nil, fmt.Errorf("crawl interrupted: %w", ctxErr)
		}
		item, ok := q.Next()
		if !ok {
			break
		}

		visited, visitErr := store.IsVisited(item.URL)
		if visitErr != nil {
			return nil, visitErr
		}
		if visited {
			continue
		}

		page, pageErr := e.crawlPage(ctx, robots, store, item, maxDepth)
		if page == nil {
			if pageErr != nil {
				return nil, pageErr
			}
			continue
		}
		e.processed.Add(1)
		observe(page)

		if item.Depth == 0 && isUnreachable(page, pageErr) {
			return nil, fmt.Errorf("seed URL %s unreachable: %w", item.URL, pageErr)
		}

		if page.Successful() && item.Depth < maxDepth {
			e.enqueueLinks(q, store, page, startURL, crawlLog)
		}
	}

	crawlLog.WithFields(logrus.Fields{
		"pages": e.processed.Load(),
		"media": e.mediaCount(),
	}).Info("Crawl completed")
	return nil, nil
}

// crawlPage processes one work item. A nil page means the item was skipped
// by policy (already visited, too deep); a nil page with an error means the
// visited store failed. A non-nil page may come with the error it recorded.
func (e *Engine) crawlPage(ctx context.Context, robots *fetch.RobotsCache, store storage.VisitedStore, item models.WorkItem, maxDepth int) (*models.CrawlPage, error) {
	taskLog := e.log.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})

	if item.Depth > maxDepth {
		taskLog.Debug(utils.ErrMaxDepthExceeded.Error())
		return nil, nil
	}
	// Claim the URL before fetching so nothing re-enqueues it meanwhile
	added, err := store.MarkVisited(item.URL)
	if err != nil {
		return nil, err
	}
	if !added {
		taskLog.Debug(utils.ErrAlreadyVisited.Error())
		return nil, nil
	}

	page := &models.CrawlPage{URL: item.URL, Depth: item.Depth, StartTime: time.Now()}
	var taskErr error
	defer func() {
		page.EndTime = time.Now()
		logFields := logrus.Fields{"duration": page.EndTime.Sub(page.StartTime).String()}
		if taskErr != nil {
			page.ErrorMessage = taskErr.Error()
			logFields["category"] = utils.CategorizeError(taskErr)
			if errors.Is(taskErr, utils.ErrRobotsDisallowed) {
				taskLog.WithFields(logFields).Debug("Skipping page: disallowed by robots.txt")
			} else {
				taskLog.WithFields(logFields).Warnf("Page failed: %v", taskErr)
			}
			return
		}
		logFields["links"] = len(page.Links)
		logFields["media"] = len(page.MediaURLs)
		taskLog.WithFields(logFields).Debug("Page crawled")
	}()

	if !robots.IsAllowed(ctx, item.URL, e.fetcher.UserAgent()) {
		taskErr = fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, item.URL)
		return page, taskErr
	}

	taskErr = e.fetchAndExtract(ctx, page, taskLog)
	return page, taskErr
}

// fetchAndExtract GETs the page under the fetch gate and dispatches on its
// declared content type. Only HTML and JSON bodies are read.
func (e *Engine) fetchAndExtract(ctx context.Context, page *models.CrawlPage, taskLog *logrus.Entry) error {
	release, err := e.acquireFetchSlot(ctx)
	if err != nil {
		return err
	}
	defer release()

	resp, err := e.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	page.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		return fetch.StatusError(resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	ctLower := strings.ToLower(contentType)
	switch {
	case strings.Contains(ctLower, "text/html"):
		body, err := fetch.ReadBody(resp.Body, e.appCfg.MaxPageSizeBytes)
		if err != nil {
			return err
		}
		doc, err := parse.NewDocument(body, contentType)
		if err != nil {
			return err
		}
		page.Links = parse.ExtractLinks(doc, page.URL)
		page.MediaURLs = parse.ExtractMediaURLs(doc, page.URL)
	case strings.Contains(ctLower, "application/json"):
		body, err := fetch.ReadBody(resp.Body, e.appCfg.MaxPageSizeBytes)
		if err != nil {
			return err
		}
		data, err := parse.ParseJSON(body)
		if err != nil {
			return err
		}
		page.MediaURLs = parse.ExtractMediaFromJSON(data, page.URL)
	default:
		taskLog.Debugf("No extraction for content type '%s'", contentType)
	}

	e.addMedia(page.MediaURLs)
	return nil
}

func (e *Engine) acquireFetchSlot(ctx context.Context) (release func(), err error) {
	acquireCtx := ctx
	if e.semTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, e.semTimeout)
		defer cancel()
	}
	if err := e.sem.Acquire(acquireCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: acquire fetch semaphore: %w", utils.ErrSemaphoreTimeout, err)
	}
	return func() { e.sem.Release(1) }, nil
}

// enqueueLinks queues the page's same-domain links one level deeper
func (e *Engine) enqueueLinks(q *queue.CrawlQueue, store storage.VisitedStore, page *models.CrawlPage, startURL string, taskLog *logrus.Entry) {
	queued := 0
	for _, link := range parse.FilterSameDomain(page.Links, startURL) {
		normalized := parse.Normalize(link)
		visited, err := store.IsVisited(normalized)
		if err != nil {
			taskLog.Warnf("Visited check failed for %s: %v", normalized, err)
			continue
		}
		if visited {
			continue
		}
		q.Add(models.WorkItem{URL: normalized, Depth: page.Depth + 1})
		queued++
	}
	if queued > 0 {
		taskLog.WithField("url", page.URL).Debugf("Queued %d links at depth %d", queued, page.Depth+1)
	}
}

func (e *Engine) addMedia(urls []string) {
	if len(urls) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range urls {
		e.media[u] = struct{}{}
	}
}

func (e *Engine) collectedMedia() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.media))
	for u := range e.media {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) mediaCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.media)
}

func (e *Engine) setState(s EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// isUnreachable is true when no response at all was received for a page
// that was not rejected by policy.
func isUnreachable(page *models.CrawlPage, err error) bool {
	return err != nil && page.StatusCode == 0 && !errors.Is(err, utils.ErrRobotsDisallowed)
}
