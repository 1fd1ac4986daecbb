package fetch

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
)

// maxRobotsBytes bounds how much of a robots.txt body is read
const maxRobotsBytes = 512 * 1024

// RobotsCache fetches, parses and caches robots.txt rules per origin.
// Failures of any kind are cached as "no rules", i.e. everything allowed.
type RobotsCache struct {
	fetcher *Fetcher
	respect bool
	timeout time.Duration
	cache   map[string]*robotstxt.RobotsData // robots URL -> rules
	mu      sync.Mutex
	log     *logrus.Entry
}

// NewRobotsCache creates a RobotsCache. When respect is false every URL is allowed
// and robots.txt is never requested.
func NewRobotsCache(fetcher *Fetcher, respect bool, timeout time.Duration, log *logrus.Entry) *RobotsCache {
	return &RobotsCache{
		fetcher: fetcher,
		respect: respect,
		timeout: timeout,
		cache:   make(map[string]*robotstxt.RobotsData),
		log:     log,
	}
}

// IsAllowed reports whether userAgent may fetch rawURL.
// Unparsable URLs are allowed; the fetch itself will surface the problem.
func (rc *RobotsCache) IsAllowed(ctx context.Context, rawURL, userAgent string) bool {
	if !rc.respect {
		return true
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return true
	}
	return rc.rulesFor(ctx, target).TestAgent(target.RequestURI(), userAgent)
}

func (rc *RobotsCache) rulesFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	robotsURL := parse.RobotsURL(target)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if data, ok := rc.cache[robotsURL]; ok {
		return data
	}

	data := rc.fetchRules(ctx, robotsURL)
	rc.cache[robotsURL] = data
	return data
}

// fetchRules never returns nil
func (rc *RobotsCache) fetchRules(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	robotsLog := rc.log.WithField("robots_url", robotsURL)
	empty, _ := robotstxt.FromString("")

	resp, err := rc.fetcher.FetchOnce(ctx, robotsURL, rc.timeout)
	if err != nil {
		robotsLog.Debugf("robots.txt fetch failed, allowing all: %v", err)
		return empty
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		robotsLog.WithField("status_code", resp.StatusCode).Debug("No robots.txt, allowing all")
		return empty
	}

	body, err := ReadBody(resp.Body, maxRobotsBytes)
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt: %v", err)
		return empty
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return empty
	}
	robotsLog.Debug("Fetched and parsed robots.txt")
	return data
}
