package crawler

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

// SessionManager persists CrawlSession records inside cache sessions.
// Every mark-* call is a locked re-read, mutate and atomic write; on a session
// that no longer exists it does nothing and returns false.
type SessionManager struct {
	cache *cache.Manager
	log   *logrus.Entry
}

// NewSessionManager creates a SessionManager backed by mgr
func NewSessionManager(mgr *cache.Manager, log *logrus.Entry) *SessionManager {
	return &SessionManager{cache: mgr, log: log.WithField("component", "crawl_session")}
}

// Create makes a new cache session and stores a "created" record in it
func (sm *SessionManager) Create(url string, maxDepth int) (*models.CrawlSession, error) {
	id, err := sm.cache.CreateSession()
	if err != nil {
		return nil, err
	}
	session := sm.newRecord(id, url, maxDepth)
	if !sm.Update(session) {
		sm.log.WithField("session_id", id).Warn("Created session but could not store its crawl record")
	}
	sm.log.WithFields(logrus.Fields{"session_id": id, "url": url}).Info("Created crawl session")
	return session, nil
}

// Attach returns the crawl record of an existing cache session, creating one
// when the session has none yet. ok is false when the cache session is gone.
func (sm *SessionManager) Attach(id, url string, maxDepth int) (session *models.CrawlSession, ok bool) {
	if !sm.cache.SessionExists(id) {
		return nil, false
	}
	if existing, found := sm.Get(id); found {
		return existing, true
	}
	session = sm.newRecord(id, url, maxDepth)
	return session, sm.Update(session)
}

// Get loads a record; absent when the session is gone or the file is missing or corrupt
func (sm *SessionManager) Get(id string) (*models.CrawlSession, bool) {
	return sm.cache.LoadCrawlSession(id)
}

// Update persists session as-is
func (sm *SessionManager) Update(session *models.CrawlSession) bool {
	return sm.cache.SaveCrawlSession(session.ID, session)
}

// MarkStarted moves the session to running and restarts its clock
func (sm *SessionManager) MarkStarted(id string) bool {
	return sm.cache.UpdateCrawlSession(id, func(s *models.CrawlSession) {
		s.Status = models.SessionStatusRunning
		s.StartTime = time.Now()
		s.EndTime, s.Duration = nil, nil
		s.ErrorMessage = ""
	})
}

// MarkCompleted records the outcome of a successful crawl
func (sm *SessionManager) MarkCompleted(id string, pagesCrawled, mediaFound int) bool {
	return sm.cache.UpdateCrawlSession(id, func(s *models.CrawlSession) {
		s.Status = models.SessionStatusCompleted
		s.PagesCrawled = pagesCrawled
		s.MediaFound = mediaFound
		s.Finish(time.Now())
	})
}

// MarkFailed records why a crawl aborted
func (sm *SessionManager) MarkFailed(id, errorMessage string) bool {
	return sm.cache.UpdateCrawlSession(id, func(s *models.CrawlSession) {
		s.Status = models.SessionStatusError
		s.ErrorMessage = errorMessage
		s.Finish(time.Now())
	})
}

func (sm *SessionManager) newRecord(id, url string, maxDepth int) *models.CrawlSession {
	return &models.CrawlSession{
		ID:        id,
		URL:       url,
		StartTime: time.Now(),
		Status:    models.SessionStatusCreated,
		MaxDepth:  maxDepth,
		CacheDir:  sm.cache.GetSessionPath(id),
	}
}
