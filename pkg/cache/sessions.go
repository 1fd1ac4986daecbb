package cache

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// sessionStore owns session directories and their metadata files
type sessionStore struct {
	paths *Paths
	log   *logrus.Entry

	mu    sync.Mutex
	cache map[string]models.SessionMetadata // id -> last known metadata
}

func newSessionStore(paths *Paths, log *logrus.Entry) *sessionStore {
	return &sessionStore{
		paths: paths,
		log:   log,
		cache: make(map[string]models.SessionMetadata),
	}
}

func (s *sessionStore) create() (string, error) {
	id := uuid.NewString()
	if err := os.MkdirAll(s.paths.ThumbnailsDir(id), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating session '%s': %w", utils.ErrFilesystem, id, err)
	}

	now := time.Now()
	meta := models.SessionMetadata{CreatedAt: now, LastAccessed: now}

	unlock := lockSession(id)
	defer unlock()
	if err := writeJSONAtomic(s.paths.MetadataFile(id), meta); err != nil {
		return "", err
	}
	s.remember(id, meta)

	s.log.WithField("session_id", id).Info("Created new cache session")
	return id, nil
}

// exists is true while the directory is present and no cleanup is in flight
func (s *sessionStore) exists(id string) bool {
	if !utils.IsSafePathComponent(id) {
		return false
	}
	if !dirExists(s.paths.SessionDir(id)) {
		return false
	}
	if _, err := os.Stat(s.paths.cleanupLock(id)); err == nil {
		s.log.WithField("session_id", id).Debug("Session is being cleaned up, treating as absent")
		return false
	}
	return true
}

// update applies mutate to the session metadata and writes it back.
// Returns false when the session is gone or the write fails.
func (s *sessionStore) update(id string, mutate func(*models.SessionMetadata)) bool {
	if !s.exists(id) {
		return false
	}
	sessionLog := s.log.WithField("session_id", id)

	unlock := lockSession(id)
	defer unlock()

	meta, ok := s.cached(id)
	if !ok {
		var err error
		meta, err = s.read(id)
		if err != nil {
			sessionLog.Debugf("Metadata unreadable, starting fresh: %v", err)
			now := time.Now()
			meta = models.SessionMetadata{CreatedAt: now, LastAccessed: now}
		}
	}
	mutate(&meta)

	if err := writeJSONAtomic(s.paths.MetadataFile(id), meta); err != nil {
		if errors.Is(err, errSessionGone) {
			sessionLog.Debug("Session directory disappeared during metadata write")
		} else {
			sessionLog.WithField("category", utils.CategorizeError(err)).Warnf("Error writing metadata: %v", err)
		}
		s.forget(id)
		return false
	}
	s.remember(id, meta)
	return true
}

func (s *sessionStore) touch(id string) bool {
	return s.update(id, func(m *models.SessionMetadata) {
		m.LastAccessed = time.Now()
	})
}

func (s *sessionStore) setMediaCount(id string, count int) bool {
	return s.update(id, func(m *models.SessionMetadata) {
		m.LastAccessed = time.Now()
		m.MediaCount = count
	})
}

// metadata returns cached metadata, falling back to disk
func (s *sessionStore) metadata(id string) (models.SessionMetadata, bool) {
	if meta, ok := s.cached(id); ok {
		return meta, true
	}
	meta, err := s.read(id)
	if err != nil {
		return models.SessionMetadata{}, false
	}
	s.remember(id, meta)
	return meta, true
}

func (s *sessionStore) read(id string) (models.SessionMetadata, error) {
	var meta models.SessionMetadata
	err := readJSONShared(s.paths.MetadataFile(id), &meta)
	return meta, err
}

func (s *sessionStore) cached(id string) (models.SessionMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.cache[id]
	return meta, ok
}

func (s *sessionStore) remember(id string, meta models.SessionMetadata) {
	s.mu.Lock()
	s.cache[id] = meta
	s.mu.Unlock()
}

func (s *sessionStore) forget(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

func (s *sessionStore) saveCrawlSession(id string, session *models.CrawlSession) bool {
	if !s.exists(id) {
		return false
	}
	unlock := lockSession(id)
	defer unlock()
	if err := writeJSONAtomic(s.paths.CrawlSessionFile(id), session); err != nil {
		if !errors.Is(err, errSessionGone) {
			s.log.WithField("session_id", id).Warnf("Error writing crawl session: %v", err)
		}
		return false
	}
	return true
}

func (s *sessionStore) loadCrawlSession(id string) (*models.CrawlSession, bool) {
	if !s.exists(id) {
		return nil, false
	}
	var session models.CrawlSession
	if err := readJSONShared(s.paths.CrawlSessionFile(id), &session); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithField("session_id", id).Warnf("Unreadable crawl session: %v", err)
		}
		return nil, false
	}
	return &session, true
}

// updateCrawlSession re-reads the crawl-session record, applies mutate and writes
// it back, all under the session lock. Missing or unreadable records fail.
func (s *sessionStore) updateCrawlSession(id string, mutate func(*models.CrawlSession)) bool {
	if !s.exists(id) {
		return false
	}
	unlock := lockSession(id)
	defer unlock()

	sessionLog := s.log.WithField("session_id", id)
	var session models.CrawlSession
	if err := readJSONShared(s.paths.CrawlSessionFile(id), &session); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			sessionLog.Warnf("Unreadable crawl session: %v", err)
		}
		return false
	}
	mutate(&session)
	if err := writeJSONAtomic(s.paths.CrawlSessionFile(id), &session); err != nil {
		if !errors.Is(err, errSessionGone) {
			sessionLog.Warnf("Error writing crawl session: %v", err)
		}
		return false
	}
	return true
}
