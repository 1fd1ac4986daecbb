package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// mediaStore persists each session's media list with session-relative paths
type mediaStore struct {
	paths *Paths
	log   *logrus.Entry

	mu    sync.Mutex
	cache map[string][]models.Media // id -> list in on-disk (relative) form
}

func newMediaStore(paths *Paths, log *logrus.Entry) *mediaStore {
	return &mediaStore{
		paths: paths,
		log:   log,
		cache: make(map[string][]models.Media),
	}
}

func (s *mediaStore) save(id string, list []*models.Media) bool {
	sessionDir := s.paths.SessionDir(id)
	if !dirExists(sessionDir) {
		return false
	}

	stored := make([]models.Media, 0, len(list))
	for _, m := range list {
		if m == nil {
			continue
		}
		rel := *m
		rel.FilePath = toRelative(sessionDir, m.FilePath)
		rel.ThumbnailPath = toRelative(sessionDir, m.ThumbnailPath)
		stored = append(stored, rel)
	}

	unlock := lockSession(id)
	defer unlock()
	if err := writeJSONAtomic(s.paths.MediaListFile(id), stored); err != nil {
		if !errors.Is(err, errSessionGone) {
			s.log.WithField("session_id", id).Warnf("Error saving media metadata: %v", err)
		}
		return false
	}

	s.mu.Lock()
	s.cache[id] = stored
	s.mu.Unlock()
	return true
}

// load returns the session's media with absolute paths. Missing or corrupt
// files yield an empty list.
func (s *mediaStore) load(id string) []*models.Media {
	sessionDir := s.paths.SessionDir(id)
	if !utils.IsSafePathComponent(id) || !dirExists(sessionDir) {
		return []*models.Media{}
	}

	s.mu.Lock()
	stored, ok := s.cache[id]
	s.mu.Unlock()

	if !ok {
		var fromDisk []models.Media
		if err := readJSONShared(s.paths.MediaListFile(id), &fromDisk); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.log.WithField("session_id", id).Warnf("Unreadable media metadata, treating as empty: %v", err)
			}
			return []*models.Media{}
		}
		stored = fromDisk
		s.mu.Lock()
		s.cache[id] = stored
		s.mu.Unlock()
	}

	out := make([]*models.Media, 0, len(stored))
	for _, m := range stored {
		abs := m
		abs.FilePath = toAbsolute(sessionDir, m.FilePath)
		abs.ThumbnailPath = toAbsolute(sessionDir, m.ThumbnailPath)
		out = append(out, &abs)
	}
	return out
}

func (s *mediaStore) forget(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

func (s *mediaStore) find(id string, match func(*models.Media) bool) (*models.Media, bool) {
	for _, m := range s.load(id) {
		if match(m) {
			return m, true
		}
	}
	return nil, false
}

// toRelative expresses path relative to sessionDir. Paths outside the session
// keep only their base name.
func toRelative(sessionDir, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(sessionDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// toAbsolute resolves a stored path under sessionDir, refusing to leave it
func toAbsolute(sessionDir, rel string) string {
	if rel == "" {
		return ""
	}
	joined := filepath.Join(sessionDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(joined, sessionDir+string(filepath.Separator)) {
		return filepath.Join(sessionDir, filepath.Base(rel))
	}
	return joined
}
