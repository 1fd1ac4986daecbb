package cache

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// Manager is the session-scoped disk cache. Each session is a directory under
// the cache root holding downloaded media, thumbnails and JSON state files.
//
// In-memory caches are per Manager; separate managers over the same root
// see each other's writes on their next disk read.
type Manager struct {
	paths    *Paths
	sessions *sessionStore
	media    *mediaStore
	log      *logrus.Entry
}

// NewManager resolves root (see ResolveRoot) and creates it if needed
func NewManager(root string, log *logrus.Entry) (*Manager, error) {
	resolved, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating cache root '%s': %w", utils.ErrFilesystem, resolved, err)
	}

	log = log.WithField("component", "cache")
	paths := NewPaths(resolved)
	log.WithField("cache_dir", resolved).Debug("Cache manager initialized")
	return &Manager{
		paths:    paths,
		sessions: newSessionStore(paths, log),
		media:    newMediaStore(paths, log),
		log:      log,
	}, nil
}

// Paths exposes the cache layout
func (m *Manager) Paths() *Paths { return m.paths }

// Root is the resolved cache directory
func (m *Manager) Root() string { return m.paths.Root() }

func (m *Manager) GetSessionPath(id string) string { return m.paths.SessionDir(id) }

// CreateSession makes a new session directory with fresh metadata
func (m *Manager) CreateSession() (string, error) {
	return m.sessions.create()
}

// SessionExists is true iff the session directory exists and is not being cleared
func (m *Manager) SessionExists(id string) bool {
	return m.sessions.exists(id)
}

// ListSessions returns the ids of every existing session, sorted
func (m *Manager) ListSessions() []string {
	entries, err := os.ReadDir(m.paths.Root())
	if err != nil {
		m.log.Warnf("Error listing cache sessions: %v", err)
		return nil
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && m.sessions.exists(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids
}

// UpdateAccessTime bumps last_accessed. False if the session is gone.
func (m *Manager) UpdateAccessTime(id string) bool {
	return m.sessions.touch(id)
}

// UpdateMetadata records the media count and bumps last_accessed
func (m *Manager) UpdateMetadata(id string, mediaCount int) bool {
	return m.sessions.setMediaCount(id, mediaCount)
}

// GetMetadata returns the session metadata
func (m *Manager) GetMetadata(id string) (models.SessionMetadata, bool) {
	if !m.sessions.exists(id) {
		return models.SessionMetadata{}, false
	}
	return m.sessions.metadata(id)
}

// SaveMediaMetadata persists the session's media list
func (m *Manager) SaveMediaMetadata(id string, list []*models.Media) bool {
	if !m.sessions.exists(id) {
		return false
	}
	return m.media.save(id, list)
}

// GetMediaMetadata returns the session's media list with absolute paths
func (m *Manager) GetMediaMetadata(id string) []*models.Media {
	return m.media.load(id)
}

func (m *Manager) GetMediaByID(id, mediaID string) (*models.Media, bool) {
	return m.media.find(id, func(md *models.Media) bool { return md.ID == mediaID })
}

func (m *Manager) GetMediaByURL(id, rawURL string) (*models.Media, bool) {
	return m.media.find(id, func(md *models.Media) bool { return md.URL == rawURL })
}

// GetMediaByFilename matches the name of the cached file
func (m *Manager) GetMediaByFilename(id, filename string) (*models.Media, bool) {
	return m.media.find(id, func(md *models.Media) bool { return md.CachedFilename == filename })
}

// SaveCrawlSession persists a crawl-session record into the cache session
func (m *Manager) SaveCrawlSession(id string, session *models.CrawlSession) bool {
	return m.sessions.saveCrawlSession(id, session)
}

// LoadCrawlSession returns the stored record, or false when absent or unreadable
func (m *Manager) LoadCrawlSession(id string) (*models.CrawlSession, bool) {
	return m.sessions.loadCrawlSession(id)
}

// UpdateCrawlSession applies mutate to the stored crawl-session record as one
// locked read-modify-write. False when the session or its record is missing.
func (m *Manager) UpdateCrawlSession(id string, mutate func(*models.CrawlSession)) bool {
	return m.sessions.updateCrawlSession(id, mutate)
}

// GetSessionStats summarises a session. Unknown sessions yield zero stats.
func (m *Manager) GetSessionStats(id string) models.SessionStats {
	stats := models.SessionStats{MediaTypes: map[string]int{}}
	if !m.sessions.exists(id) {
		return stats
	}

	if meta, ok := m.sessions.metadata(id); ok {
		stats.CreatedAt = meta.CreatedAt
		stats.LastAccessed = meta.LastAccessed
		stats.MediaCount = meta.MediaCount
	}
	stats.DiskUsage = dirSize(m.paths.SessionDir(id))

	if _, err := os.Stat(m.paths.MediaListFile(id)); err == nil {
		list := m.media.load(id)
		for _, md := range list {
			stats.MediaTypes[md.MediaType.String()]++
		}
		stats.MediaCount = len(list)
	}
	return stats
}
