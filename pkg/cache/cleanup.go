package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// ClearSession marks the session as being deleted, then removes its directory.
// On failure the marker is removed again and false is returned.
func (m *Manager) ClearSession(id string) bool {
	if !utils.IsSafePathComponent(id) {
		return false
	}
	sessionDir := m.paths.SessionDir(id)
	if !dirExists(sessionDir) {
		return false
	}
	sessionLog := m.log.WithField("session_id", id)

	lockPath := m.paths.cleanupLock(id)
	marker := []byte("cleanup_started:" + time.Now().Format(time.RFC3339Nano))
	if err := os.WriteFile(lockPath, marker, 0o644); err != nil {
		sessionLog.Warnf("Error writing cleanup marker: %v", err)
		return false
	}

	m.sessions.forget(id)
	m.media.forget(id)

	if err := os.RemoveAll(sessionDir); err != nil {
		sessionLog.WithField("category", utils.CategorizeError(err)).Warnf("Error clearing session: %v", err)
		_ = os.Remove(lockPath)
		return false
	}
	sessionLog.Info("Cleared cache session")
	return true
}

// CleanExpiredSessions clears every session whose metadata is missing, corrupt,
// or last accessed more than expiry ago. An expiry of 0 clears everything.
// Returns the number of sessions cleared.
func (m *Manager) CleanExpiredSessions(expiry time.Duration) int {
	entries, err := os.ReadDir(m.paths.Root())
	if err != nil {
		m.log.Errorf("Error listing cache sessions: %v", err)
		return 0
	}

	now := time.Now()
	cleared := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		sessionLog := m.log.WithField("session_id", id)

		var meta models.SessionMetadata
		reason := ""
		if err := readJSONShared(m.paths.MetadataFile(id), &meta); err != nil {
			reason = "unreadable metadata"
			if _, statErr := os.Stat(m.paths.MetadataFile(id)); os.IsNotExist(statErr) {
				reason = "no metadata"
			}
		} else if expiry == 0 || now.Sub(meta.LastAccessed) > expiry {
			reason = "expired"
		}
		if reason == "" {
			continue
		}

		sessionLog.WithField("reason", reason).Info("Removing session")
		if m.ClearSession(id) {
			cleared++
		}
	}

	m.log.Infof("Cleaned %d expired sessions", cleared)
	return cleared
}

// GetCacheSize sums the size of every file under the cache root. Best effort.
func (m *Manager) GetCacheSize() int64 {
	return dirSize(m.paths.Root())
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that vanish mid-walk
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
