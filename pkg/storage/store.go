package storage

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// visitedDBDir is the subdirectory of a session that holds the Badger visited set
const visitedDBDir = "visited_db"

// VisitedStore records which normalized page URLs a crawl has already claimed.
// Implementations must be safe for concurrent use.
type VisitedStore interface {
	// MarkVisited records url; added is false when it was already present
	MarkVisited(url string) (added bool, err error)

	// IsVisited reports whether url has been recorded
	IsVisited(url string) (bool, error)

	// Count returns the number of recorded URLs
	Count() (int, error)

	// Reset forgets every recorded URL
	Reset() error

	// Close releases any resources held by the store
	Close() error
}

// Open returns the VisitedStore selected by cfg.VisitedStore. sessionDir is only
// used by the badger backend, which keeps its files under <sessionDir>/visited_db.
func Open(cfg *config.AppConfig, sessionDir string, log *logrus.Entry) (VisitedStore, error) {
	switch cfg.VisitedStore {
	case "", config.VisitedStoreMemory:
		return NewMemoryStore(), nil
	case config.VisitedStoreBadger:
		if sessionDir == "" {
			return nil, fmt.Errorf("%w: badger visited store needs a session directory", utils.ErrConfigValidation)
		}
		return NewBadgerStore(filepath.Join(sessionDir, visitedDBDir), log)
	default:
		return nil, fmt.Errorf("%w: unknown visited_store %q", utils.ErrConfigValidation, cfg.VisitedStore)
	}
}
