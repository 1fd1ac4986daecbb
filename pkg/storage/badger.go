package storage

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/log"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// pageKeyPrefix namespaces page URL keys in the DB
const pageKeyPrefix = "page:"

const maxConflictRetries = 10

// BadgerStore implements VisitedStore on an on-disk BadgerDB, for crawls whose
// visited set should not live in memory.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

// NewBadgerStore opens (or creates) a BadgerDB at dbPath
func NewBadgerStore(dbPath string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger.WithField("db_path", dbPath)}

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create visited DB directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		store.log.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}

	store.log.Debug("Visited URL database opened")
	return store, nil
}

// countKeys performs a one-time full key scan, used only when opening an existing DB
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Conflicting MVCC transactions resolve in microseconds, so no backoff is needed.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (s *BadgerStore) MarkVisited(url string) (bool, error) {
	if s.db == nil || s.db.IsClosed() {
		return false, fmt.Errorf("%w: visited DB not open", utils.ErrDatabase)
	}
	added := false
	key := []byte(pageKeyPrefix + url)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking '%s': %w", utils.ErrDatabase, url, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

func (s *BadgerStore) IsVisited(url string) (bool, error) {
	if s.db == nil || s.db.IsClosed() {
		return false, fmt.Errorf("%w: visited DB not open", utils.ErrDatabase)
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(pageKeyPrefix + url))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%w: reading '%s': %w", utils.ErrDatabase, url, err)
	}
	return found, nil
}

func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// Reset drops every key in the DB
func (s *BadgerStore) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("%w: dropping visited keys: %w", utils.ErrDatabase, err)
	}
	s.keyCount.Store(0)
	return nil
}

func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing visited DB: %v", err)
		return err
	}
	s.log.Debug("Visited DB closed")
	return nil
}
