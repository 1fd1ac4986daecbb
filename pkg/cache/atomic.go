package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// errSessionGone reports a session directory that vanished around a write.
// Callers turn it into a false return.
var errSessionGone = errors.New("session directory no longer exists")

// sessionLocks serializes read-modify-write cycles per session id across all
// managers in the process. Writers never block readers, which rely on rename.
var sessionLocks sync.Map // id -> *sync.Mutex

func lockSession(id string) func() {
	mu, _ := sessionLocks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// writeJSONAtomic writes v as indented JSON to a temporary file beside target
// and renames it into place, so readers only ever see complete files.
// The directory is checked before and after the write to detect concurrent deletion.
func writeJSONAtomic(target string, v any) error {
	dir := filepath.Dir(target)
	if !dirExists(dir) {
		return errSessionGone
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", utils.ErrParsing, filepath.Base(target), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		if !dirExists(dir) {
			return errSessionGone
		}
		return fmt.Errorf("%w: creating temp file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}

	if !dirExists(dir) {
		cleanup()
		return errSessionGone
	}
	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		if !dirExists(dir) {
			return errSessionGone
		}
		return fmt.Errorf("%w: replacing '%s': %w", utils.ErrFilesystem, target, err)
	}
	return nil
}

// readJSONShared decodes the JSON file at path into v under a shared lock.
// A missing file returns an error wrapping os.ErrNotExist; undecodable
// content returns ErrCacheCorrupted.
func readJSONShared(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	if err := lockShared(f); err != nil {
		return fmt.Errorf("%w: locking '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer unlock(f)

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding '%s': %w", utils.ErrCacheCorrupted, path, err)
	}
	return nil
}
