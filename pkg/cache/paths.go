package cache

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// appDirName is the folder created under the user cache directory for @cachefolder
const appDirName = "media-crawler"

// Names inside a session directory
const (
	metadataFileName     = "metadata.json"
	mediaListFileName    = "media.json"
	crawlSessionFileName = "crawl_session.json"
	thumbnailsDirName    = "thumbnails"
	cleanupLockFileName  = ".cleanup_lock"
)

// ResolveRoot turns the configured cache_dir into an absolute directory.
// The @cachefolder placeholder maps to $XDG_CACHE_HOME/media-crawler.
func ResolveRoot(dir string) (string, error) {
	if dir == "" || dir == config.CacheFolderPlaceholder {
		return filepath.Join(xdg.CacheHome, appDirName), nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: resolving cache dir '%s': %w", utils.ErrFilesystem, dir, err)
	}
	return abs, nil
}

// Paths computes the on-disk layout of the cache. Every path is a pure
// function of the root and a session id.
type Paths struct {
	root string
}

// NewPaths returns the layout rooted at root
func NewPaths(root string) *Paths {
	return &Paths{root: root}
}

func (p *Paths) Root() string { return p.root }

func (p *Paths) SessionDir(id string) string { return filepath.Join(p.root, id) }

func (p *Paths) MetadataFile(id string) string {
	return filepath.Join(p.SessionDir(id), metadataFileName)
}

func (p *Paths) MediaListFile(id string) string {
	return filepath.Join(p.SessionDir(id), mediaListFileName)
}

func (p *Paths) CrawlSessionFile(id string) string {
	return filepath.Join(p.SessionDir(id), crawlSessionFileName)
}

func (p *Paths) ThumbnailsDir(id string) string {
	return filepath.Join(p.SessionDir(id), thumbnailsDirName)
}

func (p *Paths) cleanupLock(id string) string {
	return filepath.Join(p.SessionDir(id), cleanupLockFileName)
}
