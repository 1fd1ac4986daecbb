package media

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

const (
	thumbnailsDir   = "thumbnails"
	thumbnailSuffix = "_thumb.jpg"
	defaultExt      = ".bin"
)

// CacheFilePath returns a fresh path inside sessionDir for the file behind
// rawURL: the sanitized last path segment with 8 random hex characters
// appended before the extension. URLs without a path segment use the MD5 of
// the URL as the name.
func CacheFilePath(sessionDir, rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		// u.Path is already unescaped
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = utils.URLHash(rawURL)
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext == "" || ext == name {
		// dotfiles keep their whole name as the stem
		stem, ext = name, defaultExt
	}
	stem = utils.SanitizeBaseName(stem)
	ext = "." + utils.SanitizeBaseName(strings.TrimPrefix(ext, "."))
	if ext == "." {
		ext = defaultExt
	}

	return filepath.Join(sessionDir, stem+"_"+utils.RandomHex(8)+ext)
}

// ThumbnailPath returns <sessionDir>/thumbnails/<stem>_thumb.jpg for a cached
// media file.
func ThumbnailPath(sessionDir, mediaPath string) string {
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(sessionDir, thumbnailsDir, stem+thumbnailSuffix)
}
