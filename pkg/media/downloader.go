package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/fetch"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

const chunkSize = 64 * 1024

// Downloader fetches candidate media URLs into one cache session. Each URL is
// attempted at most once per Downloader.
type Downloader struct {
	sessionID  string
	sessionDir string

	cache      *cache.Manager
	fetcher    *fetch.Fetcher
	metadata   *MetadataGenerator
	thumbnails *ThumbnailGenerator

	sem        *semaphore.Weighted
	semTimeout time.Duration
	limits     map[models.MediaType]int64

	mu         sync.Mutex
	downloaded map[string]struct{}
	persistMu  sync.Mutex

	log *logrus.Entry
}

// NewDownloader binds a downloader to sessionID, creating a fresh cache
// session when sessionID is empty or no longer exists.
func NewDownloader(sessionID string, mgr *cache.Manager, fetcher *fetch.Fetcher, cfg *config.AppConfig, runner CommandRunner, log *logrus.Entry) (*Downloader, error) {
	if sessionID == "" || !mgr.SessionExists(sessionID) {
		id, err := mgr.CreateSession()
		if err != nil {
			return nil, fmt.Errorf("creating download session: %w", err)
		}
		sessionID = id
	}
	mgr.UpdateAccessTime(sessionID)

	workers := cfg.MaxConcurrentDownloads
	if workers <= 0 {
		workers = 10
	}

	d := &Downloader{
		sessionID:  sessionID,
		sessionDir: mgr.GetSessionPath(sessionID),
		cache:      mgr,
		fetcher:    fetcher,
		metadata:   NewMetadataGenerator(cfg.FFprobePath, runner, log.WithField("component", "metadata")),
		thumbnails: NewThumbnailGenerator(cfg, runner, log.WithField("component", "thumbnail")),
		sem:        semaphore.NewWeighted(int64(workers)),
		semTimeout: cfg.SemaphoreAcquireTimeout,
		limits: map[models.MediaType]int64{
			models.MediaTypeImage: cfg.MaxImageSize,
			models.MediaTypeVideo: cfg.MaxVideoSize,
			models.MediaTypeAudio: cfg.MaxAudioSize,
		},
		downloaded: make(map[string]struct{}),
		log:        log.WithFields(logrus.Fields{"component": "downloader", "session_id": sessionID}),
	}
	d.log.Infof("Downloader ready, cache directory: %s", d.sessionDir)
	return d, nil
}

// SessionID returns the cache session the downloader writes into
func (d *Downloader) SessionID() string { return d.sessionID }

// Download fetches every URL not seen before by this downloader, concurrently
// and bounded by the download semaphore. Failed URLs are simply absent from
// the result, which keeps the input order. Results are merged into the
// session's persisted media list.
func (d *Downloader) Download(ctx context.Context, urls []string, sourceURL string) []*models.Media {
	pending := d.claim(urls)
	if len(pending) == 0 {
		return nil
	}
	d.log.Infof("Downloading %d media URLs from %s", len(pending), sourceURL)

	slots := make([]*models.Media, len(pending))
	// Tasks never return errors, so one failure never cancels its siblings
	var g errgroup.Group
	for i, rawURL := range pending {
		g.Go(func() error {
			slots[i] = d.downloadOne(ctx, rawURL, sourceURL)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]*models.Media, 0, len(slots))
	for _, m := range slots {
		if m != nil {
			results = append(results, m)
		}
	}

	d.persist(results)
	d.log.Infof("Downloaded %d of %d media files", len(results), len(pending))
	return results
}

// Cleanup removes the downloader's whole cache session
func (d *Downloader) Cleanup() bool {
	d.log.Info("Cleaning up cache session")
	return d.cache.ClearSession(d.sessionID)
}

// claim returns the URLs not yet attempted, recording them as attempted
func (d *Downloader) claim(urls []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pending []string
	for _, u := range urls {
		if _, seen := d.downloaded[u]; seen {
			d.log.Debugf("Skipping duplicate URL: %s", u)
			continue
		}
		d.downloaded[u] = struct{}{}
		pending = append(pending, u)
	}
	return pending
}

func (d *Downloader) persist(results []*models.Media) {
	if len(results) == 0 {
		return
	}
	d.persistMu.Lock()
	defer d.persistMu.Unlock()

	merged := mergeMedia(d.cache.GetMediaMetadata(d.sessionID), results)
	if !d.cache.SaveMediaMetadata(d.sessionID, merged) {
		d.log.Warn("Could not persist media list")
		return
	}
	d.cache.UpdateMetadata(d.sessionID, len(merged))
	d.log.Infof("Cached %d media files in session", len(merged))
}

// mergeMedia appends added to existing, replacing records with the same id
func mergeMedia(existing, added []*models.Media) []*models.Media {
	index := make(map[string]int, len(existing)+len(added))
	merged := make([]*models.Media, 0, len(existing)+len(added))
	for _, m := range append(existing, added...) {
		if i, ok := index[m.ID]; ok {
			merged[i] = m
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	return merged
}

// downloadOne runs the whole per-URL pipeline. Any failure removes the
// partial file and yields nil.
func (d *Downloader) downloadOne(ctx context.Context, rawURL, sourceURL string) (media *models.Media) {
	cachePath := CacheFilePath(d.sessionDir, rawURL)
	logEntry := d.log.WithFields(logrus.Fields{"url": rawURL, "file": filepath.Base(cachePath)})

	defer func() {
		if r := recover(); r != nil {
			logEntry.Errorf("PANIC during media download: %v\n%s", r, string(debug.Stack()))
			removePartial(cachePath, logEntry)
			media = nil
		}
	}()

	if err := d.acquire(ctx); err != nil {
		logEntry.WithField("category", utils.CategorizeError(err)).Warnf("Media download not started: %v", err)
		return nil
	}
	defer d.sem.Release(1)

	var (
		mimeType string
		size     int64
		err      error
	)
	// A URL already recorded in the session reuses its file and media id
	recorded, hit := d.cache.GetMediaByURL(d.sessionID, rawURL)
	if hit && utils.FileSize(recorded.FilePath) > 0 {
		cachePath = recorded.FilePath
		logEntry = logEntry.WithField("file", filepath.Base(cachePath))
	} else {
		hit = false
	}

	if _, statErr := os.Stat(cachePath); statErr == nil {
		logEntry.Infof("Using cached file for %s", rawURL)
		mimeType, size, err = inspectExisting(cachePath)
	} else {
		mimeType, size, err = d.fetchToFile(ctx, rawURL, cachePath, logEntry)
	}
	if err != nil {
		failLog := logEntry.WithField("category", utils.CategorizeError(err))
		if errors.Is(err, utils.ErrUnsupportedMedia) {
			failLog.Debugf("Skipping non-media URL: %v", err)
		} else {
			failLog.Warnf("Error processing media file: %v", err)
		}
		removePartial(cachePath, logEntry)
		return nil
	}

	meta := d.metadata.Generate(ctx, cachePath, mimeType, size)

	thumbPath := ThumbnailPath(d.sessionDir, cachePath)
	if !d.thumbnails.Generate(ctx, cachePath, thumbPath, meta.Kind) {
		thumbPath = ""
	}

	logEntry.Infof("Downloaded %s (%d bytes, %s)", rawURL, size, mimeType)
	media = models.NewMedia(rawURL, sourceURL, cachePath, thumbPath, d.sessionID, meta)
	if hit {
		media.ID = recorded.ID
	}
	return media
}

func (d *Downloader) acquire(ctx context.Context) error {
	if d.semTimeout <= 0 {
		return d.sem.Acquire(ctx, 1)
	}
	semCtx, cancel := context.WithTimeout(ctx, d.semTimeout)
	defer cancel()
	if err := d.sem.Acquire(semCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: download slot: %w", utils.ErrSemaphoreTimeout, err)
		}
		return err
	}
	return nil
}

// fetchToFile streams rawURL into path, enforcing the size ceiling of the
// category declared by Content-Type, then re-sniffs the written bytes.
func (d *Downloader) fetchToFile(ctx context.Context, rawURL, path string, logEntry *logrus.Entry) (string, int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", 0, fmt.Errorf("%w: creating cache directory: %w", utils.ErrFilesystem, err)
	}

	resp, err := d.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fetch.StatusError(resp.StatusCode)
	}

	declared := resp.Header.Get("Content-Type")
	kind := Classify(declared)
	if !kind.IsValid() {
		return "", 0, fmt.Errorf("%w: Content-Type %q", utils.ErrUnsupportedMedia, declared)
	}

	limit := d.limits[kind]
	if limit > 0 && resp.ContentLength > limit {
		return "", 0, fmt.Errorf("%w: Content-Length %d exceeds %s limit %d", utils.ErrSizeLimitExceeded, resp.ContentLength, kind, limit)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, path, err)
	}
	written, copyErr := copyWithLimit(out, resp.Body, limit)
	closeErr := out.Close()
	if copyErr != nil {
		return "", written, copyErr
	}
	if closeErr != nil {
		return "", written, fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, path, closeErr)
	}

	mimeType, err := SniffFile(path)
	if err != nil {
		return "", written, err
	}
	if !Classify(mimeType).IsValid() {
		return "", written, fmt.Errorf("%w: content sniffed as %s (declared %q)", utils.ErrUnsupportedMedia, mimeType, declared)
	}
	logEntry.Debugf("Wrote %d bytes, sniffed %s", written, mimeType)
	return mimeType, written, nil
}

// inspectExisting validates a file already present at the cache path
func inspectExisting(path string) (string, int64, error) {
	mimeType, err := SniffFile(path)
	if err != nil {
		return "", 0, err
	}
	if !Classify(mimeType).IsValid() {
		return "", 0, fmt.Errorf("%w: cached file sniffed as %s", utils.ErrUnsupportedMedia, mimeType)
	}
	return mimeType, utils.FileSize(path), nil
}

// copyWithLimit copies src to dst in chunks of at most chunkSize bytes and
// fails as soon as more than limit bytes have been written. A limit <= 0
// disables the check.
func copyWithLimit(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("%w: writing media data: %w", utils.ErrFilesystem, err)
			}
			total += int64(n)
			if limit > 0 && total > limit {
				return total, fmt.Errorf("%w: %d bytes transferred, limit %d", utils.ErrSizeLimitExceeded, total, limit)
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, readErr)
		}
	}
}

func removePartial(path string, logEntry *logrus.Entry) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logEntry.Warnf("Failed to remove failed download: %v", err)
	}
}
