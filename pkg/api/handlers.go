package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// crawlRequest is the body of POST /api/crawl
type crawlRequest struct {
	URL       string `json:"url"`
	Depth     *int   `json:"depth,omitempty"`      // Defaults to max_crawl_depth
	SessionID string `json:"session_id,omitempty"` // Previous session, cleared before the crawl
}

// sessionCacheInfo is the cache_info block of session responses
type sessionCacheInfo struct {
	Path         string         `json:"path"`
	MediaCount   *int           `json:"media_count,omitempty"`
	DiskUsage    int64          `json:"disk_usage"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	MediaTypes   map[string]int `json:"media_types"`
}

type mediaListResponse struct {
	Media     []*models.Media  `json:"media"`
	Count     int              `json:"count"`
	SessionID string           `json:"session_id"`
	CacheInfo sessionCacheInfo `json:"cache_info"`
}

type statusResponse struct {
	Status     string            `json:"status"`
	SessionID  string            `json:"session_id,omitempty"`
	MediaCount int               `json:"media_count,omitempty"`
	CacheInfo  *sessionCacheInfo `json:"cache_info,omitempty"`
}

type currentSessionInfo struct {
	SessionID  string         `json:"session_id"`
	Path       string         `json:"path"`
	MediaCount int            `json:"media_count"`
	DiskUsage  int64          `json:"disk_usage"`
	MediaTypes map[string]int `json:"media_types"`
}

type cacheInfoResponse struct {
	CacheDir       string              `json:"cache_dir"`
	TotalSize      int64               `json:"total_size"`
	CurrentSession *currentSessionInfo `json:"current_session"`
}

// POST /api/crawl
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	depth := -1
	if req.Depth != nil {
		depth = *req.Depth
	}

	res, err := s.orch.Run(r.Context(), orchestrate.Request{
		URL:               req.URL,
		Depth:             depth,
		PreviousSessionID: req.SessionID,
	})
	switch {
	case errors.Is(err, utils.ErrParsing):
		writeError(w, http.StatusBadRequest, "Invalid URL")
	case res == nil:
		s.log.WithField("url", req.URL).Errorf("Crawl request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error(), "url": req.URL})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.cache.CreateSession()
	if err != nil {
		s.log.Errorf("Failed to create session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// GET /api/sessions/{id}/media
func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := s.activeSession(w, r)
	if !ok {
		return
	}

	mediaList := s.cache.GetMediaMetadata(id)
	if mediaList == nil {
		mediaList = []*models.Media{}
	}
	stats := s.cache.GetSessionStats(id)

	writeJSON(w, http.StatusOK, mediaListResponse{
		Media:     mediaList,
		Count:     len(mediaList),
		SessionID: id,
		CacheInfo: sessionCacheInfo{
			Path:       s.cache.GetSessionPath(id),
			MediaCount: &stats.MediaCount,
			DiskUsage:  stats.DiskUsage,
			MediaTypes: stats.MediaTypes,
		},
	})
}

// GET /api/sessions/{id}/media/{mediaID}. The id may also be a cached
// filename.
func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	mediaID := chi.URLParam(r, "mediaID")

	if m, found := s.cache.GetMediaByID(id, mediaID); found {
		writeJSON(w, http.StatusOK, m)
		return
	}
	if m, found := s.cache.GetMediaByFilename(id, mediaID); found {
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeError(w, http.StatusNotFound, "Media not found")
}

// GET /api/sessions/{id}/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.cache.SessionExists(id) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "no_session"})
		return
	}
	s.cache.UpdateAccessTime(id)

	stats := s.cache.GetSessionStats(id)
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "active",
		SessionID:  id,
		MediaCount: stats.MediaCount,
		CacheInfo: &sessionCacheInfo{
			Path:         s.cache.GetSessionPath(id),
			DiskUsage:    stats.DiskUsage,
			CreatedAt:    &stats.CreatedAt,
			LastAccessed: &stats.LastAccessed,
			MediaTypes:   stats.MediaTypes,
		},
	})
}

// POST /api/sessions/{id}/clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.cache.SessionExists(id) {
		s.cache.ClearSession(id)
		s.log.WithField("session_id", id).Info("Manually cleared cache session")
	}

	newID, err := s.cache.CreateSession()
	if err != nil {
		s.log.Errorf("Failed to create session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             "Cache cleared",
		"previous_session_id": id,
		"new_session_id":      newID,
	})
}

// GET /api/cache-info?session_id=
func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	resp := cacheInfoResponse{
		CacheDir:  s.cache.Root(),
		TotalSize: s.cache.GetCacheSize(),
	}

	if id := r.URL.Query().Get("session_id"); id != "" && s.cache.SessionExists(id) {
		stats := s.cache.GetSessionStats(id)
		resp.CurrentSession = &currentSessionInfo{
			SessionID:  id,
			Path:       s.cache.GetSessionPath(id),
			MediaCount: stats.MediaCount,
			DiskUsage:  stats.DiskUsage,
			MediaTypes: stats.MediaTypes,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /media/{id}/{filename}
func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	s.serveSessionFile(w, r, "", func(id, filename string) bool {
		_, ok := s.cache.GetMediaByFilename(id, filename)
		return ok
	})
}

// GET /thumbnail/{id}/{filename}
func (s *Server) handleThumbnailFile(w http.ResponseWriter, r *http.Request) {
	s.serveSessionFile(w, r, "thumbnails", func(id, filename string) bool {
		for _, m := range s.cache.GetMediaMetadata(id) {
			if m.ThumbnailPath != "" && filepath.Base(m.ThumbnailPath) == filename {
				return true
			}
		}
		return false
	})
}

// serveSessionFile serves filename from the session directory (or subdir)
// when recorded reports it as one of the session's media or thumbnails.
// Bookkeeping files such as metadata.json are never served.
func (s *Server) serveSessionFile(w http.ResponseWriter, r *http.Request, subdir string, recorded func(id, filename string) bool) {
	id := chi.URLParam(r, "id")
	filename := chi.URLParam(r, "filename")
	if !s.cache.SessionExists(id) || !utils.IsSafePathComponent(filename) || !recorded(id, filename) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.cache.GetSessionPath(id), subdir, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.log.WithField("session_id", id).Warnf("File not found: %s", filename)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	s.cache.UpdateAccessTime(id)
	http.ServeFile(w, r, path)
}

// activeSession resolves the {id} path parameter, writing a 404 when the
// session does not exist. Found sessions have their access time touched.
func (s *Server) activeSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !s.cache.SessionExists(id) {
		writeError(w, http.StatusNotFound, "Session not found")
		return "", false
	}
	s.cache.UpdateAccessTime(id)
	return id, true
}
