package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/parse"
)

// handleCrawlMedia handles the crawl_media tool
func (s *Server) handleCrawlMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	if !parse.IsValidURL(rawURL) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL '%s': only absolute http(s) URLs can be crawled", rawURL)), nil
	}
	url := parse.Normalize(rawURL)
	depth := request.GetInt("depth", -1)
	previous := request.GetString("previous_session_id", "")

	job, created := s.jobManager.CreateJob(url, depth)
	if !created {
		result := map[string]any{
			"status":  "already_running",
			"message": "A crawl is already in progress for this URL",
			"job_id":  job.ID,
			"url":     url,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	s.jobsWG.Add(1)
	go func() {
		defer s.jobsWG.Done()
		s.runCrawlJob(job, previous)
	}()

	result := map[string]any{
		"status":  "started",
		"message": "Crawl started successfully",
		"job_id":  job.ID,
		"url":     url,
		"depth":   depth,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]any{
		"job_id":        job.ID,
		"url":           job.URL,
		"depth":         job.Depth,
		"status":        job.Status,
		"started_at":    job.StartedAt.Format(time.RFC3339),
		"media_count":   job.MediaCount,
		"pages_crawled": job.PagesCrawled,
	}
	if job.SessionID != "" {
		result["session_id"] = job.SessionID
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Warning != "" {
		result["warning"] = job.Warning
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListMedia handles the list_media tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' already %s", jobID, job.Status)), nil
	}
	s.log.WithField("job_id", jobID).Info("Cancelled crawl job")

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"job_id": jobID,
		"status": JobStatusCancelled,
	})), nil
}

func (s *Server) handleListMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := s.requireSession(request)
	if errResult != nil {
		return errResult, nil
	}

	mediaList := s.cache.GetMediaMetadata(sessionID)
	if mediaList == nil {
		mediaList = []*models.Media{}
	}
	stats := s.cache.GetSessionStats(sessionID)

	result := map[string]any{
		"session_id":  sessionID,
		"count":       len(mediaList),
		"media":       mediaList,
		"media_types": stats.MediaTypes,
		"disk_usage":  stats.DiskUsage,
		"path":        s.cache.GetSessionPath(sessionID),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetMedia handles the get_media tool
func (s *Server) handleGetMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := s.requireSession(request)
	if errResult != nil {
		return errResult, nil
	}
	mediaID := request.GetString("media_id", "")
	if mediaID == "" {
		return mcp.NewToolResultError("media_id parameter is required"), nil
	}

	m, ok := s.cache.GetMediaByID(sessionID, mediaID)
	if !ok {
		m, ok = s.cache.GetMediaByFilename(sessionID, mediaID)
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("media '%s' not found in session '%s'", mediaID, sessionID)), nil
	}
	return mcp.NewToolResultText(formatJSON(m)), nil
}

// handleCacheInfo handles the cache_info tool
func (s *Server) handleCacheInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"cache_dir":  s.cache.Root(),
		"total_size": s.cache.GetCacheSize(),
	}

	var current map[string]any
	if sessionID := request.GetString("session_id", ""); sessionID != "" && s.cache.SessionExists(sessionID) {
		stats := s.cache.GetSessionStats(sessionID)
		current = map[string]any{
			"session_id":  sessionID,
			"path":        s.cache.GetSessionPath(sessionID),
			"media_count": stats.MediaCount,
			"disk_usage":  stats.DiskUsage,
			"media_types": stats.MediaTypes,
		}
	}
	result["current_session"] = current

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleClearSession handles the clear_session tool
func (s *Server) handleClearSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := s.requireSession(request)
	if errResult != nil {
		return errResult, nil
	}

	cleared := s.cache.ClearSession(sessionID)
	result := map[string]any{
		"session_id": sessionID,
		"cleared":    cleared,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// requireSession reads session_id and checks that the session exists.
// Existing sessions have their access time touched.
func (s *Server) requireSession(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return "", mcp.NewToolResultError("session_id parameter is required")
	}
	if !s.cache.SessionExists(sessionID) {
		return "", mcp.NewToolResultError(fmt.Sprintf("session '%s' not found", sessionID))
	}
	s.cache.UpdateAccessTime(sessionID)
	return sessionID, nil
}

// runCrawlJob runs a crawl job in the background
func (s *Server) runCrawlJob(job Job, previousSessionID string) {
	jobLog := s.log.WithFields(logrus.Fields{"job_id": job.ID, "url": job.URL})
	defer func() {
		if r := recover(); r != nil {
			jobLog.Errorf("PANIC in crawl job: %v\n%s", r, string(debug.Stack()))
			s.jobManager.Finish(job.ID, JobStatusFailed, nil, fmt.Sprintf("internal error: %v", r))
		}
	}()

	s.jobManager.MarkRunning(job.ID)
	jobCtx := s.jobManager.jobContext(job.ID)

	res, err := s.cfg.Orchestrator.Run(jobCtx, orchestrate.Request{
		URL:               job.URL,
		Depth:             job.Depth,
		PreviousSessionID: previousSessionID,
	})

	switch {
	case errors.Is(err, context.Canceled):
		s.jobManager.Finish(job.ID, JobStatusCancelled, res, "")
	case err != nil:
		jobLog.Warnf("Crawl job failed: %v", err)
		msg := err.Error()
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		s.jobManager.Finish(job.ID, JobStatusFailed, res, msg)
	case !res.Success:
		s.jobManager.Finish(job.ID, JobStatusFailed, res, res.Error)
	default:
		jobLog.Infof("Crawl job completed with %d media", res.MediaCount)
		s.jobManager.Finish(job.ID, JobStatusCompleted, res, "")
	}
}

// formatJSON formats data as an indented JSON string
func formatJSON(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
