package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
)

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a background crawl-and-download run
type Job struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Depth       int       `json:"depth"`
	Status      JobStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Filled in when the run finishes
	SessionID    string `json:"session_id,omitempty"`
	MediaCount   int    `json:"media_count"`
	PagesCrawled int    `json:"pages_crawled"`
	Warning      string `json:"warning,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// JobManager tracks background crawl jobs. At most one job runs per URL.
type JobManager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	byURL map[string]string // url -> jobID for active jobs
}

// NewJobManager creates an empty job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byURL: make(map[string]string),
	}
}

// CreateJob registers a pending job for url. When a job for the same url is
// still active, that job is returned with created set to false.
func (m *JobManager) CreateJob(url string, depth int) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byURL[url]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.active() {
			return *existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Depth:     depth,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[j.ID] = j
	m.byURL[url] = j.ID
	return *j, true
}

// GetJob returns a snapshot of a job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return *j, true
	}
	return Job{}, false
}

// IsRunning reports whether a job for url is pending or running
func (m *JobManager) IsRunning(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if jobID, ok := m.byURL[url]; ok {
		j := m.jobs[jobID]
		return j != nil && j.active()
	}
	return false
}

// MarkRunning moves a pending job to running
func (m *JobManager) MarkRunning(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok && j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
}

// Finish stores the outcome of a job. res may be nil when the run never got
// far enough to produce a result. Cancelled jobs keep their status.
func (m *JobManager) Finish(jobID string, status JobStatus, res *orchestrate.Result, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if j.Status != JobStatusCancelled {
		j.Status = status
		j.CompletedAt = time.Now()
	}
	if res != nil {
		j.SessionID = res.SessionID
		j.MediaCount = res.MediaCount
		j.PagesCrawled = res.Stats.TotalPages
		j.Warning = res.Warning
	}
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
	if m.byURL[j.URL] == j.ID {
		delete(m.byURL, j.URL)
	}
	j.cancel()
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.active() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
	delete(m.byURL, j.URL)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.active() {
			j.cancel()
			j.Status = JobStatusCancelled
			j.CompletedAt = time.Now()
		}
	}
	m.byURL = make(map[string]string)
}

// jobContext returns the context a job runs under
func (m *JobManager) jobContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.ctx
	}
	return context.Background()
}
