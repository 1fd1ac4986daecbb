package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
)

func createTestJob(t *testing.T, jm *JobManager, url string) Job {
	t.Helper()
	job, created := jm.CreateJob(url, 1)
	require.True(t, created)
	require.NotEmpty(t, job.ID)
	return job
}

func TestCreateJob(t *testing.T) {
	t.Run("new job fields correct", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")

		assert.Equal(t, "https://example.com", job.URL)
		assert.Equal(t, 1, job.Depth)
		assert.Equal(t, JobStatusPending, job.Status)
		assert.False(t, job.StartedAt.IsZero())
		assert.True(t, job.CompletedAt.IsZero())
		assert.Empty(t, job.SessionID)
	})

	t.Run("duplicate active url returns same job", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://example.com")
		job2, created := jm.CreateJob("https://example.com", 3)
		assert.False(t, created)
		assert.Equal(t, job1.ID, job2.ID)
	})

	t.Run("new job allowed after finish", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://example.com")
		jm.Finish(job1.ID, JobStatusCompleted, nil, "")

		job2 := createTestJob(t, jm, "https://example.com")
		assert.NotEqual(t, job1.ID, job2.ID)
	})

	t.Run("different urls independent", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://a.example.com")
		job2 := createTestJob(t, jm, "https://b.example.com")
		assert.NotEqual(t, job1.ID, job2.ID)
	})
}

func TestGetJob(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "https://example.com")

	got, ok := jm.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	_, ok = jm.GetJob("nonexistent-id")
	assert.False(t, ok)
}

func TestIsRunning(t *testing.T) {
	jm := NewJobManager()

	pending := createTestJob(t, jm, "https://pending.example.com")
	assert.True(t, jm.IsRunning(pending.URL))

	running := createTestJob(t, jm, "https://running.example.com")
	jm.MarkRunning(running.ID)
	assert.True(t, jm.IsRunning(running.URL))

	failed := createTestJob(t, jm, "https://failed.example.com")
	jm.Finish(failed.ID, JobStatusFailed, nil, "something broke")
	assert.False(t, jm.IsRunning(failed.URL))

	cancelled := createTestJob(t, jm, "https://cancelled.example.com")
	jm.CancelJob(cancelled.ID)
	assert.False(t, jm.IsRunning(cancelled.URL))

	assert.False(t, jm.IsRunning("https://ghost.example.com"))
}

func TestFinish(t *testing.T) {
	t.Run("completed copies the result", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")
		jm.MarkRunning(job.ID)

		jm.Finish(job.ID, JobStatusCompleted, &orchestrate.Result{
			Success:    true,
			SessionID:  "sess-1",
			MediaCount: 4,
			Stats:      models.CrawlStats{TotalPages: 3},
			Warning:    "careful",
		}, "")

		got, _ := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusCompleted, got.Status)
		assert.False(t, got.CompletedAt.IsZero())
		assert.Equal(t, "sess-1", got.SessionID)
		assert.Equal(t, 4, got.MediaCount)
		assert.Equal(t, 3, got.PagesCrawled)
		assert.Equal(t, "careful", got.Warning)
		assert.Error(t, jm.jobContext(job.ID).Err(), "finished jobs release their context")
	})

	t.Run("failed sets ErrorMessage", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")
		jm.Finish(job.ID, JobStatusFailed, nil, "seed unreachable")

		got, _ := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusFailed, got.Status)
		assert.Equal(t, "seed unreachable", got.ErrorMessage)
	})

	t.Run("cancelled stays cancelled", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")
		require.True(t, jm.CancelJob(job.ID))

		jm.Finish(job.ID, JobStatusFailed, &orchestrate.Result{SessionID: "partial"}, "context canceled")

		got, _ := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusCancelled, got.Status)
		assert.Equal(t, "partial", got.SessionID)
	})

	t.Run("nonexistent is no-op", func(t *testing.T) {
		jm := NewJobManager()
		jm.Finish("fake-id", JobStatusCompleted, nil, "")
	})

	t.Run("finishing an old job keeps the newer job registered", func(t *testing.T) {
		jm := NewJobManager()
		old := createTestJob(t, jm, "https://example.com")
		require.True(t, jm.CancelJob(old.ID))
		newer := createTestJob(t, jm, "https://example.com")

		jm.Finish(old.ID, JobStatusCancelled, nil, "")

		assert.True(t, jm.IsRunning(newer.URL))
	})
}

func TestCancelJob(t *testing.T) {
	t.Run("running job cancelled", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")
		jm.MarkRunning(job.ID)

		assert.True(t, jm.CancelJob(job.ID))

		got, _ := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusCancelled, got.Status)
		assert.False(t, got.CompletedAt.IsZero())
		assert.Error(t, jm.jobContext(job.ID).Err())
	})

	t.Run("completed job not cancellable", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com")
		jm.Finish(job.ID, JobStatusCompleted, nil, "")

		assert.False(t, jm.CancelJob(job.ID))
	})

	t.Run("nonexistent returns false", func(t *testing.T) {
		assert.False(t, NewJobManager().CancelJob("nope"))
	})
}

func TestCancelAll(t *testing.T) {
	jm := NewJobManager()
	job1 := createTestJob(t, jm, "https://a.example.com")
	job2 := createTestJob(t, jm, "https://b.example.com")
	job3 := createTestJob(t, jm, "https://c.example.com")
	jm.Finish(job3.ID, JobStatusCompleted, nil, "")

	jm.CancelAll()

	for id, want := range map[string]JobStatus{
		job1.ID: JobStatusCancelled,
		job2.ID: JobStatusCancelled,
		job3.ID: JobStatusCompleted,
	} {
		got, _ := jm.GetJob(id)
		assert.Equal(t, want, got.Status)
	}

	newJob := createTestJob(t, jm, "https://a.example.com")
	assert.NotEqual(t, job1.ID, newJob.ID)
}

func TestJobContext(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "https://example.com")
	assert.NoError(t, jm.jobContext(job.ID).Err())

	assert.Equal(t, context.Background(), jm.jobContext("nope"))
}
