package crawler

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	mgr, err := cache.NewManager(t.TempDir(), testLogger())
	require.NoError(t, err)
	return mgr
}

func TestSessionManager_Lifecycle(t *testing.T) {
	mgr := newTestCache(t)
	sm := NewSessionManager(mgr, testLogger())

	created, err := sm.Create("https://example.com/", 2)
	require.NoError(t, err)
	assert.True(t, mgr.SessionExists(created.ID))
	assert.Equal(t, models.SessionStatusCreated, created.Status)
	assert.Equal(t, mgr.GetSessionPath(created.ID), created.CacheDir)

	require.True(t, sm.MarkStarted(created.ID))
	running, ok := sm.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusRunning, running.Status)
	assert.Nil(t, running.EndTime)

	require.True(t, sm.MarkCompleted(created.ID, 7, 3))
	done, ok := sm.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.Equal(t, 7, done.PagesCrawled)
	assert.Equal(t, 3, done.MediaFound)
	assert.Equal(t, "https://example.com/", done.URL)
	assert.Equal(t, 2, done.MaxDepth)
	require.NotNil(t, done.EndTime)
	require.NotNil(t, done.Duration)
	assert.GreaterOrEqual(t, *done.Duration, 0.0)
}

func TestSessionManager_MarkFailed(t *testing.T) {
	mgr := newTestCache(t)
	sm := NewSessionManager(mgr, testLogger())
	created, err := sm.Create("https://example.com/", 0)
	require.NoError(t, err)

	require.True(t, sm.MarkFailed(created.ID, "seed unreachable"))
	failed, ok := sm.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Equal(t, "seed unreachable", failed.ErrorMessage)
	assert.NotNil(t, failed.EndTime)
}

func TestSessionManager_GoneSession(t *testing.T) {
	mgr := newTestCache(t)
	sm := NewSessionManager(mgr, testLogger())
	created, err := sm.Create("https://example.com/", 0)
	require.NoError(t, err)
	require.True(t, mgr.ClearSession(created.ID))

	assert.False(t, sm.MarkStarted(created.ID))
	assert.False(t, sm.MarkCompleted(created.ID, 1, 1))
	assert.False(t, sm.MarkFailed(created.ID, "x"))
	_, ok := sm.Get(created.ID)
	assert.False(t, ok)
	assert.False(t, sm.Update(created))
	_, ok = sm.Attach(created.ID, "https://example.com/", 0)
	assert.False(t, ok)
}

func TestSessionManager_CorruptRecord(t *testing.T) {
	mgr := newTestCache(t)
	sm := NewSessionManager(mgr, testLogger())
	created, err := sm.Create("https://example.com/", 0)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Paths().CrawlSessionFile(created.ID), []byte("{broken"), 0o644))

	_, ok := sm.Get(created.ID)
	assert.False(t, ok)
	assert.False(t, sm.MarkStarted(created.ID))
}

func TestSessionManager_Attach(t *testing.T) {
	mgr := newTestCache(t)
	sm := NewSessionManager(mgr, testLogger())

	// A bare cache session gets a fresh record
	id, err := mgr.CreateSession()
	require.NoError(t, err)
	attached, ok := sm.Attach(id, "https://example.com/", 1)
	require.True(t, ok)
	assert.Equal(t, id, attached.ID)
	assert.Equal(t, models.SessionStatusCreated, attached.Status)

	// An existing record is returned unchanged
	require.True(t, sm.MarkCompleted(id, 4, 2))
	again, ok := sm.Attach(id, "https://other.example/", 3)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusCompleted, again.Status)
	assert.Equal(t, "https://example.com/", again.URL)
}
