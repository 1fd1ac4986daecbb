package watch

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	mgr, err := cache.NewManager(t.TempDir(), testLogger())
	require.NoError(t, err)
	return mgr
}

func backdate(t *testing.T, mgr *cache.Manager, id string, age time.Duration) {
	t.Helper()
	meta := models.SessionMetadata{CreatedAt: time.Now().Add(-age), LastAccessed: time.Now().Add(-age)}
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Paths().MetadataFile(id), data, 0o644))
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"10m", 10 * time.Minute, false},
		{"1h", time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{10 * time.Minute, "10m"},
		{90 * time.Minute, "1h30m"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatInterval(tt.input))
		})
	}
}

func TestStateManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(dir)
	require.NoError(t, sm.Load(), "missing file is a fresh state")
	assert.Zero(t, sm.State().Runs)

	at := time.Now().Add(-time.Minute)
	sm.RecordRun(at, 2)
	sm.RecordRun(at.Add(30*time.Second), 1)
	require.NoError(t, sm.Save())
	assert.FileExists(t, filepath.Join(dir, stateFileName))

	reloaded := NewStateManager(dir)
	require.NoError(t, reloaded.Load())
	state := reloaded.State()
	assert.Equal(t, 2, state.Runs)
	assert.Equal(t, 1, state.LastRemoved)
	assert.Equal(t, 3, state.TotalRemoved)
	assert.WithinDuration(t, at.Add(30*time.Second), state.LastRunTime, time.Millisecond)
	assert.WithinDuration(t, at.Add(30*time.Second+time.Hour), reloaded.NextRunTime(time.Hour), time.Millisecond)
}

func TestStateManager_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{nope"), 0o644))

	assert.Error(t, NewStateManager(dir).Load())
}

func TestSweeper_Sweep(t *testing.T) {
	mgr := newTestCache(t)
	fresh, err := mgr.CreateSession()
	require.NoError(t, err)
	stale, err := mgr.CreateSession()
	require.NoError(t, err)
	backdate(t, mgr, stale, 2*time.Hour)

	s := NewSweeper(mgr, time.Minute, time.Hour, testLogger())

	assert.Equal(t, 1, s.Sweep())
	assert.True(t, mgr.SessionExists(fresh))
	assert.False(t, mgr.SessionExists(stale))

	assert.Equal(t, 0, s.Sweep())
	status := s.Status()
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.TotalRemoved)
	assert.True(t, mgr.SessionExists(fresh), "the state file is not mistaken for a session")
}

func TestSweeper_RunSweepsImmediately(t *testing.T) {
	mgr := newTestCache(t)
	stale, err := mgr.CreateSession()
	require.NoError(t, err)
	backdate(t, mgr, stale, 2*time.Hour)

	s := NewSweeper(mgr, time.Hour, time.Hour, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !mgr.SessionExists(stale) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_RunTicks(t *testing.T) {
	mgr := newTestCache(t)
	s := NewSweeper(mgr, 20*time.Millisecond, time.Hour, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	// A session going stale after the first pass is picked up by a later tick
	require.Eventually(t, func() bool { return s.Status().Runs >= 1 }, 2*time.Second, 5*time.Millisecond)
	stale, err := mgr.CreateSession()
	require.NoError(t, err)
	backdate(t, mgr, stale, 2*time.Hour)

	assert.Eventually(t, func() bool { return !mgr.SessionExists(stale) }, 2*time.Second, 10*time.Millisecond)
}

func TestSweeper_RejectsZeroInterval(t *testing.T) {
	s := NewSweeper(newTestCache(t), 0, time.Hour, testLogger())
	assert.Error(t, s.Run(context.Background()))
}
