package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "sweep_state.json"

// SweepState is the persisted history of the expiry sweeper. It lives in the
// cache root next to the session directories, which the sweep itself skips
// because it is a plain file.
type SweepState struct {
	LastRunTime  time.Time `json:"last_run_time,omitzero"`
	LastRemoved  int       `json:"last_removed"`
	TotalRemoved int       `json:"total_removed"`
	Runs         int       `json:"runs"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// StateManager handles persisting and loading sweep state
type StateManager struct {
	stateDir  string
	statePath string
	state     SweepState
	mu        sync.RWMutex
}

// NewStateManager creates a state manager writing into stateDir
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
	}
}

// Load loads the state from disk. A missing file is a fresh state.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = SweepState{}
			return nil
		}
		return fmt.Errorf("failed to read sweep state: %w", err)
	}

	var loaded SweepState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse sweep state: %w", err)
	}
	m.state = loaded
	return nil
}

// Save writes the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sweep state: %w", err)
	}

	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write sweep state: %w", err)
	}
	if err := os.Rename(tmp, m.statePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace sweep state: %w", err)
	}
	return nil
}

// RecordRun stores the outcome of one sweep
func (m *StateManager) RecordRun(at time.Time, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastRunTime = at
	m.state.LastRemoved = removed
	m.state.TotalRemoved += removed
	m.state.Runs++
}

// State returns a copy of the current state
func (m *StateManager) State() SweepState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// NextRunTime returns when the next sweep is due
func (m *StateManager) NextRunTime(interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.LastRunTime.IsZero() {
		return time.Now()
	}
	return m.state.LastRunTime.Add(interval)
}
