package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
)

// Sweeper periodically removes expired cache sessions
type Sweeper struct {
	cache    *cache.Manager
	interval time.Duration
	expiry   time.Duration
	log      *logrus.Entry
	state    *StateManager
}

// NewSweeper creates a sweeper removing sessions idle for longer than expiry
// every interval. Sweep history is kept in the cache root.
func NewSweeper(mgr *cache.Manager, interval, expiry time.Duration, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		cache:    mgr,
		interval: interval,
		expiry:   expiry,
		log:      log.WithField("component", "sweeper"),
		state:    NewStateManager(mgr.Root()),
	}
}

// Run sweeps once immediately and then on every tick. It blocks until ctx
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", s.interval)
	}
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load sweep state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting expiry sweeper: interval %s, expiry %s", FormatInterval(s.interval), FormatInterval(s.expiry))
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper shutting down...")
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one expiry pass and returns how many sessions were removed
func (s *Sweeper) Sweep() int {
	removed := s.cache.CleanExpiredSessions(s.expiry)
	s.state.RecordRun(time.Now(), removed)
	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save sweep state: %v", err)
	}
	s.log.Debugf("Next sweep at %s", s.state.NextRunTime(s.interval).Format("15:04:05"))
	return removed
}

// Status returns the sweep history
func (s *Sweeper) Status() SweepState {
	return s.state.State()
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a Go duration string that may also use a day suffix
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
