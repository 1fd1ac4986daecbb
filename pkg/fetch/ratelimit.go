package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests to the same host.
// A zero delay disables it entirely.
type RateLimiter struct {
	delay    time.Duration
	limiters map[string]*rate.Limiter // host -> limiter
	mu       sync.RWMutex
	log      *logrus.Entry
}

// NewRateLimiter creates a RateLimiter allowing one request per delay per host
func NewRateLimiter(delay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		delay:    delay,
		limiters: make(map[string]*rate.Limiter),
		log:      log,
	}
}

// Enabled reports whether any delay is applied
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.delay > 0
}

// Wait blocks until a request to host may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if !rl.Enabled() || host == "" {
		return nil
	}
	limiter := rl.limiterFor(host)
	if limiter.Tokens() < 1 {
		rl.log.WithFields(logrus.Fields{"host": host, "delay": rl.delay}).Debug("Rate limit applying wait")
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.limiters[host]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok = rl.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Every(rl.delay), 1)
	rl.limiters[host] = limiter
	return limiter
}
