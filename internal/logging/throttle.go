package logging

import (
	"sync"

	"okx-spread-bot/internal/config"

	"golang.org/x/time/rate"
)

// Throttle bounds repeated log lines per instrument: at most one emission per
// configured interval for any given instrument id. A nil or disabled throttle
// admits everything.
type Throttle struct {
	enabled  bool
	interval rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewThrottle(cfg config.ThrottleConfig) *Throttle {
	if !cfg.Enabled || cfg.Interval <= 0 {
		return &Throttle{}
	}
	return &Throttle{
		enabled:  true,
		interval: rate.Every(cfg.Interval),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *Throttle) Allow(instID string) bool {
	if t == nil || !t.enabled {
		return true
	}
	t.mu.Lock()
	limiter, ok := t.limiters[instID]
	if !ok {
		limiter = rate.NewLimiter(t.interval, 1)
		t.limiters[instID] = limiter
	}
	t.mu.Unlock()
	return limiter.Allow()
}
