package engine

import (
	"strings"
	"sync"
	"time"
)

// Direction labels the two actions the engine can take on a pair.
type Direction string

const (
	DirectionOpen  Direction = "open"
	DirectionClose Direction = "close"
)

// FreezeGate holds per pair, per direction cooldown windows. A cycle must
// claim the window before placing any order; the claim and the expiry check
// happen under one lock, so two cycles can never both act on the same pair
// and direction inside one window.
type FreezeGate struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewFreezeGate() *FreezeGate {
	return &FreezeGate{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

func freezeKey(spot, swap string, dir Direction) string {
	return strings.ToUpper(spot) + "|" + strings.ToUpper(swap) + "|" + string(dir)
}

// Claim returns false while an earlier claim for the same pair and direction
// is still active. Otherwise it starts a new window of the given duration and
// returns true. Each (pair, direction) key is independent.
func (g *FreezeGate) Claim(spot, swap string, dir Direction, window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := freezeKey(spot, swap, dir)
	now := g.now()
	if expiry, ok := g.until[key]; ok && now.Before(expiry) {
		return false
	}
	g.until[key] = now.Add(window)
	return true
}

// Release drops an active claim early. The engine releases when the first
// order of a claimed action fails, so the next cycle may retry immediately.
func (g *FreezeGate) Release(spot, swap string, dir Direction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, freezeKey(spot, swap, dir))
}

// Active reports whether a claim for the pair and direction has not yet
// expired.
func (g *FreezeGate) Active(spot, swap string, dir Direction) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.until[freezeKey(spot, swap, dir)]
	return ok && g.now().Before(expiry)
}
