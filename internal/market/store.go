package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is the latest traded price for one instrument. The raw string
// from the wire is parsed exactly once, at the feed boundary.
type PricePoint struct {
	InstID    string
	Last      decimal.Decimal
	UpdatedAt time.Time
}

// BookLevel is one snapshot of the configured bid/ask depth for an
// instrument. The prices are those of the depth index requested at subscribe
// time, not necessarily best bid/ask. HasBid/HasAsk track which sides have
// ever been populated; a snapshot shallower than the configured depth leaves
// the previous side untouched.
type BookLevel struct {
	InstID    string
	BuyPrice  decimal.Decimal
	BuySize   decimal.Decimal
	SellPrice decimal.Decimal
	SellSize  decimal.Decimal
	HasBid    bool
	HasAsk    bool
	UpdatedAt time.Time
}

// Store is a concurrent instrument-keyed map. Each instance has exactly one
// writer (its owning feed) and many readers (the engine); instances are
// injected rather than shared through package state so tests can isolate
// them.
type Store[V any] struct {
	mu     sync.RWMutex
	values map[string]V
}

func NewStore[V any]() *Store[V] {
	return &Store[V]{values: make(map[string]V)}
}

func (s *Store[V]) Get(instID string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[instID]
	return val, ok
}

func (s *Store[V]) Set(instID string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[instID] = value
}

func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
