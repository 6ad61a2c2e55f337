package market

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Position sides as reported on the positions channel. Spot instruments in
// net mode report "net"; swaps in long/short mode report "long" or "short".
const (
	SideNet   = "net"
	SideLong  = "long"
	SideShort = "short"
)

// PositionBook stores net signed position sizes keyed by (instrument, side).
// Instrument lookups are case-insensitive. Like the price and book stores it
// has a single writer, the position feed.
type PositionBook struct {
	mu    sync.RWMutex
	sizes map[string]decimal.Decimal
}

func NewPositionBook() *PositionBook {
	return &PositionBook{sizes: make(map[string]decimal.Decimal)}
}

func positionKey(instID, side string) string {
	return strings.ToUpper(instID) + "|" + strings.ToLower(side)
}

func (b *PositionBook) Set(instID, side string, size decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sizes[positionKey(instID, side)] = size
}

func (b *PositionBook) Get(instID, side string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	size, ok := b.sizes[positionKey(instID, side)]
	return size, ok
}

// Net aggregates an instrument's position across sides: net + long - short.
// Unseen instruments aggregate to zero, which the engine treats as flat.
func (b *PositionBook) Net(instID string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := decimal.Zero
	if size, ok := b.sizes[positionKey(instID, SideNet)]; ok {
		total = total.Add(size)
	}
	if size, ok := b.sizes[positionKey(instID, SideLong)]; ok {
		total = total.Add(size)
	}
	if size, ok := b.sizes[positionKey(instID, SideShort)]; ok {
		total = total.Sub(size)
	}
	return total
}

// Short returns the size held on the short side of an instrument, zero if
// none has been reported.
func (b *PositionBook) Short(instID string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if size, ok := b.sizes[positionKey(instID, SideShort)]; ok {
		return size
	}
	return decimal.Zero
}

func (b *PositionBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sizes)
}
