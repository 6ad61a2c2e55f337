package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"okx-spread-bot/internal/config"
	"okx-spread-bot/internal/exec"
	"okx-spread-bot/internal/market"
	"okx-spread-bot/internal/metrics"
	"okx-spread-bot/internal/state"
	"okx-spread-bot/internal/timescale"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Positions below this magnitude count as flat. The exchange reports dust
// remainders after closes that would otherwise keep a pair locked out of the
// open gate forever.
var flatEpsilon = decimal.New(1, -9)

// OrderPlacer is the execution contract the engine drives. The concrete
// implementation adds idempotency and retries.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order exec.Order) (string, error)
}

// Notifier delivers operator alerts. Send errors are logged and swallowed;
// alerting never blocks trading.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// pairRuntime carries one configured pair with its thresholds and sizes
// already converted to decimals, so no cycle re-parses configuration.
type pairRuntime struct {
	spot           string
	swap           string
	openThreshold  decimal.Decimal
	closeThreshold decimal.Decimal
	spotSize       decimal.Decimal
	swapSize       decimal.Decimal
}

// Engine polls the market stores on a fixed interval and runs the spread
// decision for every configured pair. All collaborators are injected; the
// engine owns no connections and keeps no market state of its own beyond the
// freeze gate.
type Engine struct {
	cfg       config.EngineConfig
	pairs     []pairRuntime
	prices    *market.Store[market.PricePoint]
	books     *market.Store[market.BookLevel]
	positions *market.PositionBook
	placer    OrderPlacer
	freezes   *FreezeGate
	store     state.Store
	recorder  *Recorder
	writer    *timescale.Writer
	notifier  Notifier
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	cfg config.EngineConfig,
	pairs []config.PairConfig,
	prices *market.Store[market.PricePoint],
	books *market.Store[market.BookLevel],
	positions *market.PositionBook,
	placer OrderPlacer,
	store state.Store,
	recorder *Recorder,
	writer *timescale.Writer,
	notifier Notifier,
	log *zap.Logger,
	m *metrics.Metrics,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	runtimes := make([]pairRuntime, 0, len(pairs))
	for _, pair := range pairs {
		runtimes = append(runtimes, pairRuntime{
			spot:           pair.Spot,
			swap:           pair.Swap,
			openThreshold:  decimal.NewFromFloat(pair.OpenThreshold),
			closeThreshold: decimal.NewFromFloat(pair.CloseThreshold),
			spotSize:       decimal.NewFromFloat(pair.SpotSize),
			swapSize:       decimal.NewFromFloat(pair.SwapSize),
		})
	}
	return &Engine{
		cfg:       cfg,
		pairs:     runtimes,
		prices:    prices,
		books:     books,
		positions: positions,
		placer:    placer,
		freezes:   NewFreezeGate(),
		store:     store,
		recorder:  recorder,
		writer:    writer,
		notifier:  notifier,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Run polls until the context is cancelled. Order failures are absorbed per
// cycle; only cancellation ends the loop.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	e.log.Info("engine started",
		zap.Duration("poll_interval", e.cfg.PollInterval),
		zap.Int("pairs", len(e.pairs)),
	)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			for i := range e.pairs {
				e.runCycle(ctx, &e.pairs[i])
			}
		}
	}
}

// runCycle evaluates one pair once. Missing market data skips the pair
// silently; the feeds will fill the stores as messages arrive.
func (e *Engine) runCycle(ctx context.Context, pair *pairRuntime) {
	spotPoint, ok := e.prices.Get(pair.spot)
	if !ok {
		return
	}
	swapPoint, ok := e.prices.Get(pair.swap)
	if !ok {
		return
	}
	level, ok := e.books.Get(pair.spot)
	if !ok || !level.HasAsk {
		return
	}
	spotLast := spotPoint.Last
	swapLast := swapPoint.Last
	spotAsk := level.SellPrice
	if spotLast.IsZero() || spotAsk.IsZero() {
		return
	}

	openSpread := swapLast.Sub(spotAsk).Div(spotAsk)
	closeSpread := swapLast.Sub(spotLast).Div(spotLast)

	e.writer.EnqueueSpread(timescale.SpreadSample{
		Time:        e.now(),
		Spot:        pair.spot,
		Swap:        pair.swap,
		OpenSpread:  openSpread.InexactFloat64(),
		CloseSpread: closeSpread.InexactFloat64(),
		SpotLast:    spotLast.InexactFloat64(),
		SwapLast:    swapLast.InexactFloat64(),
		SpotAsk:     spotAsk.InexactFloat64(),
	})

	spotNet := e.positions.Net(pair.spot)
	swapNet := e.positions.Net(pair.swap)
	spotFlat := isFlat(spotNet)
	swapFlat := isFlat(swapNet)

	if spotFlat && swapFlat && openSpread.GreaterThan(pair.openThreshold) {
		if e.freezes.Claim(pair.spot, pair.swap, DirectionOpen, e.cfg.OpenCooldown) {
			e.openPosition(ctx, pair, openSpread, spotAsk, swapLast)
		}
		return
	}

	if !spotFlat && !swapFlat && closeSpread.LessThan(pair.closeThreshold) {
		if e.freezes.Claim(pair.spot, pair.swap, DirectionClose, e.cfg.CloseCooldown) {
			e.closePosition(ctx, pair, closeSpread, spotLast, swapLast, spotNet)
		}
	}
}

// openPosition buys spot for cash and sells the swap short, in that order.
// A first-leg failure releases the freeze so the next cycle may retry; a
// second-leg failure leaves the freeze in place and raises a hedge mismatch,
// since the spot leg is already filled.
func (e *Engine) openPosition(ctx context.Context, pair *pairRuntime, spread, spotAsk, swapLast decimal.Decimal) {
	now := e.now()
	spotOrderID, err := e.placer.PlaceOrder(ctx, exec.Order{
		InstID:        pair.spot,
		Side:          "buy",
		Size:          pair.spotSize,
		Mode:          "cash",
		ClientOrderID: clientOrderID(DirectionOpen, 1, now),
	})
	if err != nil {
		e.freezes.Release(pair.spot, pair.swap, DirectionOpen)
		e.metrics.OrdersFailed.Inc()
		e.log.Error("open spot leg failed",
			zap.String("spot", pair.spot),
			zap.String("swap", pair.swap),
			zap.Error(err),
		)
		return
	}
	e.metrics.OrdersPlaced.Inc()

	swapOrderID, err := e.placer.PlaceOrder(ctx, exec.Order{
		InstID:        pair.swap,
		Side:          "sell",
		Size:          pair.swapSize,
		Mode:          "cross",
		PosSide:       "short",
		ClientOrderID: clientOrderID(DirectionOpen, 2, now),
	})
	if err != nil {
		e.hedgeMismatch(ctx, pair, DirectionOpen, err)
		return
	}
	e.metrics.OrdersPlaced.Inc()
	e.metrics.OpensExecuted.Inc()

	e.recordTrade(ctx, pair, DirectionOpen, spread, spotAsk, swapLast,
		pair.spotSize, pair.swapSize, spotOrderID, swapOrderID)
}

// closePosition unwinds both legs with the live sizes reported by the
// position feed, not the configured sizes, so partial fills and dust are
// swept up.
func (e *Engine) closePosition(ctx context.Context, pair *pairRuntime, spread, spotLast, swapLast, spotNet decimal.Decimal) {
	now := e.now()
	spotSize := spotNet.Abs()
	swapSize := e.positions.Short(pair.swap)
	if swapSize.IsZero() {
		swapSize = e.positions.Net(pair.swap).Abs()
	}

	spotOrderID, err := e.placer.PlaceOrder(ctx, exec.Order{
		InstID:        pair.spot,
		Side:          "sell",
		Size:          spotSize,
		Mode:          "cash",
		ClientOrderID: clientOrderID(DirectionClose, 1, now),
	})
	if err != nil {
		e.freezes.Release(pair.spot, pair.swap, DirectionClose)
		e.metrics.OrdersFailed.Inc()
		e.log.Error("close spot leg failed",
			zap.String("spot", pair.spot),
			zap.String("swap", pair.swap),
			zap.Error(err),
		)
		return
	}
	e.metrics.OrdersPlaced.Inc()

	swapOrderID, err := e.placer.PlaceOrder(ctx, exec.Order{
		InstID:        pair.swap,
		Side:          "buy",
		Size:          swapSize,
		Mode:          "cross",
		PosSide:       "short",
		ClientOrderID: clientOrderID(DirectionClose, 2, now),
	})
	if err != nil {
		e.hedgeMismatch(ctx, pair, DirectionClose, err)
		return
	}
	e.metrics.OrdersPlaced.Inc()
	e.metrics.ClosesExecuted.Inc()

	e.recordTrade(ctx, pair, DirectionClose, spread, spotLast, swapLast,
		spotSize, swapSize, spotOrderID, swapOrderID)
}

// hedgeMismatch handles a filled first leg with a failed second leg. The
// freeze stays claimed so the half-open state is not compounded before an
// operator or the next close cycle resolves it.
func (e *Engine) hedgeMismatch(ctx context.Context, pair *pairRuntime, dir Direction, err error) {
	e.metrics.OrdersFailed.Inc()
	e.metrics.HedgeMismatches.Inc()
	e.log.Error("hedge leg failed after first leg filled",
		zap.String("direction", string(dir)),
		zap.String("spot", pair.spot),
		zap.String("swap", pair.swap),
		zap.Error(err),
	)
	e.notify(ctx, fmt.Sprintf("HEDGE MISMATCH %s %s/%s: swap leg failed after spot leg filled: %v",
		dir, pair.spot, pair.swap, err))
}

func (e *Engine) recordTrade(ctx context.Context, pair *pairRuntime, dir Direction, spread, spotPrice, swapPrice, spotSize, swapSize decimal.Decimal, spotOrderID, swapOrderID string) {
	now := e.now()
	e.log.Info("trade executed",
		zap.String("direction", string(dir)),
		zap.String("spot", pair.spot),
		zap.String("swap", pair.swap),
		zap.String("spread", spread.String()),
		zap.String("spot_price", spotPrice.String()),
		zap.String("swap_price", swapPrice.String()),
		zap.String("spot_size", spotSize.String()),
		zap.String("swap_size", swapSize.String()),
		zap.String("spot_order_id", spotOrderID),
		zap.String("swap_order_id", swapOrderID),
	)

	if err := e.recorder.Record(RecordLine{
		Time:        now,
		Direction:   string(dir),
		Spot:        pair.spot,
		Swap:        pair.swap,
		Spread:      spread.String(),
		SpotPrice:   spotPrice.String(),
		SwapPrice:   swapPrice.String(),
		SpotSize:    spotSize.String(),
		SwapSize:    swapSize.String(),
		SpotOrderID: spotOrderID,
		SwapOrderID: swapOrderID,
	}); err != nil {
		e.log.Warn("trade record write failed", zap.Error(err))
	}

	if err := state.SaveTradeSnapshot(ctx, e.store, state.TradeSnapshot{
		Direction:  string(dir),
		Spot:       pair.spot,
		Swap:       pair.swap,
		Spread:     spread.String(),
		SpotPrice:  spotPrice.String(),
		SwapPrice:  swapPrice.String(),
		SpotSize:   spotSize.String(),
		SwapSize:   swapSize.String(),
		ExecutedMS: now.UnixMilli(),
	}); err != nil {
		e.log.Warn("trade snapshot save failed", zap.Error(err))
	}

	e.writer.EnqueueTrade(timescale.TradeRecord{
		Time:      now,
		Direction: string(dir),
		Spot:      pair.spot,
		Swap:      pair.swap,
		Spread:    spread.InexactFloat64(),
		SpotPrice: spotPrice.InexactFloat64(),
		SwapPrice: swapPrice.InexactFloat64(),
		SpotSize:  spotSize.InexactFloat64(),
		SwapSize:  swapSize.InexactFloat64(),
	})

	e.notify(ctx, fmt.Sprintf("%s %s/%s spread=%s spot=%s swap=%s",
		dir, pair.spot, pair.swap, spread.String(), spotPrice.String(), swapPrice.String()))
}

func (e *Engine) notify(ctx context.Context, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, message); err != nil {
		e.log.Warn("notification failed", zap.Error(err))
	}
}

func isFlat(size decimal.Decimal) bool {
	return size.Abs().LessThanOrEqual(flatEpsilon)
}

// clientOrderID builds an exchange-safe idempotency key: direction letter,
// leg index, and the cycle's nanosecond timestamp. Both legs of one action
// share the timestamp, so a retried cycle maps onto the same keys.
func clientOrderID(dir Direction, leg int, now time.Time) string {
	prefix := "o"
	if dir == DirectionClose {
		prefix = "c"
	}
	return prefix + strconv.Itoa(leg) + "x" + strconv.FormatInt(now.UnixNano(), 10)
}
