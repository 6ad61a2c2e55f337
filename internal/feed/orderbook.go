package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"okx-spread-bot/internal/config"
	"okx-spread-bot/internal/logging"
	"okx-spread-bot/internal/market"
	"okx-spread-bot/internal/metrics"
	"okx-spread-bot/internal/okx/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderBookFeed consumes books5 snapshots and publishes one bid and one ask
// level per instrument, at the depths fixed when the feed was built. A
// snapshot shallower than a configured depth leaves that side of the stored
// level unchanged.
type OrderBookFeed struct {
	client   *ws.Client
	store    *market.Store[market.BookLevel]
	instIDs  []string
	buyDepth int
	askDepth int
	log      *zap.Logger
	throttle *logging.Throttle
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewOrderBook validates the requested depths against the books5 tier;
// anything outside [1,5] is a configuration error, reported before any
// connection is attempted.
func NewOrderBook(client *ws.Client, store *market.Store[market.BookLevel], instIDs []string, buyDepth, askDepth int, log *zap.Logger, throttle *logging.Throttle, m *metrics.Metrics) (*OrderBookFeed, error) {
	for _, depth := range []int{buyDepth, askDepth} {
		if depth < config.MinBookDepth || depth > config.MaxBookDepth {
			return nil, fmt.Errorf("book depth %d outside [%d,%d]", depth, config.MinBookDepth, config.MaxBookDepth)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &OrderBookFeed{
		client:   client,
		store:    store,
		instIDs:  instIDs,
		buyDepth: buyDepth,
		askDepth: askDepth,
		log:      log,
		throttle: throttle,
		metrics:  m,
		now:      time.Now,
	}, nil
}

func (f *OrderBookFeed) Run(ctx context.Context) error {
	if err := f.client.Subscribe(ctx, subscribeInstruments(channelBooks, f.instIDs)); err != nil {
		return err
	}
	return f.client.Run(ctx, f.handleMessage)
}

type bookData struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

func (f *OrderBookFeed) handleMessage(msg json.RawMessage) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("book message decode failed", zap.Error(err))
		return
	}
	if env.Event != "" {
		logControlEvent(f.log, env)
		return
	}
	if env.Arg.Channel != channelBooks || env.Arg.InstID == "" || len(env.Data) == 0 {
		return
	}
	var books []bookData
	if err := json.Unmarshal(env.Data, &books); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("book data decode failed", zap.String("inst_id", env.Arg.InstID), zap.Error(err))
		return
	}
	for _, book := range books {
		f.applySnapshot(env.Arg.InstID, book)
	}
}

// applySnapshot merges one snapshot into the stored level: each side is
// overwritten only when the snapshot is deep enough, so a thin book keeps
// the previous value rather than clearing it.
func (f *OrderBookFeed) applySnapshot(instID string, book bookData) {
	level, _ := f.store.Get(instID)
	level.InstID = instID
	updated := false
	if price, size, ok := entryAt(book.Bids, f.buyDepth); ok {
		level.BuyPrice = price
		level.BuySize = size
		level.HasBid = true
		updated = true
	}
	if price, size, ok := entryAt(book.Asks, f.askDepth); ok {
		level.SellPrice = price
		level.SellSize = size
		level.HasAsk = true
		updated = true
	}
	if !updated {
		return
	}
	level.UpdatedAt = f.now()
	f.store.Set(instID, level)
	f.metrics.BookMessages.Inc()
	if f.throttle.Allow(instID) {
		f.log.Info("book level",
			zap.String("inst_id", instID),
			zap.Int("bid_depth", f.buyDepth),
			zap.String("bid", level.BuyPrice.String()),
			zap.Int("ask_depth", f.askDepth),
			zap.String("ask", level.SellPrice.String()),
		)
	}
}

// entryAt extracts the 1-indexed depth entry from an ordered side. Entries
// are [price, size, ...] string arrays on the wire.
func entryAt(side [][]string, depth int) (price, size decimal.Decimal, ok bool) {
	if depth < 1 || len(side) < depth {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	entry := side[depth-1]
	if len(entry) < 2 {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(entry[0])
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	size, err = decimal.NewFromString(entry[1])
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return price, size, true
}
