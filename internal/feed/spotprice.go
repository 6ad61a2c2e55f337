package feed

import (
	"context"
	"encoding/json"
	"time"

	"okx-spread-bot/internal/logging"
	"okx-spread-bot/internal/market"
	"okx-spread-bot/internal/metrics"
	"okx-spread-bot/internal/okx/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SpotPriceFeed consumes the tickers channel and publishes the latest traded
// price per instrument into its store. It carries no state of its own beyond
// the store it writes.
type SpotPriceFeed struct {
	client   *ws.Client
	store    *market.Store[market.PricePoint]
	instIDs  []string
	log      *zap.Logger
	throttle *logging.Throttle
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSpotPrice(client *ws.Client, store *market.Store[market.PricePoint], instIDs []string, log *zap.Logger, throttle *logging.Throttle, m *metrics.Metrics) *SpotPriceFeed {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &SpotPriceFeed{
		client:   client,
		store:    store,
		instIDs:  instIDs,
		log:      log,
		throttle: throttle,
		metrics:  m,
		now:      time.Now,
	}
}

// Run subscribes to one ticker stream per instrument and blocks until ctx is
// cancelled. Reconnection is handled inside the ws client.
func (f *SpotPriceFeed) Run(ctx context.Context) error {
	if err := f.client.Subscribe(ctx, subscribeInstruments(channelTickers, f.instIDs)); err != nil {
		return err
	}
	return f.client.Run(ctx, f.handleMessage)
}

type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
}

func (f *SpotPriceFeed) handleMessage(msg json.RawMessage) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("ticker message decode failed", zap.Error(err))
		return
	}
	if env.Event != "" {
		logControlEvent(f.log, env)
		return
	}
	if env.Arg.Channel != channelTickers || len(env.Data) == 0 {
		return
	}
	var ticks []tickerData
	if err := json.Unmarshal(env.Data, &ticks); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("ticker data decode failed", zap.Error(err))
		return
	}
	for _, tick := range ticks {
		if tick.InstID == "" || tick.Last == "" {
			continue
		}
		last, err := decimal.NewFromString(tick.Last)
		if err != nil {
			f.metrics.ParseErrors.Inc()
			f.log.Error("unparsable last price", zap.String("inst_id", tick.InstID), zap.String("last", tick.Last))
			continue
		}
		f.store.Set(tick.InstID, market.PricePoint{
			InstID:    tick.InstID,
			Last:      last,
			UpdatedAt: f.now(),
		})
		f.metrics.TickerMessages.Inc()
		if f.throttle.Allow(tick.InstID) {
			f.log.Info("last price", zap.String("inst_id", tick.InstID), zap.String("last", tick.Last))
		}
	}
}

// logControlEvent reports subscription acks and errors; errors from the
// server never terminate the read loop.
func logControlEvent(log *zap.Logger, env envelope) {
	switch env.Event {
	case "subscribe":
		log.Info("subscribed", zap.String("channel", env.Arg.Channel), zap.String("inst_id", env.Arg.InstID))
	case "error":
		log.Error("subscription error", zap.String("code", env.Code), zap.String("msg", env.Msg))
	}
}
