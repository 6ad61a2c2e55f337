package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"okx-spread-bot/internal/alerts"
	"okx-spread-bot/internal/config"
	"okx-spread-bot/internal/engine"
	"okx-spread-bot/internal/exec"
	"okx-spread-bot/internal/feed"
	"okx-spread-bot/internal/logging"
	"okx-spread-bot/internal/market"
	"okx-spread-bot/internal/metrics"
	"okx-spread-bot/internal/okx/rest"
	"okx-spread-bot/internal/okx/ws"
	"okx-spread-bot/internal/state"
	"okx-spread-bot/internal/state/sqlite"
	"okx-spread-bot/internal/timescale"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App assembles the three feeds, the market stores, the execution path, and
// the engine. Every collaborator is built here and injected; nothing reaches
// for package-level state.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *sqlite.Store
	prom     *metrics.Prometheus
	spotFeed *feed.SpotPriceFeed
	bookFeed *feed.OrderBookFeed
	posFeed  *feed.PositionAccountFeed
	engine   *engine.Engine
	recorder *engine.Recorder
	writer   *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	throttle := logging.NewThrottle(cfg.Feeds.Throttle)
	instruments := cfg.Instruments()

	prices := market.NewStore[market.PricePoint]()
	books := market.NewStore[market.BookLevel]()
	positions := market.NewPositionBook()

	tickerWS, err := ws.New(ws.Options{
		URL:            cfg.OKX.PublicWSURL,
		ReconnectDelay: cfg.WS.ReconnectDelay,
		PingInterval:   cfg.WS.PingInterval,
		ProxyURL:       cfg.OKX.ProxyURL,
		Simulated:      cfg.OKX.Simulated,
		Log:            log.Named("ws.ticker"),
		Reconnects:     m.Reconnects,
	})
	if err != nil {
		return nil, err
	}
	bookWS, err := ws.New(ws.Options{
		URL:            cfg.OKX.PublicWSURL,
		ReconnectDelay: cfg.WS.ReconnectDelay,
		PingInterval:   cfg.WS.PingInterval,
		ProxyURL:       cfg.OKX.ProxyURL,
		Simulated:      cfg.OKX.Simulated,
		Log:            log.Named("ws.book"),
		Reconnects:     m.Reconnects,
	})
	if err != nil {
		return nil, err
	}
	privateWS, err := ws.New(ws.Options{
		URL:            cfg.OKX.PrivateWSURL,
		ReconnectDelay: cfg.WS.ReconnectDelay,
		PingInterval:   cfg.WS.PingInterval,
		ProxyURL:       cfg.OKX.ProxyURL,
		Simulated:      cfg.OKX.Simulated,
		Log:            log.Named("ws.private"),
		Reconnects:     m.Reconnects,
	})
	if err != nil {
		return nil, err
	}

	spotFeed := feed.NewSpotPrice(tickerWS, prices, instruments,
		logging.NewFeed(cfg.Feeds.SpotPrice), throttle, m)
	bookFeed, err := feed.NewOrderBook(bookWS, books, instruments,
		config.MinBookDepth, cfg.MaxSellDepth(),
		logging.NewFeed(cfg.Feeds.OrderBook), throttle, m)
	if err != nil {
		return nil, err
	}
	posFeed := feed.NewPositions(privateWS, positions, creds, instruments,
		logging.NewFeed(cfg.Feeds.Positions), throttle, m)

	restClient, err := rest.New(cfg.OKX, creds, log.Named("rest"))
	if err != nil {
		return nil, err
	}
	executor := exec.New(&restAdapter{client: restClient}, store, log.Named("exec"))

	recorder := engine.NewRecorder(cfg.TradeRecord)
	writer, err := timescale.New(cfg.Timescale, log.Named("timescale"))
	if err != nil {
		return nil, err
	}
	notifier := alerts.NewTelegram(cfg.Telegram, log.Named("alerts"))

	eng := engine.New(cfg.Engine, cfg.Pairs, prices, books, positions,
		executor, store, recorder, writer, notifier, log.Named("engine"), m)

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		prom:     prom,
		spotFeed: spotFeed,
		bookFeed: bookFeed,
		posFeed:  posFeed,
		engine:   eng,
		recorder: recorder,
		writer:   writer,
	}, nil
}

// Run starts the feeds, the engine, and the optional metrics server, and
// blocks until the context is cancelled or a task fails.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.writer.Close()
	defer a.recorder.Close()

	if snapshot, ok, err := state.LoadTradeSnapshot(ctx, a.store); err != nil {
		a.log.Warn("trade snapshot load failed", zap.Error(err))
	} else if ok {
		a.log.Info("last recorded trade",
			zap.String("direction", snapshot.Direction),
			zap.String("spot", snapshot.Spot),
			zap.String("swap", snapshot.Swap),
			zap.String("spread", snapshot.Spread),
			zap.Time("executed_at", time.UnixMilli(snapshot.ExecutedMS)),
		)
	}

	a.writer.Start(ctx)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.spotFeed.Run(ctx) })
	group.Go(func() error { return a.bookFeed.Run(ctx) })
	group.Go(func() error { return a.posFeed.Run(ctx) })
	group.Go(func() error { return a.engine.Run(ctx) })
	if a.prom != nil {
		group.Go(func() error { return a.serveMetrics(ctx) })
	}
	return group.Wait()
}

func (a *App) serveMetrics(ctx context.Context) error {
	server := &http.Server{
		Addr:    a.cfg.Metrics.ListenAddr,
		Handler: a.prom.Handler(),
	}
	a.log.Info("metrics server listening", zap.String("addr", server.Addr))
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// restAdapter narrows the signed REST client to the executor's contract.
type restAdapter struct {
	client *rest.Client
}

func (a *restAdapter) PlaceMarketOrder(ctx context.Context, order exec.Order) (string, error) {
	result, err := a.client.PlaceMarketOrder(ctx, rest.OrderRequest{
		InstID:        order.InstID,
		Side:          rest.Side(order.Side),
		Size:          order.Size,
		Mode:          rest.TradeMode(order.Mode),
		PosSide:       rest.PosSide(order.PosSide),
		ClientOrderID: order.ClientOrderID,
	})
	if err != nil {
		return "", err
	}
	return result.OrderID, nil
}
