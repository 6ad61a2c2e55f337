package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"okx-spread-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// TradeRecord is one executed two-leg action.
type TradeRecord struct {
	Time      time.Time
	Direction string
	Spot      string
	Swap      string
	Spread    float64
	SpotPrice float64
	SwapPrice float64
	SpotSize  float64
	SwapSize  float64
}

// SpreadSample is one per-pair observation from an engine cycle, whether or
// not it produced an action.
type SpreadSample struct {
	Time        time.Time
	Spot        string
	Swap        string
	OpenSpread  float64
	CloseSpread float64
	SpotLast    float64
	SwapLast    float64
	SpotAsk     float64
}

// Writer persists trade records and spread samples to TimescaleDB through
// bounded queues; a full queue drops rather than blocking the engine.
type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	trades     chan TradeRecord
	spreads    chan SpreadSample
	started    atomic.Bool
	dropTrade  atomic.Uint64
	dropSpread atomic.Uint64
}

// New returns nil (and no error) when the writer is disabled, so call sites
// can treat the writer as optional.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		trades:  make(chan TradeRecord, 256),
		spreads: make(chan SpreadSample, 256),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueTrade(record TradeRecord) {
	if w == nil {
		return
	}
	select {
	case w.trades <- record:
	default:
		if w.dropTrade.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale trade queue full")
		}
	}
}

func (w *Writer) EnqueueSpread(sample SpreadSample) {
	if w == nil {
		return
	}
	select {
	case w.spreads <- sample:
	default:
		if w.dropSpread.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale spread queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-w.trades:
			w.writeTrade(ctx, record)
		case sample := <-w.spreads:
			w.writeSpread(ctx, sample)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		direction TEXT NOT NULL,
		spot TEXT NOT NULL,
		swap TEXT NOT NULL,
		spread DOUBLE PRECISION NOT NULL,
		spot_price DOUBLE PRECISION NOT NULL,
		swap_price DOUBLE PRECISION NOT NULL,
		spot_size DOUBLE PRECISION NOT NULL,
		swap_size DOUBLE PRECISION NOT NULL
	)`, w.table("trade_records"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		spot TEXT NOT NULL,
		swap TEXT NOT NULL,
		open_spread DOUBLE PRECISION NOT NULL,
		close_spread DOUBLE PRECISION NOT NULL,
		spot_last DOUBLE PRECISION NOT NULL,
		swap_last DOUBLE PRECISION NOT NULL,
		spot_ask DOUBLE PRECISION NOT NULL
	)`, w.table("spread_samples"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	for _, name := range []string{"trade_records", "spread_samples"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil && w.log != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeTrade(ctx context.Context, record TradeRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, direction, spot, swap, spread, spot_price, swap_price, spot_size, swap_size
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("trade_records"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Direction,
		record.Spot,
		record.Swap,
		record.Spread,
		record.SpotPrice,
		record.SwapPrice,
		record.SpotSize,
		record.SwapSize,
	); err != nil && w.log != nil {
		w.log.Warn("timescale trade insert failed", zap.Error(err))
	}
}

func (w *Writer) writeSpread(ctx context.Context, sample SpreadSample) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, spot, swap, open_spread, close_spread, spot_last, swap_last, spot_ask
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, w.table("spread_samples"))
	if _, err := w.db.ExecContext(ctx, query,
		sample.Time,
		sample.Spot,
		sample.Swap,
		sample.OpenSpread,
		sample.CloseSpread,
		sample.SpotLast,
		sample.SwapLast,
		sample.SpotAsk,
	); err != nil && w.log != nil {
		w.log.Warn("timescale spread insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
