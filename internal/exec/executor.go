package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"okx-spread-bot/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Order is one market-order intent, expressed in the terms of the execution
// collaborator contract: instrument, side, size, trade mode, and an optional
// position side for swap legs.
type Order struct {
	InstID        string
	Side          string
	Size          decimal.Decimal
	Mode          string
	PosSide       string
	ClientOrderID string
}

// Client is the narrow order-submission contract; signing and transport live
// behind it.
type Client interface {
	PlaceMarketOrder(ctx context.Context, order Order) (string, error)
}

// Executor wraps the order client with bounded retries and client-order-id
// idempotency: an order carrying a client id that was already placed (even
// by a previous process) returns the recorded exchange order id instead of
// being re-sent.
type Executor struct {
	client Client
	store  state.Store
	log    *zap.Logger

	mu    sync.Mutex
	cache map[string]string
}

func New(client Client, store state.Store, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		client: client,
		store:  store,
		log:    log,
		cache:  make(map[string]string),
	}
}

func (e *Executor) PlaceOrder(ctx context.Context, order Order) (string, error) {
	if order.ClientOrderID == "" {
		return e.placeWithRetry(ctx, order)
	}
	cacheKey := "clordid:" + order.ClientOrderID
	e.mu.Lock()
	if oid, ok := e.cache[cacheKey]; ok {
		e.mu.Unlock()
		return oid, nil
	}
	e.mu.Unlock()
	if e.store != nil {
		if oid, ok, err := e.store.Get(ctx, cacheKey); err != nil {
			return "", err
		} else if ok {
			e.mu.Lock()
			e.cache[cacheKey] = oid
			e.mu.Unlock()
			return oid, nil
		}
	}
	orderID, err := e.placeWithRetry(ctx, order)
	if err != nil {
		return "", err
	}
	if e.store != nil {
		if err := e.store.Set(ctx, cacheKey, orderID); err != nil {
			e.log.Warn("failed to persist order id", zap.Error(err))
		}
	}
	e.mu.Lock()
	e.cache[cacheKey] = orderID
	e.mu.Unlock()
	return orderID, nil
}

func (e *Executor) placeWithRetry(ctx context.Context, order Order) (string, error) {
	var orderID string
	err := e.retry(ctx, func() error {
		var err error
		orderID, err = e.client.PlaceMarketOrder(ctx, order)
		return err
	})
	if err != nil {
		return "", err
	}
	if orderID == "" {
		return "", errors.New("empty order id")
	}
	return orderID, nil
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		if err := fn(); err != nil {
			if attempt == 4 {
				return fmt.Errorf("retry failed: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
		return nil
	}
	return nil
}
