package exec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

type mockClient struct {
	mu       sync.Mutex
	calls    int
	orderID  string
	failFor  int
	lastSent Order
}

func (m *mockClient) PlaceMarketOrder(ctx context.Context, order Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastSent = order
	if m.calls <= m.failFor {
		return "", errors.New("transient failure")
	}
	return m.orderID, nil
}

func testOrder(clOrdID string) Order {
	return Order{
		InstID:        "DOGE-USDT",
		Side:          "buy",
		Size:          decimal.NewFromInt(100),
		Mode:          "cash",
		ClientOrderID: clOrdID,
	}
}

func TestExecutorIdempotentByClientOrderID(t *testing.T) {
	store := newMemoryStore()
	client := &mockClient{orderID: "oid-1"}
	executor := New(client, store, zap.NewNop())
	ctx := context.Background()

	id1, err := executor.PlaceOrder(ctx, testOrder("abc"))
	if err != nil {
		t.Fatalf("first placement: %v", err)
	}
	id2, err := executor.PlaceOrder(ctx, testOrder("abc"))
	if err != nil {
		t.Fatalf("second placement: %v", err)
	}
	if id1 != "oid-1" || id2 != "oid-1" {
		t.Fatalf("order ids = %q, %q", id1, id2)
	}
	if client.calls != 1 {
		t.Fatalf("client called %d times, want 1", client.calls)
	}
}

func TestExecutorIdempotencySurvivesRestart(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	first := New(&mockClient{orderID: "oid-1"}, store, zap.NewNop())
	if _, err := first.PlaceOrder(ctx, testOrder("abc")); err != nil {
		t.Fatalf("first placement: %v", err)
	}

	replay := &mockClient{orderID: "oid-2"}
	second := New(replay, store, zap.NewNop())
	id, err := second.PlaceOrder(ctx, testOrder("abc"))
	if err != nil {
		t.Fatalf("replayed placement: %v", err)
	}
	if id != "oid-1" {
		t.Fatalf("order id = %q, want persisted oid-1", id)
	}
	if replay.calls != 0 {
		t.Fatalf("client called %d times after restart, want 0", replay.calls)
	}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	client := &mockClient{orderID: "oid-1", failFor: 2}
	executor := New(client, newMemoryStore(), zap.NewNop())

	id, err := executor.PlaceOrder(context.Background(), testOrder("abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "oid-1" {
		t.Fatalf("order id = %q", id)
	}
	if client.calls != 3 {
		t.Fatalf("client called %d times, want 3", client.calls)
	}
}

func TestExecutorWithoutClientOrderIDAlwaysPlaces(t *testing.T) {
	client := &mockClient{orderID: "oid-1"}
	executor := New(client, newMemoryStore(), zap.NewNop())
	ctx := context.Background()

	executor.PlaceOrder(ctx, testOrder(""))
	executor.PlaceOrder(ctx, testOrder(""))
	if client.calls != 2 {
		t.Fatalf("client called %d times, want 2", client.calls)
	}
}
