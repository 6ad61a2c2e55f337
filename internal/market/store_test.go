package market

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStoreSetGet(t *testing.T) {
	store := NewStore[PricePoint]()
	if _, ok := store.Get("DOGE-USDT"); ok {
		t.Fatal("unseen instrument should not be present")
	}
	point := PricePoint{InstID: "DOGE-USDT", Last: decimal.RequireFromString("0.1234"), UpdatedAt: time.Now()}
	store.Set("DOGE-USDT", point)
	got, ok := store.Get("DOGE-USDT")
	if !ok {
		t.Fatal("stored instrument missing")
	}
	if !got.Last.Equal(point.Last) {
		t.Fatalf("last = %s, want %s", got.Last, point.Last)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := NewStore[PricePoint]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Set("DOGE-USDT", PricePoint{InstID: "DOGE-USDT", Last: decimal.NewFromInt(int64(j))})
				store.Get("DOGE-USDT")
			}
		}()
	}
	wg.Wait()
}
