package state

import (
	"context"
	"encoding/json"
	"strings"
)

const TradeSnapshotKey = "engine:last_trade"

// TradeSnapshot records the last executed action so an operator can see what
// the engine did across restarts. Direction is "open" or "close".
type TradeSnapshot struct {
	Direction  string `json:"direction"`
	Spot       string `json:"spot"`
	Swap       string `json:"swap"`
	Spread     string `json:"spread"`
	SpotPrice  string `json:"spot_price"`
	SwapPrice  string `json:"swap_price"`
	SpotSize   string `json:"spot_size"`
	SwapSize   string `json:"swap_size"`
	ExecutedMS int64  `json:"executed_ms"`
}

func LoadTradeSnapshot(ctx context.Context, store Store) (TradeSnapshot, bool, error) {
	if store == nil {
		return TradeSnapshot{}, false, nil
	}
	raw, ok, err := store.Get(ctx, TradeSnapshotKey)
	if err != nil {
		return TradeSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return TradeSnapshot{}, false, nil
	}
	var snapshot TradeSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return TradeSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveTradeSnapshot(ctx context.Context, store Store, snapshot TradeSnapshot) error {
	if store == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, TradeSnapshotKey, string(payload))
}
