package engine

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"okx-spread-bot/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RecordLine is one executed action, written as a JSON line to the trade
// record file. Numeric fields keep their decimal string form.
type RecordLine struct {
	Time        time.Time `json:"ts"`
	Direction   string    `json:"direction"`
	Spot        string    `json:"spot"`
	Swap        string    `json:"swap"`
	Spread      string    `json:"spread"`
	SpotPrice   string    `json:"spot_price"`
	SwapPrice   string    `json:"swap_price"`
	SpotSize    string    `json:"spot_size"`
	SwapSize    string    `json:"swap_size"`
	SpotOrderID string    `json:"spot_order_id"`
	SwapOrderID string    `json:"swap_order_id"`
}

// Recorder appends trade record lines to a rotating file. A nil Recorder
// discards everything, so call sites treat it as optional.
type Recorder struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func NewRecorder(cfg config.TradeRecordConfig) *Recorder {
	if !cfg.Enabled || cfg.File == "" {
		return nil
	}
	return &Recorder{w: &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    50,
		MaxBackups: 5,
		Compress:   true,
	}}
}

func (r *Recorder) Record(line RecordLine) error {
	if r == nil {
		return nil
	}
	payload, err := json.Marshal(line)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(payload, '\n')); err != nil {
		return err
	}
	return nil
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.w.Close()
}
