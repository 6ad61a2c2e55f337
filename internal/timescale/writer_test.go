package timescale

import (
	"context"
	"testing"
	"time"

	"okx-spread-bot/internal/config"

	"go.uber.org/zap"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	writer, err := New(config.TimescaleConfig{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writer != nil {
		t.Fatal("disabled writer should be nil")
	}
}

func TestNewEnabledRequiresDSN(t *testing.T) {
	if _, err := New(config.TimescaleConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestNilWriterIsSafe(t *testing.T) {
	var writer *Writer
	writer.Start(context.Background())
	writer.EnqueueTrade(TradeRecord{Time: time.Now()})
	writer.EnqueueSpread(SpreadSample{Time: time.Now()})
	if err := writer.Close(); err != nil {
		t.Fatalf("nil writer close: %v", err)
	}
}

func TestTableIsSchemaQualified(t *testing.T) {
	writer := &Writer{schema: "bot"}
	if got := writer.table("trade_records"); got != "bot.trade_records" {
		t.Fatalf("table = %q", got)
	}
}
