package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusCountersExposed(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.HedgeMismatches.Inc()

	server := httptest.NewServer(prom.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)

	if !strings.Contains(body, "okx_spread_bot_orders_placed_total 2") {
		t.Fatalf("orders counter missing or wrong:\n%s", body)
	}
	if !strings.Contains(body, "okx_spread_bot_hedge_mismatches_total 1") {
		t.Fatalf("hedge mismatch counter missing:\n%s", body)
	}
}

func TestNoopMetricsAreSafe(t *testing.T) {
	m := NewNoop()
	m.TickerMessages.Inc()
	m.Reconnects.Inc()
	m.OpensExecuted.Inc()
}
