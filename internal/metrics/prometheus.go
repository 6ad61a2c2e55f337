package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "okx_spread_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		TickerMessages:   promCounter{counter("ticker_messages_total", "Ticker push messages processed.")},
		BookMessages:     promCounter{counter("book_messages_total", "Depth snapshot messages processed.")},
		PositionMessages: promCounter{counter("position_messages_total", "Position push messages processed.")},
		ParseErrors:      promCounter{counter("parse_errors_total", "Malformed push messages discarded.")},
		Reconnects:       promCounter{counter("ws_reconnects_total", "Websocket reconnect attempts.")},
		OrdersPlaced:     promCounter{counter("orders_placed_total", "Orders accepted by the exchange.")},
		OrdersFailed:     promCounter{counter("orders_failed_total", "Order placement failures.")},
		OpensExecuted:    promCounter{counter("opens_executed_total", "Completed open actions (both legs).")},
		ClosesExecuted:   promCounter{counter("closes_executed_total", "Completed close actions (both legs).")},
		HedgeMismatches:  promCounter{counter("hedge_mismatches_total", "Half-completed hedges needing reconciliation.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
