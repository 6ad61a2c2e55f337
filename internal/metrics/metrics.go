package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	TickerMessages   Counter
	BookMessages     Counter
	PositionMessages Counter
	ParseErrors      Counter
	Reconnects       Counter
	OrdersPlaced     Counter
	OrdersFailed     Counter
	OpensExecuted    Counter
	ClosesExecuted   Counter
	HedgeMismatches  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		TickerMessages:   n,
		BookMessages:     n,
		PositionMessages: n,
		ParseErrors:      n,
		Reconnects:       n,
		OrdersPlaced:     n,
		OrdersFailed:     n,
		OpensExecuted:    n,
		ClosesExecuted:   n,
		HedgeMismatches:  n,
	}
}
