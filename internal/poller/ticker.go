package poller

import "time"

// Ticker delivers poll ticks. It lets tests drive the poller without real time.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the default TickerFactory backed by time.Ticker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// ManualTicker fires only when told to
type ManualTicker struct {
	ch chan time.Time
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }
func (m *ManualTicker) Stop()               {}

// Fire blocks until the run loop has received the tick
func (m *ManualTicker) Fire() {
	m.ch <- time.Now()
}

// Factory returns a TickerFactory that always hands out m
func (m *ManualTicker) Factory() TickerFactory {
	return func(time.Duration) Ticker { return m }
}
