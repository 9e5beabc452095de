package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Ticker advances every running test by whole seconds.
type Ticker interface {
	TickAll(ctx context.Context, elapsed int)
}

// TimerWorker is the cooperative clock of the running tests on this
// instance. Ticks arrive late under load, so elapsed wall time is measured
// and sub-second remainders are carried to the next tick.
type TimerWorker struct {
	ticker   Ticker
	interval time.Duration
	log      zerolog.Logger

	last  time.Time
	carry time.Duration
}

// NewTimerWorker creates a TimerWorker firing every interval.
func NewTimerWorker(ticker Ticker, interval time.Duration, log zerolog.Logger) *TimerWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerWorker{
		ticker:   ticker,
		interval: interval,
		log:      log.With().Str("component", "timer_worker").Logger(),
	}
}

// Start runs until ctx is done. Call in a goroutine.
func (w *TimerWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("TimerWorker started")

	t := time.NewTicker(w.interval)
	defer t.Stop()
	w.last = time.Now()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("TimerWorker stopped")
			return
		case now := <-t.C:
			if secs := w.advance(now); secs > 0 {
				w.ticker.TickAll(ctx, secs)
			}
		}
	}
}

// advance returns the whole seconds elapsed since the previous call.
func (w *TimerWorker) advance(now time.Time) int {
	elapsed := now.Sub(w.last)
	w.last = now
	if elapsed < 0 {
		elapsed = 0
	}
	w.carry += elapsed
	secs := int(w.carry / time.Second)
	w.carry -= time.Duration(secs) * time.Second
	return secs
}
