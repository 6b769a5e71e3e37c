package ingest

import (
	"context"
	"errors"
	"log"
	"time"
)

// Cycler is anything that can run one polling pass.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Monitor repeats cycles at a fixed interval. Cycles run back to back on a
// single goroutine, so two of them never overlap.
type Monitor struct {
	cycler    Cycler
	interval  time.Duration
	maxCycles int
}

func NewMonitor(c Cycler, interval time.Duration) *Monitor {
	return &Monitor{cycler: c, interval: interval}
}

// WithLimit stops the monitor after n cycles. Zero means no limit.
func (m *Monitor) WithLimit(n int) *Monitor {
	m.maxCycles = n
	return m
}

// Run starts with an immediate cycle. With a zero interval it returns after
// that single pass, reporting its error. Otherwise it keeps going until ctx
// is cancelled; aborted cycles are logged and retried on the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		report, err := m.cycler.RunCycle(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("cycle %d aborted: %v (%s)", cycle, err, report.Summary())
		} else {
			log.Printf("cycle %d done: %s", cycle, report.Summary())
		}
		if m.interval <= 0 || (m.maxCycles > 0 && cycle >= m.maxCycles) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		t := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
