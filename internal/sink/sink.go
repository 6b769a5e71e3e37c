package sink

import (
	"context"
	"errors"
	"fmt"
	"log"

	"omrflow/internal/models"
)

// Sink receives one finished result. A nil error means the row is durable
// downstream and the source file may be committed.
type Sink interface {
	Deliver(ctx context.Context, r models.Result) error
}

type Named struct {
	Name string
	Sink Sink
}

// Fanout delivers to every sink in order and stops at the first failure.
// Idempotent sinks go first so a retried file cannot duplicate their rows.
type Fanout struct {
	sinks []Named
}

func NewFanout(sinks ...Named) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Names() []string {
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.Name)
	}
	return out
}

func (f *Fanout) Deliver(ctx context.Context, r models.Result) error {
	if len(f.sinks) == 0 {
		return errors.New("no delivery sink configured")
	}
	for _, s := range f.sinks {
		if err := s.Sink.Deliver(ctx, r); err != nil {
			return fmt.Errorf("deliver to %s: %w", s.Name, err)
		}
		log.Printf("delivered sink=%s file=%q student=%q pct=%.1f", s.Name, r.FileName, r.Header.Student, r.Percentage)
	}
	return nil
}
