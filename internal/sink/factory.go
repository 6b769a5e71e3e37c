package sink

import (
	"context"
	"fmt"
	"time"

	"omrflow/internal/config"
)

// New builds the configured sinks. Idempotent sinks are ordered before the
// spreadsheet regardless of how OMR_SINKS lists them.
func New(ctx context.Context, cfg config.Config, store ResultStore) (*Fanout, error) {
	want := map[string]bool{}
	for _, n := range cfg.SinkNames() {
		switch n {
		case "postgres", "jsonl", "sheets":
			want[n] = true
		default:
			return nil, fmt.Errorf("unsupported sink: %s", n)
		}
	}
	var out []Named
	if want["postgres"] {
		if store == nil {
			return nil, fmt.Errorf("postgres sink needs OMR_POSTGRES_URL")
		}
		out = append(out, Named{Name: "postgres", Sink: NewPostgres(store)})
	}
	if want["jsonl"] {
		out = append(out, Named{Name: "jsonl", Sink: NewJSONL(cfg.ResultsDir)})
	}
	if want["sheets"] {
		s, err := NewSheets(ctx, cfg.GoogleCredentials, cfg.SheetIDs, cfg.SheetRange, time.Duration(cfg.SheetsPacingMS)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		out = append(out, Named{Name: "sheets", Sink: s.WithDetailTab(cfg.SheetDetailTab)})
	}
	return NewFanout(out...), nil
}
