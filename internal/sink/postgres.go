package sink

import (
	"context"
	"log"

	"omrflow/internal/models"
)

// ResultStore is the results table.
type ResultStore interface {
	InsertResult(ctx context.Context, r models.Result) (bool, error)
}

// Postgres mirrors delivered rows into the results table.
type Postgres struct {
	store ResultStore
}

func NewPostgres(store ResultStore) *Postgres {
	return &Postgres{store: store}
}

func (p *Postgres) Deliver(ctx context.Context, r models.Result) error {
	inserted, err := p.store.InsertResult(ctx, r)
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("result already stored file_id=%s", r.FileID)
	}
	return nil
}
