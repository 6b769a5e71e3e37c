package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"omrflow/internal/ingest"

	"github.com/jackc/pgx/v5"
)

// HistoryRepo is the Postgres backend of the ingestion history. Rows are
// only ever added; Reset is the explicit way to reprocess everything.
type HistoryRepo struct {
	db *DB
}

var _ ingest.Store = (*HistoryRepo)(nil)

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Load(ctx context.Context) (ingest.History, []error, error) {
	var last *time.Time
	err := r.db.Pool.QueryRow(ctx, `SELECT last_checked FROM omr_history_meta WHERE id`).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ingest.History{}, nil, fmt.Errorf("load history meta: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
SELECT file_id, name, outcome, processed_at
FROM omr_processed_files
ORDER BY seq ASC`)
	if err != nil {
		return ingest.History{}, nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	recs := make([]ingest.Record, 0)
	for rows.Next() {
		var rec ingest.Record
		if err := rows.Scan(&rec.FileID, &rec.Name, &rec.Outcome, &rec.ProcessedAt); err != nil {
			return ingest.History{}, nil, fmt.Errorf("scan history record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return ingest.History{}, nil, fmt.Errorf("iterate history: %w", err)
	}

	rejected, err := r.loadRejections(ctx)
	if err != nil {
		return ingest.History{}, nil, err
	}

	var lastChecked time.Time
	if last != nil {
		lastChecked = *last
	}
	h, dups := ingest.Restore(lastChecked, recs, rejected)
	var warnings []error
	if len(dups) > 0 {
		warnings = append(warnings, fmt.Errorf("history integrity: %d duplicate ids dropped: %s", len(dups), strings.Join(dups, ", ")))
	}
	return h, warnings, nil
}

func (r *HistoryRepo) loadRejections(ctx context.Context) ([]ingest.Rejection, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT file_id, name, version, reason, rejected_at
FROM omr_rejected_files
ORDER BY rejected_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load rejections: %w", err)
	}
	defer rows.Close()

	out := make([]ingest.Rejection, 0)
	for rows.Next() {
		var rej ingest.Rejection
		if err := rows.Scan(&rej.FileID, &rej.Name, &rej.Version, &rej.Reason, &rej.RejectedAt); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		out = append(out, rej)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejections: %w", err)
	}
	return out, nil
}

// Save writes the records missing from the table in one transaction. The
// history is append-only, so only the records past the stored count are
// queued.
func (r *HistoryRepo) Save(ctx context.Context, h ingest.History) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history save: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM omr_processed_files`).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}

	batch := &pgx.Batch{}
	queueHistoryWrites(batch, h, stored)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// queueHistoryWrites queues the records after the first stored ones, the
// current rejections and the meta row.
func queueHistoryWrites(batch *pgx.Batch, h ingest.History, stored int) {
	fresh := h.RecordsFrom(stored)
	ids := make([]string, 0, len(fresh))
	for _, rec := range fresh {
		batch.Queue(`
INSERT INTO omr_processed_files(file_id, name, outcome, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (file_id) DO NOTHING`, rec.FileID, rec.Name, rec.Outcome, rec.ProcessedAt)
		ids = append(ids, rec.FileID)
	}
	if len(ids) > 0 {
		batch.Queue(`DELETE FROM omr_rejected_files WHERE file_id = ANY($1)`, ids)
	}
	for _, rej := range h.Rejections() {
		batch.Queue(`
INSERT INTO omr_rejected_files(file_id, name, version, reason, rejected_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (file_id) DO UPDATE SET
  name = EXCLUDED.name,
  version = EXCLUDED.version,
  reason = EXCLUDED.reason,
  rejected_at = EXCLUDED.rejected_at`, rej.FileID, rej.Name, rej.Version, rej.Reason, rej.RejectedAt)
	}
	var last any
	if !h.LastChecked.IsZero() {
		last = h.LastChecked
	}
	batch.Queue(`
INSERT INTO omr_history_meta(id, last_checked) VALUES (TRUE, $1)
ON CONFLICT (id) DO UPDATE SET last_checked = EXCLUDED.last_checked`, last)
}

// Reset forgets every processed file.
func (r *HistoryRepo) Reset(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `TRUNCATE omr_processed_files, omr_rejected_files; DELETE FROM omr_history_meta`); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	return nil
}
