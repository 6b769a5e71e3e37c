package storage

import (
	"context"
	"fmt"

	"omrflow/internal/providers"
)

// ReaderAuditRepo keeps one row per oracle or OCR call.
type ReaderAuditRepo struct {
	db *DB
}

var _ providers.AuditSink = (*ReaderAuditRepo)(nil)

func NewReaderAuditRepo(db *DB) *ReaderAuditRepo {
	return &ReaderAuditRepo{db: db}
}

func (r *ReaderAuditRepo) InsertCall(ctx context.Context, rec providers.CallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO omr_reader_calls(call_id, sheet_id, kind, provider_name, model, key_alias, status, error_type, error_text, latency_ms, created_at)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), $10, $11)`,
		rec.CallID, rec.SheetID, rec.Kind, rec.Provider, rec.Model, rec.Key, rec.Status, rec.ErrorType, rec.Error,
		rec.Latency.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reader call: %w", err)
	}
	return nil
}

// FailureCounts groups failed calls by provider and error type since the
// given number of hours.
func (r *ReaderAuditRepo) FailureCounts(ctx context.Context, hours int) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT provider_name || ':' || COALESCE(error_type, 'unknown'), COUNT(*)
FROM omr_reader_calls
WHERE status = 'failed' AND created_at > NOW() - make_interval(hours => $1)
GROUP BY 1`, hours)
	if err != nil {
		return nil, fmt.Errorf("count reader failures: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan reader failures: %w", err)
		}
		out[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reader failures: %w", err)
	}
	return out, nil
}
