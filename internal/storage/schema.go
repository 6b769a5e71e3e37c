package storage

import (
	"context"
	"fmt"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS omr_results (
  file_id TEXT PRIMARY KEY,
  file_name TEXT NOT NULL,
  key_id TEXT NOT NULL DEFAULT '',
  questions INT NOT NULL CHECK (questions IN (44, 52)),
  school TEXT NOT NULL DEFAULT '',
  student TEXT NOT NULL DEFAULT '',
  birth_date TEXT NOT NULL DEFAULT '',
  class TEXT NOT NULL DEFAULT '',
  correct INT NOT NULL,
  incorrect INT NOT NULL,
  voided INT NOT NULL,
  percentage DOUBLE PRECISION NOT NULL,
  subjects JSONB NOT NULL DEFAULT '[]',
  answers JSONB NOT NULL DEFAULT '[]',
  strategy TEXT NOT NULL,
  agreement DOUBLE PRECISION NOT NULL DEFAULT 0,
  evaluated BOOLEAN NOT NULL DEFAULT FALSE,
  warnings JSONB NOT NULL DEFAULT '[]',
  processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE omr_results ADD COLUMN IF NOT EXISTS key_answers JSONB NOT NULL DEFAULT '[]';
ALTER TABLE omr_results ADD COLUMN IF NOT EXISTS outcomes JSONB NOT NULL DEFAULT '[]';

CREATE INDEX IF NOT EXISTS idx_omr_results_questions ON omr_results(questions, processed_at);

CREATE TABLE IF NOT EXISTS omr_processed_files (
  seq BIGSERIAL,
  file_id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL DEFAULT '',
  processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS omr_rejected_files (
  file_id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  version TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  rejected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS omr_history_meta (
  id BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
  last_checked TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS omr_reader_calls (
  call_id UUID PRIMARY KEY,
  sheet_id TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  provider_name TEXT NOT NULL,
  model TEXT NOT NULL DEFAULT '',
  key_alias TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('ok','failed')),
  error_type TEXT,
  error_text TEXT,
  latency_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_omr_reader_calls_created ON omr_reader_calls(created_at DESC);
`

// EnsureSchema creates the tables once per process. There is no separate
// migration step.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()

	if d.schemaPrepared {
		return nil
	}
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	d.schemaPrepared = true
	return nil
}
