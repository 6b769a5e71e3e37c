package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"omrflow/internal/models"
)

// ResultRepo mirrors delivered results. Inserts are keyed on the file id, so
// a sheet reprocessed after a crash is stored once.
type ResultRepo struct {
	db *DB
}

func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

func (r *ResultRepo) InsertResult(ctx context.Context, res models.Result) (bool, error) {
	subjects, err := json.Marshal(nonNil(res.Subjects))
	if err != nil {
		return false, fmt.Errorf("encode subjects: %w", err)
	}
	answers, err := json.Marshal(nonNil(res.Answers))
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}
	warnings, err := json.Marshal(nonNil(res.Warnings))
	if err != nil {
		return false, fmt.Errorf("encode warnings: %w", err)
	}
	keyAnswers, err := json.Marshal(nonNil(res.KeyAnswers))
	if err != nil {
		return false, fmt.Errorf("encode key answers: %w", err)
	}
	outcomes, err := json.Marshal(nonNil(res.Outcomes))
	if err != nil {
		return false, fmt.Errorf("encode outcomes: %w", err)
	}
	tag, err := r.db.Pool.Exec(ctx, `
INSERT INTO omr_results(file_id, file_name, key_id, questions, school, student, birth_date, class,
  correct, incorrect, voided, percentage, subjects, answers, strategy, agreement, evaluated, warnings, processed_at,
  key_answers, outcomes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::jsonb,$14::jsonb,$15,$16,$17,$18::jsonb,$19,$20::jsonb,$21::jsonb)
ON CONFLICT (file_id) DO NOTHING`,
		res.FileID, res.FileName, res.KeyID, res.Questions,
		res.Header.School, res.Header.Student, res.Header.BirthDate, res.Header.Class,
		res.Correct, res.Incorrect, res.Voided, res.Percentage,
		string(subjects), string(answers), res.Strategy, res.Agreement, res.Evaluated, string(warnings), res.ProcessedAt,
		string(keyAnswers), string(outcomes))
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", res.FileID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByQuestions returns the results of one geometry, newest first.
func (r *ResultRepo) ListByQuestions(ctx context.Context, questions, limit int) ([]models.Result, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT file_id, file_name, key_id, questions, school, student, birth_date, class,
  correct, incorrect, voided, percentage, subjects::text, answers::text, strategy, agreement, evaluated, warnings::text, processed_at,
  key_answers::text, outcomes::text
FROM omr_results
WHERE questions = $1
ORDER BY processed_at DESC
LIMIT $2`, questions, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]models.Result, 0)
	for rows.Next() {
		var (
			res                         models.Result
			subjects, answers, warnings string
			keyAnswers, outcomes        string
		)
		if err := rows.Scan(&res.FileID, &res.FileName, &res.KeyID, &res.Questions,
			&res.Header.School, &res.Header.Student, &res.Header.BirthDate, &res.Header.Class,
			&res.Correct, &res.Incorrect, &res.Voided, &res.Percentage,
			&subjects, &answers, &res.Strategy, &res.Agreement, &res.Evaluated, &warnings, &res.ProcessedAt,
			&keyAnswers, &outcomes); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := decodeJSONColumns(&res, subjects, answers, warnings, keyAnswers, outcomes); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", res.FileID, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// Percentages returns the delivered percentages of one geometry, or of all
// geometries when questions is 0.
func (r *ResultRepo) Percentages(ctx context.Context, questions int) ([]float64, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT percentage FROM omr_results
WHERE $1 = 0 OR questions = $1`, questions)
	if err != nil {
		return nil, fmt.Errorf("query percentages: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0)
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan percentage: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate percentages: %w", err)
	}
	return out, nil
}

// Summarize computes the statistics block for a set of percentages. A
// student is approved at or above passing.
func Summarize(scope string, percentages []float64, passing float64) models.Stats {
	st := models.Stats{Scope: scope, Total: len(percentages)}
	if len(percentages) == 0 {
		return st
	}
	st.Max = math.Inf(-1)
	st.Min = math.Inf(1)
	sum := 0.0
	for _, p := range percentages {
		sum += p
		st.Max = math.Max(st.Max, p)
		st.Min = math.Min(st.Min, p)
		if p >= passing {
			st.Approved++
		} else {
			st.Failed++
		}
	}
	st.Mean = math.Round(sum/float64(len(percentages))*100) / 100
	return st
}

func decodeJSONColumns(res *models.Result, subjects, answers, warnings, keyAnswers, outcomes string) error {
	columns := []struct {
		raw string
		dst any
	}{
		{subjects, &res.Subjects},
		{answers, &res.Answers},
		{warnings, &res.Warnings},
		{keyAnswers, &res.KeyAnswers},
		{outcomes, &res.Outcomes},
	}
	for _, c := range columns {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return err
		}
	}
	return nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
