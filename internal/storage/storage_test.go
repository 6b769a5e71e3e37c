package storage

import (
	"strings"
	"testing"
	"time"

	"omrflow/internal/ingest"
	"omrflow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	st := Summarize("9ano", []float64{70, 45.5, 100, 69.9}, 70)
	require.Equal(t, "9ano", st.Scope)
	require.Equal(t, 4, st.Total)
	require.Equal(t, 100.0, st.Max)
	require.Equal(t, 45.5, st.Min)
	require.Equal(t, 71.35, st.Mean)
	require.Equal(t, 2, st.Approved)
	require.Equal(t, 2, st.Failed)
}

func TestSummarizeEmpty(t *testing.T) {
	require.Equal(t, models.Stats{Scope: "geral"}, Summarize("geral", nil, 70))
}

func TestDecodeJSONColumns(t *testing.T) {
	var res models.Result
	err := decodeJSONColumns(&res, `[{"name":"Matemática","correct":3,"incorrect":1,"percent":75}]`, `["A","?"]`, `[]`, `["A","C"]`, `["correct","voided"]`)
	require.NoError(t, err)
	require.Equal(t, "Matemática", res.Subjects[0].Name)
	require.Equal(t, []string{"A", "?"}, res.Answers)
	require.Empty(t, res.Warnings)
	require.Equal(t, []string{"A", "C"}, res.KeyAnswers)
	require.Equal(t, []string{"correct", "voided"}, res.Outcomes)
	require.Equal(t, models.QuestionDetail{Question: 2, Key: "C", Answer: "?", Outcome: "voided"}, res.Details()[1])

	require.Error(t, decodeJSONColumns(&res, `{`, `[]`, `[]`, `[]`, `[]`))
	require.Error(t, decodeJSONColumns(&res, `[]`, `[]`, `[]`, `[]`, `{`))
	require.Equal(t, []string{}, nonNil[string](nil))
}

func TestQueueHistoryWritesOnlyNewRecords(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h, dups := ingest.Restore(at, []ingest.Record{
		{FileID: "a", Name: "a.png", ProcessedAt: at},
		{FileID: "b", Name: "b.png", ProcessedAt: at},
		{FileID: "c", Name: "c.png", ProcessedAt: at},
	}, []ingest.Rejection{
		{FileID: "d", Name: "d.png", Version: "d@v1", Reason: "alignment", RejectedAt: at},
	})
	require.Empty(t, dups)

	statements := func(b *pgx.Batch) []string {
		out := make([]string, 0, b.Len())
		for _, q := range b.QueuedQueries {
			out = append(out, strings.Fields(q.SQL)[0]+" "+strings.Fields(q.SQL)[2])
		}
		return out
	}

	batch := &pgx.Batch{}
	queueHistoryWrites(batch, h, 2)
	require.Equal(t, []string{
		"INSERT omr_processed_files(file_id,",
		"DELETE omr_rejected_files",
		"INSERT omr_rejected_files(file_id,",
		"INSERT omr_history_meta(id,",
	}, statements(batch))
	require.Equal(t, "c", batch.QueuedQueries[0].Arguments[0])
	require.Equal(t, []string{"c"}, batch.QueuedQueries[1].Arguments[0])
	require.Equal(t, "d@v1", batch.QueuedQueries[2].Arguments[2])

	batch = &pgx.Batch{}
	queueHistoryWrites(batch, h, 3)
	require.Equal(t, []string{
		"INSERT omr_rejected_files(file_id,",
		"INSERT omr_history_meta(id,",
	}, statements(batch))
}
