package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"omrflow/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func sampleResult() models.Result {
	return models.Result{
		FileID:     "f1",
		FileName:   "ana.jpg",
		Questions:  52,
		Header:     models.Header{School: "E.M. Centro", Student: "Ana Souza", Class: "9A"},
		Correct:    40,
		Incorrect:  10,
		Voided:     2,
		Percentage: 80,
		Subjects: []models.SubjectResult{
			{Name: "Língua Portuguesa", Correct: 20, Incorrect: 6},
			{Name: "Matemática", Correct: 20, Incorrect: 4},
		},
		Strategy:    "local",
		Agreement:   0.96,
		Evaluated:   true,
		ProcessedAt: time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
	}
}

func TestRowAndHeaderLineUp(t *testing.T) {
	r := sampleResult()
	head := HeaderRow(r)
	row := Row(r, time.UTC)
	require.Len(t, row, len(head))
	require.Equal(t, "14/03/2025", row[0])
	require.Equal(t, "N/A", row[3])
	require.Equal(t, "80.0%", row[8])
	require.Equal(t, "Acertos Matemática", head[11])
	require.Equal(t, 20, row[11])
	require.Equal(t, "96%", row[len(row)-1])

	r.Evaluated = false
	row = Row(r, time.UTC)
	require.Equal(t, "-", row[len(row)-1])
}

type recordingSink struct {
	name string
	err  error
	log  *[]string
}

func (s recordingSink) Deliver(context.Context, models.Result) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestFanoutStopsAtFirstFailure(t *testing.T) {
	var log []string
	f := NewFanout(
		Named{Name: "a", Sink: recordingSink{name: "a", log: &log}},
		Named{Name: "b", Sink: recordingSink{name: "b", err: errors.New("quota"), log: &log}},
		Named{Name: "c", Sink: recordingSink{name: "c", log: &log}},
	)
	err := f.Deliver(context.Background(), sampleResult())
	require.ErrorContains(t, err, "deliver to b")
	require.Equal(t, []string{"a", "b"}, log)

	require.Error(t, NewFanout().Deliver(context.Background(), sampleResult()))
}

func TestJSONLIsIdempotent(t *testing.T) {
	j := NewJSONL(t.TempDir())
	r := sampleResult()
	require.NoError(t, j.Deliver(context.Background(), r))
	require.NoError(t, j.Deliver(context.Background(), r))
	r2 := r
	r2.FileID, r2.FileName = "f2", "bia.jpg"
	require.NoError(t, j.Deliver(context.Background(), r2))

	rows, err := j.Results(52)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Ana Souza", rows[0].Header.Student)

	rows, err = j.Results(44)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestJSONLKeepsPerQuestionOutcomes(t *testing.T) {
	j := NewJSONL(t.TempDir())
	r := sampleResult()
	r.Answers = []string{"A", "C", "?"}
	r.KeyAnswers = []string{"A", "B", "D"}
	r.Outcomes = []string{"correct", "incorrect", "voided"}
	require.NoError(t, j.Deliver(context.Background(), r))

	rows, err := j.Results(52)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, r.KeyAnswers, rows[0].KeyAnswers)
	require.Equal(t, r.Outcomes, rows[0].Outcomes)
	require.Equal(t, models.QuestionDetail{Question: 3, Key: "D", Answer: "?", Outcome: "voided"}, rows[0].Details()[2])
}

func TestDetailRowsListEveryQuestion(t *testing.T) {
	r := sampleResult()
	require.Empty(t, DetailRows(r))

	r.Answers = []string{"A", "C", "?"}
	r.KeyAnswers = []string{"A", "B", "D"}
	r.Outcomes = []string{"correct", "incorrect", "voided"}
	rows := DetailRows(r)
	require.Len(t, rows, 3)
	require.Len(t, rows[0], len(DetailHeaderRow()))
	require.Equal(t, []any{"ana.jpg", "Ana Souza", 1, "A", "A", "Correta"}, rows[0])
	require.Equal(t, []any{"ana.jpg", "Ana Souza", 2, "B", "C", "Incorreta"}, rows[1])
	require.Equal(t, []any{"ana.jpg", "Ana Souza", 3, "D", "?", "Anulada"}, rows[2])
}

type mockStore struct{ mock.Mock }

func (m *mockStore) InsertResult(ctx context.Context, r models.Result) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func TestPostgresSink(t *testing.T) {
	store := &mockStore{}
	store.On("InsertResult", mock.Anything, mock.Anything).Return(false, nil).Once()
	store.On("InsertResult", mock.Anything, mock.Anything).Return(false, errors.New("conn refused")).Once()

	p := NewPostgres(store)
	require.NoError(t, p.Deliver(context.Background(), sampleResult()))
	require.Error(t, p.Deliver(context.Background(), sampleResult()))
	store.AssertExpectations(t)
}

type fakeSheetsAPI struct {
	mu          sync.Mutex
	gets        int
	headers     []string
	appends     []string
	appendPaths []string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		f.gets++
		_, _ = io.WriteString(w, `{"range":"A1:A1","majorDimension":"ROWS"}`)
	case r.Method == http.MethodPut:
		f.headers = append(f.headers, string(body))
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appends = append(f.appends, string(body))
		f.appendPaths = append(f.appendPaths, r.URL.Path)
		_, _ = io.WriteString(w, `{}`)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func TestSheetsWritesHeaderOnceThenAppends(t *testing.T) {
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	s := newSheets(svc, map[int]string{52: "sheet-nine"}, "", 0)

	require.NoError(t, s.Deliver(context.Background(), sampleResult()))
	require.NoError(t, s.Deliver(context.Background(), sampleResult()))

	require.Equal(t, 1, api.gets)
	require.Len(t, api.headers, 1)
	require.Contains(t, api.headers[0], "Nome Completo")
	require.Len(t, api.appends, 2)
	require.Contains(t, api.appends[0], "Ana Souza")

	r := sampleResult()
	r.Questions = 44
	require.ErrorContains(t, s.Deliver(context.Background(), r), "no spreadsheet configured")
}

func TestSheetsWritesDetailTab(t *testing.T) {
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	s := newSheets(svc, map[int]string{52: "sheet-nine"}, "", 0).WithDetailTab("Detalhes")

	r := sampleResult()
	r.Answers = []string{"A", "C"}
	r.KeyAnswers = []string{"A", "B"}
	r.Outcomes = []string{"correct", "incorrect"}
	require.NoError(t, s.Deliver(context.Background(), r))

	require.Equal(t, 2, api.gets)
	require.Len(t, api.headers, 2)
	require.Contains(t, api.headers[1], "Resposta Aluno")
	require.Len(t, api.appends, 2)
	require.Contains(t, api.appendPaths[0], "Página1")
	require.Contains(t, api.appendPaths[1], "Detalhes")
	require.Contains(t, api.appends[1], "Incorreta")

	// Results without outcomes only get the summary row.
	require.NoError(t, s.Deliver(context.Background(), sampleResult()))
	require.Len(t, api.appends, 3)
	require.Contains(t, api.appendPaths[2], "Página1")
}
