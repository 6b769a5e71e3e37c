package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/models"
	"omrflow/internal/sheet"
	"omrflow/internal/util"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("Gemini:key1| tesseract |gemini:key2")
	require.Len(t, refs, 3)
	require.Equal(t, "gemini", refs[0].Name)
	require.Equal(t, "key1", refs[0].KeyAlias)
	require.Equal(t, "tesseract", refs[1].Name)
	require.Empty(t, ParseProviderList(" | "))
}

func TestManagerPreferences(t *testing.T) {
	m, err := NewManager(config.Config{Readers: "mock|tesseract|gemini:main", TesseractLang: "por"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, m.Count())

	_, ref, ok := m.Oracle()
	require.True(t, ok)
	require.Equal(t, "gemini", ref.Name)

	var names []string
	for _, r := range m.HeaderReaders() {
		names = append(names, r.Ref.Name)
	}
	require.Equal(t, []string{"tesseract", "gemini", "mock"}, names)

	_, _, ok = m.FindByName("gemini:main")
	require.True(t, ok)
}

func TestManagerWithoutOracle(t *testing.T) {
	m, err := NewManager(config.Config{Readers: "tesseract"}, nil)
	require.NoError(t, err)
	_, _, ok := m.Oracle()
	require.False(t, ok)
	require.Len(t, m.HeaderReaders(), 1)

	_, err = NewManager(config.Config{Readers: "openai"}, nil)
	require.Error(t, err)
}

type flakyReader struct {
	errs  []error
	calls int
}

func (f *flakyReader) Read(context.Context, ReadRequest) (ReadResult, ProviderInfo, error) {
	f.calls++
	info := ProviderInfo{Name: "flaky"}
	if f.calls <= len(f.errs) {
		return ReadResult{}, info, f.errs[f.calls-1]
	}
	return ReadResult{Answers: []string{"A"}}, info, nil
}

func fastRetry() util.RetryPolicy {
	return util.RetryPolicy{InitialInterval: time.Millisecond, BackoffCoefficient: 2, MaximumAttempts: 3}
}

func TestRetryingRecoversFromTransientErrors(t *testing.T) {
	f := &flakyReader{errs: []error{errors.New("503 unavailable"), errors.New("timeout")}}
	res, _, err := WithRetry(f, fastRetry()).Read(context.Background(), ReadRequest{Kind: ReadAnswers})
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, res.Answers)
	require.Equal(t, 3, f.calls)
}

func TestRetryingGivesUpAsOracleUnavailable(t *testing.T) {
	f := &flakyReader{errs: []error{errors.New("503"), errors.New("503"), errors.New("503"), errors.New("503")}}
	_, _, err := WithRetry(f, fastRetry()).Read(context.Background(), ReadRequest{Kind: ReadAnswers})
	require.ErrorIs(t, err, sheet.ErrOracleUnavailable)
	require.Equal(t, 3, f.calls)

	f = &flakyReader{errs: []error{errors.New("API key not valid")}}
	_, _, err = WithRetry(f, fastRetry()).Read(context.Background(), ReadRequest{Kind: ReadAnswers})
	require.ErrorIs(t, err, sheet.ErrOracleUnavailable)
	require.Equal(t, 1, f.calls)
}

func TestSpacedWaitsForSlot(t *testing.T) {
	s := WithSpacing(NewMockReader(), time.Hour)
	_, _, err := s.Read(context.Background(), ReadRequest{Kind: ReadHeader})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = s.Read(ctx, ReadRequest{Kind: ReadHeader})
	require.Error(t, err)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) InsertCall(ctx context.Context, rec CallRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func TestAuditedRecordsFailures(t *testing.T) {
	sink := &mockSink{}
	sink.On("InsertCall", mock.Anything, mock.MatchedBy(func(rec CallRecord) bool {
		return rec.Status == "failed" && rec.ErrorType == string(ErrorRate) && rec.SheetID == "s1" && rec.CallID != ""
	})).Return(errors.New("db down")).Once()

	r := NewMockReader().SetError("s1", errors.New("429 too many requests"))
	_, _, err := WithAudit(r, sink).Read(context.Background(), ReadRequest{Kind: ReadAnswers, SheetID: "s1"})
	require.Error(t, err)
	sink.AssertExpectations(t)
}

func TestMockReaderDefaultsToBlanks(t *testing.T) {
	g, _ := sheet.Lookup(44)
	r := NewMockReader().SetHeader("s1", models.Header{Student: "Ana"})
	res, info, err := r.Read(context.Background(), ReadRequest{Kind: ReadAnswers, SheetID: "x", Geometry: g})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Len(t, res.Answers, 44)
	require.Equal(t, "?", res.Answers[0])

	res, _, err = r.Read(context.Background(), ReadRequest{Kind: ReadHeader, SheetID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "Ana", res.Header.Student)
	require.Len(t, r.Calls(), 2)
}

func TestParseAnswerText(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`{"answers": ["A", "?", "B/D"]}`, []string{"A", "?", "B/D"}},
		{"```json\n[\"C\", \"D\"]\n```", []string{"C", "D"}},
		{"Segue a lista: ['A', 'B', '?'] conforme", []string{"A", "B", "?"}},
	}
	for _, tc := range cases {
		got, err := ParseAnswerText(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
	_, err := ParseAnswerText("não consegui ler")
	require.Error(t, err)
}

func TestParseHeaderJSON(t *testing.T) {
	h, err := ParseHeaderJSON("Resultado:\n{\"escola\": \"E.M. Centro\", \"aluno\": \" Ana  Souza \", \"turma\": \"N/A\", \"nascimento\": \"01/02/2013\"}")
	require.NoError(t, err)
	require.Equal(t, models.Header{School: "E.M. Centro", Student: "Ana Souza", BirthDate: "01/02/2013"}, h)

	_, err = ParseHeaderJSON("{broken")
	require.Error(t, err)
}

func TestParseHeaderText(t *testing.T) {
	ocr := `AVALIAÇÃO DIAGNÓSTICA
Nome da Escola: E.M. Rui Barbosa   Turma: 9A
Nome completo: Maria Clara Souza  Data de nascimento: 12/03/2011
CARTÃO-RESPOSTA`
	h := ParseHeaderText(ocr)
	require.Equal(t, "E.M. Rui Barbosa", h.School)
	require.Equal(t, "Maria Clara Souza", h.Student)
	require.Equal(t, "12/03/2011", h.BirthDate)
	require.Equal(t, "9A", h.Class)
}

func TestParseHeaderTextValueOnNextLine(t *testing.T) {
	ocr := `Nome da Escola:
Escola Estadual Paulo Freire
Nome completo:
João Pedro Lima
Turma:
5º B`
	h := ParseHeaderText(ocr)
	require.Equal(t, "Escola Estadual Paulo Freire", h.School)
	require.Equal(t, "João Pedro Lima", h.Student)
	require.Equal(t, "5º B", h.Class)
	require.Empty(t, h.BirthDate)
}

func TestAnswerPromptDescribesColumns(t *testing.T) {
	g, _ := sheet.Lookup(52)
	p := answerSystemPrompt(g, RoleStudent)
	require.Contains(t, p, "1-13, 14-26, 27-39, 40-52")
	require.Contains(t, p, "ALUNO")

	g, _ = sheet.Lookup(44)
	require.Contains(t, answerSystemPrompt(g, RoleKey), "1-11, 12-22, 23-33, 34-44")
}

func TestLocalReadersRefuseWhatTheyCannotDo(t *testing.T) {
	_, _, err := NewTesseract().Read(context.Background(), ReadRequest{Kind: ReadAnswers})
	require.ErrorIs(t, err, util.ErrUnsupported)
	require.False(t, NewTesseract().Supports(ReadAnswers))

	t.Setenv("GEMINI_API_KEY", "")
	_, _, err = NewGemini("", "").Read(context.Background(), ReadRequest{Kind: ReadAnswers, Image: []byte{1}})
	require.ErrorIs(t, err, util.ErrPermanent)
}
