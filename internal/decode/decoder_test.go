package decode

import (
	"errors"
	"strings"
	"testing"

	"omrflow/internal/sheet"

	"github.com/stretchr/testify/require"
)

func TestDecodeRowAllBelowFloorIsBlank(t *testing.T) {
	got := DecodeRow([4]float64{0.05, 0.04, 0.03, 0.02}, DefaultConfig())
	require.Equal(t, sheet.KindBlank, got.Kind)
}

func TestDecodeRowCloseTopTwoIsAmbiguous(t *testing.T) {
	got := DecodeRow([4]float64{0.9, 0.88, 0.1, 0.1}, DefaultConfig())
	require.Equal(t, sheet.KindAmbiguous, got.Kind)
	require.Equal(t, []sheet.Option{sheet.OptionA, sheet.OptionB}, got.Competing)
}

func TestDecodeRowClearWinner(t *testing.T) {
	got := DecodeRow([4]float64{0.9, 0.2, 0.1, 0.1}, DefaultConfig())
	require.True(t, got.Equal(sheet.Marked(sheet.OptionA)))
}

func TestDecodeRowWinnerNotFirst(t *testing.T) {
	got := DecodeRow([4]float64{0.1, 0.12, 0.08, 0.71}, DefaultConfig())
	require.True(t, got.Equal(sheet.Marked(sheet.OptionD)))
}

func TestDecodeRowThreeWayTie(t *testing.T) {
	got := DecodeRow([4]float64{0.6, 0.1, 0.58, 0.55}, DefaultConfig())
	require.Equal(t, sheet.KindAmbiguous, got.Kind)
	require.Equal(t, []sheet.Option{sheet.OptionA, sheet.OptionC, sheet.OptionD}, got.Competing)
}

func TestDecodeRowHonoursConfiguredFloor(t *testing.T) {
	cfg := Config{Floor: 0.5, Margin: 0.15}
	got := DecodeRow([4]float64{0.45, 0.1, 0.1, 0.1}, cfg)
	require.Equal(t, sheet.KindBlank, got.Kind)
}

func TestDecodeSheetFlagsDegenerate(t *testing.T) {
	g, err := sheet.Lookup(44)
	require.NoError(t, err)
	rows := make([][4]float64, g.Questions())
	for i := 0; i < 10; i++ {
		rows[i] = [4]float64{0.9, 0.1, 0.1, 0.1}
	}
	d, err := New(Config{}).DecodeSheet("s1", g, rows)
	require.NoError(t, err)
	require.Len(t, d.Answers, 44)
	require.Len(t, d.Warnings, 1)
	require.Contains(t, d.Warnings[0], sheet.ErrDecodeDegenerate.Error())
	require.True(t, errors.Is(Degenerate(d, 0.5), sheet.ErrDecodeDegenerate))
}

func TestDecodeSheetRejectsWrongRowCount(t *testing.T) {
	g, _ := sheet.Lookup(44)
	_, err := New(DefaultConfig()).DecodeSheet("s1", g, make([][4]float64, 3))
	require.Error(t, err)
}

func TestFromLettersPadsAndParses(t *testing.T) {
	g, _ := sheet.Lookup(44)
	d := FromLetters("s1", g, []string{"a", "?", "B/C", "", "x"})
	require.Equal(t, sheet.SourceOracle, d.Source)
	require.Len(t, d.Answers, 44)
	require.True(t, d.Answers[0].Equal(sheet.Marked(sheet.OptionA)))
	require.Equal(t, sheet.KindBlank, d.Answers[1].Kind)
	require.True(t, d.Answers[2].Equal(sheet.Ambiguous(sheet.OptionB, sheet.OptionC)))
	require.Equal(t, sheet.KindBlank, d.Answers[3].Kind)
	require.Equal(t, sheet.KindBlank, d.Answers[4].Kind)
	require.Equal(t, sheet.KindBlank, d.Answers[43].Kind)
	require.NotEmpty(t, d.Warnings)
}

func TestFromLettersTruncates(t *testing.T) {
	g, _ := sheet.Lookup(44)
	d := FromLetters("s1", g, strings.Split(strings.Repeat("A", 60), ""))
	require.Len(t, d.Answers, 44)
}
