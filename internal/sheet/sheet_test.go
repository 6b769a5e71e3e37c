package sheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeometryFromKeyName(t *testing.T) {
	cases := map[string]int{
		"gabarito44.png":   44,
		"gabarito_44.jpg":  44,
		"gabarito52.png":   52,
		"gabarito_52.jpeg": 52,
		"GABARITO_52.JPG":  52,
	}
	for name, want := range cases {
		g, err := GeometryFromKeyName(name)
		require.NoError(t, err, name)
		require.Equal(t, want, g.Questions(), name)
		require.Equal(t, 4, g.Options())
	}
}

func TestGeometryFromKeyNameWithoutCountFails(t *testing.T) {
	_, err := GeometryFromKeyName("gabarito.png")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrGeometryUnspecified))
}

func TestGeometryFromKeyNameUnknownCount(t *testing.T) {
	_, err := GeometryFromKeyName("gabarito_30.png")
	require.True(t, errors.Is(err, ErrUnsupportedGeometry))
}

func TestIsAnswerKeyName(t *testing.T) {
	require.True(t, IsAnswerKeyName("gabarito.png"))
	require.True(t, IsAnswerKeyName("Gabarito_52.jpg"))
	require.True(t, IsAnswerKeyName("gabarito_rascunho.pdf"))
	require.False(t, IsAnswerKeyName("aluno_gabarito.png"))
	require.False(t, IsAnswerKeyName("maria.jpg"))
}

func TestGeometryHint(t *testing.T) {
	g, ok := GeometryHint("turma_b_52.jpg")
	require.True(t, ok)
	require.Equal(t, 52, g.Questions())

	_, ok = GeometryHint("joao_2024.png")
	require.False(t, ok)
}

func TestROIsStayInsideFrameAndDoNotOverlap(t *testing.T) {
	for _, g := range Supported() {
		for q := 0; q < g.Questions(); q++ {
			var prev Rect
			for o := OptionA; o <= OptionD; o++ {
				r := g.ROI(q, o)
				require.Greater(t, r.Width(), 0.0)
				require.Greater(t, r.Height(), 0.0)
				require.GreaterOrEqual(t, r.X0, 0.0)
				require.LessOrEqual(t, r.X1, 1.0)
				require.GreaterOrEqual(t, r.Y0, 0.0)
				require.LessOrEqual(t, r.Y1, 1.0)
				if o > OptionA {
					require.Greater(t, r.X0, prev.X1)
				}
				prev = r
			}
		}
	}
}

func TestGeometryColumnMajorLayout(t *testing.T) {
	g, err := Lookup(52)
	require.NoError(t, err)
	require.Equal(t, 13, g.RowsPerColumn())
	first := g.ROI(0, OptionA)
	second := g.ROI(1, OptionA)
	nextCol := g.ROI(13, OptionA)
	require.InDelta(t, first.X0, second.X0, 1e-9)
	require.Greater(t, second.Y0, first.Y0)
	require.Greater(t, nextCol.X0, first.X0)
	require.InDelta(t, first.Y0, nextCol.Y0, 1e-9)
}

func TestGeometryTravelsAsQuestionCount(t *testing.T) {
	g, err := Lookup(44)
	require.NoError(t, err)
	d := Decode{SheetID: "s1", Geometry: g, Source: SourceLocal, Answers: []Answer{Marked(OptionC)}}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Contains(t, string(b), `"geometry":44`)

	var back Decode
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, g, back.Geometry)
	require.True(t, back.Answers[0].Equal(Marked(OptionC)))
}

func TestAnswerEqualAndString(t *testing.T) {
	require.True(t, Marked(OptionB).Equal(Marked(OptionB)))
	require.False(t, Marked(OptionB).Equal(Marked(OptionC)))
	require.True(t, Blank().Equal(Blank()))
	require.True(t, Ambiguous(OptionB, OptionA).Equal(Ambiguous(OptionA, OptionB)))
	require.False(t, Ambiguous(OptionA, OptionB).Equal(Ambiguous(OptionA, OptionC)))
	require.Equal(t, "A/B", Ambiguous(OptionB, OptionA).String())
	require.Equal(t, "?", Blank().String())
	require.Equal(t, "D", Marked(OptionD).String())
}

func TestAlignmentErrorUnwraps(t *testing.T) {
	var err error = &AlignmentError{AnchorsFound: 2, Reason: "too few anchors"}
	require.True(t, errors.Is(err, ErrAlignment))
	var ae *AlignmentError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, 2, ae.AnchorsFound)
}

func TestRejectedClassifiesFileFaults(t *testing.T) {
	require.True(t, Rejected(fmt.Errorf("a.jpg: %w", &AlignmentError{AnchorsFound: 1})))
	require.True(t, Rejected(fmt.Errorf("key: %w", ErrGeometryMismatch)))
	require.True(t, Rejected(ErrGeometryUnspecified))
	require.False(t, Rejected(fmt.Errorf("deliver: %w", ErrStorageUnavailable)))
	require.False(t, Rejected(ErrOracleUnavailable))
	require.False(t, Rejected(nil))
}
