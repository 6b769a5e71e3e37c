package config

import (
	"os"
	"path/filepath"
	"testing"

	"omrflow/internal/sheet"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OMR_SINKS", "")
	t.Setenv("OMR_SHEETS_PACING_MS", "not-a-number")
	cfg := Load()
	require.Equal(t, "omrflow", cfg.TemporalTaskQueue)
	require.Equal(t, 2000, cfg.SheetsPacingMS)
	require.Equal(t, []string{"sheets"}, cfg.SinkNames())
	require.Equal(t, 70.0, cfg.PassingPercent)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OMR_SINKS", "Sheets | postgres")
	t.Setenv("OMR_SHEET_ID_52", "sheet-nine")
	t.Setenv("OMR_MINIO_SECURE", "true")
	t.Setenv("OMR_PASSING_PERCENT", "60.5")
	t.Setenv("OMR_SHEET_DETAIL_TAB", "Detalhes")
	cfg := Load()
	require.Equal(t, []string{"sheets", "postgres"}, cfg.SinkNames())
	require.Equal(t, "sheet-nine", cfg.SheetIDs[52])
	require.True(t, cfg.MinIOSecure)
	require.Equal(t, 60.5, cfg.PassingPercent)
	require.Equal(t, "Detalhes", cfg.SheetDetailTab)
}

func TestProfileOverridesPerGeometry(t *testing.T) {
	p, err := ParseProfile([]byte(`
decode:
  floor: 0.35
geometries:
  52:
    grade: 9ano
    reconcile:
      high: 0.9
    subjects:
      - {name: Leitura, first: 1, last: 20}
      - {name: Cálculo, first: 21, last: 52}
`))
	require.NoError(t, err)

	g52, _ := sheet.Lookup(52)
	r := p.For(g52)
	require.Equal(t, 0.35, r.Decode.Floor)
	require.Equal(t, 0.15, r.Decode.Margin)
	require.Equal(t, 0.9, r.Reconcile.High)
	require.Equal(t, 0.5, r.Reconcile.Low)
	require.Len(t, r.Subjects, 2)
	require.Equal(t, "Cálculo", r.Subjects[1].Name)

	g44, _ := sheet.Lookup(44)
	r = p.For(g44)
	require.Equal(t, "5ano", r.Grade)
	require.Equal(t, 0.8, r.Reconcile.High)
	require.Equal(t, 22, r.Subjects[0].Last)

	g, ok := p.GeometryForGrade("9ANO")
	require.True(t, ok)
	require.Equal(t, 52, g.Questions())
	require.Equal(t, []string{"5ano", "9ano"}, p.Grades())
}

func TestProfileRejectsBadInput(t *testing.T) {
	_, err := ParseProfile([]byte("geometries:\n  30: {grade: x}\n"))
	require.ErrorIs(t, err, sheet.ErrUnsupportedGeometry)

	_, err = ParseProfile([]byte("geometries:\n  44:\n    subjects: [{name: a, first: 1, last: 50}]\n"))
	require.Error(t, err)

	_, err = ParseProfile([]byte("reconcile: {high: 0.4, low: 0.6}\n"))
	require.Error(t, err)
}

func TestLoadProfileFromFile(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	require.Equal(t, 0.3, p.Decode.Floor)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decode: {margin: 0.2}\n"), 0o644))
	p, err = LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, 0.2, p.Decode.Margin)
	require.Equal(t, 0.3, p.Decode.Floor)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
