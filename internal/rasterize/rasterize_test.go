package rasterize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageCountRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := PageCount(path)
	require.Error(t, err)
}

func TestPagesReportsMissingFile(t *testing.T) {
	_, err := New(0).Pages(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), t.TempDir())
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	r := New(0)
	require.Equal(t, 300, r.DPI)
	require.Equal(t, "pdftoppm", r.Binary)
	require.Equal(t, 4, r.MaxPages)
}
