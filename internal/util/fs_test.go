package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeJoinStaysInsideRoot(t *testing.T) {
	require.Equal(t, filepath.Join("/work", "passwd"), SafeJoin("/work", "../../etc/passwd"))
	require.Equal(t, filepath.Join("/work", "aluno.jpg"), SafeJoin("/work", "turma/aluno.jpg"))
	require.Equal(t, filepath.Join("/work", "unnamed"), SafeJoin("/work", ""))
}

func TestAtomicWritersReplaceWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "rows.jsonl")

	require.NoError(t, WriteJSONLinesAtomic(path, []any{map[string]int{"a": 1}, map[string]int{"b": 2}}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(raw))

	require.NoError(t, WriteJSONLinesAtomic(path, []any{map[string]int{"c": 3}}))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"c\":3}\n", string(raw))

	require.NoError(t, WriteJSONAtomic(filepath.Join(dir, "r.json"), map[string]string{"run_id": "x"}))
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
