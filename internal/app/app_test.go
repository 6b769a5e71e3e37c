package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/ingest"

	"github.com/stretchr/testify/require"
)

func TestHistoryStoreSelection(t *testing.T) {
	cfg := config.Config{HistoryBackend: "file", HistoryPath: filepath.Join(t.TempDir(), "h.json")}
	s, err := HistoryStore(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &ingest.FileStore{}, s)

	cfg.HistoryBackend = "postgres"
	_, err = HistoryStore(cfg, nil)
	require.ErrorContains(t, err, "OMR_POSTGRES_URL")

	cfg.HistoryBackend = "redis"
	_, err = HistoryStore(cfg, nil)
	require.ErrorContains(t, err, "unsupported history backend")
}

func TestHistoryReaderNeverMovesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	s, err := HistoryReader(config.Config{HistoryBackend: "file", HistoryPath: path}, nil)
	require.NoError(t, err)

	_, warnings, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.Error(t, s.Save(context.Background(), ingest.NewHistory()))
}

func TestBuildLocalOnlyAndReset(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		HistoryBackend:   "file",
		HistoryPath:      filepath.Join(dir, "history.json"),
		Source:           "local",
		InboxDir:         filepath.Join(dir, "in"),
		ArchiveDir:       filepath.Join(dir, "done"),
		Sinks:            "jsonl",
		ResultsDir:       filepath.Join(dir, "results"),
		ArchiveProcessed: true,
	}
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, a.DB)
	require.Equal(t, []string{"jsonl"}, a.Sinks.Names())

	report, err := a.Tracker().RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Listed)

	require.NoError(t, ingest.Commit(context.Background(), a.Store, ingest.Record{FileID: "x", ProcessedAt: time.Now()}))
	_, err = os.Stat(cfg.HistoryPath)
	require.NoError(t, err)

	require.NoError(t, a.ResetHistory(context.Background()))
	_, err = os.Stat(cfg.HistoryPath)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, a.ResetHistory(context.Background()))
}

func TestBuildRejectsPostgresSinkWithoutDatabase(t *testing.T) {
	cfg := config.Config{HistoryBackend: "file", HistoryPath: filepath.Join(t.TempDir(), "h.json"), Sinks: "postgres"}
	_, err := Build(context.Background(), cfg)
	require.ErrorContains(t, err, "postgres sink")
}
