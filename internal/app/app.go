package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/ingest"
	"omrflow/internal/pipeline"
	"omrflow/internal/providers"
	"omrflow/internal/rasterize"
	"omrflow/internal/sink"
	"omrflow/internal/source"
	"omrflow/internal/storage"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config    config.Config
	Profile   config.Profile
	DB        *storage.DB
	Source    source.Source
	Store     ingest.Store
	Readers   *providers.Manager
	Sinks     *sink.Fanout
	Processor *pipeline.Processor
}

// SetupLogging mirrors the standard logger to path when it is set. The
// returned closer is never nil.
func SetupLogging(path string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if strings.TrimSpace(path) == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.NopCloser(nil), fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

// OpenDB connects when a DSN is configured and returns nil otherwise.
func OpenDB(ctx context.Context, cfg config.Config) (*storage.DB, error) {
	if strings.TrimSpace(cfg.PostgresURL) == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return storage.Open(ctx, cfg.PostgresURL)
}

// HistoryStore picks the history backend named by cfg.HistoryBackend.
func HistoryStore(cfg config.Config, db *storage.DB) (ingest.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.HistoryBackend)) {
	case "", "file":
		return ingest.NewFileStore(cfg.HistoryPath), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres history needs OMR_POSTGRES_URL")
		}
		return storage.NewHistoryRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.HistoryBackend)
	}
}

// HistoryReader is the history backend for processes that never write it.
func HistoryReader(cfg config.Config, db *storage.DB) (ingest.Store, error) {
	s, err := HistoryStore(cfg, db)
	if err != nil {
		return nil, err
	}
	if file, ok := s.(*ingest.FileStore); ok {
		return file.ReadOnly(), nil
	}
	return s, nil
}

// Build wires the grading pipeline from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Profile: profile, DB: db}
	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	if a.Store, err = HistoryStore(cfg, db); err != nil {
		return fail(err)
	}
	if a.Source, err = source.New(ctx, cfg); err != nil {
		return fail(err)
	}

	var audit providers.AuditSink
	var results sink.ResultStore
	if db != nil {
		audit = storage.NewReaderAuditRepo(db)
		results = storage.NewResultRepo(db)
	}
	if a.Readers, err = providers.NewManager(cfg, audit); err != nil {
		return fail(err)
	}
	if a.Sinks, err = sink.New(ctx, cfg, results); err != nil {
		return fail(err)
	}

	a.Processor = pipeline.New(a.Source, a.Readers, a.Sinks, pipeline.Options{
		Profile:    profile,
		Rasterizer: rasterize.New(cfg.PDFDPI),
		WorkDir:    cfg.WorkDir,
	})
	return a, nil
}

// Tracker builds the polling tracker. Committed files are archived only
// when OMR_ARCHIVE_PROCESSED is set.
func (a *App) Tracker() *ingest.Tracker {
	opts := ingest.TrackerOptions{}
	if a.Config.ArchiveProcessed {
		opts.Archiver = a.Source
	}
	return ingest.NewTracker(a.Store, a.Source, a.Processor, opts)
}

// ResetHistory forgets every processed file, so the next cycle grades the
// whole folder again.
func (a *App) ResetHistory(ctx context.Context) error {
	switch s := a.Store.(type) {
	case *storage.HistoryRepo:
		return s.Reset(ctx)
	case *ingest.FileStore:
		if err := os.Remove(s.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reset history: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("reset not supported for %T", a.Store)
	}
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
