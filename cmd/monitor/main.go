package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omrflow/internal/app"
	"omrflow/internal/config"
	"omrflow/internal/ingest"

	"github.com/joho/godotenv"
)

// timedCycler bounds every cycle by a deadline.
type timedCycler struct {
	t       *ingest.Tracker
	timeout time.Duration
}

func (c timedCycler) RunCycle(ctx context.Context) (ingest.CycleReport, error) {
	if c.timeout <= 0 {
		return c.t.RunCycle(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.t.RunCycle(ctx)
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	interval := flag.Int("interval", cfg.IntervalMinutes, "minutes between cycles; 0 runs a single pass")
	reset := flag.Bool("reset", false, "forget processed files before the first cycle")
	maxCycles := flag.Int("max-cycles", 0, "stop after this many cycles; 0 means no limit")
	maxHours := flag.Float64("max-hours", 0, "stop after this many hours; 0 means no limit")
	flag.Parse()

	logFile, err := app.SetupLogging(cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *maxHours > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*maxHours*float64(time.Hour)))
		defer cancel()
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if *reset {
		if err := a.ResetHistory(ctx); err != nil {
			log.Fatal(err)
		}
		log.Printf("history reset backend=%s", cfg.HistoryBackend)
	}

	log.Printf("omr monitor source=%s readers=%q sinks=%q interval=%dm max_cycles=%d max_hours=%g archive=%t",
		cfg.Source, cfg.Readers, cfg.Sinks, *interval, *maxCycles, *maxHours, cfg.ArchiveProcessed)
	m := ingest.NewMonitor(timedCycler{
		t:       a.Tracker(),
		timeout: time.Duration(cfg.CycleTimeoutSecs) * time.Second,
	}, time.Duration(*interval)*time.Minute).WithLimit(*maxCycles)
	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
	log.Printf("omr monitor stopped")
}
