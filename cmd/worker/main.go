package main

import (
	"context"
	"flag"
	"log"

	"omrflow/internal/activities"
	"omrflow/internal/app"
	"omrflow/internal/config"
	"omrflow/internal/workflows"

	"github.com/joho/godotenv"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	start := flag.Bool("start", false, "start the monitor workflow if it is not already running")
	flag.Parse()

	logFile, err := app.SetupLogging(cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Store, a.Source, a.Processor, cfg.ResultsDir))

	if *start {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:                       "omr-monitor",
			TaskQueue:                cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		}, workflows.MonitorWorkflow, workflows.MonitorInput{
			IntervalMinutes: cfg.IntervalMinutes,
			Archive:         cfg.ArchiveProcessed,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("monitor workflow id=%s run=%s", run.GetID(), run.GetRunID())
	}

	log.Printf("omr worker listening on %s queue=%s readers=%q sinks=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.Readers, cfg.Sinks)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
