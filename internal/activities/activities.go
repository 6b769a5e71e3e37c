package activities

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"omrflow/internal/ingest"
	"omrflow/internal/models"
	"omrflow/internal/sheet"
	"omrflow/internal/util"

	"go.temporal.io/sdk/temporal"
)

// Lister enumerates and archives files of the watched folder.
type Lister interface {
	List(ctx context.Context) ([]models.FileRef, error)
	Archive(ctx context.Context, f models.FileRef) error
}

// Activities are the steps of one polling cycle. The workflow calls them
// one file at a time, so the history keeps a single writer.
type Activities struct {
	store     ingest.Store
	source    Lister
	handler   ingest.Handler
	reportDir string
}

func New(store ingest.Store, src Lister, handler ingest.Handler, reportDir string) *Activities {
	return &Activities{store: store, source: src, handler: handler, reportDir: reportDir}
}

// PlanCycleActivity loads the history, lists the folder and filters it.
// Listing errors are retried by the activity retry policy.
func (a *Activities) PlanCycleActivity(ctx context.Context, in PlanCycleInput) (PlanCycleOutput, error) {
	h, warnings, err := a.store.Load(ctx)
	if err != nil {
		return PlanCycleOutput{}, fmt.Errorf("load history: %w", err)
	}
	var out PlanCycleOutput
	for _, w := range warnings {
		log.Printf("history warning run=%s: %v", in.RunID, w)
		out.Warnings = append(out.Warnings, w.Error())
	}
	files, err := a.source.List(ctx)
	if err != nil {
		return PlanCycleOutput{}, fmt.Errorf("list files: %w: %v", sheet.ErrStorageUnavailable, err)
	}
	plan := ingest.PlanCycle(h, files)
	out.Listed = len(files)
	out.ToProcess = plan.ToProcess
	out.Keys = plan.Keys
	out.Skipped = len(plan.Skipped)
	log.Printf("cycle planned run=%s listed=%d keys=%d to_process=%d skipped=%d", in.RunID, out.Listed, len(out.Keys), len(out.ToProcess), out.Skipped)
	return out, nil
}

// ProcessSheetActivity grades and delivers one sheet. Sheets that cannot be
// aligned or matched fail without retries; the workflow records them as
// rejected.
func (a *Activities) ProcessSheetActivity(ctx context.Context, in ProcessSheetInput) (ProcessSheetOutput, error) {
	outcome, err := a.handler.Handle(ctx, in.File, in.Keys)
	if err != nil {
		if sheet.Rejected(err) {
			return ProcessSheetOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), SheetRejectedErrorType, err)
		}
		return ProcessSheetOutput{}, err
	}
	return ProcessSheetOutput{Outcome: outcome}, nil
}

// CommitSheetActivity records a delivered sheet. A retry that finds the id
// already committed succeeds.
func (a *Activities) CommitSheetActivity(ctx context.Context, in CommitSheetInput) error {
	err := ingest.Commit(ctx, a.store, in.Record)
	if errors.Is(err, sheet.ErrAlreadyProcessed) {
		return nil
	}
	return err
}

// RejectSheetActivity records a file version that could not be graded, so
// the next cycles skip it until the file changes.
func (a *Activities) RejectSheetActivity(ctx context.Context, in RejectSheetInput) error {
	err := ingest.Reject(ctx, a.store, in.Rejection)
	if errors.Is(err, sheet.ErrAlreadyProcessed) {
		return nil
	}
	return err
}

func (a *Activities) ArchiveSheetActivity(ctx context.Context, in ArchiveSheetInput) error {
	return a.source.Archive(ctx, in.File)
}

func (a *Activities) WriteCycleReportActivity(ctx context.Context, in WriteCycleReportInput) error {
	_ = ctx
	if a.reportDir == "" {
		return nil
	}
	return util.WriteJSONAtomic(filepath.Join(a.reportDir, "cycles", in.Report.RunID+".json"), in.Report)
}
