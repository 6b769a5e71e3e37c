package workflows

import (
	"errors"
	"fmt"
	"time"

	"omrflow/internal/activities"
	"omrflow/internal/ingest"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetCycleProgress   = "GetCycleProgress"
	QueryGetMonitorProgress = "GetMonitorProgress"

	// cyclesPerRun bounds the monitor's event history before it continues
	// as new.
	cyclesPerRun = 96
)

func storageRetry() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    20 * time.Second,
		MaximumAttempts:    3,
	}
}

// CycleWorkflow runs one polling pass: plan, then process and commit each
// sheet in order. A sheet is committed only after its delivery succeeded;
// failures are reported and the pass moves on.
func CycleWorkflow(ctx workflow.Context, input CycleInput) (ingest.CycleReport, error) {
	info := workflow.GetInfo(ctx)
	report := ingest.CycleReport{RunID: info.WorkflowExecution.RunID, StartedAt: workflow.Now(ctx)}
	progress := CycleProgress{RunID: report.RunID, PerSheet: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetCycleProgress, func() (CycleProgress, error) {
		return progress, nil
	}); err != nil {
		return report, err
	}
	logger := workflow.GetLogger(ctx)

	planCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         storageRetry(),
	})
	var plan activities.PlanCycleOutput
	if err := workflow.ExecuteActivity(planCtx, activities.PlanCycleActivityName, activities.PlanCycleInput{RunID: report.RunID}).Get(ctx, &plan); err != nil {
		report.FinishedAt = workflow.Now(ctx)
		return report, fmt.Errorf("plan cycle: %w", err)
	}
	report.Listed = plan.Listed
	report.Keys = len(plan.Keys)
	report.Skipped = plan.Skipped
	report.Warnings = append(report.Warnings, plan.Warnings...)
	progress.Total = len(plan.ToProcess)

	sheetCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	})
	commitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         storageRetry(),
	})

	for _, f := range plan.ToProcess {
		progress.Current = f.Name
		progress.PerSheet[f.ID] = "processing"

		var out activities.ProcessSheetOutput
		err := workflow.ExecuteActivity(sheetCtx, activities.ProcessSheetActivityName, activities.ProcessSheetInput{File: f, Keys: plan.Keys}).Get(ctx, &out)
		if err != nil {
			logger.Warn("sheet failed", "name", f.Name, "id", f.ID, "error", err)
			report.Failures = append(report.Failures, ingest.Failure{FileID: f.ID, Name: f.Name, Error: err.Error()})
			progress.PerSheet[f.ID] = "failed"
			progress.Failed++
			progress.LastError = err.Error()

			var appErr *temporal.ApplicationError
			if !errors.As(err, &appErr) || appErr.Type() != activities.SheetRejectedErrorType {
				continue
			}
			rej := ingest.Rejection{FileID: f.ID, Name: f.Name, Version: f.Version(), Reason: appErr.Error(), RejectedAt: workflow.Now(ctx)}
			if err := workflow.ExecuteActivity(commitCtx, activities.RejectSheetActivityName, activities.RejectSheetInput{Rejection: rej}).Get(ctx, nil); err != nil {
				report.FinishedAt = workflow.Now(ctx)
				return report, fmt.Errorf("reject %s: %w", f.ID, err)
			}
			report.Rejected = append(report.Rejected, f.ID)
			progress.PerSheet[f.ID] = "rejected"
			continue
		}

		rec := ingest.Record{FileID: f.ID, Name: f.Name, ProcessedAt: workflow.Now(ctx), Outcome: out.Outcome}
		if err := workflow.ExecuteActivity(commitCtx, activities.CommitSheetActivityName, activities.CommitSheetInput{Record: rec}).Get(ctx, nil); err != nil {
			report.FinishedAt = workflow.Now(ctx)
			progress.PerSheet[f.ID] = "commit_failed"
			return report, fmt.Errorf("commit %s: %w", f.ID, err)
		}
		report.Committed = append(report.Committed, f.ID)
		progress.PerSheet[f.ID] = "committed"
		progress.Done++

		if input.Archive {
			if err := workflow.ExecuteActivity(commitCtx, activities.ArchiveSheetActivityName, activities.ArchiveSheetInput{File: f}).Get(ctx, nil); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("archive %s: %v", f.Name, err))
			}
		}
	}
	progress.Current = ""
	report.FinishedAt = workflow.Now(ctx)

	if err := workflow.ExecuteActivity(commitCtx, activities.WriteCycleReportActivityName, activities.WriteCycleReportInput{Report: report}).Get(ctx, nil); err != nil {
		logger.Warn("cycle report not written", "run", report.RunID, "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("write cycle report: %v", err))
	}
	return report, nil
}

// MonitorWorkflow runs CycleWorkflow as a child, sleeps for the interval and
// repeats. Children run one at a time, so cycles never overlap. With a zero
// interval it runs a single cycle.
func MonitorWorkflow(ctx workflow.Context, input MonitorInput) (MonitorProgress, error) {
	progress := MonitorProgress{Cycles: input.Cycles}
	if err := workflow.SetQueryHandler(ctx, QueryGetMonitorProgress, func() (MonitorProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	logger := workflow.GetLogger(ctx)
	interval := time.Duration(input.IntervalMinutes) * time.Minute

	for run := 0; ; run++ {
		if input.MaxCycles > 0 && progress.Cycles >= input.MaxCycles {
			return progress, nil
		}
		if run >= cyclesPerRun {
			input.Cycles = progress.Cycles
			return progress, workflow.NewContinueAsNewError(ctx, MonitorWorkflow, input)
		}

		childID := fmt.Sprintf("%s-cycle-%d", workflow.GetInfo(ctx).WorkflowExecution.ID, progress.Cycles+1)
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: childID})
		var report ingest.CycleReport
		err := workflow.ExecuteChildWorkflow(childCtx, CycleWorkflow, CycleInput{Archive: input.Archive}).Get(ctx, &report)
		progress.Cycles++
		progress.LastReport = report
		progress.LastError = ""
		if err != nil {
			progress.LastError = err.Error()
			logger.Error("cycle aborted", "cycle", progress.Cycles, "error", err)
			if interval <= 0 {
				return progress, err
			}
		} else {
			logger.Info("cycle done", "cycle", progress.Cycles, "summary", report.Summary())
		}

		if interval <= 0 {
			return progress, nil
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return progress, err
		}
	}
}
