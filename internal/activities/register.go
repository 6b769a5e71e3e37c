package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.PlanCycleActivity)
	w.RegisterActivity(a.ProcessSheetActivity)
	w.RegisterActivity(a.CommitSheetActivity)
	w.RegisterActivity(a.RejectSheetActivity)
	w.RegisterActivity(a.ArchiveSheetActivity)
	w.RegisterActivity(a.WriteCycleReportActivity)
}
