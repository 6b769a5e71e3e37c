package activities

import (
	"omrflow/internal/ingest"
	"omrflow/internal/models"
)

const (
	PlanCycleActivityName        = "PlanCycleActivity"
	ProcessSheetActivityName     = "ProcessSheetActivity"
	CommitSheetActivityName      = "CommitSheetActivity"
	RejectSheetActivityName      = "RejectSheetActivity"
	ArchiveSheetActivityName     = "ArchiveSheetActivity"
	WriteCycleReportActivityName = "WriteCycleReportActivity"

	// SheetRejectedErrorType marks a non-retryable failure caused by the
	// file itself.
	SheetRejectedErrorType = "SheetRejected"
)

type PlanCycleInput struct {
	RunID string `json:"run_id"`
}

type PlanCycleOutput struct {
	Listed    int              `json:"listed"`
	ToProcess []models.FileRef `json:"to_process"`
	Keys      []models.FileRef `json:"keys"`
	Skipped   int              `json:"skipped"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type ProcessSheetInput struct {
	File models.FileRef   `json:"file"`
	Keys []models.FileRef `json:"keys"`
}

type ProcessSheetOutput struct {
	Outcome string `json:"outcome"`
}

type CommitSheetInput struct {
	Record ingest.Record `json:"record"`
}

type RejectSheetInput struct {
	Rejection ingest.Rejection `json:"rejection"`
}

type ArchiveSheetInput struct {
	File models.FileRef `json:"file"`
}

type WriteCycleReportInput struct {
	Report ingest.CycleReport `json:"report"`
}
