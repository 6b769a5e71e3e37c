package ingest

import (
	"sort"

	"omrflow/internal/models"
	"omrflow/internal/sheet"
)

const (
	SkipAlreadyProcessed = "already processed"
	SkipUnsupported      = "unsupported extension"
	SkipDuplicateListing = "listed twice"
	SkipRejected         = "rejected"
)

type Skipped struct {
	File   models.FileRef `json:"file"`
	Reason string         `json:"reason"`
}

// Plan is the outcome of filtering one listing against the history.
type Plan struct {
	ToProcess []models.FileRef `json:"to_process"`
	Keys      []models.FileRef `json:"keys"`
	Skipped   []Skipped        `json:"skipped,omitempty"`
}

// PlanCycle decides, without side effects, what a cycle should do with a
// listing. Answer keys are returned separately and never enter the history.
// A file rejected before is skipped until its version changes. Files are
// processed oldest first so a backlog drains in upload order.
func PlanCycle(h History, files []models.FileRef) Plan {
	var p Plan
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f.ID] {
			p.Skipped = append(p.Skipped, Skipped{File: f, Reason: SkipDuplicateListing})
			continue
		}
		seen[f.ID] = true
		switch {
		case sheet.IsAnswerKeyName(f.Name):
			p.Keys = append(p.Keys, f)
		case h.Has(f.ID):
			p.Skipped = append(p.Skipped, Skipped{File: f, Reason: SkipAlreadyProcessed})
		case h.IsRejected(f):
			p.Skipped = append(p.Skipped, Skipped{File: f, Reason: SkipRejected})
		case !sheet.IsSupportedSheet(f.Name):
			p.Skipped = append(p.Skipped, Skipped{File: f, Reason: SkipUnsupported})
		default:
			p.ToProcess = append(p.ToProcess, f)
		}
	}
	sort.SliceStable(p.ToProcess, func(i, j int) bool {
		a, b := p.ToProcess[i], p.ToProcess[j]
		if !a.ModifiedTime.Equal(b.ModifiedTime) {
			return a.ModifiedTime.Before(b.ModifiedTime)
		}
		return a.Name < b.Name
	})
	return p
}
