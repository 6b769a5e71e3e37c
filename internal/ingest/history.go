package ingest

import (
	"fmt"
	"sort"
	"time"

	"omrflow/internal/models"
	"omrflow/internal/sheet"
)

// Record is one committed file.
type Record struct {
	FileID      string    `json:"file_id"`
	Name        string    `json:"name,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	Outcome     string    `json:"outcome,omitempty"`
}

// Rejection marks one version of a file that could not be graded. The file
// is planned again only once its version changes.
type Rejection struct {
	FileID     string    `json:"file_id"`
	Name       string    `json:"name,omitempty"`
	Version    string    `json:"version"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

// History is the append-only set of committed file ids plus the rejected
// file versions. It is a value: With and WithRejection return a new History
// and never touch the receiver, so a failed save leaves the caller's copy
// exactly as it was.
type History struct {
	LastChecked time.Time
	records     []Record
	index       map[string]struct{}
	rejected    map[string]Rejection
}

func NewHistory() History {
	return History{index: map[string]struct{}{}, rejected: map[string]Rejection{}}
}

func (h History) Has(id string) bool {
	_, ok := h.index[id]
	return ok
}

func (h History) Len() int { return len(h.records) }

func (h History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

func (h History) IDs() []string {
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.FileID
	}
	return out
}

// IsRejected reports whether this exact version of f was rejected before.
func (h History) IsRejected(f models.FileRef) bool {
	r, ok := h.rejected[f.ID]
	return ok && r.Version == f.Version()
}

// Rejections lists the rejected versions, oldest first.
func (h History) Rejections() []Rejection {
	out := make([]Rejection, 0, len(h.rejected))
	for _, r := range h.rejected {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RejectedAt.Equal(out[j].RejectedAt) {
			return out[i].RejectedAt.Before(out[j].RejectedAt)
		}
		return out[i].FileID < out[j].FileID
	})
	return out
}

// RecordsFrom returns the records committed after the first n.
func (h History) RecordsFrom(n int) []Record {
	if n < 0 {
		n = 0
	}
	if n >= len(h.records) {
		return nil
	}
	out := make([]Record, len(h.records)-n)
	copy(out, h.records[n:])
	return out
}

// WithRejection records r, replacing any earlier rejection of the same id.
// Committed ids cannot be rejected.
func (h History) WithRejection(r Rejection) (History, error) {
	if r.FileID == "" || r.Version == "" {
		return h, fmt.Errorf("reject record: empty file id or version")
	}
	if h.Has(r.FileID) {
		return h, fmt.Errorf("reject %s: %w", r.FileID, sheet.ErrAlreadyProcessed)
	}
	next := h.clone(0)
	next.rejected[r.FileID] = r
	return next, nil
}

func (h History) clone(extra int) History {
	next := History{
		LastChecked: h.LastChecked,
		records:     make([]Record, len(h.records), len(h.records)+extra),
		index:       make(map[string]struct{}, len(h.index)+extra),
		rejected:    make(map[string]Rejection, len(h.rejected)),
	}
	copy(next.records, h.records)
	for id := range h.index {
		next.index[id] = struct{}{}
	}
	for id, r := range h.rejected {
		next.rejected[id] = r
	}
	return next
}

// With appends rec and clears any rejection of the same id. Committing an
// id twice is an error.
func (h History) With(rec Record) (History, error) {
	if rec.FileID == "" {
		return h, fmt.Errorf("commit record: empty file id")
	}
	if h.Has(rec.FileID) {
		return h, fmt.Errorf("commit %s: %w", rec.FileID, sheet.ErrAlreadyProcessed)
	}
	next := h.clone(1)
	next.records = append(next.records, rec)
	next.index[rec.FileID] = struct{}{}
	delete(next.rejected, rec.FileID)
	if rec.ProcessedAt.After(next.LastChecked) {
		next.LastChecked = rec.ProcessedAt
	}
	return next, nil
}

// fromRecords rebuilds a history, dropping repeated ids. The dropped ids are
// returned so the caller can report them.
func fromRecords(lastChecked time.Time, recs []Record) (History, []string) {
	h := NewHistory()
	h.LastChecked = lastChecked
	var dups []string
	for _, r := range recs {
		if r.FileID == "" {
			continue
		}
		if h.Has(r.FileID) {
			dups = append(dups, r.FileID)
			continue
		}
		h.records = append(h.records, r)
		h.index[r.FileID] = struct{}{}
	}
	return h, dups
}

// Restore rebuilds a history from stored records in commit order plus the
// stored rejections. Repeated ids are dropped and returned; rejections of
// committed ids are ignored.
func Restore(lastChecked time.Time, recs []Record, rejected []Rejection) (History, []string) {
	h, dups := fromRecords(lastChecked, recs)
	h.addRejections(rejected)
	return h, dups
}

func (h History) addRejections(rejected []Rejection) {
	for _, r := range rejected {
		if r.FileID == "" || r.Version == "" || h.Has(r.FileID) {
			continue
		}
		if prev, ok := h.rejected[r.FileID]; ok && prev.RejectedAt.After(r.RejectedAt) {
			continue
		}
		h.rejected[r.FileID] = r
	}
}
