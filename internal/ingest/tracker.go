package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"omrflow/internal/models"
	"omrflow/internal/sheet"
	"omrflow/internal/util"

	"github.com/google/uuid"
)

// Lister enumerates the watched storage folder.
type Lister interface {
	List(ctx context.Context) ([]models.FileRef, error)
}

// Handler runs the full pass for one student file, delivery included. The
// file is committed only when Handle returns nil.
type Handler interface {
	Handle(ctx context.Context, file models.FileRef, keys []models.FileRef) (string, error)
}

// Archiver moves a committed file out of the watched folder.
type Archiver interface {
	Archive(ctx context.Context, file models.FileRef) error
}

type Failure struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}

type CycleReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Listed     int       `json:"listed"`
	Keys       int       `json:"keys"`
	Skipped    int       `json:"skipped"`
	Committed  []string  `json:"committed"`
	Rejected   []string  `json:"rejected,omitempty"`
	Failures   []Failure `json:"failures,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

func (r CycleReport) Summary() string {
	msg := fmt.Sprintf("run=%s listed=%d keys=%d skipped=%d committed=%d failed=%d rejected=%d",
		r.RunID, r.Listed, r.Keys, r.Skipped, len(r.Committed), len(r.Failures), len(r.Rejected))
	if len(r.Failures) == 0 {
		return msg
	}
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Name+": "+f.Error)
	}
	return msg + " failures=[" + strings.Join(names, "; ") + "]"
}

type TrackerOptions struct {
	Retry    util.RetryPolicy
	Archiver Archiver
	Now      func() time.Time
}

// Tracker runs list, filter, process and commit cycles. It is the single
// writer of the history; cycles must not overlap.
type Tracker struct {
	store    Store
	lister   Lister
	handler  Handler
	archiver Archiver
	retry    util.RetryPolicy
	now      func() time.Time
}

func NewTracker(store Store, lister Lister, handler Handler, opts TrackerOptions) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry.MaximumAttempts == 0 {
		opts.Retry = util.DefaultRetryPolicy()
	}
	return &Tracker{
		store:    store,
		lister:   lister,
		handler:  handler,
		archiver: opts.Archiver,
		retry:    opts.Retry,
		now:      opts.Now,
	}
}

// RunCycle performs one polling pass. Per-file failures are collected in the
// report and never stop the cycle. A history save failure or an unreachable
// storage listing aborts it; files committed before that stay committed.
func (t *Tracker) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{RunID: uuid.NewString(), StartedAt: t.now()}
	err := t.runCycle(ctx, &report)
	report.FinishedAt = t.now()
	return report, err
}

func (t *Tracker) runCycle(ctx context.Context, report *CycleReport) error {
	h, warnings, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, w := range warnings {
		if errors.Is(w, sheet.ErrHistoryCorrupt) {
			log.Printf("WARNING history reset: %v", w)
		} else {
			log.Printf("history warning: %v", w)
		}
		report.Warnings = append(report.Warnings, w.Error())
	}

	var files []models.FileRef
	err = util.Retry(ctx, t.retry, nil, func(ctx context.Context) error {
		var lerr error
		files, lerr = t.lister.List(ctx)
		return lerr
	})
	if err != nil {
		return fmt.Errorf("list files: %w: %v", sheet.ErrStorageUnavailable, err)
	}

	plan := PlanCycle(h, files)
	report.Listed = len(files)
	report.Keys = len(plan.Keys)
	report.Skipped = len(plan.Skipped)
	log.Printf("cycle run=%s listed=%d keys=%d to_process=%d skipped=%d", report.RunID, len(files), len(plan.Keys), len(plan.ToProcess), len(plan.Skipped))

	for _, f := range plan.ToProcess {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := t.handler.Handle(ctx, f, plan.Keys)
		if err != nil {
			log.Printf("file failed name=%q id=%s err=%v", f.Name, f.ID, err)
			report.Failures = append(report.Failures, Failure{FileID: f.ID, Name: f.Name, Error: err.Error()})
			if !sheet.Rejected(err) {
				continue
			}
			next, rerr := h.WithRejection(Rejection{FileID: f.ID, Name: f.Name, Version: f.Version(), Reason: err.Error(), RejectedAt: t.now()})
			if rerr != nil {
				continue
			}
			if err := t.store.Save(ctx, next); err != nil {
				return fmt.Errorf("reject %s: %w", f.ID, err)
			}
			h = next
			report.Rejected = append(report.Rejected, f.ID)
			log.Printf("rejected name=%q id=%s version=%s", f.Name, f.ID, f.Version())
			continue
		}

		next, err := h.With(Record{FileID: f.ID, Name: f.Name, ProcessedAt: t.now(), Outcome: outcome})
		if err != nil {
			report.Failures = append(report.Failures, Failure{FileID: f.ID, Name: f.Name, Error: err.Error()})
			continue
		}
		if err := t.store.Save(ctx, next); err != nil {
			return fmt.Errorf("commit %s: %w", f.ID, err)
		}
		h = next
		report.Committed = append(report.Committed, f.ID)
		log.Printf("committed name=%q id=%s outcome=%q", f.Name, f.ID, outcome)

		if t.archiver != nil {
			if err := t.archiver.Archive(ctx, f); err != nil {
				log.Printf("archive failed name=%q id=%s err=%v", f.Name, f.ID, err)
				report.Warnings = append(report.Warnings, fmt.Sprintf("archive %s: %v", f.Name, err))
			}
		}
	}
	return nil
}
