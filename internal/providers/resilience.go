package providers

import (
	"context"
	"fmt"
	"log"
	"time"

	"omrflow/internal/sheet"
	"omrflow/internal/util"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Retrying retries transient failures with bounded exponential backoff.
// A call that still fails is reported as ErrOracleUnavailable.
type Retrying struct {
	next   SheetReader
	policy util.RetryPolicy
}

func WithRetry(r SheetReader, p util.RetryPolicy) *Retrying {
	if p.MaximumAttempts == 0 {
		p = util.DefaultRetryPolicy()
	}
	return &Retrying{next: r, policy: p}
}

func (r *Retrying) Supports(kind ReadKind) bool { return supports(r.next, kind) }

func (r *Retrying) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	var (
		res      ReadResult
		info     ProviderInfo
		attempts int
	)
	err := util.Retry(ctx, r.policy, Retryable, func(ctx context.Context) error {
		attempts++
		var err error
		res, info, err = r.next.Read(ctx, req)
		if err != nil && attempts < r.policy.MaximumAttempts && Retryable(err) {
			log.Printf("reader retry provider=%s kind=%s sheet=%s attempt=%d err=%v", info.Name, req.Kind, req.SheetID, attempts, err)
		}
		return err
	})
	if err != nil {
		return ReadResult{}, info, fmt.Errorf("%w: %s %s after %d attempt(s): %w", sheet.ErrOracleUnavailable, info.Name, req.Kind, attempts, err)
	}
	return res, info, nil
}

// Spaced enforces a minimum interval between calls to the wrapped reader.
// Callers wait for their slot; no call is dropped.
type Spaced struct {
	next    SheetReader
	limiter *rate.Limiter
}

func WithSpacing(r SheetReader, every time.Duration) *Spaced {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Spaced{next: r, limiter: rate.NewLimiter(limit, 1)}
}

func (s *Spaced) Supports(kind ReadKind) bool { return supports(s.next, kind) }

func (s *Spaced) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return ReadResult{}, ProviderInfo{}, fmt.Errorf("wait for reader slot: %w", err)
	}
	return s.next.Read(ctx, req)
}

type CallRecord struct {
	CallID    string
	SheetID   string
	Kind      string
	Provider  string
	Model     string
	Key       string
	Status    string
	ErrorType string
	Error     string
	Latency   time.Duration
	CreatedAt time.Time
}

// AuditSink stores one row per reader call.
type AuditSink interface {
	InsertCall(ctx context.Context, rec CallRecord) error
}

// Audited records every call of the wrapped reader. Audit failures are
// logged and never fail the read.
type Audited struct {
	next SheetReader
	sink AuditSink
	now  func() time.Time
}

func WithAudit(r SheetReader, sink AuditSink) *Audited {
	return &Audited{next: r, sink: sink, now: time.Now}
}

func (a *Audited) Supports(kind ReadKind) bool { return supports(a.next, kind) }

func (a *Audited) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	start := a.now()
	res, info, err := a.next.Read(ctx, req)
	rec := CallRecord{
		CallID:    uuid.NewString(),
		SheetID:   req.SheetID,
		Kind:      string(req.Kind),
		Provider:  info.Name,
		Model:     info.Model,
		Key:       info.Key,
		Status:    "ok",
		Latency:   a.now().Sub(start),
		CreatedAt: start,
	}
	if err != nil {
		rec.Status = "failed"
		rec.ErrorType = string(ClassifyError(err))
		rec.Error = util.Snippet(err.Error(), 500)
	}
	if aerr := a.sink.InsertCall(ctx, rec); aerr != nil {
		log.Printf("reader audit failed call=%s err=%v", rec.CallID, aerr)
	}
	return res, info, err
}
