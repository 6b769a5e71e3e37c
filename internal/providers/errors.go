package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"omrflow/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, util.ErrQuotaExhausted):
		return ErrorQuota
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, util.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ErrorTransient
	case errors.Is(err, util.ErrPermanent), errors.Is(err, util.ErrUnsupported), errors.Is(err, context.Canceled):
		return ErrorPermanent
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "resource_exhausted"), strings.Contains(e, "resource exhausted"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "too many requests"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "deadline"), strings.Contains(e, "500"), strings.Contains(e, "503"),
		strings.Contains(e, "connection reset"), strings.Contains(e, "eof"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// Retryable reports whether another attempt could succeed. Quota errors are
// retried too: per-minute quotas refill within the backoff window.
func Retryable(err error) bool {
	return err != nil && ClassifyError(err) != ErrorPermanent
}

// Tag wraps err with the sentinel matching its classification.
func Tag(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch ClassifyError(err) {
	case ErrorQuota:
		sentinel = util.ErrQuotaExhausted
	case ErrorRate:
		sentinel = util.ErrRateLimited
	case ErrorTransient:
		sentinel = util.ErrTransient
	default:
		sentinel = util.ErrPermanent
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
