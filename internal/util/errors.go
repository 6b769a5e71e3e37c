package util

import "errors"

var (
	ErrNoPages = errors.New("no rasterizable pages found in PDF")

	ErrQuotaExhausted = errors.New("provider quota exhausted")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrTransient      = errors.New("transient provider error")
	ErrPermanent      = errors.New("permanent provider error")
	ErrUnsupported    = errors.New("operation not supported by provider")
)
