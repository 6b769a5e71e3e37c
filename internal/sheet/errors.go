package sheet

import (
	"errors"
	"fmt"
)

var (
	ErrAlignment          = errors.New("sheet alignment failed")
	ErrDecodeDegenerate   = errors.New("sheet decode degenerate")
	ErrOracleUnavailable  = errors.New("oracle unavailable")
	ErrGeometryMismatch   = errors.New("geometry mismatch")
	ErrHistoryCorrupt     = errors.New("history corrupt")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrGeometryUnspecified = errors.New("geometry not specified")
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
	ErrAlreadyProcessed    = errors.New("file already processed")
)

// AlignmentError reports a sheet whose reference marks could not be located.
type AlignmentError struct {
	AnchorsFound int
	Residual     float64
	Reason       string
}

func (e *AlignmentError) Error() string {
	if e.Residual > 0 {
		return fmt.Sprintf("sheet alignment failed: %s (anchors=%d residual=%.2f)", e.Reason, e.AnchorsFound, e.Residual)
	}
	return fmt.Sprintf("sheet alignment failed: %s (anchors=%d)", e.Reason, e.AnchorsFound)
}

func (e *AlignmentError) Unwrap() error { return ErrAlignment }

// Rejected reports whether err means the file itself cannot be graded as it
// stands. Such files are not retried until their content changes.
func Rejected(err error) bool {
	for _, target := range []error{ErrAlignment, ErrGeometryMismatch, ErrGeometryUnspecified, ErrUnsupportedGeometry} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
