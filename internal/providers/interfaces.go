package providers

import (
	"context"

	"omrflow/internal/models"
	"omrflow/internal/sheet"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// ReadKind selects what a reader is asked to extract from a sheet image.
type ReadKind string

const (
	ReadAnswers ReadKind = "answers"
	ReadHeader  ReadKind = "header"
)

// Role tells the reader whose marks it is looking at. Key sheets carry the
// exam staff's marks; student sheets may carry corrections in other colors.
type Role string

const (
	RoleKey     Role = "key"
	RoleStudent Role = "student"
)

type ReadRequest struct {
	Kind     ReadKind       `json:"kind"`
	Role     Role           `json:"role"`
	SheetID  string         `json:"sheet_id"`
	Geometry sheet.Geometry `json:"geometry"`
	MIMEType string         `json:"mime_type"`
	Image    []byte         `json:"-"`
}

type ReadResult struct {
	Answers []string      `json:"answers,omitempty"`
	Header  models.Header `json:"header"`
	Raw     string        `json:"raw,omitempty"`
}

// SheetReader is an independent reader of sheet images. Remote vision models
// act as the oracle for answers; local OCR only reads headers and returns
// util.ErrUnsupported for anything else.
type SheetReader interface {
	Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error)
}

// Supports reports the read kinds a reader can serve.
type Capable interface {
	Supports(kind ReadKind) bool
}

func supports(r SheetReader, kind ReadKind) bool {
	if c, ok := r.(Capable); ok {
		return c.Supports(kind)
	}
	return true
}
