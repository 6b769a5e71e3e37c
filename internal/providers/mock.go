package providers

import (
	"context"
	"fmt"
	"sync"

	"omrflow/internal/models"
	"omrflow/internal/util"
)

// MockReader answers from fixed tables keyed by sheet id. Unknown sheets get
// an all-blank answer list, so a mock oracle never invents marks.
type MockReader struct {
	mu      sync.Mutex
	answers map[string][]string
	headers map[string]models.Header
	errs    map[string]error
	calls   []ReadRequest
}

func NewMockReader() *MockReader {
	return &MockReader{
		answers: map[string][]string{},
		headers: map[string]models.Header{},
		errs:    map[string]error{},
	}
}

func (m *MockReader) SetAnswers(sheetID string, letters []string) *MockReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[sheetID] = letters
	return m
}

func (m *MockReader) SetHeader(sheetID string, h models.Header) *MockReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[sheetID] = h
	return m
}

func (m *MockReader) SetError(sheetID string, err error) *MockReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[sheetID] = err
	return m
}

// Calls returns the requests seen so far.
func (m *MockReader) Calls() []ReadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReadRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockReader) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-reader-v1", Key: "mock"}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if err := m.errs[req.SheetID]; err != nil {
		return ReadResult{}, info, err
	}
	switch req.Kind {
	case ReadAnswers:
		letters, ok := m.answers[req.SheetID]
		if !ok {
			letters = make([]string, req.Geometry.Questions())
			for i := range letters {
				letters[i] = "?"
			}
		}
		return ReadResult{Answers: letters}, info, nil
	case ReadHeader:
		return ReadResult{Header: m.headers[req.SheetID]}, info, nil
	default:
		return ReadResult{}, info, fmt.Errorf("mock %s: %w", req.Kind, util.ErrUnsupported)
	}
}
