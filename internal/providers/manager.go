package providers

import (
	"fmt"
	"strings"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/util"
)

type NamedReader struct {
	Ref    ProviderRef
	Reader SheetReader
}

// Manager holds the configured readers in preference order.
type Manager struct {
	readers []NamedReader
}

// NewManager builds the readers listed in cfg.Readers. Remote readers are
// wrapped with audit (when sink is non-nil), call spacing and retry; the
// spacing limiter is per reader, so header and answer calls share it.
func NewManager(cfg config.Config, sink AuditSink) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.Readers) {
		r, err := buildReader(ref, cfg, sink)
		if err != nil {
			return nil, err
		}
		m.readers = append(m.readers, NamedReader{Ref: ref, Reader: r})
	}
	return m, nil
}

// NewManagerFromReaders wires readers built elsewhere, in the given order.
func NewManagerFromReaders(readers ...NamedReader) *Manager {
	return &Manager{readers: readers}
}

func buildReader(ref ProviderRef, cfg config.Config, sink AuditSink) (SheetReader, error) {
	switch ref.Name {
	case "gemini":
		var r SheetReader = NewGemini(ref.KeyAlias, cfg.GeminiModel)
		if sink != nil {
			r = WithAudit(r, sink)
		}
		r = WithSpacing(r, time.Duration(cfg.OracleSpacingMS)*time.Millisecond)
		return WithRetry(r, util.DefaultRetryPolicy()), nil
	case "tesseract":
		langs := strings.Split(cfg.TesseractLang, "+")
		if ref.KeyAlias != "" {
			langs = strings.Split(ref.KeyAlias, "+")
		}
		return NewTesseract(langs...), nil
	case "mock":
		return NewMockReader(), nil
	default:
		return nil, fmt.Errorf("unsupported reader: %s", ref.Raw)
	}
}

func (m *Manager) Count() int { return len(m.readers) }

func (m *Manager) Refs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.readers))
	for _, r := range m.readers {
		out = append(out, r.Ref)
	}
	return out
}

// Oracle returns the preferred reader able to read answers.
func (m *Manager) Oracle() (SheetReader, ProviderRef, bool) {
	for _, i := range m.preferredOrder() {
		if supports(m.readers[i].Reader, ReadAnswers) {
			return m.readers[i].Reader, m.readers[i].Ref, true
		}
	}
	return nil, ProviderRef{}, false
}

// HeaderReaders lists the readers able to read headers, preferred first.
func (m *Manager) HeaderReaders() []NamedReader {
	var out []NamedReader
	for _, i := range m.preferredOrder() {
		if supports(m.readers[i].Reader, ReadHeader) {
			out = append(out, m.readers[i])
		}
	}
	return out
}

func (m *Manager) FindByName(name string) (SheetReader, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	for _, r := range m.readers {
		if r.Ref.Name == target || strings.ToLower(r.Ref.Raw) == target {
			return r.Reader, r.Ref, true
		}
	}
	return nil, ProviderRef{}, false
}

// preferredOrder keeps the configured order but moves mock readers last.
func (m *Manager) preferredOrder() []int {
	out := make([]int, 0, len(m.readers))
	for i, r := range m.readers {
		if r.Ref.Name != "mock" {
			out = append(out, i)
		}
	}
	for i, r := range m.readers {
		if r.Ref.Name == "mock" {
			out = append(out, i)
		}
	}
	return out
}
