package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"omrflow/internal/sheet"
	"omrflow/internal/util"
)

// Store persists the history. Load never fails on unreadable content: a
// corrupt history comes back empty with an ErrHistoryCorrupt warning.
type Store interface {
	Load(ctx context.Context) (History, []error, error)
	Save(ctx context.Context, h History) error
}

// historyFile is the on-disk layout shared with earlier deployments:
// processed_ids is authoritative, records carries optional detail and
// rejected lists file versions that could not be graded.
type historyFile struct {
	LastChecked    string      `json:"last_checked"`
	TotalProcessed int         `json:"total_processed"`
	ProcessedIDs   []string    `json:"processed_ids"`
	Records        []Record    `json:"records,omitempty"`
	Rejected       []Rejection `json:"rejected,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FileStore keeps the history in a single JSON document written atomically.
type FileStore struct {
	path     string
	now      func() time.Time
	readOnly bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

// ReadOnly returns a view for processes that only report on the history.
// It never moves a corrupt file aside and refuses to save, so the monitor
// stays the single writer.
func (s *FileStore) ReadOnly() *FileStore {
	return &FileStore{path: s.path, now: s.now, readOnly: true}
}

func (s *FileStore) Load(ctx context.Context) (History, []error, error) {
	_ = ctx
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewHistory(), nil, nil
	}
	if err != nil {
		return History{}, nil, fmt.Errorf("read history: %w", err)
	}
	h, warnings, err := decodeHistory(raw)
	if err != nil && s.readOnly {
		return NewHistory(), []error{fmt.Errorf("%w: %s: %v; left in place", sheet.ErrHistoryCorrupt, s.path, err)}, nil
	}
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			backup = "(not preserved: " + renameErr.Error() + ")"
		}
		return NewHistory(), []error{fmt.Errorf("%w: %s: %v; starting empty, old file at %s", sheet.ErrHistoryCorrupt, s.path, err, backup)}, nil
	}
	return h, warnings, nil
}

func decodeHistory(raw []byte) (History, []error, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return History{}, nil, errors.New("empty document")
	}
	var doc historyFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return History{}, nil, err
	}
	var warnings []error
	last, ok := parseTime(doc.LastChecked)
	if !ok {
		warnings = append(warnings, fmt.Errorf("history last_checked %q unreadable, ignored", doc.LastChecked))
	}

	details := make(map[string]Record, len(doc.Records))
	for _, r := range doc.Records {
		details[r.FileID] = r
	}
	recs := make([]Record, 0, len(doc.ProcessedIDs))
	for _, id := range doc.ProcessedIDs {
		rec, ok := details[id]
		if !ok {
			rec = Record{FileID: id}
		}
		recs = append(recs, rec)
	}
	h, dups := fromRecords(last, recs)
	h.addRejections(doc.Rejected)
	if len(dups) > 0 {
		warnings = append(warnings, fmt.Errorf("history integrity: %d duplicate ids dropped: %s", len(dups), strings.Join(dups, ", ")))
	}
	if doc.TotalProcessed != 0 && doc.TotalProcessed != len(doc.ProcessedIDs) {
		warnings = append(warnings, fmt.Errorf("history integrity: total_processed=%d but %d ids listed", doc.TotalProcessed, len(doc.ProcessedIDs)))
	}
	return h, warnings, nil
}

func (s *FileStore) Save(ctx context.Context, h History) error {
	_ = ctx
	if s.readOnly {
		return fmt.Errorf("save history %s: read-only store", s.path)
	}
	doc := historyFile{
		TotalProcessed: h.Len(),
		ProcessedIDs:   h.IDs(),
		Records:        h.Records(),
		Rejected:       h.Rejections(),
	}
	if !h.LastChecked.IsZero() {
		doc.LastChecked = h.LastChecked.Format(time.RFC3339Nano)
	}
	if err := util.WriteJSONAtomic(s.path, doc); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Commit loads the current history, appends rec and saves it. It is the
// one-shot form used when the cycle steps run as separate activities.
func Commit(ctx context.Context, s Store, rec Record) error {
	h, _, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	next, err := h.With(rec)
	if err != nil {
		return err
	}
	return s.Save(ctx, next)
}

// Reject loads the current history, records rej and saves it.
func Reject(ctx context.Context, s Store, rej Rejection) error {
	h, _, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	next, err := h.WithRejection(rej)
	if err != nil {
		return err
	}
	return s.Save(ctx, next)
}
