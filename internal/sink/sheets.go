package sink

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"omrflow/internal/models"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets appends result rows to one spreadsheet per grid size. With a detail
// tab set, every question of the sheet is also listed there.
type Sheets struct {
	svc       *sheets.Service
	ids       map[int]string
	tab       string
	detailTab string
	limiter   *rate.Limiter
	loc       *time.Location

	mu     sync.Mutex
	headed map[string]bool
}

func NewSheets(ctx context.Context, credentialsFile string, ids map[int]string, tab string, pacing time.Duration) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return newSheets(svc, ids, tab, pacing), nil
}

func newSheets(svc *sheets.Service, ids map[int]string, tab string, pacing time.Duration) *Sheets {
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	if tab == "" {
		tab = "Página1"
	}
	return &Sheets{
		svc:     svc,
		ids:     ids,
		tab:     tab,
		limiter: rate.NewLimiter(limit, 1),
		loc:     time.Local,
		headed:  map[string]bool{},
	}
}

// WithDetailTab names the tab that receives the per-question rows. An empty
// name turns them off.
func (s *Sheets) WithDetailTab(tab string) *Sheets {
	s.detailTab = strings.TrimSpace(tab)
	return s
}

func (s *Sheets) spreadsheetFor(questions int) (string, error) {
	id := strings.TrimSpace(s.ids[questions])
	if id == "" {
		return "", fmt.Errorf("no spreadsheet configured for %d-question sheets", questions)
	}
	return id, nil
}

func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

func (s *Sheets) Deliver(ctx context.Context, r models.Result) error {
	id, err := s.spreadsheetFor(r.Questions)
	if err != nil {
		return err
	}
	if err := s.ensureHeader(ctx, id, s.tab, HeaderRow(r)); err != nil {
		return err
	}
	if err := s.append(ctx, id, s.tab, [][]any{Row(r, s.loc)}); err != nil {
		return fmt.Errorf("append row to %s: %w", id, err)
	}
	if s.detailTab == "" {
		return nil
	}
	// The summary row is already written, so a retry would duplicate it.
	if err := s.deliverDetails(ctx, id, r); err != nil {
		log.Printf("sheets detail rows skipped file=%s spreadsheet=%s err=%v", r.FileName, id, err)
	}
	return nil
}

func (s *Sheets) deliverDetails(ctx context.Context, id string, r models.Result) error {
	rows := DetailRows(r)
	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureHeader(ctx, id, s.detailTab, DetailHeaderRow()); err != nil {
		return err
	}
	return s.append(ctx, id, s.detailTab, rows)
}

func (s *Sheets) append(ctx context.Context, id, tab string, rows [][]any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for sheets slot: %w", err)
	}
	vr := &sheets.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Append(id, a1(tab, "A1"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// ensureHeader writes the column titles when the tab is still empty.
func (s *Sheets) ensureHeader(ctx context.Context, id, tab string, header []any) error {
	key := id + "|" + tab
	s.mu.Lock()
	done := s.headed[key]
	s.mu.Unlock()
	if done {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for sheets slot: %w", err)
	}
	resp, err := s.svc.Spreadsheets.Values.Get(id, a1(tab, "A1:A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", id, err)
	}
	if len(resp.Values) == 0 {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for sheets slot: %w", err)
		}
		vr := &sheets.ValueRange{Values: [][]any{header}}
		if _, err := s.svc.Spreadsheets.Values.Update(id, a1(tab, "A1"), vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header of %s: %w", id, err)
		}
	}
	s.mu.Lock()
	s.headed[key] = true
	s.mu.Unlock()
	return nil
}
