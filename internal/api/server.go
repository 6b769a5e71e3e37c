package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/ingest"
	"omrflow/internal/models"
	"omrflow/internal/sheet"
	"omrflow/internal/sink"
	"omrflow/internal/storage"

	"github.com/gorilla/mux"
)

// Results is the read side of delivered results.
type Results interface {
	ListByQuestions(ctx context.Context, questions, limit int) ([]models.Result, error)
	Percentages(ctx context.Context, questions int) ([]float64, error)
}

// HistoryLoader reads the ingestion history.
type HistoryLoader interface {
	Load(ctx context.Context) (ingest.History, []error, error)
}

type Server struct {
	profile config.Profile
	passing float64
	results Results
	history HistoryLoader
	now     func() time.Time
}

func NewServer(profile config.Profile, passing float64, results Results, history HistoryLoader) *Server {
	return &Server{profile: profile, passing: passing, results: results, history: history, now: time.Now}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/alunos/{grade}", s.handleStudents).Methods(http.MethodGet)
	api.HandleFunc("/estatisticas/geral", s.handleOverallStats).Methods(http.MethodGet)
	api.HandleFunc("/estatisticas/{grade}", s.handleGradeStats).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, errors.New("route not found"))
	})
	return withCORS(r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "online",
		"timestamp": s.now().Format(time.RFC3339),
		"grades":    s.gradeTable(),
	}
	if s.history != nil {
		h, warnings, err := s.history.Load(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		body["processed"] = h.Len()
		if !h.LastChecked.IsZero() {
			body["last_checked"] = h.LastChecked.Format(time.RFC3339)
		}
		if len(warnings) > 0 {
			body["history_warnings"] = len(warnings)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) gradeTable() map[string]int {
	out := map[string]int{}
	for _, g := range s.profile.Grades() {
		if geo, ok := s.profile.GeometryForGrade(g); ok {
			out[g] = geo.Questions()
		}
	}
	return out
}

func (s *Server) resolveGrade(w http.ResponseWriter, r *http.Request) (string, sheet.Geometry, bool) {
	grade := strings.ToLower(mux.Vars(r)["grade"])
	g, ok := s.profile.GeometryForGrade(grade)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown grade %q", grade))
		return "", sheet.Geometry{}, false
	}
	return grade, g, true
}

type studentRow struct {
	Name       string                 `json:"nome"`
	School     string                 `json:"escola"`
	Class      string                 `json:"turma"`
	BirthDate  string                 `json:"nascimento"`
	Correct    int                    `json:"acertos"`
	Incorrect  int                    `json:"erros"`
	Voided     int                    `json:"anuladas"`
	Percentage float64                `json:"porcentagem"`
	Subjects   []models.SubjectResult `json:"disciplinas,omitempty"`
	Strategy   string                 `json:"estrategia"`
	File       string                 `json:"arquivo"`
	Date       string                 `json:"data"`
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	grade, g, ok := s.resolveGrade(w, r)
	if !ok {
		return
	}
	results, err := s.results.ListByQuestions(r.Context(), g.Questions(), 0)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	rows := make([]studentRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, studentRow{
			Name:       res.Header.Student,
			School:     res.Header.School,
			Class:      res.Header.Class,
			BirthDate:  res.Header.BirthDate,
			Correct:    res.Correct,
			Incorrect:  res.Incorrect,
			Voided:     res.Voided,
			Percentage: res.Percentage,
			Subjects:   res.Subjects,
			Strategy:   res.Strategy,
			File:       res.FileName,
			Date:       res.ProcessedAt.Format("02/01/2006"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serie":     grade,
		"questoes":  g.Questions(),
		"total":     len(rows),
		"alunos":    rows,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleGradeStats(w http.ResponseWriter, r *http.Request) {
	grade, g, ok := s.resolveGrade(w, r)
	if !ok {
		return
	}
	pcts, err := s.results.Percentages(r.Context(), g.Questions())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, storage.Summarize(grade, pcts, s.passing))
}

func (s *Server) handleOverallStats(w http.ResponseWriter, r *http.Request) {
	var all []float64
	perGrade := map[string]models.Stats{}
	for _, grade := range s.profile.Grades() {
		g, _ := s.profile.GeometryForGrade(grade)
		pcts, err := s.results.Percentages(r.Context(), g.Questions())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		perGrade[grade] = storage.Summarize(grade, pcts, s.passing)
		all = append(all, pcts...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"geral":  storage.Summarize("geral", all, s.passing),
		"series": perGrade,
	})
}

// JSONLResults serves the API from the JSONL sink files when no database
// is configured.
type JSONLResults struct {
	J *sink.JSONL
}

func (j JSONLResults) ListByQuestions(_ context.Context, questions, limit int) ([]models.Result, error) {
	rows, err := j.J.Results(questions)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].ProcessedAt.After(rows[b].ProcessedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (j JSONLResults) Percentages(_ context.Context, questions int) ([]float64, error) {
	var sizes []int
	if questions > 0 {
		sizes = []int{questions}
	} else {
		for _, g := range sheet.Supported() {
			sizes = append(sizes, g.Questions())
		}
	}
	var out []float64
	for _, n := range sizes {
		rows, err := j.J.Results(n)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r.Percentage)
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}
	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "OMR-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		default:
			return apiError{Code: "OMR-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	case status == http.StatusNotFound:
		if strings.Contains(raw, "unknown grade") {
			return apiError{Code: "OMR-API-4041", Message: "Unknown grade. Use one of the grades listed by /api/status."}
		}
		return apiError{Code: "OMR-API-4004", Message: "Requested resource was not found."}
	case status == http.StatusMethodNotAllowed:
		return apiError{Code: "OMR-API-4005", Message: "This endpoint does not support the requested method."}
	}
	return apiError{Code: "OMR-API-4000", Message: "Request failed."}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
