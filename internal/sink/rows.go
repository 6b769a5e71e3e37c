package sink

import (
	"fmt"
	"time"

	"omrflow/internal/models"
)

var baseColumns = []string{
	"Data", "Nome da Escola", "Nome Completo", "Data de Nascimento", "Turma",
	"Total de Acertos", "Total de Erros", "Anuladas", "Porcentagem",
}

var tailColumns = []string{"Arquivo", "Questões", "Estratégia", "Concordância"}

// HeaderRow is the first spreadsheet row for results shaped like r.
func HeaderRow(r models.Result) []any {
	row := make([]any, 0, len(baseColumns)+2*len(r.Subjects)+len(tailColumns))
	for _, c := range baseColumns {
		row = append(row, c)
	}
	for _, s := range r.Subjects {
		row = append(row, "Acertos "+s.Name, "Erros "+s.Name)
	}
	for _, c := range tailColumns {
		row = append(row, c)
	}
	return row
}

// Row renders one result as spreadsheet cells.
func Row(r models.Result, loc *time.Location) []any {
	if loc == nil {
		loc = time.Local
	}
	row := []any{
		r.ProcessedAt.In(loc).Format("02/01/2006"),
		orNA(r.Header.School),
		orNA(r.Header.Student),
		orNA(r.Header.BirthDate),
		orNA(r.Header.Class),
		r.Correct,
		r.Incorrect,
		r.Voided,
		fmt.Sprintf("%.1f%%", r.Percentage),
	}
	for _, s := range r.Subjects {
		row = append(row, s.Correct, s.Incorrect)
	}
	agreement := "-"
	if r.Evaluated {
		agreement = fmt.Sprintf("%.0f%%", r.Agreement*100)
	}
	return append(row, r.FileName, r.Questions, r.Strategy, agreement)
}

var outcomeLabels = map[string]string{
	"correct":   "Correta",
	"incorrect": "Incorreta",
	"voided":    "Anulada",
}

// DetailHeaderRow titles the per-question tab.
func DetailHeaderRow() []any {
	return []any{"Arquivo", "Nome Completo", "Questão", "Gabarito", "Resposta Aluno", "Status"}
}

// DetailRows lists one row per question of r.
func DetailRows(r models.Result) [][]any {
	details := r.Details()
	rows := make([][]any, 0, len(details))
	for _, d := range details {
		status, ok := outcomeLabels[d.Outcome]
		if !ok {
			status = d.Outcome
		}
		rows = append(rows, []any{r.FileName, orNA(r.Header.Student), d.Question, d.Key, d.Answer, status})
	}
	return rows
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
