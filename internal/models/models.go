package models

import "time"

// FileRef identifies one file in the watched storage folder. ID is the
// storage system's stable identifier, never the display name.
type FileRef struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MIMEType     string    `json:"mime_type,omitempty"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size,omitempty"`
}

// Version changes whenever the file content is replaced in place.
func (f FileRef) Version() string {
	return f.ID + "@" + f.ModifiedTime.UTC().Format(time.RFC3339Nano)
}

// Header is the identification block printed on a sheet.
type Header struct {
	School    string `json:"school,omitempty"`
	Student   string `json:"student,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Class     string `json:"class,omitempty"`
}

type SubjectResult struct {
	Name      string  `json:"name"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Percent   float64 `json:"percent"`
}

// Result is one delivered student row.
type Result struct {
	FileID      string          `json:"file_id"`
	FileName    string          `json:"file_name"`
	KeyID       string          `json:"key_id"`
	Questions   int             `json:"questions"`
	Header      Header          `json:"header"`
	Correct     int             `json:"correct"`
	Incorrect   int             `json:"incorrect"`
	Voided      int             `json:"voided"`
	Percentage  float64         `json:"percentage"`
	Subjects    []SubjectResult `json:"subjects,omitempty"`
	Answers     []string        `json:"answers"`
	KeyAnswers  []string        `json:"key_answers,omitempty"`
	Outcomes    []string        `json:"outcomes,omitempty"`
	Strategy    string          `json:"strategy"`
	Agreement   float64         `json:"agreement"`
	Evaluated   bool            `json:"evaluated"`
	Warnings    []string        `json:"warnings,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// QuestionDetail is the per-question view of a result.
type QuestionDetail struct {
	Question int    `json:"question"`
	Key      string `json:"key"`
	Answer   string `json:"answer"`
	Outcome  string `json:"outcome"`
}

// Details pairs the key, the student answer and the outcome of every
// question. Results stored before outcomes were kept return nil.
func (r Result) Details() []QuestionDetail {
	if len(r.Outcomes) == 0 {
		return nil
	}
	out := make([]QuestionDetail, len(r.Outcomes))
	for i, o := range r.Outcomes {
		d := QuestionDetail{Question: i + 1, Outcome: o}
		if i < len(r.KeyAnswers) {
			d.Key = r.KeyAnswers[i]
		}
		if i < len(r.Answers) {
			d.Answer = r.Answers[i]
		}
		out[i] = d
	}
	return out
}

// Stats summarizes delivered percentages for one grade or overall.
type Stats struct {
	Scope    string  `json:"scope"`
	Total    int     `json:"total"`
	Mean     float64 `json:"mean"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	Approved int     `json:"approved"`
	Failed   int     `json:"failed"`
}
