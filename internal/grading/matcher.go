package grading

import (
	"fmt"

	"omrflow/internal/sheet"
)

type Outcome string

const (
	Correct   Outcome = "correct"
	Incorrect Outcome = "incorrect"
	Voided    Outcome = "voided"
)

// Subject names a contiguous range of questions, 1-based and inclusive.
type Subject struct {
	Name  string `yaml:"name" json:"name"`
	First int    `yaml:"first" json:"first"`
	Last  int    `yaml:"last" json:"last"`
}

type SubjectScore struct {
	Name      string  `json:"name"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Voided    int     `json:"voided"`
	Percent   float64 `json:"percent"`
}

type Comparison struct {
	SheetID    string         `json:"sheet_id"`
	KeyID      string         `json:"key_id"`
	Outcomes   []Outcome      `json:"outcomes"`
	Correct    int            `json:"correct"`
	Incorrect  int            `json:"incorrect"`
	Voided     int            `json:"voided"`
	Percentage float64        `json:"percentage"`
	Subjects   []SubjectScore `json:"subjects,omitempty"`
}

// Scored is the number of questions that count toward the percentage.
func (c Comparison) Scored() int { return c.Correct + c.Incorrect }

// Match scores a student decode against an answer key. A key question that
// is blank or ambiguous is voided for everyone; a student blank or ambiguous
// is always incorrect.
func Match(student, key sheet.Decode, subjects []Subject) (Comparison, error) {
	if student.Geometry != key.Geometry {
		return Comparison{}, fmt.Errorf("match %s against key %s: %w (%s vs %s)",
			student.SheetID, key.SheetID, sheet.ErrGeometryMismatch, student.Geometry, key.Geometry)
	}
	if err := student.Validate(); err != nil {
		return Comparison{}, err
	}
	if err := key.Validate(); err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		SheetID:  student.SheetID,
		KeyID:    key.SheetID,
		Outcomes: make([]Outcome, len(key.Answers)),
	}
	for q, k := range key.Answers {
		s := student.Answers[q]
		switch {
		case !k.IsMarked():
			c.Outcomes[q] = Voided
			c.Voided++
		case s.IsMarked() && s.Option == k.Option:
			c.Outcomes[q] = Correct
			c.Correct++
		default:
			c.Outcomes[q] = Incorrect
			c.Incorrect++
		}
	}
	c.Percentage = percent(c.Correct, c.Scored())
	c.Subjects = breakdown(c.Outcomes, subjects)
	return c, nil
}

func percent(correct, scored int) float64 {
	if scored == 0 {
		return 0
	}
	return float64(correct) / float64(scored) * 100
}

func breakdown(outcomes []Outcome, subjects []Subject) []SubjectScore {
	if len(subjects) == 0 {
		return nil
	}
	out := make([]SubjectScore, 0, len(subjects))
	for _, s := range subjects {
		score := SubjectScore{Name: s.Name}
		for q := s.First; q <= s.Last && q <= len(outcomes); q++ {
			if q < 1 {
				continue
			}
			switch outcomes[q-1] {
			case Correct:
				score.Correct++
			case Incorrect:
				score.Incorrect++
			case Voided:
				score.Voided++
			}
		}
		score.Percent = percent(score.Correct, score.Correct+score.Incorrect)
		out = append(out, score)
	}
	return out
}

// DefaultSubjects splits the grid in halves: Portuguese first, then
// mathematics, as printed on the standard booklets.
func DefaultSubjects(g sheet.Geometry) []Subject {
	n := g.Questions()
	if n == 0 {
		return nil
	}
	half := n / 2
	return []Subject{
		{Name: "Língua Portuguesa", First: 1, Last: half},
		{Name: "Matemática", First: half + 1, Last: n},
	}
}
