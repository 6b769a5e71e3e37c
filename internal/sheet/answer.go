package sheet

import (
	"fmt"
	"sort"
	"strings"
)

type Option int

const (
	OptionA Option = iota
	OptionB
	OptionC
	OptionD
)

func (o Option) String() string {
	if o < OptionA || o > OptionD {
		return fmt.Sprintf("Option(%d)", int(o))
	}
	return string(rune('A' + int(o)))
}

// ParseOption accepts a single letter A-D, case insensitive.
func ParseOption(s string) (Option, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || s[0] < 'A' || s[0] > 'D' {
		return 0, false
	}
	return Option(s[0] - 'A'), true
}

type Kind string

const (
	KindMarked    Kind = "marked"
	KindBlank     Kind = "blank"
	KindAmbiguous Kind = "ambiguous"
)

// Answer is the decoded state of one question.
type Answer struct {
	Kind      Kind     `json:"kind"`
	Option    Option   `json:"option,omitempty"`
	Competing []Option `json:"competing,omitempty"`
}

func Marked(o Option) Answer { return Answer{Kind: KindMarked, Option: o} }
func Blank() Answer          { return Answer{Kind: KindBlank} }

// Ambiguous records the options that were too close to call, sorted.
func Ambiguous(opts ...Option) Answer {
	c := append([]Option(nil), opts...)
	sort.Slice(c, func(i, j int) bool { return c[i] < c[j] })
	return Answer{Kind: KindAmbiguous, Competing: c}
}

func (a Answer) IsMarked() bool { return a.Kind == KindMarked }

// Equal compares decoded states. Two ambiguous answers are equal only when
// they compete between the same options.
func (a Answer) Equal(b Answer) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindMarked:
		return a.Option == b.Option
	case KindAmbiguous:
		if len(a.Competing) != len(b.Competing) {
			return false
		}
		for i := range a.Competing {
			if a.Competing[i] != b.Competing[i] {
				return false
			}
		}
	}
	return true
}

// String renders the answer the way result sheets show it: a letter, "?"
// for blank, or the competing letters joined by "/".
func (a Answer) String() string {
	switch a.Kind {
	case KindMarked:
		return a.Option.String()
	case KindAmbiguous:
		parts := make([]string, 0, len(a.Competing))
		for _, o := range a.Competing {
			parts = append(parts, o.String())
		}
		return strings.Join(parts, "/")
	default:
		return "?"
	}
}

type Source string

const (
	SourceLocal  Source = "local"
	SourceOracle Source = "oracle"
)

// Decode is one sheet read end to end: exactly one answer per question.
type Decode struct {
	SheetID  string   `json:"sheet_id"`
	Geometry Geometry `json:"geometry"`
	Source   Source   `json:"source"`
	Answers  []Answer `json:"answers"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks the one-answer-per-question invariant.
func (d Decode) Validate() error {
	if d.Geometry.IsZero() {
		return fmt.Errorf("decode %s: %w", d.SheetID, ErrGeometryUnspecified)
	}
	if len(d.Answers) != d.Geometry.Questions() {
		return fmt.Errorf("decode %s: %d answers for %d questions", d.SheetID, len(d.Answers), d.Geometry.Questions())
	}
	return nil
}

// Letters renders every answer, in question order.
func (d Decode) Letters() []string {
	out := make([]string, len(d.Answers))
	for i, a := range d.Answers {
		out[i] = a.String()
	}
	return out
}

// CountUndecided returns how many answers are blank or ambiguous.
func (d Decode) CountUndecided() int {
	n := 0
	for _, a := range d.Answers {
		if !a.IsMarked() {
			n++
		}
	}
	return n
}
