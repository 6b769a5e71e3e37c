package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"omrflow/internal/models"
	"omrflow/internal/util"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract reads sheet headers with local OCR. It cannot read marks.
type Tesseract struct {
	langs         []string
	clientFactory func() *gosseract.Client
}

func NewTesseract(langs ...string) *Tesseract {
	if len(langs) == 0 {
		langs = []string{"por"}
	}
	return &Tesseract{langs: langs, clientFactory: gosseract.NewClient}
}

func (t *Tesseract) Supports(kind ReadKind) bool { return kind == ReadHeader }

func (t *Tesseract) info() ProviderInfo {
	return ProviderInfo{Name: "tesseract", Model: strings.Join(t.langs, "+"), Key: "local"}
}

func (t *Tesseract) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	if req.Kind != ReadHeader {
		return ReadResult{}, t.info(), fmt.Errorf("tesseract %s: %w", req.Kind, util.ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return ReadResult{}, t.info(), err
	}
	c := t.clientFactory()
	defer c.Close()
	if err := c.SetLanguage(t.langs...); err != nil {
		return ReadResult{}, t.info(), fmt.Errorf("%w: set languages: %v", util.ErrPermanent, err)
	}
	if err := c.SetImageFromBytes(req.Image); err != nil {
		return ReadResult{}, t.info(), fmt.Errorf("%w: set image: %v", util.ErrPermanent, err)
	}
	text, err := c.Text()
	if err != nil {
		return ReadResult{}, t.info(), fmt.Errorf("%w: recognize text: %v", util.ErrPermanent, err)
	}
	return ReadResult{Header: ParseHeaderText(text), Raw: text}, t.info(), nil
}

var (
	schoolLabel  = regexp.MustCompile(`(?i)nome\w*\s*(?:d[aeo]\s*)?escol[aeo]`)
	schoolPrefix = regexp.MustCompile(`(?i)^.*?nome\w*\s*(?:d[aeo]\s*)?escol[aeo][:\s]*`)
	nameLabel    = regexp.MustCompile(`(?i)nome`)
	namePrefix   = regexp.MustCompile(`(?i)^.*?nome\w*\s*(?:completo\s*)?[:\s]*`)
	stopWords    = regexp.MustCompile(`(?i)\s*(?:resultado\s+final|turma|data|nascimento).*$`)
	trailing     = regexp.MustCompile(`[|:!]+\s*$`)
	notSchool    = regexp.MustCompile(`(?i)escola|municipal|estadual|particular|fundamental|médio`)
	notName      = regexp.MustCompile(`(?i)data|nascimento|turma|avaliação|cartão|escola|municipal|resultado|fundamental`)
	notSchoolAlt = regexp.MustCompile(`(?i)nome|completo|data|nascimento|turma`)
	birthDate    = regexp.MustCompile(`(\d{2})[/\-](\d{1,2})[/\-](\d{2,4})`)
	classValue   = regexp.MustCompile(`(?i)turma[:\s]*([A-Za-z0-9ºª\-_/]{1,8})`)
)

// ParseHeaderText pulls the identification fields out of raw OCR text.
// Fields that cannot be found are left empty.
func ParseHeaderText(text string) models.Header {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = util.CleanField(l); len(l) > 2 {
			lines = append(lines, l)
		}
	}
	return models.Header{
		School:    findSchool(lines),
		Student:   findStudent(lines),
		BirthDate: findBirthDate(lines),
		Class:     findClass(lines),
	}
}

func cleanValue(s string) string {
	s = stopWords.ReplaceAllString(s, "")
	s = trailing.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func findSchool(lines []string) string {
	for i, l := range lines {
		if !schoolLabel.MatchString(l) {
			continue
		}
		if v := cleanValue(schoolPrefix.ReplaceAllString(l, "")); len(v) > 2 {
			return v
		}
		if i+1 < len(lines) && !notSchoolAlt.MatchString(lines[i+1]) {
			return lines[i+1]
		}
	}
	return ""
}

func looksLikeName(s string) bool {
	return len(s) > 3 && !notName.MatchString(s) && strings.ToUpper(s) != s
}

func findStudent(lines []string) string {
	for i, l := range lines {
		if !nameLabel.MatchString(l) || notSchool.MatchString(l) {
			continue
		}
		v := cleanValue(namePrefix.ReplaceAllString(l, ""))
		if len(v) > 2 && !notSchool.MatchString(v) {
			return v
		}
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			cand := cleanValue(namePrefix.ReplaceAllString(lines[j], ""))
			if looksLikeName(cand) {
				return cand
			}
		}
	}
	return ""
}

func findBirthDate(lines []string) string {
	for _, l := range lines {
		if m := birthDate.FindStringSubmatch(l); m != nil {
			return m[1] + "/" + m[2] + "/" + m[3]
		}
	}
	return ""
}

func findClass(lines []string) string {
	for i, l := range lines {
		if !strings.Contains(strings.ToLower(l), "turma") {
			continue
		}
		if m := classValue.FindStringSubmatch(l); m != nil && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
		if i+1 < len(lines) {
			if c := lines[i+1]; len(c) > 1 && len(c) <= 8 {
				return c
			}
		}
		return ""
	}
	return ""
}
