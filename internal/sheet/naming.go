package sheet

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const answerKeyPrefix = "gabarito"

var (
	answerKeyPattern = regexp.MustCompile(`(?i)^gabarito(?:_?(\d+))?\.(png|jpe?g)$`)
	questionHint     = regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{2})(?:q|questoes|questões)?(?:[^0-9]|$)`)
)

var studentExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// IsAnswerKeyName reports whether a file belongs to the answer-key family.
// Anything starting with "gabarito" counts, even names whose geometry
// cannot be inferred, so keys are never graded as students.
func IsAnswerKeyName(name string) bool {
	return strings.HasPrefix(strings.ToLower(filepath.Base(name)), answerKeyPrefix)
}

// IsSupportedSheet reports whether name has a student sheet extension.
func IsSupportedSheet(name string) bool {
	return studentExtensions[strings.ToLower(filepath.Ext(name))]
}

// GeometryFromKeyName selects the layout from an answer-key file name such
// as gabarito_52.png.
func GeometryFromKeyName(name string) (Geometry, error) {
	base := filepath.Base(name)
	m := answerKeyPattern.FindStringSubmatch(base)
	if m == nil {
		return Geometry{}, fmt.Errorf("%q is not an answer key name: %w", base, ErrGeometryUnspecified)
	}
	if m[1] == "" {
		return Geometry{}, fmt.Errorf("answer key %q: %w", base, ErrGeometryUnspecified)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Geometry{}, fmt.Errorf("answer key %q: %w", base, ErrGeometryUnspecified)
	}
	g, err := Lookup(n)
	if err != nil {
		return Geometry{}, fmt.Errorf("answer key %q: %w", base, err)
	}
	return g, nil
}

// GeometryHint looks for a supported question count in a student file name
// (for example "turma_b_52.jpg"). It only returns layouts that exist.
func GeometryHint(name string) (Geometry, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	for _, m := range questionHint.FindAllStringSubmatch(stem, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if g, err := Lookup(n); err == nil {
			return g, true
		}
	}
	return Geometry{}, false
}
