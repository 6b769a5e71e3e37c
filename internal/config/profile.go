package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"omrflow/internal/decode"
	"omrflow/internal/grading"
	"omrflow/internal/reconcile"
	"omrflow/internal/sheet"

	"gopkg.in/yaml.v3"
)

// Profile holds the exam-level tuning: decision thresholds, subject ranges
// and the grade each grid belongs to. Per-geometry entries override the
// global values field by field.
type Profile struct {
	Decode     decode.Config           `yaml:"decode"`
	Reconcile  reconcile.Thresholds    `yaml:"reconcile"`
	Geometries map[int]GeometryProfile `yaml:"geometries"`
}

type GeometryProfile struct {
	Grade     string                `yaml:"grade"`
	Decode    *decode.Config        `yaml:"decode"`
	Reconcile *reconcile.Thresholds `yaml:"reconcile"`
	Subjects  []grading.Subject     `yaml:"subjects"`
}

// Resolved is the effective tuning for one geometry.
type Resolved struct {
	Geometry  sheet.Geometry
	Grade     string
	Decode    decode.Config
	Reconcile reconcile.Thresholds
	Subjects  []grading.Subject
}

func DefaultProfile() Profile {
	return Profile{
		Decode:    decode.DefaultConfig(),
		Reconcile: reconcile.DefaultThresholds(),
		Geometries: map[int]GeometryProfile{
			44: {Grade: "5ano"},
			52: {Grade: "9ano"},
		},
	}
}

// ParseProfile decodes a YAML profile on top of the defaults.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile: decode: %w", err)
	}
	p.Decode = p.Decode.WithDefaults()
	p.Reconcile = p.Reconcile.WithDefaults()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads the profile at path. An empty path yields the defaults.
func LoadProfile(path string) (Profile, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: read %s: %w", path, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) Validate() error {
	grades := map[string]int{}
	for n, gp := range p.Geometries {
		g, err := sheet.Lookup(n)
		if err != nil {
			return fmt.Errorf("profile: geometries: %w", err)
		}
		if gp.Grade != "" {
			key := strings.ToLower(gp.Grade)
			if other, dup := grades[key]; dup {
				return fmt.Errorf("profile: grade %q mapped to both %d and %d", gp.Grade, other, n)
			}
			grades[key] = n
		}
		for _, s := range gp.Subjects {
			if s.First < 1 || s.Last > g.Questions() || s.First > s.Last {
				return fmt.Errorf("profile: subject %q range %d-%d outside 1-%d", s.Name, s.First, s.Last, g.Questions())
			}
		}
		if gp.Reconcile != nil {
			th := gp.Reconcile.WithDefaults()
			if th.Low > th.High {
				return fmt.Errorf("profile: geometry %d: reconcile low %.2f above high %.2f", n, th.Low, th.High)
			}
		}
	}
	if p.Reconcile.Low > p.Reconcile.High {
		return fmt.Errorf("profile: reconcile low %.2f above high %.2f", p.Reconcile.Low, p.Reconcile.High)
	}
	return nil
}

// For resolves the tuning of g.
func (p Profile) For(g sheet.Geometry) Resolved {
	r := Resolved{
		Geometry:  g,
		Decode:    p.Decode.WithDefaults(),
		Reconcile: p.Reconcile.WithDefaults(),
		Subjects:  grading.DefaultSubjects(g),
	}
	gp, ok := p.Geometries[g.Questions()]
	if !ok {
		return r
	}
	r.Grade = gp.Grade
	if gp.Decode != nil {
		r.Decode = gp.Decode.WithDefaults()
	}
	if gp.Reconcile != nil {
		r.Reconcile = gp.Reconcile.WithDefaults()
	}
	if len(gp.Subjects) > 0 {
		r.Subjects = gp.Subjects
	}
	return r
}

// GeometryForGrade maps a grade label ("9ano") back to its grid.
func (p Profile) GeometryForGrade(grade string) (sheet.Geometry, bool) {
	key := strings.ToLower(strings.TrimSpace(grade))
	for n, gp := range p.Geometries {
		if strings.ToLower(gp.Grade) == key {
			g, err := sheet.Lookup(n)
			return g, err == nil
		}
	}
	return sheet.Geometry{}, false
}

// Grades lists the configured grade labels in grid order.
func (p Profile) Grades() []string {
	ns := make([]int, 0, len(p.Geometries))
	for n := range p.Geometries {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	var out []string
	for _, n := range ns {
		if g := p.Geometries[n].Grade; g != "" {
			out = append(out, g)
		}
	}
	return out
}
