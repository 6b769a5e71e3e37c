package decode

import (
	"fmt"
	"sort"

	"omrflow/internal/sheet"
)

// Config holds the per-row decision thresholds.
type Config struct {
	Floor           float64 `yaml:"floor" json:"floor"`
	Margin          float64 `yaml:"margin" json:"margin"`
	DegenerateRatio float64 `yaml:"degenerate_ratio" json:"degenerate_ratio"`
}

func DefaultConfig() Config {
	return Config{Floor: 0.30, Margin: 0.15, DegenerateRatio: 0.5}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Floor <= 0 {
		c.Floor = d.Floor
	}
	if c.Margin <= 0 {
		c.Margin = d.Margin
	}
	if c.DegenerateRatio <= 0 {
		c.DegenerateRatio = d.DegenerateRatio
	}
	return c
}

type scored struct {
	opt   sheet.Option
	score float64
}

// DecodeRow turns the four fill scores of one question into an answer.
// The strongest option must reach the floor and beat the runner-up by the
// margin; otherwise the row is blank or ambiguous.
func DecodeRow(scores [sheet.OptionsPerQuestion]float64, cfg Config) sheet.Answer {
	ranked := make([]scored, 0, len(scores))
	for i, s := range scores {
		ranked = append(ranked, scored{opt: sheet.Option(i), score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	top := ranked[0]
	if top.score < cfg.Floor {
		return sheet.Blank()
	}
	if top.score-ranked[1].score < cfg.Margin {
		competing := []sheet.Option{top.opt}
		for _, r := range ranked[1:] {
			if top.score-r.score < cfg.Margin {
				competing = append(competing, r.opt)
			}
		}
		return sheet.Ambiguous(competing...)
	}
	return sheet.Marked(top.opt)
}

// Decoder applies DecodeRow to a full score matrix.
type Decoder struct {
	cfg Config
}

func New(cfg Config) *Decoder {
	return &Decoder{cfg: cfg.WithDefaults()}
}

func (d *Decoder) Config() Config { return d.cfg }

// DecodeSheet decodes every question. A sheet where too many rows come out
// blank or ambiguous still decodes, with a degenerate warning attached.
func (d *Decoder) DecodeSheet(sheetID string, g sheet.Geometry, scores [][sheet.OptionsPerQuestion]float64) (sheet.Decode, error) {
	if len(scores) != g.Questions() {
		return sheet.Decode{}, fmt.Errorf("decode sheet %s: %d rows for %d questions", sheetID, len(scores), g.Questions())
	}
	out := sheet.Decode{
		SheetID:  sheetID,
		Geometry: g,
		Source:   sheet.SourceLocal,
		Answers:  make([]sheet.Answer, len(scores)),
	}
	for q, row := range scores {
		out.Answers[q] = DecodeRow(row, d.cfg)
	}
	if err := Degenerate(out, d.cfg.DegenerateRatio); err != nil {
		out.Warnings = append(out.Warnings, err.Error())
	}
	return out, nil
}

// Degenerate returns an ErrDecodeDegenerate-wrapping error when the share of
// undecided answers reaches ratio.
func Degenerate(d sheet.Decode, ratio float64) error {
	if len(d.Answers) == 0 {
		return nil
	}
	undecided := d.CountUndecided()
	frac := float64(undecided) / float64(len(d.Answers))
	if frac >= ratio {
		return fmt.Errorf("%w: %d of %d answers blank or ambiguous", sheet.ErrDecodeDegenerate, undecided, len(d.Answers))
	}
	return nil
}
