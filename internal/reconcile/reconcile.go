package reconcile

import (
	"fmt"

	"omrflow/internal/sheet"
)

type Strategy string

const (
	StrategyLocal     Strategy = "local"
	StrategyHybrid    Strategy = "hybrid"
	StrategyOracle    Strategy = "oracle"
	StrategyLocalOnly Strategy = "local-only"
)

type Thresholds struct {
	High float64 `yaml:"high" json:"high"`
	Low  float64 `yaml:"low" json:"low"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.80, Low: 0.50}
}

func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.High <= 0 {
		t.High = d.High
	}
	if t.Low <= 0 {
		t.Low = d.Low
	}
	return t
}

// Result is the final decode for a sheet plus how it was reached.
// Evaluated is false when no oracle reading was available, so a local-only
// pass is never mistaken for a high-agreement one.
type Result struct {
	Decode    sheet.Decode `json:"decode"`
	Agreement float64      `json:"agreement"`
	Evaluated bool         `json:"evaluated"`
	Strategy  Strategy     `json:"strategy"`
	Replaced  int          `json:"replaced"`
}

// Agreement is the fraction of questions where both readings coincide.
func Agreement(local, oracle sheet.Decode) float64 {
	if len(local.Answers) == 0 {
		return 0
	}
	same := 0
	for q := range local.Answers {
		if local.Answers[q].Equal(oracle.Answers[q]) {
			same++
		}
	}
	return float64(same) / float64(len(local.Answers))
}

// Reconcile picks between the local and oracle readings of one sheet. A nil
// oracle means the external call was unavailable.
func Reconcile(local sheet.Decode, oracle *sheet.Decode, th Thresholds) (Result, error) {
	th = th.WithDefaults()
	if oracle == nil {
		return Result{Decode: local, Strategy: StrategyLocalOnly}, nil
	}
	if oracle.Geometry != local.Geometry || len(oracle.Answers) != len(local.Answers) {
		return Result{}, fmt.Errorf("reconcile %s: %w", local.SheetID, sheet.ErrGeometryMismatch)
	}

	ratio := Agreement(local, *oracle)
	res := Result{Agreement: ratio, Evaluated: true}
	switch {
	case ratio >= th.High:
		res.Strategy = StrategyLocal
		res.Decode = local
	case ratio >= th.Low:
		res.Strategy = StrategyHybrid
		res.Decode, res.Replaced = merge(local, *oracle)
	default:
		res.Strategy = StrategyOracle
		res.Decode = *oracle
		res.Decode.SheetID = local.SheetID
	}
	return res, nil
}

// merge keeps every confident local answer and fills the undecided ones
// from the oracle where the oracle is confident.
func merge(local, oracle sheet.Decode) (sheet.Decode, int) {
	out := local
	out.Answers = make([]sheet.Answer, len(local.Answers))
	copy(out.Answers, local.Answers)
	replaced := 0
	for q, a := range out.Answers {
		if a.IsMarked() {
			continue
		}
		if o := oracle.Answers[q]; o.IsMarked() {
			out.Answers[q] = o
			replaced++
		}
	}
	return out, replaced
}
