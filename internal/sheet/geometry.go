package sheet

import (
	"encoding/json"
	"fmt"
)

// OptionsPerQuestion is fixed for every supported layout.
const OptionsPerQuestion = 4

// Rect is a rectangle in normalized frame coordinates, both axes in [0,1].
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Inset shrinks r around its center, keeping frac of each side.
func (r Rect) Inset(frac float64) Rect {
	dx := r.Width() * (1 - frac) / 2
	dy := r.Height() * (1 - frac) / 2
	return Rect{X0: r.X0 + dx, Y0: r.Y0 + dy, X1: r.X1 - dx, Y1: r.Y1 - dy}
}

// Geometry describes one printed answer grid. Values are immutable: every
// field is unexported and the layout is derived on demand, so a Geometry
// handed to a running pass can never change under it.
type Geometry struct {
	name      string
	questions int
	columns   int
	grid      Rect
	labelFrac float64
	cellFrac  float64
}

// Grid area inside the anchor frame (anchor centers span [0,1] on both axes).
var answerArea = Rect{X0: 0.04, Y0: 0.56, X1: 0.96, Y1: 0.96}

var supported = []Geometry{
	newGrid("grid-44", 44, 4),
	newGrid("grid-52", 52, 4),
}

func newGrid(name string, questions, columns int) Geometry {
	return Geometry{
		name:      name,
		questions: questions,
		columns:   columns,
		grid:      answerArea,
		labelFrac: 0.25,
		cellFrac:  0.6,
	}
}

// Lookup returns the geometry for a question count.
func Lookup(questions int) (Geometry, error) {
	for _, g := range supported {
		if g.questions == questions {
			return g, nil
		}
	}
	return Geometry{}, fmt.Errorf("%w: %d questions", ErrUnsupportedGeometry, questions)
}

// Supported lists every known layout.
func Supported() []Geometry {
	out := make([]Geometry, len(supported))
	copy(out, supported)
	return out
}

func (g Geometry) Name() string    { return g.name }
func (g Geometry) Questions() int  { return g.questions }
func (g Geometry) Options() int    { return OptionsPerQuestion }
func (g Geometry) IsZero() bool    { return g.questions == 0 }
func (g Geometry) Columns() int    { return g.columns }
func (g Geometry) RowsPerColumn() int {
	if g.columns == 0 {
		return 0
	}
	return (g.questions + g.columns - 1) / g.columns
}

// Questions are laid out column-major: 1..13 down the first column, 14..26
// down the second, and so on.
func (g Geometry) cellOrigin(q int) (col, row int) {
	rows := g.RowsPerColumn()
	return q / rows, q % rows
}

// RowBand is the full option strip of question q (zero based), used for the
// local background estimate.
func (g Geometry) RowBand(q int) Rect {
	col, row := g.cellOrigin(q)
	colW := g.grid.Width() / float64(g.columns)
	rowH := g.grid.Height() / float64(g.RowsPerColumn())
	x0 := g.grid.X0 + float64(col)*colW
	y0 := g.grid.Y0 + float64(row)*rowH
	return Rect{
		X0: x0 + colW*g.labelFrac,
		Y0: y0,
		X1: x0 + colW,
		Y1: y0 + rowH,
	}
}

// ROI returns the bubble rectangle of option o for question q (zero based).
func (g Geometry) ROI(q int, o Option) Rect {
	band := g.RowBand(q)
	cellW := band.Width() / float64(OptionsPerQuestion)
	cell := Rect{
		X0: band.X0 + float64(o)*cellW,
		Y0: band.Y0,
		X1: band.X0 + float64(o+1)*cellW,
		Y1: band.Y1,
	}
	return cell.Inset(g.cellFrac)
}

// HeaderArea is the printed identification block above the grid.
func (g Geometry) HeaderArea() Rect {
	return Rect{X0: 0.05, Y0: 0.02, X1: 0.61, Y1: 0.40}
}

func (g Geometry) String() string {
	if g.IsZero() {
		return "unspecified"
	}
	return g.name
}

// Geometry travels as its question count; the layout is rebuilt on decode.
func (g Geometry) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.questions)
}

func (g *Geometry) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode geometry: %w", err)
	}
	if n == 0 {
		*g = Geometry{}
		return nil
	}
	found, err := Lookup(n)
	if err != nil {
		return err
	}
	*g = found
	return nil
}
