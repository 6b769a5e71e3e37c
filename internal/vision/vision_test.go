package vision

import (
	"errors"
	"image"
	"math"
	"testing"

	"omrflow/internal/decode"
	"omrflow/internal/sheet"

	"github.com/stretchr/testify/require"
)

// fixture paints a synthetic answer sheet: four square reference marks, a
// printed outline around every bubble and solid fills for the given marks.
type fixture struct {
	g        sheet.Geometry
	width    int
	height   int
	anchors  [4]point
	side     float64
	skip     [4]bool
	marks    map[int][]sheet.Option
	angle    float64
	gradient bool
}

type box struct {
	x0, y0, x1, y1 float64
	lum            float64
	outline        bool
}

func newFixture(t *testing.T, questions int) fixture {
	t.Helper()
	g, err := sheet.Lookup(questions)
	require.NoError(t, err)
	marks := map[int][]sheet.Option{}
	for q := 0; q < questions; q++ {
		switch {
		case q%7 == 3:
		case q == 5:
			marks[q] = []sheet.Option{sheet.OptionA, sheet.OptionC}
		default:
			marks[q] = []sheet.Option{sheet.Option(q % 4)}
		}
	}
	return fixture{
		g:      g,
		width:  800,
		height: 1120,
		anchors: [4]point{
			topLeft:     {48, 48},
			topRight:    {752, 48},
			bottomLeft:  {48, 1072},
			bottomRight: {752, 1072},
		},
		side:  32,
		marks: marks,
	}
}

func expand(r sheet.Rect, k float64) sheet.Rect {
	cx, cy := (r.X0+r.X1)/2, (r.Y0+r.Y1)/2
	hw, hh := r.Width()*k/2, r.Height()*k/2
	return sheet.Rect{X0: cx - hw, Y0: cy - hh, X1: cx + hw, Y1: cy + hh}
}

func (f fixture) expected() []sheet.Answer {
	out := make([]sheet.Answer, f.g.Questions())
	for q := range out {
		switch opts := f.marks[q]; len(opts) {
		case 0:
			out[q] = sheet.Blank()
		case 1:
			out[q] = sheet.Marked(opts[0])
		default:
			out[q] = sheet.Ambiguous(opts...)
		}
	}
	return out
}

func (f fixture) render() *image.Gray {
	tl, br := f.anchors[topLeft], f.anchors[bottomRight]
	toPage := func(r sheet.Rect) box {
		return box{
			x0: tl.X + r.X0*(br.X-tl.X),
			y0: tl.Y + r.Y0*(br.Y-tl.Y),
			x1: tl.X + r.X1*(br.X-tl.X),
			y1: tl.Y + r.Y1*(br.Y-tl.Y),
		}
	}
	var anchors, grid []box
	for i, a := range f.anchors {
		if f.skip[i] {
			continue
		}
		anchors = append(anchors, box{a.X - f.side/2, a.Y - f.side/2, a.X + f.side/2, a.Y + f.side/2, 0, false})
	}
	gridTop, gridBottom := math.MaxFloat64, 0.0
	for q := 0; q < f.g.Questions(); q++ {
		for o := sheet.OptionA; o <= sheet.OptionD; o++ {
			b := toPage(expand(f.g.ROI(q, o), 4.0/3))
			b.lum, b.outline = 120, true
			grid = append(grid, b)
			gridTop = math.Min(gridTop, b.y0)
			gridBottom = math.Max(gridBottom, b.y1)
		}
		for _, o := range f.marks[q] {
			b := toPage(expand(f.g.ROI(q, o), 4.0/3))
			b.lum = 20
			grid = append(grid, b)
		}
	}

	img := image.NewGray(image.Rect(0, 0, f.width, f.height))
	cx, cy := float64(f.width)/2, float64(f.height)/2
	rad := f.angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			px := cos*dx + sin*dy + cx
			py := -sin*dx + cos*dy + cy
			lum := 245.0
			for _, b := range anchors {
				if px >= b.x0 && px < b.x1 && py >= b.y0 && py < b.y1 {
					lum = b.lum
				}
			}
			if py >= gridTop-2 && py <= gridBottom+2 {
				for _, b := range grid {
					if px < b.x0 || px >= b.x1 || py < b.y0 || py >= b.y1 {
						continue
					}
					if b.outline && px >= b.x0+1 && px < b.x1-1 && py >= b.y0+1 && py < b.y1-1 {
						continue
					}
					lum = math.Min(lum, b.lum)
				}
			}
			if f.gradient {
				lum *= 0.55 + 0.45*float64(x)/float64(f.width)
			}
			img.Pix[y*img.Stride+x] = uint8(lum)
		}
	}
	return img
}

func decodeImage(t *testing.T, img image.Image, g sheet.Geometry) (*Frame, sheet.Decode) {
	t.Helper()
	frame, err := NewNormalizer(DefaultNormalizerConfig()).Normalize(img)
	require.NoError(t, err)
	samples := Sample(frame, g, DefaultSamplerConfig())
	require.Len(t, samples, g.Questions())
	d, err := decode.New(decode.DefaultConfig()).DecodeSheet("fixture", g, samples.Scores())
	require.NoError(t, err)
	return frame, d
}

func requireAnswers(t *testing.T, want, got []sheet.Answer) {
	t.Helper()
	require.Len(t, got, len(want))
	for q := range want {
		require.True(t, want[q].Equal(got[q]), "question %d: want %s got %s", q+1, want[q], got[q])
	}
}

func TestNormalizeAndSampleStraightSheet(t *testing.T) {
	f := newFixture(t, 44)
	frame, d := decodeImage(t, f.render(), f.g)
	require.Equal(t, 4, frame.Anchors)
	require.Equal(t, 1000, frame.Image.Rect.Dx())
	requireAnswers(t, f.expected(), d.Answers)
}

func TestNormalizeRotatedSheetUnderUnevenLight(t *testing.T) {
	f := newFixture(t, 52)
	f.angle = 2
	f.gradient = true
	_, d := decodeImage(t, f.render(), f.g)
	requireAnswers(t, f.expected(), d.Answers)
}

func TestNormalizeInfersMissingAnchor(t *testing.T) {
	f := newFixture(t, 44)
	f.skip[topRight] = true
	frame, d := decodeImage(t, f.render(), f.g)
	require.Equal(t, 3, frame.Anchors)
	requireAnswers(t, f.expected(), d.Answers)
}

func TestNormalizeRotatesLandscapeInput(t *testing.T) {
	f := newFixture(t, 44)
	img := f.render()
	// Three clockwise quarter turns leave the sheet lying on its side.
	landscape := rotate90(rotate90(rotate90(img)))
	require.Greater(t, landscape.Rect.Dx(), landscape.Rect.Dy())
	_, d := decodeImage(t, landscape, f.g)
	requireAnswers(t, f.expected(), d.Answers)
}

func TestNormalizeBlankPageFails(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 800, 1120))
	for i := range img.Pix {
		img.Pix[i] = 240
	}
	_, err := NewNormalizer(NormalizerConfig{}).Normalize(img)
	require.Error(t, err)
	require.True(t, errors.Is(err, sheet.ErrAlignment))
	var ae *sheet.AlignmentError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, 0, ae.AnchorsFound)
}

func TestNormalizeTwoAnchorsFails(t *testing.T) {
	f := newFixture(t, 44)
	f.skip[topRight] = true
	f.skip[topLeft] = true
	_, err := NewNormalizer(DefaultNormalizerConfig()).Normalize(f.render())
	var ae *sheet.AlignmentError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, 2, ae.AnchorsFound)
}

func TestSampleBlankFrameScoresZero(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1000, 1400))
	for i := range img.Pix {
		img.Pix[i] = 250
	}
	g, _ := sheet.Lookup(52)
	s := Sample(NewFrame(img), g, SamplerConfig{})
	require.Equal(t, 0, s.Unsampled())
	for _, row := range s.Scores() {
		for _, v := range row {
			require.Equal(t, 0.0, v)
		}
	}
}

func TestSampleFlagsCellsOutsidePhotograph(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1000, 1400))
	frame := NewFrame(img)
	// Pretend the photograph only reached down to half the frame.
	frame.srcBounds = image.Rect(0, 0, 1000, 700)
	g, _ := sheet.Lookup(44)
	s := Sample(frame, g, SamplerConfig{})
	require.Equal(t, 44*4, s.Unsampled())
	require.Equal(t, 0.0, s[0][0].Score)
}

func TestFitAffineRecoversTransform(t *testing.T) {
	want := affine{700, 12, 40, -9, 1010, 55}
	var src, dst []point
	for _, p := range unitCorners {
		src = append(src, p)
		dst = append(dst, want.apply(p))
	}
	got, err := fitAffine(src, dst)
	require.NoError(t, err)
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-6)
	}
	inv, err := got.invert()
	require.NoError(t, err)
	back := inv.apply(got.apply(point{0.3, 0.7}))
	require.InDelta(t, 0.3, back.X, 1e-9)
	require.InDelta(t, 0.7, back.Y, 1e-9)
}

func TestCropPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	b, err := CropPNG(img, sheet.Rect{X0: 0.1, Y0: 0.1, X1: 0.5, Y1: 0.4})
	require.NoError(t, err)
	decoded, format, err := DecodeBytes(b)
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 40, decoded.Bounds().Dx())
	require.Equal(t, 30, decoded.Bounds().Dy())
}
