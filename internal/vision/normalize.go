package vision

import (
	"image"
	"math"

	"omrflow/internal/sheet"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

type Orientation string

const (
	Portrait       Orientation = "portrait"
	Landscape      Orientation = "landscape"
	AnyOrientation Orientation = "any"
)

// NormalizerConfig tunes anchor detection and the canonical frame size.
type NormalizerConfig struct {
	Orientation    Orientation
	WorkWidth      int
	FrameWidth     int
	FrameHeight    int
	CornerFrac     float64
	MinAnchorFrac  float64
	MaxAnchorFrac  float64
	MaxAnchorRatio float64
	MinSolidity    float64

	// MaxResidualFrac bounds the four-anchor fit error relative to the
	// anchor diagonal.
	MaxResidualFrac float64
}

func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Orientation:     Portrait,
		WorkWidth:       1000,
		FrameWidth:      1000,
		FrameHeight:     1400,
		CornerFrac:      0.22,
		MinAnchorFrac:   0.012,
		MaxAnchorFrac:   0.09,
		MaxAnchorRatio:  1.6,
		MinSolidity:     0.88,
		MaxResidualFrac: 0.03,
	}
}

// Frame is a sheet rectified to the canonical frame: the anchor centers sit
// exactly on the frame corners.
type Frame struct {
	Image    *image.Gray
	Anchors  int
	Residual float64

	// toSource maps frame pixels back to the source image, so callers can
	// tell which frame regions were actually photographed.
	toSource  affine
	srcBounds image.Rectangle
}

// NewFrame wraps an image that is already in canonical form.
func NewFrame(img *image.Gray) *Frame {
	return &Frame{
		Image:     img,
		Anchors:   4,
		toSource:  affine{1, 0, 0, 0, 1, 0},
		srcBounds: img.Rect,
	}
}

// Covers reports whether the whole normalized rectangle r was inside the
// source photograph.
func (f *Frame) Covers(r sheet.Rect) bool {
	w, h := float64(f.Image.Rect.Dx()), float64(f.Image.Rect.Dy())
	bounds := f.srcBounds
	for _, p := range []point{{r.X0 * w, r.Y0 * h}, {r.X1 * w, r.Y0 * h}, {r.X0 * w, r.Y1 * h}, {r.X1 * w, r.Y1 * h}} {
		s := f.toSource.apply(p)
		if s.X < float64(bounds.Min.X) || s.Y < float64(bounds.Min.Y) || s.X > float64(bounds.Max.X) || s.Y > float64(bounds.Max.Y) {
			return false
		}
	}
	return true
}

type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	d := DefaultNormalizerConfig()
	if cfg.Orientation == "" {
		cfg.Orientation = d.Orientation
	}
	if cfg.WorkWidth <= 0 {
		cfg.WorkWidth = d.WorkWidth
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		cfg.FrameWidth, cfg.FrameHeight = d.FrameWidth, d.FrameHeight
	}
	if cfg.CornerFrac <= 0 {
		cfg.CornerFrac = d.CornerFrac
	}
	if cfg.MinAnchorFrac <= 0 {
		cfg.MinAnchorFrac = d.MinAnchorFrac
	}
	if cfg.MaxAnchorFrac <= 0 {
		cfg.MaxAnchorFrac = d.MaxAnchorFrac
	}
	if cfg.MaxAnchorRatio <= 0 {
		cfg.MaxAnchorRatio = d.MaxAnchorRatio
	}
	if cfg.MinSolidity <= 0 {
		cfg.MinSolidity = d.MinSolidity
	}
	if cfg.MaxResidualFrac <= 0 {
		cfg.MaxResidualFrac = d.MaxResidualFrac
	}
	return &Normalizer{cfg: cfg}
}

// Normalize locates the four corner reference marks and rectifies the
// sheet. It needs at least three marks; the fourth is inferred. Failures
// are *sheet.AlignmentError and are not retried here.
func (n *Normalizer) Normalize(src image.Image) (*Frame, error) {
	gray := ToGray(src)
	if n.cfg.Orientation == Portrait && gray.Rect.Dx() > gray.Rect.Dy() {
		gray = rotate90(gray)
	}
	if n.cfg.Orientation == Landscape && gray.Rect.Dy() > gray.Rect.Dx() {
		gray = rotate90(gray)
	}
	work, scale := scaleToWidth(gray, n.cfg.WorkWidth)

	pts, ok := findAnchors(work, anchorSpec{
		cornerFrac:  n.cfg.CornerFrac,
		minSideFrac: n.cfg.MinAnchorFrac,
		maxSideFrac: n.cfg.MaxAnchorFrac,
		maxAspect:   n.cfg.MaxAnchorRatio,
		minSolidity: n.cfg.MinSolidity,
	})
	found := 0
	for _, f := range ok {
		if f {
			found++
		}
	}
	if found < 3 {
		return nil, &sheet.AlignmentError{AnchorsFound: found, Reason: "fewer than three reference marks"}
	}

	var unit, img []point
	for i := range pts {
		if ok[i] {
			unit = append(unit, unitCorners[i])
			img = append(img, point{pts[i].X * scale, pts[i].Y * scale})
		}
	}
	fit, err := fitAffine(unit, img)
	if err != nil {
		return nil, &sheet.AlignmentError{AnchorsFound: found, Reason: "reference marks are collinear"}
	}
	residual := fit.residual(unit, img)
	if found == 4 {
		diag := img[0].dist(img[3])
		if residual > n.cfg.MaxResidualFrac*diag {
			return nil, &sheet.AlignmentError{AnchorsFound: found, Residual: residual, Reason: "reference marks do not form a parallelogram"}
		}
	}
	if found == 3 {
		// Only used to sanity check the layout: the inferred corner must
		// land inside the photograph.
		full, _ := completeParallelogram(pts, ok)
		for i := range full {
			p := point{full[i].X * scale, full[i].Y * scale}
			if p.X < 0 || p.Y < 0 || p.X > float64(gray.Rect.Dx()) || p.Y > float64(gray.Rect.Dy()) {
				return nil, &sheet.AlignmentError{AnchorsFound: found, Reason: "inferred " + corner(i).String() + " mark falls outside the image"}
			}
		}
	}
	short := float64(min(gray.Rect.Dx(), gray.Rect.Dy()))
	if math.Min(math.Hypot(fit[0], fit[3]), math.Hypot(fit[1], fit[4])) < 0.2*short {
		return nil, &sheet.AlignmentError{AnchorsFound: found, Reason: "reference marks too close together"}
	}
	w, h := n.cfg.FrameWidth, n.cfg.FrameHeight

	// Frame pixel (X, Y) is canonical (X/w, Y/h).
	toSource := affine{
		fit[0] / float64(w), fit[1] / float64(h), fit[2],
		fit[3] / float64(w), fit[4] / float64(h), fit[5],
	}
	s2d, err := toSource.invert()
	if err != nil {
		return nil, &sheet.AlignmentError{AnchorsFound: found, Reason: "degenerate transform"}
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = 0xff
	}
	draw.BiLinear.Transform(dst, f64.Aff3(s2d), gray, gray.Rect, draw.Src, nil)

	return &Frame{
		Image:     dst,
		Anchors:   found,
		Residual:  residual,
		toSource:  toSource,
		srcBounds: gray.Rect,
	}, nil
}
