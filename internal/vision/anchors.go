package vision

import (
	"image"
	"math"
)

type point struct{ X, Y float64 }

func (p point) add(q point) point { return point{p.X + q.X, p.Y + q.Y} }
func (p point) sub(q point) point { return point{p.X - q.X, p.Y - q.Y} }
func (p point) dist(q point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

type corner int

const (
	topLeft corner = iota
	topRight
	bottomLeft
	bottomRight
)

var cornerNames = [4]string{"top-left", "top-right", "bottom-left", "bottom-right"}

func (c corner) String() string { return cornerNames[c] }

type component struct {
	area     int
	minX     int
	minY     int
	maxX     int
	maxY     int
	sumX     float64
	sumY     float64
	touching bool
}

func (c component) width() int  { return c.maxX - c.minX + 1 }
func (c component) height() int { return c.maxY - c.minY + 1 }
func (c component) centroid() point {
	return point{c.sumX / float64(c.area), c.sumY / float64(c.area)}
}

// otsu returns the luminance threshold maximizing between-class variance
// over the pixels of r.
func otsu(img *image.Gray, r image.Rectangle) uint8 {
	var hist [256]int
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-img.Rect.Min.Y)*img.Stride - img.Rect.Min.X
		for x := r.Min.X; x < r.Max.X; x++ {
			hist[img.Pix[off+x]]++
		}
	}
	total := r.Dx() * r.Dy()
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}
	var sumB, best float64
	var wB int
	var threshold uint8
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// windowThreshold thresholds one corner window on its own so a lighting
// gradient across the page cannot swallow a mark. The cap keeps a window
// with no mark at all from being split inside the paper tone.
func windowThreshold(img *image.Gray, r image.Rectangle) uint8 {
	t := otsu(img, r)
	limit := 0.6 * percentile(img, r.Intersect(img.Rect), 0.9)
	if float64(t) > limit {
		return uint8(limit)
	}
	return t
}

// components labels 4-connected pixels darker than or equal to thr inside
// win. Components touching the window edge are flagged.
func components(img *image.Gray, win image.Rectangle, thr uint8) []component {
	win = win.Intersect(img.Rect)
	w, h := win.Dx(), win.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	seen := make([]bool, w*h)
	dark := func(x, y int) bool {
		return img.Pix[(win.Min.Y+y)*img.Stride+win.Min.X+x] <= thr
	}
	var out []component
	stack := make([]int, 0, 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if seen[i] || !dark(x, y) {
				continue
			}
			c := component{minX: x, minY: y, maxX: x, maxY: y}
			seen[i] = true
			stack = append(stack[:0], i)
			for len(stack) > 0 {
				j := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := j%w, j/w
				c.area++
				c.sumX += float64(px)
				c.sumY += float64(py)
				c.minX = min(c.minX, px)
				c.maxX = max(c.maxX, px)
				c.minY = min(c.minY, py)
				c.maxY = max(c.maxY, py)
				if px == 0 || py == 0 || px == w-1 || py == h-1 {
					c.touching = true
				}
				for _, n := range [4][2]int{{px - 1, py}, {px + 1, py}, {px, py - 1}, {px, py + 1}} {
					nx, ny := n[0], n[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					k := ny*w + nx
					if seen[k] || !dark(nx, ny) {
						continue
					}
					seen[k] = true
					stack = append(stack, k)
				}
			}
			c.minX += win.Min.X
			c.maxX += win.Min.X
			c.minY += win.Min.Y
			c.maxY += win.Min.Y
			c.sumX += float64(win.Min.X * c.area)
			c.sumY += float64(win.Min.Y * c.area)
			out = append(out, c)
		}
	}
	return out
}

type anchorSpec struct {
	cornerFrac  float64
	minSideFrac float64
	maxSideFrac float64
	maxAspect   float64
	minSolidity float64
}

// isAnchor accepts solid, roughly square blobs of plausible size. Side
// limits are relative to the shorter image side.
func (s anchorSpec) isAnchor(c component, short int) bool {
	if c.touching {
		return false
	}
	cw, ch := float64(c.width()), float64(c.height())
	minSide := s.minSideFrac * float64(short)
	maxSide := s.maxSideFrac * float64(short)
	if cw < minSide || ch < minSide || cw > maxSide || ch > maxSide {
		return false
	}
	if math.Max(cw, ch)/math.Min(cw, ch) > s.maxAspect {
		return false
	}
	return float64(c.area)/(cw*ch) >= s.minSolidity
}

// findAnchors looks for one reference mark per corner window. Missing
// corners are reported as ok=false.
func findAnchors(img *image.Gray, spec anchorSpec) (pts [4]point, ok [4]bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	short := min(w, h)
	cw := int(float64(w) * spec.cornerFrac)
	ch := int(float64(h) * spec.cornerFrac)
	windows := [4]image.Rectangle{
		topLeft:     image.Rect(0, 0, cw, ch),
		topRight:    image.Rect(w-cw, 0, w, ch),
		bottomLeft:  image.Rect(0, h-ch, cw, h),
		bottomRight: image.Rect(w-cw, h-ch, w, h),
	}
	corners := [4]point{
		topLeft:     {0, 0},
		topRight:    {float64(w), 0},
		bottomLeft:  {0, float64(h)},
		bottomRight: {float64(w), float64(h)},
	}
	for i, win := range windows {
		best := math.MaxFloat64
		for _, c := range components(img, win, windowThreshold(img, win)) {
			if !spec.isAnchor(c, short) {
				continue
			}
			p := c.centroid()
			if d := p.dist(corners[i]); d < best {
				best = d
				pts[i] = point{p.X + 0.5, p.Y + 0.5}
				ok[i] = true
			}
		}
	}
	return pts, ok
}

// completeParallelogram infers a single missing corner from the other three.
func completeParallelogram(pts [4]point, ok [4]bool) ([4]point, bool) {
	missing := -1
	for i, found := range ok {
		if !found {
			if missing >= 0 {
				return pts, false
			}
			missing = i
		}
	}
	switch corner(missing) {
	case topLeft:
		pts[topLeft] = pts[topRight].add(pts[bottomLeft]).sub(pts[bottomRight])
	case topRight:
		pts[topRight] = pts[topLeft].add(pts[bottomRight]).sub(pts[bottomLeft])
	case bottomLeft:
		pts[bottomLeft] = pts[topLeft].add(pts[bottomRight]).sub(pts[topRight])
	case bottomRight:
		pts[bottomRight] = pts[topRight].add(pts[bottomLeft]).sub(pts[topLeft])
	}
	return pts, true
}
