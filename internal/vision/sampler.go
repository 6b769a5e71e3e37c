package vision

import (
	"image"
	"math"

	"omrflow/internal/sheet"
)

// SamplerConfig controls how a pixel is judged dark relative to its row.
type SamplerConfig struct {
	// BackgroundPercentile picks the paper tone from the row's luminance
	// histogram (0.9 means the 90th percentile).
	BackgroundPercentile float64 `yaml:"background_percentile" json:"background_percentile"`
	Contrast             float64 `yaml:"contrast" json:"contrast"`
	MinDelta             float64 `yaml:"min_delta" json:"min_delta"`
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{BackgroundPercentile: 0.9, Contrast: 0.25, MinDelta: 30}
}

func (c SamplerConfig) WithDefaults() SamplerConfig {
	d := DefaultSamplerConfig()
	if c.BackgroundPercentile <= 0 || c.BackgroundPercentile > 1 {
		c.BackgroundPercentile = d.BackgroundPercentile
	}
	if c.Contrast <= 0 {
		c.Contrast = d.Contrast
	}
	if c.MinDelta <= 0 {
		c.MinDelta = d.MinDelta
	}
	return c
}

type CellSample struct {
	Question  int          `json:"question"`
	Option    sheet.Option `json:"option"`
	Score     float64      `json:"score"`
	Unsampled bool         `json:"unsampled,omitempty"`
}

// Samples is the complete score matrix of a sheet, one row per question.
type Samples [][sheet.OptionsPerQuestion]CellSample

// Scores strips the matrix down to fill scores for the decoder.
func (s Samples) Scores() [][sheet.OptionsPerQuestion]float64 {
	out := make([][sheet.OptionsPerQuestion]float64, len(s))
	for q, row := range s {
		for o, c := range row {
			out[q][o] = c.Score
		}
	}
	return out
}

func (s Samples) Unsampled() int {
	n := 0
	for _, row := range s {
		for _, c := range row {
			if c.Unsampled {
				n++
			}
		}
	}
	return n
}

// Sample scores every option cell of g on a rectified frame. The score is
// the fraction of bubble pixels noticeably darker than the paper of the same
// row, which keeps uneven lighting from reading as marks.
func Sample(f *Frame, g sheet.Geometry, cfg SamplerConfig) Samples {
	cfg = cfg.WithDefaults()
	out := make(Samples, g.Questions())
	for q := range out {
		band := PixelRect(f.Image, g.RowBand(q))
		bg := percentile(f.Image, band, cfg.BackgroundPercentile)
		cut := bg - math.Max(cfg.MinDelta, bg*cfg.Contrast)
		for o := sheet.OptionA; o <= sheet.OptionD; o++ {
			cell := CellSample{Question: q, Option: o}
			roi := g.ROI(q, o)
			px := PixelRect(f.Image, roi)
			if !f.Covers(roi) || px.Empty() {
				cell.Unsampled = true
				out[q][o] = cell
				continue
			}
			cell.Score = darkFraction(f.Image, px, cut)
			out[q][o] = cell
		}
	}
	return out
}

func percentile(img *image.Gray, r image.Rectangle, p float64) float64 {
	var hist [256]int
	total := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-img.Rect.Min.Y)*img.Stride - img.Rect.Min.X
		for x := r.Min.X; x < r.Max.X; x++ {
			hist[img.Pix[off+x]]++
			total++
		}
	}
	if total == 0 {
		return 255
	}
	target := int(math.Ceil(p * float64(total)))
	acc := 0
	for v, n := range hist {
		acc += n
		if acc >= target {
			return float64(v)
		}
	}
	return 255
}

func darkFraction(img *image.Gray, r image.Rectangle, cut float64) float64 {
	dark, total := 0, 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y-img.Rect.Min.Y)*img.Stride - img.Rect.Min.X
		for x := r.Min.X; x < r.Max.X; x++ {
			if float64(img.Pix[off+x]) < cut {
				dark++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
