package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	"omrflow/internal/sheet"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered raster format (png, jpeg, gif, bmp, tiff, webp).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func DecodeBytes(b []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(b))
}

func LoadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := Decode(f)
	return img, err
}

// ToGray converts to 8-bit luminance, rebasing bounds at the origin.
func ToGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// rotate90 turns a gray image a quarter turn clockwise.
func rotate90(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[x*dst.Stride+(h-1-y)] = src.Pix[y*src.Stride+x]
		}
	}
	return dst
}

// scaleToWidth returns src resized so its width is at most maxW, plus the
// factor that maps working coordinates back to src coordinates.
func scaleToWidth(src *image.Gray, maxW int) (*image.Gray, float64) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if maxW <= 0 || w <= maxW {
		return src, 1
	}
	nh := int(float64(h) * float64(maxW) / float64(w))
	dst := image.NewGray(image.Rect(0, 0, maxW, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst, float64(w) / float64(maxW)
}

// PixelRect converts a normalized rectangle to pixel bounds of img.
func PixelRect(img image.Image, r sheet.Rect) image.Rectangle {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	return image.Rect(
		b.Min.X+int(r.X0*w+0.5),
		b.Min.Y+int(r.Y0*h+0.5),
		b.Min.X+int(r.X1*w+0.5),
		b.Min.Y+int(r.Y1*h+0.5),
	).Intersect(b)
}

// CropPNG encodes the normalized region r of img as PNG.
func CropPNG(img image.Image, r sheet.Rect) ([]byte, error) {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	rect := PixelRect(img, r)
	if rect.Empty() {
		return nil, fmt.Errorf("crop: empty region %v", r)
	}
	var out image.Image = img
	if si, ok := img.(subImager); ok {
		out = si.SubImage(rect)
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(dst, dst.Rect, img, rect.Min, draw.Src)
		out = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
