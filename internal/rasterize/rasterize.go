package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"omrflow/internal/util"

	"github.com/ledongthuc/pdf"
)

// Rasterizer turns PDF pages into PNG files with poppler's pdftoppm.
type Rasterizer struct {
	Binary   string
	DPI      int
	MaxPages int
}

func New(dpi int) *Rasterizer {
	if dpi <= 0 {
		dpi = 300
	}
	return &Rasterizer{Binary: "pdftoppm", DPI: dpi, MaxPages: 4}
}

// PageCount reads the page tree without rendering anything.
func PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Pages renders up to MaxPages pages of pdfPath into outDir and returns the
// image paths in page order.
func (r *Rasterizer) Pages(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	n, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, util.ErrNoPages
	}
	if r.MaxPages > 0 && n > r.MaxPages {
		n = r.MaxPages
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, err
	}
	prefix := filepath.Join(outDir, "page")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary,
		"-r", strconv.Itoa(r.DPI),
		"-png",
		"-f", "1",
		"-l", strconv.Itoa(n),
		pdfPath, prefix)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.Binary, err, util.Snippet(stderr.String(), 300))
	}
	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, util.ErrNoPages
	}
	// pdftoppm zero-pads page numbers to a common width.
	sort.Strings(pages)
	return pages, nil
}
