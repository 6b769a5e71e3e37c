package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"omrflow/internal/decode"
	"omrflow/internal/models"
	"omrflow/internal/providers"
	"omrflow/internal/reconcile"
	"omrflow/internal/sheet"
	"omrflow/internal/vision"
)

// page is one aligned image of a sheet.
type page struct {
	frame *vision.Frame
	raw   []byte
	mime  string
	index int
}

// loadPage downloads f into dir and returns the first page whose reference
// marks can be located. PDFs are rasterized first.
func (p *Processor) loadPage(ctx context.Context, dir string, f models.FileRef) (page, error) {
	local := filepath.Join(dir, "src-"+filepath.Base(f.Name))
	if err := p.src.Download(ctx, f, local); err != nil {
		return page{}, fmt.Errorf("download %s: %w", f.Name, err)
	}

	paths := []string{local}
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		pages, err := p.raster.Pages(ctx, local, filepath.Join(dir, "pages"))
		if err != nil {
			return page{}, fmt.Errorf("rasterize %s: %w", f.Name, err)
		}
		paths = pages
	}

	var lastErr error
	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return page{}, fmt.Errorf("read %s: %w", path, err)
		}
		img, format, err := vision.DecodeBytes(raw)
		if err != nil {
			lastErr = err
			continue
		}
		frame, err := p.normalizer.Normalize(img)
		if err != nil {
			lastErr = err
			if len(paths) > 1 {
				log.Printf("page skipped file=%s page=%d err=%v", f.Name, i+1, err)
			}
			continue
		}
		return page{frame: frame, raw: raw, mime: "image/" + format, index: i}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no readable page")
	}
	return page{}, fmt.Errorf("%s: %w", f.Name, lastErr)
}

// reading is a sheet decoded end to end: local grid, oracle and the
// reconciled answers.
type reading struct {
	local      sheet.Decode
	reconcile  reconcile.Result
	degenerate error
	warnings   []string
}

func (p *Processor) localDecode(id string, pg page, g sheet.Geometry) (sheet.Decode, error) {
	tuning := p.profile.For(g)
	samples := vision.Sample(pg.frame, g, p.sampler)
	d, err := decode.New(tuning.Decode).DecodeSheet(id, g, samples.Scores())
	if err != nil {
		return sheet.Decode{}, err
	}
	if n := samples.Unsampled(); n > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%d cells outside the photograph", n))
	}
	return d, nil
}

// read decodes one aligned page with geometry g and reconciles it with the
// oracle when one is configured. An oracle failure degrades to local-only.
func (p *Processor) read(ctx context.Context, id string, pg page, g sheet.Geometry, role providers.Role) (reading, error) {
	local, err := p.localDecode(id, pg, g)
	if err != nil {
		return reading{}, err
	}
	out := reading{
		local:      local,
		degenerate: decode.Degenerate(local, p.profile.For(g).Decode.DegenerateRatio),
		warnings:   append([]string(nil), local.Warnings...),
	}

	var oracle *sheet.Decode
	if r, ref, ok := p.readers.Oracle(); ok {
		res, _, err := r.Read(ctx, providers.ReadRequest{
			Kind:     providers.ReadAnswers,
			Role:     role,
			SheetID:  id,
			Geometry: g,
			MIMEType: pg.mime,
			Image:    pg.raw,
		})
		switch {
		case err != nil:
			if !errors.Is(err, sheet.ErrOracleUnavailable) {
				err = fmt.Errorf("%w: %v", sheet.ErrOracleUnavailable, err)
			}
			log.Printf("oracle fallback to local sheet=%s provider=%s err=%v", id, ref.Raw, err)
			out.warnings = append(out.warnings, err.Error())
		default:
			d := decode.FromLetters(id, g, res.Answers)
			out.warnings = append(out.warnings, d.Warnings...)
			oracle = &d
		}
	}

	rec, err := reconcile.Reconcile(local, oracle, p.profile.For(g).Reconcile)
	if err != nil {
		return reading{}, err
	}
	out.reconcile = rec
	return out, nil
}
