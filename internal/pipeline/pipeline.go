package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"omrflow/internal/config"
	"omrflow/internal/grading"
	"omrflow/internal/ingest"
	"omrflow/internal/models"
	"omrflow/internal/providers"
	"omrflow/internal/rasterize"
	"omrflow/internal/sheet"
	"omrflow/internal/sink"
	"omrflow/internal/vision"
)

// Downloader fetches one file of the watched folder to a local path.
type Downloader interface {
	Download(ctx context.Context, f models.FileRef, dst string) error
}

// Readers exposes the configured sheet readers in preference order.
type Readers interface {
	Oracle() (providers.SheetReader, providers.ProviderRef, bool)
	HeaderReaders() []providers.NamedReader
}

type Options struct {
	Profile    config.Profile
	Normalizer vision.NormalizerConfig
	Sampler    vision.SamplerConfig
	Rasterizer *rasterize.Rasterizer
	WorkDir    string
	Now        func() time.Time
}

// Processor runs the full pass for one student sheet: download, align,
// decode, reconcile with the oracle, grade against the answer key, read the
// header and deliver. It implements ingest.Handler.
type Processor struct {
	src        Downloader
	readers    Readers
	sink       sink.Sink
	profile    config.Profile
	normalizer *vision.Normalizer
	sampler    vision.SamplerConfig
	raster     *rasterize.Rasterizer
	keys       *KeyCache
	workDir    string
	now        func() time.Time
}

var _ ingest.Handler = (*Processor)(nil)

func New(src Downloader, readers Readers, out sink.Sink, opts Options) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rasterizer == nil {
		opts.Rasterizer = rasterize.New(0)
	}
	if opts.Profile.Geometries == nil {
		opts.Profile = config.DefaultProfile()
	}
	return &Processor{
		src:        src,
		readers:    readers,
		sink:       out,
		profile:    opts.Profile,
		normalizer: vision.NewNormalizer(opts.Normalizer),
		sampler:    opts.Sampler.WithDefaults(),
		raster:     opts.Rasterizer,
		keys:       NewKeyCache(),
		workDir:    opts.WorkDir,
		now:        opts.Now,
	}
}

// Keys exposes the answer-key cache.
func (p *Processor) Keys() *KeyCache { return p.keys }

// Handle grades file against the listed answer keys and delivers the
// result. Temporary copies live in one directory removed on return.
func (p *Processor) Handle(ctx context.Context, file models.FileRef, keys []models.FileRef) (string, error) {
	dir, err := os.MkdirTemp(p.workDir, "omr-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	res, err := p.Grade(ctx, dir, file, keys)
	if err != nil {
		return "", err
	}
	if err := p.sink.Deliver(ctx, res); err != nil {
		return "", fmt.Errorf("deliver %s: %w", file.Name, err)
	}
	outcome := fmt.Sprintf("graded questions=%d strategy=%s percentage=%.1f", res.Questions, res.Strategy, res.Percentage)
	log.Printf("sheet delivered file=%s student=%q %s", file.Name, res.Header.Student, outcome)
	return outcome, nil
}

// Grade produces the result of one student sheet without delivering it.
// dir receives the temporary copies.
func (p *Processor) Grade(ctx context.Context, dir string, file models.FileRef, keys []models.FileRef) (models.Result, error) {
	keySet := p.keySet(ctx, dir, keys)
	if len(keySet) == 0 {
		return models.Result{}, fmt.Errorf("grade %s: no usable answer key", file.Name)
	}

	pg, err := p.loadPage(ctx, dir, file)
	if err != nil {
		return models.Result{}, err
	}
	g, warnings, err := p.selectGeometry(file, pg, keySet)
	if err != nil {
		return models.Result{}, err
	}
	key := keySet[g.Questions()]

	rd, err := p.read(ctx, file.ID, pg, g, providers.RoleStudent)
	if err != nil {
		return models.Result{}, err
	}
	warnings = append(warnings, rd.warnings...)

	cmp, err := grading.Match(rd.reconcile.Decode, key.Decode, p.profile.For(g).Subjects)
	if err != nil {
		return models.Result{}, err
	}
	if rd.degenerate != nil {
		log.Printf("low confidence sheet file=%s err=%v", file.Name, rd.degenerate)
	}

	return models.Result{
		FileID:      file.ID,
		FileName:    file.Name,
		KeyID:       key.File.ID,
		Questions:   g.Questions(),
		Header:      p.readHeader(ctx, file, pg, g),
		Correct:     cmp.Correct,
		Incorrect:   cmp.Incorrect,
		Voided:      cmp.Voided,
		Percentage:  cmp.Percentage,
		Subjects:    subjectResults(cmp.Subjects),
		Answers:     rd.reconcile.Decode.Letters(),
		KeyAnswers:  key.Decode.Letters(),
		Outcomes:    outcomeNames(cmp.Outcomes),
		Strategy:    string(rd.reconcile.Strategy),
		Agreement:   rd.reconcile.Agreement,
		Evaluated:   rd.reconcile.Evaluated,
		Warnings:    warnings,
		ProcessedAt: p.now(),
	}, nil
}

func outcomeNames(outcomes []grading.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = string(o)
	}
	return out
}

// selectGeometry picks the grid of a student sheet: a question count in the
// file name, else the only key on hand, else the key geometry whose local
// decode leaves the fewest questions undecided.
func (p *Processor) selectGeometry(file models.FileRef, pg page, keys map[int]Key) (sheet.Geometry, []string, error) {
	if g, ok := sheet.GeometryHint(file.Name); ok {
		if _, ok := keys[g.Questions()]; !ok {
			return sheet.Geometry{}, nil, fmt.Errorf("grade %s: no answer key for %s: %w", file.Name, g, sheet.ErrGeometryMismatch)
		}
		return g, nil, nil
	}

	counts := make([]int, 0, len(keys))
	for n := range keys {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	if len(counts) == 1 {
		return keys[counts[0]].Decode.Geometry, nil, nil
	}

	best, bestUndecided, tie := sheet.Geometry{}, -1, false
	for _, n := range counts {
		g := keys[n].Decode.Geometry
		d, err := p.localDecode(file.ID, pg, g)
		if err != nil {
			continue
		}
		u := d.CountUndecided()
		switch {
		case bestUndecided < 0 || u < bestUndecided:
			best, bestUndecided, tie = g, u, false
		case u == bestUndecided:
			tie = true
		}
	}
	if best.IsZero() || tie {
		return sheet.Geometry{}, nil, fmt.Errorf("grade %s: several answer keys and no question count in the name: %w", file.Name, sheet.ErrGeometryUnspecified)
	}
	return best, []string{fmt.Sprintf("geometry %s inferred from marks", best)}, nil
}

func subjectResults(in []grading.SubjectScore) []models.SubjectResult {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.SubjectResult, 0, len(in))
	for _, s := range in {
		out = append(out, models.SubjectResult{Name: s.Name, Correct: s.Correct, Incorrect: s.Incorrect, Percent: s.Percent})
	}
	return out
}
