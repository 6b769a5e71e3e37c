package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"omrflow/internal/models"
	"omrflow/internal/providers"
	"omrflow/internal/sheet"
	"omrflow/internal/util"
	"omrflow/internal/vision"
)

// readHeader asks each header reader in turn and keeps the first value seen
// for every field. A missing student name falls back to the file name.
func (p *Processor) readHeader(ctx context.Context, f models.FileRef, pg page, g sheet.Geometry) models.Header {
	var h models.Header
	crop, err := vision.CropPNG(pg.frame.Image, g.HeaderArea())
	if err != nil {
		log.Printf("header crop failed file=%s err=%v", f.Name, err)
	}
	for _, nr := range p.readers.HeaderReaders() {
		if crop == nil || complete(h) {
			break
		}
		res, _, err := nr.Reader.Read(ctx, providers.ReadRequest{
			Kind:     providers.ReadHeader,
			Role:     providers.RoleStudent,
			SheetID:  f.ID,
			Geometry: g,
			MIMEType: "image/png",
			Image:    crop,
		})
		if err != nil {
			log.Printf("header read failed file=%s reader=%s err=%v", f.Name, nr.Ref.Raw, err)
			continue
		}
		h = fill(h, res.Header)
	}
	if h.Student == "" {
		h.Student = nameFromFile(f.Name)
	}
	return h
}

func complete(h models.Header) bool {
	return h.School != "" && h.Student != "" && h.BirthDate != "" && h.Class != ""
}

func fill(dst, src models.Header) models.Header {
	if dst.School == "" {
		dst.School = util.CleanField(src.School)
	}
	if dst.Student == "" {
		dst.Student = util.CleanField(src.Student)
	}
	if dst.BirthDate == "" {
		dst.BirthDate = util.CleanField(src.BirthDate)
	}
	if dst.Class == "" {
		dst.Class = util.CleanField(src.Class)
	}
	return dst
}

// nameFromFile turns "maria_clara-souza.jpg" into "Maria Clara Souza".
func nameFromFile(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(stem)
	words := strings.Fields(stem)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
