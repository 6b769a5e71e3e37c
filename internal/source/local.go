package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"omrflow/internal/models"
	"omrflow/internal/util"
)

// Local watches a directory. The file name is the id, so a file replaced
// under the same name is not picked up again.
type Local struct {
	dir        string
	archiveDir string
}

func NewLocal(dir, archiveDir string) *Local {
	return &Local{dir: dir, archiveDir: archiveDir}
}

func (l *Local) List(ctx context.Context) ([]models.FileRef, error) {
	_ = ctx
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", l.dir, err)
	}
	out := make([]models.FileRef, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, models.FileRef{
			ID:           e.Name(),
			Name:         e.Name(),
			ModifiedTime: info.ModTime().UTC(),
			Size:         info.Size(),
		})
	}
	return out, nil
}

func (l *Local) Download(ctx context.Context, f models.FileRef, dst string) error {
	_ = ctx
	src, err := os.Open(util.SafeJoin(l.dir, f.ID))
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return out.Close()
}

// Archive moves the file into the archive directory. Without one it is a no-op.
func (l *Local) Archive(ctx context.Context, f models.FileRef) error {
	_ = ctx
	if l.archiveDir == "" {
		return nil
	}
	if err := util.EnsureDir(l.archiveDir); err != nil {
		return err
	}
	dst := util.SafeJoin(l.archiveDir, f.Name)
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(l.archiveDir, fmt.Sprintf("%d_%s", f.ModifiedTime.Unix(), filepath.Base(f.Name)))
	}
	if err := os.Rename(util.SafeJoin(l.dir, f.ID), dst); err != nil {
		return fmt.Errorf("archive %s: %w", f.Name, err)
	}
	return nil
}
