package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"omrflow/internal/models"
	"omrflow/internal/util"
)

// JSONL keeps one results file per grid size in dir. Delivery is idempotent
// on the file id.
type JSONL struct {
	dir string
	mu  sync.Mutex
}

func NewJSONL(dir string) *JSONL {
	return &JSONL{dir: dir}
}

func (j *JSONL) path(questions int) string {
	return filepath.Join(j.dir, fmt.Sprintf("resultados_%d.jsonl", questions))
}

func (j *JSONL) Deliver(ctx context.Context, r models.Result) error {
	_ = ctx
	j.mu.Lock()
	defer j.mu.Unlock()
	existing, err := j.read(r.Questions)
	if err != nil {
		return err
	}
	rows := make([]any, 0, len(existing)+1)
	for _, e := range existing {
		if e.FileID == r.FileID {
			return nil
		}
		rows = append(rows, e)
	}
	rows = append(rows, r)
	return util.WriteJSONLinesAtomic(j.path(r.Questions), rows)
}

// Results reads back every row delivered for a grid size.
func (j *JSONL) Results(questions int) ([]models.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(questions)
}

func (j *JSONL) read(questions int) ([]models.Result, error) {
	f, err := os.Open(j.path(questions))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	var out []models.Result
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r models.Result
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decode results line: %w", err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return out, nil
}
