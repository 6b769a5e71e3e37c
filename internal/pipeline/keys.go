package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"omrflow/internal/models"
	"omrflow/internal/providers"
	"omrflow/internal/reconcile"
	"omrflow/internal/sheet"
	"omrflow/internal/util"
)

// Key is a decoded answer key.
type Key struct {
	File     models.FileRef
	Decode   sheet.Decode
	Strategy string
	Warnings []string
}

// KeyCache keeps decoded answer keys by file version, so a key is read once
// until it is replaced in the watched folder. Keys are re-listed every
// cycle and never enter the history.
type KeyCache struct {
	mu      sync.Mutex
	entries map[string]Key
}

func NewKeyCache() *KeyCache {
	return &KeyCache{entries: map[string]Key{}}
}

func (c *KeyCache) get(version string) (Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.entries[version]
	return k, ok
}

func (c *KeyCache) put(version string, k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[version] = k
}

// retain drops entries whose file is no longer listed.
func (c *KeyCache) retain(versions map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for v := range c.entries {
		if !versions[v] {
			delete(c.entries, v)
		}
	}
}

func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// keySet resolves the listed keys to one decoded key per geometry. When two
// keys share a geometry the most recently modified wins. Keys whose name or
// image cannot be used are logged and left out.
func (p *Processor) keySet(ctx context.Context, dir string, files []models.FileRef) map[int]Key {
	files = append([]models.FileRef(nil), files...)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModifiedTime.After(files[j].ModifiedTime)
	})

	out := map[int]Key{}
	versions := map[string]bool{}
	for _, f := range files {
		g, err := sheet.GeometryFromKeyName(f.Name)
		if err != nil {
			log.Printf("answer key ignored file=%s err=%v", f.Name, err)
			continue
		}
		if _, ok := out[g.Questions()]; ok {
			log.Printf("answer key shadowed file=%s geometry=%s", f.Name, g)
			continue
		}
		version := util.SHA256Hex([]byte(f.Version()))
		versions[version] = true
		k, ok := p.keys.get(version)
		if !ok {
			k, err = p.readKey(ctx, dir, f, g)
			if err != nil {
				log.Printf("answer key unreadable file=%s err=%v", f.Name, err)
				continue
			}
			if p.cacheable(k) {
				p.keys.put(version, k)
			}
			log.Printf("answer key loaded file=%s geometry=%s strategy=%s undecided=%d", f.Name, g, k.Strategy, k.Decode.CountUndecided())
		}
		out[g.Questions()] = k
	}
	p.keys.retain(versions)
	return out
}

// cacheable reports whether k may be reused for later sheets. A key read
// without the oracle while one is configured is read again next time.
func (p *Processor) cacheable(k Key) bool {
	if k.Strategy != string(reconcile.StrategyLocalOnly) {
		return true
	}
	_, _, ok := p.readers.Oracle()
	return !ok
}

func (p *Processor) readKey(ctx context.Context, dir string, f models.FileRef, g sheet.Geometry) (Key, error) {
	pg, err := p.loadPage(ctx, dir, f)
	if err != nil {
		return Key{}, err
	}
	rd, err := p.read(ctx, f.ID, pg, g, providers.RoleKey)
	if err != nil {
		return Key{}, fmt.Errorf("read key %s: %w", f.Name, err)
	}
	return Key{
		File:     f,
		Decode:   rd.reconcile.Decode,
		Strategy: string(rd.reconcile.Strategy),
		Warnings: rd.warnings,
	}, nil
}
