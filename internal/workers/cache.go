package workers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rna3dhub/motifatlas/internal/cluster"
)

// Cache stores the comparison results of one target structure per file,
// <dir>/<PDB>.json.
type Cache struct {
	dir string
	mu  sync.Mutex
}

type cacheEntry struct {
	PDB     string               `json:"pdb"`
	Results []cluster.PairResult `json:"results"`
}

// NewCache returns a cache rooted at dir. The directory is created on the
// first Store.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Path returns the cache file of pdb.
func (c *Cache) Path(pdb string) string {
	return filepath.Join(c.dir, pdb+".json")
}

// Lookup returns the cached results of pairs, in pairs order, and whether
// every pair was found. Unreadable entries count as misses.
func (c *Cache) Lookup(pdb string, pairs []Pair) ([]cluster.PairResult, bool) {
	data, err := os.ReadFile(c.Path(pdb))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("ignoring corrupt cache entry", "path", c.Path(pdb), "error", err)
		return nil, false
	}
	type key struct{ q, t string }
	byPair := make(map[key]cluster.PairResult, len(entry.Results))
	for _, r := range entry.Results {
		byPair[key{r.Query, r.Target}] = r
	}
	out := make([]cluster.PairResult, 0, len(pairs))
	for _, p := range pairs {
		r, ok := byPair[key{p.Query, p.Target}]
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// Store replaces the entry of pdb. The file is written to a temporary name
// and renamed into place so readers never see a partial entry.
func (c *Cache) Store(pdb string, results []cluster.PairResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(cacheEntry{PDB: pdb, Results: results})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", pdb, err)
	}
	tmp, err := os.CreateTemp(c.dir, pdb+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(pdb)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}
