// Package workers spreads the all-against-all loop comparison over
// concurrent batches. Pairs are grouped by the structure of their target
// loop so that each structure's results land in exactly one batch and one
// cache file.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rna3dhub/motifatlas/internal/cluster"
)

// Pair is one ordered comparison: Query's motif searched in Target.
type Pair struct {
	Query     string `json:"query"`
	Target    string `json:"target"`
	TargetPDB string `json:"target_pdb"`
}

// Task is one batch. It is idempotent: running it twice with the same
// arguments produces the same results.
type Task struct {
	Index int
	PDBs  []string
	Pairs []Pair
}

// CompareFunc computes one pair. It must be safe for concurrent use.
type CompareFunc func(ctx context.Context, p Pair) (cluster.PairResult, error)

// Config controls the fan-out.
type Config struct {
	Jobs       int
	MaxRetries int
	Backoff    time.Duration
	CacheDir   string // empty disables the cache
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Jobs:       4,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// BatchFailedError is returned when a batch still fails after all
// relaunches.
type BatchFailedError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *BatchFailedError) Unwrap() error { return e.Err }

// Partition groups pairs by target structure and spreads the groups over at
// most jobs batches, largest group first onto the lightest batch. Empty
// batches are dropped and the survivors renumbered.
func Partition(pairs []Pair, jobs int) []Task {
	if jobs < 1 {
		jobs = 1
	}
	byPDB := make(map[string][]Pair)
	for _, p := range pairs {
		byPDB[p.TargetPDB] = append(byPDB[p.TargetPDB], p)
	}
	pdbs := make([]string, 0, len(byPDB))
	for pdb := range byPDB {
		pdbs = append(pdbs, pdb)
	}
	sort.Slice(pdbs, func(i, j int) bool {
		a, b := len(byPDB[pdbs[i]]), len(byPDB[pdbs[j]])
		if a != b {
			return a > b
		}
		return pdbs[i] < pdbs[j]
	})

	tasks := make([]Task, jobs)
	for _, pdb := range pdbs {
		lightest := 0
		for i := range tasks {
			if len(tasks[i].Pairs) < len(tasks[lightest].Pairs) {
				lightest = i
			}
		}
		tasks[lightest].PDBs = append(tasks[lightest].PDBs, pdb)
		tasks[lightest].Pairs = append(tasks[lightest].Pairs, byPDB[pdb]...)
	}

	var out []Task
	for _, t := range tasks {
		if len(t.Pairs) == 0 {
			continue
		}
		t.Index = len(out)
		sort.Strings(t.PDBs)
		sortPairs(t.Pairs)
		out = append(out, t)
	}
	return out
}

// Pool runs tasks with relaunch on failure.
type Pool struct {
	cfg     Config
	compare CompareFunc
	limiter *rate.Limiter
	cache   *Cache
}

// New returns a pool computing pairs with compare.
func New(cfg Config, compare CompareFunc) *Pool {
	limit := rate.Inf
	if cfg.Backoff > 0 {
		limit = rate.Every(cfg.Backoff)
	}
	p := &Pool{
		cfg:     cfg,
		compare: compare,
		limiter: rate.NewLimiter(limit, 1),
	}
	if cfg.CacheDir != "" {
		p.cache = NewCache(cfg.CacheDir)
	}
	return p
}

// Run computes every pair and returns the results sorted by query, then
// target. The first batch to exhaust its relaunches cancels the others.
func (p *Pool) Run(ctx context.Context, pairs []Pair) ([]cluster.PairResult, error) {
	tasks := Partition(pairs, p.cfg.Jobs)
	results := make([][]cluster.PairResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i := range tasks {
		task := tasks[i]
		g.Go(func() error {
			res, err := p.runWithRetry(gctx, task)
			if err != nil {
				return err
			}
			results[task.Index] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []cluster.PairResult
	for _, r := range results {
		out = append(out, r...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Query != out[j].Query {
			return out[i].Query < out[j].Query
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

func (p *Pool) runWithRetry(ctx context.Context, task Task) ([]cluster.PairResult, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		res, err := p.runTask(ctx, task)
		if err == nil {
			if attempt > 0 {
				slog.Info("batch succeeded after relaunch", "batch", task.Index, "relaunches", attempt)
			}
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("batch %d: %w", task.Index, ctx.Err())
		}
		if attempt == p.cfg.MaxRetries {
			break
		}
		slog.Warn("batch failed, relaunching",
			"batch", task.Index, "attempt", attempt+1, "max_attempts", p.cfg.MaxRetries+1, "error", err)
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("batch %d: waiting to relaunch: %w", task.Index, err)
		}
	}
	return nil, &BatchFailedError{Index: task.Index, Attempts: p.cfg.MaxRetries + 1, Err: lastErr}
}

// runTask computes a batch. Structures with a complete cache entry are
// served from it; fresh results are written only once the whole batch has
// succeeded.
func (p *Pool) runTask(ctx context.Context, task Task) ([]cluster.PairResult, error) {
	byPDB := make(map[string][]Pair, len(task.PDBs))
	for _, pr := range task.Pairs {
		byPDB[pr.TargetPDB] = append(byPDB[pr.TargetPDB], pr)
	}

	var out []cluster.PairResult
	fresh := make(map[string][]cluster.PairResult)
	for _, pdb := range task.PDBs {
		if p.cache != nil {
			if cached, ok := p.cache.Lookup(pdb, byPDB[pdb]); ok {
				out = append(out, cached...)
				continue
			}
		}
		for _, pr := range byPDB[pdb] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := p.compare(ctx, pr)
			if err != nil {
				return nil, fmt.Errorf("comparing %s with %s: %w", pr.Query, pr.Target, err)
			}
			fresh[pdb] = append(fresh[pdb], r)
		}
		out = append(out, fresh[pdb]...)
	}

	if p.cache != nil {
		var errs []error
		for _, pdb := range task.PDBs {
			if res, ok := fresh[pdb]; ok {
				errs = append(errs, p.cache.Store(pdb, res))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("failed to write cache: %w", err)
		}
	}
	return out, nil
}

// Balance reports the largest batch size relative to the mean, 1 being a
// perfect split.
func Balance(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 1
	}
	total, largest := 0, 0
	for _, t := range tasks {
		total += len(t.Pairs)
		largest = max(largest, len(t.Pairs))
	}
	if total == 0 {
		return 1
	}
	return float64(largest) * float64(len(tasks)) / float64(total)
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Query != pairs[j].Query {
			return pairs[i].Query < pairs[j].Query
		}
		return pairs[i].Target < pairs[j].Target
	})
}
