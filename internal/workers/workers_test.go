package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rna3dhub/motifatlas/internal/cluster"
)

// pairsTo builds count pairs whose target lives in pdb.
func pairsTo(pdb string, count int) []Pair {
	var out []Pair
	for i := 0; i < count; i++ {
		out = append(out, Pair{
			Query:     fmt.Sprintf("HL_1QRY_%03d", i+1),
			Target:    fmt.Sprintf("HL_%s_%03d", pdb, i+1),
			TargetPDB: pdb,
		})
	}
	return out
}

func workload() []Pair {
	var pairs []Pair
	pairs = append(pairs, pairsTo("AAAA", 3)...)
	pairs = append(pairs, pairsTo("BBBB", 2)...)
	pairs = append(pairs, pairsTo("CCCC", 1)...)
	return pairs
}

func fakeCompare(calls *atomic.Int32) CompareFunc {
	return func(_ context.Context, p Pair) (cluster.PairResult, error) {
		calls.Add(1)
		return cluster.PairResult{Query: p.Query, Target: p.Target, Discrepancy: 0.25}, nil
	}
}

var errBoom = errors.New("boom")

func TestPartition(t *testing.T) {
	tasks := Partition(workload(), 2)
	require.Len(t, tasks, 2)
	assert.Equal(t, []string{"AAAA"}, tasks[0].PDBs)
	assert.Equal(t, []string{"BBBB", "CCCC"}, tasks[1].PDBs)
	assert.Len(t, tasks[0].Pairs, 3)
	assert.Len(t, tasks[1].Pairs, 3)
	assert.Equal(t, 1.0, Balance(tasks))

	t.Run("more jobs than structures", func(t *testing.T) {
		tasks := Partition(workload(), 8)
		require.Len(t, tasks, 3)
		for i, task := range tasks {
			assert.Equal(t, i, task.Index)
			assert.Len(t, task.PDBs, 1)
		}
	})

	t.Run("structures never split", func(t *testing.T) {
		seen := make(map[string]int)
		for _, task := range Partition(workload(), 3) {
			for _, p := range task.Pairs {
				if idx, ok := seen[p.TargetPDB]; ok {
					assert.Equal(t, idx, task.Index)
				}
				seen[p.TargetPDB] = task.Index
			}
		}
		assert.Len(t, seen, 3)
	})

	assert.Empty(t, Partition(nil, 4))
	assert.Len(t, Partition(workload(), 0), 1)
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{Jobs: 3}
	results, err := New(cfg, fakeCompare(&calls)).Run(context.Background(), workload())
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, int32(6), calls.Load())
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		assert.True(t, prev.Query < cur.Query || (prev.Query == cur.Query && prev.Target < cur.Target))
	}
}

func TestRunRelaunchesFailedBatch(t *testing.T) {
	var calls atomic.Int32
	var once sync.Once
	compare := func(ctx context.Context, p Pair) (cluster.PairResult, error) {
		failed := false
		if p.TargetPDB == "BBBB" {
			once.Do(func() { failed = true })
		}
		if failed {
			return cluster.PairResult{}, errBoom
		}
		return fakeCompare(&calls)(ctx, p)
	}

	results, err := New(Config{Jobs: 2, MaxRetries: 1}, compare).Run(context.Background(), workload())
	require.NoError(t, err)
	assert.Len(t, results, 6)
}

func TestRunExhaustedRetries(t *testing.T) {
	var attempts atomic.Int32
	compare := func(_ context.Context, p Pair) (cluster.PairResult, error) {
		if p.TargetPDB == "CCCC" {
			attempts.Add(1)
			return cluster.PairResult{}, errBoom
		}
		return cluster.PairResult{Query: p.Query, Target: p.Target}, nil
	}

	_, err := New(Config{Jobs: 1, MaxRetries: 2}, compare).Run(context.Background(), workload())
	require.Error(t, err)
	var batchErr *BatchFailedError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 3, batchErr.Attempts)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	_, err := New(Config{Jobs: 2, MaxRetries: 3}, fakeCompare(&calls)).Run(ctx, workload())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestRunReusesCache(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	cfg := Config{Jobs: 2, CacheDir: dir}
	first, err := New(cfg, fakeCompare(&calls)).Run(context.Background(), workload())
	require.NoError(t, err)
	for _, pdb := range []string{"AAAA", "BBBB", "CCCC"} {
		assert.FileExists(t, filepath.Join(dir, pdb+".json"))
	}

	failing := func(context.Context, Pair) (cluster.PairResult, error) {
		return cluster.PairResult{}, errBoom
	}
	second, err := New(cfg, failing).Run(context.Background(), workload())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCacheNotWrittenOnFailedBatch(t *testing.T) {
	dir := t.TempDir()
	compare := func(_ context.Context, p Pair) (cluster.PairResult, error) {
		if p.TargetPDB == "BBBB" {
			return cluster.PairResult{}, errBoom
		}
		return cluster.PairResult{Query: p.Query, Target: p.Target}, nil
	}
	_, err := New(Config{Jobs: 1, CacheDir: dir}, compare).Run(context.Background(), workload())
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestCacheLookup(t *testing.T) {
	c := NewCache(t.TempDir())
	pairs := pairsTo("AAAA", 2)

	_, ok := c.Lookup("AAAA", pairs)
	assert.False(t, ok)

	require.NoError(t, c.Store("AAAA", []cluster.PairResult{{Query: pairs[0].Query, Target: pairs[0].Target}}))
	_, ok = c.Lookup("AAAA", pairs)
	assert.False(t, ok, "partial entries are misses")

	got, ok := c.Lookup("AAAA", pairs[:1])
	require.True(t, ok)
	assert.Equal(t, pairs[0].Target, got[0].Target)

	require.NoError(t, os.WriteFile(c.Path("BBBB"), []byte("{not json"), 0644))
	_, ok = c.Lookup("BBBB", pairsTo("BBBB", 1))
	assert.False(t, ok)
}
