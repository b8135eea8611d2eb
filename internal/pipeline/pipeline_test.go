package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rna3dhub/motifatlas/internal/config"
	"github.com/rna3dhub/motifatlas/internal/csvio"
	"github.com/rna3dhub/motifatlas/internal/dataset"
	"github.com/rna3dhub/motifatlas/internal/dataset/datasettest"
	"github.com/rna3dhub/motifatlas/internal/events"
	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/storage"
	"github.com/rna3dhub/motifatlas/internal/storage/sqlite"
	"github.com/rna3dhub/motifatlas/internal/types"
)

const (
	loopA   = "HL_1ABC_001"
	loopB   = "HL_2XYZ_001"
	loopFar = "HL_3FAR_001"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workers.Jobs = 2
	cfg.Workers.MaxRetries = 0
	cfg.Workers.Backoff = "0s"
	cfg.Workers.CacheDir = t.TempDir()
	cfg.Release.OutputDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

// threeHairpins holds two rigid copies of one hairpin and a stretched one.
func threeHairpins(t *testing.T) *datasettest.Builder {
	t.Helper()
	b := datasettest.NewBuilder()
	b.Hairpin("1ABC", datasettest.MotifCenters, types.Identity3(), types.Vec3{})
	b.Hairpin("2XYZ", datasettest.MotifCenters, datasettest.RotZ(1.0).Mul(datasettest.RotX(0.3)), types.Vec3{12, -7, 3})
	b.Hairpin("3FAR", datasettest.FarCenters, types.Identity3(), types.Vec3{})
	return b
}

func loadDataset(t *testing.T, b *datasettest.Builder) *dataset.Dataset {
	t.Helper()
	ds, err := b.Dataset()
	require.NoError(t, err)
	return ds
}

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newPipeline(cfg *config.Config, store storage.Storage, searcher search.Searcher) *Pipeline {
	return New(cfg, store, searcher, rand.New(rand.NewSource(7)))
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, *search.Query, *search.SearchSpace) ([]types.Candidate, error) {
	return nil, errors.New("search engine unavailable")
}

func TestRunCreatesRelease(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(cfg, store, search.NewBacktracker())

	res, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true, Description: "first"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.Failures)
	assert.Equal(t, []string{loopA, loopB, loopFar}, res.Loops)
	assert.Len(t, res.Pairs, 6)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, []string{loopA, loopB}, res.Groups[0].Members)
	assert.Equal(t, []string{loopFar}, res.Groups[1].Members)
	for _, g := range res.Groups {
		assert.Equal(t, types.KindNew, g.Identity.Kind)
		assert.Equal(t, 1, g.Identity.Version)
		assert.Equal(t, "cWW", g.Signature)
	}
	assert.NotEqual(t, res.Groups[0].Identity.Handle, res.Groups[1].Identity.Handle)

	require.NotNil(t, res.Release)
	assert.Equal(t, types.FirstReleaseID, res.Release.ID)
	assert.Nil(t, res.Parent)
	assert.Len(t, res.Changes.Added, 2)
	assert.Len(t, res.LoopChanges.Added, 3)

	stored, err := store.LatestRelease(ctx, types.LoopHairpin)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "first", stored.Description)
	assert.Len(t, stored.Motifs, 2)

	assert.Equal(t, filepath.Join(cfg.Release.OutputDir, "HL_0.1"), res.OutputDir)
	tables, err := csvio.ReadDir(res.OutputDir)
	require.NoError(t, err)
	require.Len(t, tables.List, 2)
	assert.Equal(t, res.Groups[0].MotifID().String(), tables.List[0].ID)
	assert.Equal(t, "Group_001", tables.List[0].Name)
	assert.Len(t, tables.Positions, 9)

	evs, err := store.GetEvents(ctx, events.EventFilter{RunID: res.RunID})
	require.NoError(t, err)
	counts := make(map[events.EventType]int)
	for _, e := range evs {
		counts[e.Type]++
	}
	assert.Equal(t, 8, counts[events.EventTypeStageStarted])
	assert.Equal(t, 8, counts[events.EventTypeStageCompleted])
	assert.Equal(t, 1, counts[events.EventTypeReleaseCreated])
}

func TestRunNamesAgainstParent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(cfg, store, search.NewBacktracker())

	first, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true})
	require.NoError(t, err)

	second, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true})
	require.NoError(t, err)
	assert.Equal(t, "0.2", second.Release.ID)
	require.NotNil(t, second.Parent)
	assert.Equal(t, "0.1", second.Parent.ID)
	for i, g := range second.Groups {
		assert.Equal(t, types.KindExact, g.Identity.Kind)
		assert.Equal(t, first.Groups[i].Identity.Handle, g.Identity.Handle)
		assert.Equal(t, 1, g.Identity.Version)
	}
	assert.Len(t, second.Changes.Unchanged, 2)
	assert.Empty(t, second.Changes.Added)

	major, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true, Mode: types.ReleaseMajor})
	require.NoError(t, err)
	assert.Equal(t, "1.0", major.Release.ID)

	d, err := DiffReleases(ctx, store, types.LoopHairpin, "0.1", "1.0")
	require.NoError(t, err)
	assert.Len(t, d.Groups.Unchanged, 2)
	assert.Len(t, d.Loops.Unchanged, 3)

	_, err = DiffReleases(ctx, store, types.LoopHairpin, "0.1", "7.0")
	assert.ErrorContains(t, err, "not found")
}

func TestRunWithoutPersist(t *testing.T) {
	cfg := testConfig(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(cfg, nil, search.NewBacktracker())

	res, err := p.Run(context.Background(), ds, Options{LoopType: types.LoopHairpin})
	require.NoError(t, err)
	assert.Nil(t, res.Release)
	require.Len(t, res.Groups, 2)
	assert.Empty(t, res.Groups[0].Identity.Handle)
	assert.Equal(t, filepath.Join(cfg.Release.OutputDir, "HL"), res.OutputDir)

	tables, err := csvio.ReadDir(res.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "Group_001", tables.List[0].ID)

	_, err = p.Run(context.Background(), ds, Options{LoopType: types.LoopHairpin, Persist: true})
	assert.Error(t, err)
}

func TestRunSkipsWithoutLoops(t *testing.T) {
	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(testConfig(t), store, search.NewBacktracker())

	res, err := p.Run(context.Background(), ds, Options{LoopType: types.LoopInternal, Persist: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{StageLoad}, res.SkippedStages)
	assert.Nil(t, res.Release)

	latest, err := store.LatestRelease(context.Background(), types.LoopInternal)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRunStopOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(testConfig(t), store, failingSearcher{})

	_, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true})
	require.Error(t, err)
	var stageErr *StageFailedError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSearch, stageErr.Stage)

	failed, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeStageFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, events.SeverityCritical, failed[0].Severity)
}

func TestRunContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Release.StopOnFailure = false
	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(cfg, store, failingSearcher{})

	res, err := p.Run(ctx, ds, Options{LoopType: types.LoopHairpin, Persist: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, []string{StageSearch}, res.FailedStages)
	assert.Equal(t, []string{StageCluster, StageAlign, StageName, StageCount, StagePersist, StageCSV}, res.SkippedStages)
	assert.Nil(t, res.Release)

	latest, err := store.LatestRelease(ctx, types.LoopHairpin)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRunDropsInvalidLoop(t *testing.T) {
	b := threeHairpins(t)
	f := b.File()
	f.Loops = append(f.Loops, dataset.LoopRecord{
		LoopID: "HL_4BAD_001",
		Positions: []dataset.PositionRecord{
			{Position: 1, UnitID: "4BAD|1|A|G|1", Border: true},
			{Position: 2, UnitID: "4BAD|1|A|A|2"},
			{Position: 3, UnitID: "4BAD|1|A|C|3", Border: true},
		},
	})
	ds := loadDataset(t, b)
	p := newPipeline(testConfig(t), nil, search.NewBacktracker())

	res, err := p.Run(context.Background(), ds, Options{LoopType: types.LoopHairpin})
	require.NoError(t, err)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, "HL_4BAD_001", res.Invalid[0].Unit)
	assert.Equal(t, []string{loopA, loopB, loopFar}, res.Loops)
	assert.Len(t, res.Groups, 2)
}

func TestRunHonoursReleaseLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, ".release-lock")
	require.NoError(t, storage.AcquireReleaseLock(lockPath, string(types.LoopHairpin)))
	defer storage.ReleaseReleaseLock(lockPath)

	store := newStore(t)
	ds := loadDataset(t, threeHairpins(t))
	p := newPipeline(testConfig(t), store, search.NewBacktracker())

	_, err := p.Run(context.Background(), ds, Options{LoopType: types.LoopHairpin, Persist: true, LockPath: lockPath})
	var locked *storage.ErrLocked
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, os.Getpid(), locked.Lock.PID)
}

func TestComparePair(t *testing.T) {
	b := threeHairpins(t)
	ds := loadDataset(t, b)
	p := newPipeline(testConfig(t), nil, search.NewBacktracker())

	fwd, rev, err := p.ComparePair(context.Background(), ds, loopA, loopB)
	require.NoError(t, err)
	assert.True(t, fwd.Matched())
	assert.True(t, rev.Matched())
	assert.Less(t, fwd.Discrepancy, 1e-6)

	fwd, _, err = p.ComparePair(context.Background(), ds, loopA, loopFar)
	require.NoError(t, err)
	assert.Equal(t, []types.DisqualificationCode{types.NoCandidates}, fwd.Codes)

	_, _, err = p.ComparePair(context.Background(), ds, loopA, "HL_9ZZZ_001")
	assert.ErrorContains(t, err, "not found")
}
