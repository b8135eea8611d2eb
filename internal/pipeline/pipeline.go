// Package pipeline runs one atlas update for a loop type: load the loops,
// compare them all against all, cluster and align the groups, name them
// against the previous release, persist the new release and write the CSV
// exchange files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rna3dhub/motifatlas/internal/cluster"
	"github.com/rna3dhub/motifatlas/internal/config"
	"github.com/rna3dhub/motifatlas/internal/csvio"
	"github.com/rna3dhub/motifatlas/internal/dataset"
	"github.com/rna3dhub/motifatlas/internal/events"
	"github.com/rna3dhub/motifatlas/internal/release"
	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/storage"
	"github.com/rna3dhub/motifatlas/internal/types"
	"github.com/rna3dhub/motifatlas/internal/workers"
)

// Stage names, in run order.
const (
	StageLoad    = "load"
	StageSearch  = "search"
	StageCluster = "cluster"
	StageAlign   = "align"
	StageName    = "name"
	StageCount   = "count"
	StagePersist = "persist"
	StageCSV     = "csv"
)

// Options select what one run does.
type Options struct {
	LoopType types.LoopType
	// Mode picks the release id increment, minor when empty
	Mode        types.ReleaseMode
	Description string
	// OutputDir overrides the configured CSV output directory
	OutputDir string
	// Persist names the groups and stores a release. Without it the run
	// stops after clustering and writes provisional CSVs.
	Persist bool
	// LockPath is the release lock file, empty for none
	LockPath string
}

// Result is everything a run produced. Fields belonging to stages that did
// not run are left empty.
type Result struct {
	RunID    string
	Skipped  bool
	Loops    []string
	Rejected []dataset.RejectedLoop
	Invalid  []*InvalidStateError

	Pairs      []cluster.PairResult
	Groups     []types.NamedGroup
	Alignments map[string]*cluster.Alignment

	Parent      *types.Release
	Release     *types.Release
	Changes     release.GroupChangeSet
	LoopChanges release.SetChangeSet

	OutputDir     string
	Failures      int
	FailedStages  []string
	SkippedStages []string
}

// Pipeline runs the stages against one store. The store may be nil for
// runs that do not persist.
type Pipeline struct {
	cfg      *config.Config
	store    storage.Storage
	searcher search.Searcher
	rng      *rand.Rand
}

// New creates a pipeline. A nil rng is seeded from cfg.Release.Seed, or
// from the clock when the seed is 0.
func New(cfg *config.Config, store storage.Storage, searcher search.Searcher, rng *rand.Rand) *Pipeline {
	if rng == nil {
		seed := cfg.Release.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return &Pipeline{cfg: cfg, store: store, searcher: searcher, rng: rng}
}

// run is the state threaded through the stages of one Run.
type run struct {
	opts      Options
	ds        *dataset.Dataset
	res       *Result
	instances map[string]*cluster.Instance
	ordered   []*cluster.Instance
	matrices  *cluster.Matrices
}

func (r *run) invalid(unit string, err error) {
	e := &InvalidStateError{Unit: unit, Err: err}
	slog.Error("dropping unit", "unit", unit, "error", err)
	r.res.Invalid = append(r.res.Invalid, e)
}

type stage struct {
	name  string
	needs []string
	fn    func(ctx context.Context, r *run) (int, error)
}

func (p *Pipeline) stages(opts Options) []stage {
	s := []stage{
		{StageLoad, nil, p.load},
		{StageSearch, []string{StageLoad}, p.search},
		{StageCluster, []string{StageSearch}, p.cluster},
		{StageAlign, []string{StageCluster}, p.align},
	}
	if opts.Persist {
		s = append(s,
			stage{StageName, []string{StageCluster}, p.name},
			stage{StageCount, []string{StageName}, p.count},
			stage{StagePersist, []string{StageName}, p.persist},
		)
	}
	return append(s, stage{StageCSV, []string{StageAlign}, p.writeCSV})
}

// Run executes the stages for opts.LoopType over ds. A failing stage aborts
// the run with a *StageFailedError when stop_on_failure is set; otherwise
// it is counted and every stage depending on it is skipped. ErrSkip from a
// stage ends the run early without error.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	if !opts.LoopType.IsValid() {
		return nil, fmt.Errorf("invalid loop type %q", opts.LoopType)
	}
	if opts.Mode == "" {
		opts.Mode = types.ReleaseMinor
	}
	if !opts.Mode.IsValid() {
		return nil, fmt.Errorf("invalid release mode %q", opts.Mode)
	}
	if opts.Persist && p.store == nil {
		return nil, errors.New("persisting a release requires a store")
	}

	if opts.Persist {
		if err := storage.AcquireReleaseLock(opts.LockPath, string(opts.LoopType)); err != nil {
			return nil, err
		}
		defer func() {
			if err := storage.ReleaseReleaseLock(opts.LockPath); err != nil {
				slog.Warn("failed to remove release lock", "path", opts.LockPath, "error", err)
			}
		}()
	}

	r := &run{
		opts:      opts,
		ds:        ds,
		instances: make(map[string]*cluster.Instance),
		res: &Result{
			RunID:      events.NewRunID(),
			Alignments: make(map[string]*cluster.Alignment),
		},
	}

	done := make(map[string]bool)
stages:
	for _, st := range p.stages(opts) {
		if missing := firstMissing(st.needs, done); missing != "" {
			p.emit(ctx, r, events.EventTypeStageSkipped, st.name, events.SeverityWarning,
				fmt.Sprintf("skipped because %s did not complete", missing), events.StageData{})
			r.res.SkippedStages = append(r.res.SkippedStages, st.name)
			continue
		}

		p.emit(ctx, r, events.EventTypeStageStarted, st.name, events.SeverityInfo, "stage started", events.StageData{})
		start := time.Now()
		items, err := st.fn(ctx, r)
		data := events.StageData{Items: items, Duration: time.Since(start)}

		switch {
		case err == nil:
			done[st.name] = true
			p.emit(ctx, r, events.EventTypeStageCompleted, st.name, events.SeverityInfo, "stage completed", data)
			slog.Info("stage completed", "stage", st.name, "items", items, "duration", data.Duration)
		case errors.Is(err, ErrSkip):
			p.emit(ctx, r, events.EventTypeStageSkipped, st.name, events.SeverityInfo, err.Error(), data)
			r.res.Skipped = true
			r.res.SkippedStages = append(r.res.SkippedStages, st.name)
			break stages
		case ctx.Err() != nil:
			return nil, fmt.Errorf("stage %s: %w", st.name, ctx.Err())
		case p.cfg.Release.StopOnFailure:
			data.Error = err.Error()
			p.emit(ctx, r, events.EventTypeStageFailed, st.name, events.SeverityCritical, "stage failed, aborting run", data)
			return nil, &StageFailedError{Stage: st.name, Err: err}
		default:
			data.Error = err.Error()
			p.emit(ctx, r, events.EventTypeStageFailed, st.name, events.SeverityError, "stage failed, continuing", data)
			slog.Error("stage failed", "stage", st.name, "error", err)
			r.res.Failures++
			r.res.FailedStages = append(r.res.FailedStages, st.name)
		}
	}

	p.cleanupEvents(ctx)
	return r.res, nil
}

func firstMissing(needs []string, done map[string]bool) string {
	for _, n := range needs {
		if !done[n] {
			return n
		}
	}
	return ""
}

func (p *Pipeline) load(_ context.Context, r *run) (int, error) {
	for _, rej := range r.ds.Rejected {
		if t, _, err := types.ParseLoopID(rej.LoopID); err == nil && t == r.opts.LoopType {
			r.res.Rejected = append(r.res.Rejected, rej)
		}
	}

	loops := r.ds.OfType(r.opts.LoopType)
	if len(loops) == 0 {
		return 0, fmt.Errorf("no %s loops in dataset: %w", r.opts.LoopType, ErrSkip)
	}
	for _, loop := range loops {
		inst, err := cluster.NewInstance(loop, r.ds.Frames, r.ds.Table, p.cfg.Search.Cutoff)
		if err != nil {
			r.invalid(loop.ID, err)
			continue
		}
		r.instances[loop.ID] = inst
		r.ordered = append(r.ordered, inst)
		r.res.Loops = append(r.res.Loops, loop.ID)
	}
	if len(r.ordered) == 0 {
		return 0, fmt.Errorf("all %d %s loops are invalid", len(loops), r.opts.LoopType)
	}
	return len(r.ordered), nil
}

func (p *Pipeline) search(ctx context.Context, r *run) (int, error) {
	var pairs []workers.Pair
	for _, a := range r.ordered {
		for _, b := range r.ordered {
			if a == b {
				continue
			}
			pairs = append(pairs, workers.Pair{Query: a.Loop.ID, Target: b.Loop.ID, TargetPDB: b.Loop.PDB()})
		}
	}

	backoff, err := p.cfg.BackoffDuration()
	if err != nil {
		return 0, err
	}
	wc := workers.Config{
		Jobs:       p.cfg.Workers.Jobs,
		MaxRetries: p.cfg.Workers.MaxRetries,
		Backoff:    backoff,
		CacheDir:   p.cacheDir(r.opts.LoopType),
	}
	pool := workers.New(wc, func(ctx context.Context, pr workers.Pair) (cluster.PairResult, error) {
		return cluster.Compare(ctx, p.searcher, r.instances[pr.Query], r.instances[pr.Target])
	})
	results, err := pool.Run(ctx, pairs)
	if err != nil {
		return 0, err
	}
	r.res.Pairs = results
	return len(results), nil
}

// cacheDir scopes the cache by loop type and cutoff, since both change the
// stored results.
func (p *Pipeline) cacheDir(t types.LoopType) string {
	if p.cfg.Workers.CacheDir == "" {
		return ""
	}
	cutoff := strconv.FormatFloat(p.cfg.Search.Cutoff, 'g', -1, 64)
	return filepath.Join(p.cfg.Workers.CacheDir, string(t), "cutoff-"+cutoff)
}

func (p *Pipeline) cluster(_ context.Context, r *run) (int, error) {
	r.matrices = cluster.BuildMatrices(r.res.Loops, r.res.Pairs)
	groups, err := cluster.Cluster(r.matrices, p.cfg.ClusterOptions())
	if err != nil {
		return 0, err
	}
	for i, g := range groups {
		r.res.Groups = append(r.res.Groups, types.NamedGroup{
			Name:     fmt.Sprintf("Group_%03d", i+1),
			LoopType: r.opts.LoopType,
			Members:  g,
		})
	}
	return len(groups), nil
}

func (p *Pipeline) align(_ context.Context, r *run) (int, error) {
	for i := range r.res.Groups {
		g := &r.res.Groups[i]
		a, err := cluster.Align(g.Members, r.matrices, r.instances)
		if err != nil {
			r.invalid(g.Name, err)
			continue
		}
		r.res.Alignments[g.Name] = a
		g.Signature = a.Signature
	}
	return len(r.res.Alignments), nil
}

func (p *Pipeline) name(ctx context.Context, r *run) (int, error) {
	parent, err := p.store.LatestRelease(ctx, r.opts.LoopType)
	if err != nil {
		return 0, fmt.Errorf("failed to load parent release: %w", err)
	}
	var parents []types.NamedGroup
	if parent != nil {
		parents = parent.Motifs
	}
	known, err := p.store.KnownHandles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load known handles: %w", err)
	}
	named, err := release.NewNamer(p.rng).Name(r.res.Groups, parents, known)
	if err != nil {
		return 0, err
	}
	r.res.Parent = parent
	r.res.Groups = named
	return len(named), nil
}

func (p *Pipeline) count(_ context.Context, r *run) (int, error) {
	var parents []types.NamedGroup
	if r.res.Parent != nil {
		parents = r.res.Parent.Motifs
	}
	r.res.Changes = release.GroupChanges(r.res.Groups, parents)
	r.res.LoopChanges = release.TransformedChanges(r.res.Groups, parents, release.Members)
	return len(r.res.Groups), nil
}

func (p *Pipeline) persist(ctx context.Context, r *run) (int, error) {
	prev := ""
	if r.res.Parent != nil {
		prev = r.res.Parent.ID
	}
	id, err := types.NextReleaseID(prev, r.opts.Mode)
	if err != nil {
		return 0, err
	}
	rel := &types.Release{
		ID:          id,
		LoopType:    r.opts.LoopType,
		Date:        time.Now().UTC(),
		Description: r.opts.Description,
		Motifs:      r.res.Groups,
	}
	if err := p.store.CreateRelease(ctx, rel); err != nil {
		return 0, err
	}
	r.res.Release = rel

	data := events.ReleaseCreatedData{ReleaseID: rel.ID, LoopType: string(rel.LoopType), Motifs: len(rel.Motifs)}
	for i := range rel.Motifs {
		switch rel.Motifs[i].Identity.Kind {
		case types.KindNew:
			data.New++
		case types.KindUpdated:
			data.Updated++
		case types.KindExact:
			data.Exact++
		}
	}
	p.record(ctx, func() (*events.PipelineEvent, error) {
		return events.NewReleaseCreatedEvent(r.res.RunID, fmt.Sprintf("release %s %s created", rel.LoopType, rel.ID), data)
	})
	return len(rel.Motifs), nil
}

func (p *Pipeline) writeCSV(_ context.Context, r *run) (int, error) {
	out := r.opts.OutputDir
	if out == "" {
		out = p.cfg.Release.OutputDir
	}
	if out == "" {
		return 0, fmt.Errorf("no output directory: %w", ErrSkip)
	}
	sub := string(r.opts.LoopType)
	if r.res.Release != nil {
		sub += "_" + r.res.Release.ID
	}
	dir := filepath.Join(out, sub)

	var tables csvio.Tables
	for i := range r.res.Groups {
		g := &r.res.Groups[i]
		a, ok := r.res.Alignments[g.Name]
		if !ok {
			continue
		}
		id := g.Name
		if g.Identity.Handle != "" {
			id = g.MotifID().String()
		}
		tables.AddGroup(id, g.Name, a)
	}
	if err := tables.WriteDir(dir); err != nil {
		return 0, err
	}
	r.res.OutputDir = dir
	return len(tables.List), nil
}

func (p *Pipeline) emit(ctx context.Context, r *run, typ events.EventType, stage string, severity events.EventSeverity, message string, data events.StageData) {
	p.record(ctx, func() (*events.PipelineEvent, error) {
		return events.NewStageEvent(r.res.RunID, typ, stage, severity, message, data)
	})
}

// record stores an event. Failures are logged and never fail the run.
func (p *Pipeline) record(ctx context.Context, build func() (*events.PipelineEvent, error)) {
	if p.store == nil || ctx.Err() != nil {
		return
	}
	event, err := build()
	if err != nil {
		slog.Warn("failed to build pipeline event", "error", err)
		return
	}
	if err := p.store.RecordEvent(ctx, event); err != nil {
		slog.Warn("failed to store pipeline event", "type", event.Type, "error", err)
	}
}

func (p *Pipeline) cleanupEvents(ctx context.Context) {
	ev := p.cfg.Events
	if p.store == nil || !ev.CleanupEnabled || ctx.Err() != nil {
		return
	}
	n, err := p.store.CleanupEvents(ctx, ev.RetentionDays, ev.RetentionCriticalDays, ev.CleanupBatchSize)
	if err != nil {
		slog.Warn("event cleanup failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("cleaned up old pipeline events", "deleted", n)
	}
}
