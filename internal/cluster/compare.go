// Package cluster compares loop instances pairwise and groups them into
// motifs, either by greedy maximal clique extraction or by agglomerative
// linkage, then aligns each group onto a centroid instance.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/rna3dhub/motifatlas/internal/loops"
	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// Sentinel is the discrepancy recorded for pairs that did not match. It is
// far above any merge threshold so unmatched loops never join.
const Sentinel = 1e10

// Instance bundles everything needed to compare one loop with others.
type Instance struct {
	Loop     *types.Loop
	Query    *search.Query
	Flanking *search.Query // nil for hairpins
	Space    *search.SearchSpace
}

// NewInstance builds the query, flanking query and search space of a loop.
func NewInstance(loop *types.Loop, frames map[types.UnitID]types.NucleotideFrame, table *search.InteractionTable, cutoff float64) (*Instance, error) {
	q, err := loops.BuildQuery(loop, frames, table, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build query for %s: %w", loop.ID, err)
	}
	fq, err := loops.FlankingQuery(loop, frames, table, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build flanking query for %s: %w", loop.ID, err)
	}
	space, err := loops.BuildSearchSpace(loop, frames, table)
	if err != nil {
		return nil, fmt.Errorf("failed to build search space for %s: %w", loop.ID, err)
	}
	return &Instance{Loop: loop, Query: q, Flanking: fq, Space: space}, nil
}

// PairResult is the outcome of searching one loop's query in another
// loop's search space.
type PairResult struct {
	Query       string                      `json:"query"`
	Target      string                      `json:"target"`
	Discrepancy float64                     `json:"discrepancy"`
	Codes       []types.DisqualificationCode `json:"codes,omitempty"`

	// Correspondence maps query units to the target units they matched.
	Correspondence map[types.UnitID]types.UnitID `json:"correspondence,omitempty"`
}

// Matched reports whether the comparison produced an accepted candidate.
func (r PairResult) Matched() bool { return len(r.Codes) == 0 }

func disqualified(a, b *Instance, code types.DisqualificationCode) PairResult {
	return PairResult{
		Query:       a.Loop.ID,
		Target:      b.Loop.ID,
		Discrepancy: Sentinel,
		Codes:       []types.DisqualificationCode{code},
	}
}

// Compare searches a's query in b's search space. Multi-strand loops first
// run the cheaper flanking query and stop with FlankingMismatch if it finds
// nothing. Structural failures come back as codes on the result; only
// searcher failures are returned as errors.
func Compare(ctx context.Context, s search.Searcher, a, b *Instance) (PairResult, error) {
	if a.Loop.Type != b.Loop.Type {
		return disqualified(a, b, types.SizeMismatch), nil
	}

	if a.Flanking != nil {
		cands, err := s.Search(ctx, a.Flanking, b.Space)
		switch {
		case errors.Is(err, search.ErrSearchSpaceConflict):
			return disqualified(a, b, types.SearchSpaceConflict), nil
		case err != nil:
			return PairResult{}, fmt.Errorf("flanking search %s in %s failed: %w", a.Loop.ID, b.Loop.ID, err)
		case len(cands) == 0:
			return disqualified(a, b, types.FlankingMismatch), nil
		}
	}

	cands, err := s.Search(ctx, a.Query, b.Space)
	switch {
	case errors.Is(err, search.ErrSearchSpaceConflict):
		return disqualified(a, b, types.SearchSpaceConflict), nil
	case err != nil:
		return PairResult{}, fmt.Errorf("search %s in %s failed: %w", a.Loop.ID, b.Loop.ID, err)
	case len(cands) == 0:
		return disqualified(a, b, types.NoCandidates), nil
	}

	cands = search.FilterCandidates(cands, a.Query, b.Space)
	best := search.KeepLowestDiscrepancy(cands)[0]

	res := PairResult{
		Query:          a.Loop.ID,
		Target:         b.Loop.ID,
		Discrepancy:    best.Discrepancy,
		Codes:          best.Codes.Sorted(),
		Correspondence: make(map[types.UnitID]types.UnitID, len(best.Units)),
	}
	if len(res.Codes) == 0 {
		res.Codes = nil
	}
	for i, u := range best.QueryUnits {
		res.Correspondence[u] = best.Units[i]
	}
	return res, nil
}

// AllAgainstAll compares every ordered pair of distinct instances.
func AllAgainstAll(ctx context.Context, s search.Searcher, instances []*Instance) ([]PairResult, error) {
	var out []PairResult
	for _, a := range instances {
		for _, b := range instances {
			if a == b {
				continue
			}
			r, err := Compare(ctx, s, a, b)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}
