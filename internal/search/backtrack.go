package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/geometry"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// ErrSearchSpaceConflict is returned when the search space has fewer
// nucleotides than the query has positions.
var ErrSearchSpaceConflict = errors.New("search space smaller than query")

// Searcher finds candidate alignments of a query within a search space.
// Every returned candidate satisfies all symbolic constraints of the query,
// carries its discrepancy and has no disqualification codes.
type Searcher interface {
	Search(ctx context.Context, q *Query, space *SearchSpace) ([]types.Candidate, error)
}

// Backtracker is the in-process Searcher. It assigns query positions in
// order, checking each partial assignment against the interaction and order
// constraints and against a center distance bound implied by the cutoff,
// and scores complete assignments with the flip-tolerant discrepancy.
type Backtracker struct {
	// MaxCandidates stops the search after that many candidates; 0 is unlimited.
	MaxCandidates int
}

// NewBacktracker returns a Backtracker with no candidate limit.
func NewBacktracker() *Backtracker { return &Backtracker{} }

var _ Searcher = (*Backtracker)(nil)

// Search implements Searcher.
func (b *Backtracker) Search(ctx context.Context, q *Query, space *SearchSpace) ([]types.Candidate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	n, m := q.Len(), space.Len()
	if m < n {
		return nil, fmt.Errorf("%w: %s has %d nucleotides, query %s has %d",
			ErrSearchSpaceConflict, space.Name, m, q.LoopID, n)
	}

	qc, err := centers(q.Frames)
	if err != nil {
		return nil, err
	}
	sc, err := centers(space.Frames)
	if err != nil {
		return nil, err
	}

	// For a rigid superposition with center residuals eᵢ, eⱼ the distance
	// difference obeys (dq-ds)² <= 2(eᵢ²+eⱼ²) <= 2·SSE <= 2(n·cutoff)².
	tol := math.Sqrt2 * float64(n) * q.Cutoff

	s := &backtrack{
		q: q, space: space, qc: qc, sc: sc, tol: tol,
		assign: make([]int, n),
		used:   make([]bool, m),
		limit:  b.MaxCandidates,
	}
	if err := s.extend(ctx, 0); err != nil {
		return nil, err
	}
	sort.SliceStable(s.out, func(i, j int) bool { return s.out[i].Discrepancy < s.out[j].Discrepancy })
	return s.out, nil
}

type backtrack struct {
	q      *Query
	space  *SearchSpace
	qc, sc []types.Vec3
	tol    float64
	assign []int
	used   []bool
	limit  int
	out    []types.Candidate
}

var errLimit = errors.New("candidate limit reached")

func (s *backtrack) extend(ctx context.Context, p int) error {
	if p == len(s.assign) {
		return s.score()
	}
	if p <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	for a := range s.used {
		if s.used[a] || !s.consistent(p, a) {
			continue
		}
		s.assign[p] = a
		s.used[a] = true
		err := s.extend(ctx, p+1)
		s.used[a] = false
		if errors.Is(err, errLimit) {
			if p == 0 {
				return nil
			}
			return err
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *backtrack) consistent(p, a int) bool {
	for k := 0; k < p; k++ {
		b := s.assign[k]
		c := s.q.Constraints[k][p]
		switch c.Order {
		case OrderBefore:
			if b >= a {
				return false
			}
		case OrderAfter:
			if b <= a {
				return false
			}
		}
		if c.Interaction != "" && !contains(s.space.Interactions(b, a), c.Interaction) {
			return false
		}
		dq := s.qc[k].Sub(s.qc[p]).Norm()
		ds := s.sc[b].Sub(s.sc[a]).Norm()
		if math.Abs(dq-ds) > s.tol {
			return false
		}
	}
	return true
}

func (s *backtrack) score() error {
	n := len(s.assign)
	frames := make([]types.NucleotideFrame, n)
	for i, a := range s.assign {
		frames[i] = s.space.Frames[a]
	}
	d, ok, err := geometry.MatrixDiscrepancyCutoffFlip(s.q.Frames, frames, s.q.Cutoff, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	cand := types.Candidate{
		Indices:     append([]int(nil), s.assign...),
		Units:       make([]types.UnitID, n),
		QueryUnits:  append([]types.UnitID(nil), s.q.Units...),
		Discrepancy: d,
	}
	for i, a := range s.assign {
		cand.Units[i] = s.space.IndexToID[a]
	}
	s.out = append(s.out, cand)
	if s.limit > 0 && len(s.out) >= s.limit {
		return errLimit
	}
	return nil
}

func centers(frames []types.NucleotideFrame) ([]types.Vec3, error) {
	out := make([]types.Vec3, len(frames))
	for i, f := range frames {
		c, ok := f.Center(types.CenterBase)
		if !ok {
			return nil, fmt.Errorf("%w: %s", geometry.ErrMissingBase, f.Unit)
		}
		out[i] = c
	}
	return out, nil
}
