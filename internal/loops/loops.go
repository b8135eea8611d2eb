// Package loops turns loop records into the query and search space
// structures used by pairwise search: strand parsing from the position
// exchange format, bulge detection and query construction.
package loops

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// ErrMissingFrame is returned when a loop nucleotide has no frame.
var ErrMissingFrame = errors.New("missing nucleotide frame")

// Position is one entry of the loop exchange format.
type Position struct {
	Boundary bool
	Unit     types.UnitID
}

// ParseStrands cuts the flat, position-keyed list of a loop into strands.
// The first and last nucleotide of every strand carry the boundary flag;
// the second flag seen closes the current strand and opens the next.
func ParseStrands(positions map[int]Position) ([][]types.UnitID, error) {
	keys := make([]int, 0, len(positions))
	for k := range positions {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var strands [][]types.UnitID
	var cur []types.UnitID
	flags := 0
	for _, k := range keys {
		p := positions[k]
		cur = append(cur, p.Unit)
		if !p.Boundary {
			continue
		}
		flags++
		if flags == 2 {
			strands = append(strands, cur)
			cur, flags = nil, 0
		}
	}
	if len(cur) > 0 {
		return nil, fmt.Errorf("strand starting at %s is not closed by a boundary flag", cur[0])
	}
	if len(strands) == 0 {
		return nil, errors.New("no strands found")
	}
	return strands, nil
}

// Bulged returns the loop's units that make no basepair, near basepair,
// stack or near stack with any other nucleotide of the loop, in loop order.
func Bulged(loop *types.Loop, table *search.InteractionTable) []types.UnitID {
	units := loop.Units()
	var out []types.UnitID
	for _, u := range units {
		bulged := true
		for _, v := range units {
			if u == v {
				continue
			}
			if table.Interacts(u, v, qualifying) {
				bulged = false
				break
			}
		}
		if bulged {
			out = append(out, u)
		}
	}
	return out
}

func qualifying(code string) bool {
	return search.IsBasepair(code) || search.IsNearBasepair(code) || search.IsAnyStack(code)
}

func framesFor(loop *types.Loop, units []types.UnitID, frames map[types.UnitID]types.NucleotideFrame) ([]types.NucleotideFrame, error) {
	out := make([]types.NucleotideFrame, len(units))
	for i, u := range units {
		f, ok := frames[u]
		if !ok {
			return nil, fmt.Errorf("%w: %s in loop %s", ErrMissingFrame, u, loop.ID)
		}
		out[i] = f
	}
	return out, nil
}

// BuildQuery builds the search query for a loop. Bulged nucleotides are
// left out, except that a five nucleotide loop with a single bulge keeps
// it. If fewer than two nucleotides would remain, all are kept.
//
// Basepairs between query positions become required interactions;
// consecutive positions on the same strand must keep their order. Stacks
// are recorded as observed interactions for candidate filtering only.
func BuildQuery(loop *types.Loop, frames map[types.UnitID]types.NucleotideFrame, table *search.InteractionTable, cutoff float64) (*search.Query, error) {
	units := loop.Units()
	bulged := Bulged(loop, table)
	isBulged := make(map[types.UnitID]bool, len(bulged))
	for _, b := range bulged {
		isBulged[b] = true
	}

	keep := units
	if !(len(units) == 5 && len(bulged) == 1) {
		keep = nil
		for _, u := range units {
			if !isBulged[u] {
				keep = append(keep, u)
			}
		}
		if len(keep) < 2 {
			keep = units
		}
	}

	fs, err := framesFor(loop, keep, frames)
	if err != nil {
		return nil, err
	}
	q := search.NewQuery(loop.ID, fs, cutoff)
	q.LoopBulges = len(bulged)
	for _, u := range keep {
		if isBulged[u] {
			q.Bulged = append(q.Bulged, u)
		}
	}

	strandOf := loop.StrandOf()
	for i := range keep {
		for j := i + 1; j < len(keep); j++ {
			code := table.BasepairOrStack(keep[i], keep[j])
			if code != "" {
				q.SetInteraction(i, j, code)
			}
			c := search.Constraint{}
			if search.IsBasepair(code) {
				c.Interaction = code
			}
			if j == i+1 && strandOf[keep[i]] == strandOf[keep[j]] {
				c.Order = search.OrderBefore
			}
			if !c.Empty() {
				q.SetConstraint(i, j, c)
			}
		}
	}
	return q, q.Validate()
}

// FlankingUnits returns the nucleotides closing each strand of a
// multi-strand loop, in loop order, and the flanking pairs between them:
// the last nucleotide of each strand with the first of the next, and the
// last of the final strand with the first of the first.
func FlankingUnits(loop *types.Loop) ([]types.UnitID, [][2]types.UnitID) {
	if len(loop.Strands) < 2 {
		return nil, nil
	}
	var units []types.UnitID
	seen := make(map[types.UnitID]bool)
	add := func(u types.UnitID) {
		if !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}
	var pairs [][2]types.UnitID
	for k, s := range loop.Strands {
		add(s[0])
		add(s[len(s)-1])
		next := loop.Strands[(k+1)%len(loop.Strands)]
		pairs = append(pairs, [2]types.UnitID{s[len(s)-1], next[0]})
	}
	return units, pairs
}

// FlankingQuery builds the cheap pre-check query made of the flanking
// nucleotides of a multi-strand loop and the basepairs between them. It
// returns nil for hairpins.
func FlankingQuery(loop *types.Loop, frames map[types.UnitID]types.NucleotideFrame, table *search.InteractionTable, cutoff float64) (*search.Query, error) {
	units, pairs := FlankingUnits(loop)
	if len(units) < 2 {
		return nil, nil
	}
	fs, err := framesFor(loop, units, frames)
	if err != nil {
		return nil, err
	}
	q := search.NewQuery(loop.ID+"/flanking", fs, cutoff)
	index := make(map[types.UnitID]int, len(units))
	for i, u := range units {
		index[u] = i
	}
	for _, p := range pairs {
		i, j := index[p[0]], index[p[1]]
		if i > j {
			i, j = j, i
		}
		code := table.BasepairOrStack(units[i], units[j])
		if search.IsBasepair(code) {
			q.SetInteraction(i, j, code)
			q.SetConstraint(i, j, search.Constraint{Interaction: code})
		}
	}
	strandOf := loop.StrandOf()
	for i := 0; i+1 < len(units); i++ {
		if strandOf[units[i]] == strandOf[units[i+1]] {
			c := q.Constraints[i][i+1]
			c.Order = search.OrderBefore
			q.SetConstraint(i, i+1, c)
		}
	}
	return q, q.Validate()
}

// BuildSearchSpace indexes all nucleotides of a loop, bulges included, in
// loop order.
func BuildSearchSpace(loop *types.Loop, frames map[types.UnitID]types.NucleotideFrame, table *search.InteractionTable) (*search.SearchSpace, error) {
	units := loop.Units()
	fs, err := framesFor(loop, units, frames)
	if err != nil {
		return nil, err
	}
	space := search.NewSearchSpace(loop.ID, fs, table)
	for _, b := range Bulged(loop, table) {
		space.Bulged = append(space.Bulged, space.IDToIndex[b])
	}
	return space, space.Validate()
}
