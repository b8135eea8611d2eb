package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// MutualDiscrepancy is one entry of a group's discrepancy table.
type MutualDiscrepancy struct {
	Loop1       string
	Discrepancy float64
	Loop2       string
}

// Alignment is a motif group aligned onto its centroid's core positions.
type Alignment struct {
	Centroid string

	// Loops lists the members in similarity order, centroid first.
	Loops []string
	// OriginalOrder and SimilarityOrder are 1-based positions of each loop
	// in the input group and in Loops.
	OriginalOrder   map[string]int
	SimilarityOrder map[string]int

	// Positions[loop][p] is the unit aligned to the centroid's p-th core
	// position, or "" when the loop has no counterpart.
	Positions map[string][]types.UnitID

	Mutual    []MutualDiscrepancy
	Signature string
}

// Align picks the group's centroid and maps every member onto it. The
// centroid matches the most members; ties go to the larger core, then the
// lower total discrepancy, then the smaller id.
func Align(group []string, m *Matrices, instances map[string]*Instance) (*Alignment, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("cannot align an empty group")
	}
	for _, id := range group {
		if _, ok := instances[id]; !ok {
			return nil, fmt.Errorf("no instance for loop %s", id)
		}
		if _, ok := m.Index(id); !ok {
			return nil, fmt.Errorf("loop %s is not in the comparison matrix", id)
		}
	}

	centroid := pickCentroid(group, m, instances)
	a := &Alignment{
		Centroid:        centroid,
		OriginalOrder:   make(map[string]int, len(group)),
		SimilarityOrder: make(map[string]int, len(group)),
		Positions:       make(map[string][]types.UnitID, len(group)),
	}
	for k, id := range group {
		a.OriginalOrder[id] = k + 1
	}

	a.Loops = similarityOrder(group, centroid, m)
	for k, id := range a.Loops {
		a.SimilarityOrder[id] = k + 1
	}

	core := instances[centroid].Query.Units
	for _, id := range a.Loops {
		a.Positions[id] = alignTo(core, centroid, id, m)
	}

	for _, l1 := range a.Loops {
		for _, l2 := range a.Loops {
			a.Mutual = append(a.Mutual, MutualDiscrepancy{Loop1: l1, Discrepancy: m.Discrepancy(l1, l2), Loop2: l2})
		}
	}

	a.Signature = signature(a, instances)
	return a, nil
}

func pickCentroid(group []string, m *Matrices, instances map[string]*Instance) string {
	type rank struct {
		id      string
		matches int
		core    int
		total   float64
	}
	ranks := make([]rank, len(group))
	for k, id := range group {
		r := rank{id: id, core: instances[id].Query.Len()}
		for _, other := range group {
			if other == id {
				continue
			}
			if res, ok := m.Result(id, other); ok && res.Matched() {
				r.matches++
			}
			r.total += m.Discrepancy(id, other)
		}
		ranks[k] = r
	}
	sort.Slice(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if a.matches != b.matches {
			return a.matches > b.matches
		}
		if a.core != b.core {
			return a.core > b.core
		}
		if a.total != b.total {
			return a.total < b.total
		}
		return a.id < b.id
	})
	return ranks[0].id
}

// similarityOrder chains members by repeatedly taking the loop closest to
// the last one placed, starting from the centroid.
func similarityOrder(group []string, centroid string, m *Matrices) []string {
	rest := make([]string, 0, len(group)-1)
	for _, id := range group {
		if id != centroid {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)

	out := []string{centroid}
	last := centroid
	for len(rest) > 0 {
		bi := 0
		for k := 1; k < len(rest); k++ {
			if m.Discrepancy(last, rest[k]) < m.Discrepancy(last, rest[bi]) {
				bi = k
			}
		}
		last = rest[bi]
		out = append(out, last)
		rest = append(rest[:bi], rest[bi+1:]...)
	}
	return out
}

// alignTo maps the centroid's core units onto loop id using the accepted
// search in either direction.
func alignTo(core []types.UnitID, centroid, id string, m *Matrices) []types.UnitID {
	out := make([]types.UnitID, len(core))
	if id == centroid {
		copy(out, core)
		return out
	}
	if r, ok := m.Result(centroid, id); ok && r.Matched() {
		for p, u := range core {
			out[p] = r.Correspondence[u]
		}
		return out
	}
	if r, ok := m.Result(id, centroid); ok && r.Matched() {
		inverse := make(map[types.UnitID]types.UnitID, len(r.Correspondence))
		for q, t := range r.Correspondence {
			inverse[t] = q
		}
		for p, u := range core {
			out[p] = inverse[u]
		}
	}
	return out
}

// signature lists the consensus basepairs between core positions. A family
// is consensus when 6T + 4N > 3L, with T true and N near instances of it
// among the L aligned loops.
func signature(a *Alignment, instances map[string]*Instance) string {
	n := len(a.Positions[a.Centroid])
	total := len(a.Loops)
	var parts []string
	for p := 0; p < n; p++ {
		for q := p + 1; q < n; q++ {
			trueCount := make(map[string]int)
			nearCount := make(map[string]int)
			for _, id := range a.Loops {
				u, v := a.Positions[id][p], a.Positions[id][q]
				if u == "" || v == "" {
					continue
				}
				space := instances[id].Space
				i, ok1 := space.IDToIndex[u]
				j, ok2 := space.IDToIndex[v]
				if !ok1 || !ok2 {
					continue
				}
				for _, code := range space.Interactions(i, j) {
					switch {
					case search.IsBasepair(code):
						trueCount[code]++
					case search.IsNearBasepair(code):
						nearCount[code[1:]]++
					}
				}
			}
			if fam := consensusFamily(trueCount, nearCount, total); fam != "" {
				parts = append(parts, fam)
			}
		}
	}
	return strings.Join(parts, "-")
}

func consensusFamily(trueCount, nearCount map[string]int, total int) string {
	families := make([]string, 0, len(trueCount)+len(nearCount))
	for f := range trueCount {
		families = append(families, f)
	}
	for f := range nearCount {
		if _, ok := trueCount[f]; !ok {
			families = append(families, f)
		}
	}
	sort.Strings(families)

	best, bestScore := "", 0
	for _, f := range families {
		score := 6*trueCount[f] + 4*nearCount[f]
		if score > 3*total && score > bestScore {
			best, bestScore = f, score
		}
	}
	return best
}
