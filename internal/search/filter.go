package search

import (
	"sort"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// FilterCandidates adds disqualification codes to candidates that are
// geometrically close but structurally inconsistent with the query. Codes
// are only ever added, so filtering the same list again yields the same
// codes. The returned slice is the input sorted by ascending discrepancy.
//
// When the query has five positions and both the query loop and the search
// space have exactly one bulged nucleotide, the generic passes are skipped
// and only the identity of the two bulged bases is compared.
func FilterCandidates(cands []types.Candidate, q *Query, space *SearchSpace) []types.Candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Discrepancy < cands[j].Discrepancy })

	if singleBulge(q, space) {
		qb := q.Bulged[0].Sequence()
		sb := space.IndexToID[space.Bulged[0]].Sequence()
		if qb != sb {
			for i := range cands {
				cands[i].Codes.Add(types.MismatchedBulge)
			}
		}
		return cands
	}

	for i := range cands {
		conflictingBasepairsAndStacks(&cands[i], q, space)
		unmatchedInteractions(&cands[i], space)
	}
	return cands
}

func singleBulge(q *Query, space *SearchSpace) bool {
	return q.Len() == 5 && len(q.Bulged) == 1 && q.LoopBulges == 1 && len(space.Bulged) == 1
}

// conflictingBasepairsAndStacks compares, for every pair of query
// positions, the query's basepair or stack against the candidate's.
func conflictingBasepairsAndStacks(c *types.Candidate, q *Query, space *SearchSpace) {
	n := q.Len()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			qt := basepairOrStack(q.Interactions[i][j])
			ct := firstBasepairOrStack(space.Interactions(c.Indices[i], c.Indices[j]))
			if code, bad := Conflict(qt, ct); bad {
				c.Codes.Add(code)
			}
		}
	}
}

func basepairOrStack(t string) string {
	if IsBasepair(t) || IsAnyStack(t) {
		return t
	}
	return ""
}

// Conflict applies the basepair/stack compatibility rules to a query code
// and a candidate code, each either "" or a basepair or stacking code.
// Stacks of any kind are compatible with each other and with nothing; a
// stack against a basepair is a BasestackMismatch; two different non-stack
// codes, including a basepair against nothing, are a BasepairMismatch.
func Conflict(a, b string) (types.DisqualificationCode, bool) {
	if a == b {
		return 0, false
	}
	sa, sb := IsAnyStack(a), IsAnyStack(b)
	switch {
	case sa && sb:
		return 0, false
	case (sa && b == "") || (sb && a == ""):
		return 0, false
	case sa || sb:
		return types.BasestackMismatch, true
	}
	return types.BasepairMismatch, true
}

// unmatchedInteractions penalizes candidates whose unmatched search space
// nucleotides basepair with anything in the space or stack on more than
// one matched nucleotide.
func unmatchedInteractions(c *types.Candidate, space *SearchSpace) {
	matched := make(map[int]bool, len(c.Indices))
	for _, idx := range c.Indices {
		matched[idx] = true
	}

	for u := 0; u < space.Len(); u++ {
		if matched[u] {
			continue
		}
		stacks := 0
		for v := 0; v < space.Len(); v++ {
			if v == u {
				continue
			}
			if !matched[v] && v < u {
				// unmatched pairs are inspected once, from the lower index
				continue
			}
			for _, code := range space.Interactions(u, v) {
				switch {
				case IsBasepair(code):
					c.Codes.Add(types.BPPenalty)
				case IsNearBasepair(code):
					c.Codes.Add(types.NearBPPenalty)
				case IsStack(code) && matched[v]:
					stacks++
				}
			}
		}
		if stacks > 1 {
			c.Codes.Add(types.StackPenalty)
		}
	}
}

// KeepLowestDiscrepancy returns the lowest discrepancy candidate without
// disqualification codes. If every candidate is disqualified it returns the
// lowest discrepancy disqualified one, so the caller can report why the
// match failed. It returns nil for no candidates.
func KeepLowestDiscrepancy(cands []types.Candidate) []types.Candidate {
	bestClean, bestDQ := -1, -1
	for i := range cands {
		if cands[i].Accepted() {
			if bestClean < 0 || cands[i].Discrepancy < cands[bestClean].Discrepancy {
				bestClean = i
			}
		} else if bestDQ < 0 || cands[i].Discrepancy < cands[bestDQ].Discrepancy {
			bestDQ = i
		}
	}
	switch {
	case bestClean >= 0:
		return []types.Candidate{cands[bestClean]}
	case bestDQ >= 0:
		return []types.Candidate{cands[bestDQ]}
	}
	return nil
}
