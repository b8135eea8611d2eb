package cluster

import (
	"math"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// Matrices holds the pairwise comparison outcome of a set of loops,
// indexed like IDs.
type Matrices struct {
	IDs []string

	// Match[i][j] is true when either direction produced an accepted match.
	Match [][]bool
	// Disc[i][j] is the lower discrepancy of the accepted directions, or
	// Sentinel when neither direction matched.
	Disc [][]float64
	// Codes[i][j] is the union of both directions' disqualifications.
	Codes [][]types.CodeSet

	index   map[string]int
	results map[[2]string]PairResult
}

// BuildMatrices arranges results over ids. Pairs without a result in
// either direction are unmatched.
func BuildMatrices(ids []string, results []PairResult) *Matrices {
	n := len(ids)
	m := &Matrices{
		IDs:     append([]string(nil), ids...),
		Match:   make([][]bool, n),
		Disc:    make([][]float64, n),
		Codes:   make([][]types.CodeSet, n),
		index:   make(map[string]int, n),
		results: make(map[[2]string]PairResult, len(results)),
	}
	for i, id := range ids {
		m.index[id] = i
		m.Match[i] = make([]bool, n)
		m.Disc[i] = make([]float64, n)
		m.Codes[i] = make([]types.CodeSet, n)
	}
	for _, r := range results {
		m.results[[2]string{r.Query, r.Target}] = r
	}

	for i := 0; i < n; i++ {
		m.Match[i][i] = true
		for j := i + 1; j < n; j++ {
			disc := math.Inf(1)
			var codes types.CodeSet
			for _, key := range [][2]string{{ids[i], ids[j]}, {ids[j], ids[i]}} {
				r, ok := m.results[key]
				if !ok {
					continue
				}
				for _, c := range r.Codes {
					codes.Add(c)
				}
				if r.Matched() && r.Discrepancy < disc {
					disc = r.Discrepancy
				}
			}
			matched := !math.IsInf(disc, 1)
			if !matched {
				disc = Sentinel
			}
			m.Match[i][j], m.Match[j][i] = matched, matched
			m.Disc[i][j], m.Disc[j][i] = disc, disc
			m.Codes[i][j], m.Codes[j][i] = codes, codes
		}
	}
	return m
}

// Len returns the number of loops.
func (m *Matrices) Len() int { return len(m.IDs) }

// Index returns the row of a loop id.
func (m *Matrices) Index(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// Result returns the search result of query in target.
func (m *Matrices) Result(query, target string) (PairResult, bool) {
	r, ok := m.results[[2]string{query, target}]
	return r, ok
}

// Discrepancy returns the matrix discrepancy between two loop ids.
func (m *Matrices) Discrepancy(a, b string) float64 {
	i, ok1 := m.index[a]
	j, ok2 := m.index[b]
	if !ok1 || !ok2 {
		return Sentinel
	}
	return m.Disc[i][j]
}
