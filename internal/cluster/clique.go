package cluster

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// CliqueScore selects how competing cliques are ranked.
type CliqueScore string

const (
	ScoreAverage CliqueScore = "average"
	ScoreMax     CliqueScore = "max"
)

// DefaultRatio admits cliques within 90% of the largest one's size.
const DefaultRatio = 0.9

// MaxCliques partitions the loops of m by greedily extracting the tightest
// large clique of the match graph: among the remaining cliques at least
// ratio times as large as the largest, the one with the lowest average (or
// maximum) pairwise discrepancy wins. Its members are removed from every
// other clique and the process repeats until only singletons remain, which
// are emitted last as groups of one.
func MaxCliques(m *Matrices, ratio float64, score CliqueScore) [][]string {
	g := simple.NewUndirectedGraph()
	for i := 0; i < m.Len(); i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for i := 0; i < m.Len(); i++ {
		for j := i + 1; j < m.Len(); j++ {
			if m.Match[i][j] {
				g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
			}
		}
	}

	var cliques [][]int
	for _, c := range topo.BronKerbosch(g) {
		members := make([]int, len(c))
		for k, n := range c {
			members[k] = int(n.ID())
		}
		sort.Ints(members)
		cliques = append(cliques, members)
	}

	assigned := make([]bool, m.Len())
	var groups [][]string
	for {
		cliques = pruneCliques(cliques, assigned)
		if len(cliques) == 0 {
			break
		}
		best := pickClique(m, cliques, ratio, score)
		for _, i := range best {
			assigned[i] = true
		}
		groups = append(groups, m.names(best))
	}
	for i := range assigned {
		if !assigned[i] {
			groups = append(groups, []string{m.IDs[i]})
		}
	}
	return groups
}

// pruneCliques drops assigned members, then cliques with fewer than two
// members and duplicates, and orders the rest by size then members.
func pruneCliques(cliques [][]int, assigned []bool) [][]int {
	seen := make(map[string]bool)
	var out [][]int
	for _, c := range cliques {
		var keep []int
		for _, i := range c {
			if !assigned[i] {
				keep = append(keep, i)
			}
		}
		if len(keep) < 2 {
			continue
		}
		key := cliqueKey(keep)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, keep)
	}
	sort.Slice(out, func(a, b int) bool {
		if len(out[a]) != len(out[b]) {
			return len(out[a]) > len(out[b])
		}
		return cliqueKey(out[a]) < cliqueKey(out[b])
	})
	return out
}

func cliqueKey(c []int) string {
	b := make([]byte, 0, 4*len(c))
	for _, i := range c {
		b = append(b, byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
	}
	return string(b)
}

// pickClique expects cliques sorted largest first.
func pickClique(m *Matrices, cliques [][]int, ratio float64, score CliqueScore) []int {
	largest := float64(len(cliques[0]))
	best, bestScore := cliques[0], m.cliqueScore(cliques[0], score)
	for _, c := range cliques[1:] {
		if float64(len(c)) < ratio*largest {
			break
		}
		if s := m.cliqueScore(c, score); s < bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func (m *Matrices) cliqueScore(c []int, score CliqueScore) float64 {
	var sum, worst float64
	pairs := 0
	for a := 0; a < len(c); a++ {
		for b := a + 1; b < len(c); b++ {
			d := m.Disc[c[a]][c[b]]
			sum += d
			if d > worst {
				worst = d
			}
			pairs++
		}
	}
	if score == ScoreMax {
		return worst
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func (m *Matrices) names(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = m.IDs[i]
	}
	return out
}
