package cluster

import (
	"math"
	"sort"
)

// Linkage is the inter-cluster distance of agglomerative clustering.
type Linkage string

const (
	LinkageAverage  Linkage = "average"
	LinkageComplete Linkage = "complete"
)

// DefaultThreshold stops merging before any disqualified pair is joined.
const DefaultThreshold = 10.0

// Hierarchical merges the closest pair of clusters while their linkage
// distance is below threshold. Groups come back largest first.
func Hierarchical(m *Matrices, linkage Linkage, threshold float64) [][]string {
	clusters := make([][]int, m.Len())
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > 1 {
		bi, bj, best := -1, -1, math.Inf(1)
		for i := range clusters {
			for j := i + 1; j < len(clusters); j++ {
				if d := m.linkage(clusters[i], clusters[j], linkage); d < best {
					bi, bj, best = i, j, d
				}
			}
		}
		if best >= threshold {
			break
		}
		merged := append(append([]int(nil), clusters[bi]...), clusters[bj]...)
		sort.Ints(merged)
		clusters[bi] = merged
		clusters = append(clusters[:bj], clusters[bj+1:]...)
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		if len(clusters[a]) != len(clusters[b]) {
			return len(clusters[a]) > len(clusters[b])
		}
		return clusters[a][0] < clusters[b][0]
	})
	groups := make([][]string, len(clusters))
	for k, c := range clusters {
		groups[k] = m.names(c)
	}
	return groups
}

func (m *Matrices) linkage(a, b []int, linkage Linkage) float64 {
	var sum, worst float64
	for _, i := range a {
		for _, j := range b {
			d := m.Disc[i][j]
			sum += d
			if d > worst {
				worst = d
			}
		}
	}
	if linkage == LinkageComplete {
		return worst
	}
	return sum / float64(len(a)*len(b))
}
