package cluster

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matched(a, b string, d float64) PairResult {
	return PairResult{Query: a, Target: b, Discrepancy: d}
}

func rejected(a, b string, d float64, codes ...types.DisqualificationCode) PairResult {
	return PairResult{Query: a, Target: b, Discrepancy: d, Codes: codes}
}

func TestBuildMatrices(t *testing.T) {
	m := BuildMatrices([]string{"A", "B", "C"}, []PairResult{
		matched("A", "B", 0.3),
		rejected("B", "A", 0.1, types.BPPenalty),
		rejected("A", "C", Sentinel, types.NoCandidates),
	})

	assert.True(t, m.Match[0][1])
	assert.True(t, m.Match[1][0])
	assert.Equal(t, 0.3, m.Disc[0][1], "only accepted directions count")
	assert.True(t, m.Codes[1][0].Has(types.BPPenalty))

	assert.False(t, m.Match[0][2])
	assert.Equal(t, Sentinel, m.Disc[2][0])
	assert.True(t, m.Codes[0][2].Has(types.NoCandidates))

	assert.False(t, m.Match[1][2], "missing results are unmatched")
	assert.Equal(t, Sentinel, m.Discrepancy("B", "C"))
	assert.Equal(t, 0.0, m.Disc[1][1])
	assert.True(t, m.Match[2][2])

	r, ok := m.Result("B", "A")
	require.True(t, ok)
	assert.False(t, r.Matched())
}

func symmetric(pairs ...PairResult) []PairResult {
	var out []PairResult
	for _, p := range pairs {
		out = append(out, p, PairResult{Query: p.Target, Target: p.Query, Discrepancy: p.Discrepancy, Codes: p.Codes})
	}
	return out
}

func TestMaxCliques(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		results []PairResult
		ratio   float64
		score   CliqueScore
		want    [][]string
	}{
		{
			name: "triangle then pair",
			ids:  []string{"A", "B", "C", "D", "E"},
			results: symmetric(
				matched("A", "B", 0.1), matched("A", "C", 0.1), matched("B", "C", 0.1),
				matched("C", "D", 0.1), matched("D", "E", 0.1),
			),
			ratio: 0.9,
			score: ScoreAverage,
			want:  [][]string{{"A", "B", "C"}, {"D", "E"}},
		},
		{
			name: "tighter clique of equal size wins",
			ids:  []string{"A", "B", "C", "D", "E"},
			results: symmetric(
				matched("A", "B", 0.5), matched("A", "C", 0.5), matched("B", "C", 0.5),
				matched("C", "D", 0.1), matched("C", "E", 0.1), matched("D", "E", 0.1),
			),
			ratio: 0.9,
			score: ScoreAverage,
			want:  [][]string{{"C", "D", "E"}, {"A", "B"}},
		},
		{
			name: "low ratio admits smaller tight clique",
			ids:  []string{"A", "B", "C", "D", "E", "F"},
			results: symmetric(
				matched("A", "B", 0.9), matched("A", "C", 0.9), matched("A", "D", 0.9),
				matched("B", "C", 0.9), matched("B", "D", 0.9), matched("C", "D", 0.9),
				matched("D", "E", 0.1), matched("D", "F", 0.1), matched("E", "F", 0.1),
			),
			ratio: 0.7,
			score: ScoreAverage,
			want:  [][]string{{"D", "E", "F"}, {"A", "B", "C"}},
		},
		{
			name: "high ratio keeps the largest",
			ids:  []string{"A", "B", "C", "D", "E", "F"},
			results: symmetric(
				matched("A", "B", 0.9), matched("A", "C", 0.9), matched("A", "D", 0.9),
				matched("B", "C", 0.9), matched("B", "D", 0.9), matched("C", "D", 0.9),
				matched("D", "E", 0.1), matched("D", "F", 0.1), matched("E", "F", 0.1),
			),
			ratio: 0.9,
			score: ScoreAverage,
			want:  [][]string{{"A", "B", "C", "D"}, {"E", "F"}},
		},
		{
			name: "max score",
			ids:  []string{"A", "B", "C", "D", "E"},
			results: symmetric(
				matched("A", "B", 0.1), matched("A", "C", 0.1), matched("B", "C", 0.7),
				matched("C", "D", 0.4), matched("C", "E", 0.4), matched("D", "E", 0.4),
			),
			ratio: 0.9,
			score: ScoreMax,
			want:  [][]string{{"C", "D", "E"}, {"A", "B"}},
		},
		{
			name:    "singletons last",
			ids:     []string{"A", "B", "C"},
			results: symmetric(matched("B", "C", 0.2), rejected("A", "B", Sentinel, types.NoCandidates)),
			ratio:   0.9,
			score:   ScoreAverage,
			want:    [][]string{{"B", "C"}, {"A"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildMatrices(tt.ids, tt.results)
			assert.Equal(t, tt.want, MaxCliques(m, tt.ratio, tt.score))
		})
	}
}

func TestMaxCliquesPartitions(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F", "G"}
	m := BuildMatrices(ids, symmetric(
		matched("A", "B", 0.2), matched("A", "C", 0.3), matched("B", "C", 0.1),
		matched("C", "D", 0.2), matched("D", "E", 0.2), matched("E", "F", 0.2),
		matched("D", "F", 0.3),
	))
	seen := make(map[string]int)
	for _, g := range MaxCliques(m, DefaultRatio, ScoreAverage) {
		for _, id := range g {
			seen[id]++
		}
	}
	assert.Len(t, seen, len(ids))
	for id, n := range seen {
		assert.Equal(t, 1, n, "loop %s", id)
	}
}

func TestHierarchical(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	m := BuildMatrices(ids, symmetric(matched("A", "B", 1), matched("B", "C", 2), matched("A", "C", 3)))

	assert.Equal(t, [][]string{{"A", "B", "C"}, {"D"}}, Hierarchical(m, LinkageAverage, DefaultThreshold))
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}, {"D"}}, Hierarchical(m, LinkageComplete, 2.8))
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}, {"D"}}, Hierarchical(m, LinkageAverage, 0.5))
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.Ratio = 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.Method = "kmeans"
	assert.Error(t, bad.Validate())

	h := DefaultOptions()
	h.Method = MethodHierarchical
	h.Linkage = "single"
	assert.Error(t, h.Validate())
	h.Linkage = LinkageComplete
	assert.NoError(t, h.Validate())

	_, err := Cluster(BuildMatrices(nil, nil), bad)
	assert.Error(t, err)
}

func rotZ(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func rotX(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

// hairpin builds a three nucleotide hairpin whose first and last bases
// pair and whose first two bases stack, placed by the rigid motion x -> r·x + t.
type hairpin struct {
	loop   *types.Loop
	frames map[types.UnitID]types.NucleotideFrame
	table  *search.InteractionTable
}

func newHairpin(t *testing.T, pdb string, centers []types.Vec3, r types.Mat3, shift types.Vec3) hairpin {
	t.Helper()
	rotations := []types.Mat3{types.Identity3(), rotZ(0.5), rotX(0.8)}
	seq := []string{"G", "A", "C"}
	h := hairpin{frames: make(map[types.UnitID]types.NucleotideFrame), table: search.NewInteractionTable()}
	var units []types.UnitID
	for i, c := range centers {
		u := types.UnitID(fmt.Sprintf("%s|1|A|%s|%d", pdb, seq[i], i+1))
		units = append(units, u)
		h.frames[u] = types.NucleotideFrame{
			Unit:     u,
			Centers:  map[string]types.Vec3{types.CenterBase: r.Apply(c).Add(shift)},
			Rotation: r.Mul(rotations[i]),
		}
	}
	loop, err := types.NewLoop("HL_"+pdb+"_001", [][]types.UnitID{units})
	require.NoError(t, err)
	h.loop = loop
	h.table.Add(units[0], units[2], []string{"cWW"}, 0)
	h.table.Add(units[0], units[1], []string{"s35"}, 0)
	return h
}

func (h hairpin) instance(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance(h.loop, h.frames, h.table, 0.5)
	require.NoError(t, err)
	return inst
}

var motifCenters = []types.Vec3{{0, 0, 0}, {4, 1, 0}, {2, 6, 1}}

func TestCompareDisqualifications(t *testing.T) {
	ctx := context.Background()
	s := search.NewBacktracker()
	a := newHairpin(t, "1ABC", motifCenters, types.Identity3(), types.Vec3{}).instance(t)

	t.Run("no candidates", func(t *testing.T) {
		far := newHairpin(t, "3FAR", []types.Vec3{{0, 0, 0}, {15, 0, 0}, {30, 0, 0}}, types.Identity3(), types.Vec3{}).instance(t)
		r, err := Compare(ctx, s, a, far)
		require.NoError(t, err)
		assert.Equal(t, []types.DisqualificationCode{types.NoCandidates}, r.Codes)
		assert.Equal(t, Sentinel, r.Discrepancy)
	})

	t.Run("search space conflict", func(t *testing.T) {
		small := newHairpin(t, "4SML", motifCenters, types.Identity3(), types.Vec3{})
		small.loop.Strands[0] = small.loop.Strands[0][:2]
		inst := small.instance(t)
		r, err := Compare(ctx, s, a, inst)
		require.NoError(t, err)
		assert.Equal(t, []types.DisqualificationCode{types.SearchSpaceConflict}, r.Codes)
	})

	t.Run("loop type mismatch", func(t *testing.T) {
		b := newHairpin(t, "5TYP", motifCenters, types.Identity3(), types.Vec3{}).instance(t)
		b.Loop = &types.Loop{ID: "IL_5TYP_001", Type: types.LoopInternal, Strands: b.Loop.Strands}
		r, err := Compare(ctx, s, a, b)
		require.NoError(t, err)
		assert.Equal(t, []types.DisqualificationCode{types.SizeMismatch}, r.Codes)
	})
}

func TestCompareFlankingMismatch(t *testing.T) {
	unit := func(pdb string, i int) types.UnitID { return types.UnitID(fmt.Sprintf("%s|1|A|G|%d", pdb, i)) }
	build := func(pdb string, paired bool) *Instance {
		u := []types.UnitID{unit(pdb, 1), unit(pdb, 2), unit(pdb, 3), unit(pdb, 10), unit(pdb, 11), unit(pdb, 12)}
		loop, err := types.NewLoop("IL_"+pdb+"_001", [][]types.UnitID{u[:3], u[3:]})
		require.NoError(t, err)
		frames := make(map[types.UnitID]types.NucleotideFrame)
		for i, id := range u {
			frames[id] = types.NucleotideFrame{
				Unit:     id,
				Centers:  map[string]types.Vec3{types.CenterBase: {float64(i%3) * 4, float64(i/3) * 10, float64(i%2) * 2}},
				Rotation: types.Identity3(),
			}
		}
		tbl := search.NewInteractionTable()
		if paired {
			tbl.Add(u[0], u[5], []string{"cWW"}, 0)
			tbl.Add(u[2], u[3], []string{"cWW"}, 0)
		}
		tbl.Add(u[1], u[4], []string{"tHS"}, 0)
		inst, err := NewInstance(loop, frames, tbl, 0.5)
		require.NoError(t, err)
		return inst
	}
	a := build("1ABC", true)
	b := build("2XYZ", false)
	require.NotNil(t, a.Flanking)

	r, err := Compare(context.Background(), search.NewBacktracker(), a, b)
	require.NoError(t, err)
	assert.Equal(t, []types.DisqualificationCode{types.FlankingMismatch}, r.Codes)

	r, err = Compare(context.Background(), search.NewBacktracker(), a, build("3DEF", true))
	require.NoError(t, err)
	assert.True(t, r.Matched(), "codes: %v", r.Codes)
	assert.Less(t, r.Discrepancy, 1e-6)
}

func TestRigidCopiesClusterTogether(t *testing.T) {
	ctx := context.Background()
	moved := rotZ(1.0).Mul(rotX(0.3))
	a := newHairpin(t, "1ABC", motifCenters, types.Identity3(), types.Vec3{}).instance(t)
	b := newHairpin(t, "2XYZ", motifCenters, moved, types.Vec3{12, -7, 3}).instance(t)
	c := newHairpin(t, "3FAR", []types.Vec3{{0, 0, 0}, {15, 0, 0}, {30, 0, 0}}, types.Identity3(), types.Vec3{}).instance(t)
	instances := []*Instance{a, b, c}

	results, err := AllAgainstAll(ctx, search.NewBacktracker(), instances)
	require.NoError(t, err)
	assert.Len(t, results, 6)

	ids := []string{a.Loop.ID, b.Loop.ID, c.Loop.ID}
	m := BuildMatrices(ids, results)
	require.True(t, m.Match[0][1])
	assert.Less(t, m.Disc[0][1], 1e-6)
	assert.False(t, m.Match[0][2])

	groups, err := Cluster(m, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{a.Loop.ID, b.Loop.ID}, {c.Loop.ID}}, groups)

	h := DefaultOptions()
	h.Method = MethodHierarchical
	groups, err = Cluster(m, h)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{a.Loop.ID, b.Loop.ID}, {c.Loop.ID}}, groups)

	byID := map[string]*Instance{a.Loop.ID: a, b.Loop.ID: b, c.Loop.ID: c}
	al, err := Align(groups[0], m, byID)
	require.NoError(t, err)
	assert.Equal(t, a.Loop.ID, al.Centroid)
	assert.Equal(t, []string{a.Loop.ID, b.Loop.ID}, al.Loops)
	assert.Equal(t, a.Loop.Units(), al.Positions[a.Loop.ID])
	assert.Equal(t, b.Loop.Units(), al.Positions[b.Loop.ID])
	assert.Equal(t, 2, al.SimilarityOrder[b.Loop.ID])
	assert.Equal(t, 1, al.OriginalOrder[a.Loop.ID])
	assert.Len(t, al.Mutual, 4)
	assert.Equal(t, "cWW", al.Signature)
}

func TestAlignErrors(t *testing.T) {
	m := BuildMatrices([]string{"A"}, nil)
	_, err := Align(nil, m, nil)
	assert.Error(t, err)
	_, err = Align([]string{"A"}, m, map[string]*Instance{})
	assert.Error(t, err)
}

func TestConsensusFamily(t *testing.T) {
	// 6*1 + 4*1 = 10 > 3*3
	assert.Equal(t, "cWW", consensusFamily(map[string]int{"cWW": 1}, map[string]int{"cWW": 1}, 3))
	// 6*1 = 6 is not > 9
	assert.Equal(t, "", consensusFamily(map[string]int{"cWW": 1}, nil, 3))
	assert.Equal(t, "tHS", consensusFamily(map[string]int{"cWW": 2, "tHS": 3}, nil, 3))
}
