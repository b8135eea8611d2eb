package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rna3dhub/motifatlas/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(i int, seq string) types.UnitID {
	return types.UnitID(fmt.Sprintf("1ABC|1|A|%s|%d", seq, i))
}

func rotZ(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func rotX(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func frame(u types.UnitID, c types.Vec3, r types.Mat3) types.NucleotideFrame {
	return types.NucleotideFrame{Unit: u, Centers: map[string]types.Vec3{types.CenterBase: c}, Rotation: r}
}

// plainFrames returns frames whose geometry is irrelevant to the test.
func plainFrames(units ...types.UnitID) []types.NucleotideFrame {
	out := make([]types.NucleotideFrame, len(units))
	for i, u := range units {
		out[i] = frame(u, types.Vec3{float64(i) * 5, 0, 0}, types.Identity3())
	}
	return out
}

func TestReverse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cWW", "cWW"},
		{"cWH", "cHW"},
		{"tSH", "tHS"},
		{"ncSW", "ncWS"},
		{"s35", "s53"},
		{"ns53", "ns35"},
		{"s33", "s33"},
		{"ns55", "ns55"},
		{"2BPh", ""},
		{"0BR", ""},
		{"", ""},
		{"bogus", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Reverse(tt.in))
		})
	}
}

func TestInteractionPredicates(t *testing.T) {
	assert.True(t, IsBasepair("cWW"))
	assert.True(t, IsBasepair("tHS"))
	assert.False(t, IsBasepair("ncWW"))
	assert.True(t, IsNearBasepair("ncWW"))
	assert.False(t, IsNearBasepair("cWW"))
	assert.True(t, IsStack("s35"))
	assert.False(t, IsStack("ns35"))
	assert.True(t, IsNearStack("ns35"))
	assert.True(t, IsAnyStack("ns33"))
	assert.True(t, IsBasePhosphate("3BPh"))
	assert.True(t, IsBaseRibose("1BR"))
	assert.True(t, IsKnown("tSS"))
	assert.False(t, IsKnown("xyz"))
}

func TestInteractionTableStoresBothDirections(t *testing.T) {
	tbl := NewInteractionTable()
	a, b := unit(1, "G"), unit(2, "C")
	tbl.Add(a, b, []string{"cWH", "s35", "3BPh"}, 1)

	assert.Equal(t, []string{"cWH", "s35", "3BPh"}, tbl.Get(a, b))
	assert.Equal(t, []string{"cHW", "s53"}, tbl.Get(b, a))
	c, ok := tbl.Crossing(b, a)
	assert.True(t, ok)
	assert.Equal(t, 1, c)
	assert.Equal(t, "cWH", tbl.BasepairOrStack(a, b))
	assert.True(t, tbl.Interacts(b, a, IsAnyStack))
	assert.False(t, tbl.Interacts(a, b, IsNearBasepair))

	tbl.Add(a, b, []string{"cWH"}, 1)
	assert.Len(t, tbl.Get(a, b), 3, "duplicate codes are not stored twice")
}

func TestConflictRules(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		want   types.DisqualificationCode
		reject bool
	}{
		{"both empty", "", "", 0, false},
		{"same basepair", "cWW", "cWW", 0, false},
		{"stack variants", "s35", "ns53", 0, false},
		{"stack vs empty", "s33", "", 0, false},
		{"empty vs stack", "", "ns55", 0, false},
		{"stack vs basepair", "s35", "cWW", types.BasestackMismatch, true},
		{"basepair vs stack", "tHS", "s53", types.BasestackMismatch, true},
		{"different basepairs", "cWW", "tWW", types.BasepairMismatch, true},
		{"basepair vs empty", "cWW", "", types.BasepairMismatch, true},
		{"empty vs basepair", "", "cSH", types.BasepairMismatch, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, bad := Conflict(tt.a, tt.b)
			assert.Equal(t, tt.reject, bad)
			assert.Equal(t, tt.want, code)
			rc, rbad := Conflict(tt.b, tt.a)
			assert.Equal(t, bad, rbad, "rules are symmetric")
			assert.Equal(t, code, rc)
		})
	}
}

func TestQueryValidate(t *testing.T) {
	q := NewQuery("IL_1ABC_001", plainFrames(unit(1, "G"), unit(2, "C")), 0.5)
	require.NoError(t, q.Validate())

	short := NewQuery("IL_1ABC_001", plainFrames(unit(1, "G")), 0.5)
	assert.ErrorIs(t, short.Validate(), ErrInvalidQuery)

	zero := NewQuery("IL_1ABC_001", plainFrames(unit(1, "G"), unit(2, "C")), 0)
	assert.ErrorIs(t, zero.Validate(), ErrInvalidQuery)

	mixed := NewQuery("IL_1ABC_001", plainFrames(unit(1, "G"), unit(2, "C")), 0.5)
	mixed.Units[1] = unit(9, "A")
	assert.ErrorIs(t, mixed.Validate(), ErrInvalidQuery)
}

func TestQuerySetConstraintIsSymmetric(t *testing.T) {
	q := NewQuery("IL_1ABC_001", plainFrames(unit(1, "G"), unit(2, "C"), unit(3, "A")), 0.5)
	q.SetConstraint(0, 2, Constraint{Interaction: "cWH", Order: OrderBefore})
	assert.Equal(t, Constraint{Interaction: "cHW", Order: OrderAfter}, q.Constraints[2][0])
	q.SetInteraction(1, 2, "s35")
	assert.Equal(t, "s53", q.Interactions[2][1])
}

func TestSearchSpaceValidate(t *testing.T) {
	s := NewSearchSpace("1ABC", plainFrames(unit(1, "G"), unit(2, "C")), nil)
	require.NoError(t, s.Validate())

	s.Bulged = []int{5}
	assert.Error(t, s.Validate())

	dup := NewSearchSpace("1ABC", plainFrames(unit(1, "G"), unit(1, "G")), nil)
	assert.Error(t, dup.Validate())
}

// motifFrames is an asymmetric three nucleotide arrangement.
func motifFrames() []types.NucleotideFrame {
	return []types.NucleotideFrame{
		frame(unit(1, "G"), types.Vec3{0, 0, 0}, types.Identity3()),
		frame(unit(2, "A"), types.Vec3{5, 0, 0}, rotZ(0.7)),
		frame(unit(3, "C"), types.Vec3{1, 7, 2}, rotX(1.1)),
	}
}

func rigidCopy(frames []types.NucleotideFrame, first int) []types.NucleotideFrame {
	r := rotX(0.4).Mul(rotZ(1.3))
	shift := types.Vec3{10, -3, 4}
	out := make([]types.NucleotideFrame, len(frames))
	for i, f := range frames {
		c, _ := f.Center(types.CenterBase)
		out[i] = frame(unit(first+i, f.Unit.Sequence()), r.Apply(c).Add(shift), r.Mul(f.Rotation))
	}
	return out
}

func TestBacktrackerFindsRigidCopy(t *testing.T) {
	q := NewQuery("HL_1ABC_001", motifFrames(), 0.5)
	q.SetConstraint(0, 1, Constraint{Order: OrderBefore})
	q.SetConstraint(1, 2, Constraint{Order: OrderBefore})

	cp := rigidCopy(motifFrames(), 20)
	decoy := func(i int, x float64) types.NucleotideFrame {
		return frame(unit(i, "U"), types.Vec3{x, 100, 100}, types.Identity3())
	}
	space := NewSearchSpace("HL_2XYZ_001",
		[]types.NucleotideFrame{decoy(10, 0), cp[0], cp[1], decoy(11, 40), cp[2]}, nil)

	cands, err := NewBacktracker().Search(context.Background(), q, space)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	best := cands[0]
	assert.Equal(t, []int{1, 2, 4}, best.Indices)
	assert.Less(t, best.Discrepancy, 1e-6)
	assert.True(t, best.Accepted())
	assert.Equal(t, q.Units, best.QueryUnits)
	assert.Equal(t, cp[1].Unit, best.Units[1])
	for i := 1; i < len(cands); i++ {
		assert.LessOrEqual(t, cands[i-1].Discrepancy, cands[i].Discrepancy)
	}
}

func TestBacktrackerRequiresInteractions(t *testing.T) {
	q := NewQuery("HL_1ABC_001", motifFrames(), 0.5)
	q.SetConstraint(0, 2, Constraint{Interaction: "cWW"})

	cp := rigidCopy(motifFrames(), 20)
	none := NewSearchSpace("HL_2XYZ_001", cp, NewInteractionTable())
	cands, err := NewBacktracker().Search(context.Background(), q, none)
	require.NoError(t, err)
	assert.Empty(t, cands)

	tbl := NewInteractionTable()
	tbl.Add(cp[0].Unit, cp[2].Unit, []string{"cWW"}, 0)
	paired := NewSearchSpace("HL_2XYZ_001", cp, tbl)
	cands, err = NewBacktracker().Search(context.Background(), q, paired)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, []int{0, 1, 2}, cands[0].Indices)
}

func TestBacktrackerSearchSpaceConflict(t *testing.T) {
	q := NewQuery("HL_1ABC_001", motifFrames(), 0.5)
	space := NewSearchSpace("HL_2XYZ_001", rigidCopy(motifFrames(), 20)[:2], nil)
	_, err := NewBacktracker().Search(context.Background(), q, space)
	assert.True(t, errors.Is(err, ErrSearchSpaceConflict))
}

func TestBacktrackerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewQuery("HL_1ABC_001", motifFrames(), 0.5)
	space := NewSearchSpace("HL_2XYZ_001", rigidCopy(motifFrames(), 20), nil)
	_, err := NewBacktracker().Search(ctx, q, space)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktrackerCandidateLimit(t *testing.T) {
	frames := []types.NucleotideFrame{
		frame(unit(1, "G"), types.Vec3{0, 0, 0}, types.Identity3()),
		frame(unit(2, "C"), types.Vec3{5, 0, 0}, types.Identity3()),
	}
	q := NewQuery("HL_1ABC_001", frames, 10)
	var sf []types.NucleotideFrame
	for i := 0; i < 6; i++ {
		sf = append(sf, frame(unit(10+i, "A"), types.Vec3{float64(i) * 5, 0, 0}, types.Identity3()))
	}
	space := NewSearchSpace("HL_2XYZ_001", sf, nil)
	cands, err := (&Backtracker{MaxCandidates: 3}).Search(context.Background(), q, space)
	require.NoError(t, err)
	assert.Len(t, cands, 3)
}

// filterFixture is a four nucleotide space where the first two are matched.
func filterFixture(t *testing.T, add func(tbl *InteractionTable, u []types.UnitID)) (*Query, *SearchSpace, []types.Candidate) {
	t.Helper()
	u := []types.UnitID{unit(1, "G"), unit(2, "C"), unit(3, "A"), unit(4, "U")}
	tbl := NewInteractionTable()
	add(tbl, u)
	space := NewSearchSpace("IL_2XYZ_001", plainFrames(u...), tbl)
	q := NewQuery("IL_1ABC_001", plainFrames(unit(101, "G"), unit(102, "C")), 0.5)
	cands := []types.Candidate{{Indices: []int{0, 1}, Units: u[:2], Discrepancy: 0.1}}
	return q, space, cands
}

func TestFilterUnmatchedPenalties(t *testing.T) {
	tests := []struct {
		name string
		add  func(tbl *InteractionTable, u []types.UnitID)
		want []types.DisqualificationCode
	}{
		{
			name: "unmatched basepair",
			add:  func(tbl *InteractionTable, u []types.UnitID) { tbl.Add(u[2], u[3], []string{"cWW"}, 0) },
			want: []types.DisqualificationCode{types.BPPenalty},
		},
		{
			name: "unmatched to matched basepair",
			add:  func(tbl *InteractionTable, u []types.UnitID) { tbl.Add(u[0], u[3], []string{"tHS"}, 0) },
			want: []types.DisqualificationCode{types.BPPenalty},
		},
		{
			name: "near basepair",
			add:  func(tbl *InteractionTable, u []types.UnitID) { tbl.Add(u[2], u[0], []string{"ncWW"}, 0) },
			want: []types.DisqualificationCode{types.NearBPPenalty},
		},
		{
			name: "two stacks on matched",
			add: func(tbl *InteractionTable, u []types.UnitID) {
				tbl.Add(u[2], u[0], []string{"s35"}, 0)
				tbl.Add(u[2], u[1], []string{"s53"}, 0)
			},
			want: []types.DisqualificationCode{types.StackPenalty},
		},
		{
			name: "one stack is fine",
			add:  func(tbl *InteractionTable, u []types.UnitID) { tbl.Add(u[2], u[0], []string{"s35"}, 0) },
		},
		{
			name: "near stacks do not count",
			add: func(tbl *InteractionTable, u []types.UnitID) {
				tbl.Add(u[2], u[0], []string{"ns35"}, 0)
				tbl.Add(u[2], u[1], []string{"ns53"}, 0)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, space, cands := filterFixture(t, tt.add)
			out := FilterCandidates(cands, q, space)
			require.Len(t, out, 1)
			if len(tt.want) == 0 {
				assert.True(t, out[0].Accepted(), "codes: %s", out[0].Codes)
				return
			}
			assert.Equal(t, tt.want, out[0].Codes.Sorted())
		})
	}
}

func TestFilterConflictingInteractions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		space []string
		want  []types.DisqualificationCode
	}{
		{"same basepair", "cWW", []string{"cWW"}, nil},
		{"other basepair", "cWW", []string{"tWW"}, []types.DisqualificationCode{types.BasepairMismatch}},
		{"missing basepair", "cWW", nil, []types.DisqualificationCode{types.BasepairMismatch}},
		{"stack against basepair", "s35", []string{"cWW"}, []types.DisqualificationCode{types.BasestackMismatch}},
		{"stack against nothing", "s35", nil, nil},
		{"flipped stack", "s35", []string{"s33"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, space, cands := filterFixture(t, func(tbl *InteractionTable, u []types.UnitID) {
				if len(tt.space) > 0 {
					tbl.Add(u[0], u[1], tt.space, 0)
				}
			})
			q.SetInteraction(0, 1, tt.query)
			out := FilterCandidates(cands, q, space)
			if tt.want == nil {
				assert.True(t, out[0].Accepted(), "codes: %s", out[0].Codes)
				return
			}
			assert.Equal(t, tt.want, out[0].Codes.Sorted())
		})
	}
}

func TestFilterSortsByDiscrepancy(t *testing.T) {
	q, space, _ := filterFixture(t, func(*InteractionTable, []types.UnitID) {})
	cands := []types.Candidate{
		{Indices: []int{2, 3}, Discrepancy: 0.4},
		{Indices: []int{0, 1}, Discrepancy: 0.1},
		{Indices: []int{1, 2}, Discrepancy: 0.2},
	}
	out := FilterCandidates(cands, q, space)
	assert.Equal(t, []float64{0.1, 0.2, 0.4}, []float64{out[0].Discrepancy, out[1].Discrepancy, out[2].Discrepancy})
}

func TestFilterIsIdempotent(t *testing.T) {
	q, space, _ := filterFixture(t, func(tbl *InteractionTable, u []types.UnitID) {
		tbl.Add(u[2], u[3], []string{"cWW"}, 0)
		tbl.Add(u[0], u[2], []string{"ncSH", "s35"}, 0)
		tbl.Add(u[1], u[2], []string{"s55"}, 0)
	})
	q.SetInteraction(0, 1, "tWW")
	cands := []types.Candidate{
		{Indices: []int{0, 1}, Discrepancy: 0.3},
		{Indices: []int{2, 3}, Discrepancy: 0.1},
		{Indices: []int{1, 3}, Discrepancy: 0.2},
	}
	once := FilterCandidates(cands, q, space)
	first := make([]types.CodeSet, len(once))
	for i := range once {
		first[i] = once[i].Codes.Clone()
	}
	twice := FilterCandidates(once, q, space)
	for i := range twice {
		assert.Equal(t, first[i].Sorted(), twice[i].Codes.Sorted())
	}
}

func singleBulgeFixture(t *testing.T, queryBulge, spaceBulge string) (*Query, *SearchSpace, []types.Candidate) {
	t.Helper()
	qu := []types.UnitID{unit(1, "G"), unit(2, "C"), unit(3, queryBulge), unit(4, "G"), unit(5, "C")}
	q := NewQuery("IL_1ABC_001", plainFrames(qu...), 0.5)
	q.Bulged = []types.UnitID{qu[2]}
	q.LoopBulges = 1
	q.SetInteraction(0, 4, "cWW")

	su := []types.UnitID{unit(11, "G"), unit(12, "C"), unit(13, spaceBulge), unit(14, "G"), unit(15, "C"), unit(16, "A")}
	tbl := NewInteractionTable()
	tbl.Add(su[1], su[5], []string{"cWW"}, 0)
	space := NewSearchSpace("IL_2XYZ_001", plainFrames(su...), tbl)
	space.Bulged = []int{2}
	cands := []types.Candidate{{Indices: []int{0, 1, 2, 3, 4}, Discrepancy: 0.2}}
	return q, space, cands
}

func TestFilterSingleBulge(t *testing.T) {
	t.Run("mismatched bulge", func(t *testing.T) {
		q, space, cands := singleBulgeFixture(t, "A", "G")
		out := FilterCandidates(cands, q, space)
		assert.Equal(t, []types.DisqualificationCode{types.MismatchedBulge}, out[0].Codes.Sorted())
	})
	t.Run("matching bulge bypasses generic passes", func(t *testing.T) {
		q, space, cands := singleBulgeFixture(t, "A", "A")
		out := FilterCandidates(cands, q, space)
		assert.True(t, out[0].Accepted(), "codes: %s", out[0].Codes)
	})
	t.Run("generic passes without single bulge", func(t *testing.T) {
		q, space, cands := singleBulgeFixture(t, "A", "A")
		space.Bulged = nil
		out := FilterCandidates(cands, q, space)
		assert.True(t, out[0].Codes.Has(types.BasepairMismatch))
		assert.True(t, out[0].Codes.Has(types.BPPenalty))
	})
}

func TestKeepLowestDiscrepancy(t *testing.T) {
	var dq types.CodeSet
	dq.Add(types.BPPenalty)

	assert.Nil(t, KeepLowestDiscrepancy(nil))

	clean := KeepLowestDiscrepancy([]types.Candidate{
		{Discrepancy: 0.01, Codes: dq},
		{Discrepancy: 0.4},
		{Discrepancy: 0.3},
	})
	require.Len(t, clean, 1)
	assert.Equal(t, 0.3, clean[0].Discrepancy)
	assert.True(t, clean[0].Accepted())

	var dq2 types.CodeSet
	dq2.Add(types.StackPenalty)
	rejected := KeepLowestDiscrepancy([]types.Candidate{
		{Discrepancy: 0.5, Codes: dq},
		{Discrepancy: 0.2, Codes: dq2},
	})
	require.Len(t, rejected, 1)
	assert.Equal(t, 0.2, rejected[0].Discrepancy)
	assert.True(t, rejected[0].Codes.Has(types.StackPenalty))
}
