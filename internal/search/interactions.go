package search

import (
	"strings"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// basepairFamilies are the Leontis-Westhof families in both edge orders.
var basepairFamilies = map[string]bool{
	"cWW": true, "tWW": true, "cWH": true, "tWH": true, "cWS": true, "tWS": true,
	"cHH": true, "tHH": true, "cHS": true, "tHS": true, "cSS": true, "tSS": true,
	"cHW": true, "tHW": true, "cSW": true, "tSW": true, "cSH": true, "tSH": true,
}

var stackTypes = map[string]bool{"s33": true, "s35": true, "s53": true, "s55": true}

// IsBasepair reports whether t is a true (not near) basepair code.
func IsBasepair(t string) bool { return basepairFamilies[t] }

// IsNearBasepair reports whether t is an n-prefixed basepair code.
func IsNearBasepair(t string) bool {
	return strings.HasPrefix(t, "n") && basepairFamilies[t[1:]]
}

// IsStack reports whether t is a true stacking code.
func IsStack(t string) bool { return stackTypes[t] }

// IsNearStack reports whether t is an n-prefixed stacking code.
func IsNearStack(t string) bool {
	return strings.HasPrefix(t, "n") && stackTypes[t[1:]]
}

// IsAnyStack reports whether t is a true or near stacking code.
func IsAnyStack(t string) bool { return IsStack(t) || IsNearStack(t) }

// IsBasePhosphate reports whether t is a base-phosphate code (*BPh).
func IsBasePhosphate(t string) bool { return strings.HasSuffix(t, "BPh") }

// IsBaseRibose reports whether t is a base-ribose code (*BR).
func IsBaseRibose(t string) bool { return strings.HasSuffix(t, "BR") }

// IsKnown reports whether t belongs to the interaction vocabulary.
func IsKnown(t string) bool {
	return IsBasepair(t) || IsNearBasepair(t) || IsAnyStack(t) || IsBasePhosphate(t) || IsBaseRibose(t)
}

// Reverse returns the code describing the same interaction seen from the
// other nucleotide: cWH becomes cHW, s35 becomes s53. Symmetric codes are
// returned unchanged. Base-phosphate and base-ribose codes are directional
// and have no reverse; Reverse returns "" for them.
func Reverse(t string) string {
	near := ""
	core := t
	if strings.HasPrefix(t, "n") && (basepairFamilies[t[1:]] || stackTypes[t[1:]]) {
		near, core = "n", t[1:]
	}
	switch {
	case basepairFamilies[core]:
		return near + core[:1] + core[2:3] + core[1:2]
	case core == "s35":
		return near + "s53"
	case core == "s53":
		return near + "s35"
	case stackTypes[core]:
		return t
	}
	return ""
}

// pair is an ordered pair of units.
type pair [2]types.UnitID

// InteractionTable holds the pairwise annotations of a structure. Entries
// are stored in both directions; the reverse direction is derived with
// Reverse so lookups never depend on which nucleotide was listed first.
type InteractionTable struct {
	interactions map[pair][]string
	crossing     map[pair]int
}

// NewInteractionTable returns an empty table.
func NewInteractionTable() *InteractionTable {
	return &InteractionTable{
		interactions: make(map[pair][]string),
		crossing:     make(map[pair]int),
	}
}

// Add records the interactions of u1 with u2. Unknown codes are kept as
// given in the forward direction only.
func (t *InteractionTable) Add(u1, u2 types.UnitID, codes []string, crossing int) {
	fwd := pair{u1, u2}
	rev := pair{u2, u1}
	for _, c := range codes {
		if !contains(t.interactions[fwd], c) {
			t.interactions[fwd] = append(t.interactions[fwd], c)
		}
		if r := Reverse(c); r != "" && !contains(t.interactions[rev], r) {
			t.interactions[rev] = append(t.interactions[rev], r)
		}
	}
	t.crossing[fwd] = crossing
	t.crossing[rev] = crossing
}

// Get returns the interactions of u1 with u2.
func (t *InteractionTable) Get(u1, u2 types.UnitID) []string {
	return t.interactions[pair{u1, u2}]
}

// Crossing returns the crossing number of the pair and whether it is known.
func (t *InteractionTable) Crossing(u1, u2 types.UnitID) (int, bool) {
	c, ok := t.crossing[pair{u1, u2}]
	return c, ok
}

// Len returns the number of ordered pairs with at least one interaction.
func (t *InteractionTable) Len() int { return len(t.interactions) }

// Interacts reports whether any code of u1 with u2 satisfies pred.
func (t *InteractionTable) Interacts(u1, u2 types.UnitID, pred func(string) bool) bool {
	for _, c := range t.Get(u1, u2) {
		if pred(c) {
			return true
		}
	}
	return false
}

// BasepairOrStack returns the first true basepair or stacking code (true or
// near) of u1 with u2, or "" if there is none.
func (t *InteractionTable) BasepairOrStack(u1, u2 types.UnitID) string {
	return firstBasepairOrStack(t.Get(u1, u2))
}

func firstBasepairOrStack(codes []string) string {
	for _, c := range codes {
		if IsBasepair(c) {
			return c
		}
	}
	for _, c := range codes {
		if IsAnyStack(c) {
			return c
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
