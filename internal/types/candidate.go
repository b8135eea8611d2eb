package types

import (
	"sort"
	"strconv"
	"strings"
)

// DisqualificationCode tags why a geometric match is structurally invalid.
// Codes are data: they accumulate on a candidate and are never raised.
type DisqualificationCode int

const (
	NoCandidates        DisqualificationCode = 1
	SearchSpaceConflict DisqualificationCode = 2
	FlankingMismatch    DisqualificationCode = 3
	BPPenalty           DisqualificationCode = 4
	NearBPPenalty       DisqualificationCode = 5
	StackPenalty        DisqualificationCode = 6
	BasepairMismatch    DisqualificationCode = 7
	BasestackMismatch   DisqualificationCode = 8
	SizeMismatch        DisqualificationCode = 9
	MismatchedBulge     DisqualificationCode = 10
)

func (c DisqualificationCode) String() string {
	switch c {
	case NoCandidates:
		return "NO_CANDIDATES"
	case SearchSpaceConflict:
		return "SEARCH_SPACE_CONFLICT"
	case FlankingMismatch:
		return "FLANKING_MISMATCH"
	case BPPenalty:
		return "BP_PENALTY"
	case NearBPPenalty:
		return "NEAR_BP_PENALTY"
	case StackPenalty:
		return "STACK_PENALTY"
	case BasepairMismatch:
		return "BASEPAIR_MISMATCH"
	case BasestackMismatch:
		return "BASESTACK_MISMATCH"
	case SizeMismatch:
		return "SIZE_MISMATCH"
	case MismatchedBulge:
		return "MISMATCHED_BULGE"
	default:
		return "UNKNOWN_" + strconv.Itoa(int(c))
	}
}

// CodeSet is a set of disqualification codes. The zero value is empty and
// ready to use through Add on a pointer receiver.
type CodeSet map[DisqualificationCode]struct{}

// Add inserts c, allocating the set if needed.
func (s *CodeSet) Add(c DisqualificationCode) {
	if *s == nil {
		*s = make(CodeSet)
	}
	(*s)[c] = struct{}{}
}

// Has reports whether c is in the set.
func (s CodeSet) Has(c DisqualificationCode) bool {
	_, ok := s[c]
	return ok
}

// Empty reports whether no code has been recorded.
func (s CodeSet) Empty() bool { return len(s) == 0 }

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []DisqualificationCode {
	out := make([]DisqualificationCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (s CodeSet) Clone() CodeSet {
	if s == nil {
		return nil
	}
	out := make(CodeSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

func (s CodeSet) String() string {
	codes := s.Sorted()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, ",")
}

// Candidate is one proposed mapping of a query's ordered positions onto
// search space indices.
type Candidate struct {
	Indices     []int    `json:"indices"`
	Units       []UnitID `json:"units"`
	QueryUnits  []UnitID `json:"query_units"`
	Discrepancy float64  `json:"discrepancy"`
	Codes       CodeSet  `json:"-"`
}

// Accepted reports whether the candidate carries no disqualification.
func (c *Candidate) Accepted() bool { return c.Codes.Empty() }
