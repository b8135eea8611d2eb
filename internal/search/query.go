package search

import (
	"errors"
	"fmt"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// Order constrains the relative sequence position of two matched nucleotides.
type Order int

const (
	OrderNone   Order = iota
	OrderBefore       // index of position i < index of position j
	OrderAfter        // index of position i > index of position j
)

// Constraint is one entry of a query's symbolic constraint matrix.
type Constraint struct {
	// Interaction, when set, must be present between the matched nucleotides.
	Interaction string `json:"interaction,omitempty"`
	Order       Order  `json:"order,omitempty"`
}

// Empty reports whether the constraint places no requirement.
func (c Constraint) Empty() bool { return c.Interaction == "" && c.Order == OrderNone }

func (c Constraint) reversed() Constraint {
	out := Constraint{Interaction: Reverse(c.Interaction)}
	switch c.Order {
	case OrderBefore:
		out.Order = OrderAfter
	case OrderAfter:
		out.Order = OrderBefore
	}
	return out
}

// Query is the symbolic and geometric search built from one loop.
type Query struct {
	LoopID string
	Units  []types.UnitID
	Frames []types.NucleotideFrame

	// Constraints[i][j] is enforced by the search engine. The matrix is kept
	// symmetric: Constraints[j][i] is the reverse of Constraints[i][j].
	Constraints [][]Constraint

	// Interactions[i][j] is the basepair or stacking code observed between
	// query positions i and j ("" if none). It is what candidates are
	// checked against after the search.
	Interactions [][]string

	Cutoff float64

	// Bulged lists the bulged units the query retained (5-nt loops with a
	// single bulge keep it); LoopBulges counts all bulges of the loop.
	Bulged     []types.UnitID
	LoopBulges int
}

// ErrInvalidQuery is wrapped by every Query validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// NewQuery returns a query over the given positions with empty matrices.
func NewQuery(loopID string, frames []types.NucleotideFrame, cutoff float64) *Query {
	n := len(frames)
	q := &Query{
		LoopID:       loopID,
		Units:        make([]types.UnitID, n),
		Frames:       frames,
		Constraints:  make([][]Constraint, n),
		Interactions: make([][]string, n),
		Cutoff:       cutoff,
	}
	for i := range frames {
		q.Units[i] = frames[i].Unit
		q.Constraints[i] = make([]Constraint, n)
		q.Interactions[i] = make([]string, n)
	}
	return q
}

// Len returns the number of query positions.
func (q *Query) Len() int { return len(q.Units) }

// SetConstraint sets the constraint between positions i and j and its
// reverse between j and i.
func (q *Query) SetConstraint(i, j int, c Constraint) {
	q.Constraints[i][j] = c
	q.Constraints[j][i] = c.reversed()
}

// SetInteraction records the observed interaction between i and j.
func (q *Query) SetInteraction(i, j int, code string) {
	q.Interactions[i][j] = code
	q.Interactions[j][i] = Reverse(code)
}

// Validate enforces numpositions == len(Units) == len(Frames) >= 2 and
// square matrices.
func (q *Query) Validate() error {
	n := len(q.Units)
	if n < 2 {
		return fmt.Errorf("%w %s: %d positions, need at least 2", ErrInvalidQuery, q.LoopID, n)
	}
	if len(q.Frames) != n {
		return fmt.Errorf("%w %s: %d units but %d frames", ErrInvalidQuery, q.LoopID, n, len(q.Frames))
	}
	if len(q.Constraints) != n || len(q.Interactions) != n {
		return fmt.Errorf("%w %s: matrix size does not match %d positions", ErrInvalidQuery, q.LoopID, n)
	}
	for i := 0; i < n; i++ {
		if len(q.Constraints[i]) != n || len(q.Interactions[i]) != n {
			return fmt.Errorf("%w %s: row %d is not of length %d", ErrInvalidQuery, q.LoopID, i, n)
		}
		if q.Frames[i].Unit != q.Units[i] {
			return fmt.Errorf("%w %s: frame %d is %s, unit is %s", ErrInvalidQuery, q.LoopID, i, q.Frames[i].Unit, q.Units[i])
		}
	}
	if q.Cutoff <= 0 {
		return fmt.Errorf("%w %s: cutoff must be positive (got %g)", ErrInvalidQuery, q.LoopID, q.Cutoff)
	}
	return nil
}
