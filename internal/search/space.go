package search

import (
	"fmt"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// SearchSpace is everything needed to search within a set of nucleotides:
// their frames in sequence order and the pairwise annotations between them,
// keyed by index.
type SearchSpace struct {
	Name               string
	Frames             []types.NucleotideFrame
	IndexToID          []types.UnitID
	IDToIndex          map[types.UnitID]int
	PairToInteractions map[[2]int][]string
	PairToCrossing     map[[2]int]int

	// Bulged holds the indices of the space's bulged nucleotides.
	Bulged []int
}

// NewSearchSpace indexes frames in the given order and copies the
// interactions between them from table.
func NewSearchSpace(name string, frames []types.NucleotideFrame, table *InteractionTable) *SearchSpace {
	s := &SearchSpace{
		Name:               name,
		Frames:             frames,
		IndexToID:          make([]types.UnitID, len(frames)),
		IDToIndex:          make(map[types.UnitID]int, len(frames)),
		PairToInteractions: make(map[[2]int][]string),
		PairToCrossing:     make(map[[2]int]int),
	}
	for i, f := range frames {
		s.IndexToID[i] = f.Unit
		s.IDToIndex[f.Unit] = i
	}
	if table == nil {
		return s
	}
	for i, u1 := range s.IndexToID {
		for j, u2 := range s.IndexToID {
			if i == j {
				continue
			}
			if codes := table.Get(u1, u2); len(codes) > 0 {
				s.PairToInteractions[[2]int{i, j}] = codes
			}
			if c, ok := table.Crossing(u1, u2); ok {
				s.PairToCrossing[[2]int{i, j}] = c
			}
		}
	}
	return s
}

// Len returns the number of nucleotides in the space.
func (s *SearchSpace) Len() int { return len(s.IndexToID) }

// Interactions returns the codes between indices i and j.
func (s *SearchSpace) Interactions(i, j int) []string {
	return s.PairToInteractions[[2]int{i, j}]
}

// Validate checks that IDToIndex and IndexToID are inverse mappings.
func (s *SearchSpace) Validate() error {
	if len(s.IDToIndex) != len(s.IndexToID) || len(s.Frames) != len(s.IndexToID) {
		return fmt.Errorf("search space %s: %d ids, %d indices, %d frames",
			s.Name, len(s.IDToIndex), len(s.IndexToID), len(s.Frames))
	}
	for i, u := range s.IndexToID {
		if j, ok := s.IDToIndex[u]; !ok || j != i {
			return fmt.Errorf("search space %s: index of %s is inconsistent", s.Name, u)
		}
		if s.Frames[i].Unit != u {
			return fmt.Errorf("search space %s: frame %d is %s, want %s", s.Name, i, s.Frames[i].Unit, u)
		}
	}
	for _, b := range s.Bulged {
		if b < 0 || b >= len(s.IndexToID) {
			return fmt.Errorf("search space %s: bulge index %d out of range", s.Name, b)
		}
	}
	return nil
}
