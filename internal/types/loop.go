package types

import (
	"fmt"
	"strings"
)

// LoopType classifies a loop by its number of strands.
type LoopType string

const (
	LoopHairpin  LoopType = "HL" // one strand
	LoopInternal LoopType = "IL" // two strands
	LoopJunction LoopType = "J3" // three strands
)

// IsValid checks the loop type is HL, IL or an n-way junction Jn (n >= 3).
func (t LoopType) IsValid() bool {
	switch t {
	case LoopHairpin, LoopInternal:
		return true
	}
	s := string(t)
	if len(s) < 2 || s[0] != 'J' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != "J0" && s != "J1" && s != "J2"
}

// StrandCount returns the number of strands a loop of this type has.
func (t LoopType) StrandCount() int {
	switch t {
	case LoopHairpin:
		return 1
	case LoopInternal:
		return 2
	}
	var n int
	if _, err := fmt.Sscanf(string(t), "J%d", &n); err != nil {
		return 0
	}
	return n
}

// ParseLoopID splits a loop id of the form {HL|IL|J3|...}_{pdbid}_{seq}.
func ParseLoopID(id string) (LoopType, string, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("invalid loop id %q: expected TYPE_PDB_SEQ", id)
	}
	t := LoopType(parts[0])
	if !t.IsValid() {
		return "", "", fmt.Errorf("invalid loop id %q: unknown loop type %q", id, parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid loop id %q: empty component", id)
	}
	return t, strings.ToUpper(parts[1]), nil
}

// Loop is one hairpin, internal loop or junction instance in a structure.
type Loop struct {
	ID      string     `json:"id"`
	Type    LoopType   `json:"type"`
	Strands [][]UnitID `json:"strands"`
}

// NewLoop builds a loop, deriving its type from the id.
func NewLoop(id string, strands [][]UnitID) (*Loop, error) {
	t, _, err := ParseLoopID(id)
	if err != nil {
		return nil, err
	}
	l := &Loop{ID: id, Type: t, Strands: strands}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks the strand structure is consistent with the loop type.
func (l *Loop) Validate() error {
	if !l.Type.IsValid() {
		return fmt.Errorf("loop %s: invalid type %q", l.ID, l.Type)
	}
	if want := l.Type.StrandCount(); want != len(l.Strands) {
		return fmt.Errorf("loop %s: %s loops have %d strands, got %d", l.ID, l.Type, want, len(l.Strands))
	}
	seen := make(map[UnitID]bool)
	for i, s := range l.Strands {
		if len(s) == 0 {
			return fmt.Errorf("loop %s: strand %d is empty", l.ID, i)
		}
		for _, u := range s {
			if seen[u] {
				return fmt.Errorf("loop %s: unit %s appears twice", l.ID, u)
			}
			seen[u] = true
		}
	}
	return nil
}

// PDB returns the structure the loop comes from.
func (l *Loop) PDB() string {
	_, pdb, err := ParseLoopID(l.ID)
	if err != nil {
		return ""
	}
	return pdb
}

// Units returns all units of the loop in strand order.
func (l *Loop) Units() []UnitID {
	var out []UnitID
	for _, s := range l.Strands {
		out = append(out, s...)
	}
	return out
}

// Len returns the number of nucleotides in the loop.
func (l *Loop) Len() int {
	n := 0
	for _, s := range l.Strands {
		n += len(s)
	}
	return n
}

// StrandOf returns, for each unit, the index of the strand containing it.
func (l *Loop) StrandOf() map[UnitID]int {
	out := make(map[UnitID]int, l.Len())
	for i, s := range l.Strands {
		for _, u := range s {
			out[u] = i
		}
	}
	return out
}
