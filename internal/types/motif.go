package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ChangeKind says how a motif's identity relates to the previous release.
type ChangeKind string

const (
	KindNew     ChangeKind = "new"
	KindUpdated ChangeKind = "updated"
	KindExact   ChangeKind = "exact"
)

// IsValid checks if the change kind value is valid
func (k ChangeKind) IsValid() bool {
	switch k {
	case KindNew, KindUpdated, KindExact:
		return true
	}
	return false
}

// MotifID is the stable identity of a motif: loop type, handle and version.
// Its string form is TYPE_HANDLE.VERSION, e.g. IL_04512.3.
type MotifID struct {
	Type    LoopType
	Handle  string
	Version int
}

func (m MotifID) String() string {
	return fmt.Sprintf("%s_%s.%d", m.Type, m.Handle, m.Version)
}

// ParseMotifID parses the TYPE_HANDLE.VERSION form.
func ParseMotifID(s string) (MotifID, error) {
	us := strings.Index(s, "_")
	dot := strings.LastIndex(s, ".")
	if us <= 0 || dot <= us+1 || dot == len(s)-1 {
		return MotifID{}, fmt.Errorf("invalid motif id %q: expected TYPE_HANDLE.VERSION", s)
	}
	t := LoopType(s[:us])
	if !t.IsValid() {
		return MotifID{}, fmt.Errorf("invalid motif id %q: unknown loop type %q", s, s[:us])
	}
	v, err := strconv.Atoi(s[dot+1:])
	if err != nil || v < 1 {
		return MotifID{}, fmt.Errorf("invalid motif id %q: bad version", s)
	}
	return MotifID{Type: t, Handle: s[us+1 : dot], Version: v}, nil
}

// Identity is the naming decision recorded for one group.
type Identity struct {
	Handle  string     `json:"handle"`
	Version int        `json:"version"`
	Kind    ChangeKind `json:"type"`
	Comment string     `json:"comment"`
}

// NamedGroup is a motif group with its assigned identity.
type NamedGroup struct {
	// Name is the provisional name the clustering step gave the group.
	Name     string    `json:"name"`
	LoopType LoopType  `json:"loop_type"`
	Members  []string  `json:"members"`
	Identity Identity  `json:"identity"`
	Parents  []MotifID `json:"parents,omitempty"`

	// Signature is the consensus basepair signature, if computed.
	Signature string `json:"signature,omitempty"`
}

// MotifID returns the full identity of the group.
func (g *NamedGroup) MotifID() MotifID {
	return MotifID{Type: g.LoopType, Handle: g.Identity.Handle, Version: g.Identity.Version}
}

// MemberSet returns the members as a set.
func (g *NamedGroup) MemberSet() map[string]struct{} {
	out := make(map[string]struct{}, len(g.Members))
	for _, m := range g.Members {
		out[m] = struct{}{}
	}
	return out
}

// Validate checks the group has members and a complete identity.
func (g *NamedGroup) Validate() error {
	if len(g.Members) == 0 {
		return fmt.Errorf("group %s has no members", g.Name)
	}
	if g.Identity.Handle == "" {
		return fmt.Errorf("group %s has no handle", g.Name)
	}
	if g.Identity.Version < 1 {
		return fmt.Errorf("group %s has version %d, must be >= 1", g.Name, g.Identity.Version)
	}
	if !g.Identity.Kind.IsValid() {
		return fmt.Errorf("group %s has invalid change kind %q", g.Name, g.Identity.Kind)
	}
	return nil
}

// SortedKeys returns the keys of a string set in ascending order.
func SortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
