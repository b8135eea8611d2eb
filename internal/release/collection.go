// Package release matches newly clustered motif groups against the previous
// release, assigns stable handle/version identities and counts what changed
// between two releases.
package release

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// Set is a set of loop ids.
type Set map[string]struct{}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string { return types.SortedKeys(s) }

// MotifCollection is one generation of loop to group assignments.
// Loops[i] belongs to Groups[i].
type MotifCollection struct {
	Loops  []string
	Groups []string

	sets map[string]Set
}

// NewCollection builds a collection from parallel loop and group lists.
// A loop listed more than once is a data quality problem, not an error; it
// is logged and every listing is kept.
func NewCollection(loops, groups []string) (*MotifCollection, error) {
	if len(loops) != len(groups) {
		return nil, fmt.Errorf("collection has %d loops but %d groups", len(loops), len(groups))
	}
	c := &MotifCollection{
		Loops:  append([]string(nil), loops...),
		Groups: append([]string(nil), groups...),
		sets:   make(map[string]Set),
	}
	seen := make(map[string]string, len(loops))
	for i, loop := range loops {
		if prev, ok := seen[loop]; ok {
			slog.Warn("loop appears more than once in collection", "loop", loop, "group", groups[i], "previous_group", prev)
		}
		seen[loop] = groups[i]
		if c.sets[groups[i]] == nil {
			c.sets[groups[i]] = make(Set)
		}
		c.sets[groups[i]][loop] = struct{}{}
	}
	return c, nil
}

// CollectionFromGroups flattens named groups into a collection. Groups are
// keyed by their motif id when named is true and by their provisional name
// otherwise.
func CollectionFromGroups(groups []types.NamedGroup, named bool) (*MotifCollection, error) {
	var loops, ids []string
	for i := range groups {
		key := groups[i].Name
		if named {
			key = groups[i].MotifID().String()
		}
		for _, m := range groups[i].Members {
			loops = append(loops, m)
			ids = append(ids, key)
		}
	}
	return NewCollection(loops, ids)
}

// Sets returns group → member set. The result must not be modified.
func (c *MotifCollection) Sets() map[string]Set { return c.sets }

// GroupIDs returns the group ids in ascending order.
func (c *MotifCollection) GroupIDs() []string {
	out := make([]string, 0, len(c.sets))
	for g := range c.sets {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
