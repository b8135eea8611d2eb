package release

import (
	"sort"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// GroupChangeSet is the group level difference between a release and its
// parent. Entries are motif ids.
type GroupChangeSet struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
}

// GroupChanges classifies every group as unchanged (same handle and version
// in parents), updated (handle in parents with another version) or added.
// Removed lists parents whose handle no longer appears.
func GroupChanges(groups, parents []types.NamedGroup) GroupChangeSet {
	parentIDs := make(map[types.MotifID]bool, len(parents))
	parentHandles := make(map[string]bool, len(parents))
	for i := range parents {
		parentIDs[parents[i].MotifID()] = true
		parentHandles[parents[i].Identity.Handle] = true
	}

	var out GroupChangeSet
	handles := make(map[string]bool, len(groups))
	for i := range groups {
		id := groups[i].MotifID()
		handles[id.Handle] = true
		switch {
		case parentIDs[id]:
			out.Unchanged = append(out.Unchanged, id.String())
		case parentHandles[id.Handle]:
			out.Updated = append(out.Updated, id.String())
		default:
			out.Added = append(out.Added, id.String())
		}
	}
	for i := range parents {
		if !handles[parents[i].Identity.Handle] {
			out.Removed = append(out.Removed, parents[i].MotifID().String())
		}
	}
	sort.Strings(out.Added)
	sort.Strings(out.Removed)
	sort.Strings(out.Updated)
	sort.Strings(out.Unchanged)
	return out
}

// SetChangeSet is the difference between two derived sets.
type SetChangeSet struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

// TransformedChanges projects every group with fn and compares the unions.
func TransformedChanges(groups, parents []types.NamedGroup, fn func(*types.NamedGroup) []string) SetChangeSet {
	project := func(gs []types.NamedGroup) Set {
		out := make(Set)
		for i := range gs {
			for _, v := range fn(&gs[i]) {
				out[v] = struct{}{}
			}
		}
		return out
	}
	cur, prev := project(groups), project(parents)

	var out SetChangeSet
	for v := range cur {
		if _, ok := prev[v]; ok {
			out.Unchanged = append(out.Unchanged, v)
		} else {
			out.Added = append(out.Added, v)
		}
	}
	out.Removed = difference(prev, cur)
	sort.Strings(out.Added)
	sort.Strings(out.Unchanged)
	return out
}

// Members projects a group onto its loop ids.
func Members(g *types.NamedGroup) []string { return g.Members }
