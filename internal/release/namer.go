package release

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/types"
)

// HandleSpace is the number of distinct handles: 00000 through 99998.
const HandleSpace = 99999

// maxDraws bounds random draws before falling back to a scan for a free
// handle.
const maxDraws = 1000

// ErrHandlesExhausted is returned when every handle is taken.
var ErrHandlesExhausted = errors.New("all motif handles are in use")

// GenerateUniqueHandle draws a zero padded five digit handle that is not in
// known and inserts it into known.
func GenerateUniqueHandle(rng *rand.Rand, known map[string]struct{}) (string, error) {
	for i := 0; i < maxDraws; i++ {
		h := fmt.Sprintf("%05d", rng.Intn(HandleSpace))
		if _, taken := known[h]; !taken {
			known[h] = struct{}{}
			return h, nil
		}
	}
	start := rng.Intn(HandleSpace)
	for i := 0; i < HandleSpace; i++ {
		h := fmt.Sprintf("%05d", (start+i)%HandleSpace)
		if _, taken := known[h]; !taken {
			known[h] = struct{}{}
			return h, nil
		}
	}
	return "", ErrHandlesExhausted
}

// Comments recorded with each naming decision.
const (
	CommentExact         = "Exact match"
	CommentUpdatedOne    = "Updated, 1 parent"
	CommentUpdatedTwo    = "Updated, 2 parents"
	CommentNewNoParents  = "New id, no parents"
	CommentNewOneParent  = "New id, 1 parent"
	CommentNewTwoParents = "New id, 2 parents"
	CommentNewMany       = "New id, > 2 parents"
)

// Namer assigns identities to freshly clustered groups.
type Namer struct {
	rng *rand.Rand
}

// NewNamer returns a Namer drawing handles from rng.
func NewNamer(rng *rand.Rand) *Namer {
	return &Namer{rng: rng}
}

// Name decides the identity of every group against the parent release.
// groups are keyed by Name; parents by their motif id. known holds every
// handle ever issued and receives the handles minted here. The output has
// one entry per input group, in input order.
func (n *Namer) Name(groups, parents []types.NamedGroup, known map[string]struct{}) ([]types.NamedGroup, error) {
	c1, err := CollectionFromGroups(groups, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build new collection: %w", err)
	}
	c2, err := CollectionFromGroups(parents, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build parent collection: %w", err)
	}
	byID := make(map[string]*types.NamedGroup, len(parents))
	for i := range parents {
		byID[parents[i].MotifID().String()] = &parents[i]
		known[parents[i].Identity.Handle] = struct{}{}
	}

	corr := correspondencesFrom(CompareReleases(c1, c2))
	claimed := make(map[string]string)

	out := make([]types.NamedGroup, len(groups))
	for i := range groups {
		g := groups[i]
		g.Parents = nil
		d := corr.Decisions[g.Name]
		for _, p := range d.Parents {
			g.Parents = append(g.Parents, byID[p].MotifID())
		}
		sort.Slice(g.Parents, func(a, b int) bool { return g.Parents[a].String() < g.Parents[b].String() })

		if d.Relation != RelationNew {
			if other, taken := claimed[d.Parent]; taken {
				slog.Warn("parent identity already inherited, minting a new handle",
					"group", g.Name, "parent", d.Parent, "claimed_by", other)
				d.Relation = RelationNew
			} else {
				claimed[d.Parent] = g.Name
			}
		}

		switch d.Relation {
		case RelationExact:
			p := byID[d.Parent]
			g.Identity = types.Identity{Handle: p.Identity.Handle, Version: p.Identity.Version, Kind: types.KindExact, Comment: CommentExact}
		case RelationUpdated:
			p := byID[d.Parent]
			comment := CommentUpdatedOne
			if len(d.Parents) == 2 {
				comment = CommentUpdatedTwo
			}
			g.Identity = types.Identity{Handle: p.Identity.Handle, Version: p.Identity.Version + 1, Kind: types.KindUpdated, Comment: comment}
		default:
			h, err := GenerateUniqueHandle(n.rng, known)
			if err != nil {
				return nil, fmt.Errorf("failed to name group %s: %w", g.Name, err)
			}
			g.Identity = types.Identity{Handle: h, Version: 1, Kind: types.KindNew, Comment: newComment(len(d.Parents))}
		}
		out[i] = g
	}
	return out, nil
}

func newComment(parents int) string {
	switch parents {
	case 0:
		return CommentNewNoParents
	case 1:
		return CommentNewOneParent
	case 2:
		return CommentNewTwoParents
	}
	return CommentNewMany
}
