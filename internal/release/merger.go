package release

import "sort"

// MinOverlap is the reciprocal overlap a group needs with a parent to
// inherit its identity.
const MinOverlap = 2.0 / 3.0

// GroupPair keys the overlap of a new group with an old group.
type GroupPair struct {
	New string
	Old string
}

// OverlapStats describes how a new group and an old group share members.
type OverlapStats struct {
	Intersection []string
	// OverlapFwd is |∩|/|new|, OverlapRev is |∩|/|old|.
	OverlapFwd float64
	OverlapRev float64
	// SetDiffFwd is new \ old, SetDiffRev is old \ new.
	SetDiffFwd []string
	SetDiffRev []string

	newSize, oldSize int
}

// Reciprocal reports whether both overlaps reach MinOverlap. The test is
// done on member counts so that exactly 2/3 qualifies.
func (o OverlapStats) Reciprocal() bool {
	n := len(o.Intersection)
	return 3*n >= 2*o.newSize && 3*n >= 2*o.oldSize
}

// Exact reports whether the two groups have the same members.
func (o OverlapStats) Exact() bool {
	n := len(o.Intersection)
	return n == o.newSize && n == o.oldSize
}

// Comparison is the result of comparing two collections. Only pairs with a
// non-empty intersection are stored.
type Comparison struct {
	Overlaps map[GroupPair]OverlapStats
	// Parents lists, for every new group, the old groups it intersects.
	Parents map[string][]string
	// NewGroups lists every new group in ascending order.
	NewGroups []string
}

// Overlap returns the stats for a pair and whether they intersect.
func (c *Comparison) Overlap(newGroup, oldGroup string) (OverlapStats, bool) {
	o, ok := c.Overlaps[GroupPair{New: newGroup, Old: oldGroup}]
	return o, ok
}

// CompareReleases intersects every group of c1 (new) with every group of
// c2 (old).
func CompareReleases(c1, c2 *MotifCollection) *Comparison {
	oldOf := make(map[string][]string)
	for g, members := range c2.Sets() {
		for m := range members {
			oldOf[m] = append(oldOf[m], g)
		}
	}

	cmp := &Comparison{
		Overlaps:  make(map[GroupPair]OverlapStats),
		Parents:   make(map[string][]string),
		NewGroups: c1.GroupIDs(),
	}
	for _, ng := range cmp.NewGroups {
		newSet := c1.Sets()[ng]
		inter := make(map[string]Set)
		for m := range newSet {
			for _, og := range oldOf[m] {
				if inter[og] == nil {
					inter[og] = make(Set)
				}
				inter[og][m] = struct{}{}
			}
		}
		parents := make([]string, 0, len(inter))
		for og, shared := range inter {
			oldSet := c2.Sets()[og]
			cmp.Overlaps[GroupPair{New: ng, Old: og}] = OverlapStats{
				Intersection: shared.Sorted(),
				OverlapFwd:   float64(len(shared)) / float64(len(newSet)),
				OverlapRev:   float64(len(shared)) / float64(len(oldSet)),
				SetDiffFwd:   difference(newSet, shared),
				SetDiffRev:   difference(oldSet, shared),
				newSize:      len(newSet),
				oldSize:      len(oldSet),
			}
			parents = append(parents, og)
		}
		sort.Strings(parents)
		cmp.Parents[ng] = parents
	}
	return cmp
}

func difference(a, b Set) []string {
	var out []string
	for m := range a {
		if _, ok := b[m]; !ok {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Relation classifies a new group against the previous release.
type Relation int

const (
	RelationNew Relation = iota
	RelationExact
	RelationUpdated
)

// Decision is the classification of one new group.
type Decision struct {
	Relation Relation
	// Parent is the old group whose identity is kept (exact or updated).
	Parent string
	// Parents are all intersecting old groups, ascending.
	Parents []string
}

// Correspondences partitions the new groups into exact matches, updated
// groups and new groups.
type Correspondences struct {
	ExactMatch map[string]string
	Correspond map[string]string
	NewIDs     []string
	Parents    map[string][]string
	Decisions  map[string]Decision
}

// EstablishCorrespondences applies the fixed decision table to every group
// of c1:
//
//   - no intersecting old group: new, no parents
//   - one old group with identical members: exact match
//   - one old group with reciprocal overlap >= 2/3: updated, 1 parent
//   - one old group otherwise: new, 1 parent
//   - two old groups, one with reciprocal overlap >= 2/3: updated, 2 parents
//   - two old groups otherwise: new, 2 parents
//   - more than two old groups: new
//
// When both of two parents qualify, the one with the higher combined
// overlap wins, then the smaller id.
func EstablishCorrespondences(c1, c2 *MotifCollection) *Correspondences {
	return correspondencesFrom(CompareReleases(c1, c2))
}

func correspondencesFrom(cmp *Comparison) *Correspondences {
	out := &Correspondences{
		ExactMatch: make(map[string]string),
		Correspond: make(map[string]string),
		Parents:    cmp.Parents,
		Decisions:  make(map[string]Decision, len(cmp.NewGroups)),
	}
	for _, ng := range cmp.NewGroups {
		d := decide(cmp, ng)
		out.Decisions[ng] = d
		switch d.Relation {
		case RelationExact:
			out.ExactMatch[ng] = d.Parent
		case RelationUpdated:
			out.Correspond[ng] = d.Parent
		default:
			out.NewIDs = append(out.NewIDs, ng)
		}
	}
	return out
}

func decide(cmp *Comparison, ng string) Decision {
	parents := cmp.Parents[ng]
	d := Decision{Relation: RelationNew, Parents: parents}
	switch len(parents) {
	case 1:
		o, _ := cmp.Overlap(ng, parents[0])
		switch {
		case o.Exact():
			d.Relation, d.Parent = RelationExact, parents[0]
		case o.Reciprocal():
			d.Relation, d.Parent = RelationUpdated, parents[0]
		}
	case 2:
		best, bestSum := "", -1.0
		for _, p := range parents {
			o, _ := cmp.Overlap(ng, p)
			if !o.Reciprocal() {
				continue
			}
			if sum := o.OverlapFwd + o.OverlapRev; sum > bestSum {
				best, bestSum = p, sum
			}
		}
		if best != "" {
			d.Relation, d.Parent = RelationUpdated, best
		}
	}
	return d
}
