package pipeline

import (
	"context"
	"fmt"

	"github.com/rna3dhub/motifatlas/internal/release"
	"github.com/rna3dhub/motifatlas/internal/storage"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// Diff is the change report between two stored releases.
type Diff struct {
	Old    *types.Release
	New    *types.Release
	Groups release.GroupChangeSet
	Loops  release.SetChangeSet
}

// DiffReleases loads two releases of one loop type and counts the changes
// from oldID to newID.
func DiffReleases(ctx context.Context, store storage.Storage, loopType types.LoopType, oldID, newID string) (*Diff, error) {
	load := func(id string) (*types.Release, error) {
		rel, err := store.GetRelease(ctx, loopType, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load release %s: %w", id, err)
		}
		if rel == nil {
			return nil, fmt.Errorf("release %s %s not found", loopType, id)
		}
		return rel, nil
	}
	oldRel, err := load(oldID)
	if err != nil {
		return nil, err
	}
	newRel, err := load(newID)
	if err != nil {
		return nil, err
	}
	return &Diff{
		Old:    oldRel,
		New:    newRel,
		Groups: release.GroupChanges(newRel.Motifs, oldRel.Motifs),
		Loops:  release.TransformedChanges(newRel.Motifs, oldRel.Motifs, release.Members),
	}, nil
}
