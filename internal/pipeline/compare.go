package pipeline

import (
	"context"
	"fmt"

	"github.com/rna3dhub/motifatlas/internal/cluster"
	"github.com/rna3dhub/motifatlas/internal/dataset"
)

// ComparePair searches loop1 in loop2 and loop2 in loop1.
func (p *Pipeline) ComparePair(ctx context.Context, ds *dataset.Dataset, loop1, loop2 string) (forward, reverse cluster.PairResult, err error) {
	a, err := p.instance(ds, loop1)
	if err != nil {
		return forward, reverse, err
	}
	b, err := p.instance(ds, loop2)
	if err != nil {
		return forward, reverse, err
	}
	if forward, err = cluster.Compare(ctx, p.searcher, a, b); err != nil {
		return forward, reverse, err
	}
	reverse, err = cluster.Compare(ctx, p.searcher, b, a)
	return forward, reverse, err
}

func (p *Pipeline) instance(ds *dataset.Dataset, id string) (*cluster.Instance, error) {
	loop, ok := ds.Loop(id)
	if !ok {
		for _, rej := range ds.Rejected {
			if rej.LoopID == id {
				return nil, &InvalidStateError{Unit: id, Err: rej.Err}
			}
		}
		return nil, fmt.Errorf("loop %s not found in dataset", id)
	}
	inst, err := cluster.NewInstance(loop, ds.Frames, ds.Table, p.cfg.Search.Cutoff)
	if err != nil {
		return nil, &InvalidStateError{Unit: id, Err: err}
	}
	return inst, nil
}
