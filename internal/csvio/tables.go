package csvio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rna3dhub/motifatlas/internal/cluster"
)

// Tables is the content of one release directory.
type Tables struct {
	List       []MotifListRow
	Positions  []MotifPositionRow
	LoopOrder  []MotifLoopOrderRow
	Mutual     []MutualDiscrepancyRow
	Signatures []MotifBpSignatureRow
}

// AddGroup appends the rows of one aligned group. id is the motif id, or
// the group name when the group has not been named yet.
func (t *Tables) AddGroup(id, name string, a *cluster.Alignment) {
	t.List = append(t.List, MotifListRow{ID: id, Name: name})
	for _, loop := range a.Loops {
		for p, u := range a.Positions[loop] {
			if u == "" {
				continue
			}
			t.Positions = append(t.Positions, MotifPositionRow{Name: name, LoopID: loop, UnitID: string(u), Position: p + 1})
		}
		t.LoopOrder = append(t.LoopOrder, MotifLoopOrderRow{
			Name:            name,
			LoopID:          loop,
			OriginalOrder:   a.OriginalOrder[loop],
			SimilarityOrder: a.SimilarityOrder[loop],
		})
	}
	for _, m := range a.Mutual {
		t.Mutual = append(t.Mutual, MutualDiscrepancyRow{Loop1: m.Loop1, Discrepancy: m.Discrepancy, Loop2: m.Loop2})
	}
	t.Signatures = append(t.Signatures, MotifBpSignatureRow{Name: name, Signature: a.Signature})
}

// WriteDir writes the five exchange files into dir, creating it if needed.
func (t *Tables) WriteDir(dir string) error {
	files := []struct {
		name string
		fn   func(io.Writer) error
	}{
		{MotifListFile, func(w io.Writer) error { return WriteMotifList(w, t.List) }},
		{MotifPositionsFile, func(w io.Writer) error { return WriteMotifPositions(w, t.Positions) }},
		{MotifLoopOrderFile, func(w io.Writer) error { return WriteMotifLoopOrder(w, t.LoopOrder) }},
		{MutualDiscrepancyFile, func(w io.Writer) error { return WriteMutualDiscrepancy(w, t.Mutual) }},
		{MotifBpSignaturesFile, func(w io.Writer) error { return WriteMotifBpSignatures(w, t.Signatures) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadDir reads the five exchange files from dir.
func ReadDir(dir string) (*Tables, error) {
	t := &Tables{}
	read := func(name string, fn func(io.Reader) error) error {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer f.Close()
		if err := fn(f); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	var err error
	steps := []struct {
		name string
		fn   func(io.Reader) error
	}{
		{MotifListFile, func(r io.Reader) error { t.List, err = ReadMotifList(r); return err }},
		{MotifPositionsFile, func(r io.Reader) error { t.Positions, err = ReadMotifPositions(r); return err }},
		{MotifLoopOrderFile, func(r io.Reader) error { t.LoopOrder, err = ReadMotifLoopOrder(r); return err }},
		{MutualDiscrepancyFile, func(r io.Reader) error { t.Mutual, err = ReadMutualDiscrepancy(r); return err }},
		{MotifBpSignaturesFile, func(r io.Reader) error { t.Signatures, err = ReadMotifBpSignatures(r); return err }},
	}
	for _, s := range steps {
		if err := read(s.name, s.fn); err != nil {
			return nil, err
		}
	}
	return t, nil
}
