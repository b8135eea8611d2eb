// Package dataset loads the annotated structure data the pipeline runs on:
// nucleotide frames, pairwise interactions and loops in the exchange
// format.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/rna3dhub/motifatlas/internal/loops"
	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// File is the on-disk layout. Decoding rejects fields not listed here.
type File struct {
	Frames       []FrameRecord       `json:"frames"`
	Interactions []InteractionRecord `json:"interactions"`
	Loops        []LoopRecord        `json:"loops"`
}

// FrameRecord is one nucleotide frame.
type FrameRecord struct {
	UnitID   types.UnitID          `json:"unit_id"`
	Centers  map[string]types.Vec3 `json:"centers"`
	Rotation types.Mat3            `json:"rotation"`
}

// InteractionRecord lists the annotations of unit 1 with unit 2.
type InteractionRecord struct {
	Unit1       types.UnitID `json:"unit_id_1"`
	Unit2       types.UnitID `json:"unit_id_2"`
	Annotations []string     `json:"annotations"`
	Crossing    int          `json:"crossing"`
}

// LoopRecord is a loop in the exchange format: 1-based positions, with the
// first and last nucleotide of each strand flagged as border.
type LoopRecord struct {
	LoopID    string           `json:"loop_id"`
	Positions []PositionRecord `json:"positions"`
}

// PositionRecord is one nucleotide of a loop.
type PositionRecord struct {
	Position int          `json:"position"`
	UnitID   types.UnitID `json:"unit_id"`
	Border   bool         `json:"border"`
}

// RejectedLoop is a loop that could not be built. Rejections do not fail
// the load.
type RejectedLoop struct {
	LoopID string
	Err    error
}

// Dataset is the validated, indexed content of a File.
type Dataset struct {
	Frames   map[types.UnitID]types.NucleotideFrame
	Table    *search.InteractionTable
	Loops    []*types.Loop
	Rejected []RejectedLoop
}

// Load reads and validates the dataset at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read decodes a dataset from r.
func Read(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return FromFile(&file)
}

// Parse decodes a dataset held in memory.
func Parse(data []byte) (*Dataset, error) {
	return Read(bytes.NewReader(data))
}

// FromFile validates file and indexes it. Bad frames and interactions fail
// the whole load; a bad loop is only rejected.
func FromFile(file *File) (*Dataset, error) {
	ds := &Dataset{
		Frames: make(map[types.UnitID]types.NucleotideFrame, len(file.Frames)),
		Table:  search.NewInteractionTable(),
	}

	for i, fr := range file.Frames {
		frame := types.NucleotideFrame{Unit: fr.UnitID, Centers: fr.Centers, Rotation: fr.Rotation}
		if err := frame.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if _, ok := frame.Center(types.CenterBase); !ok {
			return nil, fmt.Errorf("frame %d (%s): missing %q center", i, fr.UnitID, types.CenterBase)
		}
		if _, dup := ds.Frames[fr.UnitID]; dup {
			return nil, fmt.Errorf("frame %d: unit %s listed twice", i, fr.UnitID)
		}
		ds.Frames[fr.UnitID] = frame
	}

	for i, ir := range file.Interactions {
		if err := ir.Unit1.Validate(); err != nil {
			return nil, fmt.Errorf("interaction %d: %w", i, err)
		}
		if err := ir.Unit2.Validate(); err != nil {
			return nil, fmt.Errorf("interaction %d: %w", i, err)
		}
		if ir.Unit1 == ir.Unit2 {
			return nil, fmt.Errorf("interaction %d: unit %s paired with itself", i, ir.Unit1)
		}
		if ir.Crossing < 0 {
			return nil, fmt.Errorf("interaction %d: negative crossing %d", i, ir.Crossing)
		}
		for _, code := range ir.Annotations {
			if !search.IsKnown(code) {
				slog.Debug("unknown interaction annotation kept as is", "code", code, "unit1", ir.Unit1, "unit2", ir.Unit2)
			}
		}
		ds.Table.Add(ir.Unit1, ir.Unit2, ir.Annotations, ir.Crossing)
	}

	seen := make(map[string]bool, len(file.Loops))
	for _, lr := range file.Loops {
		if seen[lr.LoopID] {
			return nil, fmt.Errorf("loop %s listed twice", lr.LoopID)
		}
		seen[lr.LoopID] = true

		loop, err := buildLoop(lr)
		if err != nil {
			slog.Warn("rejecting loop", "loop", lr.LoopID, "error", err)
			ds.Rejected = append(ds.Rejected, RejectedLoop{LoopID: lr.LoopID, Err: err})
			continue
		}
		ds.Loops = append(ds.Loops, loop)
	}
	sort.Slice(ds.Loops, func(i, j int) bool { return ds.Loops[i].ID < ds.Loops[j].ID })
	return ds, nil
}

func buildLoop(lr LoopRecord) (*types.Loop, error) {
	if len(lr.Positions) == 0 {
		return nil, errors.New("loop has no positions")
	}
	positions := make(map[int]loops.Position, len(lr.Positions))
	for _, p := range lr.Positions {
		if p.Position < 1 {
			return nil, fmt.Errorf("position %d of %s must be >= 1", p.Position, p.UnitID)
		}
		if _, dup := positions[p.Position]; dup {
			return nil, fmt.Errorf("position %d listed twice", p.Position)
		}
		if err := p.UnitID.Validate(); err != nil {
			return nil, err
		}
		positions[p.Position] = loops.Position{Boundary: p.Border, Unit: p.UnitID}
	}
	strands, err := loops.ParseStrands(positions)
	if err != nil {
		return nil, err
	}
	return types.NewLoop(lr.LoopID, strands)
}

// OfType returns the loops of type t.
func (d *Dataset) OfType(t types.LoopType) []*types.Loop {
	var out []*types.Loop
	for _, l := range d.Loops {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}

// Loop returns the loop with the given id.
func (d *Dataset) Loop(id string) (*types.Loop, bool) {
	for _, l := range d.Loops {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Write encodes file as indented JSON.
func Write(w io.Writer, file *File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}
