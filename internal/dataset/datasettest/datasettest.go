// Package datasettest builds small synthetic datasets for tests.
package datasettest

import (
	"fmt"
	"math"

	"github.com/rna3dhub/motifatlas/internal/dataset"
	"github.com/rna3dhub/motifatlas/internal/types"
)

// MotifCenters is a three nucleotide hairpin shape.
var MotifCenters = []types.Vec3{{0, 0, 0}, {4, 1, 0}, {2, 6, 1}}

// FarCenters is a stretched hairpin that never superimposes on
// MotifCenters.
var FarCenters = []types.Vec3{{0, 0, 0}, {15, 0, 0}, {30, 0, 0}}

// RotZ returns a rotation by a radians about z.
func RotZ(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// RotX returns a rotation by a radians about x.
func RotX(a float64) types.Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return types.Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

// Builder accumulates a dataset.File.
type Builder struct {
	file  dataset.File
	count map[string]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{count: make(map[string]int)}
}

// Hairpin adds HL_<pdb>_<nnn>: three nucleotides G, A, C placed by
// x -> r·x + shift, with a cWW pair between the ends and a s35 stack
// between the first two. It returns the loop id.
func (b *Builder) Hairpin(pdb string, centers []types.Vec3, r types.Mat3, shift types.Vec3) string {
	b.count[pdb]++
	n := b.count[pdb]
	loopID := fmt.Sprintf("HL_%s_%03d", pdb, n)

	rotations := []types.Mat3{types.Identity3(), RotZ(0.5), RotX(0.8)}
	seq := []string{"G", "A", "C"}
	var units []types.UnitID
	lr := dataset.LoopRecord{LoopID: loopID}
	for i, c := range centers {
		u := types.UnitID(fmt.Sprintf("%s|1|A|%s|%d", pdb, seq[i], 10*n+i))
		units = append(units, u)
		b.file.Frames = append(b.file.Frames, dataset.FrameRecord{
			UnitID:   u,
			Centers:  map[string]types.Vec3{types.CenterBase: r.Apply(c).Add(shift)},
			Rotation: r.Mul(rotations[i]),
		})
		lr.Positions = append(lr.Positions, dataset.PositionRecord{
			Position: i + 1,
			UnitID:   u,
			Border:   i == 0 || i == len(centers)-1,
		})
	}
	b.file.Loops = append(b.file.Loops, lr)
	b.file.Interactions = append(b.file.Interactions,
		dataset.InteractionRecord{Unit1: units[0], Unit2: units[2], Annotations: []string{"cWW"}},
		dataset.InteractionRecord{Unit1: units[0], Unit2: units[1], Annotations: []string{"s35"}},
	)
	return loopID
}

// File returns the accumulated file.
func (b *Builder) File() *dataset.File { return &b.file }

// Dataset validates and indexes the accumulated file.
func (b *Builder) Dataset() (*dataset.Dataset, error) { return dataset.FromFile(&b.file) }
