package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/rna3dhub/motifatlas/internal/types"
)

var (
	// ErrMissingBase is returned when a frame lacks the requested center.
	ErrMissingBase = errors.New("missing base center")
	// ErrWeightLength is returned when a weight list does not match the
	// number of nucleotides.
	ErrWeightLength = errors.New("weight list length does not match nucleotide count")
	// ErrLengthMismatch is returned when the two frame lists differ in length.
	ErrLengthMismatch = errors.New("frame lists differ in length")
	// ErrTooFewPositions is returned for fewer than two positions.
	ErrTooFewPositions = errors.New("discrepancy needs at least two positions")
)

const (
	// flipAngle is the per-position angle above which a 180° base flip is tried.
	flipAngle = 2.5
	// flipGain is how much the flip must lower the angle to be accepted.
	flipGain = 2.0
	// flipMaxDistance bounds the superposed center distance (Å) of a flipped base.
	flipMaxDistance = 2.0
)

// flipY is a half turn about a base's local y axis. Right-multiplying a
// rotation by it negates the x and z axes.
var flipY = types.Mat3{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}}

// Options controls which center is compared and how positions are weighted.
// A nil *Options uses the base center and unit weights.
type Options struct {
	CenterType    string
	CenterWeights []float64
	AngleWeights  []float64
}

type prepared struct {
	c1, c2 []types.Vec3
	r1, r2 []types.Mat3
	cw, aw []float64
}

func prepare(frames1, frames2 []types.NucleotideFrame, opts *Options) (*prepared, error) {
	if len(frames1) != len(frames2) {
		return nil, fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(frames1), len(frames2))
	}
	n := len(frames1)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPositions, n)
	}
	if opts == nil {
		opts = &Options{}
	}
	kind := opts.CenterType
	if kind == "" {
		kind = types.CenterBase
	}

	in := &prepared{
		c1: make([]types.Vec3, n), c2: make([]types.Vec3, n),
		r1: make([]types.Mat3, n), r2: make([]types.Mat3, n),
	}
	for i := 0; i < n; i++ {
		var ok bool
		if in.c1[i], ok = frames1[i].Center(kind); !ok {
			return nil, fmt.Errorf("%w: %s center of %s", ErrMissingBase, kind, frames1[i].Unit)
		}
		if in.c2[i], ok = frames2[i].Center(kind); !ok {
			return nil, fmt.Errorf("%w: %s center of %s", ErrMissingBase, kind, frames2[i].Unit)
		}
		in.r1[i] = frames1[i].Rotation
		in.r2[i] = frames2[i].Rotation
	}

	var err error
	if in.cw, err = weights(opts.CenterWeights, n, "center"); err != nil {
		return nil, err
	}
	if in.aw, err = weights(opts.AngleWeights, n, "angle"); err != nil {
		return nil, err
	}
	return in, nil
}

func weights(w []float64, n int, what string) ([]float64, error) {
	if w == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}
	if len(w) != n {
		return nil, fmt.Errorf("%w: %d %s weights for %d nucleotides", ErrWeightLength, len(w), what, n)
	}
	return w, nil
}

// MatrixDiscrepancy returns the geometric discrepancy between two equal
// length lists of nucleotide frames: sqrt(SSE_center + SSE_angle) / n after
// superposing the second list onto the first.
func MatrixDiscrepancy(frames1, frames2 []types.NucleotideFrame, opts *Options) (float64, error) {
	in, err := prepare(frames1, frames2, opts)
	if err != nil {
		return 0, err
	}
	sp, err := superpose(in.c1, in.c2, in.r1, in.r2, in.cw)
	if err != nil {
		return 0, err
	}

	var total float64
	for i := range in.c1 {
		total += in.cw[i] * sp.dist2[i]
		a := in.aw[i] * AngleOfRotation(sp.R.Mul(in.r2[i]).Mul(in.r1[i].T()))
		total += a * a
	}
	return math.Sqrt(total) / float64(len(in.c1)), nil
}

// MatrixDiscrepancyCutoffFlip is MatrixDiscrepancy with an early exit: the
// error is accumulated position by position and ok is false as soon as it
// exceeds (n·cutoff)². A base whose angle exceeds 2.5 rad is retried after a
// half turn about its local y axis; the flipped angle is used when it is more
// than 2 rad smaller and the base center lies within 2 Å after
// superposition. The result is never larger than MatrixDiscrepancy.
func MatrixDiscrepancyCutoffFlip(frames1, frames2 []types.NucleotideFrame, cutoff float64, opts *Options) (float64, bool, error) {
	in, err := prepare(frames1, frames2, opts)
	if err != nil {
		return 0, false, err
	}
	sp, err := superpose(in.c1, in.c2, in.r1, in.r2, in.cw)
	if err != nil {
		return 0, false, err
	}

	n := float64(len(in.c1))
	limit := (n * cutoff) * (n * cutoff)

	var total float64
	for i := range in.c1 {
		total += in.cw[i] * sp.dist2[i]
	}
	if total > limit {
		return 0, false, nil
	}

	for i := range in.c1 {
		angle := AngleOfRotation(sp.R.Mul(in.r2[i]).Mul(in.r1[i].T()))
		if angle > flipAngle {
			flipped := AngleOfRotation(sp.R.Mul(in.r2[i].Mul(flipY)).Mul(in.r1[i].T()))
			if angle-flipped > flipGain && math.Sqrt(sp.dist2[i]) < flipMaxDistance {
				angle = flipped
			}
		}
		a := in.aw[i] * angle
		total += a * a
		if total > limit {
			return 0, false, nil
		}
	}
	return math.Sqrt(total) / n, true, nil
}
