package types

import (
	"fmt"
	"math"
	"strings"
)

// Vec3 is a point or direction in Cartesian space (Å).
type Vec3 [3]float64

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Scale returns s*v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Dot returns the inner product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Mat3 is a row-major 3x3 matrix. Nucleotide rotations are orthonormal with
// determinant +1; the columns are the base's local x, y and z axes.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * n[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// T returns the transpose of m.
func (m Mat3) T() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Apply returns m·v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Trace returns the sum of the diagonal.
func (m Mat3) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// CenterBase is the center type used by discrepancy calculations.
const CenterBase = "base"

// UnitID identifies a single nucleotide. It has the pipe separated form
// PDB|Model|Chain|Component|Number with optional trailing
// Atom|AltID|InsCode|SymOp fields.
type UnitID string

func (u UnitID) field(i int) string {
	parts := strings.Split(string(u), "|")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// PDB returns the structure identifier of the unit.
func (u UnitID) PDB() string { return strings.ToUpper(u.field(0)) }

// Chain returns the chain of the unit.
func (u UnitID) Chain() string { return u.field(2) }

// Sequence returns the component name (A, C, G, U, modified names, ...).
func (u UnitID) Sequence() string { return u.field(3) }

// Validate checks that the unit id has at least the five mandatory fields.
func (u UnitID) Validate() error {
	parts := strings.Split(string(u), "|")
	if len(parts) < 5 {
		return fmt.Errorf("unit id %q has %d fields, need at least 5", u, len(parts))
	}
	for i, p := range parts[:5] {
		if p == "" {
			return fmt.Errorf("unit id %q has empty field %d", u, i)
		}
	}
	return nil
}

// NucleotideFrame is the rigid-body description of one nucleotide.
type NucleotideFrame struct {
	Unit     UnitID          `json:"unit_id"`
	Centers  map[string]Vec3 `json:"centers"`
	Rotation Mat3            `json:"rotation"`
}

// Center returns the named center and whether it is present.
func (f NucleotideFrame) Center(kind string) (Vec3, bool) {
	c, ok := f.Centers[kind]
	return c, ok
}

// Validate checks the rotation is a proper rotation matrix.
func (f NucleotideFrame) Validate() error {
	if err := f.Unit.Validate(); err != nil {
		return err
	}
	if d := f.Rotation.Det(); d < 0.99 || d > 1.01 {
		return fmt.Errorf("rotation of %s has determinant %.4f, want 1", f.Unit, d)
	}
	return nil
}
