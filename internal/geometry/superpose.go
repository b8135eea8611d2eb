package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/rna3dhub/motifatlas/internal/types"
	"gonum.org/v1/gonum/mat"
)

// superposition is the rigid transform placing set 2 onto set 1, together
// with the squared center distance of every position after the transform.
type superposition struct {
	R     types.Mat3
	dist2 []float64
}

// errSVD is returned when gonum fails to factorize the covariance matrix.
var errSVD = errors.New("singular value decomposition failed")

// superpose computes the optimal rotation of set 2 onto set 1. Three or more
// positions use the weighted Kabsch algorithm; exactly two positions use a
// closed form, since the rotation about the inter-center axis is not
// determined by the centers alone.
func superpose(c1, c2 []types.Vec3, r1, r2 []types.Mat3, w []float64) (superposition, error) {
	if len(c1) == 2 {
		return twoPoint(c1, c2, r1, r2), nil
	}
	return kabsch(c1, c2, w)
}

// kabsch implements the weighted Kabsch algorithm.
//
// Center both sets on their weighted centroids, build the covariance
// H = Σ wᵢ qᵢ pᵢᵀ (q from set 2, p from set 1), factor H = U S Vᵀ and take
// R = V diag(1, 1, d) Uᵀ with d = sign(det(V Uᵀ)) so that R is a proper
// rotation and R qᵢ ≈ pᵢ.
func kabsch(c1, c2 []types.Vec3, w []float64) (superposition, error) {
	n := len(c1)
	m1 := weightedMean(c1, w)
	m2 := weightedMean(c2, w)

	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		p := c1[i].Sub(m1)
		q := c2[i].Sub(m2)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+w[i]*q[r]*p[c])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return superposition{}, errSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1.0
	}

	var rot types.Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rot[r][c] = v.At(r, 0)*u.At(c, 0) + v.At(r, 1)*u.At(c, 1) + d*v.At(r, 2)*u.At(c, 2)
		}
	}

	dist2 := make([]float64, n)
	for i := 0; i < n; i++ {
		moved := rot.Apply(c2[i].Sub(m2))
		diff := moved.Sub(c1[i].Sub(m1))
		dist2[i] = diff.Dot(diff)
	}
	return superposition{R: rot, dist2: dist2}, nil
}

// twoPoint superposes two pairs of centers. The inter-center vector of set 2
// is turned onto that of set 1 by the smallest rotation, then twisted about
// that axis by the angle maximizing Σ tr(R·R2ᵢ·R1ᵢᵀ), which has the closed
// form θ = atan2(b, a). Both points end up (d1-d2)/2 from their partners.
func twoPoint(c1, c2 []types.Vec3, r1, r2 []types.Mat3) superposition {
	p := c1[1].Sub(c1[0])
	q := c2[1].Sub(c2[0])
	d1, d2 := p.Norm(), q.Norm()

	rot := types.Identity3()
	if d1 > 0 && d2 > 0 {
		ph := p.Scale(1 / d1)
		qh := q.Scale(1 / d2)
		r0 := alignVectors(qh, ph)

		var a, b float64
		k := skew(ph)
		for i := range r1 {
			m := r0.Mul(r2[i]).Mul(r1[i].T())
			a += m.Trace() - ph.Dot(m.Apply(ph))
			b += k.Mul(m).Trace()
		}
		rot = axisAngle(ph, math.Atan2(b, a)).Mul(r0)
	}

	half := (d1 - d2) / 2
	return superposition{R: rot, dist2: []float64{half * half, half * half}}
}

// alignVectors returns the smallest rotation taking unit vector from onto
// unit vector to.
func alignVectors(from, to types.Vec3) types.Mat3 {
	c := from.Dot(to)
	if c > 1-1e-12 {
		return types.Identity3()
	}
	if c < -1+1e-12 {
		// antiparallel: half turn about any axis perpendicular to from
		axis := from.Cross(types.Vec3{1, 0, 0})
		if axis.Norm() < 1e-6 {
			axis = from.Cross(types.Vec3{0, 1, 0})
		}
		return axisAngle(axis.Scale(1/axis.Norm()), math.Pi)
	}
	axis := from.Cross(to)
	return axisAngle(axis.Scale(1/axis.Norm()), math.Acos(c))
}

// axisAngle returns the rotation by theta about unit axis k (Rodrigues).
func axisAngle(k types.Vec3, theta float64) types.Mat3 {
	c, s := math.Cos(theta), math.Sin(theta)
	kx := skew(k)
	var out types.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var id float64
			if i == j {
				id = 1
			}
			out[i][j] = c*id + s*kx[i][j] + (1-c)*k[i]*k[j]
		}
	}
	return out
}

func skew(k types.Vec3) types.Mat3 {
	return types.Mat3{
		{0, -k[2], k[1]},
		{k[2], 0, -k[0]},
		{-k[1], k[0], 0},
	}
}

func weightedMean(cs []types.Vec3, w []float64) types.Vec3 {
	var sum types.Vec3
	var total float64
	for i, c := range cs {
		sum = sum.Add(c.Scale(w[i]))
		total += w[i]
	}
	return sum.Scale(1 / total)
}

// AngleOfRotation returns the rotation angle of a rotation matrix in
// radians, in [0, π].
func AngleOfRotation(m types.Mat3) float64 {
	x := (m.Trace() - 1) / 2
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return math.Acos(x)
}

// Superimpose returns the rotation placing frames2 onto frames1 and the
// root mean square center deviation after superposition.
func Superimpose(frames1, frames2 []types.NucleotideFrame, opts *Options) (types.Mat3, float64, error) {
	in, err := prepare(frames1, frames2, opts)
	if err != nil {
		return types.Mat3{}, 0, err
	}
	sp, err := superpose(in.c1, in.c2, in.r1, in.r2, in.cw)
	if err != nil {
		return types.Mat3{}, 0, fmt.Errorf("superposing %d positions: %w", len(in.c1), err)
	}
	var sse float64
	for _, d := range sp.dist2 {
		sse += d
	}
	return sp.R, math.Sqrt(sse / float64(len(sp.dist2))), nil
}
