package sim

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a position with an orientation quaternion.
type Pose struct {
	Pos r3.Vector
	Orn quat.Number
}

// Identity is the orientation (0, 0, 0, 1).
var Identity = quat.Number{Real: 1}

// normalize returns q scaled to unit length, or Identity for the zero
// quaternion.
func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// snapEpsilon absorbs the rounding left by repeated fixed-size steps.
const snapEpsilon = 1e-9

// stepToward moves cur toward target by at most maxStep. A target within
// snapEpsilon of a full step is reached exactly.
func stepToward(cur, target r3.Vector, maxStep float64) r3.Vector {
	d := target.Sub(cur)
	if n := d.Norm(); n > maxStep+snapEpsilon {
		return cur.Add(d.Mul(maxStep / n))
	}
	return target
}

// clampDistance pulls p back onto the sphere of radius max around center
// when it lies outside it.
func clampDistance(center, p r3.Vector, max float64) r3.Vector {
	d := p.Sub(center)
	if n := d.Norm(); n > max {
		return center.Add(d.Mul(max / n))
	}
	return p
}

func vecSlice(v r3.Vector) []float64 { return []float64{v.X, v.Y, v.Z} }

func quatSlice(q quat.Number) []float64 { return []float64{q.Imag, q.Jmag, q.Kmag, q.Real} }

func sliceVec(s []float64) (r3.Vector, bool) {
	if len(s) != 3 {
		return r3.Vector{}, false
	}
	return r3.Vector{X: s[0], Y: s[1], Z: s[2]}, true
}

func sliceQuat(s []float64) (quat.Number, bool) {
	if len(s) != 4 {
		return quat.Number{}, false
	}
	return quat.Number{Imag: s[0], Jmag: s[1], Kmag: s[2], Real: s[3]}, true
}
