package common

import (
	"math"
)

// Vec3 is a 3-component vector in world space.
type Vec3 [3]float32

// Mat4 is a 4x4 matrix stored column-major, the layout WGSL expects for mat4x4<f32>.
// Element (row r, column c) is at index c*4+r.
type Mat4 [16]float32

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := math.Sqrt(float64(v.Dot(v)))
	if l == 0 {
		return v
	}
	s := float32(1 / l)
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{0: 1, 5: 1, 10: 1, 15: 1}
}

// Translation returns a matrix that moves points by t.
func Translation(t Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// Scaling returns a matrix that scales each axis by s.
func Scaling(s Vec3) Mat4 {
	return Mat4{0: s[0], 5: s[1], 10: s[2], 15: 1}
}

// RotationY returns a right-handed rotation of angle radians around +Y.
func RotationY(angle float32) Mat4 {
	s, c := math.Sincos(float64(angle))
	m := Identity()
	m[0], m[2] = float32(c), float32(-s)
	m[8], m[10] = float32(s), float32(c)
	return m
}

// Mul returns m * o, so o is applied first when transforming a point.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			var sum float32
			for k := range 4 {
				sum += m[k*4+r] * o[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Transpose returns m with rows and columns swapped.
func (m Mat4) Transpose() Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			out[r*4+c] = m[c*4+r]
		}
	}
	return out
}

// Det3 returns the determinant of the upper-left 3x3 block. A negative value means the
// transform mirrors geometry and flips triangle winding.
func (m Mat4) Det3() float32 {
	return m[0]*(m[5]*m[10]-m[9]*m[6]) -
		m[4]*(m[1]*m[10]-m[9]*m[2]) +
		m[8]*(m[1]*m[6]-m[5]*m[2])
}

// Inverse returns the inverse of m by Gauss-Jordan elimination with partial pivoting,
// carried out in float64.
//
// Returns:
//   - Mat4: the inverse, or the zero matrix when m is singular
//   - bool: false if m is singular
func (m Mat4) Inverse() (Mat4, bool) {
	// Augmented [m | I], row-major for elimination.
	var a [4][8]float64
	for r := range 4 {
		for c := range 4 {
			a[r][c] = float64(m[c*4+r])
		}
		a[r][4+r] = 1
	}

	for col := range 4 {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return Mat4{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		inv := 1 / a[col][col]
		for c := range 8 {
			a[col][c] *= inv
		}
		for r := range 4 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := range 8 {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var out Mat4
	for r := range 4 {
		for c := range 4 {
			out[c*4+r] = float32(a[r][4+c])
		}
	}
	return out, true
}

// Perspective returns a right-handed perspective projection mapping view depth
// [-near, -far] to clip depth [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport width divided by height
//   - near: near plane distance, greater than zero
//   - far: far plane distance, greater than near
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	return Mat4{
		0:  f / aspect,
		5:  f,
		10: far / (near - far),
		11: -1,
		14: near * far / (near - far),
	}
}

// LookAt returns a right-handed view matrix for a camera at eye looking at target.
// The camera looks down its local -Z axis.
func LookAt(eye, target, up Vec3) Mat4 {
	z := eye.Sub(target).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return Mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}
