package common

import "github.com/chewxy/math32"

// Vec4 is a four component float32 vector. Matrix columns are stored as Vec4 values.
type Vec4 [4]float32

// Dot returns the dot product of v and o.
func (v Vec4) Dot(o Vec4) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] + v[3]*o[3]
}

// Matrix is a 4x4 float32 matrix stored as four columns. The element at (row, col) is m[col][row].
//
// Matrices follow the row-vector convention used by the visualization shaders: a point p is
// transformed as p' = p × M, so a.Mul(b) applies a first and then b.
type Matrix [4]Vec4

// IdentityMatrix returns the 4x4 identity matrix.
//
// Returns:
//   - Matrix: the identity matrix
func IdentityMatrix() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// RotX returns a rotation of theta radians around the X axis.
//
// Parameters:
//   - theta: the rotation angle in radians
//
// Returns:
//   - Matrix: the rotation matrix
func RotX(theta float32) Matrix {
	s, c := math32.Sincos(theta)
	return Matrix{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
		{0, 0, 0, 1},
	}
}

// RotY returns a rotation of theta radians around the Y axis.
//
// Parameters:
//   - theta: the rotation angle in radians
//
// Returns:
//   - Matrix: the rotation matrix
func RotY(theta float32) Matrix {
	s, c := math32.Sincos(theta)
	return Matrix{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
		{0, 0, 0, 1},
	}
}

// RotZ returns a rotation of theta radians around the Z axis.
//
// Parameters:
//   - theta: the rotation angle in radians
//
// Returns:
//   - Matrix: the rotation matrix
func RotZ(theta float32) Matrix {
	s, c := math32.Sincos(theta)
	return Matrix{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Scale returns a non-uniform scale matrix.
//
// Parameters:
//   - x: the scale factor along X
//   - y: the scale factor along Y
//   - z: the scale factor along Z
//
// Returns:
//   - Matrix: the scale matrix
func Scale(x, y, z float32) Matrix {
	return Matrix{
		{x, 0, 0, 0},
		{0, y, 0, 0},
		{0, 0, z, 0},
		{0, 0, 0, 1},
	}
}

// Translate returns a translation matrix. The offset lives in the bottom row.
//
// Parameters:
//   - x: the offset along X
//   - y: the offset along Y
//   - z: the offset along Z
//
// Returns:
//   - Matrix: the translation matrix
func Translate(x, y, z float32) Matrix {
	return Matrix{
		{1, 0, 0, x},
		{0, 1, 0, y},
		{0, 0, 1, z},
		{0, 0, 0, 1},
	}
}

// At returns the element at the given row and column.
func (m Matrix) At(row, col int) float32 {
	return m[col][row]
}

// Row returns row i of the matrix.
func (m Matrix) Row(i int) Vec4 {
	return Vec4{m[0][i], m[1][i], m[2][i], m[3][i]}
}

// Mul returns the product m × o. Under the row-vector convention the result applies m first.
//
// Parameters:
//   - o: the right-hand matrix
//
// Returns:
//   - Matrix: the product matrix
func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[col][row] = m.Row(row).Dot(o[col])
		}
	}
	return out
}

// Transform applies the matrix to the point p as p × m.
//
// Parameters:
//   - p: the point to transform
//
// Returns:
//   - Vec4: the transformed point
func (m Matrix) Transform(p Vec4) Vec4 {
	return Vec4{p.Dot(m[0]), p.Dot(m[1]), p.Dot(m[2]), p.Dot(m[3])}
}

// As4x3 flattens the first three stored columns into 12 floats. This is the layout the
// shaders consume for affine projections, each output coordinate being dot(column, (p, 1)).
//
// Returns:
//   - [12]float32: the packed affine matrix
func (m Matrix) As4x3() [12]float32 {
	var out [12]float32
	for i := 0; i < 3; i++ {
		copy(out[i*4:], m[i][:])
	}
	return out
}

// DivRoundUp divides n by d rounding toward positive infinity. It is used to size compute dispatches.
func DivRoundUp(n, d uint32) uint32 {
	return (n + d - 1) / d
}
