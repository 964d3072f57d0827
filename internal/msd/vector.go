package msd

import "math"

// Vector is a 3-component spin or field vector.
type Vector struct {
	X, Y, Z float64
}

func (v Vector) Add(w Vector) Vector {
	return Vector{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector) Dot(w Vector) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

func (v Vector) Cross(w Vector) Vector {
	return Vector{
		v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X,
	}
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns the unit vector in v's direction, or ẑ for the zero
// vector so rescaling a zeroed spin still yields a usable direction.
func (v Vector) Normalized() Vector {
	n := v.Norm()
	if n == 0 {
		return Vector{Z: 1}
	}
	return v.Scale(1 / n)
}
