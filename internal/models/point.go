// Package models holds the immutable value types shared by the ingestion,
// spatial-index, and rasterizer packages: colored samples, their bounding
// box, and the point-cloud container built from a parsed PLY file.
package models

import "math"

// Point is a single colored 3D sample. Color is present only when the
// source PLY declared RGB(A) vertex properties.
type Point struct {
	X, Y, Z    float64
	HasColor   bool
	R, G, B, A uint8
}

// AABB is an axis-aligned bounding box. The zero value is the degenerate
// box at the origin, matching the "empty cloud" invariant in spec.md §3.
type AABB struct {
	Min, Max [3]float64
}

// Span returns Max-Min per axis.
func (b AABB) Span() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Padded inflates the box by ratio*(max-min) on each side, independently
// per axis. ratio may be 0, in which case Padded returns b unchanged.
func (b AABB) Padded(ratio float64) AABB {
	span := b.Span()
	out := b
	for i := 0; i < 3; i++ {
		pad := ratio * span[i]
		out.Min[i] -= pad
		out.Max[i] += pad
	}
	return out
}

// PointCloud is an immutable, ordered set of points plus their precomputed
// bounding box.
type PointCloud struct {
	Points []Point
	Bounds AABB
}

// NewPointCloud computes the tight AABB over pts and returns the cloud.
// An empty slice yields the zero-value AABB per spec.md §3.
func NewPointCloud(pts []Point) *PointCloud {
	pc := &PointCloud{Points: pts}
	if len(pts) == 0 {
		return pc
	}
	min := [3]float64{pts[0].X, pts[0].Y, pts[0].Z}
	max := min
	for _, p := range pts[1:] {
		if p.X < min[0] {
			min[0] = p.X
		}
		if p.Y < min[1] {
			min[1] = p.Y
		}
		if p.Z < min[2] {
			min[2] = p.Z
		}
		if p.X > max[0] {
			max[0] = p.X
		}
		if p.Y > max[1] {
			max[1] = p.Y
		}
		if p.Z > max[2] {
			max[2] = p.Z
		}
	}
	pc.Bounds = AABB{Min: min, Max: max}
	return pc
}

// Coord returns the point's coordinate on the given axis (0=x, 1=y, 2=z).
func (p Point) Coord(axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	default:
		panic("models: axis out of range")
	}
}

// IsFinite reports whether all three coordinates are finite. The PLY loader
// does not call it; NaN/Inf vertex data is loaded as is.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}
