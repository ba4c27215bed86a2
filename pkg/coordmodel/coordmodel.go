// Package coordmodel implements the pure functions bridging physical build
// parameters (inches, DPI, layer height) to discrete raster dimensions and
// the affine voxel↔model-space map (spec.md §4.3).
package coordmodel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"voxelraster/internal/models"
)

// NmPerInch is the number of nanometers in one inch, used to convert a
// layer height in nanometers into a Z voxel count.
const NmPerInch = 25_400_000.0

// Physical holds the build-volume parameters that drive the coordinate
// model: physical inches per axis, X/Y resolution in DPI, and Z layer
// thickness in nanometers.
type Physical struct {
	DPI           int
	LayerHeightNm int
	XIn, YIn, ZIn float64
}

// Dims computes the raster dimensions (W,H,D), each floored at 1, per
// spec.md §3. It is non-decreasing in every input per spec.md §8 invariant 1.
func Dims(p Physical) (w, h, d int) {
	w = maxInt(1, roundInt(p.XIn*float64(p.DPI)))
	h = maxInt(1, roundInt(p.YIn*float64(p.DPI)))
	layersPerInch := NmPerInch / float64(p.LayerHeightNm)
	d = maxInt(1, roundInt(p.ZIn*layersPerInch))
	return w, h, d
}

// LayersPerInch is the Z-axis analog of DPI: how many voxel layers span one
// physical inch at the configured layer height.
func LayersPerInch(layerHeightNm int) float64 {
	return NmPerInch / float64(layerHeightNm)
}

func roundInt(v float64) int { return int(math.Round(v)) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// NormalizeBounds widens any axis whose span is exactly zero to the full
// physical build size on that axis, centered on the degenerate value. A
// single-point cloud (or any cloud collapsed onto a plane or line) would
// otherwise leave AABB.Padded's ratio*span inflation at zero on that axis
// too, driving NewModel's per-axis scale to zero and collapsing every voxel
// along it onto the same world coordinate — spec.md §8 scenario A calls for
// "substituted minimum extents" instead. Callers must normalize before
// computing both the Model and ModelUnitsPerInch from the same bounds.
func NormalizeBounds(bounds models.AABB, p Physical) models.AABB {
	inches := [3]float64{p.XIn, p.YIn, p.ZIn}
	span := bounds.Span()
	for i := 0; i < 3; i++ {
		if span[i] == 0 {
			center := bounds.Min[i]
			half := inches[i] / 2
			bounds.Min[i] = center - half
			bounds.Max[i] = center + half
		}
	}
	return bounds
}

// Model is the affine transform between voxel indices and model-space
// coordinates for one padded AABB and raster size, expressed as a 4x4
// homogeneous scale+translate matrix in the style of gonum's mat package.
type Model struct {
	bounds models.AABB
	w, h, d int
	forward *mat.Dense
}

// NewModel builds the forward voxel->world transform for the padded bounds
// and raster dimensions. bounds should already be normalized (see
// NormalizeBounds) if it may have a zero-span axis.
func NewModel(bounds models.AABB, w, h, d int) *Model {
	span := bounds.Span()
	sx := span[0] / float64(w)
	sy := span[1] / float64(h)
	sz := span[2] / float64(d)

	m := mat.NewDense(4, 4, []float64{
		sx, 0, 0, bounds.Min[0] + sx/2,
		0, sy, 0, bounds.Min[1] + sy/2,
		0, 0, sz, bounds.Min[2] + sz/2,
		0, 0, 0, 1,
	})
	return &Model{bounds: bounds, w: w, h: h, d: d, forward: m}
}

// World maps a voxel index (col,row,z) to its half-voxel-centered
// model-space coordinate.
func (m *Model) World(col, row, z int) [3]float64 {
	idx := mat.NewVecDense(4, []float64{float64(col), float64(row), float64(z), 1})
	var out mat.VecDense
	out.MulVec(m.forward, idx)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// ModelUnitsPerInch returns the average of the three per-axis
// model-units-per-inch ratios (bounds span divided by build inches; an axis
// with zero inches contributes 0), used to convert an inch radius into
// model-space units for the k-d tree query caps.
func ModelUnitsPerInch(bounds models.AABB, xIn, yIn, zIn float64) float64 {
	span := bounds.Span()
	var ratios [3]float64
	if xIn != 0 {
		ratios[0] = span[0] / xIn
	}
	if yIn != 0 {
		ratios[1] = span[1] / yIn
	}
	if zIn != 0 {
		ratios[2] = span[2] / zIn
	}
	return (ratios[0] + ratios[1] + ratios[2]) / 3
}
