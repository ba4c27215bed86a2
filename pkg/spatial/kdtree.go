// Package spatial implements the balanced k-d tree used to answer
// nearest-neighbor queries over a point cloud, with support for
// axis-selective and per-axis anisotropic pruning (spec.md §4.2).
//
// The tree is a from-scratch median-split structure rather than a wrapper
// around gonum.org/v1/gonum/spatial/kdtree: that package's Nearest walks the
// tree using a single Comparable.Distance metric and offers no hook for
// masking axes or capping distance independently per axis, both of which
// this package's callers require.
package spatial

import (
	"math"

	"voxelraster/internal/models"
)

// Node is one split point in the tree. It borrows its Point from the
// PointCloud that built the tree; the tree never copies point data.
type Node struct {
	Point       *models.Point
	Axis        int
	Left, Right *Node
}

// Tree is a balanced 3D k-d tree over an immutable set of points.
type Tree struct {
	root *Node
}

// Build constructs a balanced tree from pts by recursive median selection,
// cycling the split axis x→y→z with depth. Only a slice of pointers into pts
// is reordered, never pts itself; the tree keeps those pointers, so the
// caller must not mutate pts afterward.
func Build(pts []models.Point) *Tree {
	refs := make([]*models.Point, len(pts))
	for i := range pts {
		refs[i] = &pts[i]
	}
	return &Tree{root: build(refs, 0)}
}

func build(pts []*models.Point, depth int) *Node {
	if len(pts) == 0 {
		return nil
	}
	axis := depth % 3
	mid := len(pts) / 2
	quickselectMedian(pts, axis, mid)

	node := &Node{Point: pts[mid], Axis: axis}
	node.Left = build(pts[:mid], depth+1)
	node.Right = build(pts[mid+1:], depth+1)
	return node
}

// quickselectMedian partitions pts in place on the given axis so that
// pts[k] holds the k-th smallest element and everything left of it is no
// greater, everything right of it no smaller (Hoare-style quickselect).
func quickselectMedian(pts []*models.Point, axis, k int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		p := partition(pts, axis, lo, hi)
		switch {
		case k < p:
			hi = p - 1
		case k > p:
			lo = p + 1
		default:
			return
		}
	}
}

func partition(pts []*models.Point, axis, lo, hi int) int {
	pivot := pts[(lo+hi)/2].Coord(axis)
	pts[(lo+hi)/2], pts[hi] = pts[hi], pts[(lo+hi)/2]
	store := lo
	for i := lo; i < hi; i++ {
		if pts[i].Coord(axis) < pivot {
			pts[i], pts[store] = pts[store], pts[i]
			store++
		}
	}
	pts[store], pts[hi] = pts[hi], pts[store]
	return store
}

// AxisMask selects which axes contribute to a query's squared distance.
type AxisMask uint8

const (
	AxisX AxisMask = 1 << iota
	AxisY
	AxisZ
	AxisXYZ = AxisX | AxisY | AxisZ
)

func (m AxisMask) has(axis int) bool {
	switch axis {
	case 0:
		return m&AxisX != 0
	case 1:
		return m&AxisY != 0
	case 2:
		return m&AxisZ != 0
	default:
		return false
	}
}

// QueryOptions configures a Nearest call. The zero value searches all three
// axes with no distance cap.
type QueryOptions struct {
	Axes AxisMask

	// MaxDistance is an isotropic inclusive cap (spec.md §9: caps are
	// inclusive upper bounds). It applies only when HasMaxDistance is set;
	// with HasMaxDistance unset there is no cap, and a set MaxDistance of 0
	// admits only points at distance exactly 0.
	MaxDistance float64
	HasMaxDistance bool

	// Per-axis inclusive caps; anisotropic pre-filter applied in addition to
	// MaxDistance when set.
	MaxDistanceX, MaxDistanceY, MaxDistanceZ float64
	HasMaxDistanceX, HasMaxDistanceY, HasMaxDistanceZ bool
}

// Result is a query hit.
type Result struct {
	Point    *models.Point
	Distance float64
}

// Nearest returns the closest point to target under opts, or ok=false if no
// point satisfies the caps. Ties may resolve to any qualifying point.
func (t *Tree) Nearest(target [3]float64, opts QueryOptions) (Result, bool) {
	if t.root == nil {
		return Result{}, false
	}
	axes := opts.Axes
	if axes == 0 {
		axes = AxisXYZ
	}
	best := Result{Distance: math.Inf(1)}
	found := false
	search(t.root, target, axes, opts, &best, &found)
	if !found {
		return Result{}, false
	}
	best.Distance = math.Sqrt(best.Distance)
	return best, true
}

func search(n *Node, target [3]float64, axes AxisMask, opts QueryOptions, best *Result, found *bool) {
	if n == nil {
		return
	}

	if eligible(n.Point, target, axes, opts) {
		d := sqDistance(n.Point, target, axes)
		if d < best.Distance {
			best.Distance = d
			best.Point = n.Point
			*found = true
		}
	}

	axis := n.Axis
	splitCoord := n.Point.Coord(axis)
	diff := target[axis] - splitCoord

	if !axes.has(axis) {
		// Inactive axis contributes 0 to squared distance on both sides, so
		// no split-plane pruning is possible; visit both children.
		search(n.Left, target, axes, opts, best, found)
		search(n.Right, target, axes, opts, best, found)
		return
	}

	near, far := n.Left, n.Right
	if diff > 0 {
		near, far = n.Right, n.Left
	}
	search(near, target, axes, opts, best, found)

	if diff*diff < best.Distance {
		search(far, target, axes, opts, best, found)
	}
}

// eligible applies the anisotropic per-axis caps as a pre-filter, then the
// isotropic cap against the active-axis squared distance.
func eligible(p *models.Point, target [3]float64, axes AxisMask, opts QueryOptions) bool {
	if opts.HasMaxDistanceX && axes.has(0) {
		if math.Abs(p.X-target[0]) > opts.MaxDistanceX {
			return false
		}
	}
	if opts.HasMaxDistanceY && axes.has(1) {
		if math.Abs(p.Y-target[1]) > opts.MaxDistanceY {
			return false
		}
	}
	if opts.HasMaxDistanceZ && axes.has(2) {
		if math.Abs(p.Z-target[2]) > opts.MaxDistanceZ {
			return false
		}
	}
	if opts.HasMaxDistance {
		d := math.Sqrt(sqDistance(p, target, axes))
		if d > opts.MaxDistance {
			return false
		}
	}
	return true
}

func sqDistance(p *models.Point, target [3]float64, axes AxisMask) float64 {
	var sum float64
	if axes.has(0) {
		dx := p.X - target[0]
		sum += dx * dx
	}
	if axes.has(1) {
		dy := p.Y - target[1]
		sum += dy * dy
	}
	if axes.has(2) {
		dz := p.Z - target[2]
		sum += dz * dz
	}
	return sum
}
