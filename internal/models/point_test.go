package models

import (
	"math"
	"testing"
)

func TestNewPointCloudEmpty(t *testing.T) {
	pc := NewPointCloud(nil)
	if pc.Bounds != (AABB{}) {
		t.Errorf("empty cloud bounds = %+v, want zero value", pc.Bounds)
	}
}

func TestNewPointCloudTightBounds(t *testing.T) {
	pts := []Point{
		{X: -1, Y: 2, Z: 0},
		{X: 3, Y: -4, Z: 5},
		{X: 0, Y: 0, Z: -2},
	}
	pc := NewPointCloud(pts)
	want := AABB{Min: [3]float64{-1, -4, -2}, Max: [3]float64{3, 2, 5}}
	if pc.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", pc.Bounds, want)
	}
}

func TestAABBPaddedZeroRatioUnchanged(t *testing.T) {
	b := AABB{Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 2, 3}}
	if got := b.Padded(0); got != b {
		t.Errorf("Padded(0) = %+v, want unchanged %+v", got, b)
	}
}

func TestAABBPaddedInflatesSymmetrically(t *testing.T) {
	b := AABB{Min: [3]float64{0, 0, 0}, Max: [3]float64{10, 0, 0}}
	got := b.Padded(0.1)
	if got.Min[0] != -1 || got.Max[0] != 11 {
		t.Errorf("Padded(0.1) x-axis = [%v,%v], want [-1,11]", got.Min[0], got.Max[0])
	}
}

func TestPointCoordPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Coord(3) did not panic")
		}
	}()
	Point{}.Coord(3)
}

func TestPointIsFinite(t *testing.T) {
	if !(Point{X: 1, Y: 2, Z: 3}).IsFinite() {
		t.Error("finite point reported non-finite")
	}
	if (Point{X: math.NaN()}).IsFinite() {
		t.Error("NaN point reported finite")
	}
	if (Point{Z: math.Inf(1)}).IsFinite() {
		t.Error("+Inf point reported finite")
	}
}
