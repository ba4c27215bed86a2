package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"voxelraster/pkg/config"
)

func writeCubePLY(t *testing.T, path string) {
	t.Helper()
	data := `ply
format ascii 1.0
element vertex 8
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
0 0 0 255 0 0
1 0 0 255 0 0
0 1 0 255 0 0
0 0 1 255 0 0
1 1 0 255 0 0
1 0 1 255 0 0
0 1 1 255 0 0
1 1 1 255 0 0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRunProducesOneFilePerLayer(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "cube.ply")
	writeCubePLY(t, plyPath)

	outDir := filepath.Join(dir, "out")
	cfg := config.DefaultConfig()
	cfg.Build.DPI = 4
	cfg.Build.LayerHeightNm = 6_350_000 // 4 layers/inch
	cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn = 1, 1, 1
	cfg.Sampling.VoxelRadiusIn = 0.5
	cfg.Processing.NumCores = 2

	summary, err := Run(plyPath, outDir, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Width != 4 || summary.Height != 4 || summary.Depth != 4 {
		t.Fatalf("dims = %dx%dx%d, want 4x4x4", summary.Width, summary.Height, summary.Depth)
	}
	if summary.PointCount != 8 {
		t.Errorf("PointCount = %d, want 8", summary.PointCount)
	}

	for z := 0; z < summary.Depth; z++ {
		path := filepath.Join(outDir, fmt.Sprintf("out_%d.png", z))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected layer file %s: %v", path, err)
		}
	}
	if summary.LayersWithMaterial == 0 {
		t.Error("expected at least one layer with material for a cube spanning the whole build volume")
	}
}

// TestRunSinglePointCloud exercises spec.md §8 scenario A: a single-point
// cloud produces a zero-volume AABB, which must be widened rather than left
// collapsed so the resulting stack paints a small blob near the raster
// center on the layers spanning the point's Z band, not every pixel of
// every layer.
func TestRunSinglePointCloud(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "single.ply")
	data := `ply
format ascii 1.0
element vertex 1
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
0 0 0 200 100 50
`
	if err := os.WriteFile(plyPath, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	cfg := config.DefaultConfig()
	cfg.Build.DPI = 300
	cfg.Build.LayerHeightNm = 27_000
	cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn = 0.05, 0.05, 0.05
	cfg.Build.PaddingRatio = 0.5
	cfg.Sampling.VoxelRadiusIn = 0.01
	cfg.Processing.NumCores = 2
	cfg.Output.Verbose = false

	summary, err := Run(plyPath, outDir, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.LayersWithMaterial == 0 {
		t.Fatal("expected at least one layer with material near the single point")
	}
	if summary.LayersWithMaterial == summary.Depth {
		t.Errorf("expected only layers near the point's z-band to have material, got all %d layers filled", summary.Depth)
	}
	if summary.TotalFilledPixels >= summary.Width*summary.Height*summary.Depth/2 {
		t.Errorf("expected a small filled blob, got %d/%d pixels filled (raster collapsed onto one point?)",
			summary.TotalFilledPixels, summary.Width*summary.Height*summary.Depth)
	}
}

func TestRunEmptyPointCloudFails(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "empty.ply")
	data := "ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nproperty float y\nproperty float z\nend_header\n"
	if err := os.WriteFile(plyPath, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn = 1, 1, 1
	if _, err := Run(plyPath, filepath.Join(dir, "out"), cfg); err == nil {
		t.Error("expected an error for an empty point cloud, got nil")
	}
}
