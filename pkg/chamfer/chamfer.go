// Package chamfer implements the post-process bevel operator (spec.md §4.6):
// given a directory of raster slices, it computes the global material AABB,
// then carves every voxel whose distance to the nearest of the 12 cuboid
// edges or 8 corners is less than the configured radius. Grounded on the
// teacher's two-pass reconstruct-then-refine structure in
// pkg/reconstruction/reconstructor.go (processSubVolumesInParallel followed
// by a serial per-layer refinement loop that depends on the parallel pass's
// output), generalized here to precompute-predicate-then-stream-overlay.
package chamfer

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"voxelraster/pkg/coordmodel"
	"voxelraster/pkg/natsort"
	"voxelraster/pkg/rasterimage"
	"voxelraster/pkg/rasterio"
	"voxelraster/pkg/voxelerr"
)

// debugMarkColor is the opaque black pixel the debug overlay draws on the
// material side of a chamfer boundary, before that boundary is carved.
var debugMarkColor = [4]uint8{0, 0, 0, 255}

// Options configures one chamfer run.
type Options struct {
	RadiusIn      float64
	DPI           int
	LayerHeightNm int
	Debug         bool
	NumWorkers    int
}

// Run reads every *.png file in inputDir, applies the chamfer bevel, and
// writes the result (same filenames) to outputDir.
func Run(inputDir, outputDir string, opts Options) error {
	if math.IsNaN(opts.RadiusIn) || math.IsInf(opts.RadiusIn, 0) || opts.RadiusIn < 0 {
		return voxelerr.New(voxelerr.InvalidParameter, fmt.Sprintf("chamfer radius %v is not a finite non-negative number", opts.RadiusIn))
	}
	if opts.DPI <= 0 || opts.LayerHeightNm <= 0 {
		return voxelerr.New(voxelerr.InvalidParameter, "chamfer requires positive dpi and layerHeightNm")
	}

	paths, err := listPNGs(inputDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return voxelerr.New(voxelerr.InvalidInputFile, fmt.Sprintf("no PNG slices found in %s", inputDir))
	}

	slices := make([]*rasterimage.Image, len(paths))
	var width, height int
	for i, p := range paths {
		img, err := decodePNG(p)
		if err != nil {
			return err
		}
		if i == 0 {
			width, height = img.Width, img.Height
		} else if img.Width != width || img.Height != height {
			return voxelerr.New(voxelerr.DimensionMismatch,
				fmt.Sprintf("%s is %dx%d, expected %dx%d", p, img.Width, img.Height, width, height))
		}
		slices[i] = img
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return voxelerr.Wrap(voxelerr.IOError, outputDir, err)
	}

	x0, x1, y0, y1, z0, z1, hasMaterial := materialAABB(slices)
	if !hasMaterial {
		return copyUnchanged(paths, outputDir)
	}

	xy := buildXYFrame(x0, x1, y0, y1, width, height, opts.DPI)
	layersPerInch := coordmodel.LayersPerInch(opts.LayerHeightNm)

	masks := precomputeMasks(slices, xy, z0, z1, layersPerInch, opts.RadiusIn, opts.NumWorkers)

	return streamAndWrite(slices, paths, outputDir, masks, x0, x1, y0, y1, opts.Debug)
}

func listPNGs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, voxelerr.Wrap(voxelerr.InvalidInputFile, dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".png" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return natsort.Less(names[i], names[j]) })

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func copyUnchanged(paths []string, outputDir string) error {
	for _, p := range paths {
		dst := filepath.Join(outputDir, filepath.Base(p))
		if dst == p {
			// In-place run: the file already holds the unchanged slice.
			continue
		}
		if err := copyFile(p, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return voxelerr.Wrap(voxelerr.IOError, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return voxelerr.Wrap(voxelerr.IOError, dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return voxelerr.Wrap(voxelerr.IOError, dst, err)
	}
	return nil
}

// materialAABB returns the tight bounding box, in pixel/layer indices, of
// every opaque pixel across the whole stack, and whether any exist.
func materialAABB(slices []*rasterimage.Image) (x0, x1, y0, y1, z0, z1 int, ok bool) {
	x0, y0, z0 = math.MaxInt32, math.MaxInt32, math.MaxInt32
	x1, y1, z1 = -1, -1, -1

	for z, img := range slices {
		for row := 0; row < img.Height; row++ {
			for col := 0; col < img.Width; col++ {
				_, _, _, a := img.GetPixel(col, row)
				if a == 0 {
					continue
				}
				if col < x0 {
					x0 = col
				}
				if col > x1 {
					x1 = col
				}
				if row < y0 {
					y0 = row
				}
				if row > y1 {
					y1 = row
				}
				if z < z0 {
					z0 = z
				}
				if z > z1 {
					z1 = z
				}
			}
		}
	}
	return x0, x1, y0, y1, z0, z1, x1 >= 0
}

// xyFrame holds the per-column/per-row inch distances to the material AABB's
// left/right/top/bottom faces (spec.md §3's chamfer distance frame).
type xyFrame struct {
	dxL, dxR []float64
	dyT, dyB []float64
}

func buildXYFrame(x0, x1, y0, y1, width, height, dpi int) xyFrame {
	f := xyFrame{
		dxL: make([]float64, width),
		dxR: make([]float64, width),
		dyT: make([]float64, height),
		dyB: make([]float64, height),
	}
	for x := 0; x < width; x++ {
		f.dxL[x] = float64(x-x0) / float64(dpi)
		f.dxR[x] = float64(x1-x) / float64(dpi)
	}
	for y := 0; y < height; y++ {
		f.dyT[y] = float64(y-y0) / float64(dpi)
		f.dyB[y] = float64(y1-y) / float64(dpi)
	}
	return f
}

// chamfered evaluates the twelve-edge/eight-corner predicate for one voxel's
// four in-plane distances plus its two Z distances: true if the voxel lies
// within r of any edge or corner of the material cuboid.
func chamfered(dxL, dxR, dyT, dyB, dzB, dzT, r float64) bool {
	edges := [12]float64{
		dxL + dyT, dxR + dyT, dxL + dyB, dxR + dyB,
		dzT + dxL, dzT + dxR, dzT + dyT, dzT + dyB,
		dzB + dxL, dzB + dxR, dzB + dyT, dzB + dyB,
	}
	for _, e := range edges {
		if e < r {
			return true
		}
	}
	corners := [8]float64{
		dzT + dxL + dyT, dzT + dxR + dyT, dzT + dxL + dyB, dzT + dxR + dyB,
		dzB + dxL + dyT, dzB + dxR + dyT, dzB + dxL + dyB, dzB + dxR + dyB,
	}
	for _, c := range corners {
		if c < r {
			return true
		}
	}
	return false
}

// layerMask is the per-pixel chamfer predicate result for one layer,
// computed independently of pixel alpha (spec.md §9: the predicate is a pure
// function of position, AABB and radius, not of the sampled material).
type layerMask struct {
	width, height int
	bits          []bool
}

func (m layerMask) at(x, y int) bool {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return false
	}
	return m.bits[y*m.width+x]
}

func computeLayerMask(xy xyFrame, width, height int, dzB, dzT, r float64) layerMask {
	m := layerMask{width: width, height: height, bits: make([]bool, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.bits[y*width+x] = chamfered(xy.dxL[x], xy.dxR[x], xy.dyT[y], xy.dyB[y], dzB, dzT, r)
		}
	}
	return m
}

// precomputeMasks builds every layer's chamfer mask in parallel, grounded on
// the teacher's contiguous-range worker split.
func precomputeMasks(slices []*rasterimage.Image, xy xyFrame, z0, z1 int, layersPerInch, r float64, numWorkers int) []layerMask {
	n := len(slices)
	masks := make([]layerMask, n)
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > n {
		numWorkers = n
	}

	chunk := (n + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for z := start; z < end; z++ {
				img := slices[z]
				dzB := float64(z-z0) / layersPerInch
				dzT := float64(z1-z) / layersPerInch
				masks[z] = computeLayerMask(xy, img.Width, img.Height, dzB, dzT, r)
			}
		}(start, end)
	}
	wg.Wait()
	return masks
}

var cardinalOffsets = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// streamAndWrite walks layers serially (each depends on the previous
// layer's mask for the vertical-transition check), draws the optional debug
// overlay, carves chamfered voxels transparent, and writes the output PNG.
func streamAndWrite(slices []*rasterimage.Image, paths []string, outputDir string, masks []layerMask, x0, x1, y0, y1 int, debug bool) error {
	cx, cy := (x0+x1)/2, (y0+y1)/2

	for z, img := range slices {
		mask := masks[z]
		var prev layerMask
		if z > 0 {
			prev = masks[z-1]
		}

		if debug {
			drawOverlay(img, mask, prev, z == 0, cx, cy)
		}

		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				if !mask.at(x, y) {
					continue
				}
				r, g, b, _ := img.GetPixel(x, y)
				img.SetPixel(x, y, r, g, b, 0)
			}
		}

		out := filepath.Join(outputDir, filepath.Base(paths[z]))
		if err := rasterio.WriteFile(out, img.Width, img.Height, img.Bytes()); err != nil {
			return voxelerr.Wrap(voxelerr.IOError, out, err)
		}
	}
	return nil
}

func drawOverlay(img *rasterimage.Image, mask, prev layerMask, firstLayer bool, cx, cy int) {
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			_, _, _, a := img.GetPixel(x, y)
			if a == 0 {
				continue
			}
			here := mask.at(x, y)

			horiz := false
			for _, d := range cardinalOffsets {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
					continue
				}
				if mask.at(nx, ny) != here {
					horiz = true
					break
				}
			}
			vert := here && (firstLayer || !prev.at(x, y))
			if !horiz && !vert {
				continue
			}

			dirX, dirY := 1, 1
			if x >= cx {
				dirX = -1
			}
			if y >= cy {
				dirY = -1
			}
			candidates := [2][2]int{{x + dirX, y}, {x, y + dirY}}
			for _, c := range candidates {
				nx, ny := c[0], c[1]
				if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
					continue
				}
				if mask.at(nx, ny) {
					continue
				}
				_, _, _, na := img.GetPixel(nx, ny)
				if na == 0 {
					continue
				}
				img.SetPixel(nx, ny, debugMarkColor[0], debugMarkColor[1], debugMarkColor[2], debugMarkColor[3])
				break
			}
		}
	}
}
