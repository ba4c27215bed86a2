// Package pipeline drives the end-to-end stack build: load a point cloud,
// index it, compute the coordinate model, rasterize every layer in
// parallel, optionally chamfer the resulting stack, and report a validation
// summary. Grounded on the teacher's Reconstructor.Process/GetVolumeData
// orchestration in pkg/reconstruction/reconstructor.go, generalized from a
// single interpolated volume to an independently-rasterized layer stack.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"voxelraster/pkg/chamfer"
	"voxelraster/pkg/config"
	"voxelraster/pkg/coordmodel"
	"voxelraster/pkg/ply"
	"voxelraster/pkg/rasterimage"
	"voxelraster/pkg/rasterio"
	"voxelraster/pkg/rasterslicer"
	"voxelraster/pkg/spatial"
	"voxelraster/pkg/voxelerr"
)

// Summary reports what the run produced, in the spirit of the teacher's
// ValidationMetrics but scored against this pipeline's own outputs rather
// than a reference volume.
type Summary struct {
	Width, Height, Depth int
	PointCount           int
	LayersWithMaterial   int
	TotalFilledPixels    int
	MeanFilledPerLayer   float64
	StdDevFilledPerLayer float64
	ChamferApplied       bool
}

// Run executes one full job: PLY -> raster stack -> optional chamfer.
func Run(inputPLY, outputDir string, cfg *config.Config) (Summary, error) {
	for _, in := range []float64{cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn} {
		if !(in > 0) {
			return Summary{}, voxelerr.New(voxelerr.InvalidParameter,
				fmt.Sprintf("build size %v x %v x %v in: every axis must be a positive number", cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn))
		}
	}

	cloud, err := ply.Load(inputPLY)
	if err != nil {
		return Summary{}, err
	}
	if len(cloud.Points) == 0 {
		return Summary{}, voxelerr.New(voxelerr.NoMaterial, fmt.Sprintf("%s contains no vertices", inputPLY))
	}

	physical := coordmodel.Physical{
		DPI:           cfg.Build.DPI,
		LayerHeightNm: cfg.Build.LayerHeightNm,
		XIn:           cfg.Build.XIn,
		YIn:           cfg.Build.YIn,
		ZIn:           cfg.Build.ZIn,
	}
	bounds := coordmodel.NormalizeBounds(cloud.Bounds.Padded(cfg.Build.PaddingRatio), physical)
	w, h, d := coordmodel.Dims(physical)
	model := coordmodel.NewModel(bounds, w, h, d)
	index := spatial.Build(cloud.Points)

	unitsPerInch := coordmodel.ModelUnitsPerInch(bounds, cfg.Build.XIn, cfg.Build.YIn, cfg.Build.ZIn)
	radii := radiiFromConfig(cfg, unitsPerInch)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Summary{}, voxelerr.Wrap(voxelerr.IOError, outputDir, err)
	}

	dumpNNDir := ""
	if cfg.Output.DumpNN {
		dumpNNDir = outputDir
	}
	filledPerLayer, err := rasterizeStack(outputDir, dumpNNDir, w, h, d, model, index, radii, cfg)
	if err != nil {
		return Summary{}, err
	}

	summary := buildSummary(w, h, d, len(cloud.Points), filledPerLayer)

	if cfg.Chamfer.Enabled {
		chamferOpts := chamfer.Options{
			RadiusIn:      cfg.Chamfer.RadiusIn,
			DPI:           cfg.Build.DPI,
			LayerHeightNm: cfg.Build.LayerHeightNm,
			Debug:         cfg.Chamfer.Debug,
			NumWorkers:    cfg.Processing.NumCores,
		}
		if err := chamfer.Run(outputDir, outputDir, chamferOpts); err != nil {
			return Summary{}, err
		}
		summary.ChamferApplied = true
	}

	return summary, nil
}

func radiiFromConfig(cfg *config.Config, unitsPerInch float64) layerRadii {
	r := layerRadii{
		Isotropic:   cfg.Sampling.VoxelRadiusIn * unitsPerInch,
		Anisotropic: cfg.Sampling.Anisotropic,
		Rx:          cfg.Sampling.RxIn * unitsPerInch,
		Ry:          cfg.Sampling.RyIn * unitsPerInch,
		Rz:          cfg.Sampling.RzIn * unitsPerInch,
		RInner:      cfg.Sampling.RInnerIn * unitsPerInch,
		Router:      cfg.Sampling.RouterIn * unitsPerInch,
	}
	return r
}

type layerRadii struct {
	Isotropic      float64
	Anisotropic    bool
	Rx, Ry, Rz     float64
	RInner, Router float64
}

// rasterizeStack rasterizes every layer in parallel across cfg.Processing.NumCores
// workers, each writing its own contiguous range of layer PNGs, following the
// teacher's coreID-partitioned worker-range pattern. When cfg.Output.Verbose
// is set it reports progress in the teacher's carriage-return style
// (reconstructor.go's "\rProcessing sub-volumes: %.1f%% complete"), tracked
// with an atomic counter of completed layers since layers finish out of
// order across workers. dumpNNDir, if non-empty, additionally writes a
// grayscale nn_<z>.png per layer with the raw pre-shell-policy NN distance.
func rasterizeStack(outputDir, dumpNNDir string, w, h, d int, model *coordmodel.Model, index *spatial.Tree, radii layerRadii, cfg *config.Config) ([]int, error) {
	filled := make([]int, d)
	errs := make([]error, d)

	numCores := cfg.Processing.NumCores
	if numCores < 1 {
		numCores = 1
	}
	if numCores > d {
		numCores = d
	}
	layersPerCore := (d + numCores - 1) / numCores

	var completed int64
	var progressMu sync.Mutex

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		start := c * layersPerCore
		end := start + layersPerCore
		if end > d {
			end = d
		}
		if start >= d {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			img := rasterimage.New(w, h)
			var nnImg *rasterimage.Image
			if dumpNNDir != "" {
				nnImg = rasterimage.New(w, h)
			}
			for z := start; z < end; z++ {
				img.Clear()
				if nnImg != nil {
					nnImg.Clear()
				}
				rasterizeOneLayer(img, nnImg, z, model, index, radii, cfg)
				filled[z] = img.CountFilled()

				path := filepath.Join(outputDir, fmt.Sprintf("out_%d.png", z))
				if err := rasterio.WriteFile(path, w, h, img.Bytes()); err != nil {
					errs[z] = voxelerr.Wrap(voxelerr.IOError, path, err)
				}
				if nnImg != nil && errs[z] == nil {
					nnPath := filepath.Join(dumpNNDir, fmt.Sprintf("nn_%d.png", z))
					if err := rasterio.WriteFile(nnPath, w, h, nnImg.Bytes()); err != nil {
						errs[z] = voxelerr.Wrap(voxelerr.IOError, nnPath, err)
					}
				}

				if cfg.Output.Verbose {
					n := atomic.AddInt64(&completed, 1)
					pct := 100 * float64(n) / float64(d)
					progressMu.Lock()
					fmt.Printf("\rProcessing layers: %.1f%% complete", pct)
					progressMu.Unlock()
				}
			}
		}(start, end)
	}
	wg.Wait()
	if cfg.Output.Verbose {
		fmt.Println()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return filled, nil
}

func rasterizeOneLayer(img, nnImg *rasterimage.Image, z int, model *coordmodel.Model, index *spatial.Tree, radii layerRadii, cfg *config.Config) {
	rasterslicer.RasterizeLayer(img, z, rasterslicer.Params{
		Model: model,
		Index: index,
		Radii: rasterslicer.Radii{
			Isotropic:   radii.Isotropic,
			Anisotropic: radii.Anisotropic,
			Rx:          radii.Rx,
			Ry:          radii.Ry,
			Rz:          radii.Rz,
		},
		ShellPolicy:   cfg.Sampling.ShellPolicy,
		RInner:        radii.RInner,
		Router:        radii.Router,
		Fill:          cfg.Sampling.InteriorFill,
		FillThreshold: cfg.Sampling.InteriorFillThreshold,
		NNDump:        nnImg,
	})
}

func buildSummary(w, h, d, pointCount int, filledPerLayer []int) Summary {
	s := Summary{Width: w, Height: h, Depth: d, PointCount: pointCount}

	values := make([]float64, len(filledPerLayer))
	for i, n := range filledPerLayer {
		values[i] = float64(n)
		s.TotalFilledPixels += n
		if n > 0 {
			s.LayersWithMaterial++
		}
	}
	if len(values) > 0 {
		s.MeanFilledPerLayer, s.StdDevFilledPerLayer = stat.MeanStdDev(values, nil)
	}
	return s
}
