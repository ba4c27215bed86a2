// Package rasterslicer implements the per-layer rasterizer (spec.md §4.4):
// for one Z layer, sample every voxel center against the spatial index,
// apply the configured shell policy, and optionally flood-fill the
// interior. Grounded on the teacher's pkg/visualization/viewer.go
// per-position extraction loop, generalized from volume-indexing to
// index-querying.
package rasterslicer

import (
	"voxelraster/internal/models"
	"voxelraster/pkg/config"
	"voxelraster/pkg/coordmodel"
	"voxelraster/pkg/rasterimage"
	"voxelraster/pkg/spatial"
)

// interiorFillColor is the fixed shell-policy fill used both for the
// two-band outer shell and the interior flood fill (spec.md §4.4/§4.6).
var interiorFillColor = [4]uint8{247, 247, 247, 128}

// Radii bundles the isotropic and optional anisotropic NN search radii, all
// already converted from inches to model-space units.
type Radii struct {
	Isotropic float64

	Anisotropic bool
	Rx, Ry, Rz  float64
}

// Params bundles the per-job configuration a layer rasterizer needs.
type Params struct {
	Model *coordmodel.Model
	Index *spatial.Tree
	Radii Radii

	ShellPolicy config.ShellPolicyKind
	RInner      float64 // model units, two-band inner radius
	Router      float64 // model units, two-band outer radius

	Fill          config.InteriorFillMode
	FillThreshold int

	// NNDump, if non-nil, receives a grayscale rendering of the raw
	// pre-shell-policy NN distance for every pixel: white at distance 0,
	// fading to black at the shell-policy's outer search radius. Debug aid
	// for tuning the radius parameters (spec.md SUPPLEMENTED FEATURES,
	// -dump-nn), must already be the same W×H as img.
	NNDump *rasterimage.Image
}

// RasterizeLayer samples every (col,row) voxel center at layer z into img,
// which must already be the correct W×H and cleared/transparent.
func RasterizeLayer(img *rasterimage.Image, z int, p Params) {
	if p.Fill == config.FillBeforeSampling {
		img.FloodFillFrom(img.Width/2, img.Height/2, interiorFillColor[0], interiorFillColor[1], interiorFillColor[2], interiorFillColor[3])
	}

	for row := 0; row < img.Height; row++ {
		for col := 0; col < img.Width; col++ {
			world := p.Model.World(col, row, z)
			hit, ok := queryNearest(p, world)
			if p.NNDump != nil {
				dumpNearest(p, world, col, row)
			}
			if !ok {
				continue
			}
			paint(img, col, row, hit, p)
		}
	}

	if p.Fill == config.FillAfterSamplingIfExceeds {
		if img.CountFilled() > p.FillThreshold {
			img.FloodFillFrom(img.Width/2, img.Height/2, interiorFillColor[0], interiorFillColor[1], interiorFillColor[2], interiorFillColor[3])
		}
	}
}

func queryNearest(p Params, world [3]float64) (spatial.Result, bool) {
	opts := spatial.QueryOptions{Axes: spatial.AxisXYZ}
	if p.Radii.Anisotropic {
		opts.HasMaxDistanceX, opts.MaxDistanceX = true, p.Radii.Rx
		opts.HasMaxDistanceY, opts.MaxDistanceY = true, p.Radii.Ry
		opts.HasMaxDistanceZ, opts.MaxDistanceZ = true, p.Radii.Rz
	} else {
		opts.HasMaxDistance, opts.MaxDistance = true, radiusForPolicy(p)
	}
	return p.Index.Nearest(world, opts)
}

// dumpNearest writes the raw, unconstrained NN distance at (col,row) into
// p.NNDump as a grayscale pixel, scaled against the policy's outer search
// radius so the dump shows how close a voxel came to the configured cutoff
// even where the cutoff rejected it.
func dumpNearest(p Params, world [3]float64, col, row int) {
	res, ok := p.Index.Nearest(world, spatial.QueryOptions{Axes: spatial.AxisXYZ})
	if !ok {
		return
	}
	scale := radiusForPolicy(p)
	if scale <= 0 {
		scale = res.Distance
	}
	if scale <= 0 {
		p.NNDump.SetPixel(col, row, 255, 255, 255, 255)
		return
	}
	frac := res.Distance / scale
	if frac > 1 {
		frac = 1
	}
	gray := uint8(255 * (1 - frac))
	p.NNDump.SetPixel(col, row, gray, gray, gray, 255)
}

// radiusForPolicy returns the outer search cap: the isotropic radius for
// color-by-sample, or the outer band radius for two-band (so hits beyond
// Router are never returned at all and the pixel is left transparent).
func radiusForPolicy(p Params) float64 {
	if p.ShellPolicy == config.TwoBandShell {
		return p.Router
	}
	return p.Radii.Isotropic
}

func paint(img *rasterimage.Image, col, row int, hit spatial.Result, p Params) {
	switch p.ShellPolicy {
	case config.TwoBandShell:
		switch {
		case hit.Distance > p.Router:
			// transparent, no-op
		case hit.Distance > p.RInner:
			img.SetPixel(col, row, interiorFillColor[0], interiorFillColor[1], interiorFillColor[2], interiorFillColor[3])
		default:
			setSampleColor(img, col, row, hit.Point)
		}
	default: // config.ColorBySample
		if p.Radii.Anisotropic {
			// Anisotropic caps already gated eligibility; any returned hit
			// is within radius by construction.
			setSampleColor(img, col, row, hit.Point)
			return
		}
		if hit.Distance <= p.Radii.Isotropic {
			setSampleColor(img, col, row, hit.Point)
		}
	}
}

func setSampleColor(img *rasterimage.Image, col, row int, p *models.Point) {
	img.SetPixel(col, row, p.R, p.G, p.B, 255)
}
