package chamfer

import (
	"image"
	"image/png"
	"os"

	"voxelraster/pkg/rasterimage"
	"voxelraster/pkg/voxelerr"
)

// decodePNG reads path into a rasterimage.Image. Reading uses the standard
// library's image/png decoder — unlike the write side, spec.md places no
// determinism requirement on decoding, and the pack offers no third-party
// PNG codec, so there is nothing to gain by hand-rolling an inflate reader
// here.
func decodePNG(path string) (*rasterimage.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, voxelerr.Wrap(voxelerr.InvalidInputFile, path, err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, voxelerr.Wrap(voxelerr.IOError, path, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	img := rasterimage.New(w, h)

	if nrgba, ok := src.(*image.NRGBA); ok && nrgba.Stride == w*4 {
		copy(img.Bytes(), nrgba.Pix)
		return img, nil
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			img.SetPixel(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
		}
	}
	return img, nil
}
