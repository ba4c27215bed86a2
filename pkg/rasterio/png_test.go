package rasterio

import (
	"bytes"
	"image/png"
	"testing"
)

func makeGradient(w, h int) []byte {
	pixels := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 4 * (y*w + x)
			pixels[o] = byte(x)
			pixels[o+1] = byte(y)
			pixels[o+2] = byte(x + y)
			pixels[o+3] = 255
		}
	}
	return pixels
}

func TestEncodeProducesValidPNG(t *testing.T) {
	w, h := 8, 6
	pixels := makeGradient(w, h)

	var buf bytes.Buffer
	if err := Encode(&buf, w, h, pixels); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("standard library failed to decode our PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != w || bounds.Dy() != h {
		t.Fatalf("decoded size = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			wantR, wantG, wantB, wantA := pixels[4*(y*w+x)], pixels[4*(y*w+x)+1], pixels[4*(y*w+x)+2], pixels[4*(y*w+x)+3]
			if uint8(r>>8) != wantR || uint8(g>>8) != wantG || uint8(b>>8) != wantB || uint8(a>>8) != wantA {
				t.Fatalf("pixel (%d,%d) roundtrip mismatch", x, y)
			}
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	w, h := 5, 5
	pixels := makeGradient(w, h)

	var a, b bytes.Buffer
	if err := Encode(&a, w, h, pixels); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := Encode(&b, w, h, pixels); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two encodes of the same raster produced different bytes")
	}
}

func TestEncodeSinglePixelImage(t *testing.T) {
	var buf bytes.Buffer
	pixels := []byte{200, 100, 50, 255}
	if err := Encode(&buf, 1, 1, pixels); err != nil {
		t.Fatalf("Encode(1,1): %v", err)
	}
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("standard library failed to decode 1x1 PNG: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if uint8(r>>8) != 200 || uint8(g>>8) != 100 || uint8(b>>8) != 50 || uint8(a>>8) != 255 {
		t.Errorf("1x1 pixel roundtrip mismatch: got (%d,%d,%d,%d)", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestDeflateStoredSpansMultipleBlocks(t *testing.T) {
	raw := make([]byte, storedBlockMax*2+100)
	for i := range raw {
		raw[i] = byte(i)
	}
	out := deflateStored(raw)
	if len(out) < len(raw) {
		t.Fatalf("deflateStored output shorter than input: %d < %d", len(out), len(raw))
	}
}
