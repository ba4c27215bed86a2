// Package rasterio implements the deterministic, uncompressed-DEFLATE PNG
// encoder described in spec.md §6: 8-bit RGBA, no interlace, filter type 0,
// zlib-wrapped stored DEFLATE blocks, standard IHDR/IDAT/IEND chunks.
//
// image/png is not used here: its DEFLATE output is not guaranteed
// byte-identical across Go versions and never emits stored (uncompressed)
// blocks, which spec.md requires for a bit-exact contract. The chunk/CRC
// framing follows the teacher's own hand-rolled binary-encoder idiom
// (pkg/stl's manual header+record writer), generalized from an STL mesh
// writer to a PNG chunk writer.
package rasterio

import (
	"bufio"
	"encoding/binary"
	"hash/adler32"
	"hash/crc32"
	"io"
	"os"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const storedBlockMax = 65535

// WriteFile encodes an RGBA raster (row-major, 4 bytes/pixel, as produced by
// rasterimage.Image.Bytes) to path as a PNG file.
func WriteFile(path string, width, height int, pixels []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Encode(w, width, height, pixels); err != nil {
		return err
	}
	return w.Flush()
}

// Encode writes the PNG byte stream for an RGBA raster to w.
func Encode(w io.Writer, width, height int, pixels []byte) error {
	if _, err := w.Write(pngSignature); err != nil {
		return err
	}
	if err := writeIHDR(w, width, height); err != nil {
		return err
	}
	if err := writeIDAT(w, width, height, pixels); err != nil {
		return err
	}
	return writeChunk(w, "IEND", nil)
}

func writeIHDR(w io.Writer, width, height int) error {
	data := make([]byte, 13)
	binary.BigEndian.PutUint32(data[0:4], uint32(width))
	binary.BigEndian.PutUint32(data[4:8], uint32(height))
	data[8] = 8    // bit depth
	data[9] = 6    // color type: truecolor with alpha
	data[10] = 0   // compression method: deflate
	data[11] = 0   // filter method: adaptive (per-scanline filter byte)
	data[12] = 0   // interlace method: none
	return writeChunk(w, "IHDR", data)
}

// scanlines prepends the filter-type-0 byte to each row.
func scanlines(width, height int, pixels []byte) []byte {
	stride := width * 4
	out := make([]byte, 0, height*(1+stride))
	for row := 0; row < height; row++ {
		out = append(out, 0) // filter type 0: None
		out = append(out, pixels[row*stride:(row+1)*stride]...)
	}
	return out
}

func writeIDAT(w io.Writer, width, height int, pixels []byte) error {
	raw := scanlines(width, height, pixels)
	compressed := deflateStored(raw)
	return writeChunk(w, "IDAT", compressed)
}

// deflateStored wraps raw in a zlib stream (CMF=0x78, FLG=0x01) whose
// DEFLATE payload is emitted purely as stored (uncompressed) blocks capped
// at 65,535 bytes, terminated with the Adler-32 checksum of raw.
func deflateStored(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+len(raw)/storedBlockMax*5+11)
	out = append(out, 0x78, 0x01)

	if len(raw) == 0 {
		out = append(out, 1, 0, 0, 0xff, 0xff)
	}
	for offset := 0; offset < len(raw); offset += storedBlockMax {
		end := offset + storedBlockMax
		if end > len(raw) {
			end = len(raw)
		}
		chunk := raw[offset:end]
		final := byte(0)
		if end == len(raw) {
			final = 1
		}
		out = append(out, final) // BFINAL|BTYPE=00 in bit 0..2, stored block is byte-aligned
		length := uint16(len(chunk))
		nlength := ^length
		out = append(out, byte(length), byte(length>>8))
		out = append(out, byte(nlength), byte(nlength>>8))
		out = append(out, chunk...)
	}

	sum := adler32.Checksum(raw)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	out = append(out, sumBuf[:]...)
	return out
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	if len(data) > 0 {
		crc.Write(data)
	}

	if _, err := w.Write([]byte(typ)); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc.Sum32())
	_, err := w.Write(crcBuf[:])
	return err
}
