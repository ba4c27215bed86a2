package ply

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"voxelraster/pkg/voxelerr"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadASCIIWithColor(t *testing.T) {
	data := []byte(`ply
format ascii 1.0
element vertex 2
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
1.0 2.0 3.0 255 0 0
4.0 5.0 6.0 0 255 0
`)
	cloud, err := Load(writeTemp(t, "in.ply", data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cloud.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(cloud.Points))
	}
	p0 := cloud.Points[0]
	if p0.X != 1 || p0.Y != 2 || p0.Z != 3 {
		t.Errorf("point 0 coords = (%v,%v,%v), want (1,2,3)", p0.X, p0.Y, p0.Z)
	}
	if !p0.HasColor || p0.R != 255 || p0.G != 0 || p0.B != 0 || p0.A != 255 {
		t.Errorf("point 0 color = (%v,%v,%v,%v,hasColor=%v), want (255,0,0,255,true)", p0.R, p0.G, p0.B, p0.A, p0.HasColor)
	}
}

func TestLoadASCIINoColor(t *testing.T) {
	data := []byte(`ply
format ascii 1.0
element vertex 1
property float x
property float y
property float z
end_header
0.5 0.5 0.5
`)
	cloud, err := Load(writeTemp(t, "in.ply", data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cloud.Points[0].HasColor {
		t.Error("point without color properties reported HasColor=true")
	}
}

func TestLoadBinaryLittleEndian(t *testing.T) {
	var body bytes.Buffer
	writeF32 := func(v float32) { binary.Write(&body, binary.LittleEndian, v) }
	writeF32(1.5)
	writeF32(-2.5)
	writeF32(3.0)
	body.WriteByte(10)
	body.WriteByte(20)
	body.WriteByte(30)

	header := []byte(`ply
format binary_little_endian 1.0
element vertex 1
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
`)
	data := append(header, body.Bytes()...)

	cloud, err := Load(writeTemp(t, "in.ply", data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cloud.Points[0]
	if math.Abs(p.X-1.5) > 1e-6 || math.Abs(p.Y+2.5) > 1e-6 || math.Abs(p.Z-3.0) > 1e-6 {
		t.Errorf("binary vertex coords = (%v,%v,%v), want (1.5,-2.5,3.0)", p.X, p.Y, p.Z)
	}
	if p.R != 10 || p.G != 20 || p.B != 30 {
		t.Errorf("binary vertex color = (%v,%v,%v), want (10,20,30)", p.R, p.G, p.B)
	}
}

func expectPLYHeaderErr(t *testing.T, data []byte) {
	t.Helper()
	_, err := Load(writeTemp(t, "in.ply", data))
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !voxelerr.Is(err, voxelerr.InvalidPLYHeader) {
		t.Errorf("error kind = %v, want InvalidPLYHeader", err)
	}
}

func TestLoadMissingEndHeader(t *testing.T) {
	expectPLYHeaderErr(t, []byte("ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\n"))
}

func TestLoadUnsupportedFormat(t *testing.T) {
	expectPLYHeaderErr(t, []byte("ply\nformat binary_big_endian 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n"))
}

func TestLoadMissingVertexElement(t *testing.T) {
	expectPLYHeaderErr(t, []byte("ply\nformat ascii 1.0\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n"))
}

func TestLoadMissingCoordinate(t *testing.T) {
	expectPLYHeaderErr(t, []byte("ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n0.0 0.0\n"))
}

func TestNormalizeChannelUnitRangeScales(t *testing.T) {
	if got := normalizeChannel(1.0); got != 255 {
		t.Errorf("normalizeChannel(1.0) = %d, want 255", got)
	}
	if got := normalizeChannel(0.5); got != 128 {
		t.Errorf("normalizeChannel(0.5) = %d, want 128", got)
	}
	if got := normalizeChannel(200); got != 200 {
		t.Errorf("normalizeChannel(200) = %d, want 200 (already in 0-255 range)", got)
	}
	if got := normalizeChannel(-5); got != 0 {
		t.Errorf("normalizeChannel(-5) = %d, want clamped to 0", got)
	}
}
