// Package ply parses the PLY point-cloud files consumed by the voxelization
// pipeline: an ASCII or binary-little-endian vertex stream with optional RGB
// or RGBA color properties. It is deliberately narrow — face and other
// elements are read past but never interpreted, matching spec.md §4.1.
package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"voxelraster/internal/models"
	"voxelraster/pkg/voxelerr"
)

type propType int

const (
	tFloat32 propType = iota
	tFloat64
	tUint8
	tInt8
	tUint16
	tInt16
	tUint32
	tInt32
)

func (t propType) size() int {
	switch t {
	case tFloat32, tUint32, tInt32:
		return 4
	case tFloat64:
		return 8
	case tUint8, tInt8:
		return 1
	case tUint16, tInt16:
		return 2
	default:
		return 4
	}
}

// parseType maps a PLY type token to a propType, defaulting unknown types to
// float32 LE per the documented fallback in spec.md §4.1.
func parseType(tok string) propType {
	switch tok {
	case "float", "float32":
		return tFloat32
	case "double", "float64":
		return tFloat64
	case "uchar", "uint8":
		return tUint8
	case "char", "int8":
		return tInt8
	case "ushort", "uint16":
		return tUint16
	case "short", "int16":
		return tInt16
	case "uint", "uint32":
		return tUint32
	case "int", "int32":
		return tInt32
	default:
		return tFloat32
	}
}

type property struct {
	name   string
	typ    propType
	isList bool
	// for list properties: length-prefix type and per-item type, tolerated
	// but never used because the only element this parser reads is "vertex".
	countType propType
	itemType  propType
}

type header struct {
	ascii       bool
	vertexCount int
	props       []property
}

// Load reads and parses a PLY file into a point cloud.
func Load(path string) (*models.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, voxelerr.Wrap(voxelerr.InvalidInputFile, path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	hdr, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	var pts []models.Point
	if hdr.ascii {
		pts, err = readASCIIVertices(r, hdr)
	} else {
		pts, err = readBinaryVertices(r, hdr)
	}
	if err != nil {
		return nil, err
	}
	return models.NewPointCloud(pts), nil
}

func parseHeader(r *bufio.Reader) (*header, error) {
	hdr := &header{}
	sawFormat := false
	sawEndHeader := false
	inVertexElement := false
	haveVertexElement := false

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimSpace(line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err != nil {
				break
			}
			continue
		}

		switch fields[0] {
		case "format":
			sawFormat = true
			if len(fields) < 2 {
				return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "UnsupportedFormat: format line missing keyword")
			}
			switch fields[1] {
			case "ascii":
				hdr.ascii = true
			case "binary_little_endian":
				hdr.ascii = false
			default:
				return nil, voxelerr.New(voxelerr.InvalidPLYHeader, fmt.Sprintf("UnsupportedFormat: unsupported PLY format %q", fields[1]))
			}
		case "element":
			if len(fields) < 3 {
				return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "malformed element line")
			}
			if fields[1] == "vertex" {
				inVertexElement = true
				haveVertexElement = true
				n, convErr := strconv.Atoi(fields[2])
				if convErr != nil {
					return nil, voxelerr.Wrap(voxelerr.InvalidPLYHeader, "vertex count", convErr)
				}
				hdr.vertexCount = n
			} else {
				inVertexElement = false
			}
		case "property":
			if !inVertexElement {
				continue
			}
			if fields[1] == "list" {
				// property list <count-type> <item-type> <name> — tolerated
				// and skipped; never used for the vertex element itself.
				if len(fields) < 5 {
					return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "malformed property list")
				}
				hdr.props = append(hdr.props, property{
					name:      fields[4],
					isList:    true,
					countType: parseType(fields[2]),
					itemType:  parseType(fields[3]),
				})
				continue
			}
			if len(fields) < 3 {
				return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "malformed property line")
			}
			hdr.props = append(hdr.props, property{
				name: fields[2],
				typ:  parseType(fields[1]),
			})
		case "end_header":
			sawEndHeader = true
		}

		if sawEndHeader {
			break
		}
		if err != nil {
			break
		}
	}

	if !sawEndHeader {
		return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "HeaderMissingEndMarker: missing end_header marker")
	}
	if !sawFormat {
		return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "UnsupportedFormat: missing format line")
	}
	if !haveVertexElement || hdr.vertexCount == 0 {
		return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "MissingVertexElement: missing or empty vertex element")
	}

	haveX, haveY, haveZ := false, false, false
	for _, p := range hdr.props {
		switch p.name {
		case "x":
			haveX = true
		case "y":
			haveY = true
		case "z":
			haveZ = true
		}
	}
	if !haveX || !haveY || !haveZ {
		return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "MissingCoordinate: missing x/y/z coordinate property")
	}

	return hdr, nil
}

func normalizeChannel(v float64) uint8 {
	if v >= 0 && v <= 1 {
		v *= 255
	}
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(math.Round(v))
}

func readASCIIVertices(r *bufio.Reader, hdr *header) ([]models.Point, error) {
	pts := make([]models.Point, 0, hdr.vertexCount)
	for i := 0; i < hdr.vertexCount; i++ {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, voxelerr.Wrap(voxelerr.InvalidPLYHeader, "unexpected end of vertex data", err)
		}
		fields := strings.Fields(line)
		if len(fields) < len(hdr.props) {
			return nil, voxelerr.New(voxelerr.InvalidPLYHeader, fmt.Sprintf("vertex line %d has too few fields", i))
		}
		var p models.Point
		var raw = map[string]float64{}
		for j, prop := range hdr.props {
			v, convErr := strconv.ParseFloat(fields[j], 64)
			if convErr != nil {
				return nil, voxelerr.Wrap(voxelerr.InvalidPLYHeader, "vertex value", convErr)
			}
			raw[prop.name] = v
		}
		p.X, p.Y, p.Z = raw["x"], raw["y"], raw["z"]
		assignColor(&p, raw)
		pts = append(pts, p)
	}
	return pts, nil
}

func readBinaryVertices(r *bufio.Reader, hdr *header) ([]models.Point, error) {
	pts := make([]models.Point, 0, hdr.vertexCount)
	buf := make([]byte, 8)
	for i := 0; i < hdr.vertexCount; i++ {
		raw := map[string]float64{}
		for _, prop := range hdr.props {
			if prop.isList {
				return nil, voxelerr.New(voxelerr.InvalidPLYHeader, "list properties not supported on vertex element")
			}
			n := prop.typ.size()
			if _, err := io.ReadFull(r, buf[:n]); err != nil {
				return nil, voxelerr.Wrap(voxelerr.InvalidPLYHeader, "unexpected end of vertex data", err)
			}
			raw[prop.name] = decodeScalar(prop.typ, buf[:n])
		}
		var p models.Point
		p.X, p.Y, p.Z = raw["x"], raw["y"], raw["z"]
		assignColor(&p, raw)
		pts = append(pts, p)
	}
	return pts, nil
}

func decodeScalar(t propType, b []byte) float64 {
	switch t {
	case tFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case tFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case tUint8:
		return float64(b[0])
	case tInt8:
		return float64(int8(b[0]))
	case tUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case tInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case tUint32:
		return float64(binary.LittleEndian.Uint32(b))
	case tInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
}

func assignColor(p *models.Point, raw map[string]float64) {
	r, hasR := colorValue(raw, "r", "red")
	g, hasG := colorValue(raw, "g", "green")
	b, hasB := colorValue(raw, "b", "blue")
	if !hasR || !hasG || !hasB {
		return
	}
	p.HasColor = true
	p.R, p.G, p.B = normalizeChannel(r), normalizeChannel(g), normalizeChannel(b)
	if a, hasA := colorValue(raw, "a", "alpha"); hasA {
		p.A = normalizeChannel(a)
	} else {
		p.A = 255
	}
}

func colorValue(raw map[string]float64, short, long string) (float64, bool) {
	if v, ok := raw[short]; ok {
		return v, true
	}
	if v, ok := raw[long]; ok {
		return v, true
	}
	return 0, false
}
