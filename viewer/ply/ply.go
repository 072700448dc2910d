// Package ply reads Stanford PLY point clouds and meshes into scene
// geometry.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

var ErrUnsupportedFormat = errors.New("ply: unsupported format")

type Format int

const (
	FormatASCII Format = iota
	FormatBinaryLittleEndian
	FormatBinaryBigEndian
)

type property struct {
	name      string
	typ       string
	list      bool
	countType string
}

type element struct {
	name  string
	count int
	props []property
}

type header struct {
	format   Format
	elements []element
}

// Model is a decoded PLY file. Labels is nil unless the vertices carry a
// label property.
type Model struct {
	Geometry *core.Geometry
	Labels   []int32
}

func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func Read(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	var dec valueDecoder
	switch h.format {
	case FormatASCII:
		dec = &asciiDecoder{r: br}
	case FormatBinaryLittleEndian:
		dec = &binaryDecoder{r: br, order: binary.LittleEndian}
	case FormatBinaryBigEndian:
		dec = &binaryDecoder{r: br, order: binary.BigEndian}
	}

	m := &Model{Geometry: core.NewGeometry(nil)}
	for _, el := range h.elements {
		switch el.name {
		case "vertex":
			if err := readVertices(dec, el, m); err != nil {
				return nil, err
			}
		case "face":
			if err := readFaces(dec, el, m); err != nil {
				return nil, err
			}
		default:
			if err := skipElement(dec, el); err != nil {
				return nil, err
			}
		}
	}
	m.Geometry.MarkDirty()
	return m, nil
}

func readHeader(br *bufio.Reader) (*header, error) {
	line, err := br.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("%w: missing magic", ErrUnsupportedFormat)
	}

	h := &header{}
	formatSeen := false
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: bad format line", ErrUnsupportedFormat)
			}
			switch fields[1] {
			case "ascii":
				h.format = FormatASCII
			case "binary_little_endian":
				h.format = FormatBinaryLittleEndian
			case "binary_big_endian":
				h.format = FormatBinaryBigEndian
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fields[1])
			}
			formatSeen = true
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("bad element line %q", strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad element count %q", fields[2])
			}
			h.elements = append(h.elements, element{name: fields[1], count: n})
		case "property":
			if len(h.elements) == 0 {
				return nil, errors.New("property before element")
			}
			el := &h.elements[len(h.elements)-1]
			switch {
			case len(fields) == 5 && fields[1] == "list":
				el.props = append(el.props, property{name: fields[4], typ: fields[3], list: true, countType: fields[2]})
			case len(fields) == 3:
				el.props = append(el.props, property{name: fields[2], typ: fields[1]})
			default:
				return nil, fmt.Errorf("bad property line %q", strings.TrimSpace(line))
			}
		case "end_header":
			if !formatSeen {
				return nil, fmt.Errorf("%w: no format", ErrUnsupportedFormat)
			}
			return h, nil
		}
	}
}

func readVertices(dec valueDecoder, el element, m *Model) error {
	g := m.Geometry
	idx := map[string]int{}
	for i, p := range el.props {
		idx[p.name] = i
	}
	_, hasNormals := idx["nx"]
	_, hasColors := idx["red"]
	labelProp, hasLabels := idx["label"]
	if !hasLabels {
		labelProp, hasLabels = idx["class"]
	}

	g.Positions = make([]mgl32.Vec3, el.count)
	if hasNormals {
		g.Normals = make([]mgl32.Vec3, el.count)
	}
	if hasColors {
		g.Colors = make([][3]float32, el.count)
	}
	if hasLabels {
		m.Labels = make([]int32, el.count)
	}

	values := make([]float64, len(el.props))
	for v := 0; v < el.count; v++ {
		for i, p := range el.props {
			if p.list {
				if err := skipList(dec, p); err != nil {
					return err
				}
				continue
			}
			x, err := dec.value(p.typ)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", v, err)
			}
			values[i] = x
		}
		get := func(name string) float32 {
			if i, ok := idx[name]; ok {
				return float32(values[i])
			}
			return 0
		}
		g.Positions[v] = mgl32.Vec3{get("x"), get("y"), get("z")}
		if hasNormals {
			g.Normals[v] = mgl32.Vec3{get("nx"), get("ny"), get("nz")}
		}
		if hasColors {
			ct := el.props[idx["red"]].typ
			g.Colors[v] = [3]float32{colorChannel(ct, get("red")), colorChannel(ct, get("green")), colorChannel(ct, get("blue"))}
		}
		if hasLabels {
			m.Labels[v] = int32(values[labelProp])
		}
	}
	return nil
}

// colorChannel maps integer colours to [0,1]; float colours are kept.
func colorChannel(typ string, v float32) float32 {
	switch typ {
	case "float", "float32", "double", "float64":
		return v
	case "ushort", "uint16":
		return v / 65535
	}
	return v / 255
}

func readFaces(dec valueDecoder, el element, m *Model) error {
	g := m.Geometry
	for f := 0; f < el.count; f++ {
		for _, p := range el.props {
			if !p.list {
				if _, err := dec.value(p.typ); err != nil {
					return fmt.Errorf("face %d: %w", f, err)
				}
				continue
			}
			n, err := dec.value(p.countType)
			if err != nil {
				return fmt.Errorf("face %d: %w", f, err)
			}
			ids := make([]uint32, int(n))
			for i := range ids {
				x, err := dec.value(p.typ)
				if err != nil {
					return fmt.Errorf("face %d: %w", f, err)
				}
				ids[i] = uint32(x)
			}
			if p.name != "vertex_indices" && p.name != "vertex_index" {
				continue
			}
			// fan triangulation
			for i := 1; i+1 < len(ids); i++ {
				g.Indices = append(g.Indices, ids[0], ids[i], ids[i+1])
			}
		}
	}
	for _, i := range g.Indices {
		if int(i) >= len(g.Positions) {
			return fmt.Errorf("face index %d out of range", i)
		}
	}
	return nil
}

func skipElement(dec valueDecoder, el element) error {
	for e := 0; e < el.count; e++ {
		for _, p := range el.props {
			if p.list {
				if err := skipList(dec, p); err != nil {
					return err
				}
				continue
			}
			if _, err := dec.value(p.typ); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipList(dec valueDecoder, p property) error {
	n, err := dec.value(p.countType)
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := dec.value(p.typ); err != nil {
			return err
		}
	}
	return nil
}

type valueDecoder interface {
	value(typ string) (float64, error)
}

type asciiDecoder struct {
	r      *bufio.Reader
	tokens []string
}

func (d *asciiDecoder) value(typ string) (float64, error) {
	for len(d.tokens) == 0 {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		d.tokens = strings.Fields(line)
	}
	tok := d.tokens[0]
	d.tokens = d.tokens[1:]
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", typ, tok)
	}
	return v, nil
}

type binaryDecoder struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func typeSize(typ string) (int, error) {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		return 1, nil
	case "short", "ushort", "int16", "uint16":
		return 2, nil
	case "int", "uint", "int32", "uint32", "float", "float32":
		return 4, nil
	case "double", "float64":
		return 8, nil
	}
	return 0, fmt.Errorf("%w: property type %s", ErrUnsupportedFormat, typ)
}

func (d *binaryDecoder) value(typ string) (float64, error) {
	n, err := typeSize(typ)
	if err != nil {
		return 0, err
	}
	b := d.buf[:n]
	if _, err := io.ReadFull(d.r, b); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(d.order.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(d.order.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(d.order.Uint32(b))), nil
	case "uint", "uint32":
		return float64(d.order.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(d.order.Uint32(b))), nil
	default:
		return math.Float64frombits(d.order.Uint64(b)), nil
	}
}
