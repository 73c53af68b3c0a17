// Package vtile implements the vector tile pipeline: decoding Mapbox
// Vector Tile (MVT) protobuf payloads into the engine's own geometry
// types, styling features against a VectorTileStyle, and feeding the
// result into a renderbundle.RenderBundle (VtProcessor).
//
// The command-stream decoder here owns the engine's numeric contract for
// tile geometry: the zig-zag decode including its overflow edge case at
// the maximum unsigned value, and the winding split that turns a flat list
// of contours into polygons with holes. The GeoJSON debug path
// (debug.go) reads tiles through github.com/paulmach/orb/encoding/mvt
// instead, where orb's lon/lat tile addressing is exactly what's needed.
package vtile

import (
	"fmt"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/geom"
)

// MvtValue is a tile feature's attribute value. The int and sint protobuf
// variants both collapse into the int64 kind.
type MvtValue struct {
	kind mvtValueKind
	s    string
	f64  float64
	f32  float32
	i64  int64
	u64  uint64
	b    bool
}

type mvtValueKind int

const (
	mvtValueUnknown mvtValueKind = iota
	mvtValueString
	mvtValueFloat
	mvtValueDouble
	mvtValueInt64
	mvtValueUint64
	mvtValueBool
)

func (v MvtValue) String() string {
	switch v.kind {
	case mvtValueString:
		return v.s
	case mvtValueFloat:
		return fmt.Sprintf("%g", v.f32)
	case mvtValueDouble:
		return fmt.Sprintf("%g", v.f64)
	case mvtValueInt64:
		return fmt.Sprintf("%d", v.i64)
	case mvtValueUint64:
		return fmt.Sprintf("%d", v.u64)
	case mvtValueBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return "<NONE>"
	}
}

// MvtGeometry holds exactly one of the three possible decoded geometry
// shapes for a feature.
type MvtGeometry struct {
	Points   []geom.Point2[float64]
	Contours []geom.Contour[float64]
	Polygons []geom.Polygon[float64]
}

// MvtFeature is one decoded feature.
type MvtFeature struct {
	ID         uint64
	HasID      bool
	Properties map[string]MvtValue
	Geometry   MvtGeometry
}

// MvtLayer is one decoded tile layer.
type MvtLayer struct {
	Name       string
	Features   []MvtFeature
	Properties []string
	Extent     uint32
}

// MvtTile is a fully decoded tile.
type MvtTile struct {
	Layers []MvtLayer
}

// DecodeTile parses a raw MVT protobuf payload. When skipRecoverableErrors
// is set, a layer that fails to decode is dropped rather than failing the
// whole tile.
func DecodeTile(data []byte, skipRecoverableErrors bool) (*MvtTile, error) {
	r := &wireReader{buf: data}
	var layers []MvtLayer

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return nil, galerr.Wrap(galerr.KindProto, "reading tile field tag", err)
		}
		if field != 3 || wt != wireBytes {
			if err := r.skip(wt); err != nil {
				return nil, galerr.Wrap(galerr.KindProto, "skipping unknown tile field", err)
			}
			continue
		}

		raw, err := r.bytes()
		if err != nil {
			return nil, galerr.Wrap(galerr.KindProto, "reading layer bytes", err)
		}

		layer, err := decodeLayer(raw)
		if err != nil {
			if skipRecoverableErrors {
				continue
			}
			return nil, err
		}
		layers = append(layers, *layer)
	}

	if len(layers) == 0 {
		return nil, galerr.New(galerr.KindProto, "tile does not contain any valid layers")
	}
	return &MvtTile{Layers: layers}, nil
}

func decodeLayer(data []byte) (*MvtLayer, error) {
	r := &wireReader{buf: data}

	var name string
	var keys []string
	var rawValues [][]byte
	var rawFeatures [][]byte
	version := uint64(0)
	extent := uint32(4096)

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return nil, galerr.Wrap(galerr.KindProto, "reading layer field tag", err)
		}
		switch {
		case field == 1 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			name = string(b)
		case field == 3 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			keys = append(keys, string(b))
		case field == 4 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			rawValues = append(rawValues, b)
		case field == 2 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			rawFeatures = append(rawFeatures, b)
		case field == 15 && wt == wireVarint:
			version, err = r.varint()
			if err != nil {
				return nil, err
			}
		case field == 5 && wt == wireVarint:
			v, err := r.varint()
			if err != nil {
				return nil, err
			}
			extent = uint32(v)
		default:
			if err := r.skip(wt); err != nil {
				return nil, err
			}
		}
	}

	if version != 2 {
		return nil, galerr.New(galerr.KindProto, fmt.Sprintf("invalid layer version: %d", version))
	}

	values := make([]MvtValue, len(rawValues))
	for i, raw := range rawValues {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	features := make([]MvtFeature, 0, len(rawFeatures))
	for _, raw := range rawFeatures {
		f, err := decodeFeature(raw, extent, keys, values)
		if err != nil {
			return nil, err
		}
		features = append(features, *f)
	}

	return &MvtLayer{Name: name, Features: features, Properties: keys, Extent: extent}, nil
}

func decodeValue(data []byte) (MvtValue, error) {
	r := &wireReader{buf: data}
	var v MvtValue
	present := 0

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return MvtValue{}, err
		}
		switch {
		case field == 1 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return MvtValue{}, err
			}
			v = MvtValue{kind: mvtValueString, s: string(b)}
			present++
		case field == 2 && wt == wireFixed32:
			if r.pos+4 > len(r.buf) {
				return MvtValue{}, galerr.New(galerr.KindProto, "truncated float value")
			}
			v = MvtValue{kind: mvtValueFloat, f32: readFixed32(r.buf[r.pos : r.pos+4])}
			r.pos += 4
			present++
		case field == 3 && wt == wireFixed64:
			if r.pos+8 > len(r.buf) {
				return MvtValue{}, galerr.New(galerr.KindProto, "truncated double value")
			}
			v = MvtValue{kind: mvtValueDouble, f64: readFixed64(r.buf[r.pos : r.pos+8])}
			r.pos += 8
			present++
		case field == 4 && wt == wireVarint:
			i, err := r.varint()
			if err != nil {
				return MvtValue{}, err
			}
			v = MvtValue{kind: mvtValueInt64, i64: int64(i)}
			present++
		case field == 5 && wt == wireVarint:
			u, err := r.varint()
			if err != nil {
				return MvtValue{}, err
			}
			v = MvtValue{kind: mvtValueUint64, u64: u}
			present++
		case field == 6 && wt == wireVarint:
			s, err := r.varint()
			if err != nil {
				return MvtValue{}, err
			}
			v = MvtValue{kind: mvtValueInt64, i64: int64(sintToInt(uint32(s)))}
			present++
		case field == 7 && wt == wireVarint:
			b, err := r.varint()
			if err != nil {
				return MvtValue{}, err
			}
			v = MvtValue{kind: mvtValueBool, b: b != 0}
			present++
		default:
			if err := r.skip(wt); err != nil {
				return MvtValue{}, err
			}
		}
	}

	switch {
	case present == 0:
		return MvtValue{}, galerr.New(galerr.KindProto, "no valid value present")
	case present > 1:
		return MvtValue{}, galerr.New(galerr.KindProto, "more than one value present")
	default:
		return v, nil
	}
}

func decodeFeature(data []byte, extent uint32, keys []string, values []MvtValue) (*MvtFeature, error) {
	r := &wireReader{buf: data}

	var id uint64
	hasID := false
	var tags []uint32
	geomType := uint64(0)
	var commands []uint32

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch {
		case field == 1 && wt == wireVarint:
			id, err = r.varint()
			if err != nil {
				return nil, err
			}
			hasID = true
		case field == 2 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			tags, err = packedVarints(b)
			if err != nil {
				return nil, err
			}
		case field == 3 && wt == wireVarint:
			geomType, err = r.varint()
			if err != nil {
				return nil, err
			}
		case field == 4 && wt == wireBytes:
			b, err := r.bytes()
			if err != nil {
				return nil, err
			}
			commands, err = packedVarints(b)
			if err != nil {
				return nil, err
			}
		default:
			if err := r.skip(wt); err != nil {
				return nil, err
			}
		}
	}

	properties, err := decodeProperties(tags, keys, values)
	if err != nil {
		return nil, err
	}

	geometry, err := decodeGeometry(geomType, commands, extent)
	if err != nil {
		return nil, err
	}

	return &MvtFeature{ID: id, HasID: hasID, Properties: properties, Geometry: geometry}, nil
}

func decodeProperties(tags []uint32, keys []string, values []MvtValue) (map[string]MvtValue, error) {
	if len(tags)%2 != 0 {
		return nil, galerr.New(galerr.KindProto, "invalid number of tags in feature")
	}
	properties := make(map[string]MvtValue, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		ki, vi := int(tags[i]), int(tags[i+1])
		if ki < 0 || ki >= len(keys) {
			return nil, galerr.New(galerr.KindProto, "invalid tag key")
		}
		if vi < 0 || vi >= len(values) {
			return nil, galerr.New(galerr.KindProto, "invalid tag value")
		}
		properties[keys[ki]] = values[vi]
	}
	return properties, nil
}

// Geometry type numbers per the MVT on-wire Tile.GeomType encoding: 1=Point,
// 2=Linestring, 3=Polygon.
func decodeGeometry(geomType uint64, commands []uint32, extent uint32) (MvtGeometry, error) {
	switch geomType {
	case 1:
		points, err := decodePoints(commands, extent)
		if err != nil {
			return MvtGeometry{}, err
		}
		return MvtGeometry{Points: points}, nil
	case 2:
		contours, err := decodeContours(commands, extent)
		if err != nil {
			return MvtGeometry{}, err
		}
		return MvtGeometry{Contours: contours}, nil
	case 3:
		polygons, err := decodePolygons(commands, extent)
		if err != nil {
			return MvtGeometry{}, err
		}
		return MvtGeometry{Polygons: polygons}, nil
	default:
		return MvtGeometry{}, galerr.New(galerr.KindProto, "unknown geometry type")
	}
}
