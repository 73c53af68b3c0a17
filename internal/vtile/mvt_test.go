package vtile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal protobuf wire encoders, mirroring wire.go's reader side, used
// only to build synthetic tile payloads for the decode tests below.

func encVarint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func encTag(field int, wireType int) []byte {
	return encVarint(uint64(field<<3 | wireType))
}

func encBytesField(field int, payload []byte) []byte {
	out := append([]byte{}, encTag(field, wireBytes)...)
	out = append(out, encVarint(uint64(len(payload)))...)
	return append(out, payload...)
}

func encVarintField(field int, v uint64) []byte {
	return append(encTag(field, wireVarint), encVarint(v)...)
}

func buildStringValue(s string) []byte {
	return encBytesField(1, []byte(s))
}

func buildFeature(id uint64, tags []uint32, geomType uint64, commands []uint32) []byte {
	var tagBytes []byte
	for _, t := range tags {
		tagBytes = append(tagBytes, encVarint(uint64(t))...)
	}
	var cmdBytes []byte
	for _, c := range commands {
		cmdBytes = append(cmdBytes, encVarint(uint64(c))...)
	}

	var out []byte
	out = append(out, encVarintField(1, id)...)
	out = append(out, encBytesField(2, tagBytes)...)
	out = append(out, encVarintField(3, geomType)...)
	out = append(out, encBytesField(4, cmdBytes)...)
	return out
}

func buildLayer(name string, keys []string, values [][]byte, features [][]byte, extent uint64) []byte {
	var out []byte
	out = append(out, encBytesField(1, []byte(name))...)
	out = append(out, encVarintField(15, 2)...)
	for _, f := range features {
		out = append(out, encBytesField(2, f)...)
	}
	for _, k := range keys {
		out = append(out, encBytesField(3, []byte(k))...)
	}
	for _, v := range values {
		out = append(out, encBytesField(4, v)...)
	}
	out = append(out, encVarintField(5, extent)...)
	return out
}

func buildTile(layers [][]byte) []byte {
	var out []byte
	for _, l := range layers {
		out = append(out, encBytesField(3, l)...)
	}
	return out
}

func TestDecodeTileEndToEnd(t *testing.T) {
	// A CCW 10x10 square polygon feature, same shape geometry_test.go
	// exercises directly against decodePolygons.
	commands := []uint32{
		moveTo(1), zigzag(0), zigzag(0),
		lineTo(3), zigzag(10), zigzag(0), zigzag(0), zigzag(10), zigzag(-10), zigzag(0),
		closePath,
	}
	feature := buildFeature(7, []uint32{0, 0}, 3, commands)
	layer := buildLayer("water", []string{"class"}, [][]byte{buildStringValue("ocean")}, [][]byte{feature}, 4096)
	data := buildTile([][]byte{layer})

	tile, err := DecodeTile(data, false)
	require.NoError(t, err)
	require.Len(t, tile.Layers, 1)

	l := tile.Layers[0]
	assert.Equal(t, "water", l.Name)
	assert.Equal(t, uint32(4096), l.Extent)
	require.Len(t, l.Features, 1)

	f := l.Features[0]
	assert.Equal(t, uint64(7), f.ID)
	assert.True(t, f.HasID)
	require.Contains(t, f.Properties, "class")
	assert.Equal(t, "ocean", f.Properties["class"].String())

	require.Len(t, f.Geometry.Polygons, 1)
	assert.True(t, f.Geometry.Polygons[0].Outer.IsCCW())
}

func TestDecodeTileRejectsBadVersion(t *testing.T) {
	layer := buildLayer("bad", nil, nil, nil, 4096)
	// overwrite version by rebuilding with version field 1 instead of 2
	var out []byte
	out = append(out, encBytesField(1, []byte("bad"))...)
	out = append(out, encVarintField(15, 1)...)
	out = append(out, encVarintField(5, 4096)...)
	data := buildTile([][]byte{out})
	_ = layer

	_, err := DecodeTile(data, false)
	assert.Error(t, err)
}

func TestDecodeTileEmptyIsError(t *testing.T) {
	_, err := DecodeTile(nil, false)
	assert.Error(t, err)
}
