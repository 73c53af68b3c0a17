package vtile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// TestSintToInt covers the zig-zag decode, including the overflow edge
// case at the maximum unsigned input.
func TestSintToInt(t *testing.T) {
	assert.Equal(t, int32(0), sintToInt(0))
	assert.Equal(t, int32(-1), sintToInt(1))
	assert.Equal(t, int32(1), sintToInt(2))
	assert.Equal(t, int32(-2), sintToInt(3))
	assert.Equal(t, int32(0x7fffffff), sintToInt(0xfffffffe))
	assert.Equal(t, int32(-2147483648), sintToInt(0xffffffff))
}

func zigzag(v int32) uint32 {
	if v >= 0 {
		return uint32(v) * 2
	}
	return uint32(-v)*2 - 1
}

func moveTo(count uint32) uint32 { return count<<3 | 1 }
func lineTo(count uint32) uint32 { return count<<3 | 2 }

var closePath uint32 = 1<<3 | 7

func TestDecodePointsSingleMoveTo(t *testing.T) {
	commands := []uint32{moveTo(1), zigzag(2048), zigzag(1024)}
	points, err := decodePoints(commands, 4096)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.5, points[0].X, 1e-9)
	assert.InDelta(t, 0.25, points[0].Y, 1e-9)
}

func TestDecodeContoursSplitsOnMoveTo(t *testing.T) {
	// Two separate one-segment line strings. MoveTo/LineTo deltas are
	// cursor-relative, so the second contour's MoveTo delta is taken from
	// the first contour's last point (10,0), not from the origin.
	commands := []uint32{
		moveTo(1), zigzag(0), zigzag(0),
		lineTo(1), zigzag(10), zigzag(0),
		moveTo(1), zigzag(-5), zigzag(5),
		lineTo(1), zigzag(0), zigzag(5),
	}
	contours, err := decodeContours(commands, 1)
	require.NoError(t, err)
	require.Len(t, contours, 2)
	assert.False(t, contours[0].IsClosed)
	assert.Equal(t, []geom.Point2[float64]{{X: 0, Y: 0}, {X: 10, Y: 0}}, contours[0].Points)
	assert.Equal(t, []geom.Point2[float64]{{X: 5, Y: 5}, {X: 5, Y: 10}}, contours[1].Points)
}

func TestDecodePolygonsWindingSplitMakesHole(t *testing.T) {
	// Outer ring CCW: (0,0)->(10,0)->(10,10)->(0,10), then close.
	// Hole ring CW: (4,4)->(4,6)->(6,6)->(6,4), then close. MoveTo/LineTo
	// deltas are cursor-relative, so the hole's first delta is taken from
	// the outer ring's last point (0,10), not from the origin.
	commands := []uint32{
		moveTo(1), zigzag(0), zigzag(0),
		lineTo(3), zigzag(10), zigzag(0), zigzag(0), zigzag(10), zigzag(-10), zigzag(0),
		closePath,
		moveTo(1), zigzag(4), zigzag(-6),
		lineTo(3), zigzag(0), zigzag(2), zigzag(2), zigzag(0), zigzag(0), zigzag(-2),
		closePath,
	}
	polygons, err := decodePolygons(commands, 1)
	require.NoError(t, err)
	require.Len(t, polygons, 1)
	assert.True(t, polygons[0].Outer.IsCCW())
	require.Len(t, polygons[0].Holes, 1)
	assert.False(t, polygons[0].Holes[0].IsCCW())
}

func TestDecodePolygonsRejectsOpenContour(t *testing.T) {
	commands := []uint32{moveTo(1), zigzag(0), zigzag(0), lineTo(1), zigzag(1), zigzag(1)}
	_, err := decodePolygons(commands, 1)
	assert.Error(t, err)
}

func TestCommandIteratorRejectsZeroCount(t *testing.T) {
	_, err := decodePoints([]uint32{0}, 1)
	assert.Error(t, err)
}
