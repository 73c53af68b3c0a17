package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0xFF, G: 0x80, B: 0x00, A: 0xFF}, c)

	c, err = ParseColor("10203040")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, c)

	_, err = ParseColor("#FFF")
	assert.Error(t, err)
	_, err = ParseColor("#GGGGGG")
	assert.Error(t, err)
}

func TestColorStringRoundTrip(t *testing.T) {
	for _, s := range []string{"#FF8000", "#10203040"} {
		c, err := ParseColor(s)
		require.NoError(t, err)
		assert.Equal(t, s, c.String())
	}
}

func TestBlendOpaqueAndTransparent(t *testing.T) {
	bg := Color{R: 100, G: 100, B: 100, A: 255}

	assert.Equal(t, Color{R: 1, G: 2, B: 3, A: 255}, bg.Blend(Color{R: 1, G: 2, B: 3, A: 255}))
	assert.Equal(t, bg, bg.Blend(Color{R: 1, G: 2, B: 3, A: 0}))

	half := bg.Blend(Color{R: 200, G: 200, B: 200, A: 128})
	assert.InDelta(t, 150, int(half.R), 2)
	assert.InDelta(t, 255, int(half.A), 1)
}

func TestRectNormalizesAndIntersects(t *testing.T) {
	r := NewRect(10.0, 10.0, 0.0, 0.0)
	assert.Equal(t, Rect[float64]{XMin: 0, YMin: 0, XMax: 10, YMax: 10}, r)

	// Closed intervals: rectangles sharing only an edge still intersect.
	assert.True(t, r.Intersects(NewRect(10.0, 0.0, 20.0, 10.0)))
	assert.False(t, r.Intersects(NewRect(10.1, 0.0, 20.0, 10.0)))
}

func TestRectFromPointsEmpty(t *testing.T) {
	_, ok := RectFromPoints[float64](nil)
	assert.False(t, ok)

	r, ok := RectFromPoints([]Point2[float64]{{X: 3, Y: -1}, {X: -2, Y: 5}})
	require.True(t, ok)
	assert.Equal(t, Rect[float64]{XMin: -2, YMin: -1, XMax: 3, YMax: 5}, r)
}

func TestRectMagnifyKeepsCenter(t *testing.T) {
	r := NewRect(0.0, 0.0, 10.0, 20.0).Magnify(2)
	assert.Equal(t, Point2[float64]{X: 5, Y: 10}, r.Center())
	assert.Equal(t, 20.0, r.Width())
	assert.Equal(t, 40.0, r.Height())
}

func TestContourWindingAndClosing(t *testing.T) {
	ccw := Contour[float64]{Points: []Point2[float64]{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, IsClosed: true}
	assert.True(t, ccw.IsCCW())

	cw := Contour[float64]{Points: []Point2[float64]{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 0}}, IsClosed: true}
	assert.False(t, cw.IsCCW())

	closing := ccw.IterPointsClosing()
	require.Len(t, closing, 4)
	assert.Equal(t, closing[0], closing[3])

	open := Contour[float64]{Points: ccw.Points}
	assert.Len(t, open.IterPointsClosing(), 3)
}

func TestDecodedImageLengthInvariant(t *testing.T) {
	_, err := NewDecodedImage(make([]byte, 15), Size[uint32]{Width: 2, Height: 2})
	assert.Error(t, err)

	img, err := NewDecodedImage(make([]byte, 16), Size[uint32]{Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, 16, img.ApproxByteSize())
}
