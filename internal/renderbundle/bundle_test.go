package renderbundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

func square() geom.Polygon[float64] {
	return geom.NewPolygon([]geom.Point2[float64]{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
	}, nil)
}

func TestTessellatePolygonProducesTriangles(t *testing.T) {
	tess := TessellatePolygon(square(), geom.Color{R: 255, A: 255})
	require.NotEmpty(t, tess.Indices)
	assert.Equal(t, 0, len(tess.Indices)%3, "indices must form whole triangles")
	assert.Equal(t, 4, len(tess.Vertices))
}

func TestTessellatePolygonWithHole(t *testing.T) {
	outer := []geom.Point2[float64]{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	hole := []geom.Point2[float64]{{X: 3, Y: 3}, {X: 3, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 3}}
	poly := geom.NewPolygon(outer, [][]geom.Point2[float64]{hole})

	tess := TessellatePolygon(poly, geom.Color{G: 255, A: 255})
	assert.Equal(t, 8, len(tess.Vertices))
	assert.Equal(t, 0, len(tess.Indices)%3)
}

func TestTessellateLineProducesQuadsPerSegment(t *testing.T) {
	line := geom.Contour[float64]{
		Points:   []geom.Point2[float64]{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		IsClosed: false,
	}
	tess := TessellateLine(line, LinePaint{Color: geom.Color{B: 255, A: 255}, Width: 2}, 1)
	assert.Equal(t, 8, len(tess.Vertices)) // 2 segments * 4 corners
	assert.Equal(t, 12, len(tess.Indices)) // 2 segments * 2 triangles * 3 indices
}

func TestWorldRenderSetImageDeduplication(t *testing.T) {
	img, err := geom.NewDecodedImage(make([]byte, 4*2*2), geom.Size[uint32]{Width: 2, Height: 2})
	require.NoError(t, err)

	set := NewWorldRenderSet()
	quad := [4]geom.Point2[float64]{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	set.AddImage(img, quad, ImagePaint{Opacity: 255})
	set.AddImage(img, quad, ImagePaint{Opacity: 128})

	require.Len(t, set.Images, 2)
	assert.Equal(t, set.Images[0].StoreIndex, set.Images[1].StoreIndex)
	assert.Len(t, set.ImageStore(), 1)
}

func TestWorldRenderSetIsEmpty(t *testing.T) {
	set := NewWorldRenderSet()
	assert.True(t, set.IsEmpty())

	set.AddPoint(geom.Point3[float64]{}, PointPaint{Size: 1})
	assert.False(t, set.IsEmpty())
}

func TestRenderSetStateIsDisplayed(t *testing.T) {
	assert.False(t, RenderSetHidden.IsDisplayed())
	assert.True(t, RenderSetFadingIn.IsDisplayed())
	assert.True(t, RenderSetDisplayed.IsDisplayed())
	assert.False(t, RenderSetFadingOut.IsDisplayed())
}

func TestNewFromMarkerImageBboxAnchored(t *testing.T) {
	img, err := geom.NewDecodedImage(make([]byte, 4*4*4), geom.Size[uint32]{Width: 4, Height: 4})
	require.NoError(t, err)

	item := NewFromMarkerImage(geom.Point3[float64]{X: 1, Y: 2}, img, geom.Point2[float64]{X: 0.5, Y: 1})
	require.NotNil(t, item)
	assert.True(t, item.Data.IsImage())
	assert.InDelta(t, -2.0, item.Bbox.XMin, 0.001)
	assert.InDelta(t, 2.0, item.Bbox.XMax, 0.001)
}

func TestTessellateLineNormalsCarryWidth(t *testing.T) {
	line := geom.Contour[float64]{
		Points: []geom.Point2[float64]{{X: 0, Y: 0}, {X: 10, Y: 0}},
	}
	tess := TessellateLine(line, LinePaint{Color: geom.Color{A: 255}, Width: 4}, 2)
	require.Len(t, tess.Vertices, 4)

	v := tess.Vertices[0]
	assert.Equal(t, [3]float32{0, 0, 0}, v.Position, "positions stay on the centerline")
	assert.InDelta(t, 2.0, float64(v.Normal[1]), 1e-6, "half the width lives in the normal")
	assert.InDelta(t, 40.0, float64(v.NormLimit), 1e-6, "limit is segment length * 2 * min resolution")
}

func TestAddPointShapes(t *testing.T) {
	set := NewWorldRenderSet()
	pos := geom.Point3[float64]{X: 1, Y: 2}

	set.AddPoint(pos, PointPaint{Shape: ShapeDot, Size: 3, Color: geom.Color{A: 255}})
	assert.Len(t, set.Points, 1)
	assert.Empty(t, set.ScreenRef.Vertices)

	set.AddPoint(pos, PointPaint{Shape: ShapeCircle, Size: 10, Color: geom.Color{A: 255}})
	require.NotEmpty(t, set.ScreenRef.Vertices)
	for _, v := range set.ScreenRef.Vertices {
		assert.Equal(t, [3]float32{1, 2, 0}, v.Position, "marker vertices anchor at the world point")
	}

	square := NewWorldRenderSet()
	square.AddPoint(pos, PointPaint{Shape: ShapeSquare, Size: 8, Color: geom.Color{A: 255}})
	assert.Len(t, square.ScreenRef.Vertices, 4)
	assert.Len(t, square.ScreenRef.Indices, 6)
}

func TestDpiScaleMultipliesPixelSizes(t *testing.T) {
	set := NewWorldRenderSet()
	set.SetDpiScale(2)

	set.AddPoint(geom.Point3[float64]{}, PointPaint{Shape: ShapeDot, Size: 3})
	require.Len(t, set.Points, 1)
	assert.Equal(t, float32(6), set.Points[0].Size)

	set.AddLine(geom.Contour[float64]{
		Points: []geom.Point2[float64]{{X: 0, Y: 0}, {X: 1, Y: 0}},
	}, LinePaint{Width: 2}, 1)
	require.NotEmpty(t, set.Lines.Vertices)
	assert.InDelta(t, 2.0, float64(set.Lines.Vertices[0].Normal[1]), 1e-6, "scaled half-width")
}

func TestMergeReindexesImages(t *testing.T) {
	imgA, err := geom.NewDecodedImage(make([]byte, 4), geom.Size[uint32]{Width: 1, Height: 1})
	require.NoError(t, err)
	imgB, err := geom.NewDecodedImage(make([]byte, 4), geom.Size[uint32]{Width: 1, Height: 1})
	require.NoError(t, err)

	quad := [4]geom.Point2[float64]{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	dst := NewWorldRenderSet()
	dst.AddImage(imgA, quad, ImagePaint{Opacity: 255})

	src := NewWorldRenderSet()
	src.AddImage(imgB, quad, ImagePaint{Opacity: 255})
	src.AddImage(imgA, quad, ImagePaint{Opacity: 255})

	dst.Merge(src)

	require.Len(t, dst.ImageStore(), 2, "shared image must not be duplicated by Merge")
	require.Len(t, dst.Images, 3)
	assert.Equal(t, dst.Images[0].StoreIndex, dst.Images[2].StoreIndex, "merged reference to imgA points at the existing slot")
}
