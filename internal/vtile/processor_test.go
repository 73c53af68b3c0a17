package vtile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

func unitSchema() *tileschema.TileSchema {
	return &tileschema.TileSchema{
		Origin:       geom.Point2[float64]{X: 0, Y: 0},
		Bounds:       geom.NewRect(0, 0, 10, 10),
		Lods:         []tileschema.Lod{{Resolution: 1, ZIndex: 0}},
		TileWidth:    10,
		TileHeight:   10,
		YDirection:   tileschema.BottomToTop,
		Crs:          mapview.CrsEPSG3857,
		MaxTileScale: 2,
	}
}

func squareTile(t *testing.T) *MvtTile {
	t.Helper()
	const e = 4096
	commands := []uint32{
		moveTo(1), zigzag(0), zigzag(0),
		lineTo(3), zigzag(e), zigzag(0), zigzag(0), zigzag(e), zigzag(-e), zigzag(0),
		closePath,
	}
	polygons, err := decodePolygons(commands, e)
	require.NoError(t, err)
	require.Len(t, polygons, 1)

	return &MvtTile{Layers: []MvtLayer{{
		Name:   "water",
		Extent: e,
		Features: []MvtFeature{{
			ID:         1,
			HasID:      true,
			Properties: map[string]MvtValue{"class": strVal("ocean")},
			Geometry:   MvtGeometry{Polygons: polygons},
		}},
	}}}
}

func TestPrepareDrawsStyledPolygon(t *testing.T) {
	tile := squareTile(t)
	schema := unitSchema()
	style := VectorTileStyle{
		DefaultSymbol: DefaultSymbol{Polygon: &PolygonSymbol{FillColor: geom.Color{B: 255, A: 255}}},
	}

	bundle := renderbundle.NewRenderBundle()
	err := VtProcessor{}.Prepare(tile, bundle, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, style, schema)
	require.NoError(t, err)

	assert.NotZero(t, len(bundle.World.Polygons.Vertices), "styled polygon feature must produce fill geometry")
	assert.NotNil(t, bundle.World.ClipArea, "Prepare always sets the tile's clip area")
}

func TestPrepareSkipsUnstyledFeature(t *testing.T) {
	tile := squareTile(t)
	schema := unitSchema()
	style := VectorTileStyle{} // no rules, no default symbols

	bundle := renderbundle.NewRenderBundle()
	err := VtProcessor{}.Prepare(tile, bundle, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, style, schema)
	require.NoError(t, err)
	assert.Equal(t, 0, len(bundle.World.Polygons.Vertices))
}

func TestFeatureAtHitsInteriorPoint(t *testing.T) {
	tile := squareTile(t)
	schema := unitSchema()
	layerName, feature, ok := VtProcessor{}.FeatureAt(tile, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, schema, geom.Point2[float64]{X: 5, Y: 5}, 0.01)
	require.True(t, ok)
	assert.Equal(t, "water", layerName)
	assert.Equal(t, "ocean", feature.Properties["class"].String())
}

func TestFeatureAtMissesOutsidePoint(t *testing.T) {
	tile := squareTile(t)
	schema := unitSchema()
	_, _, ok := VtProcessor{}.FeatureAt(tile, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, schema, geom.Point2[float64]{X: 50, Y: 50}, 0.01)
	assert.False(t, ok)
}

type fakeShaper struct{}

func (fakeShaper) Shape(text string, sizePx float64) (renderbundle.ShapedText, error) {
	return renderbundle.ShapedText{
		Vertices: []renderbundle.ScreenSetVertex{{Position: [2]float32{0, 0}}, {Position: [2]float32{10, 10}}},
	}, nil
}

func pointTile(t *testing.T, props map[string]MvtValue) *MvtTile {
	t.Helper()
	const e = 4096
	commands := []uint32{moveTo(1), zigzag(5), zigzag(5)}
	points, err := decodePoints(commands, e)
	require.NoError(t, err)

	return &MvtTile{Layers: []MvtLayer{{
		Name:     "places",
		Extent:   4096,
		Features: []MvtFeature{{Properties: props, Geometry: MvtGeometry{Points: points}}},
	}}}
}

func TestPrepareEmitsLabelScreenSetWhenShaperConfigured(t *testing.T) {
	tile := pointTile(t, map[string]MvtValue{"name": strVal("Springfield")})
	schema := unitSchema()
	style := VectorTileStyle{
		DefaultSymbol: DefaultSymbol{Label: &LabelSymbol{Pattern: "{name}"}},
	}

	bundle := renderbundle.NewRenderBundle()
	proc := VtProcessor{Shaper: fakeShaper{}}
	err := proc.Prepare(tile, bundle, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, style, schema)
	require.NoError(t, err)

	require.Len(t, bundle.ScreenItems, 1)
	assert.True(t, bundle.ScreenItems[0].HideOnOverlay)
	assert.Equal(t, 0, len(bundle.World.Points), "a shaped label must not also fall back to a plain dot")
}

func TestPrepareFallsBackToDotWithoutShaper(t *testing.T) {
	tile := pointTile(t, map[string]MvtValue{"name": strVal("Springfield")})
	schema := unitSchema()
	style := VectorTileStyle{
		DefaultSymbol: DefaultSymbol{Label: &LabelSymbol{Pattern: "{name}"}},
	}

	bundle := renderbundle.NewRenderBundle()
	err := VtProcessor{}.Prepare(tile, bundle, tileschema.TileIndex{X: 0, Y: 0, Z: 0}, style, schema)
	require.NoError(t, err)

	assert.Empty(t, bundle.ScreenItems)
	assert.NotZero(t, len(bundle.World.Points))
}

func TestPolygonContainsRespectsHoles(t *testing.T) {
	outer := geom.Contour[float64]{Points: []geom.Point2[float64]{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}}
	hole := geom.Contour[float64]{Points: []geom.Point2[float64]{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}}}
	poly := geom.Polygon[float64]{Outer: outer, Holes: []geom.Contour[float64]{hole}}

	assert.True(t, polygonContains(poly, geom.Point2[float64]{X: 1, Y: 1}))
	assert.False(t, polygonContains(poly, geom.Point2[float64]{X: 5, Y: 5}), "point inside the hole is not inside the polygon")
}
