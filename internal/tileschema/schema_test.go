package tileschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
)

func simpleSchema() *TileSchema {
	return &TileSchema{
		Origin:       geom.Point2[float64]{X: 0, Y: 0},
		Bounds:       geom.NewRect(0, 0, 2048, 2048),
		Lods:         []Lod{{8, 0}, {4, 1}, {2, 2}},
		TileWidth:    256,
		TileHeight:   256,
		YDirection:   BottomToTop,
		Crs:          mapview.CrsEPSG3857,
		MaxTileScale: 2,
		CycleX:       false,
	}
}

func viewFor(resolution float64, bbox geom.Rect[float64]) mapview.MapView {
	center := bbox.Center()
	return mapview.NewProjected(center, resolution).
		WithSize(geom.Size[float64]{Width: bbox.Width() / resolution, Height: bbox.Height() / resolution})
}

func TestSelectLod(t *testing.T) {
	s := simpleSchema()
	check := func(res float64, wantZ uint32) {
		lod, ok := s.SelectLod(res)
		require.True(t, ok, "res=%v", res)
		assert.Equal(t, wantZ, lod.ZIndex, "res=%v", res)
	}

	check(8.0, 0)
	check(9.0, 0)
	check(16.0, 0)
	check(7.99, 0)
	check(7.5, 1)
	check(4.1, 1)
	check(4.0, 1)
	check(1.5, 2)
	check(1.0, 2)

	_, ok := s.SelectLod(0.5)
	assert.False(t, ok)
	_, ok = s.SelectLod(0.0)
	assert.False(t, ok)
	_, ok = s.SelectLod(100500.0)
	assert.False(t, ok)
}

func TestSelectLodMaxTileScale(t *testing.T) {
	s := simpleSchema()
	_, ok := s.SelectLod(16.0)
	assert.True(t, ok)
	_, ok = s.SelectLod(1.0)
	assert.True(t, ok)
	_, ok = s.SelectLod(17.0)
	assert.False(t, ok)

	s.MaxTileScale = 1.5
	_, ok = s.SelectLod(16.0)
	assert.False(t, ok)

	s.MaxTileScale = 2.5
	_, ok = s.SelectLod(16.0)
	assert.True(t, ok)
	_, ok = s.SelectLod(17.0)
	assert.True(t, ok)
}

func TestIterIndicesFullBbox(t *testing.T) {
	s := simpleSchema()
	bbox := geom.NewRect(0.0, 0.0, 2048.0, 2048.0)

	v := viewFor(8.0, bbox)
	tiles, ok := s.IterTiles(v)
	require.True(t, ok)
	require.Len(t, tiles, 1)
	assert.Equal(t, uint32(0), tiles[0].Z)

	v = viewFor(2.0, bbox)
	tiles, ok = s.IterTiles(v)
	require.True(t, ok)
	assert.Len(t, tiles, 16)
	for _, tl := range tiles {
		assert.True(t, tl.X >= 0 && tl.X <= 3)
		assert.True(t, tl.Y >= 0 && tl.Y <= 3)
		assert.Equal(t, uint32(2), tl.Z)
	}
}

func TestIterTilesOutsideBbox(t *testing.T) {
	s := simpleSchema()
	bbox := geom.NewRect(-100.0, -100.0, -50.0, -50.0)
	v := viewFor(8.0, bbox)
	tiles, ok := s.IterTiles(v)
	require.True(t, ok)
	assert.Len(t, tiles, 0)
}

func TestTileBboxSize(t *testing.T) {
	s := WebSchema(19)
	idx := TileIndex{X: 1, Y: 1, Z: 2}
	rect, ok := s.TileBbox(idx)
	require.True(t, ok)
	res, _ := s.LodResolution(2)
	assert.InDelta(t, float64(256)*res, rect.Width(), 1e-6)
	assert.InDelta(t, float64(256)*res, rect.Height(), 1e-6)
}

func TestWebSchemaS1(t *testing.T) {
	s := WebSchema(18)
	v := mapview.NewProjected(geom.Point2[float64]{X: 0, Y: 0}, 156543.03392800014/4).
		WithSize(geom.Size[float64]{Width: 1024, Height: 1024})

	tiles, ok := s.IterTiles(v)
	require.True(t, ok)

	seen := map[TileIndex]bool{}
	for _, tl := range tiles {
		assert.Equal(t, uint32(2), tl.Z)
		seen[tl.TileIndex] = true
	}
	assert.True(t, len(seen) >= 4)

	rect, ok := s.TileBbox(TileIndex{X: 1, Y: 1, Z: 2})
	require.True(t, ok)
	assert.InDelta(t, -10018754.17, rect.XMin, 1)
	assert.InDelta(t, 0.0, rect.YMin, 1)
	assert.InDelta(t, 0.0, rect.XMax, 1)
	assert.InDelta(t, 10018754.17, rect.YMax, 1)
}

func TestGetSubstitutesCoverParent(t *testing.T) {
	s := WebSchema(19)
	idx := TileIndex{X: 3, Y: 2, Z: 4}

	subs, ok := s.GetSubstitutes(idx)
	require.True(t, ok)
	require.NotEmpty(t, subs)
	for _, sub := range subs {
		assert.Equal(t, uint32(3), sub.Z)
	}

	childBbox, ok := s.TileBbox(idx)
	require.True(t, ok)
	parentBbox, ok := s.TileBbox(subs[0].TileIndex)
	require.True(t, ok)
	assert.True(t, parentBbox.Intersects(childBbox))
}

func TestGetSubstitutesAtRoot(t *testing.T) {
	s := WebSchema(19)
	_, ok := s.GetSubstitutes(TileIndex{X: 0, Y: 0, Z: 0})
	assert.False(t, ok, "the coarsest LOD has no parent to substitute")
}

func TestTileBboxDisplayShiftsWrappedCopy(t *testing.T) {
	s := WebSchema(19)
	base := TileIndex{X: 0, Y: 0, Z: 1}
	wrapped := WrappingTileIndex{TileIndex: base, DisplayX: 2}

	baseBbox, ok := s.TileBbox(base)
	require.True(t, ok)
	shifted, ok := s.TileBboxDisplay(wrapped)
	require.True(t, ok)

	res, _ := s.LodResolution(1)
	assert.InDelta(t, baseBbox.XMin+2*256*res, shifted.XMin, 1e-6)
	assert.InDelta(t, baseBbox.YMin, shifted.YMin, 1e-6)
}
