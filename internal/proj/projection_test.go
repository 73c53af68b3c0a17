package proj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

func TestWebMercatorRoundTrip(t *testing.T) {
	points := []geom.Point2[float64]{
		{X: 0, Y: 0},
		{X: 4.9041, Y: 52.3676},
		{X: -122.4194, Y: 37.7749},
		{X: 180, Y: -85},
	}
	for _, p := range points {
		projected, ok := WebMercator{}.Project(p)
		require.True(t, ok, "point %+v must project", p)
		back, ok := WebMercator{}.Unproject(projected)
		require.True(t, ok)
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
}

func TestWebMercatorRejectsPoles(t *testing.T) {
	_, ok := WebMercator{}.Project(geom.Point2[float64]{X: 0, Y: 90})
	assert.False(t, ok)
	_, ok = WebMercator{}.Project(geom.Point2[float64]{X: 0, Y: -90})
	assert.False(t, ok)
}

func TestChainAndInverted(t *testing.T) {
	var wm Projection[geom.Point2[float64], geom.Point2[float64]] = WebMercator{}

	chained := Chain[geom.Point2[float64], geom.Point2[float64], geom.Point3[float64]](wm, AddDimension{Z: 7})
	out, ok := chained.Project(geom.Point2[float64]{X: 0, Y: 0})
	require.True(t, ok)
	assert.Equal(t, 7.0, out.Z)

	back, ok := chained.Unproject(out)
	require.True(t, ok)
	assert.InDelta(t, 0, back.X, 1e-9)

	inv := Inverted(wm)
	geo, ok := inv.Project(geom.Point2[float64]{X: 0, Y: 0})
	require.True(t, ok)
	assert.InDelta(t, 0, geo.Y, 1e-9)
}

func TestIdentity(t *testing.T) {
	p := geom.Point2[float64]{X: 1, Y: 2}
	out, ok := Identity[geom.Point2[float64]]{}.Project(p)
	require.True(t, ok)
	assert.Equal(t, p, out)
}
