package mapview

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

func testView() MapView {
	return NewProjected(geom.Point2[float64]{X: 0, Y: 0}, 1)
}

func assertPoint(t *testing.T, want geom.Point2[float64], got geom.Point2[float64], eps float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps)
	assert.InDelta(t, want.Y, got.Y, eps)
}

func TestScreenToMapSize(t *testing.T) {
	v := testView().WithSize(geom.Size[float64]{Width: 100, Height: 100})

	p, ok := v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -50, Y: 50}, p, 0.0001)

	p, ok = v.ScreenToMap(geom.Point2[float64]{X: 50, Y: 50})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: 0, Y: 0}, p, 0.0001)

	v = testView().WithSize(geom.Size[float64]{Width: 200, Height: 50})
	p, ok = v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -100, Y: 25}, p, 0.0001)

	p, ok = v.ScreenToMap(geom.Point2[float64]{X: 25, Y: 49})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -75, Y: -24}, p, 0.0001)
}

func TestScreenToMapZeroSize(t *testing.T) {
	v := testView().WithSize(geom.Size[float64]{Width: 0, Height: 0})
	_, ok := v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.False(t, ok)
}

func TestScreenToMapPosition(t *testing.T) {
	v := NewProjected(geom.Point2[float64]{X: -100, Y: -100}, 1).
		WithSize(geom.Size[float64]{Width: 100, Height: 100})

	p, ok := v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -150, Y: -50}, p, 0.0001)

	p, ok = v.ScreenToMap(geom.Point2[float64]{X: 100, Y: 100})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -50, Y: -150}, p, 0.0001)
}

func TestScreenToMapResolution(t *testing.T) {
	v := testView().WithResolution(2).WithSize(geom.Size[float64]{Width: 100, Height: 100})

	p, ok := v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: -100, Y: 100}, p, 0.0001)

	p, ok = v.ScreenToMap(geom.Point2[float64]{X: 100, Y: 100})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: 100, Y: -100}, p, 0.0001)
}

func TestScreenToMapRotationX(t *testing.T) {
	v := testView().WithRotationX(math.Pi / 4).WithSize(geom.Size[float64]{Width: 100, Height: 100})

	p, ok := v.ScreenToMap(geom.Point2[float64]{X: 50, Y: 50})
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: 0, Y: 0}, p, 0.0001)

	_, ok = v.ScreenToMap(geom.Point2[float64]{X: 0, Y: 0})
	assert.False(t, ok, "point above the horizon must return None")
}

func TestScreenToMapCenterMatchesProjectedPosition(t *testing.T) {
	v := NewProjected(geom.Point2[float64]{X: 123, Y: 456}, 2).
		WithSize(geom.Size[float64]{Width: 800, Height: 600})

	center := geom.Point2[float64]{X: v.Size().Width / 2, Y: v.Size().Height / 2}
	p, ok := v.ScreenToMap(center)
	assert.True(t, ok)
	assertPoint(t, geom.Point2[float64]{X: 123, Y: 456}, p, 0.0001)
}
