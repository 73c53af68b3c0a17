// Package proj implements a small projection algebra: Identity, Chain,
// Inverted, and AddDimension combinators over a generic Projection
// interface, plus the one concrete CRS this engine ships (Web Mercator).
// Combinators are composed explicitly at layer-construction time so hot
// render paths don't pay for deep interface dispatch chains.
package proj

import (
	"math"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// Projection converts points from one coordinate space to another. In is
// typically geographic (lon/lat) and Out is typically projected map units,
// but the algebra (Chain, Inverted, AddDimension) works for any pair.
type Projection[In, Out any] interface {
	Project(in In) (Out, bool)
	Unproject(out Out) (In, bool)
}

// Identity is a Projection that leaves values unchanged.
type Identity[T any] struct{}

func (Identity[T]) Project(in T) (T, bool)    { return in, true }
func (Identity[T]) Unproject(out T) (T, bool) { return out, true }

// chain composes two projections: In -> Mid -> Out.
type chain[In, Mid, Out any] struct {
	a Projection[In, Mid]
	b Projection[Mid, Out]
}

// Chain returns a Projection equivalent to applying a then b.
func Chain[In, Mid, Out any](a Projection[In, Mid], b Projection[Mid, Out]) Projection[In, Out] {
	return chain[In, Mid, Out]{a: a, b: b}
}

func (c chain[In, Mid, Out]) Project(in In) (Out, bool) {
	var zero Out
	mid, ok := c.a.Project(in)
	if !ok {
		return zero, false
	}
	return c.b.Project(mid)
}

func (c chain[In, Mid, Out]) Unproject(out Out) (In, bool) {
	var zero In
	mid, ok := c.b.Unproject(out)
	if !ok {
		return zero, false
	}
	return c.a.Unproject(mid)
}

// inverted swaps the direction of an existing projection.
type inverted[In, Out any] struct {
	p Projection[In, Out]
}

func Inverted[In, Out any](p Projection[In, Out]) Projection[Out, In] {
	return inverted[In, Out]{p: p}
}

func (i inverted[In, Out]) Project(out Out) (In, bool)  { return i.p.Unproject(out) }
func (i inverted[In, Out]) Unproject(in In) (Out, bool) { return i.p.Project(in) }

// AddDimension lifts a 2D point into 3D at a fixed Z, for chaining after a
// 2D CRS projection to produce render coordinates.
type AddDimension struct {
	Z float64
}

func (a AddDimension) Project(in geom.Point2[float64]) (geom.Point3[float64], bool) {
	return geom.Point3[float64]{X: in.X, Y: in.Y, Z: a.Z}, true
}

func (a AddDimension) Unproject(out geom.Point3[float64]) (geom.Point2[float64], bool) {
	return geom.Point2[float64]{X: out.X, Y: out.Y}, true
}

// WebMercator projects WGS84 lon/lat degrees to EPSG:3857 meters and back.
// Latitudes at or beyond the poles don't project.
type WebMercator struct{}

const earthRadius = 6378137.0

func (WebMercator) Project(in geom.Point2[float64]) (geom.Point2[float64], bool) {
	lonRad := in.X * math.Pi / 180
	latRad := in.Y * math.Pi / 180
	if in.Y <= -90 || in.Y >= 90 {
		return geom.Point2[float64]{}, false
	}
	x := earthRadius * lonRad
	y := earthRadius * math.Log(math.Tan(math.Pi/4+latRad/2))
	return geom.Point2[float64]{X: x, Y: y}, true
}

func (WebMercator) Unproject(out geom.Point2[float64]) (geom.Point2[float64], bool) {
	lon := out.X / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(out.Y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return geom.Point2[float64]{X: lon, Y: lat}, true
}
