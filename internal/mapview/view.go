// Package mapview implements the engine's MapView: the authoritative
// camera state each frame is rendered from. A view carries a projected
// position, a resolution (map units per pixel at the center), tilt and
// ground-plane rotation, and the viewport size; everything else — the
// scene transform, the screen-to-map inverse, the visible bounding box —
// is derived.
package mapview

import (
	"math"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/proj"
)

// Crs identifies the coordinate reference system a view is expressed in.
// Only equality matters to the engine (tile schemas refuse to enumerate
// tiles for a mismatched CRS); the CRS/projection library itself is an
// external collaborator.
type Crs string

const CrsEPSG3857 Crs = "EPSG:3857"

// MapView is the immutable camera/viewport state. All "with" methods
// return a new value; a view never mutates in place.
type MapView struct {
	projectedPosition *geom.Point3[float64] // nil == None (non-renderable view)
	resolution        float64
	rotationX         float64
	rotationZ         float64
	size              geom.Size[float64]
	crs               Crs
}

// NewProjected creates a view directly from projected (map-unit) coordinates.
func NewProjected(position geom.Point2[float64], resolution float64) MapView {
	p := geom.Point3[float64]{X: position.X, Y: position.Y, Z: 0}
	return MapView{projectedPosition: &p, resolution: resolution, crs: CrsEPSG3857}
}

func (v MapView) clone() MapView { return v }

func (v MapView) ProjectedPosition() (geom.Point3[float64], bool) {
	if v.projectedPosition == nil {
		return geom.Point3[float64]{}, false
	}
	return *v.projectedPosition, true
}

func (v MapView) Resolution() float64      { return v.resolution }
func (v MapView) RotationX() float64       { return v.rotationX }
func (v MapView) RotationZ() float64       { return v.rotationZ }
func (v MapView) Size() geom.Size[float64] { return v.size }
func (v MapView) Crs() Crs                 { return v.crs }

func (v MapView) WithPosition(p geom.Point2[float64]) MapView {
	out := v.clone()
	pp := geom.Point3[float64]{X: p.X, Y: p.Y, Z: 0}
	out.projectedPosition = &pp
	return out
}

func (v MapView) WithResolution(r float64) MapView {
	out := v.clone()
	out.resolution = r
	return out
}

func (v MapView) WithRotationX(rx float64) MapView {
	out := v.clone()
	out.rotationX = rx
	return out
}

func (v MapView) WithRotationZ(rz float64) MapView {
	out := v.clone()
	out.rotationZ = rz
	return out
}

func (v MapView) WithSize(s geom.Size[float64]) MapView {
	out := v.clone()
	out.size = s
	return out
}

func (v MapView) WithCrs(c Crs) MapView {
	out := v.clone()
	out.crs = c
	return out
}

// mapToScreenCenterTransform builds the camera matrix: translate the
// position to the origin, rotate -rotationX around X, rotate rotationZ
// around Z, scale by 1/resolution, translate -h/2 in Z, then apply the
// perspective.
func (v MapView) mapToScreenCenterTransform() (Mat4, bool) {
	if v.size.IsZero() {
		return Mat4{}, false
	}
	pos, ok := v.ProjectedPosition()
	if !ok {
		return Mat4{}, false
	}

	x := math.Round(pos.X/v.resolution) * v.resolution
	y := math.Round(pos.Y/v.resolution) * v.resolution
	z := math.Round(pos.Z/v.resolution) * v.resolution

	t := translate(-x, -y, -z)
	rx := rotateX(-v.rotationX)
	rz := rotateZ(v.rotationZ)
	s := scale(1/v.resolution, 1/v.resolution, 1/v.resolution)
	tz := translate(0, 0, -v.size.Height/2)
	p := v.perspective()
	m := p.Mul(tz).Mul(s).Mul(rx).Mul(rz).Mul(t)
	return m, true
}

func (v MapView) perspective() Mat4 {
	return perspective(v.size.Width/v.size.Height, math.Pi/2, 10, v.size.Height)
}

// MapToSceneTransform returns the matrix that carries map coordinates into
// [-1,1] scene coordinates (Y up, Z in [0,1] after the 0.5 scale and 0.5
// shift below).
func (v MapView) MapToSceneTransform() (Mat4, bool) {
	center, ok := v.mapToScreenCenterTransform()
	if !ok {
		return Mat4{}, false
	}
	zScale := translate(0, 0, 0.5).Mul(scale(1, 1, 0.5))
	return zScale.Mul(center), true
}

// ScreenToMap projects a screen pixel back to map coordinates at z=0 in
// closed form rather than by inverting the 4x4 numerically. Points above
// the horizon don't map.
func (v MapView) ScreenToMap(px geom.Point2[float64]) (geom.Point2[float64], bool) {
	if v.size.IsZero() {
		return geom.Point2[float64]{}, false
	}

	x, y := px.X, px.Y
	halfH := v.size.HalfHeight()
	halfW := v.size.HalfWidth()
	a := (halfH - y) * math.Tan(math.Pi/4) / halfH
	s := 1/(math.Tan(math.Pi/2-v.rotationX)/a-1) + 1
	if math.IsInf(s, 0) || math.IsNaN(s) || s <= 0 {
		return geom.Point2[float64]{}, false
	}

	x0 := (x - halfW) * v.resolution
	y0 := (halfH - y) * v.resolution
	y0Ang := y0 / math.Cos(v.rotationX)

	x0Scaled := x0 * s
	y0Scaled := y0Ang * s

	pos, ok := v.ProjectedPosition()
	if !ok {
		return geom.Point2[float64]{}, false
	}

	// Rotate (x0Scaled, y0Scaled, 0) around Z by -rotationZ, then translate by pos.
	c, sn := math.Cos(-v.rotationZ), math.Sin(-v.rotationZ)
	rx := x0Scaled*c - y0Scaled*sn
	ry := x0Scaled*sn + y0Scaled*c

	return geom.Point2[float64]{X: rx + pos.X, Y: ry + pos.Y}, true
}

// ScreenToMapGeo is ScreenToMap followed by unprojecting the result out of
// the view's CRS into geographic (lon/lat) coordinates. The CRS/projection
// library proper is an external collaborator; only the one concrete CRS
// this engine ships (Web Mercator, internal/proj.WebMercator) is wired here.
func (v MapView) ScreenToMapGeo(px geom.Point2[float64]) (geom.Point2[float64], bool) {
	mapPoint, ok := v.ScreenToMap(px)
	if !ok {
		return geom.Point2[float64]{}, false
	}
	if v.crs != CrsEPSG3857 {
		return geom.Point2[float64]{}, false
	}
	return proj.WebMercator{}.Unproject(mapPoint)
}

// GetBbox returns the convex-hull rectangle of the four screen corners
// projected to the map, clipped to 4x the non-tilted view (to bound
// horizon-induced blowup).
func (v MapView) GetBbox() (geom.Rect[float64], bool) {
	pos, ok := v.ProjectedPosition()
	if !ok {
		return geom.Rect[float64]{}, false
	}

	maxBbox := geom.NewRect(
		pos.X-v.size.HalfWidth()*v.resolution,
		pos.Y-v.size.HalfHeight()*v.resolution,
		pos.X+v.size.HalfWidth()*v.resolution,
		pos.Y+v.size.HalfHeight()*v.resolution,
	).Magnify(4)

	corners := [4]geom.Point2[float64]{
		{X: 0, Y: 0},
		{X: v.size.Width, Y: 0},
		{X: 0, Y: v.size.Height},
		{X: v.size.Width, Y: v.size.Height},
	}

	pts := make([]geom.Point2[float64], 0, 4)
	for _, c := range corners {
		p, ok := v.ScreenToMap(c)
		if !ok {
			return maxBbox, true
		}
		pts = append(pts, p)
	}

	bbox, ok := geom.RectFromPoints(pts)
	if !ok {
		return maxBbox, true
	}
	return bbox.Limit(maxBbox), true
}

// TranslateByPixels shifts the view so the map point under `from` becomes
// the map point under `to`, capped to ±100*resolution per axis.
func (v MapView) TranslateByPixels(from, to geom.Point2[float64]) MapView {
	fromP, ok1 := v.ScreenToMap(from)
	toP, ok2 := v.ScreenToMap(to)
	if !ok1 || !ok2 {
		return v.clone()
	}

	const maxTranslate = 100.0
	cap := maxTranslate * v.resolution

	dx := toP.X - fromP.X
	dy := toP.Y - fromP.Y
	if math.Abs(dx) > cap {
		dx = cap * sign(dx)
	}
	if math.Abs(dy) > cap {
		dy = cap * sign(dy)
	}

	return v.translate(geom.Vector2[float64]{DX: dx, DY: dy})
}

func (v MapView) translate(delta geom.Vector2[float64]) MapView {
	out := v.clone()
	if v.projectedPosition == nil {
		return out
	}
	np := geom.Point3[float64]{
		X: v.projectedPosition.X - delta.DX,
		Y: v.projectedPosition.Y - delta.DY,
		Z: v.projectedPosition.Z,
	}
	out.projectedPosition = &np
	return out
}

// Zoom scales resolution by factor, keeping the map point under anchorPx fixed.
func (v MapView) Zoom(factor float64, anchorPx geom.Point2[float64]) MapView {
	out := v.clone()
	out.resolution = v.resolution * factor

	basePoint, ok := v.ScreenToMap(anchorPx)
	if !ok || v.projectedPosition == nil {
		return out
	}

	pos2 := geom.Point2[float64]{X: v.projectedPosition.X, Y: v.projectedPosition.Y}
	delta := pos2.Sub(basePoint).Scale(factor)
	newPos := basePoint.Add(delta)

	np := geom.Point3[float64]{X: newPos.X, Y: newPos.Y, Z: v.projectedPosition.Z}
	out.projectedPosition = &np
	return out
}

// Interpolate blends between v and target at k in [0,1]. Only position and
// resolution participate; the animation loop applies its own easing to k.
func (v MapView) Interpolate(target MapView, k float64) MapView {
	if v.projectedPosition == nil || target.projectedPosition == nil {
		return v.clone()
	}
	out := v.clone()
	sp := *v.projectedPosition
	tp := *target.projectedPosition
	np := geom.Point3[float64]{
		X: sp.X + (tp.X-sp.X)*k,
		Y: sp.Y + (tp.Y-sp.Y)*k,
		Z: sp.Z + (tp.Z-sp.Z)*k,
	}
	out.projectedPosition = &np
	out.resolution = v.resolution + (target.resolution-v.resolution)*k
	return out
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
