package featurelayer

import (
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapctl"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/proj"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// Space selects which of three projection rules a FeatureLayer
// follows when reconciling its own CRS against the view's.
type Space int

const (
	Geo2d Space = iota
	Cartesian2d
	Cartesian3d
)

// GeoProjection is the CRS/projection library's entry point (external
// collaborator): project lon/lat into the view's projected CRS.
type GeoProjection = proj.Projection[geom.Point2[float64], geom.Point2[float64]]

// FeatureLayer owns a FeatureStore and a Symbol, rendering and
// incrementally updating them. The projection algebra (internal/proj) is
// composed explicitly per Space at construction time rather than threaded
// through as a type parameter.
type FeatureLayer[F Feature] struct {
	store  *FeatureStore[F]
	symbol Symbol[F]
	space  Space

	// geoProjection projects this layer's native geometry (Geo2d: lon/lat;
	// Cartesian2d: layer CRS) into the view's CRS. Nil means "same CRS as the
	// view", i.e. identity.
	geoProjection GeoProjection
	crs           mapview.Crs

	messenger       mapctl.Messenger
	combined        *renderbundle.RenderBundle
	renderedVersion uint64
}

// SetMessenger stores the redraw-request handle, satisfying the
// mapctl.Layer capability set. Feature edits (Add/Delete/Editor.Get) do not
// call it; they are picked up by the next Render.
func (l *FeatureLayer[F]) SetMessenger(m mapctl.Messenger) {
	l.messenger = m
}

// Prepare is a no-op: features live entirely in memory, so there is no
// asynchronous load to kick off for a given view (satisfies mapctl.Layer).
func (l *FeatureLayer[F]) Prepare(mapview.MapView) {}

// NewFeatureLayer builds a layer for the given space. geoProjection is only
// consulted for Geo2d/Cartesian2d (see Render); layerCrs is compared against
// the view's CRS for Cartesian2d/Cartesian3d's identity fast path.
func NewFeatureLayer[F Feature](space Space, symbol Symbol[F], geoProjection GeoProjection, layerCrs mapview.Crs) *FeatureLayer[F] {
	return &FeatureLayer[F]{
		store:         NewFeatureStore[F](),
		symbol:        symbol,
		space:         space,
		geoProjection: geoProjection,
		crs:           layerCrs,
	}
}

func (l *FeatureLayer[F]) Store() *FeatureStore[F] { return l.store }

// project maps a feature's native geometry into the view's CRS, per the
// three rules governed by l.space.
func (l *FeatureLayer[F]) project(g Geometry, view mapview.MapView) (Geometry, bool) {
	switch l.space {
	case Geo2d:
		return l.projectPoints(g, func(p geom.Point2[float64]) (geom.Point3[float64], bool) {
			if l.geoProjection == nil {
				return geom.Point3[float64]{X: p.X, Y: p.Y}, true
			}
			out, ok := l.geoProjection.Project(p)
			if !ok {
				return geom.Point3[float64]{}, false
			}
			return geom.Point3[float64]{X: out.X, Y: out.Y}, true
		})
	case Cartesian2d:
		if l.crs == view.Crs() {
			return l.projectPoints(g, func(p geom.Point2[float64]) (geom.Point3[float64], bool) {
				return geom.Point3[float64]{X: p.X, Y: p.Y}, true
			})
		}
		if l.geoProjection == nil {
			return Geometry{}, false
		}
		// unproject(layer) -> geo -> project(view) -> lift-Z. The layer's
		// own CRS->geo step and the view's geo->projected step share one
		// injected GeoProjection; a layer with a genuinely different source
		// CRS injects its own pair.
		return l.projectPoints(g, func(p geom.Point2[float64]) (geom.Point3[float64], bool) {
			geo, ok := l.geoProjection.Unproject(p)
			if !ok {
				return geom.Point3[float64]{}, false
			}
			out, ok := l.geoProjection.Project(geo)
			if !ok {
				return geom.Point3[float64]{}, false
			}
			return geom.Point3[float64]{X: out.X, Y: out.Y}, true
		})
	case Cartesian3d:
		if l.crs != view.Crs() {
			return Geometry{}, false
		}
		return g, true
	default:
		return Geometry{}, false
	}
}

func (l *FeatureLayer[F]) projectPoints(g Geometry, fn func(geom.Point2[float64]) (geom.Point3[float64], bool)) (Geometry, bool) {
	switch g.Kind {
	case GeometryPoint:
		p3, ok := fn(geom.Point2[float64]{X: g.Point.X, Y: g.Point.Y})
		if !ok {
			return Geometry{}, false
		}
		return PointGeometry(p3), true
	case GeometryLine:
		pts := make([]geom.Point2[float64], len(g.Line.Points))
		for i, p := range g.Line.Points {
			p3, ok := fn(p)
			if !ok {
				return Geometry{}, false
			}
			pts[i] = geom.Point2[float64]{X: p3.X, Y: p3.Y}
		}
		return LineGeometry(geom.Contour[float64]{Points: pts, IsClosed: g.Line.IsClosed}), true
	case GeometryPolygon:
		outer := make([]geom.Point2[float64], len(g.Polygon.Outer.Points))
		for i, p := range g.Polygon.Outer.Points {
			p3, ok := fn(p)
			if !ok {
				return Geometry{}, false
			}
			outer[i] = geom.Point2[float64]{X: p3.X, Y: p3.Y}
		}
		holes := make([]geom.Contour[float64], len(g.Polygon.Holes))
		for hi, hole := range g.Polygon.Holes {
			pts := make([]geom.Point2[float64], len(hole.Points))
			for i, p := range hole.Points {
				p3, ok := fn(p)
				if !ok {
					return Geometry{}, false
				}
				pts[i] = geom.Point2[float64]{X: p3.X, Y: p3.Y}
			}
			holes[hi] = geom.Contour[float64]{Points: pts, IsClosed: hole.IsClosed}
		}
		return PolygonGeometry(geom.Polygon[float64]{Outer: geom.Contour[float64]{Points: outer, IsClosed: g.Polygon.Outer.IsClosed}, Holes: holes}), true
	default:
		return Geometry{}, false
	}
}

// resymbolize re-runs projection (if reproject) and the symbol for one
// entry, replacing its bundle.
func (l *FeatureLayer[F]) resymbolize(e *entry[F], view mapview.MapView, reproject bool, cache map[int]Geometry, idx int) {
	g, wasCached := cache[idx]
	if reproject || !wasCached {
		projected, ok := l.project(e.feature.Geometry(), view)
		if !ok {
			e.hasBundle = false
			return
		}
		g = projected
		cache[idx] = g
		e.hasProject = true
	}
	bundle := renderbundle.NewRenderBundle()
	l.symbol.Symbolize(e.feature, g, bundle)
	e.bundle = bundle
	e.hasBundle = true
}

// Render applies pending updates, symbolizes any unsymbolized entries, and
// merges every live feature's bundle into one combined RenderBundle, which
// the compositor packs once and draws.
func (l *FeatureLayer[F]) Render(view mapview.MapView) *renderbundle.RenderBundle {
	l.store.mu.Lock()
	entries := l.store.entries
	l.store.mu.Unlock()
	projectedCache := make(map[int]Geometry)

	pending := l.store.drainPending()
	version := l.store.Version()
	if l.combined != nil && len(pending) == 0 && version == l.renderedVersion {
		return l.combined
	}
	l.renderedVersion = version

	for _, upd := range pending {
		if upd.index < 0 || upd.index >= len(entries) {
			continue
		}
		e := entries[upd.index]
		switch upd.kind {
		case PendingDelete:
			e.bundle = nil
			e.hasBundle = false
		case PendingUpdateStyle:
			if e.deleted {
				continue
			}
			l.resymbolize(e, view, false, projectedCache, upd.index)
		case PendingUpdate:
			if e.deleted {
				continue
			}
			l.resymbolize(e, view, true, projectedCache, upd.index)
		}
	}

	out := renderbundle.NewRenderBundle()
	for i, e := range entries {
		if e.deleted || e.hidden {
			continue
		}
		if !e.hasBundle {
			l.resymbolize(e, view, true, projectedCache, i)
		}
		if e.bundle != nil {
			out.World.Merge(e.bundle.World)
			for _, item := range e.bundle.ScreenItems {
				out.AddScreenItem(item)
			}
		}
	}
	l.combined = out
	return out
}
