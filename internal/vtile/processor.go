package vtile

import (
	"math"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// VtProcessor turns a decoded MvtTile into render primitives. Shaper is
// the only state it carries: a VtProcessor with a nil Shaper degrades
// label features to a plain dot, while one with a Shaper emits real
// ScreenRenderSet labels with substituted properties ({name}-style
// patterns resolved by formatLabel).
type VtProcessor struct {
	Shaper renderbundle.TextShaper
}

// Prepare renders every feature of mvtTile into bundle according to style,
// clipping to the tile's map-space bounding box. Layers are drawn
// back-to-front (tile layer order reversed), so earlier-listed MVT layers
// paint over later ones.
func (p VtProcessor) Prepare(
	mvtTile *MvtTile,
	bundle *renderbundle.RenderBundle,
	index tileschema.TileIndex,
	style VectorTileStyle,
	schema *tileschema.TileSchema,
) error {
	bbox, ok := schema.TileBbox(index)
	if !ok {
		return galerr.New(galerr.KindTileProcessingRendering, "cannot get tile bbox")
	}
	lodResolution, ok := schema.LodResolution(index.Z)
	if !ok {
		return galerr.New(galerr.KindTileProcessingRendering, "cannot get lod resolution")
	}
	tileResolution := lodResolution * float64(schema.TileWidth)

	bundle.World.ClipAreaFrom(geom.NewPolygon([]geom.Point2[float64]{
		{X: bbox.XMin, Y: bbox.YMin},
		{X: bbox.XMin, Y: bbox.YMax},
		{X: bbox.XMax, Y: bbox.YMax},
		{X: bbox.XMax, Y: bbox.YMin},
	}, nil))

	for i := len(mvtTile.Layers) - 1; i >= 0; i-- {
		layer := mvtTile.Layers[i]
		for _, feature := range layer.Features {
			switch {
			case feature.Geometry.Points != nil:
				p.prepareProcessorPoints(bundle, style, layer.Name, feature, bbox, tileResolution, lodResolution)
			case feature.Geometry.Contours != nil:
				if paint, ok := lineSymbolFor(style, layer.Name, feature); ok {
					for _, contour := range feature.Geometry.Contours {
						bundle.World.AddLine(transformContour(contour, bbox, tileResolution), paint.toPaint(), lodResolution)
					}
				}
			case feature.Geometry.Polygons != nil:
				if paint, ok := polygonSymbolFor(style, layer.Name, feature); ok {
					for _, polygon := range feature.Geometry.Polygons {
						bundle.World.AddPolygon(transformPolygon(polygon, bbox, tileResolution), paint.toPaint())
					}
				}
			}
		}
	}

	return nil
}

func (p VtProcessor) prepareProcessorPoints(
	bundle *renderbundle.RenderBundle,
	style VectorTileStyle,
	layerName string,
	feature MvtFeature,
	bbox geom.Rect[float64],
	tileResolution, lodResolution float64,
) {
	sym, ok := resolvePointSymbol(style, layerName, feature)
	if !ok {
		return
	}

	for _, pt := range feature.Geometry.Points {
		position := transformPoint(pt, bbox, tileResolution)
		if !bbox.Contains(geom.Point2[float64]{X: position.X, Y: position.Y}) {
			// Some vector tiles place labels' anchor points outside the
			// tile bounds so the label can start sliding in before its
			// anchor crosses into view; those points are skipped here.
			continue
		}
		if sym.HasLabel {
			p.emitLabel(bundle, sym.Label, feature, position)
			continue
		}
		bundle.World.AddPoint(position, sym.Point)
	}
}

// emitLabel formats the label's {propname} pattern against feature and
// hands the result to Shaper, appending a real ScreenRenderSet with
// substituted label properties. With no Shaper configured (or on a
// shaping error) it falls back to a plain dot, the same degraded result
// a caller without a TextShaper would see.
func (p VtProcessor) emitLabel(bundle *renderbundle.RenderBundle, label LabelSymbol, feature MvtFeature, position geom.Point3[float64]) {
	if p.Shaper != nil {
		text := formatLabel(label, feature)
		if text != "" {
			if shaped, err := p.Shaper.Shape(text, 12); err == nil {
				if set, ok := renderbundle.NewFromLabel(position, shaped, geom.Vector2[float64]{}); ok {
					bundle.AddScreenItem(set)
					return
				}
			}
		}
	}
	bundle.World.AddPoint(position, renderbundle.PointPaint{Color: geom.Color{A: 255}, Size: 4})
}

// resolvedPointSymbol is either a plain point paint or a label symbol
// still needing text substitution and shaping.
type resolvedPointSymbol struct {
	HasLabel bool
	Label    LabelSymbol
	Point    renderbundle.PointPaint
}

func resolvePointSymbol(style VectorTileStyle, layerName string, feature MvtFeature) (resolvedPointSymbol, bool) {
	if rule, ok := style.GetStyleRule(layerName, feature); ok {
		if rule.Symbol.HasPoint {
			return resolvedPointSymbol{Point: rule.Symbol.Point.toPaint()}, true
		}
		if rule.Symbol.HasLabel {
			return resolvedPointSymbol{HasLabel: true, Label: rule.Symbol.Label}, true
		}
	}
	if style.DefaultSymbol.Point != nil {
		return resolvedPointSymbol{Point: style.DefaultSymbol.Point.toPaint()}, true
	}
	if style.DefaultSymbol.Label != nil {
		return resolvedPointSymbol{HasLabel: true, Label: *style.DefaultSymbol.Label}, true
	}
	return resolvedPointSymbol{}, false
}

func lineSymbolFor(style VectorTileStyle, layerName string, feature MvtFeature) (LineSymbol, bool) {
	if rule, ok := style.GetStyleRule(layerName, feature); ok && rule.Symbol.HasLine {
		return rule.Symbol.Line, true
	}
	if style.DefaultSymbol.Line != nil {
		return *style.DefaultSymbol.Line, true
	}
	return LineSymbol{}, false
}

func polygonSymbolFor(style VectorTileStyle, layerName string, feature MvtFeature) (PolygonSymbol, bool) {
	if rule, ok := style.GetStyleRule(layerName, feature); ok && rule.Symbol.HasPolygon {
		return rule.Symbol.Polygon, true
	}
	if style.DefaultSymbol.Polygon != nil {
		return *style.DefaultSymbol.Polygon, true
	}
	return PolygonSymbol{}, false
}

func transformPoint(p geom.Point2[float64], bbox geom.Rect[float64], tileResolution float64) geom.Point3[float64] {
	return geom.Point3[float64]{
		X: bbox.XMin + p.X*tileResolution,
		Y: bbox.YMax - p.Y*tileResolution,
		Z: 0,
	}
}

func transformContour(c geom.Contour[float64], bbox geom.Rect[float64], tileResolution float64) geom.Contour[float64] {
	pts := make([]geom.Point2[float64], len(c.Points))
	for i, p := range c.Points {
		t := transformPoint(p, bbox, tileResolution)
		pts[i] = geom.Point2[float64]{X: t.X, Y: t.Y}
	}
	return geom.Contour[float64]{Points: pts, IsClosed: c.IsClosed}
}

func transformPolygon(p geom.Polygon[float64], bbox geom.Rect[float64], tileResolution float64) geom.Polygon[float64] {
	out := geom.Polygon[float64]{Outer: transformContour(p.Outer, bbox, tileResolution)}
	for _, hole := range p.Holes {
		out.Holes = append(out.Holes, transformContour(hole, bbox, tileResolution))
	}
	return out
}

// FeatureAt returns the topmost feature (and its owning layer name) whose
// geometry covers mapPoint, scanning tile layers front-to-back — the
// reverse of Prepare's paint order, since the last-painted layer is
// visually on top. Used to resolve click/tap hit-testing into the feature
// a user actually touched.
func (VtProcessor) FeatureAt(
	mvtTile *MvtTile,
	index tileschema.TileIndex,
	schema *tileschema.TileSchema,
	mapPoint geom.Point2[float64],
	tolerance float64,
) (layerName string, feature MvtFeature, ok bool) {
	bbox, ok2 := schema.TileBbox(index)
	if !ok2 {
		return "", MvtFeature{}, false
	}
	lodResolution, ok2 := schema.LodResolution(index.Z)
	if !ok2 {
		return "", MvtFeature{}, false
	}
	tileResolution := lodResolution * float64(schema.TileWidth)

	for _, layer := range mvtTile.Layers {
		for _, f := range layer.Features {
			switch {
			case f.Geometry.Points != nil:
				for _, p := range f.Geometry.Points {
					pos := transformPoint(p, bbox, tileResolution)
					if distance(pos.X, pos.Y, mapPoint.X, mapPoint.Y) <= tolerance {
						return layer.Name, f, true
					}
				}
			case f.Geometry.Contours != nil:
				for _, c := range f.Geometry.Contours {
					if contourWithinDistance(transformContour(c, bbox, tileResolution), mapPoint, tolerance) {
						return layer.Name, f, true
					}
				}
			case f.Geometry.Polygons != nil:
				for _, poly := range f.Geometry.Polygons {
					if polygonContains(transformPolygon(poly, bbox, tileResolution), mapPoint) {
						return layer.Name, f, true
					}
				}
			}
		}
	}
	return "", MvtFeature{}, false
}

func distance(ax, ay, bx, by float64) float64 {
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}

func contourWithinDistance(c geom.Contour[float64], p geom.Point2[float64], tolerance float64) bool {
	pts := c.IterPointsClosing()
	for i := 0; i < len(pts)-1; i++ {
		if pointToSegmentDistance(p, pts[i], pts[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

func pointToSegmentDistance(p, a, b geom.Point2[float64]) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return distance(p.X, p.Y, a.X, a.Y)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	projX, projY := a.X+t*abx, a.Y+t*aby
	return distance(p.X, p.Y, projX, projY)
}

// polygonContains implements a standard ray-casting point-in-polygon test
// against the outer ring, subtracting any hole the point also falls in.
func polygonContains(p geom.Polygon[float64], pt geom.Point2[float64]) bool {
	if !ringContains(p.Outer, pt) {
		return false
	}
	for _, hole := range p.Holes {
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

func ringContains(c geom.Contour[float64], pt geom.Point2[float64]) bool {
	pts := c.Points
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xIntersect := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}
