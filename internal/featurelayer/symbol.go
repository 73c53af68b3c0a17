package featurelayer

import (
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// GeometryKind tags which field of Geometry is populated.
type GeometryKind int

const (
	GeometryPoint GeometryKind = iota
	GeometryLine
	GeometryPolygon
)

// Geometry is the already-projected shape a Symbol renders, carried as a
// small tagged union rather than an interface: a layer only ever needs
// point/line/polygon, and a concrete struct avoids a type assertion on
// every render for the common single-primitive-kind symbols.
type Geometry struct {
	Kind    GeometryKind
	Point   geom.Point3[float64]
	Line    geom.Contour[float64]
	Polygon geom.Polygon[float64]
}

func PointGeometry(p geom.Point3[float64]) Geometry {
	return Geometry{Kind: GeometryPoint, Point: p}
}

func LineGeometry(c geom.Contour[float64]) Geometry {
	return Geometry{Kind: GeometryLine, Line: c}
}

func PolygonGeometry(p geom.Polygon[float64]) Geometry {
	return Geometry{Kind: GeometryPolygon, Polygon: p}
}

// Feature is the constraint a FeatureLayer's type parameter must satisfy:
// it must expose its native-CRS geometry so the layer can project it.
type Feature interface {
	Geometry() Geometry
}

// Symbol declares how a feature's projected geometry becomes render
// primitives. Implementations for
// polygons, lines, dots, and labels are provided below; Compose lets several
// be applied to the same feature.
type Symbol[F Feature] interface {
	// Symbolize renders feature's already-projected geometry into out. Called
	// both for first render and for re-symbolizing after Update/UpdateStyle.
	Symbolize(feature F, projected Geometry, out *renderbundle.RenderBundle)
}

// SymbolFunc adapts a function to Symbol.
type SymbolFunc[F Feature] func(F, Geometry, *renderbundle.RenderBundle)

func (f SymbolFunc[F]) Symbolize(feature F, g Geometry, out *renderbundle.RenderBundle) {
	f(feature, g, out)
}

// PolygonSymbol fills polygon geometry with a fixed color.
type PolygonSymbol[F Feature] struct {
	Color geom.Color
}

func (s PolygonSymbol[F]) Symbolize(_ F, g Geometry, out *renderbundle.RenderBundle) {
	if g.Kind != GeometryPolygon {
		return
	}
	out.World.AddPolygon(g.Polygon, renderbundle.PolygonPaint{Color: s.Color})
}

// LineSymbol strokes line geometry.
type LineSymbol[F Feature] struct {
	Paint      renderbundle.LinePaint
	Resolution float64
}

func (s LineSymbol[F]) Symbolize(_ F, g Geometry, out *renderbundle.RenderBundle) {
	if g.Kind != GeometryLine {
		return
	}
	out.World.AddLine(g.Line, s.Paint, s.Resolution)
}

// PointSymbol draws a point marker; the paint's shape selects a dot, a
// circle, a square, or a sector.
type PointSymbol[F Feature] struct {
	Paint renderbundle.PointPaint
}

func (s PointSymbol[F]) Symbolize(_ F, g Geometry, out *renderbundle.RenderBundle) {
	if g.Kind != GeometryPoint {
		return
	}
	out.World.AddPoint(g.Point, s.Paint)
}

// LabelSymbol emits a ScreenRenderSet built from a TextShaper. Text comes
// from a per-feature callback since labels are usually a feature
// attribute, not a style constant.
type LabelSymbol[F Feature] struct {
	Shaper TextOf[F]
	Shape  renderbundle.TextShaper
	Offset geom.Vector2[float64]
}

// TextOf extracts the label text for a feature.
type TextOf[F Feature] func(F) string

func (s LabelSymbol[F]) Symbolize(feature F, g Geometry, out *renderbundle.RenderBundle) {
	if g.Kind != GeometryPoint || s.Shaper == nil || s.Shape == nil {
		return
	}
	text := s.Shaper(feature)
	if text == "" {
		return
	}
	shaped, err := s.Shape.Shape(text, 12)
	if err != nil {
		return
	}
	set, ok := renderbundle.NewFromLabel(g.Point, shaped, s.Offset)
	if !ok {
		return
	}
	set.HideOnOverlay = true
	out.AddScreenItem(set)
}

// Compose applies several symbols to the same feature in order, letting
// e.g. a polygon fill and its outline be declared separately.
type Compose[F Feature] []Symbol[F]

func (c Compose[F]) Symbolize(feature F, g Geometry, out *renderbundle.RenderBundle) {
	for _, s := range c {
		s.Symbolize(feature, g, out)
	}
}
