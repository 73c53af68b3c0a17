package vtile

import (
	"strings"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// VectorTileStyle describes how to render a tile's features: an ordered
// list of rules tried in sequence, falling back to per-geometry-kind
// defaults when nothing matches.
type VectorTileStyle struct {
	Rules         []StyleRule
	DefaultSymbol DefaultSymbol
	Background    geom.Color
}

// StyleRule is an optional layer-name filter plus exact-match property
// filters, gating a single Symbol.
type StyleRule struct {
	LayerName  string
	HasLayer   bool
	Properties map[string]string
	Symbol     Symbol
}

// Symbol is the rendering treatment a rule or default applies to a
// feature. At most one of the Has* flags is set.
type Symbol struct {
	HasPoint   bool
	Point      PointSymbol
	HasLine    bool
	Line       LineSymbol
	HasPolygon bool
	Polygon    PolygonSymbol
	HasLabel   bool
	Label      LabelSymbol
}

type PointSymbol struct {
	Size  float64
	Color geom.Color
}

type LineSymbol struct {
	Width       float64
	StrokeColor geom.Color
}

type PolygonSymbol struct {
	FillColor geom.Color
}

// LabelSymbol places a text label at a point feature; {propname} in
// Pattern is substituted with the feature's property value.
type LabelSymbol struct {
	Pattern string
}

type DefaultSymbol struct {
	Point   *PointSymbol
	Line    *LineSymbol
	Polygon *PolygonSymbol
	Label   *LabelSymbol
}

func (l LineSymbol) toPaint() renderbundle.LinePaint {
	return renderbundle.LinePaint{Color: l.StrokeColor, Width: l.Width, LineCap: renderbundle.LineCapButt}
}

func (p PolygonSymbol) toPaint() renderbundle.PolygonPaint {
	return renderbundle.PolygonPaint{Color: p.FillColor}
}

func (p PointSymbol) toPaint() renderbundle.PointPaint {
	return renderbundle.PointPaint{Color: p.Color, Size: p.Size}
}

// GetStyleRule returns the first rule matching layerName and feature. A
// rule with no layer name matches any layer, and an empty property map
// matches any feature; all listed properties must equal the feature's
// stringified value for the same key.
func (s VectorTileStyle) GetStyleRule(layerName string, feature MvtFeature) (StyleRule, bool) {
	for _, rule := range s.Rules {
		if rule.HasLayer && rule.LayerName != layerName {
			continue
		}
		if !ruleMatchesProperties(rule, feature) {
			continue
		}
		return rule, true
	}
	return StyleRule{}, false
}

func ruleMatchesProperties(rule StyleRule, feature MvtFeature) bool {
	for key, want := range rule.Properties {
		got, ok := feature.Properties[key]
		if !ok || got.String() != want {
			return false
		}
	}
	return true
}

func formatLabel(label LabelSymbol, feature MvtFeature) string {
	text := label.Pattern
	for {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			break
		}
		end += start
		name := text[start+1 : end]
		var value string
		if v, ok := feature.Properties[name]; ok {
			value = v.String()
		}
		text = text[:start] + value + text[end+1:]
	}
	return text
}
