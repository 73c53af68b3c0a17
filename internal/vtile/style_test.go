package vtile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

func strVal(s string) MvtValue { return MvtValue{kind: mvtValueString, s: s} }

func TestGetStyleRuleMatchesLayerAndProperties(t *testing.T) {
	style := VectorTileStyle{
		Rules: []StyleRule{
			{
				LayerName:  "water",
				HasLayer:   true,
				Properties: map[string]string{"class": "ocean"},
				Symbol:     Symbol{HasPolygon: true, Polygon: PolygonSymbol{FillColor: geom.Color{B: 255, A: 255}}},
			},
			{Symbol: Symbol{HasPolygon: true, Polygon: PolygonSymbol{FillColor: geom.Color{R: 128, A: 255}}}},
		},
	}

	feature := MvtFeature{Properties: map[string]MvtValue{"class": strVal("ocean")}}
	rule, ok := style.GetStyleRule("water", feature)
	require.True(t, ok)
	assert.Equal(t, uint8(255), rule.Symbol.Polygon.FillColor.B)

	feature2 := MvtFeature{Properties: map[string]MvtValue{"class": strVal("lake")}}
	rule2, ok := style.GetStyleRule("water", feature2)
	require.True(t, ok, "falls through to the catch-all rule")
	assert.Equal(t, uint8(128), rule2.Symbol.Polygon.FillColor.R)
}

func TestGetStyleRuleNoMatch(t *testing.T) {
	style := VectorTileStyle{Rules: []StyleRule{{LayerName: "water", HasLayer: true}}}
	_, ok := style.GetStyleRule("transportation", MvtFeature{Properties: map[string]MvtValue{}})
	assert.False(t, ok)
}

func TestFormatLabelSubstitutesProperties(t *testing.T) {
	feature := MvtFeature{Properties: map[string]MvtValue{"name": strVal("Springfield")}}
	text := formatLabel(LabelSymbol{Pattern: "{name}"}, feature)
	assert.Equal(t, "Springfield", text)
}

func TestFormatLabelMissingPropertyBecomesEmpty(t *testing.T) {
	feature := MvtFeature{Properties: map[string]MvtValue{}}
	text := formatLabel(LabelSymbol{Pattern: "[{name}]"}, feature)
	assert.Equal(t, "[]", text)
}
