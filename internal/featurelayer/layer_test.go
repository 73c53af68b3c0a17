package featurelayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

type testFeature struct {
	pos geom.Point3[float64]
}

func (f testFeature) Geometry() Geometry { return PointGeometry(f.pos) }

func newTestView() mapview.MapView {
	return mapview.NewProjected(geom.NewPoint2(0.0, 0.0), 1).
		WithSize(geom.Size[float64]{Width: 100, Height: 100})
}

// Exactly one Update must be queued per Editor regardless of how many
// times Get is called on it.
func TestFeatureStore_ExactlyOneUpdatePerEditor(t *testing.T) {
	store := NewFeatureStore[testFeature]()
	id := store.Add(testFeature{pos: geom.Point3[float64]{X: 1, Y: 2}})

	editor := store.EditGeometry(id)
	editor.Get()
	editor.Get()
	editor.Get()
	pending := store.drainPending()
	require.Len(t, pending, 1)
	assert.Equal(t, PendingUpdate, pending[0].kind)
	assert.Equal(t, int(id), pending[0].index)
}

func TestFeatureLayer_RenderSymbolizesNewFeatures(t *testing.T) {
	layer := NewFeatureLayer[testFeature](Cartesian3d, PointSymbol[testFeature]{
		Paint: renderbundle.PointPaint{Color: geom.Color{A: 255}, Size: 4},
	}, nil, mapview.CrsEPSG3857)
	_ = layer.Store().Add(testFeature{pos: geom.Point3[float64]{X: 5, Y: 5}})

	view := newTestView()
	bundle := layer.Render(view)

	assert.False(t, bundle.IsEmpty())
}

func TestFeatureLayer_DeleteRemovesFromRender(t *testing.T) {
	layer := NewFeatureLayer[testFeature](Cartesian3d, PointSymbol[testFeature]{}, nil, mapview.CrsEPSG3857)
	id := layer.Store().Add(testFeature{pos: geom.Point3[float64]{X: 1, Y: 1}})

	view := newTestView()
	first := layer.Render(view)
	assert.False(t, first.IsEmpty())

	layer.Store().Delete(id)
	second := layer.Render(view)
	assert.True(t, second.IsEmpty())
}
