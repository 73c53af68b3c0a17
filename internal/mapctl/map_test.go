package mapctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

type stubLayer struct {
	msgr     Messenger
	prepared int
	rendered int
}

func (s *stubLayer) Render(mapview.MapView) *renderbundle.RenderBundle {
	s.rendered++
	return nil
}
func (s *stubLayer) Prepare(mapview.MapView) { s.prepared++ }
func (s *stubLayer) SetMessenger(m Messenger) {
	s.msgr = m
}

func testMap() *Map {
	view := mapview.NewProjected(geom.NewPoint2(0.0, 0.0), 100).
		WithSize(geom.Size[float64]{Width: 800, Height: 600})
	return NewMap(view)
}

func TestAddLayerInstallsMessenger(t *testing.T) {
	m := testMap()
	layer := &stubLayer{}
	m.AddLayer(layer)

	require.NotNil(t, layer.msgr)
	assert.False(t, m.TakeDirty())
	layer.msgr.RequestRedraw()
	assert.True(t, m.TakeDirty())
	assert.False(t, m.TakeDirty(), "TakeDirty must clear the flag")
}

func TestCoalescingMessengerCollapsesRequests(t *testing.T) {
	msgr := NewCoalescingMessenger()
	for i := 0; i < 10; i++ {
		msgr.RequestRedraw()
	}
	assert.True(t, msgr.TakeDirty())
	assert.False(t, msgr.TakeDirty())
}

func TestAnimateToAdvancesAndFinishes(t *testing.T) {
	m := testMap()
	target := m.View().WithPosition(geom.NewPoint2(1000.0, 0.0)).WithResolution(50)

	m.AnimateTo(target, 100*time.Millisecond)
	require.True(t, m.IsAnimating())

	changed := m.Update(time.Now().Add(50 * time.Millisecond))
	assert.True(t, changed)
	pos, ok := m.View().ProjectedPosition()
	require.True(t, ok)
	assert.Greater(t, pos.X, 0.0)
	assert.Less(t, pos.X, 1000.0)

	m.Update(time.Now().Add(time.Second))
	assert.False(t, m.IsAnimating())
	pos, _ = m.View().ProjectedPosition()
	assert.Equal(t, 1000.0, pos.X)
	assert.Equal(t, 50.0, m.View().Resolution())
}

func TestAnimateToZeroDurationJumps(t *testing.T) {
	m := testMap()
	target := m.View().WithResolution(25)
	m.AnimateTo(target, 0)
	assert.False(t, m.IsAnimating())
	assert.Equal(t, 25.0, m.View().Resolution())
}

func TestSetViewCancelsAnimation(t *testing.T) {
	m := testMap()
	m.AnimateTo(m.View().WithResolution(10), time.Minute)
	require.True(t, m.IsAnimating())
	m.SetView(m.View().WithResolution(200))
	assert.False(t, m.IsAnimating())
}

func TestLayerCollectionVisibility(t *testing.T) {
	m := testMap()
	a, b := &stubLayer{}, &stubLayer{}
	ia := m.AddLayer(a)
	m.AddLayer(b)

	m.Prepare()
	assert.Equal(t, 1, a.prepared)
	assert.Equal(t, 1, b.prepared)

	m.Layers().SetVisible(ia, false)
	m.Prepare()
	assert.Equal(t, 1, a.prepared, "hidden layer must be skipped")
	assert.Equal(t, 2, b.prepared)

	var order []Layer
	m.Layers().IterVisible(func(l Layer) { order = append(order, l) })
	require.Len(t, order, 1)
	assert.Same(t, b, order[0].(*stubLayer))
}

func TestLayerCollectionRemove(t *testing.T) {
	c := NewLayerCollection()
	a, b := &stubLayer{}, &stubLayer{}
	c.Add(a)
	c.Add(b)
	c.Remove(0)
	assert.Equal(t, 1, c.Len())
	assert.Same(t, b, c.At(0).(*stubLayer))
}
