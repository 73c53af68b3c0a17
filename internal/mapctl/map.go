package mapctl

import (
	"time"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
)

// Map is the orchestrator: it owns the authoritative MapView and
// LayerCollection, fans a shared Messenger out to every layer so
// asynchronously loaded tiles can wake a redraw, and drives a simple
// position/resolution animation queue for fly-to transitions. It has no
// window or GPU dependency of its own.
type Map struct {
	view   mapview.MapView
	layers *LayerCollection
	msgr   *CoalescingMessenger

	animating bool
	animStart mapview.MapView
	animEnd   mapview.MapView
	animBegan time.Time
	animFor   time.Duration
}

// NewMap builds an orchestrator around an initial view, wiring its shared
// messenger into every layer added afterward via AddLayer.
func NewMap(view mapview.MapView) *Map {
	return &Map{
		view:   view,
		layers: NewLayerCollection(),
		msgr:   NewCoalescingMessenger(),
	}
}

func (m *Map) View() mapview.MapView { return m.view }

// SetView replaces the view outright, canceling any in-progress animation
// (used for direct camera manipulation: pan, zoom-at-point, resize).
func (m *Map) SetView(view mapview.MapView) {
	m.view = view
	m.animating = false
	m.msgr.RequestRedraw()
}

// AddLayer adds layer to the stack and installs this Map's messenger on it,
// so the new layer's background loads trigger redraws like every other.
func (m *Map) AddLayer(layer Layer) int {
	idx := m.layers.Add(layer)
	layer.SetMessenger(m.msgr)
	return idx
}

func (m *Map) Layers() *LayerCollection { return m.layers }
func (m *Map) Messenger() Messenger     { return m.msgr }

// Resize updates the view's viewport size.
func (m *Map) Resize(width, height float64) {
	m.SetView(m.view.WithSize(geom.Size[float64]{Width: width, Height: height}))
}

// Pan translates the view so the map point under `from` tracks to `to`.
func (m *Map) Pan(from, to geom.Point2[float64]) {
	m.SetView(m.view.TranslateByPixels(from, to))
}

// ZoomAtPoint scales resolution by factor around anchorPx, the scroll/pinch
// gesture path.
func (m *Map) ZoomAtPoint(factor float64, anchorPx geom.Point2[float64]) {
	m.SetView(m.view.Zoom(factor, anchorPx))
}

// AnimateTo eases the view toward target over duration, advanced by
// subsequent Update calls. A zero or negative duration jumps immediately.
func (m *Map) AnimateTo(target mapview.MapView, duration time.Duration) {
	if duration <= 0 {
		m.SetView(target)
		return
	}
	m.animating = true
	m.animStart = m.view
	m.animEnd = target
	m.animBegan = time.Now()
	m.animFor = duration
	m.msgr.RequestRedraw()
}

// Update advances any in-progress animation to `at` and reports whether the
// view changed (the render loop's cue to re-render even if TakeDirty alone
// said nothing asynchronous arrived).
func (m *Map) Update(at time.Time) bool {
	if !m.animating {
		return false
	}

	k := float64(at.Sub(m.animBegan)) / float64(m.animFor)
	if k >= 1 {
		m.view = m.animEnd
		m.animating = false
		return true
	}
	if k < 0 {
		k = 0
	}
	m.view = m.animStart.Interpolate(m.animEnd, easeInOut(k))
	return true
}

// easeInOut is the smoothstep curve fly-to transitions follow.
func easeInOut(k float64) float64 {
	return k * k * (3 - 2*k)
}

// IsAnimating reports whether AnimateTo has a transition still in flight.
func (m *Map) IsAnimating() bool { return m.animating }

// TakeDirty reports (and clears) whether any layer requested a redraw since
// the last call, independent of animation state.
func (m *Map) TakeDirty() bool { return m.msgr.TakeDirty() }

// Prepare fans out to every visible layer's Prepare, kicking off whatever
// background loads the current view needs.
func (m *Map) Prepare() {
	m.layers.IterVisible(func(l Layer) { l.Prepare(m.view) })
}
