// Package mapctl implements the map orchestrator: a Map that owns a
// LayerCollection and a MapView, drives the animation queue, and fans
// redraw requests out through a Messenger so tile pipelines never need a
// back-pointer to the Map itself.
package mapctl

import "sync/atomic"

// Messenger is a cheaply cloneable redraw-request handle. Layers hold their
// own Messenger so tile-load callbacks can trigger a repaint without knowing
// about the Map that owns them. RequestRedraw is idempotent; implementations
// must coalesce.
type Messenger interface {
	RequestRedraw()
}

// CoalescingMessenger is the default Messenger: any number of RequestRedraw
// calls between two calls to TakeDirty collapse into one pending redraw.
type CoalescingMessenger struct {
	dirty atomic.Bool
}

func NewCoalescingMessenger() *CoalescingMessenger {
	return &CoalescingMessenger{}
}

func (m *CoalescingMessenger) RequestRedraw() {
	m.dirty.Store(true)
}

// TakeDirty reports whether a redraw was requested since the last call,
// clearing the flag.
func (m *CoalescingMessenger) TakeDirty() bool {
	return m.dirty.Swap(false)
}

// NullMessenger discards redraw requests; useful for layers under
// construction before they are attached to a Map.
type NullMessenger struct{}

func (NullMessenger) RequestRedraw() {}
