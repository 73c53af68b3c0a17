package mapctl

import (
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// Layer is the capability set every layer kind (raster tile, vector tile,
// feature) implements. Optional capabilities (TileSchemaProvider,
// Attributor) are discovered with a type assertion.
type Layer interface {
	// Render produces this layer's contribution to the current frame, or
	// nil if it has nothing to draw (e.g. a tile layer with no loaded
	// tiles yet).
	Render(view mapview.MapView) *renderbundle.RenderBundle
	// Prepare enumerates what the layer will need for view and kicks off
	// any asynchronous loads, without blocking for them to finish.
	Prepare(view mapview.MapView)
	// SetMessenger installs the redraw-request handle the layer uses to
	// wake the map when asynchronously loaded data arrives.
	SetMessenger(m Messenger)
}

// TileSchemaProvider is an optional Layer capability exposed by raster and
// vector tile layers so callers (e.g. an attribution control) can read the
// schema a layer renders against.
type TileSchemaProvider interface {
	TileSchema() *tileschema.TileSchema
}

// Attributor is an optional Layer capability for layers carrying a
// copyright/attribution string.
type Attributor interface {
	Attribution() string
}

type entry struct {
	layer   Layer
	visible bool
}

// LayerCollection holds the map's layer stack in insertion (bottom-to-top
// draw) order, exposing vector-like operations plus visibility toggles.
type LayerCollection struct {
	entries []*entry
}

func NewLayerCollection() *LayerCollection {
	return &LayerCollection{}
}

// Add appends layer to the top of the stack, visible by default, and
// returns its index for later visibility toggling / removal.
func (c *LayerCollection) Add(layer Layer) int {
	c.entries = append(c.entries, &entry{layer: layer, visible: true})
	return len(c.entries) - 1
}

func (c *LayerCollection) Len() int { return len(c.entries) }

func (c *LayerCollection) At(i int) Layer {
	if i < 0 || i >= len(c.entries) {
		return nil
	}
	return c.entries[i].layer
}

func (c *LayerCollection) SetVisible(i int, visible bool) {
	if i < 0 || i >= len(c.entries) {
		return
	}
	c.entries[i].visible = visible
}

func (c *LayerCollection) IsVisible(i int) bool {
	if i < 0 || i >= len(c.entries) {
		return false
	}
	return c.entries[i].visible
}

func (c *LayerCollection) Remove(i int) {
	if i < 0 || i >= len(c.entries) {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

// IterVisible calls fn for every visible layer in insertion (bottom-to-top)
// order, the order the frame compositor draws in.
func (c *LayerCollection) IterVisible(fn func(Layer)) {
	for _, e := range c.entries {
		if e.visible {
			fn(e.layer)
		}
	}
}

// SetMessenger installs m on every layer currently in the collection.
func (c *LayerCollection) SetMessenger(m Messenger) {
	for _, e := range c.entries {
		e.layer.SetMessenger(m)
	}
}
