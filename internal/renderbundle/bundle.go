package renderbundle

// RenderBundle is one layer's full contribution to a frame: map-space
// geometry plus any screen-space labels/markers anchored within it.
type RenderBundle struct {
	World       *WorldRenderSet
	ScreenItems []*ScreenRenderSet
}

func NewRenderBundle() *RenderBundle {
	return &RenderBundle{World: NewWorldRenderSet()}
}

// NewRenderBundleWithDpi creates a bundle whose pixel dimensions (line
// widths, marker sizes) are scaled for a HiDPI display.
func NewRenderBundleWithDpi(scale float64) *RenderBundle {
	b := NewRenderBundle()
	b.World.SetDpiScale(scale)
	return b
}

func (b *RenderBundle) AddScreenItem(item *ScreenRenderSet) {
	if item == nil {
		return
	}
	b.ScreenItems = append(b.ScreenItems, item)
}

func (b *RenderBundle) IsEmpty() bool {
	return b.World.IsEmpty() && len(b.ScreenItems) == 0
}

func (b *RenderBundle) ApproxBufferSize() int {
	return b.World.ApproxBufferSize()
}

// PackedBundle is the GPU-ready form a RenderBundle is turned into by
// internal/gpu: uploaded buffers plus the bind groups needed to draw them.
// Kept as an opaque marker here; the concrete fields live with the GPU
// device that owns the buffers.
type PackedBundle interface {
	ApproxBufferSize() int
}
