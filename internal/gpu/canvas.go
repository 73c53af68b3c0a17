package gpu

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/horizon"
	"github.com/miguelemosreverte/galileo/internal/mapctl"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// Canvas is the compositor. It owns the device-side resources that outlive
// any single frame (MSAA color + depth/stencil textures, pipelines, the view
// uniform buffer and bind group, the per-image texture cache) and runs the
// full per-frame procedure in Render.
type Canvas struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	pipelines *pipelines

	msaaColor        *wgpu.Texture
	msaaColorView    *wgpu.TextureView
	depthStencil     *wgpu.Texture
	depthStencilView *wgpu.TextureView
	colorFormat      wgpu.TextureFormat
	width, height    uint32

	background geom.Color

	viewUniformBuf *wgpu.Buffer
	viewBindGroup  *wgpu.BindGroup

	horizonCfg       horizon.Config
	horizonEnabled   bool
	horizonVertexBuf *wgpu.Buffer
	horizonIndexBuf  *wgpu.Buffer
	horizonIndexN    uint32
	horizonUniform   *wgpu.Buffer
	horizonBindGroup *wgpu.BindGroup

	imageCache map[*geom.DecodedImage]gpuImage
	imageRefs  map[*geom.DecodedImage]int

	deconflicter *Deconflicter

	// previousBundles lets Render skip re-uploading a layer's geometry when
	// it hasn't changed since last frame, keyed by the RenderBundle pointer
	// the layer returned.
	previousBundles map[*renderbundle.RenderBundle]*PackedBundle

	unitQuadBuf *wgpu.Buffer
}

// NewCanvas creates a compositor for a target of the given initial size and
// color format. The caller owns device/queue.
func NewCanvas(device *wgpu.Device, queue *wgpu.Queue, colorFormat wgpu.TextureFormat, width, height uint32) (*Canvas, error) {
	ps, err := buildPipelines(device, colorFormat)
	if err != nil {
		return nil, fmt.Errorf("gpu: building pipelines: %w", err)
	}

	viewBuf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "view_uniform",
		Contents: wgpu.ToBytes([]viewUniformData{{}}),
		Usage:    wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: view uniform buffer: %w", err)
	}

	viewBindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "view_bind_group",
		Layout: ps.viewLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: viewBuf, Size: uint64(unsafe.Sizeof(viewUniformData{}))},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: view bind group: %w", err)
	}

	c := &Canvas{
		device:          device,
		queue:           queue,
		pipelines:       ps,
		colorFormat:     colorFormat,
		viewUniformBuf:  viewBuf,
		viewBindGroup:   viewBindGroup,
		imageCache:      make(map[*geom.DecodedImage]gpuImage),
		imageRefs:       make(map[*geom.DecodedImage]int),
		deconflicter:    NewDeconflicter(),
		previousBundles: make(map[*renderbundle.RenderBundle]*PackedBundle),
	}
	if err := c.Resize(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// SetBackground sets the clear color for subsequent frames.
func (c *Canvas) SetBackground(color geom.Color) { c.background = color }

// EnableHorizon uploads the atmosphere ring mesh once; Render draws it
// behind everything else whenever the view is tilted.
func (c *Canvas) EnableHorizon(cfg horizon.Config) error {
	mesh := horizon.GenerateMesh(cfg)

	vbuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "horizon_vertices",
		Contents: wgpu.ToBytes(mesh.Vertices),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return err
	}
	ibuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "horizon_indices",
		Contents: wgpu.ToBytes(mesh.Indices),
		Usage:    wgpu.BufferUsage_Index,
	})
	if err != nil {
		vbuf.Release()
		return err
	}
	ubuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "horizon_uniform",
		Contents: wgpu.ToBytes([]horizonUniformData{{}}),
		Usage:    wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		vbuf.Release()
		ibuf.Release()
		return err
	}
	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "horizon_bind_group",
		Layout: c.pipelines.horizonLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: ubuf, Size: uint64(unsafe.Sizeof(horizonUniformData{}))},
		},
	})
	if err != nil {
		vbuf.Release()
		ibuf.Release()
		ubuf.Release()
		return err
	}

	c.horizonCfg = cfg
	c.horizonVertexBuf = vbuf
	c.horizonIndexBuf = ibuf
	c.horizonIndexN = uint32(len(mesh.Indices))
	c.horizonUniform = ubuf
	c.horizonBindGroup = bindGroup
	c.horizonEnabled = true
	return nil
}

// Resize recreates the MSAA color and depth/stencil attachments for a new
// target size.
func (c *Canvas) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	c.releaseAttachments()
	c.width, c.height = width, height

	var err error
	c.msaaColor, err = c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "msaa_color",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   msaaSampleCount,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        c.colorFormat,
		Usage:         wgpu.TextureUsage_RenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("gpu: msaa color texture: %w", err)
	}
	c.msaaColorView, err = c.msaaColor.CreateView(&wgpu.TextureViewDescriptor{
		Format: c.colorFormat, Dimension: wgpu.TextureViewDimension_2D, MipLevelCount: 1, ArrayLayerCount: 1,
	})
	if err != nil {
		return fmt.Errorf("gpu: msaa color view: %w", err)
	}

	c.depthStencil, err = c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "depth_stencil",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   msaaSampleCount,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        depthStencilFormat,
		Usage:         wgpu.TextureUsage_RenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("gpu: depth/stencil texture: %w", err)
	}
	c.depthStencilView, err = c.depthStencil.CreateView(&wgpu.TextureViewDescriptor{
		Format: depthStencilFormat, Dimension: wgpu.TextureViewDimension_2D, MipLevelCount: 1, ArrayLayerCount: 1,
	})
	if err != nil {
		return fmt.Errorf("gpu: depth/stencil view: %w", err)
	}

	return nil
}

func (c *Canvas) releaseAttachments() {
	if c.msaaColorView != nil {
		c.msaaColorView.Release()
	}
	if c.msaaColor != nil {
		c.msaaColor.Release()
	}
	if c.depthStencilView != nil {
		c.depthStencilView.Release()
	}
	if c.depthStencil != nil {
		c.depthStencil.Release()
	}
}

func (c *Canvas) writeViewUniform(view mapview.MapView) {
	uniform := viewUniformData{
		InvScreenSize: [2]float32{float32(1 / view.Size().Width), float32(1 / view.Size().Height)},
		Resolution:    float32(view.Resolution()),
	}
	if m, ok := view.MapToSceneTransform(); ok {
		for i, v := range m {
			uniform.ViewProj[i] = float32(v)
		}
	}
	rot := mapview.RotateX(-view.RotationX()).Mul(mapview.RotateZ(view.RotationZ()))
	for i, v := range rot {
		uniform.ViewRotation[i] = float32(v)
	}
	c.queue.WriteBuffer(c.viewUniformBuf, 0, wgpu.ToBytes([]viewUniformData{uniform}))
}

// Render runs one full frame: clear, draw the horizon ring if the view is
// tilted, draw every visible layer's world geometry (stencil-clipped where
// the layer supplies a clip area), deconflict and draw the accumulated
// screen-set items, then submit. Returns needsAnimation=true if the caller
// should schedule another frame immediately (a fade is still in progress).
func (c *Canvas) Render(target RenderTarget, view mapview.MapView, layers *mapctl.LayerCollection, now time.Time) (needsAnimation bool, err error) {
	tw, th := target.Size()
	if tw != c.width || th != c.height {
		if err := c.Resize(tw, th); err != nil {
			return false, err
		}
	}

	c.writeViewUniform(view)

	textureView, present, err := target.CurrentView()
	if err != nil {
		return false, fmt.Errorf("gpu: acquiring target view: %w", err)
	}
	defer present()

	encoder, err := c.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame_encoder"})
	if err != nil {
		return false, err
	}
	defer encoder.Release()

	var screenItems []*renderbundle.ScreenRenderSet
	liveBundles := make(map[*renderbundle.RenderBundle]*PackedBundle)

	bg := c.background
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "world_pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:          c.msaaColorView,
			ResolveTarget: textureView,
			LoadOp:        wgpu.LoadOp_Clear,
			StoreOp:       wgpu.StoreOp_Store,
			ClearValue: wgpu.Color{
				R: float64(bg.R) / 255, G: float64(bg.G) / 255,
				B: float64(bg.B) / 255, A: float64(bg.A) / 255,
			},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:              c.depthStencilView,
			DepthLoadOp:       wgpu.LoadOp_Clear,
			DepthStoreOp:      wgpu.StoreOp_Discard,
			DepthClearValue:   1,
			StencilLoadOp:     wgpu.LoadOp_Clear,
			StencilStoreOp:    wgpu.StoreOp_Discard,
			StencilClearValue: 0,
		},
	})

	c.drawHorizon(pass, view)

	layers.IterVisible(func(layer mapctl.Layer) {
		bundle := layer.Render(view)
		if bundle == nil || bundle.IsEmpty() {
			return
		}

		packed, ok := c.previousBundles[bundle]
		if !ok {
			var packErr error
			packed, packErr = c.Pack(bundle)
			if packErr != nil {
				return
			}
		}
		liveBundles[bundle] = packed

		c.drawWorldBundle(pass, packed)
		screenItems = append(screenItems, bundle.ScreenItems...)
	})

	pass.End()
	c.recycleBundles(liveBundles)

	placements, animating := c.deconflicter.Resolve(screenItems, c.projectScreenAnchor(view), now)
	c.deconflicter.Forget(screenItems)
	needsAnimation = animating

	if len(placements) > 0 {
		if err := c.drawScreenPass(encoder, textureView, placements); err != nil {
			return needsAnimation, err
		}
	}

	cmdBuffer, err := encoder.Finish(&wgpu.CommandBufferDescriptor{})
	if err != nil {
		return needsAnimation, err
	}
	defer cmdBuffer.Release()
	c.queue.Submit(cmdBuffer)
	return needsAnimation, nil
}

func (c *Canvas) drawHorizon(pass *wgpu.RenderPassEncoder, view mapview.MapView) {
	if !c.horizonEnabled || view.RotationX() <= 0 {
		return
	}
	model, ok := horizon.Transform(view, c.horizonCfg)
	if !ok {
		return
	}
	var u horizonUniformData
	for i, v := range model {
		u.Model[i] = float32(v)
	}
	c.queue.WriteBuffer(c.horizonUniform, 0, wgpu.ToBytes([]horizonUniformData{u}))

	pass.SetPipeline(c.pipelines.horizonRing)
	pass.SetBindGroup(0, c.viewBindGroup, nil)
	pass.SetBindGroup(1, c.horizonBindGroup, nil)
	pass.SetStencilReference(0)
	pass.SetVertexBuffer(0, c.horizonVertexBuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(c.horizonIndexBuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(c.horizonIndexN, 1, 0, 0, 0)
}

// recycleBundles releases any previously packed bundle that no layer
// referenced this frame, then adopts the live set for next frame.
func (c *Canvas) recycleBundles(live map[*renderbundle.RenderBundle]*PackedBundle) {
	for bundle, packed := range c.previousBundles {
		if _, ok := live[bundle]; !ok {
			c.releasePacked(packed)
		}
	}
	c.previousBundles = live
}

// drawWorldBundle draws one packed bundle. If the bundle carries a clip
// area, the stencil is set to 1 under the clip polygon first, the bundle's
// geometry draws with stencil compare Equal 1, and a second clip pass
// resets the touched region back to 0 so the next bundle starts clean.
func (c *Canvas) drawWorldBundle(pass *wgpu.RenderPassEncoder, p *PackedBundle) {
	if p.hasClip {
		c.drawClip(pass, p, 1)
	}

	stencilRef := uint32(0)
	if p.hasClip {
		stencilRef = 1
	}

	if p.polyIndexCount > 0 {
		pass.SetPipeline(c.pipelines.mapRef)
		pass.SetBindGroup(0, c.viewBindGroup, nil)
		pass.SetStencilReference(stencilRef)
		pass.SetVertexBuffer(0, p.polyVertexBuf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(p.polyIndexBuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(p.polyIndexCount, 1, 0, 0, 0)
	}

	if p.lineIndexCount > 0 {
		pass.SetPipeline(c.pipelines.mapRef)
		pass.SetBindGroup(0, c.viewBindGroup, nil)
		pass.SetStencilReference(stencilRef)
		pass.SetVertexBuffer(0, p.lineVertexBuf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(p.lineIndexBuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(p.lineIndexCount, 1, 0, 0, 0)
	}

	for i, img := range p.images {
		pass.SetPipeline(c.pipelines.image)
		pass.SetBindGroup(0, c.viewBindGroup, nil)
		pass.SetBindGroup(1, img.bindGroup, nil)
		pass.SetStencilReference(stencilRef)
		pass.SetVertexBuffer(0, p.imageVertexBufs[i], 0, wgpu.WholeSize)
		pass.Draw(4, 1, 0, 0)
	}

	if p.pointCount > 0 {
		pass.SetPipeline(c.pipelines.dot)
		pass.SetBindGroup(0, c.viewBindGroup, nil)
		pass.SetStencilReference(stencilRef)
		pass.SetVertexBuffer(0, c.unitQuadBuffer(), 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, p.pointInstanceBuf, 0, wgpu.WholeSize)
		pass.Draw(4, p.pointCount, 0, 0)
	}

	if p.screenRefIndexCount > 0 {
		pass.SetPipeline(c.pipelines.screenRef)
		pass.SetBindGroup(0, c.viewBindGroup, nil)
		pass.SetStencilReference(stencilRef)
		pass.SetVertexBuffer(0, p.screenRefVertexBuf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(p.screenRefIndexBuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(p.screenRefIndexCount, 1, 0, 0, 0)
	}

	if p.hasClip {
		c.drawClip(pass, p, 0)
	}
}

func (c *Canvas) drawClip(pass *wgpu.RenderPassEncoder, p *PackedBundle, ref uint32) {
	pass.SetPipeline(c.pipelines.clip)
	pass.SetBindGroup(0, c.viewBindGroup, nil)
	pass.SetStencilReference(ref)
	pass.SetVertexBuffer(0, p.clipVertexBuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(p.clipIndexBuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(p.clipIndexCount, 1, 0, 0, 0)
}

// unitQuadBuffer lazily uploads the shared unit-quad corners the dot
// pipeline instances against.
func (c *Canvas) unitQuadBuffer() *wgpu.Buffer {
	if c.unitQuadBuf != nil {
		return c.unitQuadBuf
	}
	buf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "unit_quad",
		Contents: wgpu.ToBytes(unitQuad),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return nil
	}
	c.unitQuadBuf = buf
	return buf
}

// projectScreenAnchor builds the Projector the deconfliction pass needs,
// running each ScreenRenderSet's anchor point through the same view
// transform used for world geometry, then the perspective divide to pixels.
func (c *Canvas) projectScreenAnchor(view mapview.MapView) Projector {
	m, ok := view.MapToSceneTransform()
	size := view.Size()
	return func(set *renderbundle.ScreenRenderSet) ScreenAnchor {
		if !ok {
			return ScreenAnchor{W: -1}
		}
		x, y, z, w := m.MulPoint(float64(set.AnchorPoint[0]), float64(set.AnchorPoint[1]), float64(set.AnchorPoint[2]))
		if w <= 0 {
			return ScreenAnchor{W: w}
		}
		ndcX, ndcY := x/w, y/w
		px := (ndcX + 1) / 2 * size.Width
		py := (1 - ndcY) / 2 * size.Height
		return ScreenAnchor{X: px, Y: py, Z: z / w, W: w}
	}
}

// drawScreenPass draws every resolved screen-set placement in order, binding
// each one's own small anchor/opacity uniform. Resolve already arranged the
// order so higher-priority sets paint last, on top.
func (c *Canvas) drawScreenPass(encoder *wgpu.CommandEncoder, target *wgpu.TextureView, placements []Placement) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "screen_set_pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOp_Load,
			StoreOp: wgpu.StoreOp_Store,
		}},
	})
	defer pass.End()

	for _, p := range placements {
		if !p.Visible {
			continue
		}

		drawBuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label: "screen_draw_uniform",
			Contents: wgpu.ToBytes([]screenDrawData{{
				AnchorPx: [2]float32{float32(p.Anchor.X), float32(p.Anchor.Y)},
				Opacity:  float32(p.Opacity),
			}}),
			Usage: wgpu.BufferUsage_Uniform,
		})
		if err != nil {
			continue
		}

		drawBindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "screen_draw_bind_group",
			Layout: c.pipelines.screenDrawLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: drawBuf, Size: uint64(unsafe.Sizeof(screenDrawData{}))},
			},
		})
		if err != nil {
			drawBuf.Release()
			continue
		}

		if p.Set.Data.IsImage() {
			c.drawScreenImage(pass, p.Set, drawBindGroup)
		} else {
			c.drawScreenVertices(pass, p.Set, drawBindGroup)
		}

		drawBindGroup.Release()
		drawBuf.Release()
	}

	return nil
}

func (c *Canvas) drawScreenVertices(pass *wgpu.RenderPassEncoder, set *renderbundle.ScreenRenderSet, drawBindGroup *wgpu.BindGroup) {
	if len(set.Data.Vertices) == 0 {
		return
	}
	vbuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "screen_label_vertices",
		Contents: wgpu.ToBytes(set.Data.Vertices),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return
	}
	defer vbuf.Release()
	ibuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "screen_label_indices",
		Contents: wgpu.ToBytes(set.Data.Indices),
		Usage:    wgpu.BufferUsage_Index,
	})
	if err != nil {
		return
	}
	defer ibuf.Release()

	pass.SetPipeline(c.pipelines.screenVertex)
	pass.SetBindGroup(0, c.viewBindGroup, nil)
	pass.SetBindGroup(1, drawBindGroup, nil)
	pass.SetVertexBuffer(0, vbuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(ibuf, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(uint32(len(set.Data.Indices)), 1, 0, 0, 0)
}

func (c *Canvas) drawScreenImage(pass *wgpu.RenderPassEncoder, set *renderbundle.ScreenRenderSet, drawBindGroup *wgpu.BindGroup) {
	if set.Data.Image == nil {
		return
	}
	img, err := c.uploadImage(set.Data.Image)
	if err != nil {
		return
	}
	vbuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "screen_marker_quad",
		Contents: wgpu.ToBytes(set.Data.ImageVertices[:]),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return
	}
	defer vbuf.Release()

	pass.SetPipeline(c.pipelines.screenImage)
	pass.SetBindGroup(0, c.viewBindGroup, nil)
	pass.SetBindGroup(1, img.bindGroup, nil)
	pass.SetBindGroup(2, drawBindGroup, nil)
	pass.SetVertexBuffer(0, vbuf, 0, wgpu.WholeSize)
	pass.Draw(4, 1, 0, 0)
}

// Release frees every GPU resource the Canvas owns, including any tile
// bundles and images still cached from the last frame.
func (c *Canvas) Release() {
	for _, packed := range c.previousBundles {
		packed.Release()
	}
	for _, img := range c.imageCache {
		img.bindGroup.Release()
		img.view.Release()
		img.texture.Release()
	}
	if c.unitQuadBuf != nil {
		c.unitQuadBuf.Release()
	}
	if c.horizonEnabled {
		c.horizonBindGroup.Release()
		c.horizonUniform.Release()
		c.horizonIndexBuf.Release()
		c.horizonVertexBuf.Release()
	}
	c.releaseAttachments()
	c.viewBindGroup.Release()
	c.viewUniformBuf.Release()
	c.pipelines.release()
}
