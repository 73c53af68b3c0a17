package gpu

import (
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// unitQuadCorner is the shared per-vertex input to the dot pipeline: one of
// four corners of a unit square, expanded in the vertex shader by the
// instance's own size.
type unitQuadCorner struct {
	Corner [2]float32
}

var unitQuad = []unitQuadCorner{
	{Corner: [2]float32{-0.5, -0.5}},
	{Corner: [2]float32{0.5, -0.5}},
	{Corner: [2]float32{-0.5, 0.5}},
	{Corner: [2]float32{0.5, 0.5}},
}

// gpuImage is one image's uploaded texture plus a bind group built against
// the image pipeline's per-texture bind group layout.
type gpuImage struct {
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
}

// PackedBundle is one layer's RenderBundle fully uploaded to GPU buffers,
// ready for a Canvas to draw. It implements renderbundle.PackedBundle so the
// tile caches (which store packed bundles generically) don't need to import
// internal/gpu.
type PackedBundle struct {
	clipVertexBuf, clipIndexBuf *wgpu.Buffer
	clipIndexCount              uint32
	hasClip                     bool

	polyVertexBuf, polyIndexBuf *wgpu.Buffer
	polyIndexCount              uint32

	lineVertexBuf, lineIndexBuf *wgpu.Buffer
	lineIndexCount              uint32

	screenRefVertexBuf, screenRefIndexBuf *wgpu.Buffer
	screenRefIndexCount                   uint32

	pointInstanceBuf *wgpu.Buffer
	pointCount       uint32

	images          []gpuImage
	imageVertexBufs []*wgpu.Buffer
	// imageKeys are the decoded images this bundle pinned in the canvas's
	// texture cache; the canvas unpins them when it recycles the bundle.
	imageKeys []*geom.DecodedImage

	approxSize int
}

func (p *PackedBundle) ApproxBufferSize() int { return p.approxSize }

// Release frees every GPU resource this bundle owns.
func (p *PackedBundle) Release() {
	releaseBuf(p.clipVertexBuf)
	releaseBuf(p.clipIndexBuf)
	releaseBuf(p.polyVertexBuf)
	releaseBuf(p.polyIndexBuf)
	releaseBuf(p.lineVertexBuf)
	releaseBuf(p.lineIndexBuf)
	releaseBuf(p.screenRefVertexBuf)
	releaseBuf(p.screenRefIndexBuf)
	releaseBuf(p.pointInstanceBuf)
	for _, buf := range p.imageVertexBufs {
		releaseBuf(buf)
	}
	// Image textures are owned by the Canvas-level cache, not the bundle.
	p.images = nil
}

func releaseBuf(b *wgpu.Buffer) {
	if b != nil {
		b.Release()
	}
}

// Pack uploads bundle's CPU-side geometry to device-resident buffers, once,
// so a cached tile can be drawn every frame without re-uploading.
func (c *Canvas) Pack(bundle *renderbundle.RenderBundle) (*PackedBundle, error) {
	p := &PackedBundle{approxSize: bundle.ApproxBufferSize()}

	if bundle.World.ClipArea != nil {
		vbuf, ibuf, n, err := c.uploadTessellation(*bundle.World.ClipArea, "clip_area")
		if err != nil {
			return nil, err
		}
		p.clipVertexBuf, p.clipIndexBuf, p.clipIndexCount, p.hasClip = vbuf, ibuf, n, true
	}

	if len(bundle.World.Polygons.Vertices) > 0 {
		vbuf, ibuf, n, err := c.uploadTessellation(bundle.World.Polygons, "polygons")
		if err != nil {
			return nil, err
		}
		p.polyVertexBuf, p.polyIndexBuf, p.polyIndexCount = vbuf, ibuf, n
	}

	if len(bundle.World.Lines.Vertices) > 0 {
		vbuf, ibuf, n, err := c.uploadTessellation(bundle.World.Lines, "lines")
		if err != nil {
			return nil, err
		}
		p.lineVertexBuf, p.lineIndexBuf, p.lineIndexCount = vbuf, ibuf, n
	}

	if len(bundle.World.ScreenRef.Vertices) > 0 {
		vbuf, ibuf, n, err := c.uploadTessellation(bundle.World.ScreenRef, "screen_ref")
		if err != nil {
			return nil, err
		}
		p.screenRefVertexBuf, p.screenRefIndexBuf, p.screenRefIndexCount = vbuf, ibuf, n
	}

	if len(bundle.World.Points) > 0 {
		buf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "point_instances",
			Contents: wgpu.ToBytes(bundle.World.Points),
			Usage:    wgpu.BufferUsage_Vertex,
		})
		if err != nil {
			return nil, err
		}
		p.pointInstanceBuf = buf
		p.pointCount = uint32(len(bundle.World.Points))
	}

	for _, decoded := range bundle.World.ImageStore() {
		if _, err := c.uploadImage(decoded); err != nil {
			return nil, err
		}
		c.imageRefs[decoded]++
		p.imageKeys = append(p.imageKeys, decoded)
	}

	for _, imgInfo := range bundle.World.Images {
		decoded := bundle.World.ImageStore()[imgInfo.StoreIndex]
		img, err := c.uploadImage(decoded)
		if err != nil {
			return nil, err
		}
		vbuf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "image_quad",
			Contents: wgpu.ToBytes(imgInfo.Vertices[:]),
			Usage:    wgpu.BufferUsage_Vertex,
		})
		if err != nil {
			return nil, err
		}
		p.images = append(p.images, img)
		p.imageVertexBufs = append(p.imageVertexBufs, vbuf)
	}

	return p, nil
}

// releasePacked frees the bundle's buffers and unpins its images, dropping
// any texture no live bundle references anymore.
func (c *Canvas) releasePacked(p *PackedBundle) {
	p.Release()
	for _, key := range p.imageKeys {
		c.imageRefs[key]--
		if c.imageRefs[key] > 0 {
			continue
		}
		delete(c.imageRefs, key)
		if img, ok := c.imageCache[key]; ok {
			img.bindGroup.Release()
			img.view.Release()
			img.texture.Release()
			delete(c.imageCache, key)
		}
	}
}

func (c *Canvas) uploadTessellation(t renderbundle.Tessellation, label string) (vbuf, ibuf *wgpu.Buffer, indexCount uint32, err error) {
	vbuf, err = c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + "_vertices",
		Contents: wgpu.ToBytes(t.Vertices),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return nil, nil, 0, err
	}
	ibuf, err = c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + "_indices",
		Contents: wgpu.ToBytes(t.Indices),
		Usage:    wgpu.BufferUsage_Index,
	})
	if err != nil {
		vbuf.Release()
		return nil, nil, 0, err
	}
	return vbuf, ibuf, uint32(len(t.Indices)), nil
}

func (c *Canvas) uploadImage(img *geom.DecodedImage) (gpuImage, error) {
	if cached, ok := c.imageCache[img]; ok {
		return cached, nil
	}

	size := img.Size()
	texture, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "layer_image",
		Size:          wgpu.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        wgpu.TextureFormat_RGBA8UnormSrgb,
		Usage:         wgpu.TextureUsage_TextureBinding | wgpu.TextureUsage_CopyDst,
	})
	if err != nil {
		return gpuImage{}, err
	}

	c.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: texture, MipLevel: 0, Aspect: wgpu.TextureAspect_All},
		img.Bytes(),
		&wgpu.TextureDataLayout{BytesPerRow: size.Width * 4, RowsPerImage: size.Height},
		&wgpu.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: 1},
	)

	view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          wgpu.TextureFormat_RGBA8UnormSrgb,
		Dimension:       wgpu.TextureViewDimension_2D,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspect_All,
	})
	if err != nil {
		texture.Release()
		return gpuImage{}, err
	}

	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "image_bind_group",
		Layout: c.pipelines.imageTextureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Sampler: c.pipelines.imageSampler},
			{Binding: 1, TextureView: view},
		},
	})
	if err != nil {
		view.Release()
		texture.Release()
		return gpuImage{}, err
	}

	out := gpuImage{texture: texture, view: view, bindGroup: bindGroup}
	c.imageCache[img] = out
	return out, nil
}
