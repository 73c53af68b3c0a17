package gpu

import (
	"fmt"

	"github.com/rajveermalviya/go-webgpu/wgpu"
)

// RenderTarget abstracts where a frame lands: either the window's
// swap-chain surface or an offscreen texture, so headless rendering
// (snapshot tests, tile pre-rendering) doesn't need a live window.
type RenderTarget interface {
	// CurrentView returns the texture view this frame should render into,
	// and a present function to call once the frame's command buffer has
	// been submitted (a no-op for the Texture variant).
	CurrentView() (*wgpu.TextureView, func(), error)
	Size() (width, height uint32)
	Format() wgpu.TextureFormat
}

// SurfaceTarget wraps a window's swap chain, recreated on Resize.
type SurfaceTarget struct {
	device    *wgpu.Device
	surface   *wgpu.Surface
	swapChain *wgpu.SwapChain
	format    wgpu.TextureFormat
	width     uint32
	height    uint32
}

func NewSurfaceTarget(device *wgpu.Device, adapter *wgpu.Adapter, surface *wgpu.Surface, width, height uint32) (*SurfaceTarget, error) {
	t := &SurfaceTarget{
		device:  device,
		surface: surface,
		format:  surface.GetPreferredFormat(adapter),
		width:   width,
		height:  height,
	}
	if err := t.recreate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *SurfaceTarget) recreate() error {
	sc, err := t.device.CreateSwapChain(t.surface, &wgpu.SwapChainDescriptor{
		Usage:       wgpu.TextureUsage_RenderAttachment,
		Format:      t.format,
		Width:       t.width,
		Height:      t.height,
		PresentMode: wgpu.PresentMode_Fifo,
	})
	if err != nil {
		return err
	}
	t.swapChain = sc
	return nil
}

func (t *SurfaceTarget) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if t.swapChain != nil {
		t.swapChain.Release()
	}
	t.width, t.height = width, height
	return t.recreate()
}

func (t *SurfaceTarget) CurrentView() (*wgpu.TextureView, func(), error) {
	view, err := t.swapChain.GetCurrentTextureView()
	if err != nil {
		return nil, nil, err
	}
	present := func() {
		view.Release()
		t.swapChain.Present()
	}
	return view, present, nil
}

func (t *SurfaceTarget) Size() (uint32, uint32)     { return t.width, t.height }
func (t *SurfaceTarget) Format() wgpu.TextureFormat { return t.format }

// TextureTarget renders into an owned offscreen texture, for headless use
// (snapshot tests, server-side tile previews of the engine's own output).
type TextureTarget struct {
	device  *wgpu.Device
	texture *wgpu.Texture
	view    *wgpu.TextureView
	format  wgpu.TextureFormat
	width   uint32
	height  uint32
}

func NewTextureTarget(device *wgpu.Device, width, height uint32, format wgpu.TextureFormat) (*TextureTarget, error) {
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "gpu_texture_target",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        format,
		Usage:         wgpu.TextureUsage_RenderAttachment | wgpu.TextureUsage_CopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{Format: format, Dimension: wgpu.TextureViewDimension_2D, MipLevelCount: 1, ArrayLayerCount: 1})
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &TextureTarget{device: device, texture: tex, view: view, format: format, width: width, height: height}, nil
}

func (t *TextureTarget) CurrentView() (*wgpu.TextureView, func(), error) {
	return t.view, func() {}, nil
}

func (t *TextureTarget) Size() (uint32, uint32)     { return t.width, t.height }
func (t *TextureTarget) Format() wgpu.TextureFormat { return t.format }

// ReadPixels copies the rendered texture back to the CPU as tightly packed
// RGBA rows. Row pitch is 256-byte aligned for the copy, then stripped.
func (t *TextureTarget) ReadPixels(queue *wgpu.Queue) ([]byte, error) {
	const align = 256
	unpadded := t.width * 4
	padded := (unpadded + align - 1) / align * align

	buf, err := t.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "texture_readback",
		Size:  uint64(padded * t.height),
		Usage: wgpu.BufferUsage_MapRead | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	encoder, err := t.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "readback_encoder"})
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: t.texture, MipLevel: 0, Aspect: wgpu.TextureAspect_All},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{BytesPerRow: padded, RowsPerImage: t.height},
		},
		&wgpu.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)

	cmd, err := encoder.Finish(&wgpu.CommandBufferDescriptor{})
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	queue.Submit(cmd)

	var mapErr error
	done := false
	err = buf.MapAsync(wgpu.MapMode_Read, 0, uint64(padded*t.height), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatus_Success {
			mapErr = fmt.Errorf("gpu: buffer map failed with status %v", status)
		}
		done = true
	})
	if err != nil {
		return nil, err
	}
	for !done {
		t.device.Poll(true, nil)
	}
	if mapErr != nil {
		return nil, mapErr
	}
	defer buf.Unmap()

	mapped := buf.GetMappedRange(0, uint(padded*t.height))
	out := make([]byte, unpadded*t.height)
	for row := uint32(0); row < t.height; row++ {
		copy(out[row*unpadded:(row+1)*unpadded], mapped[row*padded:row*padded+unpadded])
	}
	return out, nil
}

func (t *TextureTarget) Release() {
	t.view.Release()
	t.texture.Release()
}
