package gpu

import (
	"fmt"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/miguelemosreverte/galileo/internal/horizon"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

const msaaSampleCount = 4

// depthStencilFormat is shared by the MSAA depth/stencil attachment and every
// pipeline that reads or writes it.
const depthStencilFormat = wgpu.TextureFormat_Depth24PlusStencil8

// viewUniformData is the per-frame uniform every pipeline's @group(0) binds,
// laid out to match the WGSL ViewUniform struct byte for byte.
type viewUniformData struct {
	ViewProj      [16]float32
	ViewRotation  [16]float32
	InvScreenSize [2]float32
	Resolution    float32
	_             float32 // pad to 16-byte multiple
}

// screenDrawData is the small per-draw uniform the screen-set pipelines
// bind: where to place this label/marker in pixels, and the
// deconfliction-resolved opacity to draw it at.
type screenDrawData struct {
	AnchorPx [2]float32
	Opacity  float32
	_        float32 // pad to 16 bytes
}

// horizonUniformData carries the atmosphere ring's per-frame model matrix.
type horizonUniformData struct {
	Model [16]float32
}

// pipelines bundles every render pipeline plus the shared resources (bind
// group layouts, image sampler) they're built against.
type pipelines struct {
	viewLayout         *wgpu.BindGroupLayout
	imageTextureLayout *wgpu.BindGroupLayout
	screenDrawLayout   *wgpu.BindGroupLayout
	horizonLayout      *wgpu.BindGroupLayout
	imageSampler       *wgpu.Sampler

	clip         *wgpu.RenderPipeline
	mapRef       *wgpu.RenderPipeline
	screenRef    *wgpu.RenderPipeline
	dot          *wgpu.RenderPipeline
	image        *wgpu.RenderPipeline
	horizonRing  *wgpu.RenderPipeline
	screenVertex *wgpu.RenderPipeline
	screenImage  *wgpu.RenderPipeline

	layoutView      *wgpu.PipelineLayout
	layoutWithImage *wgpu.PipelineLayout
	layoutHorizon   *wgpu.PipelineLayout
	layoutScreen    *wgpu.PipelineLayout
	layoutScreenImg *wgpu.PipelineLayout
}

func buildPipelines(device *wgpu.Device, colorFormat wgpu.TextureFormat) (*pipelines, error) {
	p := &pipelines{}

	var err error
	p.viewLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "view_uniform_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStage_Vertex | wgpu.ShaderStage_Fragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("view bind group layout: %w", err)
	}

	p.imageTextureLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "image_texture_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStage_Fragment, Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_Filtering}},
			{Binding: 1, Visibility: wgpu.ShaderStage_Fragment, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleType_Float, ViewDimension: wgpu.TextureViewDimension_2D}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("image texture bind group layout: %w", err)
	}

	p.screenDrawLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "screen_draw_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStage_Vertex | wgpu.ShaderStage_Fragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("screen draw bind group layout: %w", err)
	}

	p.horizonLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "horizon_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStage_Vertex, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("horizon bind group layout: %w", err)
	}

	p.imageSampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:   wgpu.AddressMode_ClampToEdge,
		AddressModeV:   wgpu.AddressMode_ClampToEdge,
		AddressModeW:   wgpu.AddressMode_ClampToEdge,
		MagFilter:      wgpu.FilterMode_Linear,
		MinFilter:      wgpu.FilterMode_Linear,
		MipmapFilter:   wgpu.MipmapFilterMode_Nearest,
		MaxAnisotrophy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("image sampler: %w", err)
	}

	p.layoutView, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "view_only_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout},
	})
	if err != nil {
		return nil, err
	}
	p.layoutWithImage, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "with_image_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout, p.imageTextureLayout},
	})
	if err != nil {
		return nil, err
	}
	p.layoutHorizon, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "horizon_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout, p.horizonLayout},
	})
	if err != nil {
		return nil, err
	}
	p.layoutScreen, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "screen_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout, p.screenDrawLayout},
	})
	if err != nil {
		return nil, err
	}
	p.layoutScreenImg, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "screen_image_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout, p.imageTextureLayout, p.screenDrawLayout},
	})
	if err != nil {
		return nil, err
	}

	if p.clip, err = buildClipPipeline(device, p.layoutView); err != nil {
		return nil, err
	}
	if p.mapRef, err = buildTrianglePipeline(device, p.layoutView, colorFormat, "map_ref", mapRefShaderWGSL); err != nil {
		return nil, err
	}
	if p.screenRef, err = buildTrianglePipeline(device, p.layoutView, colorFormat, "screen_ref", screenRefShaderWGSL); err != nil {
		return nil, err
	}
	if p.dot, err = buildDotPipeline(device, p.layoutView, colorFormat); err != nil {
		return nil, err
	}
	if p.image, err = buildImagePipeline(device, p.layoutWithImage, colorFormat); err != nil {
		return nil, err
	}
	if p.horizonRing, err = buildHorizonPipeline(device, p.layoutHorizon, colorFormat); err != nil {
		return nil, err
	}
	if p.screenVertex, err = buildScreenVertexPipeline(device, p.layoutScreen, colorFormat); err != nil {
		return nil, err
	}
	if p.screenImage, err = buildScreenImagePipeline(device, p.layoutScreenImg, colorFormat); err != nil {
		return nil, err
	}

	return p, nil
}

// clipStencilFace marks the stencil buffer wherever the clip polygon covers,
// setting every covered pixel to the pass's stencil reference.
var clipStencilFace = wgpu.StencilFaceState{
	Compare:     wgpu.CompareFunction_Always,
	FailOp:      wgpu.StencilOperation_Keep,
	DepthFailOp: wgpu.StencilOperation_Keep,
	PassOp:      wgpu.StencilOperation_Replace,
}

// geometryStencilFace is the face state every world-geometry pipeline reads
// with: draw only where the stencil buffer equals the reference, never
// modifying the buffer.
var geometryStencilFace = wgpu.StencilFaceState{
	Compare:     wgpu.CompareFunction_Equal,
	FailOp:      wgpu.StencilOperation_Keep,
	DepthFailOp: wgpu.StencilOperation_Keep,
	PassOp:      wgpu.StencilOperation_Keep,
}

func clipDepthStencilState() *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            depthStencilFormat,
		DepthWriteEnabled: false,
		DepthCompare:      wgpu.CompareFunction_Always,
		StencilFront:      clipStencilFace,
		StencilBack:       clipStencilFace,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0xFF,
	}
}

func geometryDepthStencilState() *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            depthStencilFormat,
		DepthWriteEnabled: false,
		DepthCompare:      wgpu.CompareFunction_Always,
		StencilFront:      geometryStencilFace,
		StencilBack:       geometryStencilFace,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0x00,
	}
}

// alphaBlendState is the standard non-premultiplied alpha blend every
// translucent pipeline draws with.
var alphaBlendState = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_SrcAlpha,
		DstFactor: wgpu.BlendFactor_OneMinusSrcAlpha,
		Operation: wgpu.BlendOperation_Add,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_One,
		DstFactor: wgpu.BlendFactor_OneMinusSrcAlpha,
		Operation: wgpu.BlendOperation_Add,
	},
}

func multisampleState() wgpu.MultisampleState {
	return wgpu.MultisampleState{Count: msaaSampleCount, Mask: 0xFFFFFFFF}
}

func colorTargets(colorFormat wgpu.TextureFormat) []wgpu.ColorTargetState {
	return []wgpu.ColorTargetState{{
		Format:    colorFormat,
		Blend:     &alphaBlendState,
		WriteMask: wgpu.ColorWriteMask_All,
	}}
}

func buildClipPipeline(device *wgpu.Device, layout *wgpu.PipelineLayout) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "clip_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: clipShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "clip_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{polyVertexLayout()},
		},
		Primitive:    wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleList},
		DepthStencil: clipDepthStencilState(),
		Multisample:  multisampleState(),
	})
}

// buildTrianglePipeline builds the map-ref and screen-ref pipelines, which
// differ only in shader source.
func buildTrianglePipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat, name, source string) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name + "_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  name + "_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{polyVertexLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive:    wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleList},
		DepthStencil: geometryDepthStencilState(),
		Multisample:  multisampleState(),
	})
}

func buildDotPipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "dot_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: dotShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "dot_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(unitQuadCorner{})),
					StepMode:    wgpu.VertexStepMode_Vertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormat_Float32x2, Offset: 0, ShaderLocation: 0},
					},
				},
				{
					ArrayStride: uint64(unsafe.Sizeof(renderbundle.PointInstance{})),
					StepMode:    wgpu.VertexStepMode_Instance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormat_Float32x3, Offset: 0, ShaderLocation: 1},
						{Format: wgpu.VertexFormat_Float32, Offset: 12, ShaderLocation: 2},
						{Format: wgpu.VertexFormat_Float32x4, Offset: 16, ShaderLocation: 3},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive:    wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleStrip},
		DepthStencil: geometryDepthStencilState(),
		Multisample:  multisampleState(),
	})
}

func buildImagePipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "image_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: imageShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "image_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(renderbundle.ImageVertex{})),
				StepMode:    wgpu.VertexStepMode_Vertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormat_Float32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormat_Float32, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormat_Float32x2, Offset: 12, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive:    wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleStrip},
		DepthStencil: geometryDepthStencilState(),
		Multisample:  multisampleState(),
	})
}

func buildHorizonPipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "horizon_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: horizonShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "horizon_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(horizon.Vertex{})),
				StepMode:    wgpu.VertexStepMode_Vertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormat_Float32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormat_Unorm8x4, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopology_TriangleList,
			FrontFace: wgpu.FrontFace_CCW,
			CullMode:  wgpu.CullMode_Front,
		},
		DepthStencil: geometryDepthStencilState(),
		Multisample:  multisampleState(),
	})
}

func buildScreenVertexPipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "screen_vertex_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: screenVertexShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "screen_vertex_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(renderbundle.ScreenSetVertex{})),
				StepMode:    wgpu.VertexStepMode_Vertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormat_Float32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormat_Unorm8x4, Offset: 8, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
}

func buildScreenImagePipeline(device *wgpu.Device, layout *wgpu.PipelineLayout, colorFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "screen_image_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: screenImageShaderWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "screen_image_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(renderbundle.ScreenSetImageVertex{})),
				StepMode:    wgpu.VertexStepMode_Vertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormat_Float32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormat_Float32x2, Offset: 8, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets(colorFormat),
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopology_TriangleStrip},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
}

func polyVertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(unsafe.Sizeof(renderbundle.PolyVertex{})),
		StepMode:    wgpu.VertexStepMode_Vertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormat_Float32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormat_Float32x4, Offset: 12, ShaderLocation: 1},
			{Format: wgpu.VertexFormat_Float32x2, Offset: 28, ShaderLocation: 2},
			{Format: wgpu.VertexFormat_Float32, Offset: 36, ShaderLocation: 3},
		},
	}
}

func (p *pipelines) release() {
	p.clip.Release()
	p.mapRef.Release()
	p.screenRef.Release()
	p.dot.Release()
	p.image.Release()
	p.horizonRing.Release()
	p.screenVertex.Release()
	p.screenImage.Release()
	p.layoutView.Release()
	p.layoutWithImage.Release()
	p.layoutHorizon.Release()
	p.layoutScreen.Release()
	p.layoutScreenImg.Release()
	p.viewLayout.Release()
	p.imageTextureLayout.Release()
	p.screenDrawLayout.Release()
	p.horizonLayout.Release()
	p.imageSampler.Release()
}
