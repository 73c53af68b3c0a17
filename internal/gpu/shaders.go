package gpu

// WGSL sources, one shader per pipeline. All pipelines share the same
// ViewUniform layout at @group(0) @binding(0); the Go-side mirror is
// viewUniformData in pipelines.go.

// mapRefShaderWGSL draws PolyVertex geometry (polygon fills and stroked
// lines, already tessellated into triangles) in map space. The pixel-space
// normal is scaled by the view resolution into a world-space extrusion,
// clamped to the vertex's norm_limit so short segments drawn at coarse
// resolutions don't grow spikes.
const mapRefShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec4<f32>,
    @location(2) normal: vec2<f32>,
    @location(3) norm_limit: f32,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    var extrusion = in.normal * view.resolution;
    let len = length(extrusion);
    if (len > in.norm_limit && len > 0.0) {
        extrusion = extrusion * (in.norm_limit / len);
    }
    let world = vec3<f32>(in.position.xy + extrusion, in.position.z);
    out.clip_position = view.view_proj * vec4<f32>(world, 1.0);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// screenRefShaderWGSL draws PolyVertex marker geometry whose normals are in
// pixels: the anchor is projected to clip space, then the pixel offset is
// applied there so the marker keeps its screen size at any zoom.
const screenRefShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec4<f32>,
    @location(2) normal: vec2<f32>,
    @location(3) norm_limit: f32,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    var clip = view.view_proj * vec4<f32>(in.position, 1.0);
    let offset = in.normal * view.inv_screen_size * 2.0;
    out.clip_position = vec4<f32>(clip.xy + offset * clip.w, clip.zw);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// dotShaderWGSL draws one billboard quad per PointInstance, expanded from a
// shared unit-quad vertex buffer to the instance's pixel size.
const dotShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;

struct UnitCorner {
    @location(0) corner: vec2<f32>,
}

struct Instance {
    @location(1) position: vec3<f32>,
    @location(2) size: f32,
    @location(3) color: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(corner: UnitCorner, inst: Instance) -> VertexOutput {
    var out: VertexOutput;
    let center = view.view_proj * vec4<f32>(inst.position, 1.0);
    let offset = corner.corner * inst.size * view.inv_screen_size * 2.0;
    out.clip_position = vec4<f32>(center.xy + offset * center.w, center.zw);
    out.color = inst.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// imageShaderWGSL draws a textured quad (tile raster, or any decoded image
// placed in map space).
const imageShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;
@group(1) @binding(0) var image_sampler: sampler;
@group(1) @binding(1) var image_texture: texture_2d<f32>;

struct VertexInput {
    @location(0) position: vec2<f32>,
    @location(1) opacity: f32,
    @location(2) tex_coords: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) opacity: f32,
    @location(1) tex_coords: vec2<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = view.view_proj * vec4<f32>(in.position, 0.0, 1.0);
    out.opacity = in.opacity;
    out.tex_coords = in.tex_coords;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let sampled = textureSample(image_texture, image_sampler, in.tex_coords);
    return vec4<f32>(sampled.rgb, sampled.a * in.opacity);
}
`

// clipShaderWGSL writes only to the stencil buffer (no color target); the
// stencil-mask pass runs before a bundle's own geometry.
const clipShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;

struct VertexInput {
    @location(0) position: vec3<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return view.view_proj * vec4<f32>(in.position, 1.0);
}
`

// horizonShaderWGSL draws the atmosphere ring mesh behind everything else,
// transformed by a per-frame model matrix bound at @group(1).
const horizonShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

struct HorizonUniform {
    model: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;
@group(1) @binding(0) var<uniform> horizon: HorizonUniform;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = view.view_proj * horizon.model * vec4<f32>(in.position, 1.0);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// screenVertexShaderWGSL draws screen-set glyph meshes (labels) directly in
// pixel coordinates, modulated by the per-draw opacity the deconfliction
// pass computed.
const screenVertexShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

struct ScreenDraw {
    anchor_px: vec2<f32>,
    opacity: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;
@group(1) @binding(0) var<uniform> draw: ScreenDraw;

struct VertexInput {
    @location(0) position: vec2<f32>,
    @location(1) color: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    let px = draw.anchor_px + in.position;
    let ndc = vec2<f32>(px.x * view.inv_screen_size.x * 2.0 - 1.0, 1.0 - px.y * view.inv_screen_size.y * 2.0);
    out.clip_position = vec4<f32>(ndc, 0.0, 1.0);
    out.color = vec4<f32>(in.color.rgb, in.color.a * draw.opacity);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// screenImageShaderWGSL draws a screen-set marker image quad, same
// pixel-to-NDC conversion as screenVertexShaderWGSL.
const screenImageShaderWGSL = `
struct ViewUniform {
    view_proj: mat4x4<f32>,
    view_rotation: mat4x4<f32>,
    inv_screen_size: vec2<f32>,
    resolution: f32,
}

struct ScreenDraw {
    anchor_px: vec2<f32>,
    opacity: f32,
}

@group(0) @binding(0) var<uniform> view: ViewUniform;
@group(1) @binding(0) var marker_sampler: sampler;
@group(1) @binding(1) var marker_texture: texture_2d<f32>;
@group(2) @binding(0) var<uniform> draw: ScreenDraw;

struct VertexInput {
    @location(0) position: vec2<f32>,
    @location(1) tex_coords: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) tex_coords: vec2<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    let px = draw.anchor_px + in.position;
    let ndc = vec2<f32>(px.x * view.inv_screen_size.x * 2.0 - 1.0, 1.0 - px.y * view.inv_screen_size.y * 2.0);
    out.clip_position = vec4<f32>(ndc, 0.0, 1.0);
    out.tex_coords = in.tex_coords;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let sampled = textureSample(marker_texture, marker_sampler, in.tex_coords);
    return vec4<f32>(sampled.rgb, sampled.a * draw.opacity);
}
`
