// Package renderbundle implements the intermediate geometry representation
// layers build into before the GPU compositor (internal/gpu) packs it for
// upload: a WorldRenderSet holding map-space polygons, lines, points and
// images, a slice of ScreenRenderSet for screen-space labels and markers,
// and a RenderBundle that owns both per layer.
//
// Polygon fills are triangulated with github.com/flywave/go-earcut. Stroke
// geometry is extruded here by hand: each vertex carries the centerline
// position plus a pixel-space normal the vertex shader scales by the view
// resolution, clamped to the vertex's NormLimit so short segments drawn at
// coarse resolutions don't grow spikes.
package renderbundle

import (
	"math"

	"github.com/flywave/go-earcut"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// PolyVertex is one vertex of a tessellated fill or stroke, uploaded as-is
// to the GPU by internal/gpu. Normal is in pixels (zero for fills); the
// shader multiplies it by the view resolution and clamps the world-space
// extrusion length to NormLimit.
type PolyVertex struct {
	Position  [3]float32
	Color     [4]float32
	Normal    [2]float32
	NormLimit float32
}

// PointInstance is one instanced dot sprite.
type PointInstance struct {
	Position [3]float32
	Size     float32
	Color    [4]float32
}

// ImageVertex is one corner of a textured quad.
type ImageVertex struct {
	Position  [2]float32
	Opacity   float32
	TexCoords [2]float32
}

// Tessellation is an indexed vertex buffer.
type Tessellation struct {
	Vertices []PolyVertex
	Indices  []uint32
}

func (t *Tessellation) append(other Tessellation) {
	base := uint32(len(t.Vertices))
	t.Vertices = append(t.Vertices, other.Vertices...)
	for _, idx := range other.Indices {
		t.Indices = append(t.Indices, idx+base)
	}
}

// noNormLimit disables extrusion clamping for vertices with no extrusion.
const noNormLimit = float32(math.MaxFloat32)

// TessellatePolygon triangulates a polygon (outer ring + holes) with earcut
// and colors every vertex uniformly.
func TessellatePolygon(poly geom.Polygon[float64], color geom.Color) Tessellation {
	flat, holeIndices := flattenPolygon(poly)
	if len(flat) == 0 {
		return Tessellation{}
	}

	triIndices := earcut.Earcut(flat, holeIndices, 2)

	cf := color.ToFloat32()
	verts := make([]PolyVertex, len(flat)/2)
	for i := range verts {
		verts[i] = PolyVertex{
			Position:  [3]float32{float32(flat[i*2]), float32(flat[i*2+1]), 0},
			Color:     cf,
			NormLimit: noNormLimit,
		}
	}

	indices := make([]uint32, len(triIndices))
	for i, idx := range triIndices {
		indices[i] = uint32(idx)
	}

	return Tessellation{Vertices: verts, Indices: indices}
}

// flattenPolygon converts a Polygon's rings into earcut's flat
// [x0,y0,x1,y1,...] + holeIndices representation.
func flattenPolygon(poly geom.Polygon[float64]) ([]float64, []int) {
	var flat []float64
	appendRing := func(c geom.Contour[float64]) {
		for _, p := range c.Points {
			flat = append(flat, p.X, p.Y)
		}
	}

	appendRing(poly.Outer)
	if len(poly.Outer.Points) == 0 {
		return nil, nil
	}

	holeIndices := make([]int, 0, len(poly.Holes))
	for _, hole := range poly.Holes {
		holeIndices = append(holeIndices, len(flat)/2)
		appendRing(hole)
	}

	return flat, holeIndices
}

// LineCap selects how stroke ends are finished.
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LinePaint describes a stroked contour. Width and Offset are in pixels.
type LinePaint struct {
	Color   geom.Color
	Width   float64
	Offset  float64
	LineCap LineCap
}

// TessellateLine extrudes a contour into quads, one per segment. Vertex
// positions stay on the centerline; the half-width extrusion lives in the
// pixel-space normal so the stroke keeps its pixel width at any zoom. Each
// vertex's NormLimit is the segment length times twice minResolution, which
// caps how far the shader may extrude when the stroke is drawn much larger
// than the segment itself.
func TessellateLine(line geom.Contour[float64], paint LinePaint, minResolution float64) Tessellation {
	pts := line.IterPointsClosing()
	if len(pts) < 2 {
		return Tessellation{}
	}

	cf := paint.Color.ToFloat32()
	halfWidth := float32(paint.Width/2 + paint.Offset)

	var out Tessellation
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := float32(-dy/length), float32(dx/length)
		limit := float32(length * 2 * minResolution)

		base := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices,
			PolyVertex{Position: posOf(a), Color: cf, Normal: [2]float32{nx * halfWidth, ny * halfWidth}, NormLimit: limit},
			PolyVertex{Position: posOf(a), Color: cf, Normal: [2]float32{-nx * halfWidth, -ny * halfWidth}, NormLimit: limit},
			PolyVertex{Position: posOf(b), Color: cf, Normal: [2]float32{nx * halfWidth, ny * halfWidth}, NormLimit: limit},
			PolyVertex{Position: posOf(b), Color: cf, Normal: [2]float32{-nx * halfWidth, -ny * halfWidth}, NormLimit: limit},
		)
		out.Indices = append(out.Indices,
			base, base+1, base+2,
			base+1, base+3, base+2,
		)
	}
	return out
}

func posOf(p geom.Point2[float64]) [3]float32 {
	return [3]float32{float32(p.X), float32(p.Y), 0}
}

// circleTolerancePx is the maximum chord error for tessellated circular
// markers, in pixels.
const circleTolerancePx = 0.1

// circleSegmentCount picks how many fan segments keep a circle of the given
// pixel radius within circleTolerancePx of a true circle.
func circleSegmentCount(radius float64, startAngle, endAngle float64) int {
	if radius <= circleTolerancePx {
		return 8
	}
	maxAngle := 2 * math.Acos(1-circleTolerancePx/radius)
	span := endAngle - startAngle
	n := int(math.Ceil(math.Abs(span) / maxAngle))
	if n < 8 {
		n = 8
	}
	if n > 128 {
		n = 128
	}
	return n
}

// tessellateCircleSector builds a screen-space fan around a world anchor:
// every vertex sits at the anchor position with its pixel offset carried in
// the normal, so the marker keeps its size on screen regardless of zoom.
func tessellateCircleSector(position geom.Point3[float64], radius float64, startAngle, endAngle float64, color geom.Color) Tessellation {
	cf := color.ToFloat32()
	pos := [3]float32{float32(position.X), float32(position.Y), float32(position.Z)}
	n := circleSegmentCount(radius, startAngle, endAngle)

	var out Tessellation
	out.Vertices = append(out.Vertices, PolyVertex{Position: pos, Color: cf, NormLimit: noNormLimit})
	for i := 0; i <= n; i++ {
		theta := startAngle + (endAngle-startAngle)*float64(i)/float64(n)
		out.Vertices = append(out.Vertices, PolyVertex{
			Position:  pos,
			Color:     cf,
			Normal:    [2]float32{float32(radius * math.Cos(theta)), float32(radius * math.Sin(theta))},
			NormLimit: noNormLimit,
		})
	}
	for i := 0; i < n; i++ {
		out.Indices = append(out.Indices, 0, uint32(i+1), uint32(i+2))
	}
	return out
}

// tessellateSquare builds a screen-space square marker centered on a world
// anchor, size in pixels.
func tessellateSquare(position geom.Point3[float64], size float64, color geom.Color) Tessellation {
	cf := color.ToFloat32()
	pos := [3]float32{float32(position.X), float32(position.Y), float32(position.Z)}
	h := float32(size / 2)

	return Tessellation{
		Vertices: []PolyVertex{
			{Position: pos, Color: cf, Normal: [2]float32{-h, -h}, NormLimit: noNormLimit},
			{Position: pos, Color: cf, Normal: [2]float32{h, -h}, NormLimit: noNormLimit},
			{Position: pos, Color: cf, Normal: [2]float32{h, h}, NormLimit: noNormLimit},
			{Position: pos, Color: cf, Normal: [2]float32{-h, h}, NormLimit: noNormLimit},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}
