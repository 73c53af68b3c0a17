package renderbundle

import (
	"math"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// PointShape selects how a point feature is drawn.
type PointShape int

const (
	// ShapeDot is a fixed-size instanced sprite, the cheapest marker.
	ShapeDot PointShape = iota
	// ShapeCircle is a tessellated screen-space circle of Size/2 pixel radius.
	ShapeCircle
	// ShapeSquare is a tessellated screen-space square of Size pixels.
	ShapeSquare
	// ShapeSector is a circular sector between StartAngle and EndAngle.
	ShapeSector
)

// PointPaint describes a point marker. Size is the diameter in pixels.
type PointPaint struct {
	Shape      PointShape
	Color      geom.Color
	Size       float64
	StartAngle float64 // ShapeSector only, radians
	EndAngle   float64 // ShapeSector only, radians
	Offset     geom.Vector2[float64]
}

// ImagePaint carries the only per-draw state an image quad has.
type ImagePaint struct {
	Opacity uint8
}

// PolygonPaint colors a filled polygon.
type PolygonPaint struct {
	Color geom.Color
}

// ImageInfo is one placed image quad referencing a deduplicated image store
// slot.
type ImageInfo struct {
	StoreIndex int
	Vertices   [4]ImageVertex
}

// WorldRenderSet accumulates map-space geometry for one render bundle.
// Decoded images are deduplicated by pointer identity, so each tile's raster
// can be referenced by many image quads (e.g. wrapped world copies) without
// re-uploading bytes. ScreenRef holds marker geometry whose extrusion
// normals are in pixels while positions stay in world coordinates, so
// markers keep their screen size at any zoom.
type WorldRenderSet struct {
	Polygons   Tessellation
	Lines      Tessellation
	ScreenRef  Tessellation
	Points     []PointInstance
	Images     []ImageInfo
	ClipArea   *Tessellation
	dpiScale   float64
	imageStore []*geom.DecodedImage
	bufferSize int
}

func NewWorldRenderSet() *WorldRenderSet {
	return &WorldRenderSet{dpiScale: 1}
}

func (s *WorldRenderSet) ApproxBufferSize() int { return s.bufferSize }

// SetDpiScale sets the factor every pixel dimension added afterwards (line
// widths, marker sizes) is multiplied by. Captured once at bundle creation.
func (s *WorldRenderSet) SetDpiScale(scale float64) {
	if scale > 0 {
		s.dpiScale = scale
	}
}

// ClipAreaFrom tessellates polygon as a stencil mask, overwriting any
// previous clip area.
func (s *WorldRenderSet) ClipAreaFrom(polygon geom.Polygon[float64]) {
	t := TessellatePolygon(polygon, geom.Color{A: 255})
	s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
	s.ClipArea = &t
}

// AddPolygon tessellates and appends polygon to the set's fill geometry.
func (s *WorldRenderSet) AddPolygon(polygon geom.Polygon[float64], paint PolygonPaint) {
	t := TessellatePolygon(polygon, paint.Color)
	s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
	s.Polygons.append(t)
}

// AddLine tessellates and appends a stroked contour to the set's line
// geometry. minResolution bounds how far the stroke may be extruded relative
// to each segment's own length.
func (s *WorldRenderSet) AddLine(line geom.Contour[float64], paint LinePaint, minResolution float64) {
	scaled := paint
	scaled.Width *= s.dpiScale
	scaled.Offset *= s.dpiScale
	t := TessellateLine(line, scaled, minResolution)
	s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
	s.Lines.append(t)
}

// AddPoint appends a point marker. Dots go into the instanced sprite buffer;
// circle, square, and sector shapes are tessellated into the screen-ref
// buffer.
func (s *WorldRenderSet) AddPoint(position geom.Point3[float64], paint PointPaint) {
	size := paint.Size * s.dpiScale
	switch paint.Shape {
	case ShapeCircle:
		t := tessellateCircleSector(position, size/2, 0, 2*math.Pi, paint.Color)
		s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
		s.ScreenRef.append(t)
	case ShapeSector:
		t := tessellateCircleSector(position, size/2, paint.StartAngle, paint.EndAngle, paint.Color)
		s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
		s.ScreenRef.append(t)
	case ShapeSquare:
		t := tessellateSquare(position, size, paint.Color)
		s.bufferSize += len(t.Vertices)*sizeofPolyVertex + len(t.Indices)*4
		s.ScreenRef.append(t)
	default:
		s.Points = append(s.Points, PointInstance{
			Position: [3]float32{float32(position.X), float32(position.Y), float32(position.Z)},
			Size:     float32(size),
			Color:    paint.Color.ToFloat32(),
		})
		s.bufferSize += sizeofPointInstance
	}
}

// AddImage places an already-decoded image as a textured quad, deduplicating
// the backing bytes against anything already added to this set.
func (s *WorldRenderSet) AddImage(image *geom.DecodedImage, vertices [4]geom.Point2[float64], paint ImagePaint) {
	opacity := float32(paint.Opacity) / 255.0

	idx := s.addImageToStore(image)
	s.Images = append(s.Images, ImageInfo{
		StoreIndex: idx,
		Vertices: [4]ImageVertex{
			{Position: [2]float32{float32(vertices[0].X), float32(vertices[0].Y)}, Opacity: opacity, TexCoords: [2]float32{0, 1}},
			{Position: [2]float32{float32(vertices[1].X), float32(vertices[1].Y)}, Opacity: opacity, TexCoords: [2]float32{0, 0}},
			{Position: [2]float32{float32(vertices[2].X), float32(vertices[2].Y)}, Opacity: opacity, TexCoords: [2]float32{1, 1}},
			{Position: [2]float32{float32(vertices[3].X), float32(vertices[3].Y)}, Opacity: opacity, TexCoords: [2]float32{1, 0}},
		},
	})
}

func (s *WorldRenderSet) addImageToStore(image *geom.DecodedImage) int {
	for i, stored := range s.imageStore {
		if stored == image {
			return i
		}
	}
	s.bufferSize += image.ApproxByteSize()
	idx := len(s.imageStore)
	s.imageStore = append(s.imageStore, image)
	return idx
}

func (s *WorldRenderSet) ImageStore() []*geom.DecodedImage { return s.imageStore }

func (s *WorldRenderSet) IsEmpty() bool {
	return len(s.Polygons.Vertices) == 0 && len(s.Lines.Vertices) == 0 &&
		len(s.ScreenRef.Vertices) == 0 && len(s.Points) == 0 && len(s.Images) == 0
}

const (
	sizeofPolyVertex    = 4*3 + 4*4 + 4*2 + 4
	sizeofPointInstance = 4*3 + 4 + 4*4
)
