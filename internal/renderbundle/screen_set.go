package renderbundle

import (
	"time"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// ScreenSetVertex is one vertex of a screen-space label glyph mesh.
type ScreenSetVertex struct {
	Position [2]float32
	Color    [4]uint8
}

// ScreenSetImageVertex is one corner of a screen-space marker quad.
type ScreenSetImageVertex struct {
	Position  [2]float32
	TexCoords [2]float32
}

// RenderSetState drives the label/marker fade animation.
type RenderSetState int

const (
	RenderSetHidden RenderSetState = iota
	RenderSetFadingIn
	RenderSetDisplayed
	RenderSetFadingOut
)

func (s RenderSetState) IsDisplayed() bool {
	return s == RenderSetFadingIn || s == RenderSetDisplayed
}

// ScreenSetData is either a tessellated glyph mesh (label) or a single image
// quad (marker).
type ScreenSetData struct {
	Vertices []ScreenSetVertex
	Indices  []uint32

	ImageVertices [4]ScreenSetImageVertex
	Image         *geom.DecodedImage
	isImage       bool
}

// ScreenRenderSet is one screen-space decoration (label or marker) anchored
// to a map point, deconflicted and faded by internal/gpu's second render
// pass.
type ScreenRenderSet struct {
	AnimationDuration time.Duration
	AnchorPoint       [3]float32
	Bbox              geom.Rect[float32]
	HideOnOverlay     bool
	Data              ScreenSetData
}

// TextShaper is the font-shaping collaborator this package carves out: it
// only arranges whatever glyph mesh the shaper hands back, it never
// rasterizes or measures text itself.
type TextShaper interface {
	Shape(text string, sizePx float64) (ShapedText, error)
}

// ShapedText is a flattened glyph mesh plus color, ready to become a
// ScreenRenderSet.
type ShapedText struct {
	Vertices []ScreenSetVertex
	Indices  []uint32
}

// NewFromLabel builds a label ScreenRenderSet from already-shaped glyph
// geometry. Labels hide when they overlap a higher-priority set.
func NewFromLabel(position geom.Point3[float64], shaped ShapedText, offset geom.Vector2[float64]) (*ScreenRenderSet, bool) {
	if len(shaped.Vertices) == 0 {
		return nil, false
	}

	bbox, ok := boundingRectOfVertices(shaped.Vertices, offset)
	if !ok {
		return nil, false
	}

	return &ScreenRenderSet{
		AnimationDuration: 300 * time.Millisecond,
		AnchorPoint:       [3]float32{float32(position.X), float32(position.Y), float32(position.Z)},
		Bbox:              bbox,
		HideOnOverlay:     true,
		Data:              ScreenSetData{Vertices: shaped.Vertices, Indices: shaped.Indices},
	}, true
}

func boundingRectOfVertices(verts []ScreenSetVertex, offset geom.Vector2[float64]) (geom.Rect[float32], bool) {
	if len(verts) == 0 {
		return geom.Rect[float32]{}, false
	}
	ox, oy := float32(offset.DX), float32(offset.DY)
	pts := make([]geom.Point2[float32], len(verts))
	for i, v := range verts {
		pts[i] = geom.Point2[float32]{X: v.Position[0] + ox, Y: v.Position[1] + oy}
	}
	return geom.RectFromPoints(pts)
}

// NewFromMarkerImage builds an image-marker ScreenRenderSet anchored at
// position, with anchor fraction `anchor` (0,0 = top-left, 1,1 =
// bottom-right) of the image's pixel size.
func NewFromMarkerImage(position geom.Point3[float64], image *geom.DecodedImage, anchor geom.Point2[float64]) *ScreenRenderSet {
	size := image.Size()
	w, h := float32(size.Width), float32(size.Height)
	ax, ay := float32(anchor.X)*w, float32(anchor.Y)*h

	bbox := geom.NewRect(-ax, ay-h, w-ax, ay)

	vertices := [4]ScreenSetImageVertex{
		{Position: [2]float32{bbox.XMin, bbox.YMin}, TexCoords: [2]float32{0, 1}},
		{Position: [2]float32{bbox.XMin, bbox.YMax}, TexCoords: [2]float32{0, 0}},
		{Position: [2]float32{bbox.XMax, bbox.YMin}, TexCoords: [2]float32{1, 1}},
		{Position: [2]float32{bbox.XMax, bbox.YMax}, TexCoords: [2]float32{1, 0}},
	}

	return &ScreenRenderSet{
		AnimationDuration: 0,
		AnchorPoint:       [3]float32{float32(position.X), float32(position.Y), float32(position.Z)},
		Bbox:              bbox,
		HideOnOverlay:     false,
		Data:              ScreenSetData{ImageVertices: vertices, Image: image, isImage: true},
	}
}

func (d ScreenSetData) IsImage() bool { return d.isImage }
