package rastertile

import (
	"context"
	"time"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapctl"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tilecache"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// rasterStyle is the constant style id raster tiles are cached under: a
// raster layer has no style variants of its own, but tilecache.TileContainer
// is keyed by (index, style) regardless, so every entry shares this one id.
const rasterStyle uint64 = 0

// sizedImage adapts a decoded tile image to tilecache.Sized so it can sit in
// a TileContainer slot without that package knowing about geom.DecodedImage.
type sizedImage struct{ image *geom.DecodedImage }

func (s sizedImage) ApproxBufferSize() int { return s.image.ApproxByteSize() }

// RasterLayer adapts a RasterTilePipeline to mapctl.Layer, wiring tile
// enumeration and the parent/previous-frame substitution policy around it.
// The TileContainer is reused purely for that bookkeeping: raster tiles
// have no separate pack step of their own, so "decoded" and "packed" are
// the same state here.
type RasterLayer struct {
	schema   *tileschema.TileSchema
	pipeline *RasterTilePipeline
	cache    *tilecache.TileContainer[tileschema.TileIndex]
	opacity  uint8

	messenger mapctl.Messenger
	prevFrame []tilecache.Displayed[tileschema.TileIndex]

	combined       *renderbundle.RenderBundle
	combinedOpaque bool
}

// NewRasterLayer builds a layer drawing pipeline's tiles against schema.
// cacheCapacityBytes bounds the bookkeeping cache (tilecache.DefaultCapacityBytes
// if <= 0); the pipeline itself owns the actual decoded-image memory.
func NewRasterLayer(schema *tileschema.TileSchema, pipeline *RasterTilePipeline, cacheCapacityBytes int) *RasterLayer {
	return &RasterLayer{
		schema:    schema,
		pipeline:  pipeline,
		cache:     tilecache.New[tileschema.TileIndex](cacheCapacityBytes),
		opacity:   255,
		messenger: mapctl.NullMessenger{},
	}
}

func (l *RasterLayer) SetMessenger(m mapctl.Messenger) { l.messenger = m }

// TileSchema satisfies mapctl.TileSchemaProvider.
func (l *RasterLayer) TileSchema() *tileschema.TileSchema { return l.schema }

// SetOpacity scales every tile this layer draws, combined multiplicatively
// with each tile's own fade-in opacity.
func (l *RasterLayer) SetOpacity(opacity uint8) { l.opacity = opacity }

// Prepare requests every tile the view needs without blocking.
func (l *RasterLayer) Prepare(view mapview.MapView) {
	indices, ok := l.schema.IterTiles(view)
	if !ok {
		return
	}
	ctx := context.Background()
	for _, wi := range indices {
		l.pipeline.Request(ctx, wi.TileIndex)
	}
}

func (l *RasterLayer) indexOps() tilecache.IndexOps[tileschema.TileIndex] {
	return tilecache.IndexOps[tileschema.TileIndex]{
		Z: func(idx tileschema.TileIndex) uint32 { return idx.Z },
		Parent: func(idx tileschema.TileIndex) (tileschema.TileIndex, bool) {
			subs, ok := l.schema.GetSubstitutes(idx)
			if !ok || len(subs) == 0 {
				return tileschema.TileIndex{}, false
			}
			return subs[0].TileIndex, true
		},
		Bbox: func(idx tileschema.TileIndex) (geom.Rect[float64], bool) {
			return l.schema.TileBbox(idx)
		},
	}
}

// Render enumerates the tiles view needs, refreshes the cache with whatever
// the pipeline has finished decoding, resolves substitutes for the rest via
// tilecache.BuildDisplayList, and draws each displayed tile as a textured
// quad faded in per RasterTilePipeline.FadeOpacity.
func (l *RasterLayer) Render(view mapview.MapView) *renderbundle.RenderBundle {
	indices, ok := l.schema.IterTiles(view)
	if !ok {
		return nil
	}

	required := make([]tileschema.TileIndex, len(indices))
	displayXFor := make(map[tileschema.TileIndex]int64, len(indices))
	for i, wi := range indices {
		required[i] = wi.TileIndex
		displayXFor[wi.TileIndex] = wi.DisplayX
		if image, ok := l.pipeline.Get(wi.TileIndex); ok {
			l.cache.StoreTile(wi.TileIndex, rasterStyle, nil, tilecache.Packed{Bundle: sizedImage{image: image}})
		}
	}

	displayed, needsRedraw := l.cache.BuildDisplayList(required, rasterStyle, l.indexOps(), l.prevFrame)
	if needsRedraw {
		l.messenger.RequestRedraw()
	}
	// Reuse the previous frame's bundle while the displayed set is stable
	// and nothing is mid-fade, so its packed GPU buffers survive.
	if l.combined != nil && l.combinedOpaque && displayedEqual(displayed, l.prevFrame) {
		return l.combined
	}
	l.prevFrame = displayed

	now := time.Now()
	allOpaque := true
	bundle := renderbundle.NewRenderBundle()
	for _, d := range displayed {
		sized, ok := l.cache.GetPacked(d.Index, rasterStyle)
		if !ok {
			continue
		}
		si, ok := sized.(sizedImage)
		if !ok {
			continue
		}

		bbox, ok := l.schema.TileBbox(d.Index)
		if !ok {
			continue
		}
		shift := 0.0
		if dx, ok := displayXFor[d.Requested]; ok {
			if resolution, ok := l.schema.LodResolution(d.Index.Z); ok {
				shift = float64(dx-d.Index.X) * float64(l.schema.TileWidth) * resolution
			}
		}

		vertices := [4]geom.Point2[float64]{
			{X: bbox.XMin + shift, Y: bbox.YMin},
			{X: bbox.XMin + shift, Y: bbox.YMax},
			{X: bbox.XMax + shift, Y: bbox.YMin},
			{X: bbox.XMax + shift, Y: bbox.YMax},
		}

		fade := l.pipeline.FadeOpacity(d.Index, now)
		if fade < 1 {
			allOpaque = false
			l.messenger.RequestRedraw()
		}
		opacity := uint8(fade * float64(l.opacity))
		bundle.World.AddImage(si.image, vertices, renderbundle.ImagePaint{Opacity: opacity})
	}
	l.combined = bundle
	l.combinedOpaque = allOpaque
	return bundle
}

func displayedEqual(a, b []tilecache.Displayed[tileschema.TileIndex]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
