package vtile

import (
	"context"
	"sync"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/logx"
	"github.com/miguelemosreverte/galileo/internal/mapctl"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tilecache"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// VectorLayer adapts a VectorTilePipeline to mapctl.Layer, wiring the
// MVT fetch/decode/style pipeline and cache/substitution around
// it — the vector-tile counterpart of rastertile.RasterLayer. Unlike raster
// tiles, a vector tile's prepared geometry depends on the style it was built
// with, so cache entries are keyed by this layer's own StyleID rather than
// the shared constant raster tiles use.
type VectorLayer struct {
	schema   *tileschema.TileSchema
	pipeline *VectorTilePipeline
	style    VectorTileStyle
	styleID  StyleID
	cache    *tilecache.TileContainer[tileschema.TileIndex]
	proc     VtProcessor
	dpiScale float64

	messenger mapctl.Messenger

	mu        sync.Mutex
	requested map[tileschema.TileIndex]bool
	prevFrame []tilecache.Displayed[tileschema.TileIndex]

	combined      *renderbundle.RenderBundle
	combinedStyle StyleID
}

func NewVectorLayer(schema *tileschema.TileSchema, pipeline *VectorTilePipeline, style VectorTileStyle, cacheCapacityBytes int) *VectorLayer {
	return &VectorLayer{
		schema:    schema,
		pipeline:  pipeline,
		style:     style,
		styleID:   NewStyleID(),
		cache:     tilecache.New[tileschema.TileIndex](cacheCapacityBytes),
		dpiScale:  1,
		messenger: mapctl.NullMessenger{},
		requested: make(map[tileschema.TileIndex]bool),
	}
}

// SetDpiScale sets the factor pixel dimensions in prepared tiles (line
// widths, marker sizes) are multiplied by on HiDPI displays. Takes effect
// for tiles prepared after the call.
func (l *VectorLayer) SetDpiScale(scale float64) {
	if scale > 0 {
		l.dpiScale = scale
	}
}

func (l *VectorLayer) SetMessenger(m mapctl.Messenger) { l.messenger = m }

// SetTextShaper installs the font-shaping collaborator label features need;
// without one, label-styled features degrade to a plain dot
// (VtProcessor.emitLabel's fallback).
func (l *VectorLayer) SetTextShaper(shaper renderbundle.TextShaper) {
	l.proc.Shaper = shaper
}

// TileSchema satisfies mapctl.TileSchemaProvider.
func (l *VectorLayer) TileSchema() *tileschema.TileSchema { return l.schema }

// SetStyle replaces the style this layer renders with. A fresh StyleID is
// minted so tiles prepared under the previous style are never mistaken for
// ones built against the new rules.
func (l *VectorLayer) SetStyle(style VectorTileStyle) {
	l.style = style
	l.styleID = NewStyleID()
}

// Prepare requests decoding+styling for every tile the view needs, without
// blocking for any of them to finish.
func (l *VectorLayer) Prepare(view mapview.MapView) {
	indices, ok := l.schema.IterTiles(view)
	if !ok {
		return
	}
	for _, wi := range indices {
		l.ensureRequested(wi.TileIndex)
	}
}

func (l *VectorLayer) ensureRequested(index tileschema.TileIndex) {
	if l.cache.Contains(index, uint64(l.styleID)) {
		return
	}

	l.mu.Lock()
	if l.requested[index] {
		l.mu.Unlock()
		return
	}
	l.requested[index] = true
	l.mu.Unlock()
	go l.fetchAndPrepare(index)
}

// fetchAndPrepare fetches (or awaits an in-flight fetch for) the tile's MVT
// payload through the cache's shared cell, then styles it into a
// RenderBundle cached for this layer's current StyleID, waking the map when
// done. The shared cell guarantees one decode per tile index even when
// several style variants race for it.
func (l *VectorLayer) fetchAndPrepare(index tileschema.TileIndex) {
	defer func() {
		l.mu.Lock()
		delete(l.requested, index)
		l.mu.Unlock()
	}()

	styleID := uint64(l.styleID)
	cell := l.cache.StartLoadingTile(index, styleID)
	tileAny, err := cell.GetOrInit(func() (any, error) {
		return l.pipeline.Fetch(context.Background(), index)
	})
	if err != nil {
		logx.Warnf("vector tile %+v failed to load: %v", index, err)
		l.cache.StoreTile(index, styleID, cell, tilecache.Errored{})
		l.messenger.RequestRedraw()
		return
	}
	tile := tileAny.(*MvtTile)

	bundle := renderbundle.NewRenderBundleWithDpi(l.dpiScale)
	if err := l.proc.Prepare(tile, bundle, index, l.style, l.schema); err != nil {
		logx.Warnf("vector tile %+v failed to prepare: %v", index, err)
		l.cache.StoreTile(index, styleID, cell, tilecache.Errored{})
		l.messenger.RequestRedraw()
		return
	}

	l.cache.StoreTile(index, styleID, cell, tilecache.Loaded{Bundle: bundle})
	l.messenger.RequestRedraw()
}

// FeatureHit is one match returned by FeaturesAt: the layer a feature came
// from plus the feature itself.
type FeatureHit struct {
	LayerName string
	Feature   MvtFeature
}

// FeaturesAt hit-tests mapPoint against every tile in the layer's current
// displayed set (the tile set the last Render call resolved, substitutes
// included), within a tolerance of 2*view.Resolution map units — the
// world-space equivalent of a fixed pixel-space tolerance, since
// VtProcessor.FeatureAt already operates on tile-local geometry transformed
// into world coordinates rather than raw tile pixels.
func (l *VectorLayer) FeaturesAt(mapPoint geom.Point2[float64], view mapview.MapView) []FeatureHit {
	tolerance := 2 * view.Resolution()
	var hits []FeatureHit
	for _, d := range l.prevFrame {
		tileAny, ok := l.cache.GetMvtTile(d.Index)
		if !ok {
			continue
		}
		tile, ok := tileAny.(*MvtTile)
		if !ok {
			continue
		}
		layerName, feature, ok := l.proc.FeatureAt(tile, d.Index, l.schema, mapPoint, tolerance)
		if ok {
			hits = append(hits, FeatureHit{LayerName: layerName, Feature: feature})
		}
	}
	return hits
}

func (l *VectorLayer) indexOps() tilecache.IndexOps[tileschema.TileIndex] {
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

// Render enumerates the tiles view needs and merges the cached, styled
// bundle of each displayed tile (its own tile or a resolved substitute)
// into one combined RenderBundle. A substitute tile draws its own
// already-prepared clip area rather than being re-clipped to the exact gap
// it stands in for. The combined bundle is reused across frames while the
// displayed set stays the same, so the compositor can keep its packed GPU
// buffers instead of re-uploading every frame.
func (l *VectorLayer) Render(view mapview.MapView) *renderbundle.RenderBundle {
	indices, ok := l.schema.IterTiles(view)
	if !ok {
		return nil
	}

	required := make([]tileschema.TileIndex, len(indices))
	for i, wi := range indices {
		required[i] = wi.TileIndex
	}

	displayed, needsRedraw := l.cache.BuildDisplayList(required, uint64(l.styleID), l.indexOps(), l.prevFrame)
	if needsRedraw {
		l.messenger.RequestRedraw()
	}
	if l.combined != nil && l.combinedStyle == l.styleID && displayedEqual(displayed, l.prevFrame) {
		return l.combined
	}
	l.prevFrame = displayed

	out := renderbundle.NewRenderBundle()
	for _, d := range displayed {
		sized, _, ok := l.cache.GetPrepared(d.Index, uint64(l.styleID))
		if !ok {
			continue
		}
		bundle, ok := sized.(*renderbundle.RenderBundle)
		if !ok {
			continue
		}
		out.World.Merge(bundle.World)
		for _, item := range bundle.ScreenItems {
			out.AddScreenItem(item)
		}
	}
	l.combined = out
	l.combinedStyle = l.styleID
	return out
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
