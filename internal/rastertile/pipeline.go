// Package rastertile implements the raster tile pipeline: fetch,
// persistently cache, decode, and fade in raster tiles. Each tile moves
// through a Loading/Loaded/Error state machine; the persistent cache is
// consulted before any network request, and offline mode turns a cache
// miss into a typed error instead of a fetch.
package rastertile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/logx"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// BytesLoader is the external network/filesystem collaborator this package
// carves out: this package never opens a socket itself.
type BytesLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// PersistentCache is the disk-cache collaborator, keyed by the tile's
// source URL.
type PersistentCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// ImageDecoder is the external image-decode collaborator (PNG/JPEG -> RGBA).
type ImageDecoder interface {
	Decode(data []byte) (*geom.DecodedImage, error)
}

// URLSource builds a tile's source URL from its index.
type URLSource func(index tileschema.TileIndex) string

type tileState int

const (
	stateLoading tileState = iota
	stateLoaded
	stateError
)

type tileEntry struct {
	state     tileState
	image     *geom.DecodedImage
	fadeStart time.Time
	fadedIn   bool
}

// RasterTilePipeline fetches and decodes raster tiles on demand, caching
// decoded images in memory and deduplicating concurrent requests for the
// same index.
type RasterTilePipeline struct {
	loader      BytesLoader
	cache       PersistentCache
	decoder     ImageDecoder
	urlSource   URLSource
	offlineMode bool
	fadeIn      time.Duration

	mu    sync.Mutex
	tiles map[tileschema.TileIndex]*tileEntry
}

func New(loader BytesLoader, cache PersistentCache, decoder ImageDecoder, urlSource URLSource, offlineMode bool) *RasterTilePipeline {
	return &RasterTilePipeline{
		loader:      loader,
		cache:       cache,
		decoder:     decoder,
		urlSource:   urlSource,
		offlineMode: offlineMode,
		fadeIn:      300 * time.Millisecond,
		tiles:       make(map[tileschema.TileIndex]*tileEntry),
	}
}

// SetFadeIn changes how long newly loaded tiles take to fade to full
// opacity.
func (p *RasterTilePipeline) SetFadeIn(d time.Duration) {
	if d >= 0 {
		p.fadeIn = d
	}
}

// Get returns the decoded image for index without blocking, reporting
// ok=false while the tile is still loading, failed, or has never been
// requested.
func (p *RasterTilePipeline) Get(index tileschema.TileIndex) (*geom.DecodedImage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.tiles[index]
	if !ok || e.state != stateLoaded {
		return nil, false
	}
	return e.image, true
}

// Request ensures index is loading or already resolved, launching exactly
// one background fetch per tile index regardless of how many callers ask
// concurrently.
func (p *RasterTilePipeline) Request(ctx context.Context, index tileschema.TileIndex) {
	p.mu.Lock()
	if _, exists := p.tiles[index]; exists {
		p.mu.Unlock()
		return
	}
	p.tiles[index] = &tileEntry{state: stateLoading}
	p.mu.Unlock()
	go p.load(ctx, index)
}

func (p *RasterTilePipeline) load(ctx context.Context, index tileschema.TileIndex) {
	image, err := p.fetchAndDecode(ctx, index)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		logx.Warnf("raster tile %+v failed to load: %v", index, err)
		p.tiles[index] = &tileEntry{state: stateError}
		return
	}
	p.tiles[index] = &tileEntry{state: stateLoaded, image: image, fadeStart: time.Now()}
}

// fetchAndDecode checks the persistent cache first, then (unless offline)
// the network, writing back to the cache on a network hit.
func (p *RasterTilePipeline) fetchAndDecode(ctx context.Context, index tileschema.TileIndex) (*geom.DecodedImage, error) {
	url := p.urlSource(index)

	if p.cache != nil {
		if data, ok := p.cache.Get(url); ok {
			return p.decoder.Decode(data)
		}
	}

	if p.offlineMode {
		return nil, galerr.New(galerr.KindNotFound, fmt.Sprintf("tile %s not in cache and offline mode is enabled", url))
	}

	data, err := p.loader.Load(ctx, url)
	if err != nil {
		return nil, galerr.Wrap(galerr.KindIO, "loading raster tile bytes", err)
	}

	if p.cache != nil {
		if err := p.cache.Put(url, data); err != nil {
			logx.Warnf("failed to write persistent cache entry for %s: %v", url, err)
		}
	}

	image, err := p.decoder.Decode(data)
	if err != nil {
		return nil, galerr.Wrap(galerr.KindImageDecode, "decoding raster tile", err)
	}
	return image, nil
}

// FadeOpacity returns the [0,1] opacity a tile should render at, easing
// in linearly over fadeIn from the moment it finished loading.
func (p *RasterTilePipeline) FadeOpacity(index tileschema.TileIndex, now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.tiles[index]
	if !ok || e.state != stateLoaded {
		return 0
	}
	if e.fadedIn {
		return 1
	}

	elapsed := now.Sub(e.fadeStart)
	if elapsed >= p.fadeIn {
		e.fadedIn = true
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(p.fadeIn)
}
