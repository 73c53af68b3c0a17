package vtile

import (
	"context"
	"fmt"
	"sync"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// BytesLoader is the network/filesystem collaborator this package carves
// out, shared in shape with internal/rastertile's interface of the same
// name and role.
type BytesLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// URLSource builds a vector tile's source URL for an index.
type URLSource func(index tileschema.TileIndex) string

// VectorTilePipeline fetches and decodes MVT tiles, deduplicating
// concurrent requests for the same index with an in-flight channel map.
// Decoded tiles are retained so style changes restyle without refetching.
type VectorTilePipeline struct {
	loader    BytesLoader
	urlSource URLSource

	tilesMu  sync.RWMutex
	tiles    map[tileschema.TileIndex]*MvtTile
	inFlight map[tileschema.TileIndex]chan struct{}
	inFlMu   sync.Mutex
}

func New(loader BytesLoader, urlSource URLSource) *VectorTilePipeline {
	return &VectorTilePipeline{
		loader:    loader,
		urlSource: urlSource,
		tiles:     make(map[tileschema.TileIndex]*MvtTile),
		inFlight:  make(map[tileschema.TileIndex]chan struct{}),
	}
}

// Get returns the decoded tile for index if it has already been fetched.
func (p *VectorTilePipeline) Get(index tileschema.TileIndex) (*MvtTile, bool) {
	p.tilesMu.RLock()
	defer p.tilesMu.RUnlock()
	t, ok := p.tiles[index]
	return t, ok
}

// Fetch returns the decoded tile for index, fetching and parsing it if
// necessary. Concurrent callers for the same index share one fetch.
func (p *VectorTilePipeline) Fetch(ctx context.Context, index tileschema.TileIndex) (*MvtTile, error) {
	p.tilesMu.RLock()
	if t, ok := p.tiles[index]; ok {
		p.tilesMu.RUnlock()
		return t, nil
	}
	p.tilesMu.RUnlock()

	p.inFlMu.Lock()
	if ch, exists := p.inFlight[index]; exists {
		p.inFlMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		p.tilesMu.RLock()
		t, ok := p.tiles[index]
		p.tilesMu.RUnlock()
		if !ok {
			return nil, galerr.New(galerr.KindIO, fmt.Sprintf("shared fetch of vector tile %+v failed", index))
		}
		return t, nil
	}

	ch := make(chan struct{})
	p.inFlight[index] = ch
	p.inFlMu.Unlock()
	tile, err := p.fetchAndDecode(ctx, index)

	// Store the tile before releasing the in-flight entry, so a waiter or a
	// later caller never finds neither of them and starts a second load.
	if err == nil {
		p.tilesMu.Lock()
		p.tiles[index] = tile
		p.tilesMu.Unlock()
	}

	p.inFlMu.Lock()
	delete(p.inFlight, index)
	close(ch)
	p.inFlMu.Unlock()
	if err != nil {
		return nil, err
	}
	return tile, nil
}

func (p *VectorTilePipeline) fetchAndDecode(ctx context.Context, index tileschema.TileIndex) (*MvtTile, error) {
	url := p.urlSource(index)

	data, err := p.loader.Load(ctx, url)
	if err != nil {
		return nil, galerr.Wrap(galerr.KindIO, fmt.Sprintf("loading vector tile %s", url), err)
	}

	tile, err := DecodeTile(data, true)
	if err != nil {
		return nil, galerr.Wrap(galerr.KindTileProcessingInternal, "decoding vector tile", err)
	}
	return tile, nil
}
