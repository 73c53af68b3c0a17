package tilecache

import (
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru"
)

// Cache sizing defaults: 100 MB total, an average tile of about 100 KB for
// picking the count ceiling, and a 1 KB weight for every entry holding no
// bundle (loading, errored) so loading-state explosions stay bounded.
const (
	DefaultCapacityBytes = 100_000_000
	avgTileSizeBytes     = 100_000
	emptyCellWeight      = 1024
)

// PreparedState is the value a TileContainer slot holds: a tile somewhere
// between "being built" and "packed for the GPU".
type PreparedState interface {
	isPreparedState()
	weight() int
}

type Loading struct{}

func (Loading) isPreparedState() {}
func (Loading) weight() int      { return emptyCellWeight }

type Loaded struct{ Bundle Sized }

func (Loaded) isPreparedState() {}
func (l Loaded) weight() int {
	if l.Bundle == nil {
		return emptyCellWeight
	}
	return l.Bundle.ApproxBufferSize()
}

type Packed struct{ Bundle Sized }

func (Packed) isPreparedState() {}
func (p Packed) weight() int {
	if p.Bundle == nil {
		return emptyCellWeight
	}
	return p.Bundle.ApproxBufferSize()
}

type Errored struct{}

func (Errored) isPreparedState() {}
func (Errored) weight() int      { return emptyCellWeight }

// Sized is the minimal surface TileContainer needs to weigh a prepared
// tile — renderbundle.RenderBundle and renderbundle.PackedBundle both
// satisfy it.
type Sized interface {
	ApproxBufferSize() int
}

// Key identifies one cache slot: a tile index plus an opaque style
// identifier.
type Key[I comparable] struct {
	Index I
	Style uint64
}

type cacheEntry[I comparable] struct {
	mvtCell *MvtCell[any]
	state   PreparedState
}

// TileContainer is the weighted-capacity LRU cache of tile states. I is
// the caller's concrete tile index type (tileschema.TileIndex in practice);
// kept generic so this package carries no dependency on tileschema.
//
// golang-lru's Cache evicts by item count, not byte weight, so this wraps
// it with a generous count ceiling and enforces the real byte budget by
// evicting the LRU tail manually after every insert.
type TileContainer[I comparable] struct {
	mu         sync.Mutex
	cache      *lru.Cache
	mvtTiles   map[I]weak.Pointer[MvtCell[any]]
	capacity   int
	usedWeight int
}

func New[I comparable](capacityBytes int) *TileContainer[I] {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	tc := &TileContainer[I]{
		mvtTiles: make(map[I]weak.Pointer[MvtCell[any]]),
		capacity: capacityBytes,
	}
	// The evict callback is the single place weight is released, so the
	// accounting stays right whether an entry leaves through the manual
	// byte-budget loop below or through the LRU's own count ceiling. It
	// runs synchronously under tc.mu (all cache mutations are), so it must
	// not lock.
	tc.cache, _ = lru.NewWithEvict(capacityBytes/avgTileSizeBytes+1, func(_, value interface{}) {
		tc.usedWeight -= value.(cacheEntry[I]).state.weight()
	})
	return tc
}

func (tc *TileContainer[I]) Contains(index I, style uint64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	_, ok := tc.cache.Peek(Key[I]{Index: index, Style: style})
	return ok
}

// StartLoadingTile returns the shared MvtCell for index, creating one if no
// live cell exists yet for it, and records a Loading placeholder at
// (index, style) so concurrent requests for the same style see it's already
// in flight.
func (tc *TileContainer[I]) StartLoadingTile(index I, style uint64) *MvtCell[any] {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	cell := tc.liveMvtCellLocked(index)
	if cell == nil {
		cell = NewMvtCell[any]()
		tc.mvtTiles[index] = weak.Make(cell)
	}

	tc.insertEntryLocked(index, style, cacheEntry[I]{mvtCell: cell, state: Loading{}})
	return cell
}

// StoreTile records the prepared/packed/errored state for (index, style),
// reusing a previously obtained MvtCell.
func (tc *TileContainer[I]) StoreTile(index I, style uint64, mvtCell *MvtCell[any], state PreparedState) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.insertEntryLocked(index, style, cacheEntry[I]{mvtCell: mvtCell, state: state})
}

// GetPrepared returns the render bundle for (index, style) if it has
// finished building but not yet been packed for the GPU.
func (tc *TileContainer[I]) GetPrepared(index I, style uint64) (Sized, *MvtCell[any], bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.cache.Get(Key[I]{Index: index, Style: style})
	if !ok {
		return nil, nil, false
	}
	e := v.(cacheEntry[I])
	loaded, ok := e.state.(Loaded)
	if !ok {
		return nil, nil, false
	}
	return loaded.Bundle, e.mvtCell, true
}

// GetPacked returns the GPU-ready bundle for (index, style) if present.
func (tc *TileContainer[I]) GetPacked(index I, style uint64) (Sized, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.cache.Get(Key[I]{Index: index, Style: style})
	if !ok {
		return nil, false
	}
	e := v.(cacheEntry[I])
	packed, ok := e.state.(Packed)
	if !ok {
		return nil, false
	}
	return packed.Bundle, true
}

// GetMvtTile returns the source tile payload for index if some cache entry
// has already resolved it, regardless of style.
func (tc *TileContainer[I]) GetMvtTile(index I) (any, bool) {
	tc.mu.Lock()
	cell := tc.liveMvtCellLocked(index)
	tc.mu.Unlock()
	if cell == nil {
		return nil, false
	}
	return cell.Get()
}

func (tc *TileContainer[I]) liveMvtCellLocked(index I) *MvtCell[any] {
	wp, ok := tc.mvtTiles[index]
	if !ok {
		return nil
	}
	cell := wp.Value()
	if cell == nil {
		delete(tc.mvtTiles, index)
	}
	return cell
}

func (tc *TileContainer[I]) insertEntryLocked(index I, style uint64, e cacheEntry[I]) {
	key := Key[I]{Index: index, Style: style}
	// Replacing an existing key does not fire the evict callback, so the
	// old entry's weight is released here.
	if old, ok := tc.cache.Peek(key); ok {
		tc.usedWeight -= old.(cacheEntry[I]).state.weight()
	}
	tc.usedWeight += e.state.weight()
	tc.cache.Add(key, e)

	for tc.usedWeight > tc.capacity && tc.cache.Len() > 0 {
		if _, _, ok := tc.cache.RemoveOldest(); !ok {
			break
		}
	}
}

// Weight returns the cache's current total weighted size in bytes.
func (tc *TileContainer[I]) Weight() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.usedWeight
}

func (tc *TileContainer[I]) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.cache.Len()
}

// hasDisplayable reports whether (index, style) holds geometry a frame can
// draw: either a prepared bundle awaiting GPU upload or an already packed
// one.
func (tc *TileContainer[I]) hasDisplayable(index I, style uint64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.cache.Get(Key[I]{Index: index, Style: style})
	if !ok {
		return false
	}
	switch v.(cacheEntry[I]).state.(type) {
	case Loaded, Packed:
		return true
	default:
		return false
	}
}
