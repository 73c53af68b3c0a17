// Package tilecache implements a weighted-capacity cache of prepared tiles
// keyed by (tile index, style), plus a de-duplicating cell that lets
// several styles of the same tile index share one decoded source tile. The
// cache applies equally to raster and vector pipelines; only the vector
// side uses the shared-cell machinery.
package tilecache

import (
	"sync"
	"sync/atomic"
)

// MvtCell is a write-once cell that many (index, style) cache entries can
// share, so the underlying tile is fetched and decoded exactly once
// regardless of how many styles request it.
type MvtCell[T any] struct {
	once  sync.Once
	value T
	err   error
	ready atomic.Bool
}

func NewMvtCell[T any]() *MvtCell[T] { return &MvtCell[T]{} }

// GetOrInit runs f exactly once across all callers sharing this cell and
// caches its result.
func (c *MvtCell[T]) GetOrInit(f func() (T, error)) (T, error) {
	c.once.Do(func() {
		c.value, c.err = f()
		c.ready.Store(true)
	})
	return c.value, c.err
}

// Get returns the cell's value if it has already resolved, without blocking
// or triggering computation.
func (c *MvtCell[T]) Get() (T, bool) {
	var zero T
	if !c.ready.Load() || c.err != nil {
		return zero, false
	}
	return c.value, true
}

// Failed reports whether the cell resolved to an error.
func (c *MvtCell[T]) Failed() bool {
	return c.ready.Load() && c.err != nil
}
