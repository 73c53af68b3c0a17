// Package featurelayer implements FeatureLayer: a layer that owns a set
// of features and a Symbol, rendering and incrementally updating them as
// geometry or style edits are queued.
package featurelayer

import (
	"sync"

	"github.com/miguelemosreverte/galileo/internal/renderbundle"
)

// PendingKind distinguishes the three update shapes FeatureStore
// tracks: geometry+style re-symbolize, style-only re-symbolize, and removal.
type PendingKind int

const (
	PendingUpdate PendingKind = iota
	PendingUpdateStyle
	PendingDelete
)

// pendingEntry is one queued mutation, keyed by feature index.
type pendingEntry struct {
	kind  PendingKind
	index int
}

// FeatureID indexes a feature within a FeatureStore. Each feature keeps
// its own render bundle (see entry.bundle), so a FeatureID doubles as the
// handle to every primitive the feature contributed to the frame.
type FeatureID int

type entry[F any] struct {
	feature    F
	hidden     bool
	bundle     *renderbundle.RenderBundle
	hasBundle  bool
	hasProject bool
	deleted    bool
}

// FeatureStore is the indexed feature vector plus pending-updates queue.
// Mutating a feature through EditGeometry/EditStyle enqueues
// exactly one update per returned Editor, regardless of how many times
// Editor.Get is called.
type FeatureStore[F any] struct {
	mu      sync.Mutex
	entries []*entry[F]
	pending []pendingEntry
	version uint64
}

func NewFeatureStore[F any]() *FeatureStore[F] {
	return &FeatureStore[F]{}
}

// Add appends a new feature and returns its id. New features have no
// bundle yet, so the layer's Render picks them up on its "no render
// indices" branch without needing a pending-update entry.
func (s *FeatureStore[F]) Add(f F) FeatureID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry[F]{feature: f})
	s.version++
	return FeatureID(len(s.entries) - 1)
}

// Version increments on every structural change (add, delete, visibility
// toggle, queued edit); the layer uses it to know when its combined render
// bundle has gone stale.
func (s *FeatureStore[F]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *FeatureStore[F]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FeatureStore[F]) Get(id FeatureID) (F, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero F
	if int(id) < 0 || int(id) >= len(s.entries) || s.entries[id].deleted {
		return zero, false
	}
	return s.entries[id].feature, true
}

func (s *FeatureStore[F]) SetHidden(id FeatureID, hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= 0 && int(id) < len(s.entries) && s.entries[id].hidden != hidden {
		s.entries[id].hidden = hidden
		s.version++
	}
}

// Delete marks id deleted, dropping it from future rendering, and queues a
// PendingDelete entry.
func (s *FeatureStore[F]) Delete(id FeatureID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.entries) {
		return
	}
	s.entries[id].deleted = true
	s.pending = append(s.pending, pendingEntry{kind: PendingDelete, index: int(id)})
	s.version++
}

// Editor is a scoped mutable handle on one feature: the first Get appends
// exactly one entry to the store's pending queue. reproject selects
// whether that entry is a full Update (re-project + re-symbolize) or an
// UpdateStyle (re-symbolize only).
type Editor[F any] struct {
	store     *FeatureStore[F]
	id        FeatureID
	reproject bool
	queued    bool
}

// EditGeometry returns an Editor that queues a full Update on first Get.
func (s *FeatureStore[F]) EditGeometry(id FeatureID) *Editor[F] {
	return &Editor[F]{store: s, id: id, reproject: true}
}

// EditStyle returns an Editor that queues an UpdateStyle on first Get.
func (s *FeatureStore[F]) EditStyle(id FeatureID) *Editor[F] {
	return &Editor[F]{store: s, id: id, reproject: false}
}

// Get returns a pointer into the stored feature, enqueueing exactly one
// pending update the first time it is called on this Editor.
func (e *Editor[F]) Get() *F {
	if !e.queued {
		e.store.mu.Lock()
		kind := PendingUpdateStyle
		if e.reproject {
			kind = PendingUpdate
		}
		e.store.pending = append(e.store.pending, pendingEntry{kind: kind, index: int(e.id)})
		e.store.version++
		e.store.mu.Unlock()
		e.queued = true
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return &e.store.entries[e.id].feature
}

// drainPending returns and clears the queue (called once per frame by the
// owning FeatureLayer).
func (s *FeatureStore[F]) drainPending() []pendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
