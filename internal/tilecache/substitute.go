package tilecache

import (
	"sort"

	"github.com/miguelemosreverte/galileo/internal/geom"
)

// Displayed is one entry in the per-frame draw list: either the exact tile
// that was requested, or a substitute standing in for it (a coarser parent,
// or whatever was displayed in the previous frame).
type Displayed[I comparable] struct {
	Index        I // the tile actually found in the cache
	Requested    I // the tile the view asked for
	IsSubstitute bool
	Z            uint32 // substitute's own zoom level, for draw ordering
}

// IndexOps is the small set of tileschema-aware operations the substitution
// search needs, injected so this package stays free of a tileschema
// dependency.
type IndexOps[I comparable] struct {
	Z      func(I) uint32
	Parent func(I) (I, bool) // the tile one zoom level coarser covering I
	Bbox   func(I) (geom.Rect[float64], bool)
}

// maxParentJumps bounds the upward-in-z substitute search. Six levels cover
// a top-level-tile to individual-building zoom span without risking an
// unbounded walk on degenerate schemas.
const maxParentJumps = 6

// BuildDisplayList resolves, for each required (index, style) pair, either
// the tile itself (if it holds displayable geometry) or a substitute:
// parents at z-1, z-2, ... up to maxParentJumps, then any tile displayed
// last frame whose bbox intersects the required tile's bbox. The returned
// list is sorted ascending by each entry's own z so coarser substitutes
// draw first, underneath the tiles they stand in for.
func (tc *TileContainer[I]) BuildDisplayList(required []I, style uint64, ops IndexOps[I], previousFrame []Displayed[I]) ([]Displayed[I], bool) {
	seen := make(map[I]bool, len(required))
	var out []Displayed[I]
	requiresRedraw := false

	for _, idx := range required {
		if tc.hasDisplayable(idx, style) {
			if !seen[idx] {
				out = append(out, Displayed[I]{Index: idx, Requested: idx, Z: ops.Z(idx)})
				seen[idx] = true
			}
			continue
		}

		requiresRedraw = true

		if sub, ok := tc.findParentSubstitute(idx, style, ops); ok {
			if !seen[sub] {
				out = append(out, Displayed[I]{Index: sub, Requested: idx, IsSubstitute: true, Z: ops.Z(sub)})
				seen[sub] = true
			}
			continue
		}

		if sub, ok := tc.findPreviousFrameSubstitute(idx, ops, previousFrame); ok {
			if !seen[sub] {
				out = append(out, Displayed[I]{Index: sub, Requested: idx, IsSubstitute: true, Z: ops.Z(sub)})
				seen[sub] = true
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out, requiresRedraw
}

func (tc *TileContainer[I]) findParentSubstitute(idx I, style uint64, ops IndexOps[I]) (I, bool) {
	cur := idx
	for i := 0; i < maxParentJumps; i++ {
		parent, ok := ops.Parent(cur)
		if !ok {
			var zero I
			return zero, false
		}
		if tc.hasDisplayable(parent, style) {
			return parent, true
		}
		cur = parent
	}
	var zero I
	return zero, false
}

func (tc *TileContainer[I]) findPreviousFrameSubstitute(idx I, ops IndexOps[I], previousFrame []Displayed[I]) (I, bool) {
	bbox, ok := ops.Bbox(idx)
	if !ok {
		var zero I
		return zero, false
	}
	for _, d := range previousFrame {
		otherBbox, ok := ops.Bbox(d.Index)
		if !ok {
			continue
		}
		if bbox.Intersects(otherBbox) {
			return d.Index, true
		}
	}
	var zero I
	return zero, false
}
