package vtile

import "sync/atomic"

// StyleID is a process-wide identifier assigned to a style value so the
// tile cache can key prepared tiles by (TileIndex, StyleID) without ever
// comparing two VectorTileStyle values for equality.
type StyleID uint64

var nextStyleID atomic.Uint64

// NewStyleID mints a fresh, unique StyleID. Call it once per distinct
// style value (typically when a VectorLayer is constructed or its
// style is replaced), then reuse the returned id for every tile request.
func NewStyleID() StyleID {
	return StyleID(nextStyleID.Add(1))
}
