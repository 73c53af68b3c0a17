// Package tileschema maps projected coordinates and resolution to tile
// indices: the LOD set, tile addressing, and view-to-tile enumeration,
// including world-wrapping copies in X.
package tileschema

import "fmt"

// Lod is one level of detail: resolution strictly decreases as z increases.
type Lod struct {
	Resolution float64
	ZIndex     uint32
}

func NewLod(resolution float64, z uint32) (Lod, error) {
	if resolution <= 0 {
		return Lod{}, fmt.Errorf("galileo: lod resolution must be positive, got %v", resolution)
	}
	return Lod{Resolution: resolution, ZIndex: z}, nil
}
