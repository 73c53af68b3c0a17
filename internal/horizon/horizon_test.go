package horizon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
)

// Every triangle's face normal must point outward, radially, so CCW
// front-face culling shows the visible side of the ring.
func TestGenerateMesh_ConsistentWinding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segments = 8
	mesh := GenerateMesh(cfg)

	require := assert.New(t)
	require.Equal(0, len(mesh.Indices)%3)

	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a := mesh.Vertices[mesh.Indices[i]].Position
		b := mesh.Vertices[mesh.Indices[i+1]].Position
		c := mesh.Vertices[mesh.Indices[i+2]].Position

		ab := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		ac := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		normal := [3]float32{
			ab[1]*ac[2] - ab[2]*ac[1],
			ab[2]*ac[0] - ab[0]*ac[2],
			ab[0]*ac[1] - ab[1]*ac[0],
		}

		centroidX := (a[0] + b[0] + c[0]) / 3
		centroidY := (a[1] + b[1] + c[1]) / 3
		outward := centroidX*normal[0] + centroidY*normal[1]
		require.GreaterOrEqual(outward, float32(0), "triangle %d should face outward", i/3)
	}
}

func TestTransform_NonRenderableWhenUnprojected(t *testing.T) {
	view := mapview.MapView{}
	_, ok := Transform(view, DefaultConfig())
	assert.False(t, ok)
}

func TestTransform_ScalesByResolutionAndHalfExtent(t *testing.T) {
	view := mapview.NewProjected(geom.NewPoint2(10.0, 20.0), 2).
		WithSize(geom.Size[float64]{Width: 100, Height: 200})
	m, ok := Transform(view, DefaultConfig())
	assert.True(t, ok)

	// Translation column should carry the projected position through.
	assert.InDelta(t, 10.0, m[12], 1e-9)
	assert.InDelta(t, 20.0, m[13], 1e-9)

	// Diagonal carries min(half_w, half_h) * resolution * k = 50 * 2 * 1.
	assert.InDelta(t, 100.0, m[0], 1e-9)
	assert.InDelta(t, 100.0, m[5], 1e-9)
}
