// Package horizon implements the atmosphere effect: a triangle-ring mesh
// drawn behind everything else when the view is tilted, fading from
// transparent through a horizon band to a uniform sky color.
package horizon

import (
	"math"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
)

// Vertex is one ring mesh vertex: a unit-circle XY position at a given band
// Z, plus the color sampled for that Z.
type Vertex struct {
	Position [3]float32
	Color    [4]uint8
}

// Mesh is the horizon ring geometry, generated once and reused every frame
// (only its transform changes).
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Config controls the ring's vertical extent and coloring.
type Config struct {
	Segments     int
	GroundBreakZ float64 // band 1 goes from -GroundBreakZ to 0
	SkyBreakZ    float64 // band 2 goes from 0 to SkyBreakZ, band 3 is uniform above it
	HorizonColor geom.Color
	SkyColor     geom.Color
	HorizonK     float64 // scale factor applied to min(half_width, half_height) * resolution
}

func DefaultConfig() Config {
	return Config{
		Segments:     64,
		GroundBreakZ: 0.05,
		SkyBreakZ:    0.45,
		HorizonColor: geom.Color{R: 0xC9, G: 0xDC, B: 0xE8, A: 0xFF},
		SkyColor:     geom.Color{R: 0x6E, G: 0x9B, B: 0xD4, A: 0xFF},
		HorizonK:     1.0,
	}
}

// transparentHorizon is HorizonColor with zero alpha, the band-1 lower
// endpoint.
func (c Config) transparentHorizon() geom.Color {
	h := c.HorizonColor
	h.A = 0
	return h
}

// GenerateMesh builds the three-band triangle ring once: transparent to
// horizon color below the ground break, horizon to sky color up to the sky
// break, then a uniform sky cap. Each band is a ring of quads between an
// inner and outer Z level, wound CCW viewed from outside so front-face
// culling with Ccw draws the inside the camera actually sees.
func GenerateMesh(cfg Config) Mesh {
	n := cfg.Segments
	if n < 3 {
		n = 3
	}

	type level struct {
		z     float64
		color geom.Color
	}
	levels := []level{
		{z: -cfg.GroundBreakZ, color: cfg.transparentHorizon()},
		{z: 0, color: cfg.HorizonColor},
		{z: cfg.SkyBreakZ, color: cfg.SkyColor},
		{z: 1, color: cfg.SkyColor},
	}

	var mesh Mesh
	ringStart := make([]uint32, len(levels))
	for li, lv := range levels {
		ringStart[li] = uint32(len(mesh.Vertices))
		for i := 0; i < n; i++ {
			theta := 2 * math.Pi * float64(i) / float64(n)
			x, y := math.Cos(theta), math.Sin(theta)
			mesh.Vertices = append(mesh.Vertices, Vertex{
				Position: [3]float32{float32(x), float32(y), float32(lv.z)},
				Color:    [4]uint8{lv.color.R, lv.color.G, lv.color.B, lv.color.A},
			})
		}
	}

	for li := 0; li+1 < len(levels); li++ {
		lo, hi := ringStart[li], ringStart[li+1]
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			a, b := lo+uint32(i), lo+uint32(j)
			c, d := hi+uint32(i), hi+uint32(j)
			// CCW from outside: (a, d, c) and (a, b, d).
			mesh.Indices = append(mesh.Indices, a, d, c)
			mesh.Indices = append(mesh.Indices, a, b, d)
		}
	}

	return mesh
}

// Transform computes the per-frame model matrix for the ring:
// translate(to position) * scale(min(half_w, half_h) * resolution * k) *
// rotate_z(-rotation_z).
func Transform(view mapview.MapView, cfg Config) (mapview.Mat4, bool) {
	pos, ok := view.ProjectedPosition()
	if !ok {
		return mapview.Mat4{}, false
	}
	size := view.Size()
	s := math.Min(size.HalfWidth(), size.HalfHeight()) * view.Resolution() * cfg.HorizonK

	m := mapview.Translate(pos.X, pos.Y, pos.Z).
		Mul(mapview.Scale(s, s, s)).
		Mul(mapview.RotateZ(-view.RotationZ()))
	return m, true
}
