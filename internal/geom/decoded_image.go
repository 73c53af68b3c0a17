package geom

import "fmt"

// Size is a generic width/height pair, used both for raster tiles (uint32)
// and the MapView's pixel size (float64).
type Size[T Numeric] struct {
	Width, Height T
}

func (s Size[T]) IsZero() bool { return s.Width == 0 || s.Height == 0 }

func (s Size[T]) HalfWidth() T  { return s.Width / 2 }
func (s Size[T]) HalfHeight() T { return s.Height / 2 }

// DecodedImage is an owned RGBA byte buffer: bytes.len == 4*w*h is enforced
// at construction. Raster tiles are decoded to a tightly packed RGBA buffer
// before uploading to the GPU; this keeps that exact shape so rastertile/
// vtile can hand bytes straight to the GPU layer without re-decoding.
type DecodedImage struct {
	bytes []byte
	size  Size[uint32]
}

// NewDecodedImage validates the byte-length invariant and returns an
// immutable image. The byte slice is not copied; callers must not mutate it
// afterwards (mirrors Arc<DecodedImage> sharing).
func NewDecodedImage(bytes []byte, size Size[uint32]) (*DecodedImage, error) {
	want := int(4 * size.Width * size.Height)
	if len(bytes) != want {
		return nil, fmt.Errorf("galileo: decoded image byte length %d does not match %dx%d RGBA (%d)", len(bytes), size.Width, size.Height, want)
	}
	return &DecodedImage{bytes: bytes, size: size}, nil
}

func (d *DecodedImage) Bytes() []byte      { return d.bytes }
func (d *DecodedImage) Size() Size[uint32] { return d.size }

// ApproxByteSize is what RenderBundle.approx_buffer_size and the tile
// cache's weighted LRU charge against capacity.
func (d *DecodedImage) ApproxByteSize() int {
	return len(d.bytes)
}
