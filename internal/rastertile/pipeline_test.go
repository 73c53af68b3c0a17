package rastertile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

type fakeLoader struct {
	data []byte
	err  error
	n    int
}

func (f *fakeLoader) Load(ctx context.Context, url string) ([]byte, error) {
	f.n++
	return f.data, f.err
}

type fakeCache struct {
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: make(map[string][]byte)} }

func (f *fakeCache) Get(key string) ([]byte, bool) { d, ok := f.store[key]; return d, ok }
func (f *fakeCache) Put(key string, data []byte) error {
	f.store[key] = data
	return nil
}

type fakeDecoder struct{ size geom.Size[uint32] }

func (f fakeDecoder) Decode(data []byte) (*geom.DecodedImage, error) {
	return geom.NewDecodedImage(make([]byte, 4*f.size.Width*f.size.Height), f.size)
}

func urlSource(index tileschema.TileIndex) string {
	return "https://example.test/tile"
}

func waitUntil(t *testing.T, p *RasterTilePipeline, index tileschema.TileIndex) *geom.DecodedImage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if img, ok := p.Get(index); ok {
			return img
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("tile never finished loading")
	return nil
}

func TestRequestLoadsFromNetworkAndCachesResult(t *testing.T) {
	loader := &fakeLoader{data: []byte("png-bytes")}
	cache := newFakeCache()
	p := New(loader, cache, fakeDecoder{size: geom.Size[uint32]{Width: 2, Height: 2}}, urlSource, false)

	index := tileschema.TileIndex{X: 1, Y: 1, Z: 3}
	p.Request(context.Background(), index)

	img := waitUntil(t, p, index)
	assert.Equal(t, geom.Size[uint32]{Width: 2, Height: 2}, img.Size())
	assert.Equal(t, 1, loader.n)
	_, cached := cache.Get(urlSource(index))
	assert.True(t, cached, "successful network load must be written back to the persistent cache")
}

func TestRequestPrefersPersistentCacheOverNetwork(t *testing.T) {
	loader := &fakeLoader{data: []byte("should-not-be-used")}
	cache := newFakeCache()
	cache.Put(urlSource(tileschema.TileIndex{}), []byte("cached-bytes"))
	p := New(loader, cache, fakeDecoder{size: geom.Size[uint32]{Width: 1, Height: 1}}, urlSource, false)

	index := tileschema.TileIndex{X: 0, Y: 0, Z: 0}
	p.Request(context.Background(), index)

	waitUntil(t, p, index)
	assert.Equal(t, 0, loader.n, "cached tile must not trigger a network load")
}

func TestOfflineModeFailsWithoutCacheHit(t *testing.T) {
	loader := &fakeLoader{data: []byte("x")}
	p := New(loader, newFakeCache(), fakeDecoder{size: geom.Size[uint32]{Width: 1, Height: 1}}, urlSource, true)

	index := tileschema.TileIndex{X: 5, Y: 5, Z: 5}
	_, err := p.fetchAndDecode(context.Background(), index)
	require.Error(t, err)
	assert.True(t, galerr.Is(err, galerr.KindNotFound))
	assert.Equal(t, 0, loader.n)
}

func TestRequestIsIdempotentWhileInFlight(t *testing.T) {
	loader := &fakeLoader{data: []byte("x")}
	p := New(loader, nil, fakeDecoder{size: geom.Size[uint32]{Width: 1, Height: 1}}, urlSource, false)

	index := tileschema.TileIndex{X: 9, Y: 9, Z: 9}
	p.Request(context.Background(), index)
	p.Request(context.Background(), index)
	p.Request(context.Background(), index)

	waitUntil(t, p, index)
	assert.Equal(t, 1, loader.n, "a second Request before the first resolves must not trigger another load")
}

func TestFadeOpacityRampsThenLocksAtOne(t *testing.T) {
	loader := &fakeLoader{data: []byte("x")}
	p := New(loader, nil, fakeDecoder{size: geom.Size[uint32]{Width: 1, Height: 1}}, urlSource, false)
	p.fadeIn = 100 * time.Millisecond

	index := tileschema.TileIndex{X: 2, Y: 2, Z: 2}
	p.Request(context.Background(), index)
	waitUntil(t, p, index)

	mid := p.FadeOpacity(index, time.Now())
	assert.True(t, mid >= 0 && mid <= 1)

	late := p.FadeOpacity(index, time.Now().Add(time.Second))
	assert.Equal(t, 1.0, late)
}
