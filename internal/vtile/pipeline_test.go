package vtile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

type countingLoader struct {
	data  []byte
	calls int32
}

func (l *countingLoader) Load(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&l.calls, 1)
	return l.data, nil
}

func source(index tileschema.TileIndex) string { return "https://example.test/vt" }

func buildValidTileBytes() []byte {
	commands := []uint32{
		moveTo(1), zigzag(0), zigzag(0),
		lineTo(3), zigzag(10), zigzag(0), zigzag(0), zigzag(10), zigzag(-10), zigzag(0),
		closePath,
	}
	feature := buildFeature(1, []uint32{0, 0}, 3, commands)
	layer := buildLayer("water", []string{"class"}, [][]byte{buildStringValue("ocean")}, [][]byte{feature}, 4096)
	return buildTile([][]byte{layer})
}

func TestFetchParsesAndCaches(t *testing.T) {
	loader := &countingLoader{data: buildValidTileBytes()}
	p := New(loader, source)

	index := tileschema.TileIndex{X: 1, Y: 2, Z: 3}
	tile, err := p.Fetch(context.Background(), index)
	require.NoError(t, err)
	require.Len(t, tile.Layers, 1)
	assert.Equal(t, "water", tile.Layers[0].Name)

	cached, ok := p.Get(index)
	require.True(t, ok)
	assert.Same(t, tile, cached)
}

func TestFetchIsIdempotentConcurrently(t *testing.T) {
	loader := &countingLoader{data: buildValidTileBytes()}
	p := New(loader, source)
	index := tileschema.TileIndex{X: 9, Y: 9, Z: 9}

	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, _ = p.Fetch(context.Background(), index)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("fetch never completed")
		}
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls), "concurrent fetches of the same tile must share one load")
}

func TestFetchPropagatesDecodeError(t *testing.T) {
	loader := &countingLoader{data: []byte("not a valid tile")}
	p := New(loader, source)

	_, err := p.Fetch(context.Background(), tileschema.TileIndex{X: 0, Y: 0, Z: 0})
	assert.Error(t, err)
}
