package tileserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	_, ok := cache.Get("https://example.test/1/2/3.png")
	assert.False(t, ok)

	require.NoError(t, cache.Put("https://example.test/1/2/3.png", []byte("tile-bytes")))
	data, ok := cache.Get("https://example.test/1/2/3.png")
	require.True(t, ok)
	assert.Equal(t, []byte("tile-bytes"), data)
}

func TestHTTPLoaderFetchesAndSetsUserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	loader := NewHTTPLoader("galileo-test/1.0")
	data, err := loader.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, "galileo-test/1.0", gotAgent)
}

func TestHTTPLoaderReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loader := NewHTTPLoader("")
	_, err := loader.Load(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPLoaderDeduplicatesConcurrentRequests(t *testing.T) {
	var calls int32
	var startedOnce sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		startedOnce.Do(func() { close(started) })
		<-release
		w.Write([]byte("shared"))
	}))
	defer srv.Close()

	loader := NewHTTPLoader("")
	var wg sync.WaitGroup
	results := make([][]byte, 4)
	load := func(i int) {
		defer wg.Done()
		data, err := loader.Load(context.Background(), srv.URL)
		assert.NoError(t, err)
		results[i] = data
	}

	wg.Add(1)
	go load(0)
	<-started

	// The first request is now parked in the handler; later callers must
	// join its in-flight entry instead of fetching again.
	for i := 1; i < 4; i++ {
		wg.Add(1)
		go load(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent loads of one URL must share a single fetch")
	for _, data := range results {
		assert.Equal(t, []byte("shared"), data)
	}
}
