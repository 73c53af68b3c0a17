// Package tileserver provides the concrete disk-backed HTTP fetch layer the
// BytesLoader/PersistentCache collaborators plug into: a URL-keyed cache
// directory plus an http.Client fetch with in-flight deduplication.
package tileserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskCache persists fetched tile bytes under a directory, keyed by a hash
// of their source URL.
type DiskCache struct {
	dir string
}

func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tile cache directory: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".tile")
}

// Get satisfies rastertile.PersistentCache.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *DiskCache) Put(key string, data []byte) error {
	return os.WriteFile(c.path(key), data, 0644)
}

// inflight carries one in-progress fetch's result to every waiter.
type inflight struct {
	done chan struct{}
	data []byte
	err  error
}

// HTTPLoader fetches tile bytes over HTTP, deduplicating concurrent requests
// for the same URL.
type HTTPLoader struct {
	client *http.Client
	header http.Header

	mu       sync.Mutex
	inFlight map[string]*inflight
}

func NewHTTPLoader(userAgent string) *HTTPLoader {
	h := make(http.Header)
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return &HTTPLoader{
		client:   &http.Client{Timeout: 30 * time.Second},
		header:   h,
		inFlight: make(map[string]*inflight),
	}
}

// Load satisfies rastertile.BytesLoader and vtile.BytesLoader.
func (l *HTTPLoader) Load(ctx context.Context, url string) ([]byte, error) {
	l.mu.Lock()
	if fl, exists := l.inFlight[url]; exists {
		l.mu.Unlock()
		select {
		case <-fl.done:
			return fl.data, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	l.inFlight[url] = fl
	l.mu.Unlock()

	fl.data, fl.err = l.fetch(ctx, url)

	l.mu.Lock()
	delete(l.inFlight, url)
	close(fl.done)
	l.mu.Unlock()
	return fl.data, fl.err
}

func (l *HTTPLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = l.header.Clone()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned status %d for %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}
