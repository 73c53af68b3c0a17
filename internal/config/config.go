// Package config holds the engine's own tunables: cache sizing, tile schema
// defaults, fade timing, and offline mode. Structured as a JSON file loaded
// once into a mutex-guarded singleton, generalized to the ambient knobs an
// engine embedding galileo actually needs, rather than one-off dev-UI flags.
package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Config holds engine-wide tunables, loaded once from config.json (if
// present) and overridable at runtime through a mutex-guarded singleton.
type Config struct {
	// Cache controls TileContainer sizing.
	Cache CacheConfig `json:"cache"`

	// Display controls DPI scaling applied when deciding how many physical
	// pixels a logical tile/label pixel covers.
	Display DisplayConfig `json:"display"`

	// Tiles controls the default TileSchema handed to raster/vector layers
	// that don't supply their own.
	Tiles TileConfig `json:"tiles"`

	// Fade controls the opacity easing durations for tiles and labels.
	Fade FadeConfig `json:"fade"`

	// OfflineMode disables network fetches; only persistent-cache hits
	// resolve (rastertile.RasterTilePipeline's offlineMode flag).
	OfflineMode bool `json:"offline_mode"`
}

type CacheConfig struct {
	// RasterCapacityBytes bounds the raster tile bookkeeping cache.
	RasterCapacityBytes int `json:"raster_capacity_bytes"`
	// VectorCapacityBytes bounds the vector tile bookkeeping cache.
	VectorCapacityBytes int `json:"vector_capacity_bytes"`
}

type DisplayConfig struct {
	// DPIScale multiplies logical pixel sizes (label glyphs, marker
	// quads, point sprite radii) to physical pixels, matching a HiDPI
	// screen's device pixel ratio.
	DPIScale float64 `json:"dpi_scale"`
}

type TileConfig struct {
	// LodCount is the number of LODs tileschema.WebSchema generates.
	LodCount uint32 `json:"lod_count"`
	// VectorURLTemplate, when non-empty, adds a vector tile layer fetching
	// MVT tiles from this {x}/{y}/{z} template on top of the raster base.
	VectorURLTemplate string `json:"vector_url_template"`
}

type FadeConfig struct {
	TileFadeIn  time.Duration `json:"tile_fade_in"`
	LabelFadeIn time.Duration `json:"label_fade_in"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			RasterCapacityBytes: 100_000_000,
			VectorCapacityBytes: 100_000_000,
		},
		Display: DisplayConfig{
			DPIScale: 1.0,
		},
		Tiles: TileConfig{
			LodCount: 16,
		},
		Fade: FadeConfig{
			TileFadeIn:  300 * time.Millisecond,
			LabelFadeIn: 300 * time.Millisecond,
		},
		OfflineMode: false,
	}
}

// Get returns the global configuration instance, lazily loading config.json
// from the working directory the first time it's called.
func Get() *Config {
	once.Do(func() {
		instance = DefaultConfig()
		if data, err := os.ReadFile("config.json"); err == nil {
			json.Unmarshal(data, instance)
		}
	})
	return instance
}

// Load replaces the global instance with the contents of path, keeping any
// fields path's JSON omits at their current value.
func Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = DefaultConfig()
	}
	return json.Unmarshal(data, instance)
}

// Save writes the current configuration to path as indented JSON.
func Save(path string) error {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		instance = DefaultConfig()
	}

	data, err := json.MarshalIndent(instance, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
