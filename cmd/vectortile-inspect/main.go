// Command vectortile-inspect fetches a single vector tile and prints a
// per-layer feature summary, or dumps each layer as GeoJSON with -geojson.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/miguelemosreverte/galileo/internal/tileschema"
	"github.com/miguelemosreverte/galileo/internal/tileserver"
	"github.com/miguelemosreverte/galileo/internal/vtile"
)

func main() {
	var (
		x       = flag.Int("x", 527, "tile x")
		y       = flag.Int("y", 339, "tile y")
		z       = flag.Int("z", 10, "tile zoom")
		urlTmpl = flag.String("url", "https://tiles.openfreemap.org/planet/20250415_001001_pt/{z}/{x}/{y}.pbf", "tile URL template with {x}/{y}/{z} placeholders")
		geo     = flag.Bool("geojson", false, "dump each layer as a GeoJSON FeatureCollection instead of a summary")
	)
	flag.Parse()

	index := tileschema.TileIndex{X: int64(*x), Y: int64(*y), Z: uint32(*z)}
	url := expandTemplate(*urlTmpl, index)

	loader := tileserver.NewHTTPLoader("galileo-vectortile-inspect/1.0")
	data, err := loader.Load(context.Background(), url)
	if err != nil {
		log.Fatalf("fetching %s: %v", url, err)
	}

	if *geo {
		collections, err := vtile.DumpGeoJSON(data, index)
		if err != nil {
			log.Fatalf("converting to geojson: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", " ")
		if err := enc.Encode(collections); err != nil {
			log.Fatalf("encoding geojson: %v", err)
		}
		return
	}

	tile, err := vtile.DecodeTile(data, true)
	if err != nil {
		log.Fatalf("decoding vector tile %d/%d/%d: %v", *z, *x, *y, err)
	}

	fmt.Printf("tile %d/%d/%d: %d layers\n", *z, *x, *y, len(tile.Layers))
	for _, layer := range tile.Layers {
		fmt.Printf(" %s: %d features (extent=%d)\n", layer.Name, len(layer.Features), layer.Extent)
		var points, lines, polys int
		for _, f := range layer.Features {
			switch {
			case len(f.Geometry.Points) > 0:
				points++
			case len(f.Geometry.Contours) > 0:
				lines++
			case len(f.Geometry.Polygons) > 0:
				polys++
			}
		}
		fmt.Printf(" points=%d lines=%d polygons=%d\n", points, lines, polys)
	}
}

// expandTemplate substitutes {x}/{y}/{z} placeholders.
func expandTemplate(tmpl string, index tileschema.TileIndex) string {
	r := strings.NewReplacer(
		"{x}", strconv.FormatInt(index.X, 10),
		"{y}", strconv.FormatInt(index.Y, 10),
		"{z}", strconv.FormatUint(uint64(index.Z), 10),
	)
	return r.Replace(tmpl)
}
