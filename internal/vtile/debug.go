package vtile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
)

// DumpGeoJSON decodes a raw MVT payload through orb/encoding/mvt and
// re-projects it to a single WGS84 FeatureCollection per layer, for
// ad-hoc inspection of a tile's contents (cmd/vectortile-inspect's
// -geojson mode).
func DumpGeoJSON(data []byte, index tileschema.TileIndex) (map[string]*geojson.FeatureCollection, error) {
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, galerr.Wrap(galerr.KindProto, "unmarshaling mvt for debug dump", err)
	}

	tile := maptile.New(uint32(index.X), uint32(index.Y), maptile.Zoom(index.Z))
	layers.ProjectToWGS84(tile)

	out := make(map[string]*geojson.FeatureCollection, len(layers))
	for _, layer := range layers {
		fc := geojson.NewFeatureCollection()
		for _, f := range layer.Features {
			feature := geojson.NewFeature(orb.Geometry(f.Geometry))
			for k, v := range f.Properties {
				feature.Properties[k] = v
			}
			fc.Append(feature)
		}
		out[layer.Name] = fc
	}
	return out, nil
}
