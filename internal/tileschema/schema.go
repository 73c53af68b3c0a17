package tileschema

import (
	"errors"
	"math"
	"sort"

	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/mapview"
)

// VerticalDirection matches y_direction field.
type VerticalDirection int

const (
	TopToBottom VerticalDirection = iota
	BottomToTop
)

// TileIndex identifies one tile at one LOD.
type TileIndex struct {
	X, Y int64
	Z    uint32
}

// WrappingTileIndex additionally carries DisplayX, which may fall outside
// [minXIndex,maxXIndex] for world-repeat copies; DisplayX mod the horizontal
// index span yields X.
type WrappingTileIndex struct {
	TileIndex
	DisplayX int64
}

const resolutionTolerance = 0.01

// TileSchema is the configuration mapping projected coordinates and
// resolution to tile indices.
type TileSchema struct {
	Origin       geom.Point2[float64]
	Bounds       geom.Rect[float64]
	Lods         []Lod // sorted ascending by ZIndex
	TileWidth    uint32
	TileHeight   uint32
	YDirection   VerticalDirection
	Crs          mapview.Crs
	MaxTileScale float64 // largest view/lod resolution ratio SelectLod will accept
	CycleX       bool
}

// NewTileSchema sorts lods and validates them: ascending z, strictly
// decreasing resolution.
func NewTileSchema(origin geom.Point2[float64], bounds geom.Rect[float64], lods []Lod, tileW, tileH uint32, yDir VerticalDirection, crs mapview.Crs) (*TileSchema, error) {
	sorted := append([]Lod(nil), lods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ZIndex < sorted[j].ZIndex })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Resolution >= sorted[i-1].Resolution {
			return nil, errInvalidLods
		}
	}

	return &TileSchema{
		Origin:       origin,
		Bounds:       bounds,
		Lods:         sorted,
		TileWidth:    tileW,
		TileHeight:   tileH,
		YDirection:   yDir,
		Crs:          crs,
		MaxTileScale: 1024,
		CycleX:       true,
	}, nil
}

var errInvalidLods = errors.New("galileo: tile schema lods must have strictly decreasing resolution")

// WebSchema returns the default web tile schema:
// origin (-20037508.342787, +20037508.342787), 256px tiles, top resolution
// 156543.03392800014, TopToBottom, EPSG:3857, lodsCount LODs each half the
// previous resolution.
func WebSchema(lodsCount uint32) *TileSchema {
	const (
		topResolution = 156543.03392800014
		webExtent     = 20037508.342787
	)

	lods := make([]Lod, lodsCount)
	res := topResolution
	for i := uint32(0); i < lodsCount; i++ {
		lods[i] = Lod{Resolution: res, ZIndex: i}
		res /= 2
	}

	return &TileSchema{
		Origin:       geom.Point2[float64]{X: -webExtent, Y: webExtent},
		Bounds:       geom.NewRect(-webExtent, -webExtent, webExtent, webExtent),
		Lods:         lods,
		TileWidth:    256,
		TileHeight:   256,
		YDirection:   TopToBottom,
		Crs:          mapview.CrsEPSG3857,
		MaxTileScale: 1024,
		CycleX:       true,
	}
}

func (s *TileSchema) LodResolution(z uint32) (float64, bool) {
	for _, l := range s.Lods {
		if l.ZIndex == z {
			return l.Resolution, true
		}
	}
	return 0, false
}

// SelectLod scans lods from coarsest (z0) to finest and returns the first
// one whose resolution, shrunk by a 1% tolerance, is no coarser than the
// requested resolution — i.e. the coarsest LOD that doesn't blur the view.
// If the requested resolution is finer than every LOD has to offer, it falls
// back to the finest LOD, then rejects the result if it's more than
// MaxTileScale away in either direction.
func (s *TileSchema) SelectLod(resolution float64) (Lod, bool) {
	if len(s.Lods) == 0 || math.IsNaN(resolution) || math.IsInf(resolution, 0) {
		return Lod{}, false
	}

	selected := s.Lods[len(s.Lods)-1]
	for _, lod := range s.Lods {
		if resolution >= lod.Resolution*(1-resolutionTolerance) {
			selected = lod
			break
		}
	}

	if selected.Resolution/resolution > s.MaxTileScale || resolution/selected.Resolution > s.MaxTileScale {
		return Lod{}, false
	}
	return selected, true
}

func (s *TileSchema) xAdj(x float64) float64 { return x - s.Origin.X }

func (s *TileSchema) yAdj(y float64) float64 {
	if s.YDirection == TopToBottom {
		return s.Origin.Y - y
	}
	return y - s.Origin.Y
}

func (s *TileSchema) minXIndex(resolution float64) int64 {
	return int64(math.Floor((s.Bounds.XMin - s.Origin.X) / resolution / float64(s.TileWidth)))
}

func (s *TileSchema) maxXIndex(resolution float64) int64 {
	pixBound := (s.Bounds.XMax - s.Origin.X) / resolution
	floored := math.Floor(pixBound)
	if math.Abs(pixBound-floored) < 0.1 {
		return int64(floored/float64(s.TileWidth)) - 1
	}
	return int64(floored / float64(s.TileWidth))
}

func (s *TileSchema) minYIndex(resolution float64) int64 {
	if s.YDirection == TopToBottom {
		return int64(math.Floor(s.yAdj(s.Bounds.YMax) / resolution / float64(s.TileHeight)))
	}
	return int64(math.Floor(s.yAdj(s.Bounds.YMin) / resolution / float64(s.TileHeight)))
}

func (s *TileSchema) maxYIndex(resolution float64) int64 {
	var pixBound float64
	if s.YDirection == TopToBottom {
		pixBound = s.yAdj(s.Bounds.YMin) / resolution
	} else {
		pixBound = s.yAdj(s.Bounds.YMax) / resolution
	}
	floored := math.Floor(pixBound)
	if math.Abs(pixBound-floored) < 0.1 {
		return int64(floored/float64(s.TileHeight)) - 1
	}
	return int64(floored / float64(s.TileHeight))
}

// TileBbox returns the projected bounding rectangle of a tile, width/height
// equal to tile_size * lod_resolution(z).
func (s *TileSchema) TileBbox(index TileIndex) (geom.Rect[float64], bool) {
	resolution, ok := s.LodResolution(index.Z)
	if !ok {
		return geom.Rect[float64]{}, false
	}

	xMin := s.Origin.X + float64(index.X)*float64(s.TileWidth)*resolution
	var yMin float64
	if s.YDirection == TopToBottom {
		yMin = s.Origin.Y - float64(index.Y+1)*float64(s.TileHeight)*resolution
	} else {
		yMin = s.Origin.Y + float64(index.Y)*float64(s.TileHeight)*resolution
	}

	return geom.NewRect(
		xMin, yMin,
		xMin+float64(s.TileWidth)*resolution,
		yMin+float64(s.TileHeight)*resolution,
	), true
}

// TileBboxDisplay is TileBbox but shifted in X for a wrapped copy: the tile's
// geometry is identical, only its screen placement differs, so the returned
// rect's X extents are offset by (displayX-x)*tileW*resolution.
func (s *TileSchema) TileBboxDisplay(index WrappingTileIndex) (geom.Rect[float64], bool) {
	rect, ok := s.TileBbox(index.TileIndex)
	if !ok {
		return geom.Rect[float64]{}, false
	}
	resolution, _ := s.LodResolution(index.Z)
	shift := float64(index.DisplayX-index.X) * float64(s.TileWidth) * resolution
	return geom.NewRect(rect.XMin+shift, rect.YMin, rect.XMax+shift, rect.YMax), true
}

// IterTiles enumerates the tiles required to cover view. Returns ok=false
// if the view's CRS doesn't match the schema's or the view isn't renderable.
func (s *TileSchema) IterTiles(view mapview.MapView) ([]WrappingTileIndex, bool) {
	if view.Crs() != s.Crs {
		return nil, false
	}

	bbox, ok := view.GetBbox()
	if !ok {
		return nil, false
	}

	lod, ok := s.SelectLod(view.Resolution())
	if !ok {
		return nil, false
	}
	return s.iterTilesAtLod(lod, bbox), true
}

func (s *TileSchema) iterTilesOverBbox(resolution float64, bbox geom.Rect[float64]) ([]WrappingTileIndex, bool) {
	lod, ok := s.SelectLod(resolution)
	if !ok {
		return nil, false
	}
	return s.iterTilesAtLod(lod, bbox), true
}

func (s *TileSchema) iterTilesAtLod(lod Lod, bbox geom.Rect[float64]) []WrappingTileIndex {
	tileW := lod.Resolution * float64(s.TileWidth)
	tileH := lod.Resolution * float64(s.TileHeight)

	xMin := int64(math.Floor(s.xAdj(bbox.XMin) / tileW))
	if m := s.minXIndex(lod.Resolution); !s.CycleX && xMin < m {
		xMin = m
	}

	// A bbox edge exactly on a tile boundary must not pull in the next
	// tile over, so an aligned max edge backs off by one index.
	xMaxAdj := s.xAdj(bbox.XMax)
	xAddOne := int64(0)
	if math.Abs(math.Mod(xMaxAdj, tileW)) < 0.001 {
		xAddOne = -1
	}
	xMax := int64(math.Floor(xMaxAdj/tileW)) + xAddOne
	if m := s.maxXIndex(lod.Resolution); !s.CycleX && xMax > m {
		xMax = m
	}

	var top, bottom float64
	if s.YDirection == TopToBottom {
		top, bottom = bbox.YMin, bbox.YMax
	} else {
		top, bottom = bbox.YMax, bbox.YMin
	}

	yMin := int64(math.Floor(s.yAdj(bottom) / tileH))
	if m := s.minYIndex(lod.Resolution); yMin < m {
		yMin = m
	}

	yMaxAdj := s.yAdj(top)
	yAddOne := int64(0)
	if math.Abs(math.Mod(yMaxAdj, tileH)) < 0.001 {
		yAddOne = -1
	}
	yMax := int64(math.Floor(yMaxAdj/tileH)) + yAddOne
	if m := s.maxYIndex(lod.Resolution); yMax > m {
		yMax = m
	}

	if xMax < xMin || yMax < yMin {
		return nil
	}

	minX, maxX := s.minXIndex(lod.Resolution), s.maxXIndex(lod.Resolution)
	span := maxX - minX + 1

	var out []WrappingTileIndex
	for x := xMin; x <= xMax; x++ {
		wrappedX := x
		if s.CycleX && span > 0 {
			wrappedX = ((x-minX)%span+span)%span + minX
		}
		for y := yMin; y <= yMax; y++ {
			out = append(out, WrappingTileIndex{
				TileIndex: TileIndex{X: wrappedX, Y: y, Z: lod.ZIndex},
				DisplayX:  x,
			})
		}
	}
	return out
}

// GetSubstitutes enumerates the tiles at the next coarser LOD that cover
// index's bbox, used by TileContainer's substitution search.
func (s *TileSchema) GetSubstitutes(index TileIndex) ([]WrappingTileIndex, bool) {
	lod, ok := s.lodOver(index.Z)
	if !ok {
		return nil, false
	}
	bbox, ok := s.TileBbox(index)
	if !ok {
		return nil, false
	}
	return s.iterTilesOverBbox(lod.Resolution, bbox)
}

// TilesCoveringBboxAtZ enumerates the tiles covering bbox at the LOD that
// SelectLod picks for z's own resolution, which is z itself unless a
// coarser LOD lies within SelectLod's 1% tolerance of it.
func (s *TileSchema) TilesCoveringBboxAtZ(z uint32, bbox geom.Rect[float64]) ([]WrappingTileIndex, bool) {
	resolution, ok := s.LodResolution(z)
	if !ok {
		return nil, false
	}
	return s.iterTilesOverBbox(resolution, bbox)
}

// lodOver returns the LOD one z-level coarser than z (lower resolution index
// in our ascending-z-is-finer convention means z-1).
func (s *TileSchema) lodOver(z uint32) (Lod, bool) {
	for i, l := range s.Lods {
		if l.ZIndex == z {
			if i == 0 {
				return Lod{}, false
			}
			return s.Lods[i-1], true
		}
	}
	return Lod{}, false
}
