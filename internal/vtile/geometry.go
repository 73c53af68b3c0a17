package vtile

import (
	"github.com/miguelemosreverte/galileo/internal/galerr"
	"github.com/miguelemosreverte/galileo/internal/geom"
)

// geomCommand is one decoded geometry command kind.
type geomCommand int

const (
	cmdMoveTo geomCommand = iota
	cmdLineTo
	cmdClosePath
)

const (
	cmdIDMoveTo    = 1
	cmdIDLineTo    = 2
	cmdIDClosePath = 7
)

// sintToInt decodes a zig-zag-encoded signed integer. The all-ones input
// is special-cased: the naive `(sint>>1)+1` negation overflows int32 for
// that one value, which must decode to the minimum representable value.
func sintToInt(sint uint32) int32 {
	if sint == 0xffffffff {
		return -2147483648
	}
	if sint&1 == 0 {
		return int32(sint >> 1)
	}
	return -int32((sint >> 1) + 1)
}

// commandIterator walks a decoded MVT command stream, tracking the running
// cursor position and the repeat count left on the current command header.
type commandIterator struct {
	commands []uint32
	pos      int
	extent   uint32
	cursor   geom.Point2[float64]

	pendingID    uint32
	pendingCount uint32
	havePending  bool
}

func newCommandIterator(commands []uint32, extent uint32) *commandIterator {
	return &commandIterator{commands: commands, extent: extent}
}

type decodedCommand struct {
	kind  geomCommand
	point geom.Point2[float64]
}

func (it *commandIterator) next() (decodedCommand, bool, error) {
	var id, count uint32
	if it.havePending {
		id, count = it.pendingID, it.pendingCount
	} else {
		if it.pos >= len(it.commands) {
			return decodedCommand{}, false, nil
		}
		integer := it.commands[it.pos]
		it.pos++
		id = integer & 0x7
		count = integer >> 3
	}

	if count == 0 {
		return decodedCommand{}, false, galerr.New(galerr.KindProto, "command count cannot be 0")
	}
	if count == 1 {
		it.havePending = false
	} else {
		it.pendingID, it.pendingCount, it.havePending = id, count-1, true
	}

	switch id {
	case cmdIDMoveTo, cmdIDLineTo:
		if it.pos+2 > len(it.commands) {
			return decodedCommand{}, false, galerr.New(galerr.KindProto, "truncated command parameters")
		}
		dx := sintToInt(it.commands[it.pos])
		dy := sintToInt(it.commands[it.pos+1])
		it.pos += 2
		it.cursor = geom.Point2[float64]{
			X: it.cursor.X + float64(dx)/float64(it.extent),
			Y: it.cursor.Y + float64(dy)/float64(it.extent),
		}

		kind := cmdMoveTo
		if id == cmdIDLineTo {
			kind = cmdLineTo
		}
		return decodedCommand{kind: kind, point: it.cursor}, true, nil

	case cmdIDClosePath:
		if count != 1 {
			return decodedCommand{}, false, galerr.New(galerr.KindProto, "ClosePath command must have count 1")
		}
		return decodedCommand{kind: cmdClosePath}, true, nil

	default:
		return decodedCommand{}, false, galerr.New(galerr.KindProto, "unknown geometry command id")
	}
}

func decodePoints(commands []uint32, extent uint32) ([]geom.Point2[float64], error) {
	it := newCommandIterator(commands, extent)
	var points []geom.Point2[float64]
	for {
		cmd, ok, err := it.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return points, nil
		}
		if cmd.kind != cmdMoveTo {
			return nil, galerr.New(galerr.KindProto, "point geometry can only contain MoveTo commands")
		}
		points = append(points, cmd.point)
	}
}

// decodeContours splits a command stream into contours on every MoveTo,
// closing a contour whenever ClosePath is seen.
func decodeContours(commands []uint32, extent uint32) ([]geom.Contour[float64], error) {
	it := newCommandIterator(commands, extent)

	var contours []geom.Contour[float64]
	var current *geom.Contour[float64]

	for {
		cmd, ok, err := it.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		switch cmd.kind {
		case cmdMoveTo:
			if current != nil {
				contours = append(contours, *current)
			}
			current = &geom.Contour[float64]{Points: []geom.Point2[float64]{cmd.point}}
		case cmdLineTo:
			if current == nil {
				return nil, galerr.New(galerr.KindProto, "LineTo before any MoveTo")
			}
			current.Points = append(current.Points, cmd.point)
		case cmdClosePath:
			if current == nil {
				return nil, galerr.New(galerr.KindProto, "ClosePath before any MoveTo")
			}
			current.IsClosed = true
			contours = append(contours, *current)
			current = nil
		}
	}
	if current != nil {
		contours = append(contours, *current)
	}

	return contours, nil
}

// decodePolygons groups decoded contours into polygons by winding: a CCW
// contour starts a new polygon's outer ring, and a CW contour that follows
// becomes a hole of the most recently started polygon.
func decodePolygons(commands []uint32, extent uint32) ([]geom.Polygon[float64], error) {
	contours, err := decodeContours(commands, extent)
	if err != nil {
		return nil, err
	}
	for _, c := range contours {
		if !c.IsClosed {
			return nil, galerr.New(galerr.KindProto, "polygon cannot contain open contours")
		}
	}

	var polygons []geom.Polygon[float64]
	for _, c := range contours {
		if c.IsCCW() {
			polygons = append(polygons, geom.Polygon[float64]{Outer: c})
		} else if len(polygons) > 0 {
			last := len(polygons) - 1
			polygons[last].Holes = append(polygons[last].Holes, c)
		}
	}
	return polygons, nil
}
