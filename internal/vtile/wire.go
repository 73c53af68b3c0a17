package vtile

import (
	"encoding/binary"
	"math"

	"github.com/miguelemosreverte/galileo/internal/galerr"
)

// wireReader is a minimal protobuf wire-format scanner, covering exactly
// the varint, length-delimited and fixed-width field types the Mapbox
// Vector Tile format's four small messages use. Parsing them by hand keeps
// the decoder free of a protobuf code-generation toolchain.
type wireReader struct {
	buf []byte
	pos int
}

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

func (r *wireReader) done() bool { return r.pos >= len(r.buf) }

func (r *wireReader) varint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, galerr.New(galerr.KindProto, "truncated varint")
		}
		b := r.buf[r.pos]
		r.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, galerr.New(galerr.KindProto, "varint too long")
		}
	}
}

func (r *wireReader) tag() (field int, wireType int, err error) {
	v, err := r.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

func (r *wireReader) bytes() ([]byte, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	end := r.pos + int(n)
	if end < r.pos || end > len(r.buf) {
		return nil, galerr.New(galerr.KindProto, "length-delimited field overruns buffer")
	}
	b := r.buf[r.pos:end]
	r.pos = end
	return b, nil
}

func (r *wireReader) skip(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := r.varint()
		return err
	case wireFixed64:
		if r.pos+8 > len(r.buf) {
			return galerr.New(galerr.KindProto, "truncated fixed64")
		}
		r.pos += 8
		return nil
	case wireBytes:
		_, err := r.bytes()
		return err
	case wireFixed32:
		if r.pos+4 > len(r.buf) {
			return galerr.New(galerr.KindProto, "truncated fixed32")
		}
		r.pos += 4
		return nil
	default:
		return galerr.New(galerr.KindProto, "unsupported wire type")
	}
}

// packedVarints reads a packed repeated varint field from a
// length-delimited payload, the encoding Feature.tags and Feature.geometry
// use.
func packedVarints(data []byte) ([]uint32, error) {
	r := &wireReader{buf: data}
	var out []uint32
	for !r.done() {
		v, err := r.varint()
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func readFixed64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func readFixed32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
