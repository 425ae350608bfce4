package protocol

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
)

type Point = common.Point[float64]

// PointSize is the wire size of one point: [id 8][x 8][y 8].
const PointSize = 24

var ErrShortPayload = errors.New("protocol: payload too short")

// EncodeFloats packs fs big-endian, 8 bytes each.
func EncodeFloats(fs ...float64) []byte {
	b := make([]byte, 8*len(fs))
	for i, f := range fs {
		binary.BigEndian.PutUint64(b[8*i:], math.Float64bits(f))
	}
	return b
}

// DecodeFloats reads exactly n floats from b.
func DecodeFloats(b []byte, n int) ([]float64, error) {
	if len(b) < 8*n {
		return nil, ErrShortPayload
	}
	fs := make([]float64, n)
	for i := range fs {
		fs[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
	}
	return fs, nil
}

func EncodePoint(p Point) []byte {
	b := make([]byte, PointSize)
	putPoint(b, p)
	return b
}

func DecodePoint(b []byte) (Point, error) {
	if len(b) < PointSize {
		return Point{}, ErrShortPayload
	}
	return getPoint(b), nil
}

// EncodePoints writes [count 4B] followed by count points.
func EncodePoints(ps []Point) []byte {
	b := make([]byte, 4+PointSize*len(ps))
	binary.BigEndian.PutUint32(b[0:4], uint32(len(ps)))
	for i, p := range ps {
		putPoint(b[4+PointSize*i:], p)
	}
	return b
}

func DecodePoints(b []byte) ([]Point, error) {
	if len(b) < 4 {
		return nil, ErrShortPayload
	}
	n := int(binary.BigEndian.Uint32(b[0:4]))
	if len(b) < 4+PointSize*n {
		return nil, errors.Wrapf(ErrShortPayload, "decode %d points from %d bytes", n, len(b))
	}
	ps := make([]Point, n)
	for i := range ps {
		ps[i] = getPoint(b[4+PointSize*i:])
	}
	return ps, nil
}

func putPoint(b []byte, p Point) {
	binary.BigEndian.PutUint64(b[0:8], uint64(int64(p.ID)))
	binary.BigEndian.PutUint64(b[8:16], math.Float64bits(p.X))
	binary.BigEndian.PutUint64(b[16:24], math.Float64bits(p.Y))
}

func getPoint(b []byte) Point {
	return Point{
		ID: int(int64(binary.BigEndian.Uint64(b[0:8]))),
		X:  math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
		Y:  math.Float64frombits(binary.BigEndian.Uint64(b[16:24])),
	}
}
