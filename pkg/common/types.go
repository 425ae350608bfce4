package common

import (
	"fmt"
	"sort"
)

// Float is the coordinate type of a point.
type Float interface {
	~float32 | ~float64
}

// Axis selects which coordinate of a point feeds the hasher.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Point is the basic unit stored by the index. ID is assigned by the
// application and never used for ordering.
type Point[F Float] struct {
	ID int
	X  F
	Y  F
}

func NewPoint[F Float](id int, x, y F) Point[F] {
	return Point[F]{ID: id, X: x, Y: y}
}

// Coord returns the coordinate on the given axis.
func (p Point[F]) Coord(axis Axis) F {
	if axis == AxisX {
		return p.X
	}
	return p.Y
}

// SameCoords reports whether p sits at (x, y). IDs are ignored.
func (p Point[F]) SameCoords(x, y F) bool {
	return p.X == x && p.Y == y
}

// String 方便调试打印
func (p Point[F]) String() string {
	return fmt.Sprintf("Point{ID: %d, X: %v, Y: %v}", p.ID, p.X, p.Y)
}

func ExtractX[F Float](ps []Point[F]) []F {
	xs := make([]F, len(ps))
	for i, p := range ps {
		xs[i] = p.X
	}
	return xs
}

func ExtractY[F Float](ps []Point[F]) []F {
	ys := make([]F, len(ps))
	for i, p := range ps {
		ys[i] = p.Y
	}
	return ys
}

// ExtractAxis returns the coordinates of ps on one axis.
func ExtractAxis[F Float](ps []Point[F], axis Axis) []F {
	if axis == AxisX {
		return ExtractX(ps)
	}
	return ExtractY(ps)
}

// SortByAxis sorts ps ascending on axis. Equal coordinates keep their input order.
func SortByAxis[F Float](ps []Point[F], axis Axis) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Coord(axis) < ps[j].Coord(axis)
	})
}

// ResetIDs overwrites every ID with the point's position in ps.
func ResetIDs[F Float](ps []Point[F]) {
	for i := range ps {
		ps[i].ID = i
	}
}

// Ranks returns the IDs of ps converted to F.
func Ranks[F Float](ps []Point[F]) []F {
	rs := make([]F, len(ps))
	for i, p := range ps {
		rs[i] = F(p.ID)
	}
	return rs
}
