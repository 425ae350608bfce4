package storage

import "neurogeo/pkg/common"

type Point = common.Point[float64]

// Op is the kind of mutation a record carries.
type Op uint8

const (
	OpInsert Op = iota + 1
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Record is one logged mutation.
type Record struct {
	Op        Op
	Point     Point
	Timestamp int64
}
