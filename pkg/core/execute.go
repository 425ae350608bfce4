package core

import (
	"math"

	"github.com/pkg/errors"

	"neurogeo/pkg/query"
)

// Execute runs a parsed query. No match is an empty result, not an error.
func (s *SpatialStore) Execute(stmt *query.Stmt) ([]Point, error) {
	var ps []Point
	a := stmt.Args

	switch stmt.Kind {
	case query.KindScan:
		ps = s.Points()
	case query.KindPoint:
		if p, ok := s.Get(a[0], a[1]); ok {
			ps = []Point{p}
		}
	case query.KindWithin:
		bl := [2]float64{math.Min(a[0], a[2]), math.Min(a[1], a[3])}
		tr := [2]float64{math.Max(a[0], a[2]), math.Max(a[1], a[3])}
		ps = s.Range(bl, tr)
	case query.KindDistance:
		ps = s.Radius([2]float64{a[0], a[1]}, a[2])
	case query.KindNearest:
		k := stmt.Limit
		if k <= 1 {
			if p, ok := s.Nearest([2]float64{a[0], a[1]}); ok && k != 0 {
				ps = []Point{p}
			}
		} else {
			ps = s.KNearest([2]float64{a[0], a[1]}, k)
		}
	default:
		return nil, errors.Errorf("unsupported query kind %s", stmt.Kind)
	}

	if ps == nil {
		return []Point{}, nil
	}
	return stmt.ApplyLimit(ps), nil
}

// ExecuteString parses and runs q.
func (s *SpatialStore) ExecuteString(q string) ([]Point, error) {
	stmt, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	return s.Execute(stmt)
}
