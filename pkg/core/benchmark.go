package core

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"neurogeo/pkg/core/memory"
)

// AlgoResult is the average cost of one operation, in nanoseconds.
type AlgoResult struct {
	LearnedGetNs     float64 `json:"learned_get_ns"`
	BTreeGetNs       float64 `json:"btree_get_ns"`
	LearnedNearestNs float64 `json:"learned_nearest_ns"`
	BTreeNearestNs   float64 `json:"btree_nearest_ns"`
	Iterations       int     `json:"iterations"`
	Points           int     `json:"points"`
}

// BenchmarkAlgo times point lookups and nearest-neighbour queries on the
// learned index against a B-tree holding the same points.
func (s *SpatialStore) BenchmarkAlgo(iterations int) (AlgoResult, error) {
	if iterations <= 0 {
		iterations = 1000
	}
	ps := s.Points()
	if len(ps) == 0 {
		return AlgoResult{}, errors.New("no data")
	}

	baseline := memory.NewSortedIndex(32)
	for _, p := range ps {
		baseline.Put(p)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	probes := make([]Point, iterations)
	for i := range probes {
		probes[i] = ps[rng.Intn(len(ps))]
	}
	minX, maxX := ps[0].X, ps[len(ps)-1].X
	queries := make([][2]float64, iterations)
	for i := range queries {
		queries[i] = [2]float64{minX + rng.Float64()*(maxX-minX), probes[i].Y}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	res := AlgoResult{Iterations: iterations, Points: len(ps)}

	start := time.Now()
	for _, p := range probes {
		s.index.Get(p.X, p.Y)
	}
	res.LearnedGetNs = float64(time.Since(start).Nanoseconds()) / float64(iterations)

	start = time.Now()
	for _, p := range probes {
		baseline.Get(p.X, p.Y)
	}
	res.BTreeGetNs = float64(time.Since(start).Nanoseconds()) / float64(iterations)

	start = time.Now()
	for _, q := range queries {
		s.index.NearestNeighbor(q)
	}
	res.LearnedNearestNs = float64(time.Since(start).Nanoseconds()) / float64(iterations)

	start = time.Now()
	for _, q := range queries {
		baseline.Nearest(q)
	}
	res.BTreeNearestNs = float64(time.Since(start).Nanoseconds()) / float64(iterations)

	return res, nil
}
