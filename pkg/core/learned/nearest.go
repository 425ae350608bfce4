package learned

import (
	"container/heap"
	"math"
	"sort"

	"neurogeo/pkg/common"
)

type candidate[F common.Float] struct {
	point    common.Point[F]
	distance float64
}

// candidateMinHeap: closest first, used to pick the best point of a bucket.
type candidateMinHeap[F common.Float] []candidate[F]

func (h candidateMinHeap[F]) Len() int           { return len(h) }
func (h candidateMinHeap[F]) Less(i, j int) bool { return h[i].distance < h[j].distance }
func (h candidateMinHeap[F]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateMinHeap[F]) Push(x any)        { *h = append(*h, x.(candidate[F])) }
func (h *candidateMinHeap[F]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// candidateMaxHeap: furthest first, used to evict from a k-best result set.
type candidateMaxHeap[F common.Float] []candidate[F]

func (h candidateMaxHeap[F]) Len() int           { return len(h) }
func (h candidateMaxHeap[F]) Less(i, j int) bool { return h[i].distance > h[j].distance }
func (h candidateMaxHeap[F]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap[F]) Push(x any)        { *h = append(*h, x.(candidate[F])) }
func (h *candidateMaxHeap[F]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func distance[F common.Float](q [2]F, p common.Point[F]) float64 {
	return float64(common.Euclidean(q[0], q[1], p.X, p.Y))
}

// nearestSearch tracks the best point seen so far.
type nearestSearch[F common.Float] struct {
	query [2]F
	best  candidate[F]
	found bool
	queue candidateMinHeap[F]
}

func (s *nearestSearch[F]) scan(b *bucket[F]) {
	if b.len() == 0 {
		return
	}
	s.queue = s.queue[:0]
	for _, p := range b.items() {
		heap.Push(&s.queue, candidate[F]{point: p, distance: distance(s.query, p)})
	}
	c := heap.Pop(&s.queue).(candidate[F])
	if !s.found || c.distance < s.best.distance {
		s.best = c
		s.found = true
	}
}

func (s *nearestSearch[F]) bound() float64 {
	if !s.found {
		return math.MaxFloat64
	}
	return s.best.distance
}

// leftGap is the distance along the axis from q to a bucket whose upper
// edge is edge. The bucket lies to the left of q.
func leftGap(q, edge float64) float64 {
	return math.Max(0, q-edge)
}

// rightGap is the distance along the axis from q to a bucket whose lower
// edge is edge. The bucket lies to the right of q.
func rightGap(q, edge float64) float64 {
	return math.Max(0, edge-q)
}

// home returns the bucket the query hashes to, clamped into the table.
func (m *LearnedHashMap[F, M]) home(q [2]F) int {
	return m.table.slot(m.hasher.Hash(q[0], q[1]))
}

// walk scans the home bucket, then the buckets to its left and to its right,
// stopping in each direction once the bucket's edge is at least bound() away
// along the hashed axis. Bucket i covers [Unhash(i), Unhash(i+1)).
func (m *LearnedHashMap[F, M]) walk(q [2]F, scan func(*bucket[F]), bound func() float64) {
	capacity := m.table.capacity()
	home := m.home(q)
	qc := float64(q[0])
	if m.hasher.Axis() == common.AxisY {
		qc = float64(q[1])
	}

	scan(m.table.bucketAt(home))
	for i := home - 1; i >= 0; i-- {
		if leftGap(qc, float64(m.hasher.Unhash(i+1))) >= bound() {
			break
		}
		scan(m.table.bucketAt(i))
	}
	for i := home + 1; i < capacity; i++ {
		if rightGap(qc, float64(m.hasher.Unhash(i))) >= bound() {
			break
		}
		scan(m.table.bucketAt(i))
	}
}

// NearestNeighbor returns the stored point closest to query.
func (m *LearnedHashMap[F, M]) NearestNeighbor(query [2]F) (common.Point[F], bool) {
	if m.table.capacity() == 0 || m.items == 0 {
		return common.Point[F]{}, false
	}
	s := &nearestSearch[F]{query: query}
	m.walk(query, s.scan, s.bound)
	return s.best.point, s.found
}

// KNearest returns up to k stored points ordered by distance to query.
func (m *LearnedHashMap[F, M]) KNearest(query [2]F, k int) []common.Point[F] {
	if k <= 0 || m.table.capacity() == 0 || m.items == 0 {
		return nil
	}

	results := &candidateMaxHeap[F]{}
	scan := func(b *bucket[F]) {
		for _, p := range b.items() {
			c := candidate[F]{point: p, distance: distance(query, p)}
			if results.Len() < k {
				heap.Push(results, c)
			} else if c.distance < (*results)[0].distance {
				(*results)[0] = c
				heap.Fix(results, 0)
			}
		}
	}
	bound := func() float64 {
		if results.Len() < k {
			return math.MaxFloat64
		}
		return (*results)[0].distance
	}
	m.walk(query, scan, bound)

	sorted := []candidate[F](*results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].distance < sorted[j].distance })
	out := make([]common.Point[F], len(sorted))
	for i, c := range sorted {
		out[i] = c.point
	}
	return out
}
