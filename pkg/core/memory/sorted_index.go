package memory

import (
	"math"
	"sync"

	"github.com/google/btree"

	"neurogeo/pkg/common"
)

type Point = common.Point[float64]

func less(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// SortedIndex keeps points in a B-tree ordered by (X, Y). It answers the
// same queries as the learned map and serves as the baseline it is
// measured against.
type SortedIndex struct {
	tree *btree.BTreeG[Point]
	lock sync.RWMutex
}

func NewSortedIndex(degree int) *SortedIndex {
	return &SortedIndex{
		tree: btree.NewG(degree, less),
	}
}

// Put stores p, replacing any point at the same coordinates.
func (si *SortedIndex) Put(p Point) (Point, bool) {
	si.lock.Lock()
	defer si.lock.Unlock()
	return si.tree.ReplaceOrInsert(p)
}

func (si *SortedIndex) Get(x, y float64) (Point, bool) {
	si.lock.RLock()
	defer si.lock.RUnlock()
	return si.tree.Get(Point{X: x, Y: y})
}

func (si *SortedIndex) Delete(x, y float64) (Point, bool) {
	si.lock.Lock()
	defer si.lock.Unlock()
	return si.tree.Delete(Point{X: x, Y: y})
}

// Range returns the points inside the closed box [bl, tr], ascending by X.
func (si *SortedIndex) Range(bl, tr [2]float64) []Point {
	si.lock.RLock()
	defer si.lock.RUnlock()

	var out []Point
	si.tree.AscendGreaterOrEqual(Point{X: bl[0], Y: math.Inf(-1)}, func(p Point) bool {
		if p.X > tr[0] {
			return false
		}
		if p.Y >= bl[1] && p.Y <= tr[1] {
			out = append(out, p)
		}
		return true
	})
	return out
}

// Nearest scans every point. It is exact and slow on purpose.
func (si *SortedIndex) Nearest(q [2]float64) (Point, bool) {
	si.lock.RLock()
	defer si.lock.RUnlock()

	var best Point
	bestDist := math.Inf(1)
	found := false
	si.tree.Ascend(func(p Point) bool {
		if d := common.Euclidean(q[0], q[1], p.X, p.Y); d < bestDist {
			best, bestDist, found = p, d, true
		}
		return true
	})
	return best, found
}

func (si *SortedIndex) Iterator(fn func(p Point) bool) {
	si.lock.RLock()
	defer si.lock.RUnlock()
	si.tree.Ascend(fn)
}

func (si *SortedIndex) Count() int {
	si.lock.RLock()
	defer si.lock.RUnlock()
	return si.tree.Len()
}

func (si *SortedIndex) Clear() {
	si.lock.Lock()
	defer si.lock.Unlock()
	si.tree.Clear(false)
}
