package learned

import (
	"slices"

	"neurogeo/pkg/common"
)

// inlineBucketSize is how many points a bucket holds before spilling to the heap.
const inlineBucketSize = 6

// bucket keeps up to inlineBucketSize points in place and moves everything
// into spill once it outgrows that.
type bucket[F common.Float] struct {
	inline [inlineBucketSize]common.Point[F]
	n      int
	spill  []common.Point[F]
}

// items aliases the bucket's storage. Callers must not keep it across mutations.
func (b *bucket[F]) items() []common.Point[F] {
	if b.spill != nil {
		return b.spill
	}
	return b.inline[:b.n]
}

func (b *bucket[F]) len() int {
	if b.spill != nil {
		return len(b.spill)
	}
	return b.n
}

func (b *bucket[F]) insert(i int, p common.Point[F]) {
	if b.spill == nil && b.n < inlineBucketSize {
		copy(b.inline[i+1:b.n+1], b.inline[i:b.n])
		b.inline[i] = p
		b.n++
		return
	}
	if b.spill == nil {
		b.spill = make([]common.Point[F], b.n, 2*inlineBucketSize)
		copy(b.spill, b.inline[:b.n])
		b.inline = [inlineBucketSize]common.Point[F]{}
		b.n = 0
	}
	b.spill = slices.Insert(b.spill, i, p)
}

// insertSorted places p after every point whose key is smaller.
func (b *bucket[F]) insertSorted(p common.Point[F], axis common.Axis) {
	key := p.Coord(axis)
	pos := 0
	for _, q := range b.items() {
		if q.Coord(axis) < key {
			pos++
		}
	}
	b.insert(pos, p)
}

// swapRemove removes the i-th point by moving the last one into its slot.
func (b *bucket[F]) swapRemove(i int) common.Point[F] {
	items := b.items()
	p := items[i]
	last := len(items) - 1
	items[i] = items[last]
	items[last] = common.Point[F]{}
	if b.spill != nil {
		b.spill = b.spill[:last]
	} else {
		b.n--
	}
	return p
}

func (b *bucket[F]) spilled() bool {
	return b.spill != nil
}

// table is a fixed array of buckets. Growth happens by rehashing into a new one.
type table[F common.Float] struct {
	buckets []bucket[F]
}

func newTable[F common.Float](capacity int) table[F] {
	return table[F]{buckets: make([]bucket[F], capacity)}
}

func (t *table[F]) capacity() int {
	return len(t.buckets)
}

// slot maps a hash to its bucket. Hashes past the end land in the last
// bucket, which keeps bucket order monotone in the hash.
func (t *table[F]) slot(hash int) int {
	if last := len(t.buckets) - 1; hash > last {
		return last
	}
	return hash
}

func (t *table[F]) bucketAt(hash int) *bucket[F] {
	return &t.buckets[t.slot(hash)]
}

// occupied counts non-empty buckets.
func (t *table[F]) occupied() int {
	n := 0
	for i := range t.buckets {
		if t.buckets[i].len() > 0 {
			n++
		}
	}
	return n
}

// removeEntry deletes the point in the hash's bucket that sits at p's coordinates.
func (t *table[F]) removeEntry(hash int, p common.Point[F]) (common.Point[F], bool) {
	b := t.bucketAt(hash)
	for i, q := range b.items() {
		if q.SameCoords(p.X, p.Y) {
			return b.swapRemove(i), true
		}
	}
	return common.Point[F]{}, false
}

// rehash moves every point into a fresh table of the given capacity.
func (t *table[F]) rehash(capacity int, hash func(common.Point[F]) int, axis common.Axis) {
	next := newTable[F](max(capacity, 1))
	for i := range t.buckets {
		for _, p := range t.buckets[i].items() {
			next.bucketAt(hash(p)).insertSorted(p, axis)
		}
	}
	*t = next
}

func (t *table[F]) each(fn func(common.Point[F]) bool) {
	for i := range t.buckets {
		for _, p := range t.buckets[i].items() {
			if !fn(p) {
				return
			}
		}
	}
}
