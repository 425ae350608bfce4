package learned

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/model"
)

// growthFactor caps how many buckets per stored point an out-of-range insert
// may allocate. Hashes beyond the grown table fall into its last bucket.
const growthFactor = 4

// LearnedHashMap stores 2-D points in buckets chosen by a monotone model of
// one coordinate. Neighbouring buckets hold neighbouring coordinates, which is
// what range and nearest-neighbour search rely on.
//
// A LearnedHashMap is not safe for concurrent use.
type LearnedHashMap[F common.Float, M model.Model[F]] struct {
	hasher *Hasher[F, M]
	table  table[F]
	items  int
}

// New returns an empty map backed by an untrained linear model.
func New[F common.Float]() *LearnedHashMap[F, *model.LinearModel[F]] {
	return WithModel[F](model.NewLinearModel[F]())
}

// WithCapacity is New with capacity buckets allocated up front.
func WithCapacity[F common.Float](capacity int) *LearnedHashMap[F, *model.LinearModel[F]] {
	m := New[F]()
	m.table = newTable[F](capacity)
	return m
}

// WithModel returns an empty map that hashes with the given model.
func WithModel[F common.Float, M model.Model[F]](m M) *LearnedHashMap[F, M] {
	return &LearnedHashMap[F, M]{
		hasher: NewHasher[F](m),
		table:  newTable[F](0),
	}
}

// Insert adds p. If a point already sits at p's coordinates it is replaced
// and returned.
func (m *LearnedHashMap[F, M]) Insert(p common.Point[F]) (common.Point[F], bool) {
	capacity := m.table.capacity()
	if capacity == 0 || m.items > 3*capacity/4 {
		m.grow()
	}

	hash := m.hasher.HashPoint(p)
	if capacity = m.table.capacity(); hash >= capacity {
		m.resize(min(hash+1, max(2*capacity, growthFactor*(m.items+1))))
	}
	return m.insertWithHash(hash, p)
}

func (m *LearnedHashMap[F, M]) insertWithHash(hash int, p common.Point[F]) (common.Point[F], bool) {
	axis := m.hasher.Axis()
	b := m.table.bucketAt(hash)

	key := p.Coord(axis)
	pos := 0
	items := b.items()
	for i := range items {
		if items[i].SameCoords(p.X, p.Y) {
			old := items[i]
			items[i] = p
			return old, true
		}
		if items[i].Coord(axis) < key {
			pos++
		}
	}

	b.insert(pos, p)
	m.items++
	return common.Point[F]{}, false
}

// BatchInsert trains the model on ps and inserts them. ps is sorted in place
// along the chosen axis and every ID is replaced by the point's rank. When the
// fit fails the map is left untouched. A fit that is not monotonic has already
// replaced the model, so the batch is still inserted and the wrapped
// model.ErrNotMonotonic is returned.
func (m *LearnedHashMap[F, M]) BatchInsert(ps []common.Point[F]) error {
	err := m.Train(ps)
	if err != nil && !errors.Is(err, model.ErrNotMonotonic) {
		return err
	}
	for _, p := range ps {
		m.Insert(p)
	}
	return err
}

// Train fits the model to ps and rehashes the stored points without adding
// ps to the map. ps is sorted and renumbered as in BatchInsert.
func (m *LearnedHashMap[F, M]) Train(ps []common.Point[F]) error {
	return m.train(ps, len(ps)+m.items)
}

// Retrain fits the model to the points currently stored. Their IDs are kept.
func (m *LearnedHashMap[F, M]) Retrain() error {
	if m.items == 0 {
		return model.ErrEmptyInput
	}
	return m.train(m.Points(), m.items)
}

func (m *LearnedHashMap[F, M]) train(ps []common.Point[F], capacity int) error {
	ts, err := NewTrainingSet(ps)
	if err != nil {
		return err
	}
	if err := ts.Fit(m.hasher.Model()); err != nil {
		return errors.Wrapf(err, "fit %s model", m.hasher.Model().Name())
	}

	// The model has changed, so the table is rebuilt even if the check fails.
	monotonic := model.CheckMonotonic[F](m.hasher.Model(), ts.Xs)
	m.hasher.SetAxis(ts.Axis)
	m.resize(capacity)
	return monotonic
}

func (m *LearnedHashMap[F, M]) grow() {
	if m.table.capacity() == 0 {
		m.resize(1)
		return
	}
	m.resize(2 * m.table.capacity())
}

func (m *LearnedHashMap[F, M]) resize(capacity int) {
	m.table.rehash(capacity, m.hasher.HashPoint, m.hasher.Axis())
}

// Get returns the point stored at (x, y).
func (m *LearnedHashMap[F, M]) Get(x, y F) (common.Point[F], bool) {
	if m.table.capacity() == 0 {
		return common.Point[F]{}, false
	}
	hash := m.hasher.Hash(x, y)
	for _, p := range m.table.bucketAt(hash).items() {
		if p.SameCoords(x, y) {
			return p, true
		}
	}
	return common.Point[F]{}, false
}

func (m *LearnedHashMap[F, M]) ContainsKey(x, y F) bool {
	_, ok := m.Get(x, y)
	return ok
}

// Remove deletes the point at p's coordinates and returns what was stored there.
func (m *LearnedHashMap[F, M]) Remove(p common.Point[F]) (common.Point[F], bool) {
	if m.table.capacity() == 0 {
		return common.Point[F]{}, false
	}
	old, ok := m.table.removeEntry(m.hasher.HashPoint(p), p)
	if ok {
		m.items--
	}
	return old, ok
}

// RangeSearch returns the points inside the closed box spanned by bottomLeft
// and topRight. It reports false when nothing matches.
func (m *LearnedHashMap[F, M]) RangeSearch(bottomLeft, topRight [2]F) ([]common.Point[F], bool) {
	capacity := m.table.capacity()
	if capacity == 0 {
		return nil, false
	}

	left := m.table.slot(m.hasher.Hash(bottomLeft[0], bottomLeft[1]))
	right := m.table.slot(m.hasher.Hash(topRight[0], topRight[1]))
	if left > right {
		return nil, false
	}

	var out []common.Point[F]
	for i := left; i <= right; i++ {
		for _, p := range m.table.bucketAt(i).items() {
			if p.X >= bottomLeft[0] && p.X <= topRight[0] && p.Y >= bottomLeft[1] && p.Y <= topRight[1] {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// BoxRadiusRange returns the points inside the square of half-side radius
// centred on center.
func (m *LearnedHashMap[F, M]) BoxRadiusRange(center [2]F, radius F) ([]common.Point[F], bool) {
	return m.RangeSearch(
		[2]F{center[0] - radius, center[1] - radius},
		[2]F{center[0] + radius, center[1] + radius},
	)
}

// RadiusRange returns the points within Euclidean distance radius of center.
func (m *LearnedHashMap[F, M]) RadiusRange(center [2]F, radius F) ([]common.Point[F], bool) {
	box, ok := m.BoxRadiusRange(center, radius)
	if !ok {
		return nil, false
	}
	out := box[:0]
	for _, p := range box {
		if common.Euclidean(center[0], center[1], p.X, p.Y) <= radius {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Points returns a copy of every stored point in bucket order.
func (m *LearnedHashMap[F, M]) Points() []common.Point[F] {
	out := make([]common.Point[F], 0, m.items)
	m.table.each(func(p common.Point[F]) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Range calls fn for every stored point until fn returns false.
func (m *LearnedHashMap[F, M]) Range(fn func(common.Point[F]) bool) {
	m.table.each(fn)
}

func (m *LearnedHashMap[F, M]) Len() int {
	return m.items
}

func (m *LearnedHashMap[F, M]) IsEmpty() bool {
	return m.items == 0
}

// Capacity is the number of buckets.
func (m *LearnedHashMap[F, M]) Capacity() int {
	return m.table.capacity()
}

// Occupied is the number of non-empty buckets.
func (m *LearnedHashMap[F, M]) Occupied() int {
	return m.table.occupied()
}

func (m *LearnedHashMap[F, M]) Axis() common.Axis {
	return m.hasher.Axis()
}

func (m *LearnedHashMap[F, M]) Model() M {
	return m.hasher.Model()
}

func (m *LearnedHashMap[F, M]) Hasher() *Hasher[F, M] {
	return m.hasher
}

// DiagnosticPoint compares where the model sends a point with the point's
// true rank along the hashed axis.
type DiagnosticPoint struct {
	ID        int     `json:"id"`
	Coord     float64 `json:"coord"`
	Rank      int     `json:"rank"`
	Predicted float64 `json:"predicted"`
	Bucket    int     `json:"bucket"`
	Error     float64 `json:"error"`
}

// Diagnostics samples at most 5000 points in rank order.
func (m *LearnedHashMap[F, M]) Diagnostics() []DiagnosticPoint {
	ps := m.Points()
	axis := m.hasher.Axis()
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Coord(axis) < ps[j].Coord(axis) })

	// 采样导出，避免数据量过大
	step := 1
	if len(ps) > 5000 {
		step = len(ps) / 5000
	}

	out := make([]DiagnosticPoint, 0, len(ps)/step+1)
	for i := 0; i < len(ps); i += step {
		c := ps[i].Coord(axis)
		pred := float64(m.hasher.Model().Predict(c))
		out = append(out, DiagnosticPoint{
			ID:        ps[i].ID,
			Coord:     float64(c),
			Rank:      i,
			Predicted: pred,
			Bucket:    m.table.slot(m.hasher.HashCoord(c)),
			Error:     math.Abs(float64(i) - pred),
		})
	}
	return out
}
