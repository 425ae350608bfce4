package model

import (
	"math"
	"sort"

	"neurogeo/pkg/common"
)

const DefaultSegments = 64

// PiecewiseModel is a two stage model.
// Stage 1: equal-width ranges over [Min, Max] pick a segment.
// Stage 2: one linear regression per segment predicts the global rank.
//
// Every segment clamps its output to [lo, hi] where hi is the lo of the next
// segment, so the model never decreases.
type PiecewiseModel[F common.Float] struct {
	Fanout   int
	Min      F
	Max      F
	segments []segment[F]
}

type segment[F common.Float] struct {
	lm       LinearModel[F]
	constant bool
	lo, hi   F
}

func NewPiecewiseModel[F common.Float](fanout int) *PiecewiseModel[F] {
	if fanout <= 0 {
		fanout = DefaultSegments
	}
	return &PiecewiseModel[F]{Fanout: fanout}
}

func (pm *PiecewiseModel[F]) Name() string {
	return "piecewise"
}

func (pm *PiecewiseModel[F]) segmentOf(x F, lo, width float64) int {
	idx := int((float64(x) - lo) / width * float64(pm.Fanout))
	if idx >= pm.Fanout {
		idx = pm.Fanout - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (pm *PiecewiseModel[F]) Fit(xs, ys []F) error {
	if err := checkInput(xs, ys); err != nil {
		return err
	}

	pairs := make([][2]F, len(xs))
	for i := range xs {
		pairs[i] = [2]F{xs[i], ys[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	minX, maxX := pairs[0][0], pairs[len(pairs)-1][0]
	width := float64(maxX - minX)
	if width == 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return ErrSteepSlope
	}

	// 1. 分桶
	bucketXs := make([][]F, pm.Fanout)
	bucketYs := make([][]F, pm.Fanout)
	for _, p := range pairs {
		idx := pm.segmentOf(p[0], float64(minX), width)
		bucketXs[idx] = append(bucketXs[idx], p[0])
		bucketYs[idx] = append(bucketYs[idx], p[1])
	}

	// 2. 每个桶训练一个线性模型
	segs := make([]segment[F], pm.Fanout)
	floor := F(math.Inf(-1))
	for i := range segs {
		if len(bucketXs[i]) == 0 {
			segs[i].constant = true
			continue
		}
		lo := minOf(bucketYs[i])
		if lo < floor {
			lo = floor
		}
		floor = lo
		segs[i].lo = lo

		if err := segs[i].lm.Fit(bucketXs[i], bucketYs[i]); err != nil || segs[i].lm.Coefficient < 0 {
			segs[i].lm = LinearModel[F]{Intercept: lo}
			segs[i].constant = true
		}
	}

	// 3. 每段的上界是下一个非空段的下界
	top := maxOf(ys)
	if top < floor {
		top = floor
	}
	next := top
	for i := len(segs) - 1; i >= 0; i-- {
		if len(bucketXs[i]) == 0 {
			segs[i].lo, segs[i].hi = next, next
			segs[i].lm = LinearModel[F]{Intercept: next}
			continue
		}
		segs[i].hi = next
		next = segs[i].lo
	}

	pm.Min, pm.Max = minX, maxX
	pm.segments = segs
	return nil
}

func (pm *PiecewiseModel[F]) FitTuple(xys [][2]F) error {
	if len(xys) == 0 {
		return ErrEmptyInput
	}
	xs, ys := splitTuples(xys)
	return pm.Fit(xs, ys)
}

func (pm *PiecewiseModel[F]) Predict(x F) F {
	if len(pm.segments) == 0 {
		return 0
	}
	s := &pm.segments[pm.segmentOf(x, float64(pm.Min), float64(pm.Max-pm.Min))]
	y := s.lm.Predict(x)
	if s.constant || y < s.lo {
		y = s.lo
	}
	if y > s.hi {
		y = s.hi
	}
	return y
}

// Unpredict returns the smallest x whose prediction reaches y. It returns -Inf
// when every x does and +Inf when none does.
func (pm *PiecewiseModel[F]) Unpredict(y F) F {
	if len(pm.segments) == 0 {
		return F(math.Inf(1))
	}
	if y <= pm.segments[0].lo {
		return F(math.Inf(-1))
	}
	if y > pm.segments[len(pm.segments)-1].hi {
		return F(math.Inf(1))
	}

	lo, hi := float64(pm.Min), float64(pm.Max)
	step := hi - lo
	for i := 0; i < 64 && pm.Predict(F(lo)) >= y; i++ {
		lo -= step
		step *= 2
	}
	if pm.Predict(F(lo)) >= y {
		return F(math.Inf(-1))
	}
	step = hi - lo
	for i := 0; i < 64 && pm.Predict(F(hi)) < y; i++ {
		hi += step
		step *= 2
	}
	if pm.Predict(F(hi)) < y {
		return F(math.Inf(1))
	}

	// predict(lo) < y <= predict(hi)
	for i := 0; i < 128; i++ {
		mid := lo + (hi-lo)/2
		if mid <= lo || mid >= hi {
			break
		}
		if pm.Predict(F(mid)) >= y {
			hi = mid
		} else {
			lo = mid
		}
	}
	return F(hi)
}

func (pm *PiecewiseModel[F]) BatchPredict(xs []F) []F {
	return batchPredict[F](pm, xs)
}

func (pm *PiecewiseModel[F]) Evaluate(xs, ys []F) (F, error) {
	return evaluate[F](pm, xs, ys)
}

func minOf[F common.Float](vs []F) F {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf[F common.Float](vs []F) F {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
