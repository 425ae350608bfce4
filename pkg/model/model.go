package model

import (
	"sort"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/stats"
)

var (
	ErrEmptyInput     = errors.New("model: empty input")
	ErrLengthMismatch = stats.ErrLengthMismatch
	ErrSteepSlope     = errors.New("model: slope is too steep to represent")
	ErrNotMonotonic   = errors.New("model: prediction is not monotonic")
)

// Model maps a coordinate to its approximate rank. Fit must leave the
// receiver unchanged when it returns an error.
type Model[F common.Float] interface {
	Name() string
	Fit(xs, ys []F) error
	FitTuple(xys [][2]F) error
	Predict(x F) F
	Unpredict(y F) F
	BatchPredict(xs []F) []F
	Evaluate(xs, ys []F) (F, error)
}

// New builds an unfit model by name ("linear" or "piecewise").
func New[F common.Float](kind string, segments int) (Model[F], error) {
	switch kind {
	case "", "linear":
		return NewLinearModel[F](), nil
	case "piecewise", "rmi":
		return NewPiecewiseModel[F](segments), nil
	default:
		return nil, errors.Errorf("model: unknown kind %q", kind)
	}
}

// CheckMonotonic verifies that m never decreases over the sorted xs.
func CheckMonotonic[F common.Float](m Model[F], xs []F) error {
	sorted := append([]F(nil), xs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	prev := m.Predict(sorted[0])
	for _, x := range sorted[1:] {
		cur := m.Predict(x)
		if cur < prev {
			return errors.Wrapf(ErrNotMonotonic, "%s model drops from %v to %v at %v", m.Name(), prev, cur, x)
		}
		prev = cur
	}
	return nil
}

func splitTuples[F common.Float](xys [][2]F) ([]F, []F) {
	xs := make([]F, len(xys))
	ys := make([]F, len(xys))
	for i, xy := range xys {
		xs[i], ys[i] = xy[0], xy[1]
	}
	return xs, ys
}

func checkInput[F common.Float](xs, ys []F) error {
	if len(xs) == 0 || len(ys) == 0 {
		return ErrEmptyInput
	}
	if len(xs) != len(ys) {
		return ErrLengthMismatch
	}
	return nil
}

func batchPredict[F common.Float](m Model[F], xs []F) []F {
	out := make([]F, len(xs))
	for i, x := range xs {
		out[i] = m.Predict(x)
	}
	return out
}

func evaluate[F common.Float](m Model[F], xs, ys []F) (F, error) {
	if len(xs) != len(ys) {
		return 0, ErrLengthMismatch
	}
	return stats.RootMeanSquaredError(ys, m.BatchPredict(xs))
}
