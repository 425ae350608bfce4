// Package stats holds the numeric helpers used while fitting models and
// choosing the hashing axis. Every helper returns zero for empty input.
package stats

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"neurogeo/pkg/common"
)

var ErrLengthMismatch = errors.New("stats: input lengths differ")

func toFloat64[F common.Float](xs []F) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func Mean[F common.Float](xs []F) F {
	if len(xs) == 0 {
		return 0
	}
	return F(stat.Mean(toFloat64(xs), nil))
}

// Variance is the population variance (divides by n).
func Variance[F common.Float](xs []F) F {
	if len(xs) == 0 {
		return 0
	}
	return F(stat.PopVariance(toFloat64(xs), nil))
}

// Covariance is the population covariance of xs and ys.
func Covariance[F common.Float](xs, ys []F) (F, error) {
	if len(xs) != len(ys) {
		return 0, ErrLengthMismatch
	}
	if len(xs) == 0 {
		return 0, nil
	}
	xc, yc := toFloat64(xs), toFloat64(ys)
	floats.AddConst(-stat.Mean(xc, nil), xc)
	floats.AddConst(-stat.Mean(yc, nil), yc)
	return F(floats.Dot(xc, yc) / float64(len(xc))), nil
}

func MeanSquaredError[F common.Float](actual, predicted []F) (F, error) {
	if len(actual) != len(predicted) {
		return 0, ErrLengthMismatch
	}
	if len(actual) == 0 {
		return 0, nil
	}
	d := floats.Distance(toFloat64(actual), toFloat64(predicted), 2)
	return F(d * d / float64(len(actual))), nil
}

func RootMeanSquaredError[F common.Float](actual, predicted []F) (F, error) {
	mse, err := MeanSquaredError(actual, predicted)
	if err != nil {
		return 0, err
	}
	return F(math.Sqrt(float64(mse))), nil
}
