package model

import (
	"math"

	"neurogeo/pkg/common"
	"neurogeo/pkg/stats"
)

// LinearModel is y = Coefficient*x + Intercept. The zero value predicts 0
// everywhere.
type LinearModel[F common.Float] struct {
	Coefficient F
	Intercept   F
}

func NewLinearModel[F common.Float]() *LinearModel[F] {
	return &LinearModel[F]{}
}

func (lm *LinearModel[F]) Name() string {
	return "linear"
}

// Fit is ordinary least squares: slope = cov(x, y) / var(x).
func (lm *LinearModel[F]) Fit(xs, ys []F) error {
	if err := checkInput(xs, ys); err != nil {
		return err
	}
	slope, intercept, err := solve(xs, ys)
	if err != nil {
		return err
	}
	lm.Coefficient = slope
	lm.Intercept = intercept
	return nil
}

func (lm *LinearModel[F]) FitTuple(xys [][2]F) error {
	if len(xys) == 0 {
		return ErrEmptyInput
	}
	xs, ys := splitTuples(xys)
	return lm.Fit(xs, ys)
}

func solve[F common.Float](xs, ys []F) (F, F, error) {
	cov, err := stats.Covariance(xs, ys)
	if err != nil {
		return 0, 0, err
	}
	variance := stats.Variance(xs)

	slope := float64(cov) / float64(variance)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, 0, ErrSteepSlope
	}
	intercept := float64(stats.Mean(ys)) - slope*float64(stats.Mean(xs))
	return F(slope), F(intercept), nil
}

func (lm *LinearModel[F]) Predict(x F) F {
	return x*lm.Coefficient + lm.Intercept
}

// Unpredict inverts Predict. A zero coefficient has no inverse and yields
// ±Inf or NaN.
func (lm *LinearModel[F]) Unpredict(y F) F {
	return (y - lm.Intercept) / lm.Coefficient
}

func (lm *LinearModel[F]) BatchPredict(xs []F) []F {
	return batchPredict[F](lm, xs)
}

// Evaluate returns the root mean squared error of the model on a test set.
func (lm *LinearModel[F]) Evaluate(xs, ys []F) (F, error) {
	return evaluate[F](lm, xs, ys)
}
