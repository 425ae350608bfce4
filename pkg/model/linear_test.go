package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleXs = []float64{1, 2, 3, 4, 5}
	sampleYs = []float64{1, 3, 2, 3, 5}
)

func TestLinearFitCoefficients(t *testing.T) {
	lm := NewLinearModel[float64]()
	require.NoError(t, lm.Fit(sampleXs, sampleYs))
	assert.InDelta(t, 0.8, lm.Coefficient, 1e-5)
	assert.InDelta(t, 0.4, lm.Intercept, 1e-5)
}

func TestLinearFitCoefficientsFloat32(t *testing.T) {
	lm := NewLinearModel[float32]()
	require.NoError(t, lm.Fit([]float32{1, 2, 3, 4, 5}, []float32{1, 3, 2, 3, 5}))
	assert.InDelta(t, 0.8, float64(lm.Coefficient), 1e-5)
	assert.InDelta(t, 0.4, float64(lm.Intercept), 1e-5)
}

func TestLinearFitTuple(t *testing.T) {
	lm := NewLinearModel[float64]()
	require.NoError(t, lm.FitTuple([][2]float64{{1, 1}, {2, 3}, {3, 2}, {4, 3}, {5, 5}}))
	assert.InDelta(t, 0.8, lm.Coefficient, 1e-5)
	assert.InDelta(t, 0.4, lm.Intercept, 1e-5)
}

func TestLinearPredict(t *testing.T) {
	lm := NewLinearModel[float64]()
	require.NoError(t, lm.Fit(sampleXs, sampleYs))

	want := []float64{1.2, 2, 2.8, 3.6, 4.4}
	for i, x := range sampleXs {
		assert.InDelta(t, want[i], lm.Predict(x), 1e-5)
	}
	for i, y := range lm.BatchPredict(sampleXs) {
		assert.InDelta(t, want[i], y, 1e-5)
	}
}

func TestLinearEvaluate(t *testing.T) {
	lm := NewLinearModel[float64]()
	require.NoError(t, lm.Fit(sampleXs, sampleYs))

	rmse, err := lm.Evaluate(sampleXs, sampleYs)
	require.NoError(t, err)
	assert.InDelta(t, 0.69282, rmse, 1e-5)

	_, err = lm.Evaluate(sampleXs, sampleYs[:2])
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLinearUnpredict(t *testing.T) {
	lm := &LinearModel[float64]{Coefficient: 3, Intercept: 2}
	assert.InDelta(t, 33.5, lm.Predict(10.5), 1e-9)
	assert.InDelta(t, 10.33, lm.Unpredict(33), 0.01)

	var zero LinearModel[float64]
	assert.True(t, math.IsInf(zero.Unpredict(1), 1))
}

func TestLinearFitErrorsLeaveModelUnchanged(t *testing.T) {
	lm := &LinearModel[float64]{Coefficient: 2, Intercept: 1}

	assert.ErrorIs(t, lm.Fit(nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, lm.FitTuple(nil), ErrEmptyInput)
	assert.ErrorIs(t, lm.Fit([]float64{1, 2}, []float64{1}), ErrLengthMismatch)
	assert.ErrorIs(t, lm.Fit([]float64{3, 3, 3}, []float64{0, 1, 2}), ErrSteepSlope)

	assert.Equal(t, 2.0, lm.Coefficient)
	assert.Equal(t, 1.0, lm.Intercept)
}

func TestNewByName(t *testing.T) {
	m, err := New[float64]("", 0)
	require.NoError(t, err)
	assert.Equal(t, "linear", m.Name())

	m, err = New[float64]("piecewise", 8)
	require.NoError(t, err)
	assert.Equal(t, "piecewise", m.Name())

	_, err = New[float64]("cubic", 0)
	assert.Error(t, err)
}
