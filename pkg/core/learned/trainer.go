package learned

import (
	"neurogeo/pkg/common"
	"neurogeo/pkg/model"
	"neurogeo/pkg/stats"
)

// TrainingSet is the supervised dataset a model learns from: the sorted
// coordinates of the chosen axis and each point's rank along it.
type TrainingSet[F common.Float] struct {
	Axis common.Axis
	Xs   []F
	Ys   []F
}

// NewTrainingSet picks the axis with the larger variance, sorts ps along it
// and overwrites every ID with the point's rank.
func NewTrainingSet[F common.Float](ps []common.Point[F]) (*TrainingSet[F], error) {
	if len(ps) == 0 {
		return nil, model.ErrEmptyInput
	}

	axis := common.AxisY
	if stats.Variance(common.ExtractX(ps)) > stats.Variance(common.ExtractY(ps)) {
		axis = common.AxisX
	}

	common.SortByAxis(ps, axis)
	common.ResetIDs(ps)

	return &TrainingSet[F]{
		Axis: axis,
		Xs:   common.ExtractAxis(ps, axis),
		Ys:   common.Ranks(ps),
	}, nil
}

// Fit trains m on the set.
func (ts *TrainingSet[F]) Fit(m model.Model[F]) error {
	return m.Fit(ts.Xs, ts.Ys)
}

func (ts *TrainingSet[F]) Pairs() [][2]F {
	pairs := make([][2]F, len(ts.Xs))
	for i := range ts.Xs {
		pairs[i] = [2]F{ts.Xs[i], ts.Ys[i]}
	}
	return pairs
}
