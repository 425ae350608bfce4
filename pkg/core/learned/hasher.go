package learned

import (
	"math"

	"neurogeo/pkg/common"
	"neurogeo/pkg/model"
)

// MaxHash bounds the hash a hasher may produce so the float to int
// conversion never overflows.
const MaxHash = 1 << 26

// Hasher turns the coordinate on its axis into a bucket index through the
// model's prediction.
type Hasher[F common.Float, M model.Model[F]] struct {
	model M
	axis  common.Axis
}

func NewHasher[F common.Float, M model.Model[F]](m M) *Hasher[F, M] {
	return &Hasher[F, M]{model: m, axis: common.AxisX}
}

func (h *Hasher[F, M]) Model() M {
	return h.model
}

func (h *Hasher[F, M]) Axis() common.Axis {
	return h.axis
}

func (h *Hasher[F, M]) SetAxis(axis common.Axis) {
	h.axis = axis
}

// HashCoord floors the prediction for c. Negative and NaN predictions map to 0.
func (h *Hasher[F, M]) HashCoord(c F) int {
	v := math.Floor(float64(h.model.Predict(c)))
	if !(v > 0) {
		return 0
	}
	if v >= MaxHash {
		return MaxHash
	}
	return int(v)
}

func (h *Hasher[F, M]) Hash(x, y F) int {
	if h.axis == common.AxisX {
		return h.HashCoord(x)
	}
	return h.HashCoord(y)
}

func (h *Hasher[F, M]) HashPoint(p common.Point[F]) int {
	return h.Hash(p.X, p.Y)
}

// Unhash estimates the smallest coordinate that hashes to hash. It is a
// search bound, not an exact inverse.
func (h *Hasher[F, M]) Unhash(hash int) F {
	return h.model.Unpredict(F(hash))
}
