package common

import "math"

// Euclidean returns the straight-line distance between (ax, ay) and (bx, by).
func Euclidean[F Float](ax, ay, bx, by F) F {
	dx := float64(ax - bx)
	dy := float64(ay - by)
	return F(math.Sqrt(dx*dx + dy*dy))
}

// Manhattan returns the L1 distance between (ax, ay) and (bx, by).
func Manhattan[F Float](ax, ay, bx, by F) F {
	return F(math.Abs(float64(ax-bx)) + math.Abs(float64(ay-by)))
}

func PointDistance[F Float](a, b Point[F]) F {
	return Euclidean(a.X, a.Y, b.X, b.Y)
}
