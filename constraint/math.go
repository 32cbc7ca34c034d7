package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// inv is a reciprocal returning zero instead of infinity
func inv(x float64) float64 {
	if x == 0 {
		return 0
	}
	return 1 / x
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// OrthonormalBasis returns two unit vectors orthogonal to the unit vector n
// and to each other. The result only depends on n.
func OrthonormalBasis(n mgl64.Vec3) [DIM - 1]mgl64.Vec3 {
	var tangent1 mgl64.Vec3
	if math.Abs(n.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(n.Mul(tangent1.Dot(n))).Normalize()
	tangent2 := n.Cross(tangent1).Normalize()

	return [DIM - 1]mgl64.Vec3{tangent1, tangent2}
}
