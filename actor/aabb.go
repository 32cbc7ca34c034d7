package actor

import "github.com/go-gl/mathgl/mgl64"

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABB builds the box spanning the two corners, whatever their order
func NewAABB(a, b mgl64.Vec3) AABB {
	return AABB{
		Min: mgl64.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])},
		Max: mgl64.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])},
	}
}

// Mins returns the lower bound of the box along the given axis
func (a AABB) Mins(dim int) float64 {
	return a.Min[dim]
}

// Maxs returns the upper bound of the box along the given axis
func (a AABB) Maxs(dim int) float64 {
	return a.Max[dim]
}

// Overlaps checks if two AABBs overlap on all three axes, touching faces included
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Intersects is the exact test used by the sweep and prune axes. It is
// inclusive like Overlaps, but the axes only run it when endpoints cross
// strictly: boxes moving into face contact are not reported until they
// actually overlap.
func (a AABB) Intersects(other AABB) bool {
	return a.Overlaps(other)
}

// Loosened grows the box by margin on every side
func (a AABB) Loosened(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}
