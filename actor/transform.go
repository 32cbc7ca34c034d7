package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform places a body in world space: its center of mass and orientation
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// At creates an unrotated transform located at position
func At(position mgl64.Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

// RotationMatrix returns the orientation as a 3x3 matrix
func (t Transform) RotationMatrix() mgl64.Mat3 {
	return t.Rotation.Normalize().Mat4().Mat3()
}
