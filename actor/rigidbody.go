package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move with their own velocity but ignore
	// forces and contacts, like a moving platform
	BodyTypeKinematic
)

// NoIslandOffset marks a body without a slot in the solver's delta-velocity buffer
const NoIslandOffset = -1

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	Friction       float64
	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	Id any

	// Spatial properties
	Transform Transform

	// Linear motion
	Velocity mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	AngularVelocity mgl64.Vec3 // rad/s
	// Inertia tensor in local space, diagonal for every built-in shape
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64
	IsTrigger  bool

	// IslandOffset is the body's slot in the shared delta-velocity buffer for
	// the current step, NoIslandOffset when the body is not solved
	IslandOffset int

	// Physical properties
	Material Material
	BodyType BodyType

	// Collision shape
	Shape ShapeInterface
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored otherwise)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	if transform.Rotation.Len() == 0 {
		transform.Rotation = mgl64.QuatIdent()
	}
	transform.InverseRotation = transform.Rotation.Inverse()

	rb := &RigidBody{
		Transform:    transform,
		Shape:        shape,
		BodyType:     bodyType,
		IslandOffset: NoIslandOffset,
	}

	if bodyType == BodyTypeDynamic {
		rb.Material = Material{
			Density: density,
			mass:    shape.ComputeMass(density),
		}
		rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
		rb.InverseInertiaLocal = invDiag(rb.InertiaLocal)
	} else {
		rb.Material = Material{mass: math.Inf(1)}
	}

	rb.Shape.ComputeAABB(rb.Transform)

	return rb
}

// invDiag inverts a diagonal inertia tensor, leaving degenerate axes at zero
func invDiag(m mgl64.Mat3) mgl64.Mat3 {
	d := m.Diag()
	return mgl64.Diag3(mgl64.Vec3{inv(d[0]), inv(d[1]), inv(d[2])})
}

func inv(x float64) float64 {
	if x == 0 || math.IsInf(x, 0) {
		return 0
	}
	return 1 / x
}

func (rb *RigidBody) IsDynamic() bool {
	return rb.BodyType == BodyTypeDynamic
}

// EffectiveInvMass is zero for static and kinematic bodies
func (rb *RigidBody) EffectiveInvMass() float64 {
	if !rb.IsDynamic() {
		return 0
	}
	return inv(rb.Material.mass)
}

// WorldCom returns the world-space center of mass
func (rb *RigidBody) WorldCom() mgl64.Vec3 {
	return rb.Transform.Position
}

// Inverse of the inertia in world space
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if !rb.IsDynamic() {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.RotationMatrix()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}

// EffectiveWorldInvInertiaSqrt returns the symmetric square root of the
// world-space inverse inertia. The solver works with angular quantities
// pre-multiplied by it, so that generalized masses reduce to dot products.
func (rb *RigidBody) EffectiveWorldInvInertiaSqrt() mgl64.Mat3 {
	if !rb.IsDynamic() {
		return mgl64.Mat3{}
	}

	d := rb.InverseInertiaLocal.Diag()
	sqrtLocal := mgl64.Diag3(mgl64.Vec3{math.Sqrt(d[0]), math.Sqrt(d[1]), math.Sqrt(d[2])})
	R := rb.Transform.RotationMatrix()
	return R.Mul3(sqrtLocal).Mul3(R.Transpose())
}

func (rb *RigidBody) TrySleep(dt float64, timethreshold float64, velocityThreshold float64) {
	if !rb.IsDynamic() {
		return
	}

	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timethreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.Shape.ComputeAABB(rb.Transform)
	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IntegrateVelocity applies gravity and the accumulated forces to the velocities.
// Contacts are solved afterwards against these predicted velocities.
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) {
	if !rb.IsDynamic() || rb.IsSleeping {
		return
	}

	invMass := rb.EffectiveInvMass()

	// ========== LINEAR ==========
	accel := gravity.Add(rb.accumulatedForce.Mul(invMass))
	rb.Velocity = rb.Velocity.Add(accel.Mul(dt))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

	// ========== ANGULAR ==========
	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))

	rb.ClearForces()
}

// ApplyDeltaVelocity adds a solver velocity correction. angular is expressed
// in the inverse-inertia-square-root scaled space used by the constraints.
func (rb *RigidBody) ApplyDeltaVelocity(linear, angular mgl64.Vec3) {
	if !rb.IsDynamic() {
		return
	}

	rb.Velocity = rb.Velocity.Add(linear)
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.EffectiveWorldInvInertiaSqrt().Mul3x1(angular))
}

// IntegratePosition moves the body with its solved velocities and refreshes its AABB
func (rb *RigidBody) IntegratePosition(dt float64) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.Shape.ComputeAABB(rb.Transform)
}

// AddForce accumulates a force (N) applied at the center of mass until the next step
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.IsDynamic() {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque accumulates a torque (N⋅m) until the next step
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.IsDynamic() {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}
