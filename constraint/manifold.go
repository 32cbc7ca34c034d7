package constraint

import "github.com/go-gl/mathgl/mgl64"

// ContactData is the solver state persisted from one step to the next
type ContactData struct {
	Impulse        float64
	TangentImpulse [DIM - 1]float64
}

// SolverContact is one contact point of a manifold, in world space
type SolverContact struct {
	Point mgl64.Vec3
	// Dist is the signed separation: negative when penetrating
	Dist        float64
	Friction    float64
	Restitution float64
	// FeatureId identifies the geometric feature producing the point, used
	// to carry Data over to the next step
	FeatureId uint32
	Data      ContactData
}

// ContactManifold describes the contact between two bodies. Normal points from
// Body1 toward Body2. Body1 and Body2 index the body table.
type ContactManifold struct {
	Body1, Body2        int
	Normal              mgl64.Vec3
	SolverContacts      []SolverContact
	TwistImpulse        float64
	WarmstartMultiplier float64
	// ConstraintIndex locates the first constraint generated from this
	// manifold in its kind's batch
	ConstraintIndex int
}

// NumActiveContacts is the number of contact points fed to the solver
func (m *ContactManifold) NumActiveContacts() int {
	return len(m.SolverContacts)
}

// NumActiveConstraints is the number of constraints generated for the manifold
func NumActiveConstraints(manifold *ContactManifold) int {
	return (manifold.NumActiveContacts() + MaxManifoldPoints - 1) / MaxManifoldPoints
}

// TotalNormalImpulse sums the normal impulses written back into the manifold
func (m *ContactManifold) TotalNormalImpulse() float64 {
	total := 0.0
	for _, c := range m.SolverContacts {
		total += c.Data.Impulse
	}
	return total
}

// DeltaVel accumulates the velocity change of one body during the solve.
// Angular is expressed pre-multiplied by the inverse of the square root of
// the world inertia.
type DeltaVel struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

type velocityConstraintElementPart struct {
	gcross2 mgl64.Vec3
	rhs     float64
	impulse float64
	r       float64
}
