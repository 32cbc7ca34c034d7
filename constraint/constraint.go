package constraint

import (
	"math"
	"slices"

	"github.com/akmonengine/plume/actor"
)

type GenerateMode int

const (
	// GeneratePush appends the generated constraints to their batch
	GeneratePush GenerateMode = iota
	// GenerateOverwrite writes them in place, starting at the manifold's
	// ConstraintIndex
	GenerateOverwrite
)

type VelocityConstraintKind uint8

const (
	KindGround VelocityConstraintKind = iota
	KindTwoBody
)

// AnyVelocityConstraint refers to one constraint of a VelocityConstraints,
// tagged with its kind.
type AnyVelocityConstraint struct {
	Kind  VelocityConstraintKind
	Index int
}

// VelocityConstraints stores every constraint of a step, grouped by kind
type VelocityConstraints struct {
	Ground  []VelocityGroundConstraint
	TwoBody []VelocityConstraint
}

// isSolved reports whether the body owns a delta velocity slot. Static,
// kinematic and sleeping bodies are fixed partners.
func isSolved(rb *actor.RigidBody) bool {
	return rb.IsDynamic() && rb.IslandOffset != actor.NoIslandOffset
}

// ManifoldKind returns the kind of constraint solving the manifold, false when
// neither body is solved.
func ManifoldKind(manifold *ContactManifold, bodies []*actor.RigidBody) (VelocityConstraintKind, bool) {
	solved1 := isSolved(bodies[manifold.Body1])
	solved2 := isSolved(bodies[manifold.Body2])

	switch {
	case solved1 && solved2:
		return KindTwoBody, true
	case solved1 || solved2:
		return KindGround, true
	default:
		return 0, false
	}
}

func (c *VelocityConstraints) Clear() {
	c.Ground = c.Ground[:0]
	c.TwoBody = c.TwoBody[:0]
}

func (c *VelocityConstraints) Len() int {
	return len(c.Ground) + len(c.TwoBody)
}

// Generate rebuilds every constraint from the manifolds, appending to the
// batch of each manifold's kind.
func (c *VelocityConstraints) Generate(params IntegrationParameters, manifolds []*ContactManifold, bodies []*actor.RigidBody) {
	c.Clear()

	for id, manifold := range manifolds {
		kind, ok := ManifoldKind(manifold, bodies)
		if !ok || manifold.NumActiveContacts() == 0 {
			continue
		}

		switch kind {
		case KindGround:
			manifold.ConstraintIndex = len(c.Ground)
			GenerateGround(params, id, manifold, bodies, c, GeneratePush)
		case KindTwoBody:
			manifold.ConstraintIndex = len(c.TwoBody)
			GenerateTwoBody(params, id, manifold, bodies, c, GeneratePush)
		}
	}
}

// Reserve sizes the batches and assigns each manifold its ConstraintIndex, so
// GenerateAt can fill the batches concurrently. It returns the ids of the
// manifolds to generate.
func (c *VelocityConstraints) Reserve(manifolds []*ContactManifold, bodies []*actor.RigidBody) []int {
	ids := make([]int, 0, len(manifolds))
	numGround, numTwoBody := 0, 0

	for id, manifold := range manifolds {
		kind, ok := ManifoldKind(manifold, bodies)
		if !ok || manifold.NumActiveContacts() == 0 {
			continue
		}

		switch kind {
		case KindGround:
			manifold.ConstraintIndex = numGround
			numGround += NumActiveConstraints(manifold)
		case KindTwoBody:
			manifold.ConstraintIndex = numTwoBody
			numTwoBody += NumActiveConstraints(manifold)
		}
		ids = append(ids, id)
	}

	c.Ground = slices.Grow(c.Ground[:0], numGround)[:numGround]
	c.TwoBody = slices.Grow(c.TwoBody[:0], numTwoBody)[:numTwoBody]

	return ids
}

// GenerateAt regenerates in place the constraints of a manifold prepared by
// Reserve. Calls for different manifolds do not share memory.
func (c *VelocityConstraints) GenerateAt(params IntegrationParameters, manifoldID int, manifolds []*ContactManifold, bodies []*actor.RigidBody) {
	manifold := manifolds[manifoldID]
	kind, ok := ManifoldKind(manifold, bodies)
	if !ok {
		return
	}

	switch kind {
	case KindGround:
		GenerateGround(params, manifoldID, manifold, bodies, c, GenerateOverwrite)
	case KindTwoBody:
		GenerateTwoBody(params, manifoldID, manifold, bodies, c, GenerateOverwrite)
	}
}

// All lists every constraint, batch after batch
func (c *VelocityConstraints) All() []AnyVelocityConstraint {
	all := make([]AnyVelocityConstraint, 0, c.Len())
	for i := range c.Ground {
		all = append(all, AnyVelocityConstraint{Kind: KindGround, Index: i})
	}
	for i := range c.TwoBody {
		all = append(all, AnyVelocityConstraint{Kind: KindTwoBody, Index: i})
	}
	return all
}

func (c *VelocityConstraints) Warmstart(mjLambdas []DeltaVel) {
	for i := range c.Ground {
		c.Ground[i].Warmstart(mjLambdas)
	}
	for i := range c.TwoBody {
		c.TwoBody[i].Warmstart(mjLambdas)
	}
}

func (c *VelocityConstraints) Solve(mjLambdas []DeltaVel) {
	for i := range c.Ground {
		c.Ground[i].Solve(mjLambdas)
	}
	for i := range c.TwoBody {
		c.TwoBody[i].Solve(mjLambdas)
	}
}

func (c *VelocityConstraints) WritebackImpulses(manifolds []*ContactManifold) {
	for i := range c.Ground {
		c.Ground[i].WritebackImpulses(manifolds)
	}
	for i := range c.TwoBody {
		c.TwoBody[i].WritebackImpulses(manifolds)
	}
}

// Slots returns the delta velocity slots written by one constraint
func (c *VelocityConstraints) Slots(ref AnyVelocityConstraint) []int {
	switch ref.Kind {
	case KindGround:
		return c.Ground[ref.Index].Slots()
	case KindTwoBody:
		return c.TwoBody[ref.Index].Slots()
	}
	panic("unknown constraint kind")
}

// SolveBatch solves the listed constraints. refs must be grouped by kind.
func (c *VelocityConstraints) SolveBatch(refs []AnyVelocityConstraint, mjLambdas []DeltaVel) {
	for _, ref := range refs {
		switch ref.Kind {
		case KindGround:
			c.Ground[ref.Index].Solve(mjLambdas)
		case KindTwoBody:
			c.TwoBody[ref.Index].Solve(mjLambdas)
		}
	}
}

// CombineFriction is the geometric mean of both friction coefficients
func CombineFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.Friction * matB.Friction)
}

// CombineRestitution averages both restitutions
func CombineRestitution(matA, matB actor.Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}
