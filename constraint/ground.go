package constraint

import (
	"math"

	"github.com/akmonengine/plume/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// VelocityGroundConstraint solves the contacts of one dynamic body against a
// fixed partner: static, kinematic or sleeping. The dynamic body always sits
// in the second slot, dir1 is the direction of the force applied to the
// fixed partner.
type VelocityGroundConstraint struct {
	dir1         mgl64.Vec3
	im2          float64
	impulseScale float64
	// friction coefficient
	limit     float64
	mjLambda2 int

	manifoldID        int
	manifoldContactID int
	numContacts       int

	elements     [MaxManifoldPoints]velocityConstraintElementPart
	tangentParts [DIM - 1]velocityConstraintElementPart
	twistPart    velocityConstraintElementPart
	twistWeights [MaxManifoldPoints]float64
}

// GenerateGround builds one constraint per chunk of MaxManifoldPoints contacts
// of the manifold. Exactly one of the manifold bodies must be solved.
func GenerateGround(params IntegrationParameters, manifoldID int, manifold *ContactManifold, bodies []*actor.RigidBody, out *VelocityConstraints, mode GenerateMode) {
	erp, cfm, impulseScale := params.Regularization.ErpCfmImpulseScale(params.Dt)
	invDt := params.InvDt()

	rb1 := bodies[manifold.Body1]
	rb2 := bodies[manifold.Body2]
	forceDir1 := manifold.Normal.Mul(-1)
	if !isSolved(rb2) {
		rb1, rb2 = rb2, rb1
		forceDir1 = manifold.Normal
	}
	if !isSolved(rb2) || isSolved(rb1) {
		panic("ground constraint needs exactly one solved body")
	}

	warmstartCoeff := manifold.WarmstartMultiplier * params.WarmstartCoeff
	im2 := rb2.EffectiveInvMass()
	sqrtInertia2 := rb2.EffectiveWorldInvInertiaSqrt()
	com1 := rb1.WorldCom()
	com2 := rb2.WorldCom()
	tangents := OrthonormalBasis(forceDir1)

	contacts := manifold.SolverContacts
	for l, chunkStart := 0, 0; chunkStart < len(contacts); l, chunkStart = l+1, chunkStart+MaxManifoldPoints {
		points := contacts[chunkStart:min(chunkStart+MaxManifoldPoints, len(contacts))]

		constraint := VelocityGroundConstraint{
			dir1:              forceDir1,
			im2:               im2,
			impulseScale:      impulseScale,
			mjLambda2:         rb2.IslandOffset,
			manifoldID:        manifoldID,
			manifoldContactID: chunkStart,
			numContacts:       len(points),
		}

		var center mgl64.Vec3
		var tangentImpulses [DIM - 1]float64
		for _, point := range points {
			center = center.Add(point.Point)
			for j := range tangentImpulses {
				tangentImpulses[j] += point.Data.TangentImpulse[j]
			}
		}
		center = center.Mul(1 / float64(len(points)))

		// Normal parts
		for k, point := range points {
			dp1 := point.Point.Sub(com1)
			dp2 := point.Point.Sub(com2)
			vel1 := rb1.Velocity.Add(rb1.AngularVelocity.Cross(dp1))
			vel2 := rb2.Velocity.Add(rb2.AngularVelocity.Cross(dp2))

			constraint.limit = point.Friction

			gcross2 := sqrtInertia2.Mul3x1(dp2.Cross(forceDir1.Mul(-1)))
			r := inv(cfm + im2 + gcross2.Dot(gcross2))

			rhs := vel1.Sub(vel2).Dot(forceDir1)
			if rhs <= -params.RestitutionVelocityThreshold {
				rhs += point.Restitution * rhs
			}
			if point.Dist < 0 {
				rhs += point.Dist * erp
			} else {
				rhs += point.Dist * invDt
			}

			constraint.elements[k] = velocityConstraintElementPart{
				gcross2: gcross2,
				rhs:     rhs,
				impulse: point.Data.Impulse * warmstartCoeff,
				r:       r,
			}
			constraint.twistWeights[k] = point.Point.Sub(center).Len()
		}

		// Tangent parts, shared by every point and evaluated at the centroid
		dp1 := center.Sub(com1)
		dp2 := center.Sub(com2)
		vel1 := rb1.Velocity.Add(rb1.AngularVelocity.Cross(dp1))
		vel2 := rb2.Velocity.Add(rb2.AngularVelocity.Cross(dp2))
		for j, tangent := range tangents {
			gcross2 := sqrtInertia2.Mul3x1(dp2.Cross(tangent.Mul(-1)))
			constraint.tangentParts[j] = velocityConstraintElementPart{
				gcross2: gcross2,
				rhs:     vel1.Sub(vel2).Dot(tangent),
				impulse: tangentImpulses[j] * warmstartCoeff,
				r:       inv(im2 + gcross2.Dot(gcross2)),
			}
		}

		// Twist part
		twistGcross2 := sqrtInertia2.Mul3x1(forceDir1.Mul(-1))
		constraint.twistPart = velocityConstraintElementPart{
			gcross2: twistGcross2,
			rhs:     rb1.AngularVelocity.Sub(rb2.AngularVelocity).Dot(forceDir1),
			impulse: manifold.TwistImpulse * warmstartCoeff,
			r:       inv(twistGcross2.Dot(twistGcross2)),
		}

		switch mode {
		case GeneratePush:
			out.Ground = append(out.Ground, constraint)
		case GenerateOverwrite:
			out.Ground[manifold.ConstraintIndex+l] = constraint
		}
	}
}

// Warmstart applies the impulses seeded at generation to the dynamic body
func (c *VelocityGroundConstraint) Warmstart(mjLambdas []DeltaVel) {
	mj := &mjLambdas[c.mjLambda2]

	for i := range c.numContacts {
		c.elements[i].apply(c.dir1, c.im2, c.elements[i].impulse, mj)
	}

	tangents := OrthonormalBasis(c.dir1)
	for j, tangent := range tangents {
		c.tangentParts[j].apply(tangent, c.im2, c.tangentParts[j].impulse, mj)
	}

	mj.Angular = mj.Angular.Add(c.twistPart.gcross2.Mul(c.twistPart.impulse))
}

// Solve runs one relaxation pass: friction first, then non-penetration,
// then twist.
func (c *VelocityGroundConstraint) Solve(mjLambdas []DeltaVel) {
	mj := &mjLambdas[c.mjLambda2]

	normalSum := 0.0
	for i := range c.numContacts {
		normalSum += c.elements[i].impulse
	}
	frictionLimit := c.limit * normalSum

	tangents := OrthonormalBasis(c.dir1)
	for j, tangent := range tangents {
		part := &c.tangentParts[j]
		dimpulse := part.dimpulse(tangent, mj)
		newImpulse := clamp(part.impulse-part.r*dimpulse, -frictionLimit, frictionLimit)
		dlambda := newImpulse - part.impulse
		part.impulse = newImpulse
		part.apply(tangent, c.im2, dlambda, mj)
	}

	for i := range c.numContacts {
		part := &c.elements[i]
		dimpulse := part.dimpulse(c.dir1, mj)
		newImpulse := math.Max(part.impulse*c.impulseScale-part.r*dimpulse, 0)
		dlambda := newImpulse - part.impulse
		part.impulse = newImpulse
		part.apply(c.dir1, c.im2, dlambda, mj)
	}

	twistLimit := 0.0
	for i := range c.numContacts {
		twistLimit += c.elements[i].impulse * c.twistWeights[i]
	}
	twistLimit *= c.limit

	twist := &c.twistPart
	dimpulse := twist.gcross2.Dot(mj.Angular) + twist.rhs
	newImpulse := clamp(twist.impulse-twist.r*dimpulse, -twistLimit, twistLimit)
	dlambda := newImpulse - twist.impulse
	twist.impulse = newImpulse
	mj.Angular = mj.Angular.Add(twist.gcross2.Mul(dlambda))
}

// WritebackImpulses stores the converged impulses into the manifold so they
// seed the next step. Shared tangent impulses are spread over the points in
// proportion to their normal impulse.
func (c *VelocityGroundConstraint) WritebackImpulses(manifolds []*ContactManifold) {
	manifold := manifolds[c.manifoldID]
	contacts := manifold.SolverContacts[c.manifoldContactID : c.manifoldContactID+c.numContacts]

	normalSum := 0.0
	for i := range c.numContacts {
		normalSum += c.elements[i].impulse
	}
	denom := inv(normalSum)

	for k := range contacts {
		contacts[k].Data.Impulse = c.elements[k].impulse
		share := c.elements[k].impulse * denom
		for j := range contacts[k].Data.TangentImpulse {
			contacts[k].Data.TangentImpulse[j] = c.tangentParts[j].impulse * share
		}
	}

	manifold.TwistImpulse = c.twistPart.impulse
}

// Slots returns the delta velocity slot written by the constraint
func (c *VelocityGroundConstraint) Slots() []int {
	return []int{c.mjLambda2}
}

// dimpulse is the velocity error of the element, along dir, once the
// accumulated delta velocity is taken into account.
func (p *velocityConstraintElementPart) dimpulse(dir mgl64.Vec3, mj *DeltaVel) float64 {
	return -dir.Dot(mj.Linear) + p.gcross2.Dot(mj.Angular) + p.rhs
}

func (p *velocityConstraintElementPart) apply(dir mgl64.Vec3, im2, dlambda float64, mj *DeltaVel) {
	mj.Linear = mj.Linear.Add(dir.Mul(-im2 * dlambda))
	mj.Angular = mj.Angular.Add(p.gcross2.Mul(dlambda))
}
