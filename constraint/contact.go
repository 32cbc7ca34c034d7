package constraint

import (
	"math"

	"github.com/akmonengine/plume/actor"
	"github.com/go-gl/mathgl/mgl64"
)

type twoBodyElementPart struct {
	gcross1 mgl64.Vec3
	gcross2 mgl64.Vec3
	rhs     float64
	impulse float64
	r       float64
}

// VelocityConstraint solves the contacts between two solved bodies
type VelocityConstraint struct {
	dir1         mgl64.Vec3
	im1, im2     float64
	impulseScale float64
	limit        float64
	mjLambda1    int
	mjLambda2    int

	manifoldID        int
	manifoldContactID int
	numContacts       int

	elements     [MaxManifoldPoints]twoBodyElementPart
	tangentParts [DIM - 1]twoBodyElementPart
	twistPart    twoBodyElementPart
	twistWeights [MaxManifoldPoints]float64
}

// GenerateTwoBody builds the constraints of a manifold between two solved
// bodies, one per chunk of MaxManifoldPoints contacts.
func GenerateTwoBody(params IntegrationParameters, manifoldID int, manifold *ContactManifold, bodies []*actor.RigidBody, out *VelocityConstraints, mode GenerateMode) {
	erp, cfm, impulseScale := params.Regularization.ErpCfmImpulseScale(params.Dt)
	invDt := params.InvDt()

	rb1 := bodies[manifold.Body1]
	rb2 := bodies[manifold.Body2]
	if !isSolved(rb1) || !isSolved(rb2) {
		panic("two body constraint needs two solved bodies")
	}

	forceDir1 := manifold.Normal.Mul(-1)
	warmstartCoeff := manifold.WarmstartMultiplier * params.WarmstartCoeff
	im1 := rb1.EffectiveInvMass()
	im2 := rb2.EffectiveInvMass()
	sqrtInertia1 := rb1.EffectiveWorldInvInertiaSqrt()
	sqrtInertia2 := rb2.EffectiveWorldInvInertiaSqrt()
	com1 := rb1.WorldCom()
	com2 := rb2.WorldCom()
	tangents := OrthonormalBasis(forceDir1)

	contacts := manifold.SolverContacts
	for l, chunkStart := 0, 0; chunkStart < len(contacts); l, chunkStart = l+1, chunkStart+MaxManifoldPoints {
		points := contacts[chunkStart:min(chunkStart+MaxManifoldPoints, len(contacts))]

		constraint := VelocityConstraint{
			dir1:              forceDir1,
			im1:               im1,
			im2:               im2,
			impulseScale:      impulseScale,
			mjLambda1:         rb1.IslandOffset,
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

		for k, point := range points {
			dp1 := point.Point.Sub(com1)
			dp2 := point.Point.Sub(com2)
			vel1 := rb1.Velocity.Add(rb1.AngularVelocity.Cross(dp1))
			vel2 := rb2.Velocity.Add(rb2.AngularVelocity.Cross(dp2))

			constraint.limit = point.Friction

			gcross1 := sqrtInertia1.Mul3x1(dp1.Cross(forceDir1))
			gcross2 := sqrtInertia2.Mul3x1(dp2.Cross(forceDir1.Mul(-1)))
			r := inv(cfm + im1 + im2 + gcross1.Dot(gcross1) + gcross2.Dot(gcross2))

			rhs := vel1.Sub(vel2).Dot(forceDir1)
			if rhs <= -params.RestitutionVelocityThreshold {
				rhs += point.Restitution * rhs
			}
			if point.Dist < 0 {
				rhs += point.Dist * erp
			} else {
				rhs += point.Dist * invDt
			}

			constraint.elements[k] = twoBodyElementPart{
				gcross1: gcross1,
				gcross2: gcross2,
				rhs:     rhs,
				impulse: point.Data.Impulse * warmstartCoeff,
				r:       r,
			}
			constraint.twistWeights[k] = point.Point.Sub(center).Len()
		}

		dp1 := center.Sub(com1)
		dp2 := center.Sub(com2)
		vel1 := rb1.Velocity.Add(rb1.AngularVelocity.Cross(dp1))
		vel2 := rb2.Velocity.Add(rb2.AngularVelocity.Cross(dp2))
		for j, tangent := range tangents {
			gcross1 := sqrtInertia1.Mul3x1(dp1.Cross(tangent))
			gcross2 := sqrtInertia2.Mul3x1(dp2.Cross(tangent.Mul(-1)))
			constraint.tangentParts[j] = twoBodyElementPart{
				gcross1: gcross1,
				gcross2: gcross2,
				rhs:     vel1.Sub(vel2).Dot(tangent),
				impulse: tangentImpulses[j] * warmstartCoeff,
				r:       inv(im1 + im2 + gcross1.Dot(gcross1) + gcross2.Dot(gcross2)),
			}
		}

		twistGcross1 := sqrtInertia1.Mul3x1(forceDir1)
		twistGcross2 := sqrtInertia2.Mul3x1(forceDir1.Mul(-1))
		constraint.twistPart = twoBodyElementPart{
			gcross1: twistGcross1,
			gcross2: twistGcross2,
			rhs:     rb1.AngularVelocity.Sub(rb2.AngularVelocity).Dot(forceDir1),
			impulse: manifold.TwistImpulse * warmstartCoeff,
			r:       inv(twistGcross1.Dot(twistGcross1) + twistGcross2.Dot(twistGcross2)),
		}

		switch mode {
		case GeneratePush:
			out.TwoBody = append(out.TwoBody, constraint)
		case GenerateOverwrite:
			out.TwoBody[manifold.ConstraintIndex+l] = constraint
		}
	}
}

func (c *VelocityConstraint) Warmstart(mjLambdas []DeltaVel) {
	mj1 := &mjLambdas[c.mjLambda1]
	mj2 := &mjLambdas[c.mjLambda2]

	for i := range c.numContacts {
		c.elements[i].apply(c.dir1, c.im1, c.im2, c.elements[i].impulse, mj1, mj2)
	}

	tangents := OrthonormalBasis(c.dir1)
	for j, tangent := range tangents {
		c.tangentParts[j].apply(tangent, c.im1, c.im2, c.tangentParts[j].impulse, mj1, mj2)
	}

	c.twistPart.applyAngular(c.twistPart.impulse, mj1, mj2)
}

func (c *VelocityConstraint) Solve(mjLambdas []DeltaVel) {
	mj1 := &mjLambdas[c.mjLambda1]
	mj2 := &mjLambdas[c.mjLambda2]

	normalSum := 0.0
	for i := range c.numContacts {
		normalSum += c.elements[i].impulse
	}
	frictionLimit := c.limit * normalSum

	tangents := OrthonormalBasis(c.dir1)
	for j, tangent := range tangents {
		part := &c.tangentParts[j]
		dimpulse := part.dimpulse(tangent, mj1, mj2)
		newImpulse := clamp(part.impulse-part.r*dimpulse, -frictionLimit, frictionLimit)
		dlambda := newImpulse - part.impulse
		part.impulse = newImpulse
		part.apply(tangent, c.im1, c.im2, dlambda, mj1, mj2)
	}

	for i := range c.numContacts {
		part := &c.elements[i]
		dimpulse := part.dimpulse(c.dir1, mj1, mj2)
		newImpulse := math.Max(part.impulse*c.impulseScale-part.r*dimpulse, 0)
		dlambda := newImpulse - part.impulse
		part.impulse = newImpulse
		part.apply(c.dir1, c.im1, c.im2, dlambda, mj1, mj2)
	}

	twistLimit := 0.0
	for i := range c.numContacts {
		twistLimit += c.elements[i].impulse * c.twistWeights[i]
	}
	twistLimit *= c.limit

	twist := &c.twistPart
	dimpulse := twist.gcross1.Dot(mj1.Angular) + twist.gcross2.Dot(mj2.Angular) + twist.rhs
	newImpulse := clamp(twist.impulse-twist.r*dimpulse, -twistLimit, twistLimit)
	dlambda := newImpulse - twist.impulse
	twist.impulse = newImpulse
	twist.applyAngular(dlambda, mj1, mj2)
}

func (c *VelocityConstraint) WritebackImpulses(manifolds []*ContactManifold) {
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

// Slots returns the delta velocity slots written by the constraint
func (c *VelocityConstraint) Slots() []int {
	return []int{c.mjLambda1, c.mjLambda2}
}

func (p *twoBodyElementPart) dimpulse(dir mgl64.Vec3, mj1, mj2 *DeltaVel) float64 {
	return dir.Dot(mj1.Linear) + p.gcross1.Dot(mj1.Angular) -
		dir.Dot(mj2.Linear) + p.gcross2.Dot(mj2.Angular) + p.rhs
}

func (p *twoBodyElementPart) apply(dir mgl64.Vec3, im1, im2, dlambda float64, mj1, mj2 *DeltaVel) {
	mj1.Linear = mj1.Linear.Add(dir.Mul(im1 * dlambda))
	mj2.Linear = mj2.Linear.Add(dir.Mul(-im2 * dlambda))
	p.applyAngular(dlambda, mj1, mj2)
}

func (p *twoBodyElementPart) applyAngular(dlambda float64, mj1, mj2 *DeltaVel) {
	mj1.Angular = mj1.Angular.Add(p.gcross1.Mul(dlambda))
	mj2.Angular = mj2.Angular.Add(p.gcross2.Mul(dlambda))
}
