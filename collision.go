package plume

import (
	"github.com/akmonengine/plume/actor"
	"github.com/akmonengine/plume/broadphase"
	"github.com/akmonengine/plume/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// DEFAULT_CONTACT_MARGIN is the distance under which two shapes start
// producing contact points, before they actually touch.
const DEFAULT_CONTACT_MARGIN = 0.02

// contactPair is a broad-phase pair handed to the narrow phase
type contactPair struct {
	key      broadphase.PairKey
	body1    int
	body2    int
	manifold *constraint.ContactManifold
}

// narrowPhase computes the manifolds of every overlapping pair and seeds them
// with the impulses found for the same features during the previous step.
func (w *World) narrowPhase() []*constraint.ContactManifold {
	var pairs []*contactPair
	for _, key := range w.BroadPhase.ActivePairs() {
		bodyA, bodyB := w.bodyOf[key.A], w.bodyOf[key.B]
		if bodyA == nil || bodyB == nil || !needsContact(bodyA, bodyB) {
			continue
		}

		pairs = append(pairs, &contactPair{
			key:   key,
			body1: w.indexOf[bodyA],
			body2: w.indexOf[bodyB],
		})
	}

	task(w.Workers, pairs, func(pair *contactPair) {
		pair.manifold = collide(pair.body1, pair.body2, w.Bodies, w.ContactMargin)
	})

	manifolds := make([]*constraint.ContactManifold, 0, len(pairs))
	contacts := make(map[broadphase.PairKey]*constraint.ContactManifold, len(pairs))
	for _, pair := range pairs {
		if pair.manifold == nil {
			continue
		}

		if previous, ok := w.contacts[pair.key]; ok {
			carryImpulses(previous, pair.manifold)
		}
		pair.manifold.WarmstartMultiplier = 1

		manifolds = append(manifolds, pair.manifold)
		contacts[pair.key] = pair.manifold
	}
	w.contacts = contacts

	return manifolds
}

// needsContact discards the pairs that can not move each other
func needsContact(bodyA, bodyB *actor.RigidBody) bool {
	if !bodyA.IsDynamic() && !bodyB.IsDynamic() {
		return false
	}
	if bodyA.IsSleeping && bodyB.IsSleeping {
		return false
	}
	return true
}

// carryImpulses copies the impulses of the matching contact points of the
// previous manifold. Points without a match start from zero.
func carryImpulses(previous, manifold *constraint.ContactManifold) {
	for i := range manifold.SolverContacts {
		contact := &manifold.SolverContacts[i]
		for _, old := range previous.SolverContacts {
			if old.FeatureId == contact.FeatureId {
				contact.Data = old.Data
				break
			}
		}
	}
	manifold.TwistImpulse = previous.TwistImpulse
}

// collide returns the manifold between two bodies, nil when they are apart.
// Only plane-box, plane-sphere and sphere-sphere pairs are tested: any other
// pair, box-box and box-sphere included, never produces contacts.
func collide(i, j int, bodies []*actor.RigidBody, margin float64) *constraint.ContactManifold {
	if bodies[j].Shape.Type() == actor.ShapeTypePlane {
		i, j = j, i
	}

	typeA, typeB := bodies[i].Shape.Type(), bodies[j].Shape.Type()
	switch {
	case typeA == actor.ShapeTypePlane && typeB != actor.ShapeTypePlane:
		return collidePlane(i, j, bodies[i].Shape.(*actor.Plane), bodies, margin)
	case typeA == actor.ShapeTypeSphere && typeB == actor.ShapeTypeSphere:
		return collideSpheres(i, j, bodies[i].Shape.(*actor.Sphere), bodies[j].Shape.(*actor.Sphere), bodies, margin)
	}

	return nil
}

func collidePlane(planeIndex, objectIndex int, plane *actor.Plane, bodies []*actor.RigidBody, margin float64) *constraint.ContactManifold {
	planeBody, object := bodies[planeIndex], bodies[objectIndex]

	distance := plane.WorldDistance(planeBody.Transform)
	collision, points := object.Shape.CollideWithPlane(plane.Normal, distance, object.Transform, margin)
	if !collision {
		return nil
	}

	friction := constraint.CombineFriction(planeBody.Material, object.Material)
	restitution := constraint.CombineRestitution(planeBody.Material, object.Material)

	contacts := make([]constraint.SolverContact, 0, len(points))
	for _, point := range points {
		contacts = append(contacts, constraint.SolverContact{
			Point:       point.Position,
			Dist:        point.Distance,
			Friction:    friction,
			Restitution: restitution,
			FeatureId:   point.Feature,
		})
	}

	return &constraint.ContactManifold{
		Body1:          planeIndex,
		Body2:          objectIndex,
		Normal:         plane.Normal,
		SolverContacts: contacts,
	}
}

func collideSpheres(i, j int, sphereA, sphereB *actor.Sphere, bodies []*actor.RigidBody, margin float64) *constraint.ContactManifold {
	centerA := bodies[i].Transform.Position
	centerB := bodies[j].Transform.Position

	delta := centerB.Sub(centerA)
	d := delta.Len()
	dist := d - sphereA.Radius - sphereB.Radius
	if dist > margin {
		return nil
	}

	normal := mgl64.Vec3{0, 1, 0}
	if d > 0 {
		normal = delta.Mul(1 / d)
	}

	return &constraint.ContactManifold{
		Body1:  i,
		Body2:  j,
		Normal: normal,
		SolverContacts: []constraint.SolverContact{{
			Point:       centerA.Add(normal.Mul(sphereA.Radius + dist/2)),
			Dist:        dist,
			Friction:    constraint.CombineFriction(bodies[i].Material, bodies[j].Material),
			Restitution: constraint.CombineRestitution(bodies[i].Material, bodies[j].Material),
		}},
	}
}
