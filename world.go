package plume

import (
	"fmt"

	"github.com/akmonengine/plume/actor"
	"github.com/akmonengine/plume/broadphase"
	"github.com/akmonengine/plume/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DEFAULT_WORKERS           = 1
	DEFAULT_SUBSTEPS          = 1
	DEFAULT_SOLVER_ITERATIONS = 4
	DEFAULT_SLEEP_TIME        = 0.1
	DEFAULT_SLEEP_VELOCITY    = 0.05
)

// World steps rigid bodies under gravity and resolves their contacts.
// Contacts are generated for plane-box, plane-sphere and sphere-sphere pairs
// only: two boxes, or a box and a sphere, pass through each other.
type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s², or N/kg)
	Gravity          mgl64.Vec3
	Substeps         int
	SolverIterations int
	Workers          int

	Params        constraint.IntegrationParameters
	ContactMargin float64

	// A body falls asleep once slower than SleepVelocity for SleepTime
	// seconds. A zero SleepVelocity disables sleeping.
	SleepTime     float64
	SleepVelocity float64

	BroadPhase *broadphase.BroadPhase
	Events     Events

	proxyOf []uint32           // by body index
	bodyOf  []*actor.RigidBody // by proxy id, nil once removed
	indexOf map[*actor.RigidBody]int

	// manifolds of the previous substep, to warmstart the next one
	contacts    map[broadphase.PairKey]*constraint.ContactManifold
	constraints constraint.VelocityConstraints
	mjLambdas   []constraint.DeltaVel
}

// NewWorld creates an empty world simulating the bodies inside bounds.
// Bodies leaving the bounds stop colliding until they come back.
func NewWorld(bounds actor.AABB) *World {
	return &World{
		Gravity:          mgl64.Vec3{0, -9.81, 0},
		Substeps:         DEFAULT_SUBSTEPS,
		SolverIterations: DEFAULT_SOLVER_ITERATIONS,
		Workers:          DEFAULT_WORKERS,
		Params:           constraint.DefaultIntegrationParameters(),
		ContactMargin:    DEFAULT_CONTACT_MARGIN,
		SleepTime:        DEFAULT_SLEEP_TIME,
		SleepVelocity:    DEFAULT_SLEEP_VELOCITY,
		BroadPhase:       broadphase.NewBroadPhase(bounds),
		Events:           NewEvents(),
		indexOf:          make(map[*actor.RigidBody]int),
		contacts:         make(map[broadphase.PairKey]*constraint.ContactManifold),
	}
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	if _, ok := w.indexOf[body]; ok {
		return
	}

	body.Shape.ComputeAABB(body.Transform)
	id := w.BroadPhase.CreateProxy(body.Shape.GetAABB().Loosened(w.ContactMargin))
	for int(id) >= len(w.bodyOf) {
		w.bodyOf = append(w.bodyOf, nil)
	}
	w.bodyOf[id] = body

	w.indexOf[body] = len(w.Bodies)
	w.Bodies = append(w.Bodies, body)
	w.proxyOf = append(w.proxyOf, id)
}

// RemoveBody removes a rigid body from the world. Its broad-phase pairs end
// at the next step.
func (w *World) RemoveBody(body *actor.RigidBody) error {
	k, ok := w.indexOf[body]
	if !ok {
		return fmt.Errorf("remove body %v: not in the world", body.Id)
	}

	id := w.proxyOf[k]
	w.BroadPhase.RemoveProxy(id)
	w.bodyOf[id] = nil

	w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	w.proxyOf = append(w.proxyOf[:k], w.proxyOf[k+1:]...)
	delete(w.indexOf, body)
	for i := k; i < len(w.Bodies); i++ {
		w.indexOf[w.Bodies[i]] = i
	}

	for key := range w.contacts {
		if key.A == id || key.B == id {
			delete(w.contacts, key)
		}
	}
	w.Events.forget(body)

	return nil
}

func (w *World) Step(dt float64) {
	w.Workers = max(DEFAULT_WORKERS, w.Workers)
	w.Substeps = max(DEFAULT_SUBSTEPS, w.Substeps)
	h := dt / float64(w.Substeps)

	params := w.Params
	params.Dt = h

	for range w.Substeps {
		w.integrateVelocities(h)

		// Phase 1: broad phase, then contact manifolds
		w.updateBroadPhase()
		manifolds := w.narrowPhase()
		manifolds = w.Events.recordCollisions(manifolds, w.Bodies)
		w.wakeTouched(manifolds)

		// Phase 2: velocity solver
		w.solve(params, manifolds)
		w.Events.recordImpulses(manifolds, w.Bodies)

		// Phase 3: positions
		w.integratePositions(h)
		w.trySleep(h)
	}

	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()
}

func (w *World) integrateVelocities(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.IntegrateVelocity(h, w.Gravity)
	})
}

func (w *World) updateBroadPhase() {
	for i, body := range w.Bodies {
		w.BroadPhase.SetProxyAabb(w.proxyOf[i], body.Shape.GetAABB().Loosened(w.ContactMargin))
	}

	for _, event := range w.BroadPhase.Update() {
		bodyA, bodyB := w.bodyOf[event.Pair.A], w.bodyOf[event.Pair.B]
		if bodyA == nil || bodyB == nil {
			continue
		}
		w.Events.recordBroadPhase(bodyA, bodyB, event.Begin)
	}
}

// wakeTouched wakes the sleeping bodies hit by a moving body
func (w *World) wakeTouched(manifolds []*constraint.ContactManifold) {
	for _, manifold := range manifolds {
		bodyA, bodyB := w.Bodies[manifold.Body1], w.Bodies[manifold.Body2]
		if bodyA.IsSleeping && w.isMoving(bodyB) {
			bodyA.Awake()
		} else if bodyB.IsSleeping && w.isMoving(bodyA) {
			bodyB.Awake()
		}
	}
}

func (w *World) isMoving(body *actor.RigidBody) bool {
	if body.BodyType == actor.BodyTypeStatic || body.IsSleeping {
		return false
	}
	return body.Velocity.Len() > w.SleepVelocity || body.AngularVelocity.Len() > w.SleepVelocity
}

// solve runs the sequential impulse solver over the manifolds and applies the
// resulting velocity corrections.
func (w *World) solve(params constraint.IntegrationParameters, manifolds []*constraint.ContactManifold) {
	numSolved := 0
	for _, body := range w.Bodies {
		if body.IsDynamic() && !body.IsSleeping {
			body.IslandOffset = numSolved
			numSolved++
		} else {
			body.IslandOffset = actor.NoIslandOffset
		}
	}

	if cap(w.mjLambdas) < numSolved {
		w.mjLambdas = make([]constraint.DeltaVel, numSolved)
	}
	w.mjLambdas = w.mjLambdas[:numSolved]
	clear(w.mjLambdas)

	if w.Workers > 1 {
		ids := w.constraints.Reserve(manifolds, w.Bodies)
		task(w.Workers, ids, func(id int) {
			w.constraints.GenerateAt(params, id, manifolds, w.Bodies)
		})
	} else {
		w.constraints.Generate(params, manifolds, w.Bodies)
	}

	w.constraints.Warmstart(w.mjLambdas)

	if w.Workers > 1 {
		batches := solverBatches(&w.constraints)
		for range w.SolverIterations {
			for _, batch := range batches {
				taskChunks(w.Workers, batch, func(chunk []constraint.AnyVelocityConstraint) {
					w.constraints.SolveBatch(chunk, w.mjLambdas)
				})
			}
		}
	} else {
		for range w.SolverIterations {
			w.constraints.Solve(w.mjLambdas)
		}
	}

	w.constraints.WritebackImpulses(manifolds)

	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		if body.IslandOffset != actor.NoIslandOffset {
			mj := w.mjLambdas[body.IslandOffset]
			body.ApplyDeltaVelocity(mj.Linear, mj.Angular)
		}
	})
}

func (w *World) integratePositions(h float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		body.IntegratePosition(h)
	})
}

// trySleep sets the body to sleep if its velocity is lower than the threshold, for a given duration
// this method is too simple to use a task, it slows down in multiple goroutines
func (w *World) trySleep(h float64) {
	if w.SleepVelocity <= 0 {
		return
	}

	for _, body := range w.Bodies {
		body.TrySleep(h, w.SleepTime, w.SleepVelocity)
	}
}
