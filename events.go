package plume

import (
	"unsafe"

	"github.com/akmonengine/plume/actor"
	"github.com/akmonengine/plume/constraint"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
	// BROADPHASE_ENTER is sent as soon as the AABBs of two bodies overlap
	BROADPHASE_ENTER
	BROADPHASE_EXIT
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey orders the bodies of a pair by address
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	if uintptr(unsafe.Pointer(bodyB)) < uintptr(unsafe.Pointer(bodyA)) {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

type EventType uint8

type Event interface {
	Type() EventType
}

type TriggerEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// CollisionEnterEvent carries the total normal impulse of the first step of
// the contact.
type CollisionEnterEvent struct {
	BodyA   *actor.RigidBody
	BodyB   *actor.RigidBody
	Impulse float64
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	BodyA   *actor.RigidBody
	BodyB   *actor.RigidBody
	Impulse float64
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

type BroadPhaseEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e BroadPhaseEnterEvent) Type() EventType { return BROADPHASE_ENTER }

type BroadPhaseExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e BroadPhaseExitEvent) Type() EventType { return BROADPHASE_EXIT }

type EventListener func(event Event)

// Events buffers what happens during a step and dispatches it to the
// listeners once the step is over.
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	// contacts of the previous and current steps, with their normal impulse
	previousActivePairs map[pairKey]float64
	currentActivePairs  map[pairKey]float64

	sleepStates map[*actor.RigidBody]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]float64),
		currentActivePairs:  make(map[pairKey]float64),
		sleepStates:         make(map[*actor.RigidBody]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordCollisions marks the pairs of the manifolds as touching, and returns
// the manifolds to solve: those without trigger.
func (e *Events) recordCollisions(manifolds []*constraint.ContactManifold, bodies []*actor.RigidBody) []*constraint.ContactManifold {
	n := 0
	for _, manifold := range manifolds {
		bodyA, bodyB := bodies[manifold.Body1], bodies[manifold.Body2]
		pair := makePairKey(bodyA, bodyB)
		if _, ok := e.currentActivePairs[pair]; !ok {
			e.currentActivePairs[pair] = 0
		}

		if !bodyA.IsTrigger && !bodyB.IsTrigger {
			manifolds[n] = manifold
			n++
		}
	}

	return manifolds[:n]
}

// recordImpulses keeps the largest normal impulse applied to each pair
// during the step
func (e *Events) recordImpulses(manifolds []*constraint.ContactManifold, bodies []*actor.RigidBody) {
	for _, manifold := range manifolds {
		pair := makePairKey(bodies[manifold.Body1], bodies[manifold.Body2])
		e.currentActivePairs[pair] = max(e.currentActivePairs[pair], manifold.TotalNormalImpulse())
	}
}

// recordBroadPhase buffers the overlap transition of two bodies
func (e *Events) recordBroadPhase(bodyA, bodyB *actor.RigidBody, begin bool) {
	pair := makePairKey(bodyA, bodyB)
	if begin {
		e.buffer = append(e.buffer, BroadPhaseEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	} else {
		e.buffer = append(e.buffer, BroadPhaseExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	}
}

// forget drops everything tracked about a body leaving the world
func (e *Events) forget(body *actor.RigidBody) {
	delete(e.sleepStates, body)
	for pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.currentActivePairs, pair)
		}
	}
}

// processCollisionEvents compares the pairs of this step against those of the
// previous one, to send Enter, Stay and Exit events.
func (e *Events) processCollisionEvents() {
	for pair, impulse := range e.currentActivePairs {
		// Two sleeping bodies would spam Stay events
		if pair.bodyA.IsSleeping && pair.bodyB.IsSleeping {
			continue
		}

		isTrigger := pair.bodyA.IsTrigger || pair.bodyB.IsTrigger
		_, wasActive := e.previousActivePairs[pair]

		switch {
		case wasActive && isTrigger:
			e.buffer = append(e.buffer, TriggerStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		case wasActive:
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB, Impulse: impulse})
		case isTrigger:
			e.buffer = append(e.buffer, TriggerEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		default:
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB, Impulse: impulse})
		}
	}

	for pair := range e.previousActivePairs {
		if _, ok := e.currentActivePairs[pair]; ok {
			continue
		}

		if pair.bodyA.IsTrigger || pair.bodyB.IsTrigger {
			e.buffer = append(e.buffer, TriggerExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		trackedState, exists := e.sleepStates[body]
		if !exists {
			e.sleepStates[body] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body] = false
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		for _, listener := range e.listeners[event.Type()] {
			listener(event)
		}
	}
	e.buffer = e.buffer[:0]
}
