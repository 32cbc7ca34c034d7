package plume

import (
	"testing"

	"github.com/akmonengine/plume/actor"
	"github.com/akmonengine/plume/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

func createTestBody(id any, isTrigger, isSleeping bool) *actor.RigidBody {
	rb := actor.NewRigidBody(actor.NewTransform(), &actor.Sphere{Radius: 1.0}, actor.BodyTypeDynamic, 1.0)
	rb.Id = id
	rb.IsTrigger = isTrigger
	rb.IsSleeping = isSleeping
	return rb
}

// createTestManifold creates a one point manifold between bodies[i] and bodies[j]
func createTestManifold(i, j int, impulse float64) *constraint.ContactManifold {
	return &constraint.ContactManifold{
		Body1:  i,
		Body2:  j,
		Normal: mgl64.Vec3{1, 0, 0},
		SolverContacts: []constraint.SolverContact{
			{Point: mgl64.Vec3{0, 0, 0}, Dist: -0.1, Data: constraint.ContactData{Impulse: impulse}},
		},
	}
}

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count(eventType EventType) int {
	n := 0
	for _, e := range ec.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

func subscribeAll(events *Events, capture *eventCapture) {
	for eventType := TRIGGER_ENTER; eventType <= BROADPHASE_EXIT; eventType++ {
		events.Subscribe(eventType, capture.capture)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	captures := []*eventCapture{{}, {}, {}}
	for _, capture := range captures {
		events.Subscribe(COLLISION_ENTER, capture.capture)
	}

	bodies := []*actor.RigidBody{createTestBody("A", false, false), createTestBody("B", false, false)}
	events.recordCollisions([]*constraint.ContactManifold{createTestManifold(0, 1, 0)}, bodies)
	events.flush()

	for i, capture := range captures {
		if len(capture.events) != 1 {
			t.Errorf("listener %d received %d events, want 1", i, len(capture.events))
		}
	}
}

func TestMakePairKey_Normalization(t *testing.T) {
	bodyA := createTestBody("A", false, false)
	bodyB := createTestBody("B", false, false)
	bodyC := createTestBody("C", false, false)

	if makePairKey(bodyA, bodyB) != makePairKey(bodyB, bodyA) {
		t.Error("makePairKey should not depend on the order of the bodies")
	}
	if makePairKey(bodyA, bodyB) == makePairKey(bodyA, bodyC) {
		t.Error("different pairs should have different keys")
	}
}

// =============================================================================
// Collision & Trigger Tests
// =============================================================================

func TestEvents_RecordCollisions_FiltersTriggers(t *testing.T) {
	events := NewEvents()
	bodies := []*actor.RigidBody{
		createTestBody("A", false, false),
		createTestBody("B", false, false),
		createTestBody("C", true, false),
	}
	solid := createTestManifold(0, 1, 0)
	trigger := createTestManifold(1, 2, 0)

	result := events.recordCollisions([]*constraint.ContactManifold{solid, trigger}, bodies)

	if len(result) != 1 || result[0] != solid {
		t.Errorf("recordCollisions() = %v, want only the solid manifold", result)
	}
	if len(events.currentActivePairs) != 2 {
		t.Errorf("%d pairs recorded, want 2", len(events.currentActivePairs))
	}
}

func TestEvents_EnterStayExit(t *testing.T) {
	tests := []struct {
		name              string
		isTrigger         bool
		enter, stay, exit EventType
	}{
		{"collision", false, COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT},
		{"trigger", true, TRIGGER_ENTER, TRIGGER_STAY, TRIGGER_EXIT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewEvents()
			capture := &eventCapture{}
			subscribeAll(&events, capture)

			bodies := []*actor.RigidBody{createTestBody("A", tt.isTrigger, false), createTestBody("B", false, false)}
			frames := []struct {
				touching bool
				want     EventType
			}{
				{true, tt.enter},
				{true, tt.stay},
				{true, tt.stay},
				{false, tt.exit},
				{true, tt.enter},
			}

			for i, frame := range frames {
				capture.reset()
				var manifolds []*constraint.ContactManifold
				if frame.touching {
					manifolds = append(manifolds, createTestManifold(0, 1, 0))
				}
				events.recordCollisions(manifolds, bodies)
				events.flush()

				if len(capture.events) != 1 || capture.events[0].Type() != frame.want {
					t.Errorf("frame %d: events = %v, want one of type %d", i, capture.events, frame.want)
				}
			}
		})
	}
}

func TestEvents_NoStayBetweenSleepingBodies(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	bodies := []*actor.RigidBody{createTestBody("A", false, true), createTestBody("B", true, true)}
	manifolds := []*constraint.ContactManifold{createTestManifold(0, 1, 0)}

	events.recordCollisions(manifolds, bodies)
	events.flush()
	events.recordCollisions(manifolds, bodies)
	events.flush()

	if len(capture.events) != 0 {
		t.Errorf("events = %v, want none between sleeping bodies", capture.events)
	}
}

func TestEvents_CollisionImpulse(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_ENTER, capture.capture)

	bodies := []*actor.RigidBody{createTestBody("A", false, false), createTestBody("B", false, false)}
	manifolds := events.recordCollisions([]*constraint.ContactManifold{createTestManifold(0, 1, 0.5)}, bodies)
	events.recordImpulses(manifolds, bodies)
	events.recordImpulses([]*constraint.ContactManifold{createTestManifold(1, 0, 0.2)}, bodies)
	events.flush()

	if len(capture.events) != 1 {
		t.Fatalf("received %d events, want 1", len(capture.events))
	}
	if impulse := capture.events[0].(CollisionEnterEvent).Impulse; impulse != 0.5 {
		t.Errorf("impulse = %v, want the largest one, 0.5", impulse)
	}
}

func TestEvents_BroadPhase(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	bodyA := createTestBody("A", false, false)
	bodyB := createTestBody("B", false, false)

	events.recordBroadPhase(bodyA, bodyB, true)
	events.recordBroadPhase(bodyB, bodyA, false)
	events.flush()

	if capture.count(BROADPHASE_ENTER) != 1 || capture.count(BROADPHASE_EXIT) != 1 {
		t.Errorf("events = %v, want one enter and one exit", capture.events)
	}
	enter := capture.events[0].(BroadPhaseEnterEvent)
	exit := capture.events[1].(BroadPhaseExitEvent)
	if enter.BodyA != exit.BodyA || enter.BodyB != exit.BodyB {
		t.Error("both events should order the bodies the same way")
	}
}

func TestEvents_Forget(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	bodies := []*actor.RigidBody{createTestBody("A", false, false), createTestBody("B", false, false)}
	events.processSleepEvents(bodies)
	events.recordCollisions([]*constraint.ContactManifold{createTestManifold(0, 1, 0)}, bodies)
	events.flush()

	events.forget(bodies[1])
	capture.reset()
	events.flush()

	if len(capture.events) != 0 {
		t.Errorf("events = %v, a removed body should not produce an exit", capture.events)
	}
	if _, ok := events.sleepStates[bodies[1]]; ok {
		t.Error("sleep state of the removed body should be dropped")
	}
}

// =============================================================================
// Sleep/Wake Tests
// =============================================================================

func TestEvents_SleepWakeWorkflow(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	body := createTestBody("A", false, false)
	bodies := []*actor.RigidBody{body}

	frames := []struct {
		sleeping bool
		want     []EventType
	}{
		{false, nil}, // initialization
		{false, nil},
		{true, []EventType{ON_SLEEP}},
		{true, nil},
		{false, []EventType{ON_WAKE}},
	}

	for i, frame := range frames {
		capture.reset()
		body.IsSleeping = frame.sleeping
		events.processSleepEvents(bodies)
		events.flush()

		if len(capture.events) != len(frame.want) {
			t.Fatalf("frame %d: events = %v, want %v", i, capture.events, frame.want)
		}
		for k, eventType := range frame.want {
			if capture.events[k].Type() != eventType {
				t.Errorf("frame %d: event %d has type %d, want %d", i, k, capture.events[k].Type(), eventType)
			}
		}
	}
}

func TestEvents_Flush_ClearsBuffer(t *testing.T) {
	events := NewEvents()
	events.recordBroadPhase(createTestBody("A", false, false), createTestBody("B", false, false), true)
	events.flush()

	if len(events.buffer) != 0 {
		t.Errorf("buffer holds %d events after flush", len(events.buffer))
	}
}
