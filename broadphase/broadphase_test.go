package broadphase

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/akmonengine/plume/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func worldBounds() actor.AABB {
	return actor.AABB{Min: mgl64.Vec3{-50, -50, -50}, Max: mgl64.Vec3{50, 50, 50}}
}

func aabbAt(center mgl64.Vec3, half float64) actor.AABB {
	h := mgl64.Vec3{half, half, half}
	return actor.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func hasEvent(events []PairEvent, a, b uint32, begin bool) bool {
	return slices.Contains(events, PairEvent{Pair: MakePairKey(a, b), Begin: begin})
}

func TestBroadPhase_Scenario(t *testing.T) {
	bp := NewBroadPhase(worldBounds())
	a := bp.CreateProxy(actor.AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}})
	b := bp.CreateProxy(actor.AABB{Min: mgl64.Vec3{0.5, 0.5, 0.5}, Max: mgl64.Vec3{2, 2, 2}})

	events := bp.Update()
	if len(events) != 1 || !hasEvent(events, a, b, true) {
		t.Fatalf("first update events = %v, want begin (%d,%d)", events, a, b)
	}

	bp.SetProxyAabb(b, actor.AABB{Min: mgl64.Vec3{5, 5, 5}, Max: mgl64.Vec3{6, 6, 6}})
	events = bp.Update()
	if len(events) != 1 || !hasEvent(events, a, b, false) {
		t.Fatalf("second update events = %v, want end (%d,%d)", events, a, b)
	}
	if len(bp.ActivePairs()) != 0 {
		t.Errorf("ActivePairs() = %v, want none", bp.ActivePairs())
	}

	if events = bp.Update(); len(events) != 0 {
		t.Errorf("idle update produced %v", events)
	}
}

func TestBroadPhase_TouchingFaces(t *testing.T) {
	bp := NewBroadPhase(worldBounds())
	a := bp.CreateProxy(actor.AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}})
	b := bp.CreateProxy(actor.AABB{Min: mgl64.Vec3{1.5, 0, 0}, Max: mgl64.Vec3{2.5, 1, 1}})
	if events := bp.Update(); len(events) != 0 {
		t.Fatalf("first update events = %v, want none", events)
	}

	// Sliding into face contact
	touching := actor.AABB{Min: mgl64.Vec3{1, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}
	bp.SetProxyAabb(b, touching)
	if events := bp.Update(); len(events) != 0 {
		t.Errorf("touching after a move: events = %v, want none", events)
	}
	if !touching.Overlaps(actor.AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}) {
		t.Error("Overlaps() = false for touching faces, want true")
	}

	bp.SetProxyAabb(b, actor.AABB{Min: mgl64.Vec3{0.9, 0, 0}, Max: mgl64.Vec3{1.9, 1, 1}})
	if events := bp.Update(); len(events) != 1 || !hasEvent(events, a, b, true) {
		t.Errorf("overlapping after a move: events = %v, want begin (%d,%d)", events, a, b)
	}

	// Inserted touching
	c := bp.CreateProxy(actor.AABB{Min: mgl64.Vec3{0, 1, 0}, Max: mgl64.Vec3{0.5, 2, 0.5}})
	if events := bp.Update(); !hasEvent(events, a, c, true) {
		t.Errorf("touching at insertion: events = %v, want begin (%d,%d)", events, a, c)
	}
}

func TestBroadPhase_RemoveProxyEndsPairs(t *testing.T) {
	bp := NewBroadPhase(worldBounds())
	a := bp.CreateProxy(aabbAt(mgl64.Vec3{0, 0, 0}, 1))
	b := bp.CreateProxy(aabbAt(mgl64.Vec3{1, 0, 0}, 1))
	c := bp.CreateProxy(aabbAt(mgl64.Vec3{0, 1, 0}, 1))
	bp.Update()

	if len(bp.ActivePairs()) != 3 {
		t.Fatalf("ActivePairs() = %v, want 3 pairs", bp.ActivePairs())
	}

	bp.RemoveProxy(b)
	events := bp.Update()

	if len(events) != 2 || !hasEvent(events, a, b, false) || !hasEvent(events, b, c, false) {
		t.Errorf("removal events = %v", events)
	}
	if got := bp.ActivePairs(); len(got) != 1 || got[0] != MakePairKey(a, c) {
		t.Errorf("ActivePairs() = %v, want only (%d,%d)", got, a, c)
	}
	for dim := range DIM {
		if bp.Axis(dim).NumProxies() != 2 || !bp.Axis(dim).IsSorted() {
			t.Errorf("axis %d not cleaned: %v", dim, bp.Axis(dim).Endpoints)
		}
	}

	// Ids are recycled
	if d := bp.CreateProxy(aabbAt(mgl64.Vec3{20, 20, 20}, 1)); d != b {
		t.Errorf("CreateProxy() = %d, want recycled id %d", d, b)
	}
}

func TestBroadPhase_ParkedProxyComesBack(t *testing.T) {
	bp := NewBroadPhase(worldBounds())
	a := bp.CreateProxy(aabbAt(mgl64.Vec3{40, 0, 0}, 1))
	b := bp.CreateProxy(aabbAt(mgl64.Vec3{41, 0, 0}, 1))
	bp.Update()

	bp.SetProxyAabb(b, aabbAt(mgl64.Vec3{60, 0, 0}, 1))
	events := bp.Update()

	if !hasEvent(events, a, b, false) {
		t.Errorf("leaving the bounds should end the pair, got %v", events)
	}
	if bp.IsInserted(b) {
		t.Error("proxy outside the bounds should be parked")
	}

	bp.SetProxyAabb(b, aabbAt(mgl64.Vec3{41, 0, 0}, 1))
	events = bp.Update()

	if !bp.IsInserted(b) {
		t.Fatal("proxy back in the bounds should be inserted again")
	}
	if !hasEvent(events, a, b, true) {
		t.Errorf("coming back should begin the pair again, got %v", events)
	}
}

func TestBroadPhase_CreatedOutOfBounds(t *testing.T) {
	bp := NewBroadPhase(worldBounds())
	a := bp.CreateProxy(aabbAt(mgl64.Vec3{100, 0, 0}, 1))

	if events := bp.Update(); len(events) != 0 {
		t.Errorf("events = %v", events)
	}
	if bp.IsInserted(a) {
		t.Error("out of bounds proxy should not be inserted")
	}
}

// Random motion, compared against a brute force overlap test.
func TestBroadPhase_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	bp := NewBroadPhase(worldBounds())

	const n = 60
	centers := make([]mgl64.Vec3, n)
	halves := make([]float64, n)
	proxyIds := make([]uint32, n)

	randomVec := func(scale float64) mgl64.Vec3 {
		return mgl64.Vec3{
			(rng.Float64()*2 - 1) * scale,
			(rng.Float64()*2 - 1) * scale,
			(rng.Float64()*2 - 1) * scale,
		}
	}

	for i := range n {
		centers[i] = randomVec(55)
		halves[i] = 0.5 + rng.Float64()*4
		proxyIds[i] = bp.CreateProxy(aabbAt(centers[i], halves[i]))
	}

	active := map[PairKey]bool{}

	for step := range 40 {
		for _, event := range bp.Update() {
			if event.Begin == active[event.Pair] {
				t.Fatalf("step %d: redundant event %v", step, event)
			}
			if event.Begin {
				active[event.Pair] = true
			} else {
				delete(active, event.Pair)
			}
		}

		want := map[PairKey]bool{}
		for i := range n {
			ai := aabbAt(centers[i], halves[i])
			if !ai.Overlaps(bp.Bounds) {
				continue
			}
			for j := i + 1; j < n; j++ {
				aj := aabbAt(centers[j], halves[j])
				if aj.Overlaps(bp.Bounds) && ai.Overlaps(aj) {
					want[MakePairKey(proxyIds[i], proxyIds[j])] = true
				}
			}
		}

		if len(want) != len(active) {
			t.Fatalf("step %d: %d active pairs, want %d", step, len(active), len(want))
		}
		for pair := range want {
			if !active[pair] {
				t.Fatalf("step %d: missing pair %v", step, pair)
			}
		}
		if len(bp.ActivePairs()) != len(want) {
			t.Fatalf("step %d: ActivePairs() disagrees with events", step)
		}
		for dim := range DIM {
			if !bp.Axis(dim).IsSorted() {
				t.Fatalf("step %d: axis %d not sorted", step, dim)
			}
		}

		for i := range n {
			centers[i] = centers[i].Add(randomVec(3))
			bp.SetProxyAabb(proxyIds[i], aabbAt(centers[i], halves[i]))
		}
	}
}
