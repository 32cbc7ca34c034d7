package broadphase

import (
	"fmt"

	"github.com/akmonengine/plume/actor"
)

type proxyState uint8

const (
	proxyFree proxyState = iota
	// created or moved back into the bounds, waiting for the next batch insertion
	proxyPending
	proxyInserted
	// outside of the bounds, not present on any axis
	proxyParked
	proxyRemoved
)

// Proxy is the broad-phase representation of a collider: its identity is its
// index in the Proxies table.
type Proxy struct {
	Aabb  actor.AABB
	state proxyState
}

// Proxies is the proxy table shared by the three axes.
type Proxies []Proxy

func (p Proxies) Get(id uint32) *Proxy {
	if int(id) >= len(p) {
		panic(fmt.Sprintf("broadphase: proxy %d out of range (%d proxies)", id, len(p)))
	}
	return &p[id]
}

// PairKey identifies an unordered pair of proxies, always stored with A < B.
type PairKey struct {
	A, B uint32
}

// MakePairKey orders the two proxy ids
func MakePairKey(a, b uint32) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// PairReport collects overlap transitions: true when a pair starts to overlap,
// false when it stops. Being a map, duplicate reports collapse.
type PairReport map[PairKey]bool

// PairEvent is a deduplicated overlap transition produced by BroadPhase.Update
type PairEvent struct {
	Pair  PairKey
	Begin bool
}
