package broadphase

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/akmonengine/plume/actor"
	"github.com/bits-and-blooms/bitset"
)

// DIM is the number of sweep axes.
const DIM = 3

// BroadPhase is a multi-axis sweep and prune over a bounded region of space.
// Proxies leaving the region are parked: they lose all their pairs and are
// inserted again once they reach back into it.
//
// A moving proxy starts a pair once one of its endpoints strictly passes an
// endpoint of the other proxy. Two boxes sliding into exact face contact are
// thus not paired, whereas a proxy inserted touching another one is.
type BroadPhase struct {
	Bounds actor.AABB

	axes     [DIM]*SAPAxis
	proxies  Proxies
	freeIds  []uint32
	existing *bitset.BitSet // proxies present on the axes

	toInsert []uint32 // workspace
	removed  []uint32

	axisReports [DIM]PairReport
	activePairs map[PairKey]struct{}
}

func NewBroadPhase(bounds actor.AABB) *BroadPhase {
	bp := &BroadPhase{
		Bounds:      bounds,
		existing:    bitset.New(64),
		activePairs: make(map[PairKey]struct{}),
	}

	for dim := range DIM {
		bp.axes[dim] = NewSAPAxis(bounds.Mins(dim), bounds.Maxs(dim))
		bp.axisReports[dim] = make(PairReport)
	}

	return bp
}

// CreateProxy registers a new proxy, inserted on the axes at the next Update
func (bp *BroadPhase) CreateProxy(aabb actor.AABB) uint32 {
	var id uint32
	if n := len(bp.freeIds); n > 0 {
		id = bp.freeIds[n-1]
		bp.freeIds = bp.freeIds[:n-1]
		bp.proxies[id] = Proxy{Aabb: aabb, state: proxyPending}
	} else {
		id = uint32(len(bp.proxies))
		if id >= SentinelProxy {
			panic("broadphase: proxy table full")
		}
		bp.proxies = append(bp.proxies, Proxy{Aabb: aabb, state: proxyPending})
	}

	return id
}

// SetProxyAabb updates the bounds of a proxy, taken into account at the next Update
func (bp *BroadPhase) SetProxyAabb(id uint32, aabb actor.AABB) {
	proxy := bp.proxies.Get(id)
	if proxy.state == proxyFree || proxy.state == proxyRemoved {
		panic(fmt.Sprintf("broadphase: proxy %d is not alive", id))
	}
	proxy.Aabb = aabb
}

// RemoveProxy schedules the deletion of a proxy. Its pairs end at the next Update.
func (bp *BroadPhase) RemoveProxy(id uint32) {
	proxy := bp.proxies.Get(id)
	if proxy.state == proxyFree || proxy.state == proxyRemoved {
		panic(fmt.Sprintf("broadphase: proxy %d is not alive", id))
	}
	proxy.state = proxyRemoved
	bp.removed = append(bp.removed, id)
}

// IsInserted reports whether the proxy currently lies on the sweep axes
func (bp *BroadPhase) IsInserted(id uint32) bool {
	return bp.existing.Test(uint(id))
}

func (bp *BroadPhase) Axis(dim int) *SAPAxis {
	return bp.axes[dim]
}

// ActivePairs returns the overlapping pairs, sorted
func (bp *BroadPhase) ActivePairs() []PairKey {
	pairs := slices.Collect(maps.Keys(bp.activePairs))
	slices.SortFunc(pairs, comparePairs)
	return pairs
}

func comparePairs(x, y PairKey) int {
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}

func (bp *BroadPhase) inBounds(aabb actor.AABB) bool {
	return aabb.Overlaps(bp.Bounds)
}

// Update synchronizes the axes with the proxy table and returns the pair
// transitions since the previous call, sorted by pair.
func (bp *BroadPhase) Update() []PairEvent {
	ended := bp.dropRemoved()

	// Parked proxies coming back join the new ones
	toInsert := bp.toInsert[:0]
	for id := range bp.proxies {
		proxy := &bp.proxies[id]
		if (proxy.state == proxyPending || proxy.state == proxyParked) && bp.inBounds(proxy.Aabb) {
			toInsert = append(toInsert, uint32(id))
		} else if proxy.state == proxyPending {
			proxy.state = proxyParked
		}
	}

	bp.eachAxis(func(dim int, axis *SAPAxis, reporting PairReport) {
		axis.UpdateEndpoints(dim, bp.proxies, reporting)
	})

	deleted := 0
	for _, axis := range bp.axes {
		deleted += axis.DeleteOutOfBoundsProxies(bp.existing)
	}
	if deleted > 0 {
		bp.eachAxis(func(dim int, axis *SAPAxis, _ PairReport) {
			axis.DeleteOutOfBoundsEndpoints(bp.existing)
		})

		for id := range bp.proxies {
			if bp.proxies[id].state == proxyInserted && !bp.existing.Test(uint(id)) {
				bp.proxies[id].state = proxyParked
				ended = append(ended, uint32(id))
			}
		}
	}

	if len(toInsert) > 0 {
		bp.eachAxis(func(dim int, axis *SAPAxis, reporting PairReport) {
			axis.BatchInsert(dim, toInsert, bp.proxies, reporting)
		})

		for _, id := range toInsert {
			bp.proxies[id].state = proxyInserted
			bp.existing.Set(uint(id))
		}
	}
	bp.toInsert = toInsert

	return bp.collectEvents(ended)
}

// dropRemoved deletes the endpoints of removed proxies and recycles their ids.
func (bp *BroadPhase) dropRemoved() []uint32 {
	if len(bp.removed) == 0 {
		return nil
	}

	ended := make([]uint32, 0, len(bp.removed))
	for _, id := range bp.removed {
		bp.existing.Clear(uint(id))
		ended = append(ended, id)
	}

	bp.eachAxis(func(dim int, axis *SAPAxis, _ PairReport) {
		axis.DeleteOutOfBoundsEndpoints(bp.existing)
	})

	for _, id := range bp.removed {
		bp.proxies[id] = Proxy{state: proxyFree}
		bp.freeIds = append(bp.freeIds, id)
	}
	bp.removed = bp.removed[:0]

	return ended
}

// eachAxis runs fn on the three axes concurrently. Each axis reports into its
// own map, so no synchronization is needed besides the final wait.
func (bp *BroadPhase) eachAxis(fn func(dim int, axis *SAPAxis, reporting PairReport)) {
	var wg sync.WaitGroup
	for dim := range DIM {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(dim, bp.axes[dim], bp.axisReports[dim])
		}()
	}
	wg.Wait()
}

func (bp *BroadPhase) collectEvents(ended []uint32) []PairEvent {
	var events []PairEvent

	// The reported value is always the exact intersection test on final
	// boxes, so merging the axes in any order gives the same result.
	merged := make(PairReport)
	for dim := range DIM {
		maps.Copy(merged, bp.axisReports[dim])
		clear(bp.axisReports[dim])
	}

	for pair, begin := range merged {
		_, active := bp.activePairs[pair]

		if begin && !active && bp.existing.Test(uint(pair.A)) && bp.existing.Test(uint(pair.B)) {
			bp.activePairs[pair] = struct{}{}
			events = append(events, PairEvent{Pair: pair, Begin: true})
		} else if !begin && active {
			delete(bp.activePairs, pair)
			events = append(events, PairEvent{Pair: pair, Begin: false})
		}
	}

	if len(ended) > 0 {
		gone := bitset.New(uint(len(bp.proxies)))
		for _, id := range ended {
			gone.Set(uint(id))
		}

		for pair := range bp.activePairs {
			if gone.Test(uint(pair.A)) || gone.Test(uint(pair.B)) {
				delete(bp.activePairs, pair)
				events = append(events, PairEvent{Pair: pair, Begin: false})
			}
		}
	}

	slices.SortFunc(events, func(x, y PairEvent) int {
		return comparePairs(x.Pair, y.Pair)
	})

	return events
}
