package broadphase

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

type newEndpoint struct {
	endpoint Endpoint
	index    int // final position in SAPAxis.Endpoints
}

// SAPAxis keeps the endpoints of every proxy, projected on one axis, sorted by
// value. The first and last endpoints are always the two sentinels.
//
// An axis is owned by a single goroutine at a time; distinct axes may be
// mutated concurrently.
type SAPAxis struct {
	MinBound  float64
	MaxBound  float64
	Endpoints []Endpoint

	newEndpoints []newEndpoint // workspace
}

func NewSAPAxis(minBound, maxBound float64) *SAPAxis {
	if !(minBound <= maxBound) {
		panic(fmt.Sprintf("broadphase: invalid axis bounds [%v, %v]", minBound, maxBound))
	}

	return &SAPAxis{
		MinBound:  minBound,
		MaxBound:  maxBound,
		Endpoints: []Endpoint{StartSentinel(), EndSentinel()},
	}
}

// BatchInsert adds the start and end endpoints of newProxies along axis dim.
// When reporting is not nil, every pair involving a new proxy whose boxes
// intersect is reported as true. Some pairs sharing the same lower bound may
// be reported twice.
func (a *SAPAxis) BatchInsert(dim int, newProxies []uint32, proxies Proxies, reporting PairReport) {
	if len(newProxies) == 0 {
		return
	}

	a.newEndpoints = a.newEndpoints[:0]

	for _, id := range newProxies {
		proxy := proxies.Get(id)
		if proxy.Aabb.Mins(dim) > a.MaxBound || proxy.Aabb.Maxs(dim) < a.MinBound {
			panic(fmt.Sprintf("broadphase: proxy %d [%v, %v] outside of axis %d bounds [%v, %v]",
				id, proxy.Aabb.Mins(dim), proxy.Aabb.Maxs(dim), dim, a.MinBound, a.MaxBound))
		}

		a.newEndpoints = append(a.newEndpoints,
			newEndpoint{endpoint: StartEndpoint(proxy.Aabb.Mins(dim), id)},
			newEndpoint{endpoint: EndEndpoint(proxy.Aabb.Maxs(dim), id)},
		)
	}

	slices.SortStableFunc(a.newEndpoints, func(x, y newEndpoint) int {
		return cmp.Compare(x.endpoint.Value, y.endpoint.Value)
	})

	// Backward merge: both sequences are sorted, so the largest remaining
	// endpoint of either goes to the current tail slot.
	currExisting := len(a.Endpoints) - NumSentinels - 1
	newLen := len(a.Endpoints) + len(a.newEndpoints)
	for len(a.Endpoints) < newLen {
		a.Endpoints = append(a.Endpoints, EndSentinel())
	}
	currShift := newLen - NumSentinels - 1

	for k := len(a.newEndpoints) - 1; k >= 0; k-- {
		added := &a.newEndpoints[k]

		for {
			existing := a.Endpoints[currExisting]
			if existing.Value <= added.endpoint.Value {
				break
			}

			a.Endpoints[currShift] = existing
			currShift--
			currExisting--
		}

		a.Endpoints[currShift] = added.endpoint
		added.index = currShift
		currShift--
	}

	if reporting == nil {
		return
	}

	// One pass over the endpoints following each new start endpoint.
	withoutLastSentinel := a.Endpoints[:len(a.Endpoints)-1]
	for _, added := range a.newEndpoints {
		if !added.endpoint.IsStart() {
			continue
		}

		id1 := added.endpoint.Proxy()
		proxy1 := proxies.Get(id1)
		lo := added.endpoint.Value
		hi := proxy1.Aabb.Maxs(dim)

		for _, other := range withoutLastSentinel[added.index+1:] {
			id2 := other.Proxy()
			if id2 == id1 {
				continue
			}

			proxy2 := proxies.Get(id2)

			if (other.IsStart() && other.Value < hi) || (other.IsEnd() && proxy2.Aabb.Mins(dim) <= lo) {
				if proxy1.Aabb.Intersects(proxy2.Aabb) {
					reporting[MakePairKey(id1, id2)] = true
				}
			}
		}
	}
}

// DeleteOutOfBoundsProxies clears the existence bit of every proxy lying
// entirely below MinBound or entirely above MaxBound, and returns how many
// proxies it cleared.
func (a *SAPAxis) DeleteOutOfBoundsProxies(existing *bitset.BitSet) int {
	deleted := 0

	for _, endpoint := range a.Endpoints {
		if endpoint.Value >= a.MinBound {
			break
		}

		id := uint(endpoint.Proxy())
		if endpoint.IsEnd() && !endpoint.IsSentinel() && existing.Test(id) {
			existing.Clear(id)
			deleted++
		}
	}

	for i := len(a.Endpoints) - 1; i >= 0; i-- {
		endpoint := a.Endpoints[i]
		if endpoint.Value <= a.MaxBound {
			break
		}

		id := uint(endpoint.Proxy())
		if endpoint.IsStart() && !endpoint.IsSentinel() && existing.Test(id) {
			existing.Clear(id)
			deleted++
		}
	}

	return deleted
}

// DeleteOutOfBoundsEndpoints drops the endpoints of every proxy whose
// existence bit is cleared.
func (a *SAPAxis) DeleteOutOfBoundsEndpoints(existing *bitset.BitSet) {
	a.Endpoints = slices.DeleteFunc(a.Endpoints, func(e Endpoint) bool {
		return !e.IsSentinel() && !existing.Test(uint(e.Proxy()))
	})
}

// UpdateEndpoints refreshes every endpoint from the live proxy bounds and
// restores the order with one insertion-sort pass. A start endpoint moving
// below an end endpoint may begin an overlap; an end endpoint moving below a
// start endpoint may end one. Both are checked against the full boxes.
func (a *SAPAxis) UpdateEndpoints(dim int, proxies Proxies, reporting PairReport) {
	last := len(a.Endpoints) - NumSentinels

	for i := NumSentinels; i < last; i++ {
		endpoint := a.Endpoints[i]
		id := endpoint.Proxy()
		aabb := proxies.Get(id).Aabb

		if endpoint.IsStart() {
			endpoint.Value = aabb.Mins(dim)
		} else {
			endpoint.Value = aabb.Maxs(dim)
		}

		j := i

		if endpoint.IsStart() {
			for endpoint.Value < a.Endpoints[j-1].Value {
				other := a.Endpoints[j-1]
				a.Endpoints[j] = other

				if other.IsEnd() && aabb.Intersects(proxies.Get(other.Proxy()).Aabb) {
					reporting[MakePairKey(id, other.Proxy())] = true
				}

				j--
			}
		} else {
			for endpoint.Value < a.Endpoints[j-1].Value {
				other := a.Endpoints[j-1]
				a.Endpoints[j] = other

				if other.IsStart() && !aabb.Intersects(proxies.Get(other.Proxy()).Aabb) {
					reporting[MakePairKey(id, other.Proxy())] = false
				}

				j--
			}
		}

		a.Endpoints[j] = endpoint
	}
}

// IsSorted reports whether the endpoints are in ascending order and framed by
// the two sentinels.
func (a *SAPAxis) IsSorted() bool {
	n := len(a.Endpoints)
	if n < 2 || a.Endpoints[0] != StartSentinel() || a.Endpoints[n-1] != EndSentinel() {
		return false
	}

	return slices.IsSortedFunc(a.Endpoints, func(x, y Endpoint) int {
		return cmp.Compare(x.Value, y.Value)
	})
}

// NumProxies is the number of proxies currently present on the axis
func (a *SAPAxis) NumProxies() int {
	return (len(a.Endpoints) - 2*NumSentinels) / 2
}
