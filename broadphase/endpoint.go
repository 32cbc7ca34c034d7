package broadphase

import "math"

const (
	startFlagMask uint32 = 1 << 31
	proxyMask     uint32 = ^startFlagMask

	// SentinelProxy is the proxy id reserved for the two sentinels of every axis.
	SentinelProxy = proxyMask

	startSentinelTag = math.MaxUint32
	endSentinelTag   = math.MaxUint32 ^ startFlagMask

	// NumSentinels at each end of an axis.
	NumSentinels = 1
)

// Endpoint is one bound of a proxy projected on an axis. The proxy id and
// the start/end flag share a single packed word.
type Endpoint struct {
	Value  float64
	packed uint32
}

func StartEndpoint(value float64, proxy uint32) Endpoint {
	return Endpoint{Value: value, packed: proxy | startFlagMask}
}

func EndEndpoint(value float64, proxy uint32) Endpoint {
	return Endpoint{Value: value, packed: proxy &^ startFlagMask}
}

func StartSentinel() Endpoint {
	return Endpoint{Value: math.Inf(-1), packed: startSentinelTag}
}

func EndSentinel() Endpoint {
	return Endpoint{Value: math.Inf(1), packed: endSentinelTag}
}

func (e Endpoint) IsStart() bool {
	return e.packed&startFlagMask != 0
}

func (e Endpoint) IsEnd() bool {
	return e.packed&startFlagMask == 0
}

func (e Endpoint) IsSentinel() bool {
	return e.packed&proxyMask == proxyMask
}

func (e Endpoint) Proxy() uint32 {
	return e.packed & proxyMask
}
