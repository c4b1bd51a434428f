package aicf

import "sync"

// Heartbeat is a provider's point-in-time liveness/capacity signal.
// Grounded on aicf/adapters/p2p.py's Heartbeat dataclass; the P2P
// transport framing (bus/topics/JSON wire format) is out of scope here —
// this package only validates and tracks accepted heartbeats.
type Heartbeat struct {
	ProviderID string
	Height     uint64
	Timestamp  int64 // unix seconds, provider's clock
	CapacityAI uint64
	CapacityQP uint64
	QoS        float64 // self-reported, [0,1]
	Nonce      uint64
}

// HeartbeatRejectReason names why a heartbeat was not accepted.
type HeartbeatRejectReason string

const (
	HBAccepted          HeartbeatRejectReason = ""
	HBRejectStale       HeartbeatRejectReason = "stale_timestamp"
	HBRejectRateLimited HeartbeatRejectReason = "rate_limited"
	HBRejectNonMonotone HeartbeatRejectReason = "non_monotonic"
)

// HeartbeatValidatorConfig carries the per-provider admission thresholds
// of spec.md §4.8.
type HeartbeatValidatorConfig struct {
	MinIntervalSec int64
	MaxSkewSec     int64
}

// DefaultHeartbeatValidatorConfig mirrors p2p.py's P2PAdapter defaults.
func DefaultHeartbeatValidatorConfig() HeartbeatValidatorConfig {
	return HeartbeatValidatorConfig{MinIntervalSec: 5, MaxSkewSec: 300}
}

type lastHeartbeat struct {
	nonce    uint64
	ts       int64
	recvWall int64
}

// HeartbeatValidator tracks the last accepted heartbeat per provider and
// enforces the ordering/spam rules of spec.md §4.8. Safe for concurrent
// use.
type HeartbeatValidator struct {
	cfg HeartbeatValidatorConfig

	mu   sync.Mutex
	last map[string]lastHeartbeat
}

// NewHeartbeatValidator constructs a validator with the given config.
func NewHeartbeatValidator(cfg HeartbeatValidatorConfig) *HeartbeatValidator {
	return &HeartbeatValidator{cfg: cfg, last: make(map[string]lastHeartbeat)}
}

// Validate applies the heartbeat admission rules at wall-clock now
// (unix seconds) and, if accepted, records it as the new baseline for
// that provider.
func (v *HeartbeatValidator) Validate(hb Heartbeat, now int64) HeartbeatRejectReason {
	if hb.Timestamp < now-v.cfg.MaxSkewSec {
		return HBRejectStale
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.last[hb.ProviderID]
	if ok {
		if now-prev.recvWall < v.cfg.MinIntervalSec {
			return HBRejectRateLimited
		}
		if hb.Nonce < prev.nonce || (hb.Nonce == prev.nonce && hb.Timestamp <= prev.ts) {
			return HBRejectNonMonotone
		}
	}

	v.last[hb.ProviderID] = lastHeartbeat{nonce: hb.Nonce, ts: hb.Timestamp, recvWall: now}
	return HBAccepted
}

// LastSeen returns the last accepted (nonce, timestamp, recvWall) for a
// provider, or ok=false if none has been accepted yet.
func (v *HeartbeatValidator) LastSeen(providerID string) (nonce uint64, ts int64, recvWall int64, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	last, found := v.last[providerID]
	if !found {
		return 0, 0, 0, false
	}
	return last.nonce, last.ts, last.recvWall, true
}
