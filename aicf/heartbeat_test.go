package aicf

import "testing"

func TestHeartbeatValidatorAcceptsFirstHeartbeat(t *testing.T) {
	v := NewHeartbeatValidator(DefaultHeartbeatValidatorConfig())
	hb := Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 1}
	if reason := v.Validate(hb, 1000); reason != HBAccepted {
		t.Fatalf("reason = %q, want accepted", reason)
	}
}

func TestHeartbeatValidatorRejectsStale(t *testing.T) {
	v := NewHeartbeatValidator(DefaultHeartbeatValidatorConfig())
	hb := Heartbeat{ProviderID: "prov1", Timestamp: 100, Nonce: 1}
	if reason := v.Validate(hb, 1000); reason != HBRejectStale {
		t.Fatalf("reason = %q, want stale", reason)
	}
}

func TestHeartbeatValidatorRateLimitsRapidRepeats(t *testing.T) {
	cfg := DefaultHeartbeatValidatorConfig()
	v := NewHeartbeatValidator(cfg)
	v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 1}, 1000)
	reason := v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1001, Nonce: 2}, 1001)
	if reason != HBRejectRateLimited {
		t.Fatalf("reason = %q, want rate_limited", reason)
	}
}

func TestHeartbeatValidatorRejectsNonMonotonicNonce(t *testing.T) {
	v := NewHeartbeatValidator(DefaultHeartbeatValidatorConfig())
	v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 5}, 1000)
	reason := v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1010, Nonce: 4}, 1010)
	if reason != HBRejectNonMonotone {
		t.Fatalf("reason = %q, want non_monotonic", reason)
	}
}

func TestHeartbeatValidatorAcceptsSameNonceNewerTimestamp(t *testing.T) {
	v := NewHeartbeatValidator(HeartbeatValidatorConfig{MinIntervalSec: 0, MaxSkewSec: 300})
	v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 5}, 1000)
	reason := v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1001, Nonce: 5}, 1000)
	if reason != HBAccepted {
		t.Fatalf("reason = %q, want accepted (same nonce, newer ts)", reason)
	}
}

func TestHeartbeatValidatorAcceptsAfterIntervalElapses(t *testing.T) {
	v := NewHeartbeatValidator(DefaultHeartbeatValidatorConfig())
	v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1000, Nonce: 1}, 1000)
	reason := v.Validate(Heartbeat{ProviderID: "prov1", Timestamp: 1010, Nonce: 2}, 1010)
	if reason != HBAccepted {
		t.Fatalf("reason = %q, want accepted", reason)
	}
	nonce, ts, _, ok := v.LastSeen("prov1")
	if !ok || nonce != 2 || ts != 1010 {
		t.Fatalf("last seen = (%d, %d, %v), want (2, 1010, true)", nonce, ts, ok)
	}
}
