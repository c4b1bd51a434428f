package ratelimiter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdmitAllowsWithinBurst(t *testing.T) {
	cfg := Config{
		GlobalTxRatePerSec: 5, GlobalTxBurst: 5,
		GlobalBytesRatePerSec: 1000, GlobalBytesBurst: 1000,
		PerPeerTxRatePerSec: 2, PerPeerTxBurst: 2,
		PeerBucketTTLSec: 600, PeerBucketMax: 100,
	}
	now := 0.0
	lim := New(cfg, now)

	d1 := lim.Admit("peer:alice", 100, now)
	d2 := lim.Admit("peer:alice", 100, now)
	require.True(t, d1.Accept)
	require.True(t, d2.Accept)
}

func TestAdmitDeniesPastPerPeerBurst(t *testing.T) {
	cfg := Config{
		GlobalTxRatePerSec: 5, GlobalTxBurst: 5,
		GlobalBytesRatePerSec: 1000, GlobalBytesBurst: 1000,
		PerPeerTxRatePerSec: 2, PerPeerTxBurst: 2,
		PeerBucketTTLSec: 600, PeerBucketMax: 100,
	}
	now := 0.0
	lim := New(cfg, now)

	lim.Admit("peer:alice", 100, now)
	lim.Admit("peer:alice", 100, now)
	d3 := lim.Admit("peer:alice", 100, now)
	require.False(t, d3.Accept)
	require.Equal(t, ReasonRateLimited, d3.Reason)
	require.Greater(t, d3.WaitSeconds, 0.0)
}

func TestAdmitRecoversAfterRefill(t *testing.T) {
	cfg := Config{
		GlobalTxRatePerSec: 5, GlobalTxBurst: 5,
		GlobalBytesRatePerSec: 1000, GlobalBytesBurst: 1000,
		PerPeerTxRatePerSec: 2, PerPeerTxBurst: 2,
		PeerBucketTTLSec: 600, PeerBucketMax: 100,
	}
	now := 0.0
	lim := New(cfg, now)

	lim.Admit("peer:alice", 100, now)
	lim.Admit("peer:alice", 100, now)
	require.False(t, lim.Admit("peer:alice", 100, now+0.1).Accept)
	require.True(t, lim.Admit("peer:alice", 100, now+1.1).Accept)
}

func TestAdmitDeniesOnGlobalBytesBurst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalBytesBurst = 1000
	cfg.GlobalBytesRatePerSec = 1000
	now := 0.0
	lim := New(cfg, now)

	d := lim.Admit("peer:bob", 5000, now)
	require.False(t, d.Accept)
}

func TestPeerBucketsAreCappedByLRU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeerBucketMax = 3
	now := 0.0
	lim := New(cfg, now)

	for i := 0; i < 10; i++ {
		lim.Admit(string(rune('a'+i)), 1, now)
	}
	snap := lim.Snapshot(now)
	require.LessOrEqual(t, snap.PeerBuckets, 3)
}

func TestReconfigureAdjustsCapacity(t *testing.T) {
	cfg := DefaultConfig()
	now := 0.0
	lim := New(cfg, now)

	cfg2 := cfg
	cfg2.GlobalTxBurst = 1
	lim.Reconfigure(cfg2, now)

	snap := lim.Snapshot(now)
	require.LessOrEqual(t, snap.GlobalTxTokens, 1.0)
}
