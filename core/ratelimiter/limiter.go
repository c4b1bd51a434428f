package ratelimiter

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/log"
)

// Config mirrors mempool/limiter.py's LimiterConfig. Rates are expressed
// per second. A rate <= 0 stops refilling: the bucket serves the tokens
// it started with and then denies with an infinite wait. A capacity <= 0
// denies every nonzero request, with a finite wait hint when the rate is
// positive.
type Config struct {
	GlobalTxRatePerSec    float64
	GlobalTxBurst         float64
	GlobalBytesRatePerSec float64
	GlobalBytesBurst      float64
	PerPeerTxRatePerSec   float64
	PerPeerTxBurst        float64
	PeerBucketTTLSec      float64
	PeerBucketMax         int
}

// DefaultConfig mirrors the original's LimiterConfig defaults.
func DefaultConfig() Config {
	return Config{
		GlobalTxRatePerSec:    1_000.0,
		GlobalTxBurst:         2_000.0,
		GlobalBytesRatePerSec: 10_000_000.0,
		GlobalBytesBurst:      20_000_000.0,
		PerPeerTxRatePerSec:   20.0,
		PerPeerTxBurst:        40.0,
		PeerBucketTTLSec:      600.0,
		PeerBucketMax:         10_000,
	}
}

// PeerBucket tracks one peer's per-tx bucket plus last-seen time for TTL
// eviction.
type PeerBucket struct {
	Bucket   *TokenBucket
	LastSeen float64
}

// Decision is the outcome of Admit, mirroring AdmissionDecision.
type Decision struct {
	Accept               bool
	Reason               string
	WaitSeconds          float64
	RemainingGlobalTx    float64
	RemainingGlobalBytes float64
	RemainingPeerTx      float64
}

const (
	ReasonOK       = "OK"
	ReasonRateLimited = "RateLimited"
	ReasonRacing   = "RacingLimiter"
)

// Limiter composes the global tx/s, global bytes/s, and per-peer tx/s
// buckets behind a single lock, so Admit's check-then-consume is atomic
// across all three (spec.md §4.2).
type Limiter struct {
	mu sync.Mutex

	cfg Config

	globalTx    *TokenBucket
	globalBytes *TokenBucket
	peers       *lru.Cache[string, *PeerBucket]
}

// New constructs a Limiter at the given starting clock value.
func New(cfg Config, now float64) *Limiter {
	cache, err := lru.New[string, *PeerBucket](maxInt(cfg.PeerBucketMax, 1))
	if err != nil {
		// Only returns an error for size <= 0, guarded above.
		panic(err)
	}
	return &Limiter{
		cfg:         cfg,
		globalTx:    NewTokenBucket(cfg.GlobalTxBurst, cfg.GlobalTxRatePerSec, now),
		globalBytes: NewTokenBucket(cfg.GlobalBytesBurst, cfg.GlobalBytesRatePerSec, now),
		peers:       cache,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (l *Limiter) getPeerBucket(peerID string, now float64) *PeerBucket {
	if pb, ok := l.peers.Get(peerID); ok {
		pb.LastSeen = now
		return pb
	}
	pb := &PeerBucket{
		Bucket:   NewTokenBucket(l.cfg.PerPeerTxBurst, l.cfg.PerPeerTxRatePerSec, now),
		LastSeen: now,
	}
	l.peers.Add(peerID, pb)
	return pb
}

// cleanupPeers evicts peers idle past the TTL. Size-based eviction is
// handled automatically by the LRU cache's Add.
func (l *Limiter) cleanupPeers(now float64) {
	ttl := l.cfg.PeerBucketTTLSec
	if ttl <= 0 {
		return
	}
	for _, pid := range l.peers.Keys() {
		pb, ok := l.peers.Peek(pid)
		if !ok {
			continue
		}
		if now-pb.LastSeen > ttl {
			l.peers.Remove(pid)
		}
	}
}

// Admit atomically checks and, if all buckets allow it, consumes: one tx
// from the peer bucket, one tx globally, and txBytes from the global
// bytes bucket. On denial nothing is consumed.
func (l *Limiter) Admit(peerID string, txBytes int64, now float64) Decision {
	if txBytes < 0 {
		txBytes = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupPeers(now)
	pb := l.getPeerBucket(peerID, now)

	gtxWait := l.globalTx.PeekWait(1.0, now)
	gbyWait := l.globalBytes.PeekWait(float64(txBytes), now)
	ptxWait := pb.Bucket.PeekWait(1.0, now)

	maxWait := max3(gtxWait, gbyWait, ptxWait)
	if maxWait > 0.0 {
		return Decision{
			Accept:               false,
			Reason:               ReasonRateLimited,
			WaitSeconds:          maxWait,
			RemainingGlobalTx:    l.globalTx.Remaining(now),
			RemainingGlobalBytes: l.globalBytes.Remaining(now),
			RemainingPeerTx:      pb.Bucket.Remaining(now),
		}
	}

	ok1, _ := l.globalTx.TryConsume(1.0, now)
	ok2, _ := l.globalBytes.TryConsume(float64(txBytes), now)
	ok3, _ := pb.Bucket.TryConsume(1.0, now)
	if !(ok1 && ok2 && ok3) {
		log.Warn("ratelimiter: peek/consume disagreement, denying defensively", "peer", peerID)
		return Decision{
			Accept:               false,
			Reason:               ReasonRacing,
			WaitSeconds:          0.01,
			RemainingGlobalTx:    l.globalTx.Remaining(now),
			RemainingGlobalBytes: l.globalBytes.Remaining(now),
			RemainingPeerTx:      pb.Bucket.Remaining(now),
		}
	}

	return Decision{
		Accept:               true,
		Reason:               ReasonOK,
		RemainingGlobalTx:    l.globalTx.Remaining(now),
		RemainingGlobalBytes: l.globalBytes.Remaining(now),
		RemainingPeerTx:      pb.Bucket.Remaining(now),
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// Reconfigure swaps configuration, adjusting capacities/rates of
// already-allocated buckets in place.
func (l *Limiter) Reconfigure(cfg Config, now float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cfg = cfg
	l.globalTx.Refill(now)
	l.globalTx.Capacity = cfg.GlobalTxBurst
	l.globalTx.RatePerSec = cfg.GlobalTxRatePerSec
	l.globalTx.Tokens = minF(l.globalTx.Tokens, l.globalTx.Capacity)

	l.globalBytes.Refill(now)
	l.globalBytes.Capacity = cfg.GlobalBytesBurst
	l.globalBytes.RatePerSec = cfg.GlobalBytesRatePerSec
	l.globalBytes.Tokens = minF(l.globalBytes.Tokens, l.globalBytes.Capacity)

	for _, pid := range l.peers.Keys() {
		pb, ok := l.peers.Peek(pid)
		if !ok {
			continue
		}
		pb.Bucket.Refill(now)
		pb.Bucket.Capacity = cfg.PerPeerTxBurst
		pb.Bucket.RatePerSec = cfg.PerPeerTxRatePerSec
		pb.Bucket.Tokens = minF(pb.Bucket.Tokens, pb.Bucket.Capacity)
	}
	l.cleanupPeers(now)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Snapshot is a lightweight metrics view of limiter state.
type Snapshot struct {
	GlobalTxTokens    float64
	GlobalBytesTokens float64
	PeerBuckets       int
	Config            Config
}

// Snapshot returns current bucket levels for RPC/metrics reporting.
func (l *Limiter) Snapshot(now float64) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		GlobalTxTokens:    l.globalTx.Remaining(now),
		GlobalBytesTokens: l.globalBytes.Remaining(now),
		PeerBuckets:       l.peers.Len(),
		Config:            l.cfg,
	}
}
