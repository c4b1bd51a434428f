// Package sequencer tracks per-sender nonce ordering for the mempool:
// a transaction is "held" until every lower nonce from that sender is
// present, at which point it (and any now-contiguous follow-ons) become
// "ready" for block selection. It also enforces spec.md §4.3's
// replacement policy for same-(sender,nonce) resubmission. Grounded on
// mempool/tests/test_admission_and_sequence.py's behavioral contract;
// there is no original_source/mempool/sequence.py, so the heap-per-sender
// shape follows the contiguous-nonce semantics that test exercises.
package sequencer

import (
	"container/heap"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/types"
)

// heldEntry wraps one tracked transaction with the effective fee it was
// admitted at (needed to judge a later same-nonce replacement) and
// whether it currently lives in the held heap or the ready queue.
type heldEntry struct {
	tx       *types.Transaction
	fee      uint64
	promoted bool
	index    int // heap index, maintained by nonceHeap.Swap; unused once promoted
}

// nonceHeap is a min-heap of held entries for one sender, ordered by nonce.
type nonceHeap []*heldEntry

func (h nonceHeap) Len() int           { return len(h) }
func (h nonceHeap) Less(i, j int) bool { return h[i].tx.Nonce < h[j].tx.Nonce }
func (h nonceHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *nonceHeap) Push(x interface{}) {
	e := x.(*heldEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *nonceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

type senderQueue struct {
	held     nonceHeap
	expected uint64 // next nonce that would be ready
	byNonce  map[uint64]*heldEntry
}

// Sequencer partitions admitted transactions into held/ready per sender,
// and exposes a single global ready FIFO for block selection.
type Sequencer struct {
	mu      sync.Mutex
	senders map[common.Address]*senderQueue
	ready   []*heldEntry
}

// New constructs an empty sequencer.
func New() *Sequencer {
	return &Sequencer{senders: make(map[common.Address]*senderQueue)}
}

func (s *Sequencer) getOrInit(addr common.Address, chainNonce uint64) *senderQueue {
	sq, ok := s.senders[addr]
	if !ok {
		sq = &senderQueue{expected: chainNonce, byNonce: make(map[uint64]*heldEntry)}
		s.senders[addr] = sq
	}
	return sq
}

// AddResult reports the outcome of Add, spec.md §4.3's add(tx) operation.
type AddResult struct {
	Accepted bool
	// Replaced is the transaction tx displaced, or nil if none was.
	Replaced *types.Transaction
	Rejected bool
	// Reason is set when Rejected; currently always "Underpriced".
	Reason string
}

// replacementClears reports whether newFee exceeds oldFee by at least
// bps basis points: newFee*10000 >= oldFee*(10000+bps), computed in
// uint256 so the basis-point scaling can never overflow a uint64.
func replacementClears(oldFee, newFee, bps uint64) bool {
	if newFee <= oldFee {
		return false
	}
	lhs := new(uint256.Int).Mul(uint256.NewInt(newFee), uint256.NewInt(10000))
	rhs := new(uint256.Int).Mul(uint256.NewInt(oldFee), uint256.NewInt(10000+bps))
	return lhs.Cmp(rhs) >= 0
}

// Add inserts tx into its sender's held heap, then promotes any newly
// contiguous prefix into the ready queue. chainNonce is the sender's
// current on-chain nonce, used only the first time this sender is seen.
//
// If a prior transaction already occupies tx's (sender, nonce) slot,
// Add applies spec.md §4.3's replacement policy: an identical
// resubmission (same hash) is accepted as a no-op; otherwise the new
// effective fee must clear the old one by at least replacementBPS basis
// points or the call is rejected as Underpriced.
func (s *Sequencer) Add(tx *types.Transaction, effectiveFee, chainNonce, replacementBPS uint64) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq := s.getOrInit(tx.Sender, chainNonce)

	if existing, ok := sq.byNonce[tx.Nonce]; ok {
		if existing.tx.Hash() == tx.Hash() {
			return AddResult{Accepted: true}
		}
		if !replacementClears(existing.fee, effectiveFee, replacementBPS) {
			return AddResult{Rejected: true, Reason: "Underpriced"}
		}
		old := existing.tx
		oldFee := existing.fee
		existing.tx = tx
		existing.fee = effectiveFee
		log.Debug("sequencer: replaced held tx", "sender", tx.Sender, "nonce", tx.Nonce,
			"old_fee", oldFee, "new_fee", effectiveFee)
		return AddResult{Accepted: true, Replaced: old}
	}

	entry := &heldEntry{tx: tx, fee: effectiveFee}
	heap.Push(&sq.held, entry)
	sq.byNonce[tx.Nonce] = entry
	s.promote(tx.Sender, sq)
	return AddResult{Accepted: true}
}

// promote pops every contiguous nonce starting at sq.expected into the
// global ready queue.
func (s *Sequencer) promote(addr common.Address, sq *senderQueue) {
	for sq.held.Len() > 0 && sq.held[0].tx.Nonce == sq.expected {
		next := heap.Pop(&sq.held).(*heldEntry)
		next.promoted = true
		s.ready = append(s.ready, next)
		sq.expected++
	}
	log.Trace("sequencer: promoted held txs", "sender", addr, "expected", sq.expected, "held", sq.held.Len())
}

// forgetEntry drops e's (sender, nonce) bookkeeping once it leaves the
// ready queue for good (popped or drained for block selection), so a
// later re-Add of the same tx (e.g. SelectForBlock deferring it back in)
// is treated as a fresh insertion rather than a self-replacement.
func (s *Sequencer) forgetEntry(e *heldEntry) {
	if sq, ok := s.senders[e.tx.Sender]; ok {
		delete(sq.byNonce, e.tx.Nonce)
	}
}

// UpdateChainNonce advances the base nonce for addr (e.g. after a block
// lands or a reorg rewinds), unblocking any held transactions that are
// now contiguous with the new base. newNonce must be >= the sequencer's
// current expectation or it is ignored (nonces never move backward here
// — a reorg rewind goes through ResetChainNonce instead).
func (s *Sequencer) UpdateChainNonce(addr common.Address, newNonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq := s.getOrInit(addr, newNonce)
	if newNonce > sq.expected {
		sq.expected = newNonce
		// Drop any held txs now strictly below the new base — they were
		// already included.
		filtered := sq.held[:0]
		for _, e := range sq.held {
			if e.tx.Nonce >= newNonce {
				filtered = append(filtered, e)
			} else {
				delete(sq.byNonce, e.tx.Nonce)
			}
		}
		sq.held = filtered
		heap.Init(&sq.held)
	}
	s.promote(addr, sq)
}

// ResetChainNonce forcibly sets the base nonce for addr, for reorg
// rewinds where the chain nonce can move backward.
func (s *Sequencer) ResetChainNonce(addr common.Address, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq := s.getOrInit(addr, nonce)
	sq.expected = nonce
	s.promote(addr, sq)
}

// RecomputeReadinessForSenders re-promotes held transactions for a batch
// of senders, used after a reorg's nonce refresh touches many accounts
// at once (mempool/reorg.py step 5).
func (s *Sequencer) RecomputeReadinessForSenders(addrs map[common.Address]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr := range addrs {
		if sq, ok := s.senders[addr]; ok {
			s.promote(addr, sq)
		}
	}
}

// PopReady removes and returns the next ready transaction in promotion
// order, or nil if none are ready.
func (s *Sequencer) PopReady() *types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil
	}
	e := s.ready[0]
	s.ready = s.ready[1:]
	s.forgetEntry(e)
	return e.tx
}

// DrainReady removes and returns all currently ready transactions.
func (s *Sequencer) DrainReady() []*types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Transaction, len(s.ready))
	for i, e := range s.ready {
		out[i] = e.tx
		s.forgetEntry(e)
	}
	s.ready = nil
	return out
}

// ReadyLen reports how many transactions are currently ready without
// draining them.
func (s *Sequencer) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

// HeldLen reports how many transactions are held for addr.
func (s *Sequencer) HeldLen(addr common.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sq, ok := s.senders[addr]; ok {
		return sq.held.Len()
	}
	return 0
}

// RemoveSender drops all state tracked for addr, used when a sender's
// entire backlog is evicted (e.g. ban, ttl sweep).
func (s *Sequencer) RemoveSender(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.senders, addr)
	kept := s.ready[:0]
	for _, e := range s.ready {
		if e.tx.Sender != addr {
			kept = append(kept, e)
		}
	}
	s.ready = kept
}
