// Package mempool composes the fee market, rate limiter, sequencer, and
// notifier into the admission and block-selection pipeline described in
// spec.md §4.2-§4.4. Grounded on the overall shape of mempool/*.py plus
// core/txpool/tx_vectorfee_pool.go's pending-pool bookkeeping idiom.
package mempool

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/feemarket"
	"github.com/animicaorg/animica/core/notify"
	"github.com/animicaorg/animica/core/ratelimiter"
	"github.com/animicaorg/animica/core/sequencer"
	"github.com/animicaorg/animica/core/types"
	"github.com/animicaorg/animica/params"
)

var (
	admittedMeter = metrics.NewRegisteredMeter("mempool/admitted", nil)
	rejectedMeter = metrics.NewRegisteredMeter("mempool/rejected", nil)
)

// RejectReason explains why Admit refused a transaction.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectDuplicate     RejectReason = "Duplicate"
	RejectTooLarge      RejectReason = "TooLarge"
	RejectRateLimited   RejectReason = "RateLimited"
	RejectBelowFeeFloor RejectReason = "BelowFeeFloor"
	RejectBadFeeFields  RejectReason = "BadFeeFields"
	RejectUnderpriced   RejectReason = "Underpriced"
)

// AdmitResult is the outcome of Admit.
type AdmitResult struct {
	Accepted bool
	Reason   RejectReason
	WaitHint float64
}

// Pool is the composed mempool: fee market, rate limiter, sequencer, and
// event bus, all guarded by a single lock for admission consistency.
type Pool struct {
	mu sync.Mutex

	limits  params.Limits
	feeCfg  feemarket.Config
	feeSt   feemarket.State
	limiter *ratelimiter.Limiter
	seq     *sequencer.Sequencer
	bus     *notify.Bus

	byHash map[common.Hash]*types.Transaction

	chainNonces map[common.Address]uint64
	gasLimit    uint64
}

// New constructs an empty pool.
func New(limits params.Limits, feeCfg feemarket.Config, startFloor uint64, limCfg ratelimiter.Config, gasLimit uint64, now float64) *Pool {
	return &Pool{
		limits:      limits,
		feeCfg:      feeCfg,
		feeSt:       feemarket.NewState(startFloor),
		limiter:     ratelimiter.New(limCfg, now),
		seq:         sequencer.New(),
		bus:         notify.NewBus(),
		byHash:      make(map[common.Hash]*types.Transaction),
		chainNonces: make(map[common.Address]uint64),
		gasLimit:    gasLimit,
	}
}

// Bus exposes the pool's event bus for external subscribers (RPC/WS).
func (p *Pool) Bus() *notify.Bus { return p.bus }

// pendingGas sums GasLimit across all tracked transactions; used for
// surge-pressure sizing.
func (p *Pool) pendingGas() uint64 {
	var total uint64
	for _, tx := range p.byHash {
		total += tx.GasLimit
	}
	return total
}

// Admit validates, rate-limits, and (if accepted) enqueues tx into the
// sequencer, then publishes a pendingTx event.
func (p *Pool) Admit(peerID string, tx *types.Transaction, now float64) AdmitResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := tx.Hash()
	if _, dup := p.byHash[h]; dup {
		rejectedMeter.Mark(1)
		return AdmitResult{Reason: RejectDuplicate}
	}

	size := tx.SizeBytes()
	if size > p.limits.MaxTxSizeBytes {
		rejectedMeter.Mark(1)
		return AdmitResult{Reason: RejectTooLarge}
	}

	dec := p.limiter.Admit(peerID, int64(size), now)
	if !dec.Accept {
		rejectedMeter.Mark(1)
		return AdmitResult{Reason: RejectRateLimited, WaitHint: dec.WaitSeconds}
	}

	pressure := feemarket.Pressure{
		PendingTxs:    uint64(len(p.byHash)),
		PendingGas:    p.pendingGas(),
		BlockGasLimit: p.gasLimit,
	}
	sug := feemarket.SuggestFees(p.feeSt, pressure, p.feeCfg)
	ok, reason := feemarket.AdmissionCheck(tx, sug)
	if !ok {
		rejectedMeter.Mark(1)
		if reason == feemarket.AdmitBadFeeFields {
			return AdmitResult{Reason: RejectBadFeeFields}
		}
		return AdmitResult{Reason: RejectBelowFeeFloor}
	}

	effective, _, _, _ := tx.EffectivePrice(uint256.NewInt(sug.FloorWithSurge))
	chainNonce := p.chainNonces[tx.Sender]
	res := p.seq.Add(tx, effective.Uint64(), chainNonce, p.feeCfg.ReplacementBPS)
	if res.Rejected {
		rejectedMeter.Mark(1)
		return AdmitResult{Reason: RejectUnderpriced}
	}

	p.byHash[h] = tx
	if res.Replaced != nil {
		delete(p.byHash, res.Replaced.Hash())
		notify.NotifyReplacedTx(p.bus, res.Replaced.Hash().Hex(), h.Hex(), "higher_fee")
		log.Debug("mempool: replaced tx", "old", common.FormatHash(res.Replaced.Hash()), "new", common.FormatHash(h),
			"sender", tx.Sender.Hex(), "nonce", tx.Nonce)
	}

	admittedMeter.Mark(1)
	notify.NotifyPendingTx(p.bus, h.Hex(), tx.Sender.Hex(), tx.Nonce, effective.Uint64(), size)

	log.Debug("mempool: admitted tx", "hash", common.FormatHash(h), "sender", tx.Sender.Hex(), "nonce", tx.Nonce)
	return AdmitResult{Accepted: true}
}

// SelectForBlock drains the sequencer's currently-ready transactions,
// sorted by descending effective price at the current floor, up to
// gasLimit worth of GasLimit — the greedy packing step feeding the
// executor/scheduler (spec.md §4.3).
func (p *Pool) SelectForBlock(gasLimit uint64) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.seq.DrainReady()
	floor := uint256.NewInt(p.feeSt.EMAFloor)
	sort.Slice(candidates, func(i, j int) bool {
		ei, _, _, _ := candidates[i].EffectivePrice(floor)
		ej, _, _, _ := candidates[j].EffectivePrice(floor)
		return ei.Cmp(ej) > 0
	})

	var selected []*types.Transaction
	var used uint64
	var deferred []*types.Transaction
	for _, tx := range candidates {
		if used+tx.GasLimit > gasLimit {
			deferred = append(deferred, tx)
			continue
		}
		selected = append(selected, tx)
		used += tx.GasLimit
	}
	// DrainReady already forgot these (sender, nonce) slots, so re-Add
	// treats each deferred tx as a fresh insertion rather than a
	// self-replacement against the entry it just vacated.
	for _, tx := range deferred {
		effective, _, _, _ := tx.EffectivePrice(floor)
		p.seq.Add(tx, effective.Uint64(), p.chainNonces[tx.Sender], p.feeCfg.ReplacementBPS)
	}
	return selected
}

// OnBlockApplied advances the fee market and drops included/failed txs
// from the pool's dedup index, mirroring what core/executor reports
// after ApplyBlock.
func (p *Pool) OnBlockApplied(height, gasUsed, gasLimit uint64, observedMinAccepted *uint64, included []common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.feeSt = feemarket.UpdateOnBlock(p.feeSt, feemarket.BlockObservation{
		Height:              height,
		GasUsed:             gasUsed,
		GasLimit:            gasLimit,
		ObservedMinAccepted: observedMinAccepted,
	}, p.feeCfg)

	for _, h := range included {
		delete(p.byHash, h)
	}
}

// Get returns a tracked transaction by hash, if present.
func (p *Pool) Get(h common.Hash) (*types.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.byHash[h]
	return tx, ok
}

// Len reports how many transactions the pool is currently tracking.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// Drop removes a transaction and publishes a droppedTx event.
func (p *Pool) Drop(h common.Hash, reason string) {
	p.mu.Lock()
	_, ok := p.byHash[h]
	delete(p.byHash, h)
	p.mu.Unlock()
	if ok {
		notify.NotifyDroppedTx(p.bus, h.Hex(), reason)
	}
}

// IncludedHashSet builds a thread-safe set of tx hashes, used by reorg
// reconciliation to test membership cheaply.
func IncludedHashSet(hashes []common.Hash) mapset.Set[common.Hash] {
	return mapset.NewSet(hashes...)
}
