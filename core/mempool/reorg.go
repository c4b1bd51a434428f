package mempool

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/notify"
	"github.com/animicaorg/animica/core/types"
)

// ChainView is the minimal read surface the reorg reconciler needs from
// the canonical chain: the current on-chain nonce per account.
type ChainView interface {
	GetNonce(addr common.Address) uint64
}

// ReorgDelta describes a chain-tip swap: the blocks that fell off the
// old branch and the blocks that replaced them on the new one.
type ReorgDelta struct {
	OldTip  common.Hash
	NewTip  common.Hash
	Removed []*types.Block
	Added   []*types.Block
}

// ReorgStats summarizes what HandleReorg did, spec.md §4.4/§8.
type ReorgStats struct {
	Reinjected       int
	DroppedConfirmed int
	SkippedDuplicate int
	SkippedReplaced  int
	ReinjectErrors   int
	NonceUpdates     int
	SendersTouched   int
	ElapsedMS        float64
}

type senderNonce struct {
	sender common.Address
	nonce  uint64
}

// HandleReorg reconciles the pool against a chain-tip swap, grounded on
// mempool/reorg.py's handle_reorg: re-inject orphaned txs not already
// included (or replaced) on the new branch, drop/confirm everything now
// included, and refresh chain nonces for every affected sender.
func (p *Pool) HandleReorg(chain ChainView, delta ReorgDelta) ReorgStats {
	start := time.Now()
	var stats ReorgStats

	includedHashes := mapset.NewSet[common.Hash]()
	replacements := make(map[senderNonce]common.Hash)
	for _, blk := range delta.Added {
		for _, tx := range blk.TxList {
			h := tx.Hash()
			includedHashes.Add(h)
			replacements[senderNonce{tx.Sender, tx.Nonce}] = h
		}
	}

	var reinject []*types.Transaction
	affected := make(map[common.Address]struct{})

	isReplaced := func(tx *types.Transaction) bool {
		newHash, ok := replacements[senderNonce{tx.Sender, tx.Nonce}]
		return ok && newHash != tx.Hash()
	}

	for _, blk := range delta.Removed {
		for _, tx := range blk.TxList {
			h := tx.Hash()
			if includedHashes.Contains(h) {
				stats.SkippedDuplicate++
				continue
			}
			if isReplaced(tx) {
				stats.SkippedReplaced++
				continue
			}
			reinject = append(reinject, tx)
			affected[tx.Sender] = struct{}{}
		}
	}

	for h := range includedHashes.Iter() {
		p.Drop(h, "reorg")
		stats.DroppedConfirmed++
	}

	for _, tx := range reinject {
		res := p.Admit("reorg-reinject", tx, nowFloat())
		if res.Accepted || res.Reason == RejectDuplicate {
			stats.Reinjected++
		} else {
			stats.ReinjectErrors++
			log.Warn("mempool: reorg re-inject failed", "hash", common.FormatHash(tx.Hash()), "reason", res.Reason)
		}
		affected[tx.Sender] = struct{}{}
	}

	affectedSet := make(map[common.Address]struct{}, len(affected))
	for addr := range affected {
		newNonce := chain.GetNonce(addr)
		p.seq.UpdateChainNonce(addr, newNonce)
		p.mu.Lock()
		p.chainNonces[addr] = newNonce
		p.mu.Unlock()
		affectedSet[addr] = struct{}{}
		stats.NonceUpdates++
	}
	if len(affectedSet) > 0 {
		p.seq.RecomputeReadinessForSenders(affectedSet)
		stats.SendersTouched = len(affectedSet)
	}

	stats.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000.0
	log.Info("mempool: reorg handled", "reinjected", stats.Reinjected, "dropped", stats.DroppedConfirmed,
		"dup", stats.SkippedDuplicate, "replaced", stats.SkippedReplaced, "nonce_updates", stats.NonceUpdates,
		"senders", stats.SendersTouched, "elapsed_ms", stats.ElapsedMS)
	notify.NotifyReorgSummary(p.bus, stats.Reinjected, stats.DroppedConfirmed, stats.SkippedDuplicate,
		stats.SkippedReplaced, stats.NonceUpdates, stats.SendersTouched, stats.ElapsedMS)
	return stats
}

func nowFloat() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
