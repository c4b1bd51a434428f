// Package scheduler implements the optimistic conflict-partitioned
// execution scheduler of spec.md §4.6: infer per-tx (read, write) access
// sets, greedily partition the batch into conflict-free layers that
// preserve declared order, then apply layer by layer. The result must
// be bit-identical to strict serial application (the equivalence
// theorem), which is exercised directly in scheduler_test.go.
//
// Grounded on execution/tests/test_scheduler_optimistic.py's reference
// model (_access_sets / _optimistic_layers / _optimistic_apply).
package scheduler

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/executor"
	"github.com/animicaorg/animica/core/types"
)

// key identifies one logical piece of state a tx reads or writes.
type key struct {
	kind string // "bal", "nonce", or "any" (wildcard, see accessSetsFor)
	addr common.Address
}

// accessSet is the (reads, writes) pair for one transaction.
type accessSet struct {
	reads  map[key]struct{}
	writes map[key]struct{}
}

func balKey(addr common.Address) key   { return key{"bal", addr} }
func nonceKey(addr common.Address) key { return key{"nonce", addr} }

func newSet(keys ...key) map[key]struct{} {
	m := make(map[key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// accessSetsFor derives (R, W) per spec.md §4.6: at minimum
// R ⊇ {bal(sender), nonce(sender), bal(to)} and
// W ⊇ {bal(sender), bal(to), nonce(sender)}. A transaction with no
// statically known recipient (contract creation) is conservatively
// singleton-layered: every tx reads a wildcard key and only such a
// transaction writes it, so it conflicts with every other layer member.
func accessSetsFor(tx *types.Transaction) accessSet {
	anyKey := key{kind: "any"}
	reads := []key{balKey(tx.Sender), nonceKey(tx.Sender), anyKey}
	writes := []key{balKey(tx.Sender), nonceKey(tx.Sender)}
	if to, ok := tx.Recipient(); ok {
		reads = append(reads, balKey(to))
		writes = append(writes, balKey(to))
	} else {
		writes = append(writes, anyKey)
	}
	return accessSet{reads: newSet(reads...), writes: newSet(writes...)}
}

func intersects(a, b map[key]struct{}) bool {
	small, big := a, b
	if len(small) > len(big) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}

// Layers partitions tx indices into conflict-free groups using the
// greedy algorithm from spec.md §4.6, preserving declared order within
// and across layers.
func Layers(txs []*types.Transaction) [][]int {
	type layerAgg struct {
		indices []int
		reads   map[key]struct{}
		writes  map[key]struct{}
	}
	var layers []*layerAgg

	for i, tx := range txs {
		as := accessSetsFor(tx)
		placed := false
		for _, L := range layers {
			conflict := intersects(as.writes, L.writes) ||
				intersects(as.writes, L.reads) ||
				intersects(as.reads, L.writes)
			if !conflict {
				L.indices = append(L.indices, i)
				for k := range as.reads {
					L.reads[k] = struct{}{}
				}
				for k := range as.writes {
					L.writes[k] = struct{}{}
				}
				placed = true
				break
			}
		}
		if !placed {
			layers = append(layers, &layerAgg{
				indices: []int{i},
				reads:   newSet(toSlice(as.reads)...),
				writes:  newSet(toSlice(as.writes)...),
			})
		}
	}

	out := make([][]int, len(layers))
	for i, L := range layers {
		out[i] = L.indices
	}
	return out
}

func toSlice(m map[key]struct{}) []key {
	out := make([]key, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Scheduler applies a transaction batch layer by layer against an
// executor, merging each layer's deltas into canonical state before the
// next layer begins.
type Scheduler struct {
	ex *executor.Executor
}

// New wraps an Executor for layered application.
func New(ex *executor.Executor) *Scheduler {
	return &Scheduler{ex: ex}
}

// ApplyOptimistic executes txs by conflict-free layers and returns the
// same Result shape as a single Executor.ApplyBlock, with a serial-
// equivalent state_root.
func (s *Scheduler) ApplyOptimistic(parent types.AccountState, block *types.Block) (executor.Result, [][]int) {
	layers := Layers(block.TxList)
	state := parent
	receipts := make([]*types.Receipt, len(block.TxList))
	var gasUsed uint64

	for li, layer := range layers {
		sub := &types.Block{
			Height:         block.Height,
			ParentHash:     block.ParentHash,
			Timestamp:      block.Timestamp,
			GasLimit:       block.GasLimit,
			RandomnessSeed: block.RandomnessSeed,
		}
		for _, idx := range layer {
			sub.TxList = append(sub.TxList, block.TxList[idx])
		}
		res := s.ex.ApplyBlock(state, sub)
		state = res.State
		for j, idx := range layer {
			receipts[idx] = res.Receipts[j]
		}
		gasUsed += res.GasUsed
		log.Trace("scheduler: applied layer", "layer", li, "txs", len(layer))
	}

	return executor.Result{
		State:        state,
		Receipts:     receipts,
		StateRoot:    state.StateRoot(),
		ReceiptsRoot: types.ReceiptsRoot(receipts),
		GasUsed:      gasUsed,
	}, layers
}
