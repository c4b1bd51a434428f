package types

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/animicaorg/animica/common"
)

// Block is the spec.md §3 block tuple. Block-hash binds the full tuple,
// including the post-state root and receipts root, so a block hash
// commits to its own execution result.
type Block struct {
	Height          uint64
	ParentHash      common.Hash
	Timestamp       uint64
	GasLimit        uint64
	TxList          []*Transaction
	StateRootAfter  common.Hash
	ReceiptsRoot    common.Hash
	RandomnessSeed  common.Hash

	hash *common.Hash
}

// Hash returns the block's content hash, memoized after first call.
func (b *Block) Hash() common.Hash {
	if b.hash != nil {
		return *b.hash
	}
	h := sha3.NewLegacyKeccak256()

	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], b.Height)
	h.Write(u64[:])
	h.Write(b.ParentHash[:])
	binary.BigEndian.PutUint64(u64[:], b.Timestamp)
	h.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], b.GasLimit)
	h.Write(u64[:])
	for _, tx := range b.TxList {
		txh := tx.Hash()
		h.Write(txh[:])
	}
	h.Write(b.StateRootAfter[:])
	h.Write(b.ReceiptsRoot[:])
	h.Write(b.RandomnessSeed[:])

	out := common.BytesToHash(h.Sum(nil))
	b.hash = &out
	return out
}

// GasUsed sums receipt gas across the block; callers normally already
// have this from applying the block, this helper is for re-derivation
// from a receipt list alone (e.g. in tests).
func GasUsed(receipts []*Receipt) uint64 {
	var total uint64
	for _, r := range receipts {
		total += r.GasUsed
	}
	return total
}

// ReceiptsRoot computes H over receipts in block order (spec.md §4.5
// step 4). Order matters — unlike the account state root, receipts are
// NOT sorted, they follow tx inclusion order.
func ReceiptsRoot(receipts []*Receipt) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, r := range receipts {
		h.Write(r.Encode())
	}
	return common.BytesToHash(h.Sum(nil))
}
