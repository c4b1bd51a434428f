// Package types defines the data model shared by the mempool and executor:
// transactions, account state, blocks, and receipts (spec.md §3).
package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/animicaorg/animica/common"
)

// FeeKind distinguishes the two fee-field shapes a transaction may carry.
type FeeKind uint8

const (
	// FeeLegacy carries a single gas_price.
	FeeLegacy FeeKind = iota
	// FeeDual carries {max_fee, max_priority_fee}, 1559-style.
	FeeDual
)

// FeeFields holds exactly the fields spec.md §3 allows: legacy {gas_price}
// or dual {max_fee, max_priority_fee}.
type FeeFields struct {
	Kind              FeeKind
	GasPrice          *uint256.Int // legacy only
	MaxFeePerGas      *uint256.Int // dual only
	MaxPriorityFeePerGas *uint256.Int // dual only
}

// LegacyFee builds a legacy fee-field set.
func LegacyFee(gasPrice *uint256.Int) FeeFields {
	return FeeFields{Kind: FeeLegacy, GasPrice: gasPrice}
}

// DualFee builds a 1559-style fee-field set.
func DualFee(maxFee, maxPriority *uint256.Int) FeeFields {
	return FeeFields{Kind: FeeDual, MaxFeePerGas: maxFee, MaxPriorityFeePerGas: maxPriority}
}

// Transaction is immutable once admitted; identity is its content hash.
// A Transaction never mutates after construction — callers that need a
// replacement build a new value and let the sequencer apply replacement
// policy (core/sequencer).
type Transaction struct {
	Sender    common.Address
	To        *common.Address // nil for contract creation
	Nonce     uint64
	Value     *uint256.Int
	Data      []byte
	GasLimit  uint64
	Fee       FeeFields
	Signature []byte

	hash *common.Hash // memoized on first Hash() call
}

// Recipient returns the transaction's destination address and whether
// one is set; a contract-creation transaction has none.
func (tx *Transaction) Recipient() (common.Address, bool) {
	if tx.To == nil {
		return common.Address{}, false
	}
	return *tx.To, true
}

// ErrNoFeeFields is returned by EffectivePrice when neither fee shape is
// populated.
var ErrNoFeeFields = errors.New("types: transaction has no usable fee fields")

// Hash returns the content hash identifying this transaction. Two
// transactions with identical fields (including signature) hash
// identically; this is the mempool's dedup key.
func (tx *Transaction) Hash() common.Hash {
	if tx.hash != nil {
		return *tx.hash
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(tx.Sender[:])
	if tx.To != nil {
		h.Write(tx.To[:])
	} else {
		h.Write([]byte{0})
	}

	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], tx.Nonce)
	h.Write(nb[:])

	if tx.Value != nil {
		vb := tx.Value.Bytes32()
		h.Write(vb[:])
	}
	h.Write(tx.Data)

	var gb [8]byte
	binary.BigEndian.PutUint64(gb[:], tx.GasLimit)
	h.Write(gb[:])

	h.Write([]byte{byte(tx.Fee.Kind)})
	switch tx.Fee.Kind {
	case FeeLegacy:
		if tx.Fee.GasPrice != nil {
			b := tx.Fee.GasPrice.Bytes32()
			h.Write(b[:])
		}
	case FeeDual:
		if tx.Fee.MaxFeePerGas != nil {
			b := tx.Fee.MaxFeePerGas.Bytes32()
			h.Write(b[:])
		}
		if tx.Fee.MaxPriorityFeePerGas != nil {
			b := tx.Fee.MaxPriorityFeePerGas.Bytes32()
			h.Write(b[:])
		}
	}
	h.Write(tx.Signature)

	out := common.BytesToHash(h.Sum(nil))
	tx.hash = &out
	return out
}

// SizeBytes is the admission-time wire-size estimate used by the rate
// limiter's bytes bucket and by §6's max_tx_size_bytes check.
func (tx *Transaction) SizeBytes() uint64 {
	// Sender(20) + To(20) + Nonce(8) + Value(32) + GasLimit(8) + fee fields(<=64) + sig + data
	const fixed = 20 + 20 + 8 + 32 + 8 + 64
	return uint64(fixed+len(tx.Signature)) + uint64(len(tx.Data))
}

// EffectivePrice computes (effective, basePaid, tipPaid) per spec.md §4.1
// step 1, given the current base fee floor.
func (tx *Transaction) EffectivePrice(baseFee *uint256.Int) (effective, basePaid, tipPaid *uint256.Int, err error) {
	zero := uint256.NewInt(0)
	switch tx.Fee.Kind {
	case FeeLegacy:
		if tx.Fee.GasPrice == nil {
			return zero, zero, zero, ErrNoFeeFields
		}
		gp := tx.Fee.GasPrice
		base := uint256.NewInt(0)
		if gp.Cmp(baseFee) < 0 {
			base.Set(gp)
		} else {
			base.Set(baseFee)
		}
		tip := uint256.NewInt(0)
		if gp.Cmp(base) > 0 {
			tip.Sub(gp, base)
		}
		return gp, base, tip, nil
	case FeeDual:
		if tx.Fee.MaxFeePerGas == nil || tx.Fee.MaxPriorityFeePerGas == nil {
			return zero, zero, zero, ErrNoFeeFields
		}
		sum := new(uint256.Int).Add(baseFee, tx.Fee.MaxPriorityFeePerGas)
		effective := uint256.NewInt(0)
		if tx.Fee.MaxFeePerGas.Cmp(sum) < 0 {
			effective.Set(tx.Fee.MaxFeePerGas)
		} else {
			effective.Set(sum)
		}
		base := uint256.NewInt(0)
		if baseFee.Cmp(tx.Fee.MaxFeePerGas) < 0 {
			base.Set(baseFee)
		} else {
			base.Set(tx.Fee.MaxFeePerGas)
		}
		tip := uint256.NewInt(0)
		if effective.Cmp(base) > 0 {
			tip.Sub(effective, base)
		}
		return effective, base, tip, nil
	default:
		return zero, zero, zero, fmt.Errorf("types: unknown fee kind %d", tx.Fee.Kind)
	}
}
