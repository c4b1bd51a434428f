package types

import (
	"hash"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/animicaorg/animica/common"
)

// Account is the mapping target for spec.md §3's account state: balance,
// nonce, storage root, code hash. Nonce is monotonically non-decreasing
// on the canonical chain — the executor is the only writer that ever
// advances it.
type Account struct {
	Balance     *uint256.Int
	Nonce       uint64
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// Encode renders an account using the canonical minimal big-endian
// encoding from spec.md §6, used both for state-root commitment and for
// any persistence adapter that needs a deterministic byte layout.
func (a *Account) Encode() []byte {
	var buf []byte
	if a.Balance != nil {
		bb := a.Balance.Bytes()
		buf = append(buf, stripLeadingZeros(bb)...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, common.MinimalBigEndian(a.Nonce)...)
	buf = append(buf, a.StorageRoot[:]...)
	buf = append(buf, a.CodeHash[:]...)
	return buf
}

func stripLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	if len(b) == 0 {
		return []byte{0}
	}
	return b[i:]
}

// AccountState is the sorted-by-address view committed by the executor.
// The configured hash function H from spec.md §6 is injected as a
// constructor through StateRootWith; the VM/persistence layer is an external collaborator, but the commitment
// function itself is pure and lives here.
type AccountState map[common.Address]*Account

// StateRoot computes H(sorted(address || encoded_account)) as specified
// in §6. The default hash is Keccak-256 via golang.org/x/crypto/sha3,
// matching the rest of the go-ethereum-derived ecosystem; callers that
// need a different configured hash can use StateRootWith.
func (s AccountState) StateRoot() common.Hash {
	return s.StateRootWith(sha3.NewLegacyKeccak256)
}

// StateRootWith computes the state root using an injected hash
// constructor, so nodes can swap H without touching commitment logic.
func (s AccountState) StateRootWith(newHash func() hash.Hash) common.Hash {
	addrs := make([]common.Address, 0, len(s))
	for a := range s {
		addrs = append(addrs, a)
	}
	addrs = common.SortAddresses(addrs)

	h := newHash()
	for _, addr := range addrs {
		h.Write(addr[:])
		h.Write(s[addr].Encode())
	}
	return common.BytesToHash(h.Sum(nil))
}
