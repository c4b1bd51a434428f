// Package common defines the address/hash primitives shared by every
// Animica package. It deliberately reuses go-ethereum's fixed-size array
// types rather than reinventing 20/32-byte value types.
package common

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account identifier. Accounts are addressed by
// bech32m payloads at the RPC/wire boundary, which lies outside this
// module; internally every component operates on this fixed-size value.
type Address = ethcommon.Address

// Hash is a 32-byte content hash (tx identity, block hash, job id, ...).
type Hash = ethcommon.Hash

// BytesToHash and BytesToAddress are re-exported for callers that only
// import this package.
var (
	BytesToHash    = ethcommon.BytesToHash
	BytesToAddress = ethcommon.BytesToAddress
	HexToAddress   = ethcommon.HexToAddress
	HexToHash      = ethcommon.HexToHash
	IsHexAddress   = ethcommon.IsHexAddress
)

// SortAddresses returns a new, ascending-sorted copy of addrs. State-root
// commitment and access-set merges both require a canonical iteration
// order; this is the single place that order is defined.
func SortAddresses(addrs []Address) []Address {
	out := make([]Address, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// MinimalBigEndian encodes a non-negative integer as big-endian bytes with
// leading zero bytes stripped; zero encodes as a single zero byte. This is
// the canonical account-balance/nonce encoding used by the state-root
// commitment (§6 of the spec: "deterministic big-endian integers with
// minimal encoding").
func MinimalBigEndian(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// FormatHash renders a hash for log lines, truncated the way geth-family
// loggers render hashes (first 8 hex chars) to keep log lines scannable.
func FormatHash(h Hash) string {
	s := hex.EncodeToString(h[:])
	if len(s) <= 8 {
		return "0x" + s
	}
	return fmt.Sprintf("0x%s…", s[:8])
}
