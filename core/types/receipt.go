package types

import (
	"encoding/binary"

	"github.com/animicaorg/animica/common"
)

// ReceiptReason is a stable, RPC-observable reason code for a receipt's
// status. Status 0 (failure) always carries a non-empty reason.
type ReceiptReason string

const (
	ReasonOK               ReceiptReason = ""
	ReasonInvalidNonce     ReceiptReason = "InvalidNonce"
	ReasonInsufficientFunds ReceiptReason = "InsufficientFunds"
	ReasonVMFailure        ReceiptReason = "VMFailure"
	ReasonSkippedConflict  ReceiptReason = "SkippedConflict"
)

// Log is a single VM-emitted event. params.Limits defines
// max_event_topics and max_event_data_bytes; the executor does not check
// logs against them.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is the per-tx execution outcome (spec.md §4.5).
type Receipt struct {
	TxHash  common.Hash
	Status  uint8 // 1 = success, 0 = failure
	Reason  ReceiptReason
	GasUsed uint64
	Logs    []Log
}

// Encode renders a receipt deterministically for ReceiptsRoot.
func (r *Receipt) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, r.TxHash[:]...)
	buf = append(buf, r.Status)
	buf = append(buf, []byte(r.Reason)...)
	var gb [8]byte
	binary.BigEndian.PutUint64(gb[:], r.GasUsed)
	buf = append(buf, gb[:]...)
	for _, lg := range r.Logs {
		buf = append(buf, lg.Address[:]...)
		for _, t := range lg.Topics {
			buf = append(buf, t[:]...)
		}
		buf = append(buf, lg.Data...)
	}
	return buf
}
