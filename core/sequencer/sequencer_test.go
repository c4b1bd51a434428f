package sequencer

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/types"
)

var alice = common.HexToAddress("0xAAAA000000000000000000000000000000AAAA")
var bob = common.HexToAddress("0xBBBB000000000000000000000000000000BBBB")

const testReplacementBPS = 1000 // 10%, matches feemarket.DefaultConfig's default

func mkTx(sender common.Address, nonce uint64) *types.Transaction {
	return mkTxFee(sender, nonce, 1)
}

func mkTxFee(sender common.Address, nonce uint64, gasPrice int64) *types.Transaction {
	return &types.Transaction{
		Sender: sender,
		Nonce:  nonce,
		Value:  uint256.NewInt(0),
		Fee:    types.LegacyFee(uint256.NewInt(uint64(gasPrice))),
	}
}

func nonces(txs []*types.Transaction) []uint64 {
	out := make([]uint64, len(txs))
	for i, tx := range txs {
		out[i] = tx.Nonce
	}
	return out
}

func TestNonceGapThenFillTransitions(t *testing.T) {
	s := New()
	s.Add(mkTx(alice, 7), 1, 5, testReplacementBPS)
	require.Empty(t, s.DrainReady())

	s.Add(mkTx(alice, 5), 1, 5, testReplacementBPS)
	require.Contains(t, nonces(s.DrainReady()), uint64(5))

	s.Add(mkTx(alice, 6), 1, 5, testReplacementBPS)
	drained := nonces(s.DrainReady())
	require.Contains(t, drained, uint64(6))
	require.Contains(t, drained, uint64(7))
}

func TestPerSenderIndependence(t *testing.T) {
	s := New()
	s.Add(mkTx(alice, 12), 1, 10, testReplacementBPS)
	require.Empty(t, s.DrainReady())

	s.Add(mkTx(bob, 0), 1, 0, testReplacementBPS)
	ready := s.DrainReady()
	require.Len(t, ready, 1)
	require.Equal(t, bob, ready[0].Sender)
}

func TestAdvanceBaseUnblocksHeld(t *testing.T) {
	s := New()
	s.Add(mkTx(alice, 4), 1, 3, testReplacementBPS)
	s.Add(mkTx(alice, 5), 1, 3, testReplacementBPS)
	require.Empty(t, s.DrainReady())

	s.UpdateChainNonce(alice, 4)
	ready := s.DrainReady()
	require.Contains(t, nonces(ready), uint64(4))

	s.UpdateChainNonce(alice, 5)
	ready2 := s.DrainReady()
	require.Contains(t, nonces(ready2), uint64(5))
}

func TestRecomputeReadinessForSenders(t *testing.T) {
	s := New()
	s.Add(mkTx(alice, 0), 1, 0, testReplacementBPS)
	s.DrainReady()
	s.Add(mkTx(alice, 2), 1, 0, testReplacementBPS)
	require.Empty(t, s.DrainReady())

	s.UpdateChainNonce(alice, 2)
	s.RecomputeReadinessForSenders(map[common.Address]struct{}{alice: {}})
	require.Contains(t, nonces(s.DrainReady()), uint64(2))
}

func TestReplacementAcceptsWhenFeeClearsBasisPoints(t *testing.T) {
	s := New()
	res := s.Add(mkTxFee(alice, 3, 100), 100, 3, testReplacementBPS)
	require.True(t, res.Accepted)
	require.Nil(t, res.Replaced)

	res2 := s.Add(mkTxFee(alice, 3, 111), 111, 3, testReplacementBPS)
	require.True(t, res2.Accepted)
	require.NotNil(t, res2.Replaced)
	require.Equal(t, uint64(100), res2.Replaced.Fee.GasPrice.Uint64())

	ready := s.DrainReady()
	require.Len(t, ready, 1)
	require.Equal(t, uint64(111), ready[0].Fee.GasPrice.Uint64())
}

func TestReplacementRejectedWhenUnderpriced(t *testing.T) {
	s := New()
	s.Add(mkTxFee(alice, 3, 100), 100, 3, testReplacementBPS)

	res := s.Add(mkTxFee(alice, 3, 105), 105, 3, testReplacementBPS)
	require.False(t, res.Accepted)
	require.True(t, res.Rejected)
	require.Equal(t, "Underpriced", res.Reason)

	ready := s.DrainReady()
	require.Len(t, ready, 1)
	require.Equal(t, uint64(100), ready[0].Fee.GasPrice.Uint64())
}

func TestIdempotentResubmissionAccepted(t *testing.T) {
	s := New()
	tx := mkTxFee(alice, 3, 100)
	res := s.Add(tx, 100, 3, testReplacementBPS)
	require.True(t, res.Accepted)

	res2 := s.Add(tx, 100, 3, testReplacementBPS)
	require.True(t, res2.Accepted)
	require.Nil(t, res2.Replaced)

	ready := s.DrainReady()
	require.Len(t, ready, 1)
}

func TestReplacementAfterPromotionUpdatesReadyEntry(t *testing.T) {
	s := New()
	s.Add(mkTxFee(alice, 0, 100), 100, 0, testReplacementBPS)
	require.Equal(t, 1, s.ReadyLen())

	res := s.Add(mkTxFee(alice, 0, 111), 111, 0, testReplacementBPS)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Replaced)
	require.Equal(t, 1, s.ReadyLen())

	ready := s.DrainReady()
	require.Len(t, ready, 1)
	require.Equal(t, uint64(111), ready[0].Fee.GasPrice.Uint64())
}
