package executor

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/types"
	"github.com/animicaorg/animica/params"
)

var alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
var bob = common.HexToAddress("0x2222222222222222222222222222222222222222")

func genesis() types.AccountState {
	return types.AccountState{
		alice: {Balance: uint256.NewInt(1_000_000)},
		bob:   {Balance: uint256.NewInt(0)},
	}
}

func mkTx(nonce uint64) *types.Transaction {
	return &types.Transaction{
		Sender:   alice,
		Nonce:    nonce,
		Value:    uint256.NewInt(0),
		GasLimit: 21000,
		Fee:      types.LegacyFee(uint256.NewInt(1)),
	}
}

func TestApplyBlockIsDeterministic(t *testing.T) {
	ex := New(params.DefaultLimits(), NopVM{})
	block := &types.Block{Height: 1, TxList: []*types.Transaction{mkTx(0)}}

	res1 := ex.ApplyBlock(genesis(), block)
	res2 := ex.ApplyBlock(genesis(), block)
	require.Equal(t, res1.StateRoot, res2.StateRoot)
	require.Equal(t, res1.ReceiptsRoot, res2.ReceiptsRoot)
}

func TestApplyBlockRejectsWrongNonce(t *testing.T) {
	ex := New(params.DefaultLimits(), NopVM{})
	block := &types.Block{Height: 1, TxList: []*types.Transaction{mkTx(5)}}

	res := ex.ApplyBlock(genesis(), block)
	require.Len(t, res.Receipts, 1)
	require.Equal(t, uint8(0), res.Receipts[0].Status)
	require.Equal(t, types.ReasonInvalidNonce, res.Receipts[0].Reason)
}

func TestApplyBlockDebitsGasUpfrontOnNopVM(t *testing.T) {
	ex := New(params.DefaultLimits(), NopVM{})
	block := &types.Block{Height: 1, TxList: []*types.Transaction{mkTx(0)}}

	res := ex.ApplyBlock(genesis(), block)
	require.Equal(t, types.ReasonVMFailure, res.Receipts[0].Reason)
	acc := res.State[alice]
	require.True(t, acc.Balance.Lt(uint256.NewInt(1_000_000)))
}

func TestApplyBlockRejectsInsufficientFunds(t *testing.T) {
	ex := New(params.DefaultLimits(), NopVM{})
	poor := types.AccountState{alice: {Balance: uint256.NewInt(1)}}
	tx := mkTx(0)
	tx.GasLimit = 1_000_000
	block := &types.Block{Height: 1, TxList: []*types.Transaction{tx}}

	res := ex.ApplyBlock(poor, block)
	require.Equal(t, types.ReasonInsufficientFunds, res.Receipts[0].Reason)
}
