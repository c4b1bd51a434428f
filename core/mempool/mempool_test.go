package mempool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/animicaorg/animica/common"
	"github.com/animicaorg/animica/core/feemarket"
	"github.com/animicaorg/animica/core/ratelimiter"
	"github.com/animicaorg/animica/core/types"
	"github.com/animicaorg/animica/params"
)

var alice = common.HexToAddress("0xAAAA000000000000000000000000000000AAAA")

func newTestPool() *Pool {
	feeCfg := feemarket.DefaultConfig()
	return New(params.DefaultLimits(), feeCfg, feeCfg.MinBaseFee, ratelimiter.DefaultConfig(), 10_000_000, 0)
}

func mkTx(sender common.Address, nonce uint64, price uint64) *types.Transaction {
	return &types.Transaction{
		Sender:   sender,
		Nonce:    nonce,
		Value:    uint256.NewInt(0),
		GasLimit: 21000,
		Fee:      types.LegacyFee(uint256.NewInt(price)),
	}
}

func TestAdmitAcceptsValidTx(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	tx := mkTx(alice, 0, cfg.MinBaseFee+cfg.MinTip)
	res := p.Admit("peer1", tx, 0)
	require.True(t, res.Accepted)
	require.Equal(t, 1, p.Len())
}

func TestAdmitRejectsDuplicate(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	tx := mkTx(alice, 0, cfg.MinBaseFee+cfg.MinTip)
	p.Admit("peer1", tx, 0)
	res := p.Admit("peer1", tx, 0)
	require.False(t, res.Accepted)
	require.Equal(t, RejectDuplicate, res.Reason)
}

func TestAdmitRejectsBelowFloor(t *testing.T) {
	p := newTestPool()
	tx := mkTx(alice, 0, 1)
	res := p.Admit("peer1", tx, 0)
	require.False(t, res.Accepted)
	require.Equal(t, RejectBelowFeeFloor, res.Reason)
}

func TestSelectForBlockRespectsGasLimit(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	for i := uint64(0); i < 5; i++ {
		tx := mkTx(alice, i, cfg.MinBaseFee+cfg.MinTip)
		p.Admit("peer1", tx, 0)
	}
	selected := p.SelectForBlock(21000 * 3)
	require.Len(t, selected, 3)
}

func TestAdmitReplacesSameNonceWhenFeeClearsBasisPoints(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	base := cfg.MinBaseFee + cfg.MinTip

	first := mkTx(alice, 0, base)
	res := p.Admit("peer1", first, 0)
	require.True(t, res.Accepted)

	second := mkTx(alice, 0, base*12/10) // +20%, clears the 10% default bar
	res2 := p.Admit("peer1", second, 0)
	require.True(t, res2.Accepted)
	require.Equal(t, 1, p.Len())

	_, stillThere := p.Get(first.Hash())
	require.False(t, stillThere)
	_, replacementThere := p.Get(second.Hash())
	require.True(t, replacementThere)
}

func TestAdmitRejectsUnderpricedReplacement(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	base := cfg.MinBaseFee + cfg.MinTip

	first := mkTx(alice, 0, base)
	res := p.Admit("peer1", first, 0)
	require.True(t, res.Accepted)

	second := mkTx(alice, 0, base*105/100) // +5%, below the 10% default bar
	res2 := p.Admit("peer1", second, 0)
	require.False(t, res2.Accepted)
	require.Equal(t, RejectUnderpriced, res2.Reason)

	_, stillThere := p.Get(first.Hash())
	require.True(t, stillThere)
	require.Equal(t, 1, p.Len())
}

type fakeChainView struct{ nonce uint64 }

func (f fakeChainView) GetNonce(addr common.Address) uint64 { return f.nonce }

func TestHandleReorgReinjectsOrphanedTx(t *testing.T) {
	p := newTestPool()
	cfg := feemarket.DefaultConfig()
	tx := mkTx(alice, 0, cfg.MinBaseFee+cfg.MinTip)

	removedBlock := &types.Block{TxList: []*types.Transaction{tx}}
	delta := ReorgDelta{Removed: []*types.Block{removedBlock}}

	stats := p.HandleReorg(fakeChainView{nonce: 0}, delta)
	require.Equal(t, 1, stats.Reinjected)
	require.Equal(t, 1, p.Len())
}
