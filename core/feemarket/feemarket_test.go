package feemarket

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/animicaorg/animica/core/types"
)

func TestUpdateOnBlockClampsPerBlockChange(t *testing.T) {
	cfg := DefaultConfig()
	s := NewState(cfg.MinBaseFee * 10)

	// A fully-congested block with a wildly high observed price should
	// still only move the floor by ChangeLimit in one step.
	hi := cfg.MaxBaseFee
	obs := BlockObservation{Height: 1, GasUsed: 1_000_000, GasLimit: 1_000_000, ObservedP50Fee: &hi}
	next := UpdateOnBlock(s, obs, cfg)

	maxAllowed := uint64(float64(s.EMAFloor) * (1.0 + cfg.ChangeLimit))
	require.LessOrEqual(t, next.EMAFloor, maxAllowed)
	require.Greater(t, next.EMAFloor, s.EMAFloor)
}

func TestUpdateOnBlockRespectsAbsoluteBounds(t *testing.T) {
	cfg := DefaultConfig()
	s := NewState(cfg.MinBaseFee)

	low := uint64(0)
	obs := BlockObservation{Height: 1, GasUsed: 0, GasLimit: 1_000_000, ObservedP50Fee: &low}
	for i := 0; i < 50; i++ {
		s = UpdateOnBlock(s, obs, cfg)
	}
	require.GreaterOrEqual(t, s.EMAFloor, cfg.MinBaseFee)
}

func TestSurgeMultiplierScalesWithPendingGas(t *testing.T) {
	cfg := DefaultConfig()
	idle := Pressure{PendingGas: 0, BlockGasLimit: 1_000_000}
	busy := Pressure{PendingGas: 10_000_000, BlockGasLimit: 1_000_000}

	require.Equal(t, 1.0, SurgeMultiplier(idle, cfg))
	require.Greater(t, SurgeMultiplier(busy, cfg), 1.0)
	require.LessOrEqual(t, SurgeMultiplier(busy, cfg), cfg.SurgeCap)
}

func TestAdmissionCheckRejectsBelowFloor(t *testing.T) {
	cfg := DefaultConfig()
	s := NewState(100 * cfg.MinBaseFee)
	p := Pressure{BlockGasLimit: 1_000_000}
	sug := SuggestFees(s, p, cfg)

	tx := &types.Transaction{
		Fee: types.LegacyFee(uint256.NewInt(1)),
	}
	ok, reason := AdmissionCheck(tx, sug)
	require.False(t, ok)
	require.Equal(t, AdmitBelowFloor, reason)
}

func TestAdmissionCheckRejectsBelowFloorInShortfallBand(t *testing.T) {
	// A tx priced anywhere in [floor, floor+min_tip) must be reported as
	// BelowFloor, not BelowMinTip — the reason code is observable
	// (spec.md §7) and this exact band is the one the naive
	// `effective < floor` check used to mis-tag.
	cfg := DefaultConfig()
	s := NewState(cfg.MinBaseFee)
	p := Pressure{BlockGasLimit: 1_000_000}
	sug := SuggestFees(s, p, cfg)

	tx := &types.Transaction{Fee: types.LegacyFee(uint256.NewInt(sug.FloorWithSurge))}
	ok, reason := AdmissionCheck(tx, sug)
	require.False(t, ok)
	require.Equal(t, AdmitBelowFloor, reason)
}

func TestAdmissionCheckAcceptsAtOrAboveFloor(t *testing.T) {
	cfg := DefaultConfig()
	s := NewState(cfg.MinBaseFee)
	p := Pressure{BlockGasLimit: 1_000_000}
	sug := SuggestFees(s, p, cfg)

	price := new(uint256.Int).Add(uint256.NewInt(sug.FloorWithSurge), uint256.NewInt(sug.RecommendedTip))
	tx := &types.Transaction{Fee: types.LegacyFee(price)}
	ok, reason := AdmissionCheck(tx, sug)
	require.True(t, ok)
	require.Equal(t, AdmitOK, reason)
}
