// Package params centralizes the tunable knobs shared across Animica's
// mempool, executor, and AICF components, mirroring the teacher's own
// params package (protocol constants consumed by many subsystems).
package params

import "fmt"

// Limits enforces the admission-time bounds from spec.md §6.
type Limits struct {
	MaxTxSizeBytes    uint64
	MaxCodeSizeBytes  uint64
	MaxLogsPerTx      int
	MaxEventTopics    int
	MaxEventDataBytes uint64
	MaxAccessListLen  int
	RefundRatioCapPPM uint64 // refund ratio cap, parts-per-million (200_000 == 0.20)
}

const ppmDenom = 1_000_000

// DefaultLimits returns the §6 defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxTxSizeBytes:    131_072,
		MaxCodeSizeBytes:  65_536,
		MaxLogsPerTx:      128,
		MaxEventTopics:    4,
		MaxEventDataBytes: 65_536,
		MaxAccessListLen:  1_024,
		RefundRatioCapPPM: 200_000,
	}
}

// Validate mirrors execution/config.py's `_validate_limits`.
func (l Limits) Validate() error {
	if l.MaxTxSizeBytes == 0 {
		return fmt.Errorf("params: max_tx_size_bytes must be > 0")
	}
	if l.MaxCodeSizeBytes == 0 {
		return fmt.Errorf("params: max_code_size_bytes must be > 0")
	}
	if l.MaxLogsPerTx < 0 {
		return fmt.Errorf("params: max_logs_per_tx must be >= 0")
	}
	if l.MaxEventTopics < 0 {
		return fmt.Errorf("params: max_event_topics must be >= 0")
	}
	if l.MaxAccessListLen < 0 {
		return fmt.Errorf("params: max_access_list_len must be >= 0")
	}
	if l.RefundRatioCapPPM > ppmDenom {
		return fmt.Errorf("params: refund_ratio_cap must be in [0,1]")
	}
	return nil
}

// RefundCap applies the refund ratio cap to a gas-used amount, rounding
// toward zero like every other arithmetic path in the executor.
func (l Limits) RefundCap(gasUsed uint64) uint64 {
	return gasUsed * l.RefundRatioCapPPM / ppmDenom
}

// FeatureFlags mirrors execution/config.py's FeatureFlags: toggles that
// change pipeline *shape* without changing the admission/apply semantics
// of an individual transaction.
type FeatureFlags struct {
	StrictVM             bool
	OptimisticScheduler  bool
	EnableVMEntry        bool
}

// DefaultFeatureFlags mirrors the original's safe-by-default env layering.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{
		StrictVM:            true,
		OptimisticScheduler: false,
		EnableVMEntry:       true,
	}
}
