// Package aicf implements the off-chain compute-market coordination
// layer: provider registry and heartbeats, job lifecycle, attestation
// canonicalization, and the slashing/clawback engine (spec.md §4.8-4.9).
package aicf

// BPSDenominator is the basis-points denominator (100.00%), matching
// slashing_rules.py's BPS_DEN.
const BPSDenominator = 10_000

// ClawbackRule is the per-reason-code policy: immediate slash and
// scheduled clawback ratios, both in basis points, plus optional
// absolute caps. Grounded on aicf/economics/slashing_rules.py's
// ClawbackRule dataclass.
type ClawbackRule struct {
	ImmediateBPS    int64
	ClawbackBPS     int64
	ScheduleEpochs  int64
	MaxImmediateAbs *int64 // nil = uncapped
	MaxClawbackAbs  *int64 // nil = uncapped
}

// RuleTable maps a reason code to its ClawbackRule. "__default__" is
// mandatory and used when a reason code is unrecognized.
type RuleTable map[string]ClawbackRule

// DefaultRuleTable is the conservative baseline policy, transliterated
// from slashing_rules.py's default_rule_table().
func DefaultRuleTable() RuleTable {
	return RuleTable{
		"fraud_proof": {
			ImmediateBPS:   10_000,
			ClawbackBPS:    10_000,
			ScheduleEpochs: 4,
		},
		"invalid_attestation": {
			ImmediateBPS:   5_000,
			ClawbackBPS:    5_000,
			ScheduleEpochs: 3,
		},
		"unavailable": {
			ImmediateBPS:   500,
			ClawbackBPS:    2_000,
			ScheduleEpochs: 2,
		},
		"deadline_miss": {
			ImmediateBPS:   0,
			ClawbackBPS:    3_000,
			ScheduleEpochs: 1,
		},
		"double_submit": {
			ImmediateBPS:   1_000,
			ClawbackBPS:    1_000,
			ScheduleEpochs: 2,
		},
		"__default__": {
			ImmediateBPS:   0,
			ClawbackBPS:    500,
			ScheduleEpochs: 1,
		},
	}
}

// ClawbackTranche is one scheduled future-epoch deduction.
type ClawbackTranche struct {
	EpochIdx int64
	Amount   int64
}

// SlashPlan is the full computed outcome of one slashing decision.
type SlashPlan struct {
	ReasonCode      string
	SeverityBPS     int64
	ImmediateSlash  int64
	ClawbackTotal   int64
	Schedule        []ClawbackTranche
}

func clampBPS(bps int64) int64 {
	if bps < 0 {
		return 0
	}
	if bps > BPSDenominator {
		return BPSDenominator
	}
	return bps
}

// SeverityToBPS converts a float severity in [0,1] to basis points,
// matching slashing_rules.py's _to_bps float path (round-half-up).
func SeverityToBPS(severity float64) int64 {
	if severity <= 0.0 {
		return 0
	}
	if severity >= 1.0 {
		return BPSDenominator
	}
	return int64(severity*BPSDenominator + 0.5)
}

func mulClip(amount, bps, severityBPS int64) int64 {
	if amount <= 0 || bps <= 0 || severityBPS <= 0 {
		return 0
	}
	num := amount * bps
	num = num * severityBPS
	den := int64(BPSDenominator) * int64(BPSDenominator)
	return num / den
}

func clipCap(value int64, cap *int64) int64 {
	if cap == nil {
		return value
	}
	c := *cap
	if c < 0 {
		c = 0
	}
	if value > c {
		return c
	}
	return value
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func evenSchedule(total, startEpoch, epochs int64) []ClawbackTranche {
	if total <= 0 || epochs <= 0 {
		return nil
	}
	base := total / epochs
	rem := total - base*epochs
	out := make([]ClawbackTranche, 0, epochs)
	for i := int64(0); i < epochs; i++ {
		amt := base
		if i == 0 {
			amt += rem
		}
		out = append(out, ClawbackTranche{EpochIdx: startEpoch + i + 1, Amount: amt})
	}
	return out
}

// SlashInput bundles the arguments to ComputeSlashPlan.
type SlashInput struct {
	ReasonCode      string
	Severity        float64 // [0,1]; use SeverityBPS instead for a pre-computed bps value
	SeverityBPS     *int64  // if set, takes precedence over Severity
	StakeBalance    int64
	RecentEarnings  int64
	EpochIdx        int64
	Rules           RuleTable // nil = DefaultRuleTable()
	MaxImmediateAbs *int64
	MaxClawbackAbs  *int64
}

// ComputeSlashPlan computes a deterministic SlashPlan per spec.md §4.9.
// All arithmetic is integer; no IO.
func ComputeSlashPlan(in SlashInput) SlashPlan {
	rules := in.Rules
	if rules == nil {
		rules = DefaultRuleTable()
	}
	rule, ok := rules[in.ReasonCode]
	if !ok {
		rule, ok = rules["__default__"]
		if !ok {
			rule = ClawbackRule{ImmediateBPS: 0, ClawbackBPS: 500, ScheduleEpochs: 1}
		}
	}

	var severityBPS int64
	if in.SeverityBPS != nil {
		severityBPS = clampBPS(*in.SeverityBPS)
	} else {
		severityBPS = SeverityToBPS(in.Severity)
	}

	immediate := mulClip(in.StakeBalance, rule.ImmediateBPS, severityBPS)
	immediate = min64(immediate, in.StakeBalance)
	immediate = clipCap(immediate, rule.MaxImmediateAbs)
	immediate = clipCap(immediate, in.MaxImmediateAbs)

	clawback := mulClip(in.RecentEarnings, rule.ClawbackBPS, severityBPS)
	clawback = min64(clawback, in.RecentEarnings)
	clawback = clipCap(clawback, rule.MaxClawbackAbs)
	clawback = clipCap(clawback, in.MaxClawbackAbs)

	epochs := rule.ScheduleEpochs
	if epochs < 1 {
		epochs = 1
	}
	schedule := evenSchedule(clawback, in.EpochIdx, epochs)

	return SlashPlan{
		ReasonCode:     in.ReasonCode,
		SeverityBPS:    severityBPS,
		ImmediateSlash: immediate,
		ClawbackTotal:  clawback,
		Schedule:       schedule,
	}
}

// SLAMetrics is the input to SeverityFromSLA: whichever fields are
// non-nil participate in the first-match evaluation.
type SLAMetrics struct {
	TrapsRatio    *float64
	QoSScore      *float64
	LatencyP99MS  *int64
	Availability  *float64
	SLOLatencyMS  int64 // default 2000 if zero
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SeverityFromSLA maps SLA metrics to (reason_code, severity) using the
// frozen first-match ordering spec.md §4.9 calls out explicitly: this
// order must not be reshuffled even though it changes outcomes when
// multiple metrics breach simultaneously.
func SeverityFromSLA(m SLAMetrics) (reasonCode string, severity float64) {
	slo := m.SLOLatencyMS
	if slo == 0 {
		slo = 2000
	}

	if m.TrapsRatio != nil && *m.TrapsRatio < 0.98 {
		return "invalid_attestation", clamp01(1.0 - *m.TrapsRatio)
	}
	if m.QoSScore != nil && *m.QoSScore < 0.80 {
		return "deadline_miss", clamp01(0.80 - *m.QoSScore)
	}
	if m.LatencyP99MS != nil && *m.LatencyP99MS > slo {
		over := float64(*m.LatencyP99MS)/float64(slo) - 1.0
		return "deadline_miss", clamp01(over)
	}
	if m.Availability != nil && *m.Availability < 0.95 {
		return "unavailable", clamp01(0.95 - *m.Availability)
	}
	return "__default__", 0.0
}
