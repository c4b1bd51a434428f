// Package randomness implements the beacon's round-id arithmetic and
// phase resolution (spec.md §4.7): deterministically map wall time to
// (round_id, phase, boundaries). Grounded on
// randomness/beacon/schedule.py; all math is integer epoch-second
// arithmetic, no floats.
package randomness

import "fmt"

// Phase is one of the five states a round passes through.
type Phase string

const (
	PhaseCommit      Phase = "commit"
	PhaseReveal      Phase = "reveal"
	PhaseRevealGrace Phase = "reveal_grace"
	PhaseVDF         Phase = "vdf"
	PhaseMixReady    Phase = "mix_ready"
)

// Params are the immutable network-level round durations (seconds).
type Params struct {
	GenesisT0      int64
	CommitSec      int64
	RevealSec      int64
	RevealGraceSec int64
	VDFSec         int64
}

// PerRound returns P = C+R+G+V.
func (p Params) PerRound() int64 {
	return p.CommitSec + p.RevealSec + p.RevealGraceSec + p.VDFSec
}

// Validate checks P > 0, matching schedule.py's guard.
func (p Params) Validate() error {
	if p.PerRound() <= 0 {
		return fmt.Errorf("randomness: per-round duration must be positive")
	}
	return nil
}

// RoundSchedule is the computed set of boundaries for one round, all in
// UNIX epoch seconds, closed-open intervals.
type RoundSchedule struct {
	RoundID int64

	TCommitOpen  int64
	TCommitClose int64

	TRevealOpen  int64
	TRevealClose int64

	TRevealGraceOpen  int64
	TRevealGraceClose int64

	TVDFStart    int64
	TVDFDeadline int64

	TMixReady int64

	CommitSec      int64
	RevealSec      int64
	RevealGraceSec int64
	VDFSec         int64
}

// TotalSec is the round's total duration.
func (s RoundSchedule) TotalSec() int64 {
	return s.CommitSec + s.RevealSec + s.RevealGraceSec + s.VDFSec
}

// PhaseAt resolves which phase is active at ts.
func (s RoundSchedule) PhaseAt(ts int64) Phase {
	switch {
	case ts < s.TCommitClose:
		return PhaseCommit
	case ts < s.TRevealClose:
		return PhaseReveal
	case ts < s.TRevealGraceClose:
		return PhaseRevealGrace
	case ts < s.TVDFDeadline:
		return PhaseVDF
	default:
		return PhaseMixReady
	}
}

// roundZeroAlignedTime returns the epoch second at which roundID's
// commit phase opens.
func roundZeroAlignedTime(roundID int64, p Params) int64 {
	if roundID < 0 {
		roundID = 0
	}
	return p.GenesisT0 + roundID*p.PerRound()
}

// CurrentRoundID computes the round active at nowTS (spec.md §4.7:
// round_id(now) = max(0, ⌊(now - genesis_t0) / P⌋)).
func CurrentRoundID(nowTS int64, p Params) int64 {
	delta := nowTS - p.GenesisT0
	if delta <= 0 {
		return 0
	}
	return delta / p.PerRound()
}

// ScheduleForRound computes the full boundary set for a specific round.
func ScheduleForRound(roundID int64, p Params) RoundSchedule {
	t0 := roundZeroAlignedTime(roundID, p)

	commitOpen := t0
	commitClose := commitOpen + p.CommitSec

	revealOpen := commitClose
	revealClose := revealOpen + p.RevealSec

	graceOpen := revealClose
	graceClose := graceOpen + p.RevealGraceSec

	vdfStart := graceClose
	vdfDeadline := vdfStart + p.VDFSec

	return RoundSchedule{
		RoundID:           roundID,
		TCommitOpen:       commitOpen,
		TCommitClose:      commitClose,
		TRevealOpen:       revealOpen,
		TRevealClose:      revealClose,
		TRevealGraceOpen:  graceOpen,
		TRevealGraceClose: graceClose,
		TVDFStart:         vdfStart,
		TVDFDeadline:      vdfDeadline,
		TMixReady:         vdfDeadline,
		CommitSec:         p.CommitSec,
		RevealSec:         p.RevealSec,
		RevealGraceSec:    p.RevealGraceSec,
		VDFSec:            p.VDFSec,
	}
}

// ScheduleForTime returns the schedule of the round active at nowTS.
func ScheduleForTime(nowTS int64, p Params) RoundSchedule {
	return ScheduleForRound(CurrentRoundID(nowTS, p), p)
}

// NextEventETA returns (phase, seconds_until) measuring the distance
// from nowTS to the active schedule's next boundary.
func NextEventETA(nowTS int64, s RoundSchedule) (Phase, int64) {
	switch {
	case nowTS < s.TCommitClose:
		return PhaseCommit, s.TCommitClose - nowTS
	case nowTS < s.TRevealClose:
		return PhaseReveal, s.TRevealClose - nowTS
	case nowTS < s.TRevealGraceClose:
		return PhaseRevealGrace, s.TRevealGraceClose - nowTS
	case nowTS < s.TVDFDeadline:
		return PhaseVDF, s.TVDFDeadline - nowTS
	default:
		return PhaseMixReady, 0
	}
}

// TimeToRoundStart is the ETA from nowTS to the start of targetRoundID.
func TimeToRoundStart(targetRoundID, nowTS int64, p Params) int64 {
	t0 := roundZeroAlignedTime(targetRoundID, p)
	eta := t0 - nowTS
	if eta < 0 {
		return 0
	}
	return eta
}
