package randomness

import "testing"

func testParams() Params {
	return Params{
		GenesisT0:      1_700_000_000,
		CommitSec:      30,
		RevealSec:      20,
		RevealGraceSec: 5,
		VDFSec:         10,
	}
}

func TestCurrentRoundIDAtGenesisIsZero(t *testing.T) {
	p := testParams()
	if got := CurrentRoundID(p.GenesisT0, p); got != 0 {
		t.Fatalf("round at genesis = %d, want 0", got)
	}
	if got := CurrentRoundID(p.GenesisT0-100, p); got != 0 {
		t.Fatalf("round before genesis = %d, want 0", got)
	}
}

func TestCurrentRoundIDFloorDivision(t *testing.T) {
	p := testParams()
	per := p.PerRound() // 65
	if got := CurrentRoundID(p.GenesisT0+per+1, p); got != 1 {
		t.Fatalf("round = %d, want 1", got)
	}
	if got := CurrentRoundID(p.GenesisT0+2*per-1, p); got != 1 {
		t.Fatalf("round = %d, want 1", got)
	}
	if got := CurrentRoundID(p.GenesisT0+2*per, p); got != 2 {
		t.Fatalf("round = %d, want 2", got)
	}
}

func TestScheduleForRoundBoundariesAreContiguous(t *testing.T) {
	p := testParams()
	s := ScheduleForRound(3, p)

	if s.TCommitClose != s.TRevealOpen {
		t.Fatalf("commit close %d != reveal open %d", s.TCommitClose, s.TRevealOpen)
	}
	if s.TRevealClose != s.TRevealGraceOpen {
		t.Fatalf("reveal close %d != grace open %d", s.TRevealClose, s.TRevealGraceOpen)
	}
	if s.TRevealGraceClose != s.TVDFStart {
		t.Fatalf("grace close %d != vdf start %d", s.TRevealGraceClose, s.TVDFStart)
	}
	if s.TVDFDeadline != s.TMixReady {
		t.Fatalf("vdf deadline %d != mix ready %d", s.TVDFDeadline, s.TMixReady)
	}
	if s.TotalSec() != p.PerRound() {
		t.Fatalf("total sec %d != per round %d", s.TotalSec(), p.PerRound())
	}
}

func TestMixReadyEqualsNextRoundCommitOpen(t *testing.T) {
	p := testParams()
	for r := int64(0); r < 5; r++ {
		cur := ScheduleForRound(r, p)
		next := ScheduleForRound(r+1, p)
		if cur.TMixReady != next.TCommitOpen {
			t.Fatalf("round %d: mix_ready %d != next commit_open %d", r, cur.TMixReady, next.TCommitOpen)
		}
	}
}

func TestPhaseAtExactBoundaries(t *testing.T) {
	p := testParams()
	s := ScheduleForRound(0, p)

	cases := []struct {
		ts   int64
		want Phase
	}{
		{s.TCommitOpen, PhaseCommit},
		{s.TCommitClose - 1, PhaseCommit},
		{s.TCommitClose, PhaseReveal},
		{s.TRevealClose - 1, PhaseReveal},
		{s.TRevealClose, PhaseRevealGrace},
		{s.TRevealGraceClose - 1, PhaseRevealGrace},
		{s.TRevealGraceClose, PhaseVDF},
		{s.TVDFDeadline - 1, PhaseVDF},
		{s.TVDFDeadline, PhaseMixReady},
		{s.TVDFDeadline + 1000, PhaseMixReady},
	}
	for _, c := range cases {
		if got := s.PhaseAt(c.ts); got != c.want {
			t.Fatalf("PhaseAt(%d) = %q, want %q", c.ts, got, c.want)
		}
	}
}

func TestScheduleForTimeMatchesCurrentRoundID(t *testing.T) {
	p := testParams()
	now := p.GenesisT0 + 3*p.PerRound() + 12
	s := ScheduleForTime(now, p)
	if s.RoundID != CurrentRoundID(now, p) {
		t.Fatalf("schedule round %d != current round %d", s.RoundID, CurrentRoundID(now, p))
	}
	if s.RoundID != 3 {
		t.Fatalf("round = %d, want 3", s.RoundID)
	}
}

func TestNextEventETA(t *testing.T) {
	p := testParams()
	s := ScheduleForRound(0, p)

	ph, eta := NextEventETA(s.TCommitOpen+5, s)
	if ph != PhaseCommit || eta != p.CommitSec-5 {
		t.Fatalf("got (%q, %d), want (%q, %d)", ph, eta, PhaseCommit, p.CommitSec-5)
	}

	ph, eta = NextEventETA(s.TVDFDeadline, s)
	if ph != PhaseMixReady || eta != 0 {
		t.Fatalf("got (%q, %d), want (%q, 0)", ph, eta, PhaseMixReady)
	}
}

func TestTimeToRoundStart(t *testing.T) {
	p := testParams()
	target := ScheduleForRound(5, p).TCommitOpen

	if got := TimeToRoundStart(5, target-100, p); got != 100 {
		t.Fatalf("eta = %d, want 100", got)
	}
	if got := TimeToRoundStart(5, target, p); got != 0 {
		t.Fatalf("eta = %d, want 0", got)
	}
	if got := TimeToRoundStart(5, target+10, p); got != 0 {
		t.Fatalf("eta = %d, want 0 (clamped)", got)
	}
}
