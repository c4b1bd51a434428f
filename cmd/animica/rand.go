package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/animicaorg/animica/randomness"
)

var roundFlag = &cli.Int64Flag{
	Name:  "round",
	Usage: "inspect this round id instead of the current one",
	Value: -1,
}

var nowFlag = &cli.Int64Flag{
	Name:  "now",
	Usage: "unix seconds to evaluate the phase and next-event ETA against; also selects the round when --round is not set",
	Value: 0,
}

var randCommand = &cli.Command{
	Name:  "rand",
	Usage: "randomness-beacon schedule inspection",
	Subcommands: []*cli.Command{
		{
			Name:  "inspect-round",
			Usage: "print the commit/reveal/reveal_grace/vdf/mix_ready boundaries for a round",
			Flags: []cli.Flag{roundFlag, nowFlag},
			Action: runRandInspectRound,
		},
	},
}

func runRandInspectRound(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	params := cfg.Randomness

	var schedule randomness.RoundSchedule
	if ctx.IsSet(roundFlag.Name) {
		schedule = randomness.ScheduleForRound(ctx.Int64(roundFlag.Name), params)
	} else {
		now := ctx.Int64(nowFlag.Name)
		schedule = randomness.ScheduleForTime(now, params)
	}

	now := ctx.Int64(nowFlag.Name)
	phase := schedule.PhaseAt(now)
	nextPhase, eta := randomness.NextEventETA(now, schedule)

	fmt.Printf("round_id=%d\n", schedule.RoundID)
	fmt.Printf("commit_open=%d commit_close=%d\n", schedule.TCommitOpen, schedule.TCommitClose)
	fmt.Printf("reveal_open=%d reveal_close=%d\n", schedule.TRevealOpen, schedule.TRevealClose)
	fmt.Printf("reveal_grace_open=%d reveal_grace_close=%d\n", schedule.TRevealGraceOpen, schedule.TRevealGraceClose)
	fmt.Printf("vdf_start=%d vdf_deadline=%d\n", schedule.TVDFStart, schedule.TVDFDeadline)
	fmt.Printf("mix_ready=%d\n", schedule.TMixReady)
	fmt.Printf("phase=%s next_event=%s eta_sec=%d\n", phase, nextPhase, eta)
	return nil
}
