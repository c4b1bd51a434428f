package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/animicaorg/animica/aicf"
	"github.com/animicaorg/animica/common"
)

var (
	submitterFlag = &cli.StringFlag{Name: "submitter", Usage: "submitter address (0x...)", Required: true}
	nonceFlag     = &cli.Uint64Flag{Name: "nonce", Usage: "submitter-chosen nonce for job_id derivation"}
	deadlineFlag  = &cli.Int64Flag{Name: "deadline", Usage: "unix seconds by which the job must complete", Required: true}
	specFlag      = &cli.StringFlag{Name: "spec", Usage: "raw job spec bytes, UTF-8"}
	attestFlag    = &cli.StringSliceFlag{Name: "attest", Usage: "attestation field as key=value, repeatable"}
	timeoutFlag   = &cli.DurationFlag{Name: "timeout", Usage: "how long to block if the queue is full", Value: 5 * time.Second}
)

var aicfCommand = &cli.Command{
	Name:  "aicf",
	Usage: "AI Compute Framework job-queue operations",
	Subcommands: []*cli.Command{
		{
			Name:  "enqueue-quantum",
			Usage: "submit a quantum compute job and print its task_id",
			Flags: []cli.Flag{submitterFlag, nonceFlag, deadlineFlag, specFlag, attestFlag, timeoutFlag, queueCapFlag},
			Action: runAICFEnqueueQuantum,
		},
	},
}

var queueCapFlag = &cli.IntFlag{Name: "queue-capacity", Usage: "bounded queue capacity for this one-shot submission", Value: 1024}

func parseAttestation(pairs []string) (aicf.AttestationBundle, error) {
	bundle := make(aicf.AttestationBundle, len(pairs))
	for _, p := range pairs {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, usageErrorf("invalid --attest %q, want key=value", p)
		}
		bundle[kv[0]] = kv[1]
	}
	return bundle, nil
}

func runAICFEnqueueQuantum(ctx *cli.Context) error {
	if !common.IsHexAddress(ctx.String(submitterFlag.Name)) {
		return usageErrorf("invalid --submitter address %q", ctx.String(submitterFlag.Name))
	}
	submitter := common.HexToAddress(ctx.String(submitterFlag.Name))

	attestation, err := parseAttestation(ctx.StringSlice(attestFlag.Name))
	if err != nil {
		return err
	}

	queue := aicf.NewQueue(ctx.Int(queueCapFlag.Name))

	cctx, cancel := context.WithTimeout(context.Background(), ctx.Duration(timeoutFlag.Name))
	defer cancel()

	id, err := queue.Submit(cctx, aicf.JobKindQuantum, []byte(ctx.String(specFlag.Name)), attestation,
		submitter, ctx.Uint64(nonceFlag.Name), ctx.Int64(deadlineFlag.Name))
	if err != nil {
		if err == aicf.ErrQueueFull {
			return unavailableErrorf("aicf: queue full, timed out waiting for a slot")
		}
		return domainErrorf("aicf: enqueue failed: %v", err)
	}

	job, err := queue.Get(id)
	if err != nil {
		return domainErrorf("aicf: %v", err)
	}

	fmt.Printf("task_id=%s status=%s\n", job.ID.Hex(), job.Status)
	return nil
}
