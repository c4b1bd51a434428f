package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/animicaorg/animica/core/feemarket"
)

var (
	emaFloorFlag = &cli.Uint64Flag{Name: "ema-floor", Usage: "current EMA base-fee floor (wei)", Value: 1_000_000_000}
	pendingTxsFlag = &cli.Uint64Flag{Name: "pending-txs", Usage: "pending tx count in the mempool"}
	pendingGasFlag = &cli.Uint64Flag{Name: "pending-gas", Usage: "total gas of pending txs"}
	blockGasLimitFlag = &cli.Uint64Flag{Name: "block-gas-limit", Usage: "target block gas limit", Value: 30_000_000}
)

var feesCommand = &cli.Command{
	Name:  "fees",
	Usage: "fee-market inspection",
	Subcommands: []*cli.Command{
		{
			Name:  "suggest",
			Usage: "print the current base fee / tip suggestion given a pending-gas snapshot",
			Flags: []cli.Flag{emaFloorFlag, pendingTxsFlag, pendingGasFlag, blockGasLimitFlag},
			Action: runFeesSuggest,
		},
	},
}

func runFeesSuggest(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	state := feemarket.NewState(ctx.Uint64(emaFloorFlag.Name))
	pressure := feemarket.Pressure{
		PendingTxs:    ctx.Uint64(pendingTxsFlag.Name),
		PendingGas:    ctx.Uint64(pendingGasFlag.Name),
		BlockGasLimit: ctx.Uint64(blockGasLimitFlag.Name),
	}

	sug := feemarket.SuggestFees(state, pressure, cfg.FeeMarket)
	fmt.Printf("base_fee=%d\n", sug.BaseFee)
	fmt.Printf("surge_multiplier=%.4f\n", sug.SurgeMultiplier)
	fmt.Printf("floor_with_surge=%d\n", sug.FloorWithSurge)
	fmt.Printf("min_tip=%d recommended_tip=%d\n", sug.MinTip, sug.RecommendedTip)
	fmt.Printf("min_total_price=%d suggested_legacy_gas_price=%d\n", sug.MinTotalPrice, sug.SuggestedLegacyGasPrice)
	return nil
}
