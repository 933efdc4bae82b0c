package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liquidityPortal/internal/model"
)

var gasTableOps = []model.Operation{
	model.OpApprove,
	model.OpMint,
	model.OpIncrease,
	model.OpDecrease,
	model.OpCollect,
	model.OpBurn,
	model.OpClaim,
}

func newGasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gas",
		Short: "Show estimated costs per operation type",
		RunE:  runGas,
	}
}

func runGas(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// One synchronous refresh; the interval loop is for watch mode.
	a.estimator.Refresh(ctx)

	for _, op := range gasTableOps {
		estimate := a.estimator.Estimate(op)
		fmt.Printf("%-20s gas %7d  price %s wei  cost %s native (%s fiat)\n",
			estimate.Op, estimate.GasLimit, estimate.GasPrice, estimate.Native, estimate.Fiat)
	}
	return nil
}
