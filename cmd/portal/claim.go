package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liquidityPortal/internal/model"
)

func newClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim accumulated protocol rewards",
		RunE:  runClaim,
	}
}

func runClaim(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireClaimer(); err != nil {
		return err
	}

	outcome, err := a.claimer.Claim(ctx)
	if err != nil {
		return err
	}

	if outcome.Status == model.ClaimStatusNothingToClaim {
		fmt.Println("nothing to claim")
		return nil
	}

	fmt.Printf("claimed %s (nonce %d) in tx %s\n", outcome.Amount, outcome.Nonce, outcome.TxHash)
	return nil
}

func newClaimStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim-status",
		Short: "Show claimable and lifetime-claimed reward amounts",
		RunE:  runClaimStatus,
	}
	cmd.Flags().String("address", "", "account address (when no private key is configured)")
	return cmd
}

func runClaimStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	address, err := a.accountAddress(cmd)
	if err != nil {
		return err
	}

	claimable, err := a.backend.Claimability(ctx, address)
	if err != nil {
		return err
	}
	fmt.Printf("claimable: %s\n", claimable)

	if a.claimer != nil {
		claimed, err := a.claimer.ClaimedAmount(ctx, a.chainClient)
		if err != nil {
			return err
		}
		fmt.Printf("lifetime claimed: %s\n", claimed)
	}
	return nil
}
