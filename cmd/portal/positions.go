package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPortal/internal/positions"
)

func newPositionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Reconcile registry positions against chain state",
		RunE:  runPositions,
	}
	cmd.Flags().String("address", "", "account address (when no private key is configured)")
	cmd.Flags().String("user-id", "", "registry user id (defaults to the address)")
	return cmd
}

func runPositions(cmd *cobra.Command, _ []string) error {
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
	userID, _ := cmd.Flags().GetString("user-id")
	if userID == "" {
		userID = address
	}

	validated, err := a.reconciler.Reconcile(ctx, userID, address)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(validated)
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the background reconciliation poller",
		RunE:  runWatch,
	}
	cmd.Flags().String("address", "", "account address (when no private key is configured)")
	cmd.Flags().String("user-id", "", "registry user id (defaults to the address)")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
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
	userID, _ := cmd.Flags().GetString("user-id")
	if userID == "" {
		userID = address
	}

	go func() {
		if err := a.estimator.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("gas estimator stopped", zap.Error(err))
		}
	}()

	a.logger.Info("watch start",
		zap.String("address", address),
		zap.Duration("interval", a.cfg.ReconcileInterval),
	)

	poller := positions.NewPoller(a.reconciler, a.cfg.ReconcileInterval, a.logger)
	err = poller.Run(ctx, userID, address)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
