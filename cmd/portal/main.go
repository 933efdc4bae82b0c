package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "portal",
		Short:        "Concentrated-liquidity position and reward claim portal",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "chain RPC URL")
	root.PersistentFlags().Uint64("chain-id", 0, "expected chain id (0 skips the check)")
	root.PersistentFlags().String("position-manager", "", "position manager contract address")
	root.PersistentFlags().String("treasury", "", "treasury contract address")
	root.PersistentFlags().String("reward-token", "", "reward token address")
	root.PersistentFlags().String("wrapped-native", "", "wrapped native token address")
	root.PersistentFlags().String("backend-url", "", "backend service API base URL")
	root.PersistentFlags().Float64("slippage-tolerance", 0.15, "slippage tolerance fraction")
	root.PersistentFlags().Int64("approval-factor", 2, "approval amount multiple")
	root.PersistentFlags().Duration("deadline-window", 0, "tx deadline window")
	root.PersistentFlags().Duration("gas-refresh", 0, "gas price refresh interval")
	root.PersistentFlags().Int64("gas-floor-gwei", 3, "fallback gas price floor in gwei")
	root.PersistentFlags().Float64("native-fiat-price", 0, "native currency fiat price")
	root.PersistentFlags().Duration("reconcile-interval", 0, "background reconcile interval")
	root.PersistentFlags().Duration("cache-ttl", 0, "validated position cache TTL")
	root.PersistentFlags().String("claim-abi", "", "treasury claimRewards ABI variant")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN for operation history")
	root.PersistentFlags().String("history-out", "", "operation history JSONL path")
	root.PersistentFlags().Int("max-retries", 5, "maximum read retry attempts")
	root.PersistentFlags().Duration("retry-backoff", 0, "initial read retry backoff")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newMintCmd())
	root.AddCommand(newIncreaseCmd())
	root.AddCommand(newDecreaseCmd())
	root.AddCommand(newCollectCmd())
	root.AddCommand(newBurnCmd())
	root.AddCommand(newCloseCmd())
	root.AddCommand(newClaimCmd())
	root.AddCommand(newClaimStatusCmd())
	root.AddCommand(newPositionsCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newGasCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
