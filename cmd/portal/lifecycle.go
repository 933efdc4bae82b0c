package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPortal/internal/positions"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseAmount(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" || raw == "0" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s: %s", name, raw)
	}
	return amount, nil
}

func newMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a new concentrated-liquidity position",
		RunE:  runMint,
	}
	cmd.Flags().String("token0", "", "token0 address")
	cmd.Flags().String("token1", "", "token1 address")
	cmd.Flags().Uint32("fee", 3000, "pool fee tier")
	cmd.Flags().Int32("tick-lower", 0, "lower tick")
	cmd.Flags().Int32("tick-upper", 0, "upper tick")
	cmd.Flags().String("amount0", "0", "desired amount of token0 in base units")
	cmd.Flags().String("amount1", "0", "desired amount of token1 in base units")
	cmd.Flags().String("recipient", "", "position recipient (defaults to the connected account)")
	cmd.Flags().Bool("native", false, "send the wrapped-native leg as transaction value")
	return cmd
}

func runMint(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	token0, _ := cmd.Flags().GetString("token0")
	token1, _ := cmd.Flags().GetString("token1")
	if !common.IsHexAddress(token0) || !common.IsHexAddress(token1) {
		return fmt.Errorf("valid --token0 and --token1 are required")
	}

	amount0, err := parseAmount(cmd, "amount0")
	if err != nil {
		return err
	}
	amount1, err := parseAmount(cmd, "amount1")
	if err != nil {
		return err
	}

	fee, _ := cmd.Flags().GetUint32("fee")
	tickLower, _ := cmd.Flags().GetInt32("tick-lower")
	tickUpper, _ := cmd.Flags().GetInt32("tick-upper")
	useNative, _ := cmd.Flags().GetBool("native")

	var recipient common.Address
	if raw, _ := cmd.Flags().GetString("recipient"); raw != "" {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid recipient: %s", raw)
		}
		recipient = common.HexToAddress(raw)
	}

	result, err := a.manager.Mint(ctx, positions.MintParams{
		Token0:         common.HexToAddress(token0),
		Token1:         common.HexToAddress(token1),
		Fee:            fee,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Recipient:      recipient,
		UseNative:      useNative,
	})
	if err != nil {
		return err
	}
	a.cache.Invalidate(a.wallet.Address().Hex())

	fmt.Printf("minted position %d in tx %s (gas used %d)\n", result.TokenID, result.TxHash.Hex(), result.GasUsed)
	return nil
}

func newIncreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "increase",
		Short: "Add liquidity to an owned position",
		RunE:  runIncrease,
	}
	cmd.Flags().Uint64("token-id", 0, "position token id")
	cmd.Flags().String("amount0", "0", "desired amount of token0 in base units")
	cmd.Flags().String("amount1", "0", "desired amount of token1 in base units")
	return cmd
}

func runIncrease(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	tokenID, _ := cmd.Flags().GetUint64("token-id")
	amount0, err := parseAmount(cmd, "amount0")
	if err != nil {
		return err
	}
	amount1, err := parseAmount(cmd, "amount1")
	if err != nil {
		return err
	}

	hash, err := a.manager.Increase(ctx, tokenID, amount0, amount1)
	if err != nil {
		return err
	}
	a.cache.Invalidate(a.wallet.Address().Hex())

	fmt.Printf("liquidity increased in tx %s\n", hash.Hex())
	return nil
}

func newDecreaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrease",
		Short: "Remove liquidity from an owned position",
		RunE:  runDecrease,
	}
	cmd.Flags().Uint64("token-id", 0, "position token id")
	cmd.Flags().String("liquidity", "0", "liquidity to remove")
	return cmd
}

func runDecrease(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	tokenID, _ := cmd.Flags().GetUint64("token-id")
	liquidity, err := parseAmount(cmd, "liquidity")
	if err != nil {
		return err
	}

	hash, err := a.manager.Decrease(ctx, tokenID, liquidity)
	if err != nil {
		return err
	}
	a.cache.Invalidate(a.wallet.Address().Hex())

	fmt.Printf("liquidity decreased in tx %s\n", hash.Hex())
	return nil
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect all accrued fees for a position",
		RunE:  runCollect,
	}
	cmd.Flags().Uint64("token-id", 0, "position token id")
	return cmd
}

func runCollect(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	tokenID, _ := cmd.Flags().GetUint64("token-id")
	hash, err := a.manager.Collect(ctx, tokenID)
	if err != nil {
		return err
	}
	a.cache.Invalidate(a.wallet.Address().Hex())

	fmt.Printf("fees collected in tx %s\n", hash.Hex())
	return nil
}

func newBurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn an empty position",
		RunE:  runBurn,
	}
	cmd.Flags().Uint64("token-id", 0, "position token id")
	return cmd
}

func runBurn(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	tokenID, _ := cmd.Flags().GetUint64("token-id")
	hash, err := a.manager.Burn(ctx, tokenID)
	if err != nil {
		return err
	}
	a.cache.Invalidate(a.wallet.Address().Hex())

	fmt.Printf("position %d burned in tx %s\n", tokenID, hash.Hex())
	return nil
}

func newCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Fully withdraw, collect, and burn a position",
		RunE:  runClose,
	}
	cmd.Flags().Uint64("token-id", 0, "position token id")
	return cmd
}

func runClose(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireWallet(); err != nil {
		return err
	}

	tokenID, _ := cmd.Flags().GetUint64("token-id")
	steps, err := a.manager.Close(ctx, tokenID)
	confirmed := false
	for _, step := range steps {
		if step.Err != nil {
			a.logger.Error("close step failed", zap.String("step", string(step.Step)), zap.Error(step.Err))
			fmt.Printf("step %s: failed: %v\n", step.Step, step.Err)
			continue
		}
		confirmed = true
		fmt.Printf("step %s: tx %s\n", step.Step, step.TxHash.Hex())
	}
	// A partial close still moved on-chain state; the cached set is stale
	// either way.
	if confirmed {
		a.cache.Invalidate(a.wallet.Address().Hex())
	}
	if err != nil {
		return err
	}

	fmt.Printf("position %d closed\n", tokenID)
	return nil
}
