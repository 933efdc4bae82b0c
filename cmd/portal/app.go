package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPortal/internal/allowance"
	"liquidityPortal/internal/backend"
	"liquidityPortal/internal/chain"
	"liquidityPortal/internal/config"
	"liquidityPortal/internal/gas"
	"liquidityPortal/internal/positions"
	"liquidityPortal/internal/rewards"
	"liquidityPortal/internal/storage"
	"liquidityPortal/internal/storage/postgres"
	"liquidityPortal/internal/wallet"
)

// app wires the portal's components from loaded configuration. The
// wallet is only constructed when a private key is configured; read-only
// commands work without one.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	chainClient *chain.Client
	wallet      *wallet.Wallet
	backend     *backend.Client
	history     storage.Storage
	pgStore     *postgres.Store
	cache       *positions.Cache
	reader      *positions.Reader
	manager     *positions.Manager
	reconciler  *positions.Reconciler
	claimer     *rewards.Claimer
	estimator   *gas.Estimator
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.PositionManager) {
		return nil, fmt.Errorf("position manager address is required")
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("backend url is required")
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		chainClient: chainClient,
		backend:     backend.NewClient(cfg.BackendURL),
		cache:       positions.NewCache(cfg.CacheTTL),
	}

	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pgStore = pgStore
		a.history = pgStore
	} else {
		a.history = storage.NewJsonlStorage(cfg.HistoryOut)
	}

	managerAddr := common.HexToAddress(cfg.PositionManager)
	a.reader = positions.NewReader(chainClient, managerAddr)
	a.reconciler = positions.NewReconciler(a.backend, a.reader, a.cache, logger)
	a.estimator = gas.NewEstimator(chainClient, cfg.GasRefresh, cfg.GasFloorGwei, cfg.NativeFiatPrice, nil, logger)

	if cfg.PrivateKey != "" {
		w, err := wallet.New(ctx, cfg.PrivateKey, cfg.ChainID, chainClient, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.wallet = w
		w.OnChange(func() { a.cache.Invalidate("") })

		approver := allowance.NewManager(chainClient, w, cfg.ApprovalFactor, logger)
		a.manager = positions.NewManager(positions.ManagerConfig{
			Contract:          managerAddr,
			WrappedNative:     common.HexToAddress(cfg.WrappedNative),
			SlippageTolerance: cfg.SlippageTolerance,
			DeadlineWindow:    cfg.DeadlineWindow,
		}, a.reader, w, approver, a.history, logger)

		if cfg.Treasury != "" {
			a.claimer = rewards.NewClaimer(
				common.HexToAddress(cfg.Treasury),
				cfg.ClaimABI,
				a.backend,
				w,
				chainClient,
				a.history,
				logger,
			)
		}
	}

	return a, nil
}

// requireWallet fails commands that need a signing key.
func (a *app) requireWallet() error {
	if a.wallet == nil {
		return fmt.Errorf("private key is required (set PORTAL_PRIVATE_KEY)")
	}
	return nil
}

// requireClaimer fails claim commands without treasury configuration.
func (a *app) requireClaimer() error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	if a.claimer == nil {
		return fmt.Errorf("treasury address is required")
	}
	return nil
}

// accountAddress resolves the acting address: the wallet's when present,
// otherwise an explicit --address flag.
func (a *app) accountAddress(cmd *cobra.Command) (string, error) {
	if a.wallet != nil {
		return a.wallet.Address().Hex(), nil
	}
	address, _ := cmd.Flags().GetString("address")
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("a valid --address is required without a private key")
	}
	return common.HexToAddress(address).Hex(), nil
}

func (a *app) Close() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.chainClient != nil {
		a.chainClient.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}
