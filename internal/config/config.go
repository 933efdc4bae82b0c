package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClaimABIVariant selects the deployed treasury claimRewards signature.
// The authoritative variant and address are pinned by deployment config,
// never guessed client-side.
type ClaimABIVariant string

const (
	// ClaimABIAmountSignature is claimRewards(uint256,bytes).
	ClaimABIAmountSignature ClaimABIVariant = "amount-signature"
	// ClaimABIUserAmountNonceSignature is claimRewards(address,uint256,uint256,bytes).
	ClaimABIUserAmountNonceSignature ClaimABIVariant = "user-amount-nonce-signature"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	ChainID           uint64
	PositionManager   string
	Treasury          string
	RewardToken       string
	WrappedNative     string
	BackendURL        string
	PrivateKey        string
	SlippageTolerance float64
	ApprovalFactor    int64
	DeadlineWindow    time.Duration
	GasRefresh        time.Duration
	GasFloorGwei      int64
	NativeFiatPrice   float64
	ReconcileInterval time.Duration
	CacheTTL          time.Duration
	ClaimABI          ClaimABIVariant
	PgDSN             string
	HistoryOut        string
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
// The private key is intentionally env-only (PORTAL_PRIVATE_KEY).
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("slippage-tolerance", 0.15)
	v.SetDefault("approval-factor", int64(2))
	v.SetDefault("deadline-window", 10*time.Minute)
	v.SetDefault("gas-refresh", 30*time.Second)
	v.SetDefault("gas-floor-gwei", int64(3))
	v.SetDefault("reconcile-interval", time.Minute)
	v.SetDefault("cache-ttl", 30*time.Second)
	v.SetDefault("claim-abi", string(ClaimABIUserAmountNonceSignature))
	v.SetDefault("history-out", "./data/operations.jsonl")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		ChainID:           v.GetUint64("chain-id"),
		PositionManager:   v.GetString("position-manager"),
		Treasury:          v.GetString("treasury"),
		RewardToken:       v.GetString("reward-token"),
		WrappedNative:     v.GetString("wrapped-native"),
		BackendURL:        v.GetString("backend-url"),
		PrivateKey:        v.GetString("private-key"),
		SlippageTolerance: v.GetFloat64("slippage-tolerance"),
		ApprovalFactor:    v.GetInt64("approval-factor"),
		DeadlineWindow:    v.GetDuration("deadline-window"),
		GasRefresh:        v.GetDuration("gas-refresh"),
		GasFloorGwei:      v.GetInt64("gas-floor-gwei"),
		NativeFiatPrice:   v.GetFloat64("native-fiat-price"),
		ReconcileInterval: v.GetDuration("reconcile-interval"),
		CacheTTL:          v.GetDuration("cache-ttl"),
		ClaimABI:          ClaimABIVariant(v.GetString("claim-abi")),
		PgDSN:             v.GetString("pg-dsn"),
		HistoryOut:        v.GetString("history-out"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.SlippageTolerance < 0 || c.SlippageTolerance >= 1 {
		return fmt.Errorf("slippage tolerance must be in [0, 1): %v", c.SlippageTolerance)
	}
	if c.ApprovalFactor < 1 {
		return fmt.Errorf("approval factor must be at least 1: %d", c.ApprovalFactor)
	}
	switch c.ClaimABI {
	case ClaimABIAmountSignature, ClaimABIUserAmountNonceSignature:
	default:
		return fmt.Errorf("unknown claim abi variant: %s", c.ClaimABI)
	}
	return nil
}
