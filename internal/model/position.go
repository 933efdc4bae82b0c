package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FeeTiers are the pool fee tiers the position manager accepts, in
// hundredths of a basis point.
var FeeTiers = map[uint32]bool{
	100:   true,
	500:   true,
	3000:  true,
	10000: true,
}

// PositionState is the live on-chain state of one concentrated-liquidity
// NFT, as returned by the position manager's positions call.
type PositionState struct {
	TokenID     uint64   `json:"token_id"`
	Token0      string   `json:"token0"`
	Token1      string   `json:"token1"`
	Fee         uint32   `json:"fee"`
	TickLower   int32    `json:"tick_lower"`
	TickUpper   int32    `json:"tick_upper"`
	Liquidity   *big.Int `json:"liquidity"`
	TokensOwed0 *big.Int `json:"tokens_owed0"`
	TokensOwed1 *big.Int `json:"tokens_owed1"`
}

// RegistryPosition is a position record tracked by the backend registry,
// carrying provenance and reward-eligibility metadata.
type RegistryPosition struct {
	TokenID        uint64 `json:"tokenId"`
	UserID         string `json:"userId"`
	UserAddress    string `json:"userAddress"`
	RegisteredAt   string `json:"registeredAt"`
	RewardEligible bool   `json:"rewardEligible"`
}

// WalletPosition is a live on-chain-derived record served by the backend
// for a wallet address.
type WalletPosition struct {
	TokenID         uint64          `json:"tokenId"`
	IsInRange       bool            `json:"isInRange"`
	CurrentValueUSD decimal.Decimal `json:"currentValueUsd"`
}

// ValidatedPosition is the reconciler's merge of a registry record with
// live chain state. Mutable fields come from the chain read, provenance
// fields from the registry.
type ValidatedPosition struct {
	State           PositionState   `json:"state"`
	RegisteredAt    string          `json:"registered_at"`
	RewardEligible  bool            `json:"reward_eligible"`
	IsInRange       bool            `json:"is_in_range"`
	CurrentValueUSD decimal.Decimal `json:"current_value_usd"`
}
