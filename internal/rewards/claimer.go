// Package rewards implements the signature-based, nonce-protected reward
// claim protocol: the backend computes and attests the claimable amount,
// the client submits exactly what was signed.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPortal/internal/config"
	"liquidityPortal/internal/fault"
	"liquidityPortal/internal/flight"
	"liquidityPortal/internal/model"
)

// Backend is the claim attestation surface.
type Backend interface {
	Claimability(ctx context.Context, address string) (decimal.Decimal, error)
	GenerateClaimSignature(ctx context.Context, userAddress string) (model.ClaimRecord, error)
}

// TxSender signs, broadcasts and waits for a transaction.
type TxSender interface {
	Address() common.Address
	SendAndWait(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Receipt, error)
}

// GasEstimator pre-flights the claim call.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// ChainCaller performs read-only contract calls.
type ChainCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Recorder sinks operation history records.
type Recorder interface {
	PutOperations(records []model.OperationRecord) error
}

// Claimer runs the claim protocol against the treasury contract.
type Claimer struct {
	backend   Backend
	sender    TxSender
	estimator GasEstimator
	history   Recorder
	logger    *zap.Logger
	treasury  common.Address
	variant   config.ClaimABIVariant
	guard     *flight.Guard
}

// NewClaimer builds a claimer. The treasury address and ABI variant come
// from deployment configuration.
func NewClaimer(treasury common.Address, variant config.ClaimABIVariant, backend Backend, sender TxSender, estimator GasEstimator, history Recorder, logger *zap.Logger) *Claimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Claimer{
		backend:   backend,
		sender:    sender,
		estimator: estimator,
		history:   history,
		logger:    logger,
		treasury:  treasury,
		variant:   variant,
		guard:     flight.NewGuard(),
	}
}

// Claim runs the full protocol: claimability check, signature fetch, gas
// pre-flight, submission, receipt wait. Zero claimable is a non-error
// outcome with no contract calls. After any failure the client must
// re-run the whole protocol; a consumed nonce is never resubmitted.
func (c *Claimer) Claim(ctx context.Context) (model.ClaimOutcome, error) {
	if err := c.guard.Begin("claim"); err != nil {
		return model.ClaimOutcome{}, err
	}
	defer c.guard.End("claim")

	address := c.sender.Address()

	claimable, err := c.backend.Claimability(ctx, address.Hex())
	if err != nil {
		return model.ClaimOutcome{}, fmt.Errorf("fetch claimability: %w", err)
	}
	if claimable.Sign() <= 0 {
		c.logger.Info("nothing to claim", zap.String("address", address.Hex()))
		return model.ClaimOutcome{Status: model.ClaimStatusNothingToClaim}, nil
	}

	record, err := c.backend.GenerateClaimSignature(ctx, address.Hex())
	if err != nil {
		return model.ClaimOutcome{}, fmt.Errorf("fetch claim signature: %w", err)
	}
	if record.SignedAmount == nil || record.SignedAmount.Sign() <= 0 {
		c.logger.Info("signed amount is zero, nothing to claim", zap.String("address", address.Hex()))
		return model.ClaimOutcome{Status: model.ClaimStatusNothingToClaim}, nil
	}

	// The signed amount goes on-chain verbatim. Recomputing it locally
	// would invalidate the signature.
	data, err := c.packClaim(address, record)
	if err != nil {
		return model.ClaimOutcome{}, err
	}

	gasLimit, err := c.estimator.EstimateGas(ctx, ethereum.CallMsg{
		From: address,
		To:   &c.treasury,
		Data: data,
	})
	if err != nil {
		if fault.RevertSmell(err) {
			// The contract rejects the call shape itself; that is a
			// client/contract mismatch, not a user problem.
			return model.ClaimOutcome{}, fmt.Errorf("claim pre-flight reverted: %w", fault.ErrClaimUnavailable)
		}
		return model.ClaimOutcome{}, fmt.Errorf("estimate claim gas: %w", err)
	}

	c.logger.Info("submitting claim",
		zap.String("address", address.Hex()),
		zap.String("amount", record.SignedAmount.String()),
		zap.Uint64("nonce", record.Nonce),
		zap.Uint64("gas_limit", gasLimit),
	)

	receipt, err := c.sender.SendAndWait(ctx, &c.treasury, nil, data, gasLimit)
	c.record(receipt, record, err)
	if err != nil {
		if errors.Is(err, fault.ErrNonceUsed) || errors.Is(err, fault.ErrSignatureInvalid) {
			// State desync: the nonce or signature is stale. The caller
			// restarts from the claimability step; resubmitting this
			// tuple can never succeed.
			return model.ClaimOutcome{}, fmt.Errorf("claim state desync, refetch claimability: %w", err)
		}
		return model.ClaimOutcome{}, fmt.Errorf("claim: %w", err)
	}

	c.logger.Info("claim confirmed",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.String("amount", record.SignedAmount.String()),
		zap.Uint64("nonce", record.Nonce),
	)

	return model.ClaimOutcome{
		Status: model.ClaimStatusClaimed,
		Amount: record.SignedAmount,
		Nonce:  record.Nonce,
		TxHash: receipt.TxHash.Hex(),
	}, nil
}

// ClaimedAmount reads the user's lifetime claimed total from the
// treasury.
func (c *Claimer) ClaimedAmount(ctx context.Context, caller ChainCaller) (*big.Int, error) {
	address := c.sender.Address()

	switch c.variant {
	case config.ClaimABIAmountSignature:
		treasury, err := AmountSignatureABI()
		if err != nil {
			return nil, fmt.Errorf("parse treasury abi: %w", err)
		}
		data, err := treasury.Pack("getClaimedAmount", address)
		if err != nil {
			return nil, fmt.Errorf("pack getClaimedAmount: %w", err)
		}
		output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &c.treasury, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call getClaimedAmount: %w", err)
		}
		values, err := treasury.Unpack("getClaimedAmount", output)
		if err != nil {
			return nil, fmt.Errorf("unpack getClaimedAmount: %w", err)
		}
		claimed, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected claimed amount type %T", values[0])
		}
		return claimed, nil
	default:
		treasury, err := UserNonceABI()
		if err != nil {
			return nil, fmt.Errorf("parse treasury abi: %w", err)
		}
		data, err := treasury.Pack("getUserStats", address)
		if err != nil {
			return nil, fmt.Errorf("pack getUserStats: %w", err)
		}
		output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &c.treasury, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call getUserStats: %w", err)
		}
		values, err := treasury.Unpack("getUserStats", output)
		if err != nil {
			return nil, fmt.Errorf("unpack getUserStats: %w", err)
		}
		claimed, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected claimed amount type %T", values[0])
		}
		return claimed, nil
	}
}

func (c *Claimer) packClaim(user common.Address, record model.ClaimRecord) ([]byte, error) {
	switch c.variant {
	case config.ClaimABIAmountSignature:
		treasury, err := AmountSignatureABI()
		if err != nil {
			return nil, fmt.Errorf("parse treasury abi: %w", err)
		}
		data, err := treasury.Pack("claimRewards", record.SignedAmount, record.Signature)
		if err != nil {
			return nil, fmt.Errorf("pack claimRewards: %w", err)
		}
		return data, nil
	case config.ClaimABIUserAmountNonceSignature:
		treasury, err := UserNonceABI()
		if err != nil {
			return nil, fmt.Errorf("parse treasury abi: %w", err)
		}
		data, err := treasury.Pack("claimRewards", user, record.SignedAmount, new(big.Int).SetUint64(record.Nonce), record.Signature)
		if err != nil {
			return nil, fmt.Errorf("pack claimRewards: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown claim abi variant: %s", c.variant)
	}
}

func (c *Claimer) record(receipt *types.Receipt, claim model.ClaimRecord, opErr error) {
	if c.history == nil {
		return
	}

	rec := model.OperationRecord{
		ID:        uuid.NewString(),
		Op:        model.OpClaim,
		Address:   claim.UserAddress,
		Status:    model.OperationConfirmed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if receipt != nil {
		rec.TxHash = receipt.TxHash.Hex()
		rec.GasUsed = receipt.GasUsed
	}
	if opErr != nil {
		rec.Status = model.OperationFailed
		if receipt != nil && receipt.Status == types.ReceiptStatusFailed {
			rec.Status = model.OperationReverted
		}
		if errors.Is(opErr, fault.ErrStatusUnknown) {
			rec.Status = model.OperationUnknown
		}
		rec.ErrorClass = string(fault.Classify(opErr))
		rec.Error = opErr.Error()
	}

	if err := c.history.PutOperations([]model.OperationRecord{rec}); err != nil {
		c.logger.Warn("record claim failed", zap.Error(err))
	}
}
