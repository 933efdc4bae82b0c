// Package positions drives the concentrated-liquidity position lifecycle
// against the position manager contract: mint, increase, decrease,
// collect, burn, and registry reconciliation.
package positions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityPortal/internal/fault"
	"liquidityPortal/internal/flight"
	"liquidityPortal/internal/model"
)

// slippageDenominator scales slippage tolerance to basis points.
const slippageDenominator = 10000

// TxSender signs, broadcasts and waits for a transaction.
type TxSender interface {
	Address() common.Address
	SendAndWait(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Receipt, error)
}

// Approver ensures ERC-20 allowance before a value-moving call.
type Approver interface {
	EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (bool, error)
}

// PositionReader reads live position state.
type PositionReader interface {
	Position(ctx context.Context, tokenID uint64) (model.PositionState, bool, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, bool, error)
}

// Recorder sinks operation history records.
type Recorder interface {
	PutOperations(records []model.OperationRecord) error
}

// Manager executes position lifecycle operations. Approval, submission and
// dependent calls run strictly sequentially; each waits for the prior
// receipt.
type Manager struct {
	reader     PositionReader
	sender     TxSender
	approver   Approver
	history    Recorder
	logger     *zap.Logger
	contract   common.Address
	wrapped    common.Address
	slippageBp int64
	deadline   time.Duration
	guard      *flight.Guard
}

// ManagerConfig holds Manager construction parameters.
type ManagerConfig struct {
	Contract          common.Address
	WrappedNative     common.Address
	SlippageTolerance float64
	DeadlineWindow    time.Duration
}

// NewManager builds a position lifecycle manager.
func NewManager(cfg ManagerConfig, reader PositionReader, sender TxSender, approver Approver, history Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = 10 * time.Minute
	}
	return &Manager{
		reader:     reader,
		sender:     sender,
		approver:   approver,
		history:    history,
		logger:     logger,
		contract:   cfg.Contract,
		wrapped:    cfg.WrappedNative,
		slippageBp: int64(cfg.SlippageTolerance * slippageDenominator),
		deadline:   cfg.DeadlineWindow,
		guard:      flight.NewGuard(),
	}
}

// MintParams are the user-facing inputs for a mint.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Recipient      common.Address
	// UseNative sends the wrapped-native leg as transaction value instead
	// of a pre-approved ERC-20 transfer; unused value is refunded in the
	// same transaction via a batched mint+refund call.
	UseNative bool
}

// MintResult reports a confirmed mint.
type MintResult struct {
	TokenID uint64
	TxHash  common.Hash
	GasUsed uint64
}

// Mint validates params, ensures approvals, submits the mint and extracts
// the new tokenId from the receipt's ownership-transfer event. Invalid
// inputs fail fast with zero transactions sent.
func (m *Manager) Mint(ctx context.Context, params MintParams) (MintResult, error) {
	if err := m.guard.Begin("mint"); err != nil {
		return MintResult{}, err
	}
	defer m.guard.End("mint")

	if err := validateMint(params); err != nil {
		return MintResult{}, err
	}

	amount0 := orZero(params.Amount0Desired)
	amount1 := orZero(params.Amount1Desired)

	// Resolve the native leg before any approval is issued so a bad
	// native request fails with zero transactions sent.
	var value *big.Int
	if params.UseNative {
		switch m.wrapped {
		case params.Token0:
			value = amount0
		case params.Token1:
			value = amount1
		default:
			return MintResult{}, fmt.Errorf("native leg requested but neither token is the wrapped native %s", m.wrapped.Hex())
		}
	}
	if !params.UseNative || params.Token0 != m.wrapped {
		if _, err := m.approver.EnsureApproval(ctx, params.Token0, m.contract, amount0); err != nil {
			return MintResult{}, err
		}
	}
	if !params.UseNative || params.Token1 != m.wrapped {
		if _, err := m.approver.EnsureApproval(ctx, params.Token1, m.contract, amount1); err != nil {
			return MintResult{}, err
		}
	}

	mgr, err := ManagerABI()
	if err != nil {
		return MintResult{}, fmt.Errorf("parse manager abi: %w", err)
	}

	recipient := params.Recipient
	if recipient == (common.Address{}) {
		recipient = m.sender.Address()
	}

	call := mintCallParams{
		Token0:         params.Token0,
		Token1:         params.Token1,
		Fee:            new(big.Int).SetUint64(uint64(params.Fee)),
		TickLower:      big.NewInt(int64(params.TickLower)),
		TickUpper:      big.NewInt(int64(params.TickUpper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     m.amountMin(amount0),
		Amount1Min:     m.amountMin(amount1),
		Recipient:      recipient,
		Deadline:       m.deadlineAt(),
	}

	data, err := mgr.Pack("mint", call)
	if err != nil {
		return MintResult{}, fmt.Errorf("pack mint: %w", err)
	}

	if params.UseNative {
		// Batch mint with refundETH so excess native value returns
		// atomically in the same transaction.
		refund, err := mgr.Pack("refundETH")
		if err != nil {
			return MintResult{}, fmt.Errorf("pack refundETH: %w", err)
		}
		data, err = mgr.Pack("multicall", [][]byte{data, refund})
		if err != nil {
			return MintResult{}, fmt.Errorf("pack multicall: %w", err)
		}
	}

	m.logger.Info("submitting mint",
		zap.String("token0", params.Token0.Hex()),
		zap.String("token1", params.Token1.Hex()),
		zap.Uint32("fee", params.Fee),
		zap.Int32("tick_lower", params.TickLower),
		zap.Int32("tick_upper", params.TickUpper),
		zap.Bool("native", params.UseNative),
	)

	receipt, err := m.sender.SendAndWait(ctx, &m.contract, value, data, 0)
	if err != nil {
		m.record(model.OpMint, 0, receipt, err)
		return MintResult{}, fmt.Errorf("mint: %w", err)
	}

	tokenID, err := ExtractMintedTokenID(receipt, m.contract)
	if err != nil {
		m.record(model.OpMint, 0, receipt, err)
		return MintResult{}, err
	}

	m.record(model.OpMint, tokenID, receipt, nil)
	m.logger.Info("mint confirmed",
		zap.Uint64("token_id", tokenID),
		zap.String("tx", receipt.TxHash.Hex()),
	)
	return MintResult{TokenID: tokenID, TxHash: receipt.TxHash, GasUsed: receipt.GasUsed}, nil
}

// Increase adds liquidity to an owned position.
func (m *Manager) Increase(ctx context.Context, tokenID uint64, amount0, amount1 *big.Int) (common.Hash, error) {
	key := fmt.Sprintf("increase:%d", tokenID)
	if err := m.guard.Begin(key); err != nil {
		return common.Hash{}, err
	}
	defer m.guard.End(key)

	if orZero(amount0).Sign() == 0 && orZero(amount1).Sign() == 0 {
		return common.Hash{}, fmt.Errorf("both amounts cannot be zero")
	}

	state, err := m.requireOwned(ctx, tokenID)
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := m.approver.EnsureApproval(ctx, common.HexToAddress(state.Token0), m.contract, orZero(amount0)); err != nil {
		return common.Hash{}, err
	}
	if _, err := m.approver.EnsureApproval(ctx, common.HexToAddress(state.Token1), m.contract, orZero(amount1)); err != nil {
		return common.Hash{}, err
	}

	mgr, err := ManagerABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := mgr.Pack("increaseLiquidity", increaseCallParams{
		TokenId:        new(big.Int).SetUint64(tokenID),
		Amount0Desired: orZero(amount0),
		Amount1Desired: orZero(amount1),
		Amount0Min:     m.amountMin(orZero(amount0)),
		Amount1Min:     m.amountMin(orZero(amount1)),
		Deadline:       m.deadlineAt(),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack increaseLiquidity: %w", err)
	}

	receipt, err := m.sender.SendAndWait(ctx, &m.contract, nil, data, 0)
	m.record(model.OpIncrease, tokenID, receipt, err)
	if err != nil {
		return common.Hash{}, fmt.Errorf("increase liquidity %d: %w", tokenID, err)
	}
	return receipt.TxHash, nil
}

// Decrease removes liquidity from an owned position. The requested
// liquidity is checked against a fresh on-chain read immediately before
// submission; stale cached values never reach the contract.
func (m *Manager) Decrease(ctx context.Context, tokenID uint64, liquidity *big.Int) (common.Hash, error) {
	key := fmt.Sprintf("decrease:%d", tokenID)
	if err := m.guard.Begin(key); err != nil {
		return common.Hash{}, err
	}
	defer m.guard.End(key)

	return m.decreaseLocked(ctx, tokenID, liquidity)
}

func (m *Manager) decreaseLocked(ctx context.Context, tokenID uint64, liquidity *big.Int) (common.Hash, error) {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("liquidity to remove must be positive")
	}

	state, err := m.requireOwned(ctx, tokenID)
	if err != nil {
		return common.Hash{}, err
	}
	if liquidity.Cmp(state.Liquidity) > 0 {
		return common.Hash{}, fmt.Errorf("requested liquidity %s exceeds on-chain liquidity %s for position %d",
			liquidity, state.Liquidity, tokenID)
	}

	mgr, err := ManagerABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := mgr.Pack("decreaseLiquidity", decreaseCallParams{
		TokenId:    new(big.Int).SetUint64(tokenID),
		Liquidity:  liquidity,
		Amount0Min: big.NewInt(0),
		Amount1Min: big.NewInt(0),
		Deadline:   m.deadlineAt(),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack decreaseLiquidity: %w", err)
	}

	receipt, err := m.sender.SendAndWait(ctx, &m.contract, nil, data, 0)
	m.record(model.OpDecrease, tokenID, receipt, err)
	if err != nil {
		return common.Hash{}, fmt.Errorf("decrease liquidity %d: %w", tokenID, err)
	}
	return receipt.TxHash, nil
}

// Collect claims all accrued fees for both tokens. Safe to call when owed
// amounts are zero.
func (m *Manager) Collect(ctx context.Context, tokenID uint64) (common.Hash, error) {
	key := fmt.Sprintf("collect:%d", tokenID)
	if err := m.guard.Begin(key); err != nil {
		return common.Hash{}, err
	}
	defer m.guard.End(key)

	return m.collectLocked(ctx, tokenID)
}

func (m *Manager) collectLocked(ctx context.Context, tokenID uint64) (common.Hash, error) {
	if _, err := m.requireOwned(ctx, tokenID); err != nil {
		return common.Hash{}, err
	}

	mgr, err := ManagerABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := mgr.Pack("collect", collectCallParams{
		TokenId:    new(big.Int).SetUint64(tokenID),
		Recipient:  m.sender.Address(),
		Amount0Max: MaxUint128,
		Amount1Max: MaxUint128,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack collect: %w", err)
	}

	receipt, err := m.sender.SendAndWait(ctx, &m.contract, nil, data, 0)
	m.record(model.OpCollect, tokenID, receipt, err)
	if err != nil {
		return common.Hash{}, fmt.Errorf("collect %d: %w", tokenID, err)
	}
	return receipt.TxHash, nil
}

// Burn terminates a position. Permitted only once liquidity and owed
// balances are both zero; otherwise the caller runs Close.
func (m *Manager) Burn(ctx context.Context, tokenID uint64) (common.Hash, error) {
	key := fmt.Sprintf("burn:%d", tokenID)
	if err := m.guard.Begin(key); err != nil {
		return common.Hash{}, err
	}
	defer m.guard.End(key)

	return m.burnLocked(ctx, tokenID)
}

func (m *Manager) burnLocked(ctx context.Context, tokenID uint64) (common.Hash, error) {
	state, err := m.requireOwned(ctx, tokenID)
	if err != nil {
		return common.Hash{}, err
	}
	if state.Liquidity.Sign() != 0 {
		return common.Hash{}, fmt.Errorf("position %d still has liquidity %s; decrease fully before burning", tokenID, state.Liquidity)
	}
	if state.TokensOwed0.Sign() != 0 || state.TokensOwed1.Sign() != 0 {
		return common.Hash{}, fmt.Errorf("position %d still has uncollected fees; collect before burning", tokenID)
	}

	mgr, err := ManagerABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse manager abi: %w", err)
	}
	data, err := mgr.Pack("burn", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack burn: %w", err)
	}

	receipt, err := m.sender.SendAndWait(ctx, &m.contract, nil, data, 0)
	m.record(model.OpBurn, tokenID, receipt, err)
	if err != nil {
		return common.Hash{}, fmt.Errorf("burn %d: %w", tokenID, err)
	}
	return receipt.TxHash, nil
}

// CloseStep names one stage of a full position close.
type CloseStep string

const (
	CloseStepDecrease CloseStep = "decrease_liquidity"
	CloseStepCollect  CloseStep = "collect"
	CloseStepBurn     CloseStep = "burn"
)

// CloseStepResult reports one completed or failed close stage.
type CloseStepResult struct {
	Step   CloseStep
	TxHash common.Hash
	Err    error
}

// Close runs the full decrease-all, collect, burn sequence as one logical
// operation. On failure the returned steps say exactly which stage
// completed and which failed, never a generic failure.
func (m *Manager) Close(ctx context.Context, tokenID uint64) ([]CloseStepResult, error) {
	key := fmt.Sprintf("close:%d", tokenID)
	if err := m.guard.Begin(key); err != nil {
		return nil, err
	}
	defer m.guard.End(key)

	state, err := m.requireOwned(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	var steps []CloseStepResult

	if state.Liquidity.Sign() > 0 {
		hash, err := m.decreaseLocked(ctx, tokenID, state.Liquidity)
		steps = append(steps, CloseStepResult{Step: CloseStepDecrease, TxHash: hash, Err: err})
		if err != nil {
			return steps, fmt.Errorf("close %d failed at %s: %w", tokenID, CloseStepDecrease, err)
		}
	}

	hash, err := m.collectLocked(ctx, tokenID)
	steps = append(steps, CloseStepResult{Step: CloseStepCollect, TxHash: hash, Err: err})
	if err != nil {
		return steps, fmt.Errorf("close %d failed at %s: %w", tokenID, CloseStepCollect, err)
	}

	hash, err = m.burnLocked(ctx, tokenID)
	steps = append(steps, CloseStepResult{Step: CloseStepBurn, TxHash: hash, Err: err})
	if err != nil {
		return steps, fmt.Errorf("close %d failed at %s: %w", tokenID, CloseStepBurn, err)
	}

	return steps, nil
}

// requireOwned re-verifies on-chain ownership and returns fresh position
// state. Ownership mismatch is fatal, never retried.
func (m *Manager) requireOwned(ctx context.Context, tokenID uint64) (model.PositionState, error) {
	owner, exists, err := m.reader.OwnerOf(ctx, tokenID)
	if err != nil {
		return model.PositionState{}, err
	}
	if !exists {
		return model.PositionState{}, fmt.Errorf("position %d does not exist on-chain: %w", tokenID, fault.ErrOwnershipMismatch)
	}
	caller := m.sender.Address()
	if owner != caller {
		return model.PositionState{}, fmt.Errorf("position %d owned by %s, not %s: %w",
			tokenID, owner.Hex(), caller.Hex(), fault.ErrOwnershipMismatch)
	}

	state, exists, err := m.reader.Position(ctx, tokenID)
	if err != nil {
		return model.PositionState{}, err
	}
	if !exists {
		return model.PositionState{}, fmt.Errorf("position %d does not exist on-chain: %w", tokenID, fault.ErrOwnershipMismatch)
	}
	return state, nil
}

// amountMin scales a desired amount by (1 - slippage tolerance).
func (m *Manager) amountMin(desired *big.Int) *big.Int {
	if desired == nil || desired.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(desired, big.NewInt(slippageDenominator-m.slippageBp))
	return scaled.Quo(scaled, big.NewInt(slippageDenominator))
}

func (m *Manager) deadlineAt() *big.Int {
	return big.NewInt(time.Now().Add(m.deadline).Unix())
}

func (m *Manager) record(op model.Operation, tokenID uint64, receipt *types.Receipt, opErr error) {
	if m.history == nil {
		return
	}

	rec := model.OperationRecord{
		ID:        uuid.NewString(),
		Op:        op,
		Address:   m.sender.Address().Hex(),
		TokenID:   tokenID,
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

	if err := m.history.PutOperations([]model.OperationRecord{rec}); err != nil {
		m.logger.Warn("record operation failed", zap.Error(err), zap.String("op", string(op)))
	}
}

// ExtractMintedTokenID scans receipt logs for the position contract's
// ERC-721 Transfer from the zero address and returns the minted tokenId.
func ExtractMintedTokenID(receipt *types.Receipt, contract common.Address) (uint64, error) {
	if receipt == nil {
		return 0, fmt.Errorf("nil receipt")
	}
	for _, entry := range receipt.Logs {
		if entry.Address != contract {
			continue
		}
		if len(entry.Topics) != 4 || entry.Topics[0] != TransferTopic {
			continue
		}
		if entry.Topics[1] != (common.Hash{}) {
			continue
		}
		tokenID := new(big.Int).SetBytes(entry.Topics[3].Bytes())
		if !tokenID.IsUint64() {
			return 0, fmt.Errorf("minted token id out of range: %s", tokenID)
		}
		return tokenID.Uint64(), nil
	}
	return 0, fmt.Errorf("no mint transfer event in receipt %s", receipt.TxHash.Hex())
}

func validateMint(params MintParams) error {
	if params.TickLower >= params.TickUpper {
		return fmt.Errorf("tick lower %d must be below tick upper %d", params.TickLower, params.TickUpper)
	}
	if !model.FeeTiers[params.Fee] {
		return fmt.Errorf("unsupported fee tier: %d", params.Fee)
	}
	if orZero(params.Amount0Desired).Sign() == 0 && orZero(params.Amount1Desired).Sign() == 0 {
		return fmt.Errorf("both amounts cannot be zero")
	}
	if orZero(params.Amount0Desired).Sign() < 0 || orZero(params.Amount1Desired).Sign() < 0 {
		return fmt.Errorf("desired amounts cannot be negative")
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
