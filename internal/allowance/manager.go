// Package allowance ensures a spender contract holds sufficient ERC-20
// allowance before any value-moving call. Allowances are read fresh on
// every check, never cached across calls, because they can be revoked
// externally at any time.
package allowance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ChainReader performs read-only contract calls.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TxSender signs, broadcasts and waits for a transaction.
type TxSender interface {
	Address() common.Address
	SendAndWait(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Receipt, error)
}

// Manager issues approval transactions only when the current allowance is
// insufficient.
type Manager struct {
	reader ChainReader
	sender TxSender
	logger *zap.Logger

	// padFactor multiplies the requested amount when approving, to
	// amortize future approvals without unlimited exposure.
	padFactor *big.Int
}

// NewManager builds an allowance manager. padFactor below 1 is raised
// to 1.
func NewManager(reader ChainReader, sender TxSender, padFactor int64, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if padFactor < 1 {
		padFactor = 1
	}
	return &Manager{
		reader:    reader,
		sender:    sender,
		logger:    logger,
		padFactor: big.NewInt(padFactor),
	}
}

// Allowance reads the current (owner, spender) allowance for a token.
func (m *Manager) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := erc20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	output, err := m.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}

	values, err := erc20.Unpack("allowance", output)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	current, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", values[0])
	}
	return current, nil
}

// BalanceOf reads the ERC-20 balance of an account.
func (m *Manager) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	output, err := m.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := erc20.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", values[0])
	}
	return balance, nil
}

// EnsureApproval checks the live allowance and, only when it is below
// amount, approves padFactor times the amount and waits for confirmation.
// Returns whether an approval transaction was sent. Never called for the
// native-currency leg of a transaction; native value needs no approval.
func (m *Manager) EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, nil
	}

	current, err := m.Allowance(ctx, token, m.sender.Address(), spender)
	if err != nil {
		return false, err
	}

	if current.Cmp(amount) >= 0 {
		m.logger.Debug("allowance sufficient",
			zap.String("token", token.Hex()),
			zap.String("spender", spender.Hex()),
			zap.String("allowance", current.String()),
			zap.String("required", amount.String()),
		)
		return false, nil
	}

	approveAmount := new(big.Int).Mul(amount, m.padFactor)

	erc20, err := ERC20ABI()
	if err != nil {
		return false, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("approve", spender, approveAmount)
	if err != nil {
		return false, fmt.Errorf("pack approve: %w", err)
	}

	m.logger.Info("approving spender",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", approveAmount.String()),
	)

	receipt, err := m.sender.SendAndWait(ctx, &token, nil, data, 0)
	if err != nil {
		return false, fmt.Errorf("approve %s: %w", token.Hex(), err)
	}

	m.logger.Info("approval confirmed",
		zap.String("token", token.Hex()),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return true, nil
}
