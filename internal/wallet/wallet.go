// Package wallet is the connected-account provider: it supplies the
// active address, the chain id, and a sign-and-send capability backed by
// a local private key. Account or chain changes fire registered hooks so
// derived state can be invalidated instead of restarting the process.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"liquidityPortal/internal/chain"
	"liquidityPortal/internal/fault"
)

// Wallet signs and broadcasts transactions for one account.
type Wallet struct {
	client *chain.Client
	logger *zap.Logger

	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	hooks   []func()
}

// New builds a wallet from a hex-encoded private key. The chain id is
// pinned at construction and verified against the endpoint.
func New(ctx context.Context, hexKey string, expectedChainID uint64, client *chain.Client, logger *zap.Logger) (*Wallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if expectedChainID != 0 && chainID.Uint64() != expectedChainID {
		return nil, fmt.Errorf("endpoint chain id %d does not match configured %d", chainID.Uint64(), expectedChainID)
	}

	return &Wallet{
		client:  client,
		logger:  logger,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the connected account address.
func (w *Wallet) Address() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// ChainID returns the pinned chain id.
func (w *Wallet) ChainID() *big.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return new(big.Int).Set(w.chainID)
}

// OnChange registers a hook fired when the account or chain changes.
func (w *Wallet) OnChange(fn func()) {
	w.mu.Lock()
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

// SetAccount swaps the signing key and fires change hooks.
func (w *Wallet) SetAccount(hexKey string) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	w.mu.Lock()
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	hooks := make([]func(), len(w.hooks))
	copy(hooks, w.hooks)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// SendAndWait builds, signs, broadcasts a transaction and waits for its
// receipt. A zero gasLimit estimates gas first. A reverted receipt is
// surfaced as a classified error; the receipt is still returned so callers
// can record gas usage.
func (w *Wallet) SendAndWait(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Receipt, error) {
	w.mu.RLock()
	key := w.key
	from := w.address
	chainID := w.chainID
	w.mu.RUnlock()

	nonce, err := w.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	if gasLimit == 0 {
		gasLimit, err = w.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
				return nil, fmt.Errorf("estimate gas: %w", fault.ErrInsufficientFunds)
			}
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", fault.ErrSigningRejected)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}

	hash := signed.Hash()
	w.logger.Info("tx broadcast",
		zap.String("hash", hash.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
	)

	receipt, err := w.client.WaitMined(ctx, hash)
	if err != nil {
		return nil, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason := w.revertReason(ctx, from, to, value, data, receipt.BlockNumber)
		return receipt, chain.RevertError(hash, reason)
	}

	return receipt, nil
}

// revertReason replays the call at the failing block via eth_call to
// recover the revert string. Best effort only.
func (w *Wallet) revertReason(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte, block *big.Int) string {
	ret, err := w.client.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    to,
		Value: value,
		Data:  data,
	}, block)
	if err != nil {
		return err.Error()
	}
	if reason, ok := chain.DecodeRevertReason(ret); ok {
		return reason
	}
	return ""
}
