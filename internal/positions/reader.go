package positions

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"liquidityPortal/internal/model"
)

// ChainCaller performs read-only contract calls.
type ChainCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader provides typed reads against the position manager contract.
type Reader struct {
	caller   ChainCaller
	contract common.Address
}

// NewReader builds a Reader for the position manager at contract.
func NewReader(caller ChainCaller, contract common.Address) *Reader {
	return &Reader{caller: caller, contract: contract}
}

// Position reads live position state for a tokenId. A burned tokenId
// reverts on-chain; that surfaces here as exists=false, not an error.
func (r *Reader) Position(ctx context.Context, tokenID uint64) (model.PositionState, bool, error) {
	mgr, err := ManagerABI()
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("parse manager abi: %w", err)
	}

	data, err := mgr.Pack("positions", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("pack positions: %w", err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		if isNonexistentTokenErr(err) {
			return model.PositionState{}, false, nil
		}
		return model.PositionState{}, false, fmt.Errorf("call positions %d: %w", tokenID, err)
	}

	values, err := mgr.Unpack("positions", output)
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("unpack positions %d: %w", tokenID, err)
	}
	if len(values) != 12 {
		return model.PositionState{}, false, fmt.Errorf("positions %d: unexpected output arity %d", tokenID, len(values))
	}

	state := model.PositionState{TokenID: tokenID}

	token0, ok := values[2].(common.Address)
	if !ok {
		return model.PositionState{}, false, fmt.Errorf("positions %d: unexpected token0 type %T", tokenID, values[2])
	}
	token1, ok := values[3].(common.Address)
	if !ok {
		return model.PositionState{}, false, fmt.Errorf("positions %d: unexpected token1 type %T", tokenID, values[3])
	}
	state.Token0 = token0.Hex()
	state.Token1 = token1.Hex()

	fee, err := asBigInt(values[4])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d fee: %w", tokenID, err)
	}
	state.Fee = uint32(fee.Uint64())

	tickLower, err := asBigInt(values[5])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d tickLower: %w", tokenID, err)
	}
	tickUpper, err := asBigInt(values[6])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d tickUpper: %w", tokenID, err)
	}
	state.TickLower = int32(tickLower.Int64())
	state.TickUpper = int32(tickUpper.Int64())

	liquidity, err := asBigInt(values[7])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d liquidity: %w", tokenID, err)
	}
	state.Liquidity = liquidity

	owed0, err := asBigInt(values[10])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d tokensOwed0: %w", tokenID, err)
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return model.PositionState{}, false, fmt.Errorf("positions %d tokensOwed1: %w", tokenID, err)
	}
	state.TokensOwed0 = owed0
	state.TokensOwed1 = owed1

	return state, true, nil
}

// OwnerOf returns the current owner of a tokenId. A burned tokenId
// surfaces as exists=false.
func (r *Reader) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, bool, error) {
	mgr, err := ManagerABI()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("parse manager abi: %w", err)
	}

	data, err := mgr.Pack("ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Address{}, false, fmt.Errorf("pack ownerOf: %w", err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		if isNonexistentTokenErr(err) {
			return common.Address{}, false, nil
		}
		return common.Address{}, false, fmt.Errorf("call ownerOf %d: %w", tokenID, err)
	}

	values, err := mgr.Unpack("ownerOf", output)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("unpack ownerOf %d: %w", tokenID, err)
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, false, fmt.Errorf("ownerOf %d: unexpected type %T", tokenID, values[0])
	}
	return owner, true, nil
}

// isNonexistentTokenErr matches the revert shapes the position manager
// emits for burned or never-minted token ids.
func isNonexistentTokenErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid token id") ||
		strings.Contains(msg, "nonexistent token") ||
		strings.Contains(msg, "execution reverted")
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
