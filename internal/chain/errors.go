package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPortal/internal/fault"
)

// errorStringSelector is the 4-byte selector of Error(string), the
// solidity revert payload prefix.
var errorStringSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

func statusUnknownError(hash common.Hash) error {
	return fmt.Errorf("tx %s: %w", hash.Hex(), fault.ErrStatusUnknown)
}

// DecodeRevertReason extracts the human-readable reason from Error(string)
// revert data. Returns ok=false when the payload is not that shape.
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < 4+32+32 {
		return "", false
	}
	if data[0] != errorStringSelector[0] || data[1] != errorStringSelector[1] ||
		data[2] != errorStringSelector[2] || data[3] != errorStringSelector[3] {
		return "", false
	}

	payload := data[4:]
	// offset word, then length word at the offset, then the string bytes.
	offset := new(big.Int).SetBytes(payload[:32])
	if !offset.IsInt64() || offset.Int64()+32 > int64(len(payload)) {
		return "", false
	}
	start := offset.Int64()
	length := new(big.Int).SetBytes(payload[start : start+32])
	if !length.IsInt64() || start+32+length.Int64() > int64(len(payload)) {
		return "", false
	}
	return string(payload[start+32 : start+32+length.Int64()]), true
}

// RevertError wraps a reverted receipt into a classified error. Known
// revert reasons map onto taxonomy sentinels so callers can errors.Is on
// them.
func RevertError(hash common.Hash, reason string) error {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "price slippage check"), strings.Contains(lower, "slippage"):
		return fmt.Errorf("tx %s: %w", hash.Hex(), fault.ErrSlippage)
	case strings.Contains(lower, "nonce") && (strings.Contains(lower, "used") || strings.Contains(lower, "invalid")):
		return fmt.Errorf("tx %s: %w", hash.Hex(), fault.ErrNonceUsed)
	case strings.Contains(lower, "invalid signature"), strings.Contains(lower, "bad signature"):
		return fmt.Errorf("tx %s: %w", hash.Hex(), fault.ErrSignatureInvalid)
	case reason == "":
		return fmt.Errorf("tx %s: %w", hash.Hex(), fault.ErrReverted)
	default:
		return fmt.Errorf("tx %s reverted: %s: %w", hash.Hex(), reason, fault.ErrReverted)
	}
}
