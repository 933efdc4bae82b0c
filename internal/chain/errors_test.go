package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityPortal/internal/fault"
)

func encodeErrorString(t *testing.T, reason string) []byte {
	t.Helper()

	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("new string type: %v", err)
	}
	payload, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack reason: %v", err)
	}
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, payload...)
}

func TestDecodeRevertReason(t *testing.T) {
	data := encodeErrorString(t, "Price slippage check")

	reason, ok := DecodeRevertReason(data)
	if !ok {
		t.Fatalf("expected decodable revert data")
	}
	if reason != "Price slippage check" {
		t.Fatalf("reason mismatch: %q", reason)
	}
}

func TestDecodeRevertReasonHonorsOffset(t *testing.T) {
	// Some nodes return a non-minimal encoding: the offset word points
	// past an extra padding word rather than straight at position 0x20.
	reason := []byte("custom revert")
	payload := make([]byte, 0, 4*32)
	offset := make([]byte, 32)
	offset[31] = 0x40
	payload = append(payload, offset...)
	payload = append(payload, make([]byte, 32)...) // padding word
	length := make([]byte, 32)
	length[31] = byte(len(reason))
	payload = append(payload, length...)
	padded := make([]byte, 32)
	copy(padded, reason)
	payload = append(payload, padded...)
	data := append([]byte{0x08, 0xc3, 0x79, 0xa0}, payload...)

	got, ok := DecodeRevertReason(data)
	if !ok {
		t.Fatalf("offset encoding should decode")
	}
	if got != "custom revert" {
		t.Fatalf("reason mismatch: %q", got)
	}
}

func TestDecodeRevertReasonRejectsOutOfBoundsWords(t *testing.T) {
	data := encodeErrorString(t, "hi")

	// Length word claiming far more bytes than the payload carries.
	oversized := make([]byte, len(data))
	copy(oversized, data)
	oversized[4+32+16] = 0xff
	if _, ok := DecodeRevertReason(oversized); ok {
		t.Fatalf("oversized length should not decode")
	}

	// Offset word pointing past the payload.
	stray := make([]byte, len(data))
	copy(stray, data)
	stray[4+16] = 0xff
	if _, ok := DecodeRevertReason(stray); ok {
		t.Fatalf("out-of-range offset should not decode")
	}
}

func TestDecodeRevertReasonRejectsGarbage(t *testing.T) {
	if _, ok := DecodeRevertReason([]byte{0x01, 0x02}); ok {
		t.Fatalf("short data should not decode")
	}
	if _, ok := DecodeRevertReason(make([]byte, 100)); ok {
		t.Fatalf("wrong selector should not decode")
	}
}

func TestRevertErrorMapping(t *testing.T) {
	hash := common.HexToHash("0xabc")

	if err := RevertError(hash, "Price slippage check"); !errors.Is(err, fault.ErrSlippage) {
		t.Fatalf("slippage revert not mapped: %v", err)
	}
	if err := RevertError(hash, "nonce already used"); !errors.Is(err, fault.ErrNonceUsed) {
		t.Fatalf("nonce revert not mapped: %v", err)
	}
	if err := RevertError(hash, "invalid signature"); !errors.Is(err, fault.ErrSignatureInvalid) {
		t.Fatalf("signature revert not mapped: %v", err)
	}
	if err := RevertError(hash, ""); !errors.Is(err, fault.ErrReverted) {
		t.Fatalf("empty reason not mapped to generic revert: %v", err)
	}
	if err := RevertError(hash, "whatever else"); !errors.Is(err, fault.ErrReverted) {
		t.Fatalf("unknown reason not mapped to generic revert: %v", err)
	}
}
