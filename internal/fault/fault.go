// Package fault defines the shared failure taxonomy for chain and claim
// operations. Every error surfaced to the CLI is classified so callers
// know whether to retry, refresh state, or stop.
package fault

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class buckets an error by what the caller should do with it.
type Class string

const (
	// ClassUserActionable means the user can fix the input and retry
	// (insufficient balance, rejected signature, wrong network).
	ClassUserActionable Class = "user_actionable"
	// ClassTransient means retrying shortly is reasonable (RPC timeout,
	// slippage, stale gas price).
	ClassTransient Class = "transient"
	// ClassStateDesync means local state no longer matches the chain;
	// a full refresh is required before any retry.
	ClassStateDesync Class = "state_desync"
	// ClassStructural means the client and contract disagree in a way no
	// user input can fix; treated as a system-level outage.
	ClassStructural Class = "structural"
	// ClassUnknown is everything else.
	ClassUnknown Class = "unknown"
)

var (
	ErrStatusUnknown     = errors.New("transaction status unknown: receipt wait timed out")
	ErrReverted          = errors.New("transaction reverted")
	ErrSlippage          = errors.New("market moved, retry with adjusted tolerance")
	ErrOwnershipMismatch = errors.New("position is not owned by the connected account")
	ErrNonceUsed         = errors.New("claim nonce already consumed on-chain")
	ErrSignatureInvalid  = errors.New("claim signature rejected by treasury")
	ErrInsufficientFunds = errors.New("insufficient native balance for gas")
	ErrSigningRejected   = errors.New("signing rejected by account provider")
	ErrClaimUnavailable  = errors.New("claim system temporarily unavailable")
	ErrOperationInFlight = errors.New("operation already in flight")
)

// Classify maps an error onto the taxonomy. Sentinels win over string
// heuristics; heuristics exist because RPC providers wrap revert data in
// free-form messages.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	switch {
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrSigningRejected):
		return ClassUserActionable
	case errors.Is(err, ErrOwnershipMismatch), errors.Is(err, ErrNonceUsed), errors.Is(err, ErrSignatureInvalid):
		return ClassStateDesync
	case errors.Is(err, ErrSlippage), errors.Is(err, ErrStatusUnknown):
		return ClassTransient
	case errors.Is(err, ErrClaimUnavailable):
		return ClassStructural
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return ClassUserActionable
	case strings.Contains(msg, "nonce") && strings.Contains(msg, "used"):
		return ClassStateDesync
	case strings.Contains(msg, "price slippage check"), strings.Contains(msg, "too little received"):
		return ClassTransient
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return ClassStructural
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "eof"):
		return ClassTransient
	}

	return ClassUnknown
}

// Retryable reports whether an error is safe to retry without a state
// refresh.
func Retryable(err error) bool {
	return Classify(err) == ClassTransient
}

// RevertSmell reports whether a gas-estimation error looks like a
// contract-level revert rather than an RPC fault.
func RevertSmell(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "always failing transaction") ||
		strings.Contains(msg, "gas required exceeds allowance")
}
