package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifySentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{ErrInsufficientFunds, ClassUserActionable},
		{ErrSigningRejected, ClassUserActionable},
		{ErrOwnershipMismatch, ClassStateDesync},
		{ErrNonceUsed, ClassStateDesync},
		{ErrSignatureInvalid, ClassStateDesync},
		{ErrSlippage, ClassTransient},
		{ErrStatusUnknown, ClassTransient},
		{ErrClaimUnavailable, ClassStructural},
		{context.DeadlineExceeded, ClassTransient},
	}

	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestClassifyWrapped(t *testing.T) {
	err := fmt.Errorf("decrease liquidity 7: %w", ErrOwnershipMismatch)
	if got := Classify(err); got != ClassStateDesync {
		t.Fatalf("wrapped sentinel classified as %s", got)
	}
}

func TestClassifyHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want Class
	}{
		{"insufficient funds for gas * price + value", ClassUserActionable},
		{"execution reverted", ClassStructural},
		{"Price slippage check", ClassTransient},
		{"dial tcp: i/o timeout", ClassTransient},
		{"something else entirely", ClassUnknown},
	}

	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestRevertSmell(t *testing.T) {
	if !RevertSmell(errors.New("execution reverted: claim window closed")) {
		t.Fatalf("expected revert smell")
	}
	if !RevertSmell(errors.New("gas required exceeds allowance (21000)")) {
		t.Fatalf("expected revert smell for gas allowance error")
	}
	if RevertSmell(errors.New("connection refused")) {
		t.Fatalf("network error should not smell like a revert")
	}
	if RevertSmell(nil) {
		t.Fatalf("nil error should not smell like a revert")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrSlippage) {
		t.Fatalf("slippage should be retryable")
	}
	if Retryable(ErrOwnershipMismatch) {
		t.Fatalf("ownership mismatch must not be retryable")
	}
}
