package flight

import (
	"errors"
	"testing"

	"liquidityPortal/internal/fault"
)

func TestGuardRejectsConcurrentSameKey(t *testing.T) {
	guard := NewGuard()

	if err := guard.Begin("claim:0xabc"); err != nil {
		t.Fatalf("first begin failed: %v", err)
	}
	if err := guard.Begin("claim:0xabc"); !errors.Is(err, fault.ErrOperationInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	// Different key is unaffected.
	if err := guard.Begin("mint:0xabc"); err != nil {
		t.Fatalf("unrelated key blocked: %v", err)
	}

	guard.End("claim:0xabc")
	if err := guard.Begin("claim:0xabc"); err != nil {
		t.Fatalf("begin after end failed: %v", err)
	}
}
