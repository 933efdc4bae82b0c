// Package flight provides a per-key single-flight guard. Wallet signing
// can take an unbounded amount of time, so a logical action must refuse a
// second submission while the first is still pending.
package flight

import (
	"fmt"
	"sync"

	"liquidityPortal/internal/fault"
)

// Guard tracks in-flight logical actions by key.
type Guard struct {
	mu   sync.Mutex
	busy map[string]bool
}

// NewGuard builds an empty guard.
func NewGuard() *Guard {
	return &Guard{busy: make(map[string]bool)}
}

// Begin marks key as in flight. It fails if the key is already busy.
func (g *Guard) Begin(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[key] {
		return fmt.Errorf("%s: %w", key, fault.ErrOperationInFlight)
	}
	g.busy[key] = true
	return nil
}

// End releases key.
func (g *Guard) End(key string) {
	g.mu.Lock()
	delete(g.busy, key)
	g.mu.Unlock()
}
