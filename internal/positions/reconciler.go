package positions

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"liquidityPortal/internal/model"
)

// cleanupTimeout bounds one async registry cleanup attempt.
const cleanupTimeout = 10 * time.Second

// Registry is the off-chain position registry surface the reconciler
// consumes.
type Registry interface {
	UserPositions(ctx context.Context, userID string) ([]model.RegistryPosition, error)
	WalletPositions(ctx context.Context, address string) ([]model.WalletPosition, error)
	CleanupBurned(ctx context.Context, tokenID uint64) error
}

// Reconciler cross-validates registry records against live chain state.
// Registered positions missing on-chain are burned and queued for
// cleanup; zero-liquidity matches are closed and excluded without
// deleting the record.
type Reconciler struct {
	registry Registry
	reader   PositionReader
	cache    *Cache
	logger   *zap.Logger
}

// NewReconciler builds a reconciler. cache may be nil.
func NewReconciler(registry Registry, reader PositionReader, cache *Cache, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		registry: registry,
		reader:   reader,
		cache:    cache,
		logger:   logger,
	}
}

// Reconcile returns the validated position set for a user. Cleanup of
// burned registry records runs asynchronously and never blocks or fails
// the returned set. The result is deterministic: reconciling twice with
// no chain change yields identical sets.
func (r *Reconciler) Reconcile(ctx context.Context, userID, address string) ([]model.ValidatedPosition, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(address); ok {
			return cached, nil
		}
	}

	registered, err := r.registry.UserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Live on-chain-derived records carry the derived fields (in-range
	// flag, USD value) the raw positions call cannot provide. Best
	// effort: their absence degrades the merge, not the validation.
	derived := make(map[uint64]model.WalletPosition)
	walletRecords, err := r.registry.WalletPositions(ctx, address)
	if err != nil {
		r.logger.Warn("wallet positions fetch failed", zap.Error(err), zap.String("address", address))
	} else {
		for _, record := range walletRecords {
			derived[record.TokenID] = record
		}
	}

	validated := make([]model.ValidatedPosition, 0, len(registered))
	var burned []uint64

	for _, record := range registered {
		state, exists, err := r.reader.Position(ctx, record.TokenID)
		if err != nil {
			return nil, err
		}

		if !exists {
			r.logger.Info("registered position absent on-chain, marking burned",
				zap.Uint64("token_id", record.TokenID))
			burned = append(burned, record.TokenID)
			continue
		}

		if state.Liquidity.Sign() == 0 {
			// Closed but not burned; the record may still carry
			// historical reward eligibility, so it stays in the registry.
			r.logger.Debug("excluding zero-liquidity position",
				zap.Uint64("token_id", record.TokenID))
			continue
		}

		merged := model.ValidatedPosition{
			State:          state,
			RegisteredAt:   record.RegisteredAt,
			RewardEligible: record.RewardEligible,
		}
		if live, ok := derived[record.TokenID]; ok {
			merged.IsInRange = live.IsInRange
			merged.CurrentValueUSD = live.CurrentValueUSD
		}
		validated = append(validated, merged)
	}

	sort.Slice(validated, func(i, j int) bool {
		return validated[i].State.TokenID < validated[j].State.TokenID
	})

	if len(burned) > 0 {
		go r.cleanupBurned(burned)
	}

	if r.cache != nil {
		r.cache.Set(address, validated)
	}
	return validated, nil
}

// cleanupBurned deletes burned registry records. Idempotent and best
// effort: failures are logged, never raised to the read path.
func (r *Reconciler) cleanupBurned(tokenIDs []uint64) {
	for _, tokenID := range tokenIDs {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		err := r.registry.CleanupBurned(ctx, tokenID)
		cancel()
		if err != nil {
			r.logger.Warn("registry cleanup failed",
				zap.Uint64("token_id", tokenID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("registry record cleaned up", zap.Uint64("token_id", tokenID))
	}
}
