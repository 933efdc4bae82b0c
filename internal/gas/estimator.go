// Package gas estimates transaction cost per operation type, in native
// currency and fiat, for display before the user signs.
package gas

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPortal/internal/model"
)

const weiPerNative = 1e18

// DefaultGasLimits is the per-operation gas limit table. Values are
// deliberately generous; they price a worst case, they do not cap the
// actual transaction.
var DefaultGasLimits = map[model.Operation]uint64{
	model.OpApprove:  60000,
	model.OpMint:     550000,
	model.OpIncrease: 350000,
	model.OpDecrease: 250000,
	model.OpCollect:  180000,
	model.OpBurn:     120000,
	model.OpClaim:    200000,
}

// PriceSource supplies the current gas price.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimate is one operation's cost projection.
type Estimate struct {
	Op       model.Operation `json:"op"`
	GasLimit uint64          `json:"gas_limit"`
	GasPrice *big.Int        `json:"gas_price_wei"`
	CostWei  *big.Int        `json:"cost_wei"`
	Native   decimal.Decimal `json:"cost_native"`
	Fiat     decimal.Decimal `json:"cost_fiat"`
}

// Estimator caches the gas price on a fixed refresh interval rather than
// per call. When the price is stale or unreachable it falls back to a
// conservative hardcoded floor instead of blocking.
type Estimator struct {
	source    PriceSource
	logger    *zap.Logger
	interval  time.Duration
	floor     *big.Int
	fiatPrice decimal.Decimal
	limits    map[model.Operation]uint64

	mu        sync.RWMutex
	gasPrice  *big.Int
	refreshed time.Time
}

// NewEstimator builds a gas estimator. floorGwei guards against a dead
// price source; fiatPrice is the native currency's fiat quote.
func NewEstimator(source PriceSource, interval time.Duration, floorGwei int64, fiatPrice float64, limits map[model.Operation]uint64, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if floorGwei <= 0 {
		floorGwei = 3
	}
	if limits == nil {
		limits = DefaultGasLimits
	}
	return &Estimator{
		source:    source,
		logger:    logger,
		interval:  interval,
		floor:     new(big.Int).Mul(big.NewInt(floorGwei), big.NewInt(1e9)),
		fiatPrice: decimal.NewFromFloat(fiatPrice),
		limits:    limits,
	}
}

// Run refreshes the gas price on the fixed interval until ctx is
// cancelled.
func (e *Estimator) Run(ctx context.Context) error {
	e.Refresh(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Refresh(ctx)
		}
	}
}

// Refresh fetches the gas price once, synchronously.
func (e *Estimator) Refresh(ctx context.Context) {
	price, err := e.source.SuggestGasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas price refresh failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.gasPrice = price
	e.refreshed = time.Now()
	e.mu.Unlock()
}

// GasPrice returns the cached price, or the floor when the cache is
// stale or was never populated.
func (e *Estimator) GasPrice() *big.Int {
	e.mu.RLock()
	price := e.gasPrice
	refreshed := e.refreshed
	e.mu.RUnlock()

	if price == nil || time.Since(refreshed) > 3*e.interval {
		return new(big.Int).Set(e.floor)
	}
	return new(big.Int).Set(price)
}

// Estimate projects the cost of one operation type.
func (e *Estimator) Estimate(op model.Operation) Estimate {
	limit := e.limits[op]
	if limit == 0 {
		limit = DefaultGasLimits[op]
	}

	price := e.GasPrice()
	costWei := new(big.Int).Mul(price, new(big.Int).SetUint64(limit))

	native := decimal.NewFromBigInt(costWei, 0).Div(decimal.NewFromFloat(weiPerNative))
	return Estimate{
		Op:       op,
		GasLimit: limit,
		GasPrice: price,
		CostWei:  costWei,
		Native:   native,
		Fiat:     native.Mul(e.fiatPrice).Round(2),
	}
}
