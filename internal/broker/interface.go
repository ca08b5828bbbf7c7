// Package broker defines the market data and order execution ports the
// PMCC engine trades through, plus resilience wrappers around them.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// OrderSide is the direction of a market order.
type OrderSide string

const (
	// Buy opens or increases a long position (or closes a short one).
	Buy OrderSide = "buy"
	// Sell opens a short position (or closes a long one).
	Sell OrderSide = "sell"
)

// ErrQuoteUnavailable is returned when a mark or delta cannot be resolved
// for a contract. Selector candidates hitting this are skipped, not fatal.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// OrderError signals a rejected or otherwise unfilled order. The engine
// must not mutate position state for the affected leg when it sees one.
type OrderError struct {
	Contract models.OptionContract
	Side     OrderSide
	Reason   string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s %s failed: %s", e.Side, e.Contract, e.Reason)
}

// Quote is the live quote for a fully specified contract. Delta is nil when
// the venue could not produce Greeks for the contract.
type Quote struct {
	// Mark is the per-contract dollar value (mid price x contract multiplier).
	Mark  float64
	Delta *float64
}

// MarketData supplies spot prices, chain snapshots and per-contract quotes.
// Chains are scoped to the trading class whose name exactly matches the
// ticker; implementations must exclude non-standard classes, not guess.
type MarketData interface {
	GetUnderlyingPrice(ctx context.Context, symbol string) (float64, error)
	GetOptionChain(ctx context.Context, symbol string) (models.Chain, error)
	GetOptionQuote(ctx context.Context, contract models.OptionContract) (*Quote, error)
}

// OrderExecutor accepts single-lot market orders and blocks until the order
// resolves to a fill or an error. The returned fill price is per contract
// (price x multiplier). Bounded waiting is the implementation's problem.
type OrderExecutor interface {
	PlaceMarketOrder(ctx context.Context, contract models.OptionContract,
		side OrderSide, quantity int, tag string) (float64, error)
}

// Broker combines the market data and order ports behind one dependency.
type Broker interface {
	MarketData
	OrderExecutor
}

// DaysBetween calculates the number of whole days between two dates.
func DaysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	d := int(t.Sub(f).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
