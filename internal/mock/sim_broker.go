// Package mock provides a simulated broker for paper trading and tests: a
// synthetic option chain with distance-decay deltas and instant fills.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
	"github.com/eddiefleurent/pmcc_bot/internal/util"
)

// SimBroker implements broker.Broker over a generated chain. Prices are
// deterministic given the spot, so daily runs in paper mode are repeatable.
type SimBroker struct {
	mu   sync.Mutex
	spot float64
	now  func() time.Time

	// Fills counts placed orders per side for test assertions.
	Fills map[broker.OrderSide]int
	// FailOrders makes every PlaceMarketOrder return an OrderError.
	FailOrders bool
}

// Ensure SimBroker implements Broker at compile time.
var _ broker.Broker = (*SimBroker)(nil)

// NewSimBroker creates a simulator with the underlying at spot.
func NewSimBroker(spot float64) *SimBroker {
	return &SimBroker{
		spot:  spot,
		now:   time.Now,
		Fills: make(map[broker.OrderSide]int),
	}
}

// SetSpot moves the simulated underlying price.
func (s *SimBroker) SetSpot(spot float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spot = spot
}

// SetClock overrides the simulator clock, mainly for tests.
func (s *SimBroker) SetClock(now func() time.Time) {
	s.now = now
}

// GetUnderlyingPrice returns the simulated spot price.
func (s *SimBroker) GetUnderlyingPrice(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spot, nil
}

// GetOptionChain generates monthly expirations out to two years with $5
// strikes spanning 60-160% of spot, mirroring a liquid index-option chain.
func (s *SimBroker) GetOptionChain(_ context.Context, _ string) (models.Chain, error) {
	s.mu.Lock()
	spot := s.spot
	s.mu.Unlock()

	const strikeInterval = 5.0
	low := util.RoundToTick(spot*0.6, strikeInterval)
	high := util.RoundToTick(spot*1.6, strikeInterval)

	var strikes []float64
	for strike := low; strike <= high; strike += strikeInterval {
		strikes = append(strikes, strike)
	}

	chain := make(models.Chain)
	base := s.now().UTC().Truncate(24 * time.Hour)
	for month := 1; month <= 24; month++ {
		exp := base.AddDate(0, month, 0)
		chain[exp] = strikes
	}
	return chain, nil
}

// GetOptionQuote prices a call from its moneyness and time value. Delta
// decays with distance from spot, which is enough structure for delta
// targeting to behave like it does on a real chain.
func (s *SimBroker) GetOptionQuote(_ context.Context, contract models.OptionContract) (*broker.Quote, error) {
	s.mu.Lock()
	spot := s.spot
	s.mu.Unlock()

	delta := callDelta(spot, contract.Strike)
	dte := models.DaysUntil(s.now(), contract.Expiry)

	intrinsic := math.Max(spot-contract.Strike, 0)
	timeValue := spot * 0.04 * math.Sqrt(float64(dte)/365.0) * math.Exp(-math.Abs(spot-contract.Strike)/spot*2)
	perShare := util.RoundToTick(intrinsic+timeValue, 0.01)

	return &broker.Quote{
		Mark:  perShare * models.SharesPerContract,
		Delta: &delta,
	}, nil
}

// PlaceMarketOrder fills instantly at the quoted mark.
func (s *SimBroker) PlaceMarketOrder(ctx context.Context, contract models.OptionContract,
	side broker.OrderSide, quantity int, _ string) (float64, error) {
	if s.FailOrders {
		return 0, &broker.OrderError{Contract: contract, Side: side, Reason: "simulated rejection"}
	}

	quote, err := s.GetOptionQuote(ctx, contract)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.Fills[side] += quantity
	s.mu.Unlock()

	return quote.Mark, nil
}

// callDelta approximates a call delta from moneyness alone: 0.5 at the
// money, approaching 1 deep in and 0 far out.
func callDelta(spot, strike float64) float64 {
	distance := (spot - strike) / spot
	return util.Clamp(0.5+distance*3.5, 0.01, 0.99)
}
