// Package selector implements the delta-targeted option search used to pick
// both the LEAPS leg and the short leg.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// ErrNoContract is returned when no contract satisfies the delta, band and
// expiry criteria. It is a normal outcome; callers skip the action for the
// day rather than treating it as a failure.
var ErrNoContract = errors.New("no suitable contract found")

// ExpiryPolicy chooses how an expiration is picked from the chain.
type ExpiryPolicy int

const (
	// MinDTE picks the earliest expiry whose DTE is at least the floor.
	// Used for the LEAPS leg: satisfies the floor at the lowest time cost.
	MinDTE ExpiryPolicy = iota
	// NearestDTE picks the expiry whose DTE is closest to the target.
	// Used for the short leg.
	NearestDTE
)

// DeltaSide controls which side of the target a candidate delta must land on.
type DeltaSide int

const (
	// AtLeast keeps candidates with delta >= target - tolerance (long leg).
	AtLeast DeltaSide = iota
	// AtMost keeps candidates with delta <= target + tolerance (short leg).
	AtMost
)

// Params describes one option search.
type Params struct {
	Symbol         string
	Policy         ExpiryPolicy
	DTE            int     // floor for MinDTE, target for NearestDTE
	TargetDelta    float64
	DeltaTolerance float64
	Side           DeltaSide
	BandLowPct     float64  // strike band lower bound as a fraction of spot
	BandHighPct    float64  // strike band upper bound as a fraction of spot
	FloorStrike    *float64 // optional hard lower bound (exclusive), e.g. the LEAPS strike
}

// Selector searches a chain snapshot for the contract whose live delta is
// closest to target, one quote round-trip per candidate strike.
type Selector struct {
	market broker.MarketData
	logger *logrus.Logger
	now    func() time.Time
}

// New creates a Selector over the given market data port.
func New(market broker.MarketData, logger *logrus.Logger) *Selector {
	return &Selector{market: market, logger: logger, now: time.Now}
}

// Select runs one search and returns the best contract with its quoted
// delta and mark, or ErrNoContract.
func (s *Selector) Select(ctx context.Context, p Params) (*models.Selection, error) {
	spot, err := s.market.GetUnderlyingPrice(ctx, p.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching spot price: %w", err)
	}

	chain, err := s.market.GetOptionChain(ctx, p.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain: %w", err)
	}

	expiry, ok := s.chooseExpiry(chain, p)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"symbol": p.Symbol,
			"dte":    p.DTE,
		}).Info("no qualifying expiration in chain")
		return nil, ErrNoContract
	}

	lo := spot * p.BandLowPct
	hi := spot * p.BandHighPct
	if p.FloorStrike != nil && *p.FloorStrike+1 > lo {
		// Never sell below the owned strike: that flips the spread width negative.
		lo = *p.FloorStrike + 1
	}
	strikes := chain.StrikesWithin(expiry, lo, hi)
	if len(strikes) == 0 {
		s.logger.WithFields(logrus.Fields{
			"symbol": p.Symbol,
			"expiry": expiry.Format("2006-01-02"),
			"low":    lo,
			"high":   hi,
		}).Info("no strikes inside band")
		return nil, ErrNoContract
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":  p.Symbol,
		"expiry":  expiry.Format("2006-01-02"),
		"strikes": len(strikes),
	}).Debugf("scanning candidates for delta %.2f", p.TargetDelta)

	var best *models.Selection
	bestDiff := math.Inf(1)

	for _, strike := range strikes {
		contract := models.OptionContract{
			Symbol: p.Symbol,
			Strike: strike,
			Expiry: expiry,
			Right:  models.RightCall,
		}

		quote, err := s.market.GetOptionQuote(ctx, contract)
		if err != nil {
			if errors.Is(err, broker.ErrQuoteUnavailable) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WithError(err).Debugf("skipping %s: quote failed", contract)
			continue
		}
		if quote.Delta == nil || *quote.Delta == 0 {
			// No resolvable delta, candidate is excluded from the scan.
			continue
		}
		delta := *quote.Delta

		switch p.Side {
		case AtLeast:
			if delta < p.TargetDelta-p.DeltaTolerance {
				continue
			}
		case AtMost:
			if delta > p.TargetDelta+p.DeltaTolerance {
				continue
			}
		}

		// Strict less-than keeps the first (lowest) strike on ties.
		if diff := math.Abs(delta - p.TargetDelta); diff < bestDiff {
			bestDiff = diff
			best = &models.Selection{Contract: contract, Delta: delta, Mark: quote.Mark}
		}
	}

	if best == nil {
		return nil, ErrNoContract
	}

	s.logger.WithFields(logrus.Fields{
		"contract": best.Contract.String(),
		"delta":    best.Delta,
		"mark":     best.Mark,
	}).Info("selected contract")
	return best, nil
}

// chooseExpiry applies the expiry policy against the chain's expirations.
func (s *Selector) chooseExpiry(chain models.Chain, p Params) (time.Time, bool) {
	now := s.now()
	exps := chain.Expirations()

	switch p.Policy {
	case MinDTE:
		// Expirations are ascending, so the first one past the floor is the
		// earliest qualifying date.
		for _, exp := range exps {
			if models.DaysUntil(now, exp) >= p.DTE {
				return exp, true
			}
		}
		return time.Time{}, false
	case NearestDTE:
		var best time.Time
		bestDist := math.MaxInt
		for _, exp := range exps {
			dist := broker.DaysBetween(now.AddDate(0, 0, p.DTE), exp)
			if dist < bestDist {
				bestDist = dist
				best = exp
			}
		}
		return best, !best.IsZero()
	default:
		return time.Time{}, false
	}
}
