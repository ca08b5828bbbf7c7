// Package strategy implements the PMCC decision engine: the daily
// orchestrator that sequences stop checks, leg initiation and short-leg
// management, and the pure roll/close rules it applies.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/journal"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
	"github.com/eddiefleurent/pmcc_bot/internal/risk"
	"github.com/eddiefleurent/pmcc_bot/internal/selector"
	"github.com/eddiefleurent/pmcc_bot/internal/storage"
)

// Config holds the strategy parameters for one underlying.
type Config struct {
	Symbol string

	LeapsMinDTE         int
	LeapsDeltaTarget    float64
	LeapsDeltaTolerance float64
	LeapsBandLowPct     float64
	LeapsBandHighPct    float64

	ShortDTETarget      int
	ShortDeltaTarget    float64
	ShortDeltaTolerance float64
	ShortBandLowPct     float64
	ShortBandHighPct    float64

	ShortLimits ShortLegLimits
	StopLimits  risk.Limits
}

// Sink receives journal events and free-form notifications. Both are
// fire-and-forget for the strategy.
type Sink interface {
	Record(event journal.Event)
	Notify(message string)
}

// PMCCStrategy runs the daily management cycle for one underlying.
type PMCCStrategy struct {
	cfg      Config
	broker   broker.Broker
	selector *selector.Selector
	risk     *risk.Evaluator
	storage  storage.Interface
	sink     Sink
	logger   *logrus.Logger
	now      func() time.Time
}

// New creates the strategy with its collaborators.
func New(cfg Config, b broker.Broker, sel *selector.Selector, st storage.Interface,
	sink Sink, logger *logrus.Logger) *PMCCStrategy {
	return &PMCCStrategy{
		cfg:      cfg,
		broker:   b,
		selector: sel,
		risk:     risk.NewEvaluator(cfg.StopLimits),
		storage:  st,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the strategy clock, mainly for tests.
func (p *PMCCStrategy) SetClock(now func() time.Time) { p.now = now }

// RunDaily performs one daily management invocation. The stop-loss check
// always runs before any new position action; unreadable state aborts the
// run before any order is placed.
func (p *PMCCStrategy) RunDaily(ctx context.Context) error {
	log := p.logger.WithField("symbol", p.cfg.Symbol)
	log.Info("starting daily PMCC management")

	state, err := p.storage.GetState(p.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("loading position state: %w", err)
	}

	// Stop-loss evaluation strictly precedes every other action.
	if state.HasLeaps() && !state.StopLossTriggered {
		halted, err := p.checkStops(ctx, state)
		if err != nil {
			return err
		}
		if halted {
			log.Warn("stop loss triggered - strategy halted")
			return nil
		}
	}

	// Initiate the LEAPS leg if none is open and no stop is latched.
	if !state.HasLeaps() && !state.StopLossTriggered {
		if err := p.openLeaps(ctx, state); err != nil {
			return err
		}
	}

	// Manage or initiate the short leg.
	if state.HasShort() {
		if err := p.manageShortLeg(ctx, state); err != nil {
			return err
		}
	} else if state.HasLeaps() && !state.StopLossTriggered {
		p.openShort(ctx, state)
	}

	p.reportStatus(ctx, state)
	return nil
}

// checkStops evaluates the stop tiers and liquidates everything when one
// fires. Returns true when the strategy halted.
func (p *PMCCStrategy) checkStops(ctx context.Context, state *models.PMCCState) (bool, error) {
	leapsQuote, err := p.broker.GetOptionQuote(ctx, state.LeapsContract())
	if err != nil {
		// Without a LEAPS mark no stop decision is possible, and no other
		// action may precede the stop check.
		return false, fmt.Errorf("fetching LEAPS mark for stop check: %w", err)
	}

	var shortMark *float64
	if state.HasShort() {
		shortQuote, err := p.broker.GetOptionQuote(ctx, state.ShortContract())
		if err != nil {
			p.logger.WithError(err).Warn("short leg mark unavailable, evaluating stops without it")
		} else {
			shortMark = &shortQuote.Mark
		}
	}

	before := *state.LeapsHighWaterMark
	decision := p.risk.Evaluate(state, leapsQuote.Mark, shortMark)
	if *state.LeapsHighWaterMark > before {
		p.logger.Infof("new high water mark: $%.2f", *state.LeapsHighWaterMark)
		if err := p.storage.SetState(state); err != nil {
			return false, fmt.Errorf("persisting high water mark: %w", err)
		}
	}

	if !decision.Triggered {
		return false, nil
	}

	p.logger.WithField("reason", decision.Reason).Warn("STOP LOSS TRIGGERED")
	leapsLoss := *state.LeapsOriginalCost - leapsQuote.Mark
	p.sink.Notify(journal.FormatStopLossAlert(p.cfg.Symbol, decision.Reason, leapsLoss))

	return p.liquidateAll(ctx, state, decision.Reason)
}

// liquidateAll closes the short leg first, then the LEAPS leg, and latches
// the stop flag. An order failure leaves state untouched for retry on the
// next run.
func (p *PMCCStrategy) liquidateAll(ctx context.Context, state *models.PMCCState, reason string) (bool, error) {
	p.logger.Warn("liquidating all positions")

	if state.HasShort() {
		if !p.closeShort(ctx, state, "STOP LOSS - closing short") {
			return false, fmt.Errorf("stop-loss liquidation: short leg close failed")
		}
	}

	contract := state.LeapsContract()
	fill, err := p.broker.PlaceMarketOrder(ctx, contract, broker.Sell, 1, orderTag("stop"))
	if err != nil {
		return false, fmt.Errorf("stop-loss liquidation: LEAPS close failed: %w", err)
	}

	pnl := fill - *state.LeapsOriginalCost
	state.RealizedPnL += pnl
	state.ClearLeaps()
	state.ClearShort()
	state.StopLossTriggered = true

	if err := p.storage.SetState(state); err != nil {
		return false, fmt.Errorf("persisting liquidated state: %w", err)
	}

	p.logger.Infof("closed LEAPS @ $%.2f, P&L $%.2f, final realized P&L $%.2f",
		fill/models.SharesPerContract, pnl, state.RealizedPnL)
	p.sink.Record(journal.Event{
		Timestamp:     p.now(),
		Action:        "SELL_TO_CLOSE",
		LegType:       journal.LegLeaps,
		Symbol:        p.cfg.Symbol,
		Strike:        contract.Strike,
		Expiry:        contract.Expiry,
		Price:         fill / models.SharesPerContract,
		PnL:           pnl,
		CumulativePnL: state.RealizedPnL,
		Note:          reason,
	})

	return true, nil
}

// openLeaps searches for and buys the LEAPS leg. A failed search or order
// skips the action for the day.
func (p *PMCCStrategy) openLeaps(ctx context.Context, state *models.PMCCState) error {
	p.logger.Info("no LEAPS position - initiating setup")

	sel, err := p.selector.Select(ctx, selector.Params{
		Symbol:         p.cfg.Symbol,
		Policy:         selector.MinDTE,
		DTE:            p.cfg.LeapsMinDTE,
		TargetDelta:    p.cfg.LeapsDeltaTarget,
		DeltaTolerance: p.cfg.LeapsDeltaTolerance,
		Side:           selector.AtLeast,
		BandLowPct:     p.cfg.LeapsBandLowPct,
		BandHighPct:    p.cfg.LeapsBandHighPct,
	})
	if err != nil {
		if errors.Is(err, selector.ErrNoContract) {
			p.logger.Infof("no suitable LEAPS found with DTE >= %d, skipping for today", p.cfg.LeapsMinDTE)
			return nil
		}
		return fmt.Errorf("LEAPS search: %w", err)
	}

	fill, err := p.broker.PlaceMarketOrder(ctx, sel.Contract, broker.Buy, 1, orderTag("leaps"))
	if err != nil {
		p.logger.WithError(err).Error("LEAPS buy failed, no state change")
		return nil
	}

	state.OpenLeaps(sel.Contract.Strike, sel.Contract.Expiry, fill, p.now())
	if err := p.storage.SetState(state); err != nil {
		return fmt.Errorf("persisting LEAPS entry: %w", err)
	}

	stopLevel := fill * (1 - p.cfg.StopLimits.LeapsStopLossPct/100)
	p.logger.Infof("bought LEAPS %s @ $%.2f (delta %.3f), stop loss at $%.2f",
		sel.Contract, fill/models.SharesPerContract, sel.Delta, stopLevel)

	p.sink.Record(journal.Event{
		Timestamp:     p.now(),
		Action:        "BUY",
		LegType:       journal.LegLeaps,
		Symbol:        p.cfg.Symbol,
		Strike:        sel.Contract.Strike,
		Expiry:        sel.Contract.Expiry,
		Price:         fill / models.SharesPerContract,
		Delta:         sel.Delta,
		CumulativePnL: state.RealizedPnL,
		Note:          "Initial LEAPS purchase",
	})
	return nil
}

// openShort sells a fresh short call against the LEAPS leg. Every failure
// path leaves the leg flat until the next run.
func (p *PMCCStrategy) openShort(ctx context.Context, state *models.PMCCState) {
	p.logger.Info("no short call - selling new one")

	floor := *state.LeapsStrike
	sel, err := p.selector.Select(ctx, selector.Params{
		Symbol:         p.cfg.Symbol,
		Policy:         selector.NearestDTE,
		DTE:            p.cfg.ShortDTETarget,
		TargetDelta:    p.cfg.ShortDeltaTarget,
		DeltaTolerance: p.cfg.ShortDeltaTolerance,
		Side:           selector.AtMost,
		BandLowPct:     p.cfg.ShortBandLowPct,
		BandHighPct:    p.cfg.ShortBandHighPct,
		FloorStrike:    &floor,
	})
	if err != nil {
		if errors.Is(err, selector.ErrNoContract) {
			p.logger.Infof("no suitable short call above LEAPS strike $%.2f, staying flat", floor)
		} else {
			p.logger.WithError(err).Error("short call search failed")
		}
		return
	}

	fill, err := p.broker.PlaceMarketOrder(ctx, sel.Contract, broker.Sell, 1, orderTag("short"))
	if err != nil {
		p.logger.WithError(err).Error("short sale failed, no state change")
		return
	}

	state.OpenShort(sel.Contract.Strike, sel.Contract.Expiry, fill)
	if err := p.storage.SetState(state); err != nil {
		p.logger.WithError(err).Error("persisting short entry failed")
		return
	}

	p.logger.Infof("sold short call %s, premium $%.2f (delta %.3f)",
		sel.Contract, fill/models.SharesPerContract, sel.Delta)

	p.sink.Record(journal.Event{
		Timestamp:     p.now(),
		Action:        "SELL",
		LegType:       journal.LegShort,
		Symbol:        p.cfg.Symbol,
		Strike:        sel.Contract.Strike,
		Expiry:        sel.Contract.Expiry,
		Price:         fill / models.SharesPerContract,
		Delta:         sel.Delta,
		CumulativePnL: state.RealizedPnL,
		Note:          "Sold short call",
	})
}

// manageShortLeg applies the roll/close decision engine to the open short
// leg. At most one close/roll order pair is placed per invocation.
func (p *PMCCStrategy) manageShortLeg(ctx context.Context, state *models.PMCCState) error {
	quote, err := p.broker.GetOptionQuote(ctx, state.ShortContract())
	if err != nil {
		p.logger.WithError(err).Warn("short leg quote unavailable, holding")
		return nil
	}
	delta := 0.0
	if quote.Delta != nil {
		delta = *quote.Delta
	}

	premium := *state.ShortOriginalPremium
	action, reason := DecideShortLeg(premium, quote.Mark, delta, p.cfg.ShortLimits)

	p.logger.WithFields(logrus.Fields{
		"contract": state.ShortContract().String(),
		"delta":    delta,
		"pnl":      premium - quote.Mark,
		"action":   string(action),
	}).Info("short leg decision")

	switch action {
	case ActionCloseLoss, ActionCloseProfit:
		p.closeShort(ctx, state, reason)
	case ActionRoll:
		// A roll is a close immediately followed by a fresh sale; if the
		// re-sell finds nothing the leg stays flat until the next run.
		p.logger.Info("rolling short call")
		if p.closeShort(ctx, state, "Rolling to new position") {
			p.openShort(ctx, state)
		}
	case ActionHold:
	}
	return nil
}

// closeShort buys the short leg back at market. Returns true when the leg
// was closed and state persisted; an order failure leaves state untouched.
func (p *PMCCStrategy) closeShort(ctx context.Context, state *models.PMCCState, reason string) bool {
	contract := state.ShortContract()
	fill, err := p.broker.PlaceMarketOrder(ctx, contract, broker.Buy, 1, orderTag("btc"))
	if err != nil {
		p.logger.WithError(err).Error("short close failed, no state change")
		return false
	}

	pnl := *state.ShortOriginalPremium - fill
	state.RealizedPnL += pnl
	state.ClearShort()

	if err := p.storage.SetState(state); err != nil {
		p.logger.WithError(err).Error("persisting short close failed")
		return false
	}

	p.logger.Infof("closed short call @ $%.2f, P&L $%.2f", fill/models.SharesPerContract, pnl)
	p.sink.Record(journal.Event{
		Timestamp:     p.now(),
		Action:        "BUY_TO_CLOSE",
		LegType:       journal.LegShort,
		Symbol:        p.cfg.Symbol,
		Strike:        contract.Strike,
		Expiry:        contract.Expiry,
		Price:         fill / models.SharesPerContract,
		PnL:           pnl,
		CumulativePnL: state.RealizedPnL,
		Note:          reason,
	})
	return true
}

// reportStatus summarizes the position, P&L and stop distances for the
// notification channel. Quote failures here degrade the report, never the
// run.
func (p *PMCCStrategy) reportStatus(ctx context.Context, state *models.PMCCState) {
	var b strings.Builder
	fmt.Fprintf(&b, "PMCC status - %s\n", p.cfg.Symbol)

	if state.StopLossTriggered {
		b.WriteString("stop loss latched: no new LEAPS until state reset\n")
	}

	if state.HasLeaps() {
		fmt.Fprintf(&b, "LEAPS: %.2fC exp %s\n", *state.LeapsStrike, state.LeapsExpiry.Format("2006-01-02"))
		if quote, err := p.broker.GetOptionQuote(ctx, state.LeapsContract()); err == nil {
			cost := *state.LeapsOriginalCost
			unrealized := quote.Mark - cost
			fmt.Fprintf(&b, "value: $%.2f | P&L: $%.2f (%.1f%%)\n",
				quote.Mark, unrealized, unrealized/cost*100)
			if levels, ok := p.risk.Levels(state); ok {
				fmt.Fprintf(&b, "stop level: $%.2f | absolute: $%.2f\n",
					levels.PercentageLevel, levels.AbsoluteLevel)
				if levels.TrailingLevel > 0 {
					fmt.Fprintf(&b, "trailing stop: $%.2f | high: $%.2f\n",
						levels.TrailingLevel, *state.LeapsHighWaterMark)
				}
			}
		}
	}

	if state.HasShort() {
		fmt.Fprintf(&b, "short call: %.2fC exp %s, premium $%.2f\n",
			*state.ShortStrike, state.ShortExpiry.Format("2006-01-02"), *state.ShortOriginalPremium)
	}

	fmt.Fprintf(&b, "total premium collected: $%.2f\n", state.TotalShortPremiumCollected)
	fmt.Fprintf(&b, "realized P&L: $%.2f", state.RealizedPnL)

	summary := b.String()
	p.logger.Info(summary)
	p.sink.Notify(summary)
}

// orderTag builds a unique client order tag for audit trails.
func orderTag(kind string) string {
	return fmt.Sprintf("pmcc-%s-%s", kind, uuid.NewString()[:8])
}
