// Package risk evaluates unrealized P&L against the multi-tier stop-loss
// levels protecting the LEAPS leg.
package risk

import (
	"fmt"

	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// Limits holds the stop-loss thresholds. Percentages are expressed as whole
// percents (20 means 20%), dollar amounts are per-contract totals.
type Limits struct {
	LeapsStopLossPct    float64
	LeapsStopLossAbs    float64
	TotalPositionStop   float64
	TrailingStopEnabled bool
	TrailingStopPct     float64
}

// Decision is the outcome of a stop evaluation.
type Decision struct {
	Triggered bool
	Reason    string
}

// Evaluator applies the configured limits to current marks.
type Evaluator struct {
	limits Limits
}

// NewEvaluator creates an Evaluator with the given limits.
func NewEvaluator(limits Limits) *Evaluator {
	return &Evaluator{limits: limits}
}

// Evaluate checks all stop tiers against the current marks. shortMark is nil
// when no short leg is open. The high-water mark ratchet runs before any
// stop check, even when nothing fires; it is the only mutation performed.
// Checks are OR'd; the first matching tier names the reported reason.
func (e *Evaluator) Evaluate(state *models.PMCCState, leapsMark float64, shortMark *float64) Decision {
	if !state.HasLeaps() || state.StopLossTriggered {
		return Decision{}
	}

	state.RatchetHighWaterMark(leapsMark)

	originalCost := *state.LeapsOriginalCost
	leapsLoss := originalCost - leapsMark
	leapsLossPct := leapsLoss / originalCost * 100

	shortLegValue := 0.0
	if state.HasShort() && shortMark != nil {
		shortLegValue = *state.ShortOriginalPremium - *shortMark
	}
	totalLoss := originalCost - (leapsMark + shortLegValue)

	if leapsLossPct >= e.limits.LeapsStopLossPct {
		return Decision{true, fmt.Sprintf("LEAPS percentage stop: %.1f%%", leapsLossPct)}
	}
	if leapsLoss >= e.limits.LeapsStopLossAbs {
		return Decision{true, fmt.Sprintf("LEAPS absolute stop: $%.2f", leapsLoss)}
	}
	if totalLoss >= e.limits.TotalPositionStop {
		return Decision{true, fmt.Sprintf("total position stop: $%.2f", totalLoss)}
	}
	if e.limits.TrailingStopEnabled && state.LeapsHighWaterMark != nil {
		trailingLevel := *state.LeapsHighWaterMark * (1 - e.limits.TrailingStopPct/100)
		if leapsMark <= trailingLevel {
			return Decision{true, fmt.Sprintf("trailing stop at $%.2f (high $%.2f)",
				leapsMark, *state.LeapsHighWaterMark)}
		}
	}

	return Decision{}
}

// StopLevels describes each armed stop level for status reporting.
type StopLevels struct {
	PercentageLevel float64 // LEAPS mark at which the percentage stop fires
	AbsoluteLevel   float64 // LEAPS mark at which the absolute stop fires
	TrailingLevel   float64 // zero when trailing stop is disabled
}

// Levels computes the mark levels at which each stop tier would fire for
// the open LEAPS leg. Returns false when no leg is open.
func (e *Evaluator) Levels(state *models.PMCCState) (StopLevels, bool) {
	if !state.HasLeaps() {
		return StopLevels{}, false
	}
	cost := *state.LeapsOriginalCost
	levels := StopLevels{
		PercentageLevel: cost * (1 - e.limits.LeapsStopLossPct/100),
		AbsoluteLevel:   cost - e.limits.LeapsStopLossAbs,
	}
	if e.limits.TrailingStopEnabled && state.LeapsHighWaterMark != nil {
		levels.TrailingLevel = *state.LeapsHighWaterMark * (1 - e.limits.TrailingStopPct/100)
	}
	return levels, true
}
