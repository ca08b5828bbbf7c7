package strategy

import (
	"fmt"
)

// ShortLegAction is the outcome of a short-leg management decision.
type ShortLegAction string

const (
	// ActionHold leaves the short leg in place.
	ActionHold ShortLegAction = "hold"
	// ActionCloseLoss buys the short back because its loss limit was hit.
	ActionCloseLoss ShortLegAction = "close_loss"
	// ActionCloseProfit buys the short back to bank the profit target.
	ActionCloseProfit ShortLegAction = "close_profit"
	// ActionRoll closes the short and immediately sells a fresh one.
	ActionRoll ShortLegAction = "roll"
)

// ShortLegLimits holds the short-leg management thresholds. Percentages are
// whole percents of the original premium; the absolute limit is a
// per-contract dollar amount.
type ShortLegLimits struct {
	ProfitTakePct    float64
	MaxLossPct       float64
	MaxLossAbsolute  float64
	RollTriggerDelta float64
}

// DecideShortLeg evaluates the open short leg against the limits, in fixed
// priority order: loss limit, then profit target, then roll trigger. At most
// one action results per invocation.
func DecideShortLeg(originalPremium, currentMark, delta float64, limits ShortLegLimits) (ShortLegAction, string) {
	if originalPremium <= 0 {
		return ActionHold, "no premium basis"
	}

	currentLoss := currentMark - originalPremium
	currentProfit := originalPremium - currentMark
	lossPct := currentLoss / originalPremium * 100
	profitPct := currentProfit / originalPremium * 100

	if currentLoss >= limits.MaxLossAbsolute || lossPct >= limits.MaxLossPct {
		return ActionCloseLoss, fmt.Sprintf("short leg loss limit hit: $%.2f (%.1f%%)", currentLoss, lossPct)
	}

	if profitPct >= limits.ProfitTakePct {
		return ActionCloseProfit, fmt.Sprintf("profit target reached: %.1f%%", profitPct)
	}

	if delta >= limits.RollTriggerDelta {
		return ActionRoll, fmt.Sprintf("delta trigger hit: %.3f", delta)
	}

	return ActionHold, ""
}
