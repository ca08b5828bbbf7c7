package strategy

import (
	"strings"
	"testing"
)

var testShortLimits = ShortLegLimits{
	ProfitTakePct:    75,
	MaxLossPct:       200,
	MaxLossAbsolute:  100,
	RollTriggerDelta: 0.50,
}

func TestProfitTargetBeatsRollTrigger(t *testing.T) {
	// 80% of the premium is captured AND delta is past the roll trigger;
	// banking the profit wins.
	action, reason := DecideShortLeg(200, 40, 0.90, testShortLimits)
	if action != ActionCloseProfit {
		t.Fatalf("action = %s, want %s (%s)", action, ActionCloseProfit, reason)
	}
	if !strings.Contains(reason, "80.0%") {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestAbsoluteLossBeatsEverything(t *testing.T) {
	// $120 under water with delta deep past the roll trigger.
	action, reason := DecideShortLeg(200, 320, 0.90, testShortLimits)
	if action != ActionCloseLoss {
		t.Fatalf("action = %s, want %s (%s)", action, ActionCloseLoss, reason)
	}
}

func TestPercentageLossTrigger(t *testing.T) {
	// Loss of $65 is under the $100 absolute limit but 216% of premium.
	action, _ := DecideShortLeg(30, 95, 0.40, testShortLimits)
	if action != ActionCloseLoss {
		t.Fatalf("action = %s, want %s", action, ActionCloseLoss)
	}
}

func TestRollOnDelta(t *testing.T) {
	// 25% profit, small loss headroom, delta at 0.55: roll.
	action, reason := DecideShortLeg(200, 150, 0.55, testShortLimits)
	if action != ActionRoll {
		t.Fatalf("action = %s, want %s (%s)", action, ActionRoll, reason)
	}
	if !strings.Contains(reason, "0.550") {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestRollTriggerInclusive(t *testing.T) {
	action, _ := DecideShortLeg(200, 150, 0.50, testShortLimits)
	if action != ActionRoll {
		t.Fatalf("delta exactly at trigger should roll, got %s", action)
	}
}

func TestHold(t *testing.T) {
	action, _ := DecideShortLeg(200, 150, 0.30, testShortLimits)
	if action != ActionHold {
		t.Fatalf("action = %s, want %s", action, ActionHold)
	}
}

func TestHoldOnZeroPremium(t *testing.T) {
	action, _ := DecideShortLeg(0, 150, 0.90, testShortLimits)
	if action != ActionHold {
		t.Fatalf("zero premium basis must hold, got %s", action)
	}
}

func TestProfitTargetExactBoundary(t *testing.T) {
	// Exactly 75% captured.
	action, _ := DecideShortLeg(200, 50, 0.10, testShortLimits)
	if action != ActionCloseProfit {
		t.Fatalf("action = %s, want %s", action, ActionCloseProfit)
	}
}
