// Package models provides data structures and state management for PMCC positions.
package models

import (
	"fmt"
	"time"
)

// SharesPerContract is the standard option contract multiplier.
const SharesPerContract = 100.0

// PMCCState is the durable record of a PMCC position for one underlying.
// All leg fields are pointers: nil means the leg (or field) is not set.
// Dollar fields are per-contract totals (fill price x contract multiplier).
type PMCCState struct {
	Symbol string `json:"symbol"`

	// LEAPS leg
	LeapsStrike        *float64   `json:"leaps_strike"`
	LeapsExpiry        *time.Time `json:"leaps_expiry"`
	LeapsOriginalCost  *float64   `json:"leaps_original_cost"`
	LeapsHighWaterMark *float64   `json:"leaps_high_water_mark"`
	PositionOpenedDate *time.Time `json:"position_opened_date"`
	StopLossTriggered  bool       `json:"stop_loss_triggered"`

	// Short leg
	ShortStrike          *float64   `json:"short_strike"`
	ShortExpiry          *time.Time `json:"short_expiry"`
	ShortOriginalPremium *float64   `json:"short_original_premium"`

	// P&L tracking
	TotalShortPremiumCollected float64 `json:"total_short_premium_collected"`
	RealizedPnL                float64 `json:"realized_pnl"`
}

// NewPMCCState returns an empty state record for a symbol.
func NewPMCCState(symbol string) *PMCCState {
	return &PMCCState{Symbol: symbol}
}

// HasLeaps reports whether a LEAPS leg is currently open.
func (s *PMCCState) HasLeaps() bool {
	return s.LeapsStrike != nil
}

// HasShort reports whether a short leg is currently open.
func (s *PMCCState) HasShort() bool {
	return s.ShortStrike != nil
}

// OpenLeaps populates the LEAPS leg fields after a fill. The high-water mark
// is seeded at the entry cost and the stop flag is cleared for the new cycle.
func (s *PMCCState) OpenLeaps(strike float64, expiry time.Time, cost float64, opened time.Time) {
	s.LeapsStrike = &strike
	s.LeapsExpiry = &expiry
	s.LeapsOriginalCost = &cost
	hwm := cost
	s.LeapsHighWaterMark = &hwm
	s.PositionOpenedDate = &opened
	s.StopLossTriggered = false
}

// OpenShort populates the short leg fields after a fill and accumulates the
// collected premium counter.
func (s *PMCCState) OpenShort(strike float64, expiry time.Time, premium float64) {
	s.ShortStrike = &strike
	s.ShortExpiry = &expiry
	s.ShortOriginalPremium = &premium
	s.TotalShortPremiumCollected += premium
}

// ClearShort unsets the short leg fields after a close or roll.
func (s *PMCCState) ClearShort() {
	s.ShortStrike = nil
	s.ShortExpiry = nil
	s.ShortOriginalPremium = nil
}

// ClearLeaps unsets the LEAPS leg fields after liquidation.
func (s *PMCCState) ClearLeaps() {
	s.LeapsStrike = nil
	s.LeapsExpiry = nil
	s.LeapsOriginalCost = nil
	s.LeapsHighWaterMark = nil
	s.PositionOpenedDate = nil
}

// RatchetHighWaterMark raises the high-water mark to value if it exceeds the
// current mark. It never lowers it. Returns true if the mark moved.
func (s *PMCCState) RatchetHighWaterMark(value float64) bool {
	if s.LeapsHighWaterMark == nil {
		if !s.HasLeaps() {
			return false
		}
		s.LeapsHighWaterMark = &value
		return true
	}
	if value > *s.LeapsHighWaterMark {
		*s.LeapsHighWaterMark = value
		return true
	}
	return false
}

// LeapsContract returns the open LEAPS leg as an option contract.
// Callers must check HasLeaps first.
func (s *PMCCState) LeapsContract() OptionContract {
	return OptionContract{
		Symbol: s.Symbol,
		Strike: *s.LeapsStrike,
		Expiry: *s.LeapsExpiry,
		Right:  RightCall,
	}
}

// ShortContract returns the open short leg as an option contract.
// Callers must check HasShort first.
func (s *PMCCState) ShortContract() OptionContract {
	return OptionContract{
		Symbol: s.Symbol,
		Strike: *s.ShortStrike,
		Expiry: *s.ShortExpiry,
		Right:  RightCall,
	}
}

// Validate enforces the structural invariants of the state record. A record
// that fails validation must not be traded on.
func (s *PMCCState) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("state: symbol is required")
	}

	leapsFields := []struct {
		name string
		set  bool
	}{
		{"leaps_strike", s.LeapsStrike != nil},
		{"leaps_expiry", s.LeapsExpiry != nil},
		{"leaps_original_cost", s.LeapsOriginalCost != nil},
		{"leaps_high_water_mark", s.LeapsHighWaterMark != nil},
	}
	for _, f := range leapsFields {
		if f.set != s.HasLeaps() {
			return fmt.Errorf("state %s: LEAPS leg fields are partially set (%s)", s.Symbol, f.name)
		}
	}

	shortFields := []struct {
		name string
		set  bool
	}{
		{"short_strike", s.ShortStrike != nil},
		{"short_expiry", s.ShortExpiry != nil},
		{"short_original_premium", s.ShortOriginalPremium != nil},
	}
	for _, f := range shortFields {
		if f.set != s.HasShort() {
			return fmt.Errorf("state %s: short leg fields are partially set (%s)", s.Symbol, f.name)
		}
	}

	// A short leg can only exist against an open LEAPS leg.
	if s.HasShort() && !s.HasLeaps() {
		return fmt.Errorf("state %s: short leg set without LEAPS leg", s.Symbol)
	}

	// A triggered stop means everything was liquidated.
	if s.StopLossTriggered && (s.HasLeaps() || s.HasShort()) {
		return fmt.Errorf("state %s: stop_loss_triggered with open legs", s.Symbol)
	}

	if s.HasLeaps() {
		if *s.LeapsOriginalCost <= 0 {
			return fmt.Errorf("state %s: leaps_original_cost must be positive (%.2f)",
				s.Symbol, *s.LeapsOriginalCost)
		}
		if *s.LeapsHighWaterMark < *s.LeapsOriginalCost {
			return fmt.Errorf("state %s: high-water mark %.2f below original cost %.2f",
				s.Symbol, *s.LeapsHighWaterMark, *s.LeapsOriginalCost)
		}
		if s.PositionOpenedDate == nil {
			return fmt.Errorf("state %s: position_opened_date must be set for an open LEAPS leg", s.Symbol)
		}
	}

	if s.HasShort() {
		if *s.ShortOriginalPremium <= 0 {
			return fmt.Errorf("state %s: short_original_premium must be positive (%.2f)",
				s.Symbol, *s.ShortOriginalPremium)
		}
		if *s.ShortStrike <= *s.LeapsStrike {
			return fmt.Errorf("state %s: short strike %.2f at or below LEAPS strike %.2f",
				s.Symbol, *s.ShortStrike, *s.LeapsStrike)
		}
	}

	if s.TotalShortPremiumCollected < 0 {
		return fmt.Errorf("state %s: total_short_premium_collected cannot be negative (%.2f)",
			s.Symbol, s.TotalShortPremiumCollected)
	}

	return nil
}

// LeapsDTE returns the days to expiration of the LEAPS leg at now, or 0 if
// no leg is open.
func (s *PMCCState) LeapsDTE(now time.Time) int {
	if s.LeapsExpiry == nil {
		return 0
	}
	return DaysUntil(now, *s.LeapsExpiry)
}

// ShortDTE returns the days to expiration of the short leg at now, or 0 if
// no leg is open.
func (s *PMCCState) ShortDTE(now time.Time) int {
	if s.ShortExpiry == nil {
		return 0
	}
	return DaysUntil(now, *s.ShortExpiry)
}

// DaysUntil returns the whole days from now until the given date, never
// negative. Both times are truncated to UTC days so intraday drift doesn't
// change the DTE.
func DaysUntil(now, expiry time.Time) int {
	n := now.UTC().Truncate(24 * time.Hour)
	e := expiry.UTC().Truncate(24 * time.Hour)
	days := int(e.Sub(n).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
