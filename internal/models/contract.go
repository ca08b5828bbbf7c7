package models

import (
	"fmt"
	"sort"
	"time"
)

// Right identifies the option right of a contract.
type Right string

const (
	// RightCall represents a call option contract
	RightCall Right = "call"
	// RightPut represents a put option contract
	RightPut Right = "put"
)

// OptionContract fully identifies a single option contract.
type OptionContract struct {
	Symbol string    `json:"symbol"`
	Strike float64   `json:"strike"`
	Expiry time.Time `json:"expiry"`
	Right  Right     `json:"right"`
}

// String renders the contract in a compact OCC-like form for logs.
func (c OptionContract) String() string {
	r := "C"
	if c.Right == RightPut {
		r = "P"
	}
	return fmt.Sprintf("%s %s %.2f%s", c.Symbol, c.Expiry.Format("2006-01-02"), c.Strike, r)
}

// Selection is the transient result of an option search: the chosen contract
// plus the quoted delta and mark price it was chosen on.
type Selection struct {
	Contract OptionContract
	Delta    float64
	Mark     float64
}

// Chain is a snapshot of the available contracts for one trading class:
// expiration date mapped to the strike set offered at that expiration.
type Chain map[time.Time][]float64

// Expirations returns the chain's expiration dates in ascending order.
func (c Chain) Expirations() []time.Time {
	exps := make([]time.Time, 0, len(c))
	for exp := range c {
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })
	return exps
}

// StrikesWithin returns the strikes at exp inside [lo, hi], ascending.
func (c Chain) StrikesWithin(exp time.Time, lo, hi float64) []float64 {
	var out []float64
	for _, strike := range c[exp] {
		if strike >= lo && strike <= hi {
			out = append(out, strike)
		}
	}
	sort.Float64s(out)
	return out
}
