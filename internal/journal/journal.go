// Package journal records trading decisions to a CSV trade log and pushes
// notifications. Recording is fire-and-forget: a journal failure must never
// abort a trading decision.
package journal

import (
	"time"
)

// LegType labels which leg of the position an event concerns.
type LegType string

const (
	// LegLeaps is the long, long-dated leg.
	LegLeaps LegType = "LEAPS"
	// LegShort is the short-dated leg sold against it.
	LegShort LegType = "SHORT"
)

// Event is one journaled trading decision.
type Event struct {
	Timestamp     time.Time
	Action        string // BUY, SELL, BUY_TO_CLOSE, SELL_TO_CLOSE, STOP
	LegType       LegType
	Symbol        string
	Strike        float64
	Expiry        time.Time
	Price         float64 // per-share fill or quote price
	Delta         float64
	PnL           float64
	CumulativePnL float64
	Note          string
}

// Sink consumes journal events. Implementations must swallow their own
// errors after logging them.
type Sink interface {
	Record(event Event)
}

// Notifier pushes a human-readable message to an external channel.
type Notifier interface {
	Send(message string) error
}

// NopSink discards all events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}
