// Package strategy runs pluggable open/close decision logic over aligned
// bars and keeps the order ledger and execution log consistent.
//
// A strategy is a parameter struct that implements three capabilities:
// IndicatorCompute adds indicator columns to candle frames, OpenDecision
// proposes new positions, CloseDecision proposes exits for OPEN orders. The
// Engine owns all ledger mutations; strategies only return intents.
package strategy

import (
	"math"

	"trading-replay/internal/model"
)

// IndicatorCompute adds indicator columns to a frame.
type IndicatorCompute interface {
	// Indicators computes columns on the primary indicator series.
	Indicators(f *model.Frame) error

	// ExtraIndicators computes columns on the extra indicator series
	// (typically daily). May leave the frame untouched.
	ExtraIndicators(f *model.Frame) error
}

// OpenDecision inspects the lookback window and proposes a new position.
type OpenDecision interface {
	DecideOpen(w Window) *OpenIntent
}

// CloseDecision inspects the lookback window and proposes an exit for one
// OPEN order. The order's HighSinceOpen already includes the current bar.
type CloseDecision interface {
	DecideClose(w Window, o model.OpenOrder) *CloseIntent
}

// Strategy is the full set of capabilities the engine needs.
type Strategy interface {
	Name() string
	IndicatorCompute
	OpenDecision
	CloseDecision
}

// OpenIntent asks the engine to open a position.
type OpenIntent struct {
	Side   model.Side
	Price  float64
	Reason string
}

// CloseIntent asks the engine to close an order.
type CloseIntent struct {
	Price  float64
	Reason string
}

// Window is the bounded lookback of aligned bars, oldest first.
type Window []model.Bar

// Current returns the newest bar.
func (w Window) Current() model.Bar { return w[len(w)-1] }

// Previous returns the bar before the newest.
func (w Window) Previous() (model.Bar, bool) {
	if len(w) < 2 {
		return model.Bar{}, false
	}
	return w[len(w)-2], true
}

// gt compares two values and is false if either is undefined.
func gt(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsNaN(b) && a > b
}

// lt compares two values and is false if either is undefined.
func lt(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsNaN(b) && a < b
}
