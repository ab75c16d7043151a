// Package indicator provides causal technical indicator calculations over
// price series.
//
// Streaming indicators implement the Indicator interface and are fed one
// value at a time. The series functions (SMA, EMA, RSI, ATR, ...) run a
// streaming indicator over a whole column and return a slice of the same
// length, with NaN wherever the indicator is not yet ready. No output value
// depends on an input at a later index.
package indicator

import (
	"math"

	"trading-replay/internal/model"
)

// Indicator is the interface for streaming indicators.
type Indicator interface {
	// Update feeds the next value.
	Update(v float64)

	// Value returns the current value. Only meaningful when Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// run feeds values through ind and records its output per index.
func run(ind Indicator, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		ind.Update(v)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Opens extracts the open column.
func Opens(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

// Highs extracts the high column.
func Highs(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low column.
func Lows(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Closes extracts the close column.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume column.
func Volumes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
