package indicator

import (
	"fmt"
	"math"

	"trading-replay/internal/model"
)

// Bollinger holds mean-reversion band columns.
type Bollinger struct {
	Mean          []float64
	Std           []float64
	UpperBand     []float64
	LowerBand     []float64
	UpperStopLoss []float64
	LowerStopLoss []float64
}

// BollingerSeries computes rolling mean/std bands at signalMult and
// stopMult standard deviations.
func BollingerSeries(values []float64, window int, signalMult, stopMult float64) Bollinger {
	mean := SMASeries(values, window)
	std := StdSeries(values, window)
	b := Bollinger{
		Mean:          mean,
		Std:           std,
		UpperBand:     make([]float64, len(values)),
		LowerBand:     make([]float64, len(values)),
		UpperStopLoss: make([]float64, len(values)),
		LowerStopLoss: make([]float64, len(values)),
	}
	for i := range values {
		b.UpperBand[i] = mean[i] + signalMult*std[i]
		b.LowerBand[i] = mean[i] - signalMult*std[i]
		b.UpperStopLoss[i] = mean[i] + stopMult*std[i]
		b.LowerStopLoss[i] = mean[i] - stopMult*std[i]
	}
	return b
}

// SpreadSeries returns y - constant - coeff*x elementwise.
func SpreadSeries(y, x []float64, coeff, constant float64) ([]float64, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("%w: spread legs have %d and %d values", model.ErrDataMismatch, len(y), len(x))
	}
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - constant - coeff*x[i]
	}
	return out, nil
}

// Last returns the last defined value of a column and whether one exists.
func Last(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i], true
		}
	}
	return math.NaN(), false
}
