package indicator

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		tr := high[i] - low[i]
		if i > 0 {
			pc := close[i-1]
			tr = math.Max(tr, math.Abs(high[i]-pc))
			tr = math.Max(tr, math.Abs(low[i]-pc))
		}
		out[i] = tr
	}
	return out
}

// ATRSeries is the rolling mean of the true range over window.
func ATRSeries(high, low, close []float64, window int) []float64 {
	return SMASeries(TrueRange(high, low, close), window)
}

// Keltner holds Keltner channel columns.
type Keltner struct {
	Middle   []float64
	Upper    []float64
	Lower    []float64
	Position []float64 // (close-lower)/(upper-lower), floored at 0
}

// KeltnerSeries computes a Keltner channel: middle = SMA(close, smaWindow),
// bands = middle +/- mult*ATR(atrWindow).
func KeltnerSeries(high, low, close []float64, smaWindow, atrWindow int, mult float64) Keltner {
	mid := SMASeries(close, smaWindow)
	atr := ATRSeries(high, low, close, atrWindow)
	k := Keltner{
		Middle:   mid,
		Upper:    make([]float64, len(close)),
		Lower:    make([]float64, len(close)),
		Position: make([]float64, len(close)),
	}
	for i := range close {
		k.Upper[i] = mid[i] + mult*atr[i]
		k.Lower[i] = mid[i] - mult*atr[i]
		width := k.Upper[i] - k.Lower[i]
		if width == 0 {
			k.Position[i] = math.NaN()
			continue
		}
		k.Position[i] = math.Max(close[i]-k.Lower[i], 0) / width
	}
	return k
}
