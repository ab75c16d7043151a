package indicator

import "math"

// EMA calculates Exponential Moving Average with multiplier 2/(period+1),
// seeded by the SMA of the first period values.
// O(1) per update. NaN inputs are skipped.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Update(v float64) {
	if math.IsNaN(v) {
		return
	}
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = (v * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// EMASeries returns the exponential moving average of values with the given span.
func EMASeries(values []float64, span int) []float64 {
	return run(NewEMA(span), values)
}
