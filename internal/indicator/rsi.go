package indicator

import "math"

// RSI calculates the Relative Strength Index from the rolling mean of gains
// and the rolling mean of losses over the period. The first delta is
// treated as zero movement, so the value is ready after period updates.
type RSI struct {
	gain    *SMA
	loss    *SMA
	prev    float64
	started bool
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{gain: NewSMA(period), loss: NewSMA(period)}
}

func (r *RSI) Update(v float64) {
	delta := 0.0
	if r.started {
		delta = v - r.prev
	}
	r.prev = v
	r.started = true

	gain, loss := 0.0, 0.0
	switch {
	case math.IsNaN(delta):
	case delta > 0:
		gain = delta
	default:
		loss = -delta
	}
	r.gain.Update(gain)
	r.loss.Update(loss)
}

func (r *RSI) Ready() bool { return r.gain.Ready() && r.loss.Ready() }

// Value returns 100 when there were no losses, and NaN for a flat window.
func (r *RSI) Value() float64 {
	g, l := r.gain.Value(), r.loss.Value()
	if l == 0 {
		if g == 0 {
			return math.NaN()
		}
		return 100.0
	}
	return 100.0 - 100.0/(1.0+g/l)
}

// RSISeries returns RSI over closes. The first window-1 outputs are NaN.
func RSISeries(closes []float64, window int) []float64 {
	return run(NewRSI(window), closes)
}
