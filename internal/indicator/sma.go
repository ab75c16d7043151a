package indicator

import "math"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer. A NaN inside the window makes the
// value undefined until it rolls out.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	nans    int       // NaN values currently inside the window
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		old := s.buf[s.idx]
		if math.IsNaN(old) {
			s.nans--
		} else {
			s.sum -= old
		}
	}

	s.buf[s.idx] = v
	if math.IsNaN(v) {
		s.nans++
	} else {
		s.sum += v
	}
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.Ready() {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period && s.nans == 0 }

// window returns the buffered values oldest first.
func (s *SMA) window() []float64 {
	out := make([]float64, 0, s.period)
	for i := 0; i < s.period; i++ {
		out = append(out, s.buf[(s.idx+i)%s.period])
	}
	return out
}

// RollingStd is the sample (n-1) standard deviation over a rolling window.
type RollingStd struct {
	mean *SMA
}

// NewRollingStd creates a rolling standard deviation with the given period.
func NewRollingStd(period int) *RollingStd {
	return &RollingStd{mean: NewSMA(period)}
}

func (r *RollingStd) Update(v float64) { r.mean.Update(v) }
func (r *RollingStd) Ready() bool      { return r.mean.Ready() && r.mean.period > 1 }

func (r *RollingStd) Value() float64 {
	m := r.mean.Value()
	var ss float64
	for _, v := range r.mean.window() {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(r.mean.period-1))
}

// SMASeries returns the rolling mean of values over window.
// The first window-1 outputs are NaN.
func SMASeries(values []float64, window int) []float64 {
	return run(NewSMA(window), values)
}

// StdSeries returns the rolling sample standard deviation of values.
func StdSeries(values []float64, window int) []float64 {
	return run(NewRollingStd(window), values)
}
