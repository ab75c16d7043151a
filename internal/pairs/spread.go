package pairs

import (
	"fmt"
	"time"

	"trading-replay/internal/align"
	"trading-replay/internal/indicator"
	"trading-replay/internal/model"
)

// band column names on the aligned spread bars
const (
	colMean      = "rolling_mean"
	colStd       = "rolling_std"
	colUpper     = "upper_band"
	colLower     = "lower_band"
	colUpperStop = "upper_stop_loss"
	colLowerStop = "lower_stop_loss"
)

// Direction is the leg assignment a signal asks for.
type Direction string

const (
	Standby     Direction = "stand_by"
	ShortYLongX Direction = "short Y long X"
	LongYShortX Direction = "long Y short X"
)

// Hedge is the regression fitted upstream: Y = constant + coeff*X.
type Hedge struct {
	SymbolY  string
	SymbolX  string
	Coeff    float64
	Constant float64
}

func (h Hedge) name() string { return h.SymbolY + "/" + h.SymbolX }

// spreadCandles returns y - constant - coeff*x as Close on Y's timestamps.
// Both legs must share the exact timestamp set.
func spreadCandles(h Hedge, y, x []model.Candle) ([]model.Candle, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("%w: %s has %d candles, %s has %d",
			model.ErrDataMismatch, h.SymbolY, len(y), h.SymbolX, len(x))
	}
	for i := range y {
		if !y[i].TS.Equal(x[i].TS) {
			return nil, fmt.Errorf("%w: %s and %s differ at row %d (%s vs %s)",
				model.ErrDataMismatch, h.SymbolY, h.SymbolX, i,
				y[i].TS.Format(time.RFC3339), x[i].TS.Format(time.RFC3339))
		}
	}
	spread, err := indicator.SpreadSeries(indicator.Closes(y), indicator.Closes(x), h.Coeff, h.Constant)
	if err != nil {
		return nil, err
	}
	out := make([]model.Candle, len(y))
	for i := range y {
		out[i] = model.Candle{Symbol: h.name(), TS: y[i].TS, Close: spread[i]}
	}
	return out, nil
}

// Observe computes the trade-frequency spread with the bands of the
// band-frequency spread joined causally: a trade bar only sees bands whose
// source row had closed before it.
func Observe(h Hedge, cfg Config, tradeY, tradeX, bandY, bandX []model.Candle) ([]model.SpreadObservation, error) {
	trade, err := spreadCandles(h, tradeY, tradeX)
	if err != nil {
		return nil, fmt.Errorf("trade spread: %w", err)
	}
	band, err := spreadCandles(h, bandY, bandX)
	if err != nil {
		return nil, fmt.Errorf("band spread: %w", err)
	}

	bf := model.NewFrame(h.name(), cfg.BandInterval, band)
	bb := indicator.BollingerSeries(indicator.Closes(band), cfg.BBWindow, cfg.SignalStdMult, cfg.StopLossStdMul)
	for name, col := range map[string][]float64{
		colMean:      bb.Mean,
		colStd:       bb.Std,
		colUpper:     bb.UpperBand,
		colLower:     bb.LowerBand,
		colUpperStop: bb.UpperStopLoss,
		colLowerStop: bb.LowerStopLoss,
	} {
		if err := bf.Set(name, col); err != nil {
			return nil, err
		}
	}

	bars, err := align.Align(model.NewFrame(h.name(), cfg.TradeInterval, trade), align.Source{Frame: bf})
	if err != nil {
		return nil, err
	}
	out := make([]model.SpreadObservation, len(bars))
	for i, b := range bars {
		out[i] = model.SpreadObservation{
			TS:            b.TS,
			Spread:        b.Close,
			RollingMean:   b.Get(colMean),
			RollingStd:    b.Get(colStd),
			UpperBand:     b.Get(colUpper),
			LowerBand:     b.Get(colLower),
			UpperStopLoss: b.Get(colUpperStop),
			LowerStopLoss: b.Get(colLowerStop),
		}
	}
	return out, nil
}

// Signal reads the entry direction from one observation. Undefined bands
// never signal.
func Signal(o model.SpreadObservation) Direction {
	switch {
	case o.Spread > o.UpperBand:
		return ShortYLongX
	case o.Spread < o.LowerBand:
		return LongYShortX
	}
	return Standby
}

// EvaluateClose decides whether an OPEN pair leaves the market on the
// latest observation. A change of sign of spread - mean between prev and
// latest (touching zero included) is a profitable reversion and wins over a
// stop breach on the same bar.
func EvaluateClose(prev, latest model.SpreadObservation) (model.PairStatus, bool) {
	prevDiff := prev.Spread - prev.RollingMean
	latestDiff := latest.Spread - latest.RollingMean
	switch {
	case latestDiff*prevDiff <= 0:
		return model.PairProfitClosed, true
	case latest.Spread >= latest.UpperStopLoss:
		return model.PairUpperStopped, true
	case latest.Spread <= latest.LowerStopLoss:
		return model.PairLowerStopped, true
	}
	return model.PairOpen, false
}

// Transition is one lifecycle move found by Walk.
type Transition struct {
	From        model.PairStatus        `json:"from"`
	To          model.PairStatus        `json:"to"`
	Direction   Direction               `json:"direction"`
	Observation model.SpreadObservation `json:"observation"`
}

// Walk replays a pair over its observations: STANDBY until the first
// signal, OPEN until a close condition, then stops. It returns every
// transition taken.
func Walk(obs []model.SpreadObservation) []Transition {
	var out []Transition
	status := model.PairStandby
	dir := Standby
	for i, o := range obs {
		switch status {
		case model.PairStandby:
			if d := Signal(o); d != Standby {
				dir = d
				out = append(out, Transition{From: status, To: model.PairOpen, Direction: dir, Observation: o})
				status = model.PairOpen
			}
		case model.PairOpen:
			if to, ok := EvaluateClose(obs[i-1], o); ok {
				out = append(out, Transition{From: status, To: to, Direction: dir, Observation: o})
				return out
			}
		}
	}
	return out
}
