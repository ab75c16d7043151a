package pairs

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(symbol string, start time.Time, step time.Duration, closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{Symbol: symbol, TS: start.Add(time.Duration(i) * step), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BBWindow = 3
	cfg.TradeInterval = model.Interval1h
	cfg.BandInterval = model.Interval1d
	return cfg
}

func TestObserve_BandsFromPriorDay(t *testing.T) {
	h := Hedge{SymbolY: "YYY", SymbolX: "XXX", Coeff: 1}
	bandY := series("YYY", day0, 24*time.Hour, 100, 101, 102, 103, 104, 105)
	bandX := series("XXX", day0, 24*time.Hour, repeat(50, 6)...)
	tradeY := series("YYY", day0, time.Hour, repeat(100, 144)...)
	tradeX := series("XXX", day0, time.Hour, repeat(50, 144)...)

	obs, err := Observe(h, testConfig(), tradeY, tradeX, bandY, bandX)
	require.NoError(t, err)
	require.Len(t, obs, 144)

	// day 2 sees day 1, whose 3-day window is incomplete
	assert.True(t, math.IsNaN(obs[48].RollingMean))
	assert.InDelta(t, 51.0, obs[72].RollingMean, 1e-9)

	o := obs[120] // first bar of day 5 sees days 2..4
	assert.Equal(t, 50.0, o.Spread)
	assert.InDelta(t, 53.0, o.RollingMean, 1e-9)
	assert.InDelta(t, 1.0, o.RollingStd, 1e-9)
	assert.InDelta(t, 54.8, o.UpperBand, 1e-9)
	assert.InDelta(t, 51.2, o.LowerBand, 1e-9)
	assert.InDelta(t, 55.8, o.UpperStopLoss, 1e-9)
	assert.InDelta(t, 50.2, o.LowerStopLoss, 1e-9)
	assert.True(t, o.UpperStopLoss >= o.UpperBand && o.UpperBand >= o.RollingMean)
	assert.True(t, o.LowerStopLoss <= o.LowerBand && o.LowerBand <= o.RollingMean)
}

func TestObserve_TimestampMismatch(t *testing.T) {
	h := Hedge{SymbolY: "YYY", SymbolX: "XXX", Coeff: 1}
	band := series("YYY", day0, 24*time.Hour, 1, 2, 3)

	short := series("XXX", day0, time.Hour, 1, 2)
	_, err := Observe(h, testConfig(), series("YYY", day0, time.Hour, 1, 2, 3), short, band, band)
	assert.True(t, errors.Is(err, model.ErrDataMismatch))

	shifted := series("XXX", day0.Add(time.Hour), time.Hour, 1, 2, 3)
	_, err = Observe(h, testConfig(), series("YYY", day0, time.Hour, 1, 2, 3), shifted, band, band)
	assert.True(t, errors.Is(err, model.ErrDataMismatch))
}

func obs(spread, mean, std float64) model.SpreadObservation {
	return model.SpreadObservation{
		Spread:        spread,
		RollingMean:   mean,
		RollingStd:    std,
		UpperBand:     mean + std,
		LowerBand:     mean - std,
		UpperStopLoss: mean + 2*std,
		LowerStopLoss: mean - 2*std,
	}
}

func TestSignal(t *testing.T) {
	assert.Equal(t, ShortYLongX, Signal(obs(1.5, 0, 1)))
	assert.Equal(t, LongYShortX, Signal(obs(-1.5, 0, 1)))
	assert.Equal(t, Standby, Signal(obs(0.5, 0, 1)))
	assert.Equal(t, Standby, Signal(obs(1, 0, 1)), "touching the band is not outside it")
	assert.Equal(t, Standby, Signal(obs(5, math.NaN(), math.NaN())))
}

func TestEvaluateClose(t *testing.T) {
	tests := []struct {
		name   string
		prev   model.SpreadObservation
		latest model.SpreadObservation
		want   model.PairStatus
		hit    bool
	}{
		{"reverted through mean", obs(1.5, 0, 1), obs(-0.5, 0, 1), model.PairProfitClosed, true},
		{"touches mean", obs(1.5, 0, 1), obs(0, 0, 1), model.PairProfitClosed, true},
		{"upper stop", obs(1.5, 0, 1), obs(2, 0, 1), model.PairUpperStopped, true},
		{"lower stop", obs(-1.5, 0, 1), obs(-2.5, 0, 1), model.PairLowerStopped, true},
		{"reversion wins over stop", obs(3, 0, 1), obs(-3, 0, 1), model.PairProfitClosed, true},
		{"still diverged", obs(1.5, 0, 1), obs(1.8, 0, 1), model.PairOpen, false},
		{"undefined bands", obs(1, math.NaN(), math.NaN()), obs(-1, math.NaN(), math.NaN()), model.PairOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := EvaluateClose(tt.prev, tt.latest)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalk_SignChangeClosesForProfit(t *testing.T) {
	path := []model.SpreadObservation{
		obs(0.2, 0, 1),
		obs(1.4, 0, 1), // above upper band
		obs(1.1, 0, 1),
		obs(0.6, 0, 1),
		obs(-0.1, 0, 1), // crossed the mean
		obs(2.5, 0, 1),
	}
	tr := Walk(path)
	require.Len(t, tr, 2)
	assert.Equal(t, model.PairStandby, tr[0].From)
	assert.Equal(t, model.PairOpen, tr[0].To)
	assert.Equal(t, ShortYLongX, tr[0].Direction)
	assert.Equal(t, model.PairProfitClosed, tr[1].To)
	assert.Equal(t, -0.1, tr[1].Observation.Spread)
}

func TestWalk_StopAndStandby(t *testing.T) {
	tr := Walk([]model.SpreadObservation{obs(-1.2, 0, 1), obs(-1.7, 0, 1), obs(-2.1, 0, 1)})
	require.Len(t, tr, 2)
	assert.Equal(t, LongYShortX, tr[0].Direction)
	assert.Equal(t, model.PairLowerStopped, tr[1].To)

	assert.Empty(t, Walk([]model.SpreadObservation{obs(0, 0, 1), obs(0.5, 0, 1)}))
}

func TestTickSize(t *testing.T) {
	for price, want := range map[float64]float64{
		1: 1, 4.99: 1, 5: 0.01, 50: 0.01, 100: 0.001, 1999: 0.001,
		2000: 0.0001, 9999: 0.0001, 10000: 0.00001, 60000: 0.00001,
	} {
		assert.Equal(t, want, TickSize(price), "price %g", price)
	}
}

func TestSize(t *testing.T) {
	sz, err := Size(50, 10, 20, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, sz.QtyY, 1e-9)
	assert.InDelta(t, 1.25, sz.QtyX, 1e-9)
	assert.InDelta(t, 25.0, sz.NotionalY, 1e-9)
	assert.InDelta(t, 25.0, sz.NotionalX, 1e-9)

	sz, err = Size(50, 110, 50, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.312, sz.QtyY, 1e-9)
	assert.InDelta(t, 0.31, sz.QtyX, 1e-9)

	_, err = Size(50, 10, 20, -0.5)
	assert.True(t, errors.Is(err, model.ErrValidation))
	_, err = Size(1, 2, 3, 1)
	assert.True(t, errors.Is(err, model.ErrValidation), "whole-unit legs too small for the budget")
	_, err = Size(50, 0, 20, 1)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestRoundStep(t *testing.T) {
	assert.InDelta(t, 0.3, RoundStep(0.3, 0.1), 1e-12)
	assert.InDelta(t, 0.31, RoundStep(0.3199, 0.01), 1e-12)
	assert.Equal(t, 3.0, RoundStep(3.9, 1))
}

func TestConfig_Eligible(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Eligible(model.PairCandidate{RecentCoint: 0.8, RSquared: 0.7, PotentialWinPc: 0.02}))
	assert.False(t, cfg.Eligible(model.PairCandidate{RecentCoint: 0.7, RSquared: 0.7, PotentialWinPc: 0.02}))
	assert.False(t, cfg.Eligible(model.PairCandidate{RecentCoint: 0.8, RSquared: 0.6, PotentialWinPc: 0.02}))
	assert.False(t, cfg.Eligible(model.PairCandidate{RecentCoint: 0.8, RSquared: 0.7, PotentialWinPc: 0.005}))

	cfg.StopLossStdMul = 1
	assert.True(t, errors.Is(cfg.Validate(), model.ErrValidation))
}
