package summary

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ex(day int, action model.Action, symbol string, notional float64) model.Execution {
	return model.Execution{
		Time:     t0.AddDate(0, 0, day),
		Action:   action,
		Symbol:   symbol,
		Price:    notional,
		Quantity: 1,
		Notional: notional,
	}
}

func TestMatchFIFO_OldestEntryFirst(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(1, model.ActionBuy, "AAA", 110),
		ex(2, model.ActionSell, "AAA", 120),
		ex(3, model.ActionSell, "AAA", 130),
	}
	trades, open, err := MatchFIFO(execs)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Empty(t, open)

	assert.InDelta(t, 20.0, trades[0].Profit, 1e-9)
	assert.InDelta(t, 20.0, trades[1].Profit, 1e-9)
	assert.Equal(t, 2*24*time.Hour, trades[0].Duration)
	assert.Equal(t, 2*24*time.Hour, trades[1].Duration)
	assert.Equal(t, 100.0, trades[0].Entry.Notional)
	assert.Equal(t, 110.0, trades[1].Entry.Notional)
}

func TestMatchFIFO_PerSymbolAndSide(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(0, model.ActionShortSell, "AAA", 100),
		ex(1, model.ActionBuy, "BBB", 50),
		ex(2, model.ActionShortClose, "AAA", 90),
		ex(3, model.ActionSell, "BBB", 40),
	}
	trades, open, err := MatchFIFO(execs)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, model.Short, trades[0].Side)
	assert.InDelta(t, 10.0, trades[0].Profit, 1e-9)
	assert.Equal(t, "BBB", trades[1].Symbol)
	assert.InDelta(t, -10.0, trades[1].Profit, 1e-9)

	require.Len(t, open, 1)
	assert.Equal(t, model.ActionBuy, open[0].Action)
	assert.Equal(t, "AAA", open[0].Symbol)
}

func TestMatchFIFO_ExitWithoutEntry(t *testing.T) {
	_, _, err := MatchFIFO([]model.Execution{ex(0, model.ActionSell, "AAA", 100)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	// a long entry does not satisfy a short exit
	_, _, err = MatchFIFO([]model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(1, model.ActionShortClose, "AAA", 100),
	})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestSummarize_Aggregates(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(1, model.ActionSell, "AAA", 130), // +30, 1d
		ex(2, model.ActionBuy, "AAA", 100),
		ex(5, model.ActionSell, "AAA", 90), // -10, 3d
		ex(6, model.ActionBuy, "AAA", 100),
		ex(8, model.ActionSell, "AAA", 110), // +10, 2d
	}
	s, err := Summarize(execs, Config{CommissionRate: 0.001, TradeNotional: 100})
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalTrades)
	assert.InDelta(t, 30.0, s.TotalProfit, 1e-9)
	assert.InDelta(t, 630.0, s.TotalVolume, 1e-9)
	assert.InDelta(t, 0.63, s.Commission, 1e-9)
	assert.InDelta(t, 29.37, s.NetProfit, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 4.0, s.WinLossRatio, 1e-9)
	assert.Equal(t, 2*24*time.Hour, s.MeanDuration)
	assert.Equal(t, 2*24*time.Hour, s.MedianDuration)
	assert.InDelta(t, 0.1, s.ProfitPctPerTrade, 1e-9)
	assert.InDelta(t, 0.0979, s.NetPctPerTrade, 1e-9)
}

func TestSummarize_WinLossRatio(t *testing.T) {
	tests := []struct {
		name  string
		exits []float64
		want  float64
	}{
		{"wins only", []float64{110, 120}, 999},
		{"losses only", []float64{90}, 0},
		{"flat", []float64{100}, 0},
		{"mixed", []float64{120, 95}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var execs []model.Execution
			for i, px := range tt.exits {
				execs = append(execs,
					ex(2*i, model.ActionBuy, "AAA", 100),
					ex(2*i+1, model.ActionSell, "AAA", px))
			}
			s, err := Summarize(execs, Config{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, s.WinLossRatio, 1e-9)
		})
	}
}

func TestSummarize_EvenMedian(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(1, model.ActionSell, "AAA", 100),
		ex(1, model.ActionBuy, "AAA", 100),
		ex(4, model.ActionSell, "AAA", 100),
	}
	s, err := Summarize(execs, Config{})
	require.NoError(t, err)
	assert.Equal(t, 2*24*time.Hour, s.MedianDuration)
}

func TestSummarize_NoTrades(t *testing.T) {
	s, err := Summarize([]model.Execution{ex(0, model.ActionBuy, "AAA", 100)}, Config{})
	assert.True(t, errors.Is(err, model.ErrNoTrades))
	assert.Equal(t, 1, s.OpenEntries)

	_, err = Summarize(nil, Config{})
	assert.True(t, errors.Is(err, model.ErrNoTrades))
}

func TestSummarize_Idempotent(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(0, model.ActionShortSell, "BBB", 50),
		ex(1, model.ActionBuy, "AAA", 110),
		ex(2, model.ActionSell, "AAA", 120),
		ex(3, model.ActionShortClose, "BBB", 45),
		ex(4, model.ActionSell, "AAA", 105),
	}
	snapshot := make([]model.Execution, len(execs))
	copy(snapshot, execs)

	cfg := Config{CommissionRate: 0.002, TradeNotional: 100}
	first, err := Summarize(execs, cfg)
	require.NoError(t, err)
	second, err := Summarize(execs, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, execs)
}

func TestBetween_HalfOpen(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(1, model.ActionSell, "AAA", 100),
		ex(2, model.ActionBuy, "AAA", 100),
	}
	got := Between(execs, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 2))
	require.Len(t, got, 1)
	assert.Equal(t, model.ActionSell, got[0].Action)
}

func TestRolling(t *testing.T) {
	var execs []model.Execution
	// one 2-day round trip starting every 10 days
	for d := 0; d < 40; d += 10 {
		execs = append(execs,
			ex(d, model.ActionBuy, "AAA", 100),
			ex(d+2, model.ActionSell, "AAA", 110))
	}

	windows, err := Rolling(execs, Config{TradeNotional: 100}, t0, t0.AddDate(0, 0, 40),
		20*24*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	// starts at day 0, 7, 14: each window must end by day 40
	require.Len(t, windows, 3)

	assert.True(t, windows[0].Traded)
	assert.Equal(t, 2, windows[0].Summary.TotalTrades)

	// day 7..27 holds the trades starting at 10 and 20
	assert.Equal(t, 2, windows[1].Summary.TotalTrades)
	assert.InDelta(t, 0.1, windows[1].Summary.ProfitPctPerTrade, 1e-9)
}

func TestRolling_OrphanExitsAndEmptyWindows(t *testing.T) {
	execs := []model.Execution{
		ex(0, model.ActionBuy, "AAA", 100),
		ex(8, model.ActionSell, "AAA", 120),
	}
	windows, err := Rolling(execs, Config{}, t0, t0.AddDate(0, 0, 14),
		7*24*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	// first window only has the entry, second only the exit
	assert.False(t, windows[0].Traded)
	assert.False(t, windows[1].Traded)
}

func TestRolling_InvalidStep(t *testing.T) {
	_, err := Rolling(nil, Config{}, t0, t0.AddDate(0, 0, 1), 0, time.Hour)
	assert.True(t, errors.Is(err, model.ErrValidation))
}
