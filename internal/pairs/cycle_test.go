package pairs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/execution"
	"trading-replay/internal/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeMarket map[string]map[model.Interval][]model.Candle

func (f fakeMarket) Candles(_ context.Context, symbol string, iv model.Interval) ([]model.Candle, error) {
	cs, ok := f[symbol][iv]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return cs, nil
}

type memStore struct {
	rows []model.PairPosition
	err  error
}

func (m *memStore) LoadPairs(context.Context) ([]model.PairPosition, error) {
	out := make([]model.PairPosition, len(m.rows))
	copy(out, m.rows)
	return out, m.err
}

func (m *memStore) SavePairs(_ context.Context, rows []model.PairPosition) error {
	for _, r := range rows {
		replaced := false
		for i := range m.rows {
			if m.rows[i].ID == r.ID {
				m.rows[i] = r
				replaced = true
			}
		}
		if !replaced {
			m.rows = append(m.rows, r)
		}
	}
	return nil
}

type transitions []string

func (tr *transitions) OnPairTransition(p model.PairPosition, from model.PairStatus) {
	*tr = append(*tr, fmt.Sprintf("%s/%s %s->%s", p.SymbolY, p.SymbolX, from, p.Status))
}

type lastPosition struct{ p model.PairPosition }

func (l *lastPosition) OnPairTransition(p model.PairPosition, _ model.PairStatus) { l.p = p }

var fixedNow = func() time.Time { return day0.AddDate(0, 0, 11) }

// pairHistory builds ten days of YYY/XXX history with an alternating spread of
// 50/51 and one day of hourly bars whose YYY closes are given.
func pairHistory(tradeY ...float64) fakeMarket {
	bandY := make([]float64, 10)
	for d := range bandY {
		bandY[d] = 100 + float64(d%2)
	}
	tradeStart := day0.AddDate(0, 0, 10)
	return fakeMarket{
		"YYY": {
			model.Interval1d: series("YYY", day0, 24*time.Hour, bandY...),
			model.Interval1h: series("YYY", tradeStart, time.Hour, tradeY...),
		},
		"XXX": {
			model.Interval1d: series("XXX", day0, 24*time.Hour, repeat(50, 10)...),
			model.Interval1h: series("XXX", tradeStart, time.Hour, repeat(50, len(tradeY))...),
		},
	}
}

func withLast(base float64, n int, last float64) []float64 {
	out := repeat(base, n)
	out[n-1] = last
	return out
}

func TestOpener_OpensDivergedPair(t *testing.T) {
	md := pairHistory(withLast(100, 24, 110)...)
	store := &memStore{rows: []model.PairPosition{
		{ID: "existing", Status: model.PairOpen, SymbolY: "DDD", SymbolX: "CCC"},
	}}
	var seen transitions
	op := NewOpener(testConfig(), md, execution.NewPaper(0, quiet), store, quiet,
		WithObserver(&seen), WithClock(fixedNow))

	good := model.PairCandidate{SymbolY: "YYY", SymbolX: "XXX", OLSCoeff: 1, RecentCoint: 0.8, RSquared: 0.7, PotentialWinPc: 0.02}
	rep, err := op.Run(context.Background(), []model.PairCandidate{
		good,
		{SymbolY: "AAA", SymbolX: "BBB", OLSCoeff: 1, RecentCoint: 0.5, RSquared: 0.9, PotentialWinPc: 0.5},
		{SymbolY: "CCC", SymbolX: "DDD", OLSCoeff: 1, RecentCoint: 0.9, RSquared: 0.9, PotentialWinPc: 0.5},
		{SymbolY: "EEE", SymbolX: "FFF", OLSCoeff: 1, RecentCoint: 0.9, RSquared: 0.9, PotentialWinPc: 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, rep.Checked)
	require.Len(t, rep.Opened, 1)
	assert.Contains(t, rep.Failures, "EEE/FFF")

	row := rep.Opened[0]
	assert.Equal(t, model.PairOpen, row.Status)
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "XXX", row.LongLeg.Symbol, "spread above upper band longs X")
	assert.Equal(t, "YYY", row.ShortLeg.Symbol)
	assert.InDelta(t, 0.31, row.LongLeg.Quantity, 1e-9)
	assert.InDelta(t, 15.5, row.LongLeg.Notional, 1e-9)
	assert.InDelta(t, 0.312, row.ShortLeg.Quantity, 1e-9)
	assert.InDelta(t, 34.32, row.ShortLeg.Notional, 1e-9)
	assert.Equal(t, 60.0, row.Spread)
	assert.Equal(t, fixedNow(), row.RecordedAt)

	require.Len(t, store.rows, 2)
	assert.Equal(t, transitions{"YYY/XXX STANDBY->OPEN"}, seen)
}

func TestOpener_StandbyWritesNothing(t *testing.T) {
	store := &memStore{}
	op := NewOpener(testConfig(), pairHistory(repeat(100, 24)...), execution.NewPaper(0, quiet), store, quiet)
	rep, err := op.Run(context.Background(), []model.PairCandidate{
		{SymbolY: "YYY", SymbolX: "XXX", OLSCoeff: 1, RecentCoint: 0.8, RSquared: 0.7, PotentialWinPc: 0.02},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Standby)
	assert.Empty(t, rep.Opened)
	assert.Empty(t, store.rows)
}

func TestOpener_StoreFailure(t *testing.T) {
	op := NewOpener(testConfig(), fakeMarket{}, execution.NewPaper(0, quiet), &memStore{err: errors.New("disk")}, quiet)
	_, err := op.Run(context.Background(), nil)
	require.Error(t, err)
}

func openRow() model.PairPosition {
	return model.PairPosition{
		ID:      "pair-1",
		Status:  model.PairOpen,
		SymbolY: "YYY", SymbolX: "XXX",
		OLSCoeff: 1,
		LongLeg:  model.Leg{Symbol: "XXX", Side: model.Long, Quantity: 0.31, Notional: 15.5},
		ShortLeg: model.Leg{Symbol: "YYY", Side: model.Short, Quantity: 0.312, Notional: 34.32},
	}
}

func TestCloser_ProfitClose(t *testing.T) {
	// YYY falls back from 110 to 100: spread 60 -> 50 crosses the 50.67 mean
	md := pairHistory(withLast(110, 24, 100)...)
	store := &memStore{rows: []model.PairPosition{openRow()}}
	var seen transitions
	var last lastPosition
	cl := NewCloser(testConfig(), md, execution.NewPaper(0, quiet), store, quiet,
		WithObserver(&seen), WithObserver(&last), WithClock(fixedNow))

	rep, err := cl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Checked)
	require.Len(t, rep.Closed, 1)

	require.Len(t, store.rows, 2)
	assert.Equal(t, model.PairProfitClosed, store.rows[0].Status)
	closing := store.rows[1]
	assert.Equal(t, model.PairClosingTrade, closing.Status)
	assert.Equal(t, "pair-1", closing.ParentID)
	assert.Equal(t, "XXX", closing.LongLeg.Symbol)
	assert.InDelta(t, 15.5, closing.LongLeg.Notional, 1e-9)
	assert.InDelta(t, 31.2, closing.ShortLeg.Notional, 1e-9)
	assert.Equal(t, transitions{"YYY/XXX OPEN->PROFIT_CLOSED"}, seen)
	assert.Equal(t, 0.0, store.rows[0].Spread, "terminal row keeps its entry spread")
	assert.Equal(t, 50.0, closing.Spread)
	assert.Equal(t, closing.Spread, last.p.Spread, "observers see the closing spread")
	assert.Equal(t, closing.UpperBand, last.p.UpperBand)
	assert.Equal(t, closing.LowerBand, last.p.LowerBand)
	assert.Equal(t, "pair-1", last.p.ID)

	pnl := SummarizePnL(store.rows, 0.001)
	require.Equal(t, 1, pnl.Trades)
	assert.InDelta(t, 0.0, pnl.RoundTrips[0].LongPnL, 1e-9)
	assert.InDelta(t, 3.12, pnl.RoundTrips[0].ShortPnL, 1e-9)
	assert.InDelta(t, 3.12, pnl.TotalPnL, 1e-9)
	assert.InDelta(t, 49.82, pnl.Volume, 1e-9)
	assert.InDelta(t, 3.12-0.04982, pnl.NetPnL, 1e-9)
	assert.Equal(t, 1.0, pnl.WinRate)
}

func TestCloser_NormalSpreadStaysOpen(t *testing.T) {
	store := &memStore{rows: []model.PairPosition{openRow()}}
	cl := NewCloser(testConfig(), pairHistory(repeat(102, 24)...), execution.NewPaper(0, quiet), store, quiet)
	rep, err := cl.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Closed)
	require.Len(t, store.rows, 1)
	assert.Equal(t, model.PairOpen, store.rows[0].Status)
}

func TestCloser_PartialUnwindStaysOpen(t *testing.T) {
	paper := execution.NewPaper(0, quiet)
	var actions []model.Action
	exec := execution.Func(func(ctx context.Context, req model.OrderRequest) (model.Fill, error) {
		actions = append(actions, req.Action)
		if req.Action == model.ActionShortClose {
			return model.Fill{}, fmt.Errorf("%w: margin repay rejected", model.ErrExecution)
		}
		return paper.Execute(ctx, req)
	})
	store := &memStore{rows: []model.PairPosition{openRow()}}
	cl := NewCloser(testConfig(), pairHistory(withLast(110, 24, 100)...), exec, store, quiet)

	rep, err := cl.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Closed)
	assert.Contains(t, rep.Failures, "pair-1")
	assert.Equal(t, []model.Action{model.ActionSell, model.ActionShortClose}, actions)

	require.Len(t, store.rows, 1)
	assert.Equal(t, model.PairOpen, store.rows[0].Status)
}

func TestMatchRoundTrips_FallbackBySymbols(t *testing.T) {
	entry := openRow()
	entry.Status = model.PairUpperStopped
	exit := model.PairPosition{
		ID: "c", Status: model.PairClosingTrade, SymbolY: "XXX", SymbolX: "YYY",
		LongLeg:  model.Leg{Notional: 14},
		ShortLeg: model.Leg{Notional: 36},
	}
	other := model.PairPosition{ID: "o", Status: model.PairOpen, SymbolY: "AAA", SymbolX: "BBB"}

	trips := MatchRoundTrips([]model.PairPosition{entry, other, exit})
	require.Len(t, trips, 1)
	assert.InDelta(t, -1.5, trips[0].LongPnL, 1e-9)
	assert.InDelta(t, -1.68, trips[0].ShortPnL, 1e-9)

	// no closing row: nothing to match
	assert.Empty(t, MatchRoundTrips([]model.PairPosition{entry}))

	ids := []string{trips[0].Entry.ID, trips[0].Exit.ID}
	sort.Strings(ids)
	assert.Equal(t, []string{"c", "pair-1"}, ids)
}
