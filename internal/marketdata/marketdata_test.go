package marketdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
	"trading-replay/pkg/brokerapi"
)

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	t0    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type readerFunc func(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) ([]model.Candle, error)

func (f readerFunc) ReadCandles(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	return f(ctx, symbol, iv, from, to)
}

func day(d int, close float64) model.Candle {
	return model.Candle{Symbol: "AAA", TS: t0.AddDate(0, 0, d), Open: close, High: close, Low: close, Close: close}
}

func TestLoader_SortsAndDedupes(t *testing.T) {
	r := readerFunc(func(_ context.Context, symbol string, iv model.Interval, _, _ time.Time) ([]model.Candle, error) {
		assert.Equal(t, "AAA", symbol)
		assert.Equal(t, model.Interval1d, iv)
		return []model.Candle{day(2, 12), day(0, 10), day(1, 11), day(1, 99)}, nil
	})
	got, err := NewLoader(r, quiet).Load(context.Background(), "AAA", model.Interval1d, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{10, 11, 12}, []float64{got[0].Close, got[1].Close, got[2].Close})
}

func TestLoader_DescendingInput(t *testing.T) {
	const n = 5000
	desc := make([]model.Candle, n)
	for i := range desc {
		desc[i] = day(n-1-i, float64(n-i))
	}
	r := readerFunc(func(context.Context, string, model.Interval, time.Time, time.Time) ([]model.Candle, error) {
		return desc, nil
	})
	got, err := NewLoader(r, quiet).Load(context.Background(), "AAA", model.Interval1d, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, t0, got[0].TS)
	assert.Equal(t, float64(n), got[n-1].Close)
}

func TestLoader_RejectsMissingPrice(t *testing.T) {
	r := readerFunc(func(context.Context, string, model.Interval, time.Time, time.Time) ([]model.Candle, error) {
		bad := day(1, 11)
		bad.Low = 0
		return []model.Candle{day(0, 10), bad}, nil
	})
	_, err := NewLoader(r, quiet).Load(context.Background(), "AAA", model.Interval1d, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLoader_Errors(t *testing.T) {
	empty := readerFunc(func(context.Context, string, model.Interval, time.Time, time.Time) ([]model.Candle, error) {
		return nil, nil
	})
	_, err := NewLoader(empty, quiet).Load(context.Background(), "AAA", model.Interval1d, time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, model.ErrValidation))

	boom := errors.New("connection refused")
	failing := readerFunc(func(context.Context, string, model.Interval, time.Time, time.Time) ([]model.Candle, error) {
		return nil, boom
	})
	_, err = NewLoader(failing, quiet).Frame(context.Background(), "AAA", model.Interval1d, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, boom)
}

func TestChange(t *testing.T) {
	assert.InDelta(t, 0.5, Change([]model.Candle{day(0, 100), day(1, 90), day(2, 150)}), 1e-12)
	assert.Equal(t, 0.0, Change(nil))
}

type fetcher struct {
	got  brokerapi.CandleParams
	rows []brokerapi.Candle
}

func (f *fetcher) CandleData(_ context.Context, p brokerapi.CandleParams) ([]brokerapi.Candle, error) {
	f.got = p
	return f.rows, nil
}

func TestBroker_Candles(t *testing.T) {
	f := &fetcher{rows: []brokerapi.Candle{
		{TS: t0.Add(time.Hour), Open: 2, High: 2, Low: 2, Close: 2},
		{TS: t0, Open: 1, High: 1, Low: 1, Close: 1},
	}}
	b := NewBroker(f, map[string]brokerapi.Instrument{"AAA": {Exchange: "NSE", Token: "123"}}, 10)
	b.now = func() time.Time { return t0.Add(10 * time.Hour) }

	got, err := b.Candles(context.Background(), "AAA", model.Interval1h)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, "AAA", got[1].Symbol)

	assert.Equal(t, "ONE_HOUR", f.got.Interval)
	assert.Equal(t, "123", f.got.SymbolToken)
	assert.Equal(t, "2024-01-01 00:00", f.got.FromDate)
	assert.Equal(t, "2024-01-01 10:00", f.got.ToDate)

	_, err = b.Candles(context.Background(), "ZZZ", model.Interval1h)
	assert.True(t, errors.Is(err, model.ErrValidation))
	_, err = b.Candles(context.Background(), "AAA", model.Interval4h)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestStored_Tail(t *testing.T) {
	now := t0.AddDate(0, 0, 10)
	r := readerFunc(func(_ context.Context, _ string, _ model.Interval, from, to time.Time) ([]model.Candle, error) {
		assert.True(t, from.IsZero())
		assert.Equal(t, now, to)
		var out []model.Candle
		for d := 0; d < 10; d++ {
			out = append(out, day(d, float64(100+d)))
		}
		return out, nil
	})
	s := NewStored(NewLoader(r, quiet), 3)
	s.now = func() time.Time { return now }

	got, err := s.Candles(context.Background(), "AAA", model.Interval1d)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 107.0, got[0].Close)
	assert.Equal(t, 109.0, got[2].Close)

	s.bars = 0
	got, err = s.Candles(context.Background(), "AAA", model.Interval1d)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}
