// Package marketdata loads candle series for replays, tuning and the live
// cycles, and checks them before they reach the aligner.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trading-replay/internal/model"
)

// Loader reads historical candles from a store and returns them sorted and
// validated.
type Loader struct {
	reader model.CandleReader
	log    *slog.Logger
}

// NewLoader creates a Loader over reader.
func NewLoader(reader model.CandleReader, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{reader: reader, log: log.With("component", "loader")}
}

// Load returns symbol's candles at iv in [from, to), ascending. Rows that
// repeat the previous timestamp are dropped; the first one wins.
func (l *Loader) Load(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	candles, err := l.reader.ReadCandles(ctx, symbol, iv, from, to)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", symbol, iv, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no %s candles for %s", model.ErrValidation, iv, symbol)
	}

	// readers may return rows interleaved across partitions
	sortCandles(candles)
	deduped := dedupe(candles)
	if n := len(candles) - len(deduped); n > 0 {
		l.log.Warn("dropped duplicate candles", "symbol", symbol, "interval", iv.String(), "count", n)
	}
	if err := model.ValidateSeries(deduped); err != nil {
		return nil, err
	}

	l.log.Debug("loaded candles",
		"symbol", symbol,
		"interval", iv.String(),
		"count", len(deduped),
		"first", deduped[0].TS,
		"last", deduped[len(deduped)-1].TS,
	)
	return deduped, nil
}

// Frame loads a series and wraps it in a Frame.
func (l *Loader) Frame(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) (*model.Frame, error) {
	candles, err := l.Load(ctx, symbol, iv, from, to)
	if err != nil {
		return nil, err
	}
	return model.NewFrame(symbol, iv, candles), nil
}

// sortCandles sorts by timestamp, keeping the arrival order of equal ones.
func sortCandles(candles []model.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].TS.Before(candles[j].TS)
	})
}

func dedupe(sorted []model.Candle) []model.Candle {
	out := sorted[:1]
	for _, c := range sorted[1:] {
		if c.TS.Equal(out[len(out)-1].TS) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Change returns the fractional price change of a series from its first
// close to its last, the buy-and-hold baseline a strategy is compared to.
func Change(candles []model.Candle) float64 {
	if len(candles) == 0 || candles[0].Close == 0 {
		return 0
	}
	first, last := candles[0].Close, candles[len(candles)-1].Close
	return (last - first) / first
}
