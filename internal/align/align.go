// Package align joins slower indicator series onto a trade-frequency series
// without exposing any value that was not final at the trade bar.
//
// Two patterns are supported:
//
//   - same granularity: indicator columns are shifted one row, so bar t sees
//     the indicator computed on bar t-1;
//   - daily indicators under a finer trade series: bar dated D sees the
//     daily row dated D-1.
//
// Every other combination is rejected with model.ErrDataMismatch.
package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trading-replay/internal/model"
)

// Source is an indicator frame to join onto the trade series. Its columns
// appear on each Bar as column name + Suffix.
type Source struct {
	Frame  *model.Frame
	Suffix string
}

// DetectInterval returns the modal timestamp delta of a series. Ties go to
// the smaller delta.
func DetectInterval(candles []model.Candle) (model.Interval, error) {
	if len(candles) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 candles to detect granularity, got %d",
			model.ErrValidation, len(candles))
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(candles); i++ {
		counts[candles[i].TS.Sub(candles[i-1].TS)]++
	}
	deltas := make([]time.Duration, 0, len(counts))
	for d := range counts {
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })

	best := deltas[0]
	for _, d := range deltas[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	iv := model.Interval(best)
	if !iv.Known() {
		return 0, fmt.Errorf("%w: unrecognized granularity %s", model.ErrValidation, best)
	}
	return iv, nil
}

type joinKind int

const (
	joinShift joinKind = iota
	joinPriorDay
)

// Align produces one Bar per trade candle carrying every source column
// visible at that bar. Join keys with no match leave NaN fields. No partial
// result is returned on error.
func Align(trade *model.Frame, sources ...Source) ([]model.Bar, error) {
	if err := model.ValidateSeries(trade.Candles); err != nil {
		return nil, fmt.Errorf("trade series: %w", err)
	}
	tradeIv, err := DetectInterval(trade.Candles)
	if err != nil {
		return nil, fmt.Errorf("trade series %s: %w", trade.Symbol, err)
	}

	kinds := make([]joinKind, len(sources))
	seen := make(map[string]bool)
	for i, src := range sources {
		for _, name := range src.Frame.Columns() {
			if seen[name+src.Suffix] {
				return nil, fmt.Errorf("%w: column %s provided by more than one source",
					model.ErrValidation, name+src.Suffix)
			}
			seen[name+src.Suffix] = true
		}
		if err := model.ValidateSeries(src.Frame.Candles); err != nil {
			return nil, fmt.Errorf("indicator series: %w", err)
		}
		iv, err := DetectInterval(src.Frame.Candles)
		if err != nil {
			return nil, fmt.Errorf("indicator series %s: %w", src.Frame.Symbol, err)
		}
		switch {
		case iv == tradeIv:
			kinds[i] = joinShift
		case iv.Daily() && tradeIv < iv:
			kinds[i] = joinPriorDay
		default:
			return nil, fmt.Errorf("%w: cannot align %s indicator series onto %s trade series",
				model.ErrDataMismatch, iv, tradeIv)
		}
	}

	bars := make([]model.Bar, len(trade.Candles))
	for i, c := range trade.Candles {
		bars[i] = model.Bar{Candle: c, Fields: make(map[string]float64)}
	}

	for i, src := range sources {
		switch kinds[i] {
		case joinShift:
			joinShifted(bars, src)
		case joinPriorDay:
			joinPriorDate(bars, src)
		}
	}
	return bars, nil
}

func joinShifted(bars []model.Bar, src Source) {
	byTS := make(map[int64]int, src.Frame.Len())
	for i, c := range src.Frame.Candles {
		byTS[c.TS.UnixNano()] = i
	}
	cols := src.Frame.Columns()
	for b := range bars {
		row, ok := byTS[bars[b].TS.UnixNano()]
		for _, name := range cols {
			v := math.NaN()
			if ok && row > 0 {
				v = src.Frame.Value(row-1, name)
			}
			bars[b].Fields[name+src.Suffix] = v
		}
	}
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func joinPriorDate(bars []model.Bar, src Source) {
	byDate := make(map[string]int, src.Frame.Len())
	for i, c := range src.Frame.Candles {
		// row dated D becomes visible on D+1
		byDate[dateKey(c.TS.UTC().AddDate(0, 0, 1))] = i
	}
	cols := src.Frame.Columns()
	for b := range bars {
		row, ok := byDate[dateKey(bars[b].TS)]
		for _, name := range cols {
			v := math.NaN()
			if ok {
				v = src.Frame.Value(row, name)
			}
			bars[b].Fields[name+src.Suffix] = v
		}
	}
}
