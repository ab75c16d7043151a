package marketdata

import (
	"context"
	"time"

	"trading-replay/internal/model"
)

// Stored serves live cycles from a candle store instead of the broker, for
// paper cycles run against synced history.
type Stored struct {
	loader *Loader
	bars   int
	now    func() time.Time
}

// NewStored returns the last bars candles of each series that closed before
// now. bars <= 0 returns the whole history.
func NewStored(loader *Loader, bars int) *Stored {
	return &Stored{loader: loader, bars: bars, now: time.Now}
}

// Candles implements model.MarketData.
func (s *Stored) Candles(ctx context.Context, symbol string, iv model.Interval) ([]model.Candle, error) {
	candles, err := s.loader.Load(ctx, symbol, iv, time.Time{}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if s.bars > 0 && len(candles) > s.bars {
		candles = candles[len(candles)-s.bars:]
	}
	return candles, nil
}
