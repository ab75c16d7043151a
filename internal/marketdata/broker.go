package marketdata

import (
	"context"
	"fmt"
	"time"

	"trading-replay/internal/model"
	"trading-replay/pkg/brokerapi"
)

// CandleFetcher is the part of the broker client the live source needs.
type CandleFetcher interface {
	CandleData(ctx context.Context, p brokerapi.CandleParams) ([]brokerapi.Candle, error)
}

var brokerIntervals = map[model.Interval]string{
	model.Interval1m:  "ONE_MINUTE",
	model.Interval3m:  "THREE_MINUTE",
	model.Interval5m:  "FIVE_MINUTE",
	model.Interval15m: "FIFTEEN_MINUTE",
	model.Interval30m: "THIRTY_MINUTE",
	model.Interval1h:  "ONE_HOUR",
	model.Interval1d:  "ONE_DAY",
}

const brokerTimeLayout = "2006-01-02 15:04"

// Broker serves the latest candles for live cycles from the broker's
// historical candle endpoint.
type Broker struct {
	client      CandleFetcher
	instruments map[string]brokerapi.Instrument
	bars        int // candles requested per call
	now         func() time.Time
}

// NewBroker creates a live candle source returning roughly the last bars
// candles of each requested interval.
func NewBroker(client CandleFetcher, instruments map[string]brokerapi.Instrument, bars int) *Broker {
	if bars <= 0 {
		bars = 500
	}
	return &Broker{client: client, instruments: instruments, bars: bars, now: time.Now}
}

// Candles implements model.MarketData.
func (b *Broker) Candles(ctx context.Context, symbol string, iv model.Interval) ([]model.Candle, error) {
	inst, ok := b.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no instrument for %s", model.ErrValidation, symbol)
	}
	name, ok := brokerIntervals[iv]
	if !ok {
		return nil, fmt.Errorf("%w: broker has no %s candles", model.ErrValidation, iv)
	}
	to := b.now().UTC()
	from := to.Add(-time.Duration(b.bars) * iv.Duration())

	rows, err := b.client.CandleData(ctx, brokerapi.CandleParams{
		Exchange:    inst.Exchange,
		SymbolToken: inst.Token,
		Interval:    name,
		FromDate:    from.Format(brokerTimeLayout),
		ToDate:      to.Format(brokerTimeLayout),
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Candle, len(rows))
	for i, r := range rows {
		out[i] = model.Candle{
			Symbol: symbol,
			TS:     r.TS,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	sortCandles(out)
	if err := model.ValidateSeries(out); err != nil {
		return nil, err
	}
	return out, nil
}
