package strategy

import (
	"trading-replay/internal/indicator"
	"trading-replay/internal/model"
)

// SimpleSMA opens when the bar opens above the price SMA and closes on the
// shared exits or when the bar opens back below the SMA.
type SimpleSMA struct {
	PriceSMAWindow int
	Exits          Exits
}

// NewSimpleSMA builds the strategy from price_sma_window and the exit params.
func NewSimpleSMA(p Params) (Strategy, error) {
	s := &SimpleSMA{
		PriceSMAWindow: p.Int("price_sma_window", 20),
		Exits:          ExitsFromParams(p),
	}
	if err := positiveWindows(map[string]int{"price_sma_window": s.PriceSMAWindow}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SimpleSMA) Name() string { return "simple_sma" }

func (s *SimpleSMA) Indicators(f *model.Frame) error {
	return f.Set("price_SMA", indicator.SMASeries(indicator.Closes(f.Candles), s.PriceSMAWindow))
}

func (s *SimpleSMA) ExtraIndicators(*model.Frame) error { return nil }

func (s *SimpleSMA) DecideOpen(w Window) *OpenIntent {
	bar := w.Current()
	if gt(bar.Open, bar.Get("price_SMA")) {
		return &OpenIntent{Side: model.Long, Price: bar.Open, Reason: "Price above SMA"}
	}
	return nil
}

func (s *SimpleSMA) DecideClose(w Window, o model.OpenOrder) *CloseIntent {
	bar := w.Current()
	reason := s.Exits.Check(o, bar.Open)
	if reason == "" && lt(bar.Open, bar.Get("price_SMA")) {
		reason = "Price < SMA"
	}
	if reason == "" {
		return nil
	}
	return &CloseIntent{Price: bar.Open, Reason: reason}
}
