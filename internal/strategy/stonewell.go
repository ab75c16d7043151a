package strategy

import (
	"trading-replay/internal/indicator"
	"trading-replay/internal/model"
)

// StoneWell trades momentum: price, volume and Keltner columns come from the
// indicator series, RSI and EMA columns from the extra (usually daily)
// series. It opens when the short RSI is above the long RSI and the bar
// opens above the close SMA.
type StoneWell struct {
	RSIWindow            int
	RSIWindow2           int
	RSISMAWindow         int
	PriceSMAWindow       int
	ShortSMAWindow       int
	LongSMAWindow        int
	VolumeShortSMAWindow int
	VolumeLongSMAWindow  int
	ATRWindow            int
	KCSMAWindow          int
	KCMult               float64
	Exits                Exits
}

// NewStoneWell builds the strategy from its window params and the exit params.
func NewStoneWell(p Params) (Strategy, error) {
	s := &StoneWell{
		RSIWindow:            p.Int("rsi_window", 14),
		RSIWindow2:           p.Int("rsi_window_2", 28),
		RSISMAWindow:         p.Int("rsi_sma_window", 20),
		PriceSMAWindow:       p.Int("price_sma_window", 20),
		ShortSMAWindow:       p.Int("short_sma_window", 50),
		LongSMAWindow:        p.Int("long_sma_window", 200),
		VolumeShortSMAWindow: p.Int("volume_short_sma_window", 10),
		VolumeLongSMAWindow:  p.Int("volume_long_sma_window", 20),
		ATRWindow:            p.Int("atr_window", 14),
		KCSMAWindow:          p.Int("kc_sma_window", 20),
		KCMult:               p.Float("kc_mult", 2),
		Exits:                ExitsFromParams(p),
	}
	err := positiveWindows(map[string]int{
		"rsi_window":              s.RSIWindow,
		"rsi_window_2":            s.RSIWindow2,
		"rsi_sma_window":          s.RSISMAWindow,
		"price_sma_window":        s.PriceSMAWindow,
		"short_sma_window":        s.ShortSMAWindow,
		"long_sma_window":         s.LongSMAWindow,
		"volume_short_sma_window": s.VolumeShortSMAWindow,
		"volume_long_sma_window":  s.VolumeLongSMAWindow,
		"atr_window":              s.ATRWindow,
		"kc_sma_window":           s.KCSMAWindow,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StoneWell) Name() string { return "stonewell" }

func (s *StoneWell) Indicators(f *model.Frame) error {
	closes := indicator.Closes(f.Candles)
	vols := indicator.Volumes(f.Candles)
	highs, lows := indicator.Highs(f.Candles), indicator.Lows(f.Candles)
	kc := indicator.KeltnerSeries(highs, lows, closes, s.KCSMAWindow, s.ATRWindow, s.KCMult)

	cols := []struct {
		name   string
		values []float64
	}{
		{"close_SMA", indicator.SMASeries(closes, s.PriceSMAWindow)},
		{"close_short_SMA", indicator.SMASeries(closes, s.ShortSMAWindow)},
		{"close_long_SMA", indicator.SMASeries(closes, s.LongSMAWindow)},
		{"volume_short_SMA", indicator.SMASeries(vols, s.VolumeShortSMAWindow)},
		{"volume_long_SMA", indicator.SMASeries(vols, s.VolumeLongSMAWindow)},
		{"ATR", indicator.ATRSeries(highs, lows, closes, s.ATRWindow)},
		{"KC_middle", kc.Middle},
		{"KC_upper", kc.Upper},
		{"KC_lower", kc.Lower},
		{"KC_position", kc.Position},
	}
	for _, c := range cols {
		if err := f.Set(c.name, c.values); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoneWell) ExtraIndicators(f *model.Frame) error {
	closes := indicator.Closes(f.Candles)
	rsi := indicator.RSISeries(closes, s.RSIWindow)

	cols := []struct {
		name   string
		values []float64
	}{
		{"RSI", rsi},
		{"RSI_SMA", indicator.SMASeries(rsi, s.RSISMAWindow)},
		{"RSI_2", indicator.RSISeries(closes, s.RSIWindow2)},
		{"EMA_12", indicator.EMASeries(closes, 12)},
		{"EMA_26", indicator.EMASeries(closes, 26)},
	}
	for _, c := range cols {
		if err := f.Set(c.name, c.values); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoneWell) DecideOpen(w Window) *OpenIntent {
	bar := w.Current()
	if gt(bar.Get("RSI"), bar.Get("RSI_2")) && gt(bar.Open, bar.Get("close_SMA")) {
		return &OpenIntent{Side: model.Long, Price: bar.Open, Reason: "RSI above long RSI and price above SMA"}
	}
	return nil
}

func (s *StoneWell) DecideClose(w Window, o model.OpenOrder) *CloseIntent {
	bar := w.Current()
	if reason := s.Exits.Check(o, bar.Open); reason != "" {
		return &CloseIntent{Price: bar.Open, Reason: reason}
	}
	return nil
}
