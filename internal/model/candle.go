package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Candle is one OHLCV bar for a single instrument.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate rejects a candle with a missing price (NaN, infinite or <= 0) or a
// NaN, infinite or negative volume. Ratio symbols carry volume 0.
func (c Candle) Validate() error {
	prices := [...]struct {
		name string
		v    float64
	}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}}
	for _, p := range prices {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return fmt.Errorf("%w: %s %s at %s is %g", ErrValidation, c.Symbol, p.name, c.TS.Format(time.RFC3339), p.v)
		}
	}
	if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
		return fmt.Errorf("%w: %s volume at %s is %g", ErrValidation, c.Symbol, c.TS.Format(time.RFC3339), c.Volume)
	}
	return nil
}

// Interval is the granularity of a candle series.
type Interval time.Duration

const (
	Interval1m  = Interval(time.Minute)
	Interval3m  = Interval(3 * time.Minute)
	Interval5m  = Interval(5 * time.Minute)
	Interval15m = Interval(15 * time.Minute)
	Interval30m = Interval(30 * time.Minute)
	Interval1h  = Interval(time.Hour)
	Interval2h  = Interval(2 * time.Hour)
	Interval4h  = Interval(4 * time.Hour)
	Interval6h  = Interval(6 * time.Hour)
	Interval8h  = Interval(8 * time.Hour)
	Interval12h = Interval(12 * time.Hour)
	Interval1d  = Interval(24 * time.Hour)
)

var intervalNames = map[Interval]string{
	Interval1m:  "1m",
	Interval3m:  "3m",
	Interval5m:  "5m",
	Interval15m: "15m",
	Interval30m: "30m",
	Interval1h:  "1h",
	Interval2h:  "2h",
	Interval4h:  "4h",
	Interval6h:  "6h",
	Interval8h:  "8h",
	Interval12h: "12h",
	Interval1d:  "1d",
}

// historical table suffixes used by the price warehouse
var intervalAliases = map[string]Interval{
	"1min":    Interval1m,
	"3mins":   Interval3m,
	"5mins":   Interval5m,
	"15mins":  Interval15m,
	"30mins":  Interval30m,
	"1hour":   Interval1h,
	"2hours":  Interval2h,
	"4hours":  Interval4h,
	"6hours":  Interval6h,
	"8hours":  Interval8h,
	"12hours": Interval12h,
	"1day":    Interval1d,
}

// Known reports whether the interval is one of the supported granularities.
func (i Interval) Known() bool {
	_, ok := intervalNames[i]
	return ok
}

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

// Daily reports whether the interval is one calendar day.
func (i Interval) Daily() bool {
	return i == Interval1d
}

func (i Interval) String() string {
	if s, ok := intervalNames[i]; ok {
		return s
	}
	return time.Duration(i).String()
}

// ParseInterval accepts the short form ("5m", "1h", "1d") and the long
// warehouse form ("5mins", "1hour", "1day").
func ParseInterval(s string) (Interval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for iv, name := range intervalNames {
		if name == s {
			return iv, nil
		}
	}
	if iv, ok := intervalAliases[s]; ok {
		return iv, nil
	}
	return 0, fmt.Errorf("%w: unknown interval %q", ErrValidation, s)
}

// ValidateSeries checks every candle with Validate and that candles are
// strictly ascending by TS, which also rules out duplicate timestamps.
func ValidateSeries(candles []Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return err
		}
		if i > 0 && !candles[i].TS.After(candles[i-1].TS) {
			return fmt.Errorf("%w: %s candle %d at %s not after %s",
				ErrValidation, candles[i].Symbol, i,
				candles[i].TS.Format(time.RFC3339), candles[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

// MarshalText encodes the short form.
func (i Interval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText accepts anything ParseInterval does.
func (i *Interval) UnmarshalText(b []byte) error {
	iv, err := ParseInterval(string(b))
	if err != nil {
		return err
	}
	*i = iv
	return nil
}
