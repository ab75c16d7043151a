package model

import (
	"fmt"
	"math"
	"sort"
)

// Frame is a candle series plus named indicator columns. Every column has
// exactly one value per candle; undefined values are NaN.
type Frame struct {
	Symbol   string
	Interval Interval
	Candles  []Candle

	cols  map[string][]float64
	order []string
}

// NewFrame wraps a candle series. The slice is not copied.
func NewFrame(symbol string, iv Interval, candles []Candle) *Frame {
	return &Frame{
		Symbol:   symbol,
		Interval: iv,
		Candles:  candles,
		cols:     make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Candles) }

// Set stores a column. The column must have one value per candle.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.Candles) {
		return fmt.Errorf("%w: column %s has %d values for %d candles",
			ErrValidation, name, len(values), len(f.Candles))
	}
	if f.cols == nil {
		f.cols = make(map[string][]float64)
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// Col returns a column, or nil if it was never set.
func (f *Frame) Col(name string) []float64 {
	return f.cols[name]
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Value returns column name at row i, or NaN if absent.
func (f *Frame) Value(i int, name string) float64 {
	c, ok := f.cols[name]
	if !ok || i < 0 || i >= len(c) {
		return math.NaN()
	}
	return c[i]
}

// Bar is one aligned row: the trade candle and every indicator value
// visible at that bar.
type Bar struct {
	Candle
	Fields map[string]float64
}

// Get returns an indicator field, or NaN if absent.
func (b Bar) Get(name string) float64 {
	if v, ok := b.Fields[name]; ok {
		return v
	}
	return math.NaN()
}

// Has reports whether the field is present and defined.
func (b Bar) Has(name string) bool {
	v, ok := b.Fields[name]
	return ok && !math.IsNaN(v)
}

// FieldNames returns the bar's field names sorted.
func (b Bar) FieldNames() []string {
	names := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
