package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"trading-replay/internal/model"
)

// Params are the numeric parameters of a strategy, keyed by name
// (e.g. "price_sma_window", "profit_threshold").
type Params map[string]float64

// Float returns a parameter or def when unset.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns a parameter as an int or def when unset.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(math.Round(v))
	}
	return def
}

// Merge returns a copy of p overlaid with o.
func (p Params) Merge(o Params) Params {
	out := make(Params, len(p)+len(o))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// String renders params sorted by key, e.g. "a=1 b=2".
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

func positiveWindows(windows map[string]int) error {
	for name, w := range windows {
		if w < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", model.ErrValidation, name, w)
		}
	}
	return nil
}
