// Package tuning replays a strategy over a grid of parameter combinations
// and symbols and ranks the results.
package tuning

import (
	"fmt"
	"sort"

	"trading-replay/internal/model"
	"trading-replay/internal/strategy"
)

// Grid maps a parameter name to the values to try.
type Grid map[string][]float64

// Combinations returns the cartesian product of the grid. Keys are visited
// in sorted order with the last key varying fastest, so the order is stable
// across runs.
func (g Grid) Combinations() ([]strategy.Params, error) {
	keys := make([]string, 0, len(g))
	for k, vals := range g {
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: parameter %s has no values", model.ErrValidation, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		total *= len(g[k])
	}
	out := make([]strategy.Params, 0, total)
	idx := make([]int, len(keys))
	for n := 0; n < total; n++ {
		p := make(strategy.Params, len(keys))
		for i, k := range keys {
			p[k] = g[k][idx[i]]
		}
		out = append(out, p)

		for i := len(keys) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}
