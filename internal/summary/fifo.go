// Package summary turns an execution log into trade-level and aggregate
// performance statistics. Every function here is pure: the same log always
// yields the same result and the input is never modified.
package summary

import (
	"fmt"
	"time"

	"trading-replay/internal/model"
)

// Trade is one matched entry/exit pair.
type Trade struct {
	Symbol   string          `json:"symbol"`
	Side     model.Side      `json:"side"`
	Entry    model.Execution `json:"entry"`
	Exit     model.Execution `json:"exit"`
	Profit   float64         `json:"profit"`
	Duration time.Duration   `json:"duration"`
}

type queueKey struct {
	symbol string
	side   model.Side
}

// MatchFIFO pairs each exit with the oldest unmatched entry of the same
// symbol and side, in submission order. Longs profit sell - buy notional,
// shorts profit short_sell - short_close notional. Unmatched entries are
// returned as open; an exit with no entry is a validation error.
func MatchFIFO(execs []model.Execution) (trades []Trade, open []model.Execution, err error) {
	queues := make(map[queueKey][]model.Execution)
	var order []queueKey

	for i, e := range execs {
		switch e.Action {
		case model.ActionBuy, model.ActionShortSell:
			side := model.Long
			if e.Action == model.ActionShortSell {
				side = model.Short
			}
			k := queueKey{e.Symbol, side}
			if _, ok := queues[k]; !ok {
				order = append(order, k)
			}
			queues[k] = append(queues[k], e)

		case model.ActionSell, model.ActionShortClose:
			side := model.Long
			if e.Action == model.ActionShortClose {
				side = model.Short
			}
			k := queueKey{e.Symbol, side}
			q := queues[k]
			if len(q) == 0 {
				return nil, nil, fmt.Errorf("%w: %s %s at index %d has no open entry",
					model.ErrValidation, e.Action, e.Symbol, i)
			}
			entry := q[0]
			queues[k] = q[1:]

			profit := e.Notional - entry.Notional
			if side == model.Short {
				profit = entry.Notional - e.Notional
			}
			trades = append(trades, Trade{
				Symbol:   e.Symbol,
				Side:     side,
				Entry:    entry,
				Exit:     e,
				Profit:   profit,
				Duration: e.Time.Sub(entry.Time),
			})

		default:
			return nil, nil, fmt.Errorf("%w: unknown action %q at index %d", model.ErrValidation, e.Action, i)
		}
	}

	for _, k := range order {
		open = append(open, queues[k]...)
	}
	return trades, open, nil
}
