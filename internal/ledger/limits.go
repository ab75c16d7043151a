package ledger

import (
	"fmt"

	"trading-replay/internal/model"
)

// Limits caps the number of concurrently OPEN orders.
type Limits struct {
	MaxPerSymbol int `json:"max_open_orders_per_symbol" yaml:"max_open_orders_per_symbol"`
	MaxTotal     int `json:"max_open_orders_total" yaml:"max_open_orders_total"`
}

// DefaultLimits returns conservative default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPerSymbol: 1,
		MaxTotal:     3,
	}
}

// Validate rejects non-positive caps.
func (l Limits) Validate() error {
	if l.MaxPerSymbol < 1 || l.MaxTotal < 1 {
		return fmt.Errorf("%w: open order caps must be >= 1 (per symbol %d, total %d)",
			model.ErrValidation, l.MaxPerSymbol, l.MaxTotal)
	}
	return nil
}
