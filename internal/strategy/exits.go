package strategy

import (
	"fmt"

	"trading-replay/internal/model"
)

// Exits are the shared close rules, checked in order: stop loss, profit
// target, profitable retracement from the high since open.
type Exits struct {
	ProfitThreshold   float64 // e.g. 0.05 closes at +5%
	StoplossThreshold float64 // e.g. -0.03 closes at -3%
	MaxHighRetrace    float64 // e.g. 0.02 closes 2% under the high if still profitable
}

// ExitsFromParams reads profit_threshold, stoploss_threshold and
// max_high_retrace.
func ExitsFromParams(p Params) Exits {
	return Exits{
		ProfitThreshold:   p.Float("profit_threshold", 10),
		StoplossThreshold: p.Float("stoploss_threshold", -0.05),
		MaxHighRetrace:    p.Float("max_high_retrace", 0.05),
	}
}

// Check returns the first matching close reason at price, or "".
func (x Exits) Check(o model.OpenOrder, price float64) string {
	pct := o.ProfitPctAt(price)
	switch {
	case pct <= x.StoplossThreshold:
		return fmt.Sprintf("Stop loss hit (P%%: %.1f%%)", pct*100)
	case pct >= x.ProfitThreshold:
		return fmt.Sprintf("Profit target met (P%%: %.1f%%)", pct*100)
	case o.Side != model.Short && pct > 0 && price <= o.HighSinceOpen*(1-x.MaxHighRetrace):
		return "Price retraced but profitable"
	}
	return ""
}
