// Package execution fills order requests for the strategy engine and the
// pairs cycles.
//
// Paper simulates fills at the requested price (plus optional slippage) and
// is the default for replays. Live places market orders through the broker
// REST client. Journaled wraps any executor and records each confirmed fill
// to trade logs and streams. No executor retries; a failed fill surfaces as
// model.ErrExecution and the caller leaves its ledger unchanged.
package execution

import (
	"context"

	"trading-replay/internal/model"
)

// Func adapts a function to model.Executor.
type Func func(ctx context.Context, req model.OrderRequest) (model.Fill, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, req model.OrderRequest) (model.Fill, error) {
	return f(ctx, req)
}

// isBuy reports whether the action buys (opens long or covers short).
func isBuy(a model.Action) bool {
	return a == model.ActionBuy || a == model.ActionShortClose
}
