package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"trading-replay/internal/model"
)

// Paper simulates order execution without broker calls.
type Paper struct {
	mu       sync.RWMutex
	fills    []model.Fill
	orderSeq int64
	log      *slog.Logger

	// Simulation parameters
	slippageBps float64 // basis points of slippage (e.g., 5 = 0.05%)
}

// NewPaper creates a paper executor. slippageBps controls simulated
// slippage in basis points; 0 fills exactly at the reference price.
func NewPaper(slippageBps float64, log *slog.Logger) *Paper {
	if log == nil {
		log = slog.Default()
	}
	return &Paper{
		fills:       make([]model.Fill, 0, 1000),
		slippageBps: slippageBps,
		log:         log.With(slog.String("component", "paper")),
	}
}

// Fills returns a snapshot of all fills.
func (p *Paper) Fills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Execute fills req immediately at its reference price adjusted for slippage.
func (p *Paper) Execute(_ context.Context, req model.OrderRequest) (model.Fill, error) {
	if req.RefPrice <= 0 || req.Quantity <= 0 {
		return model.Fill{}, fmt.Errorf("%w: paper fill needs positive price and quantity (price=%g qty=%g)",
			model.ErrExecution, req.RefPrice, req.Quantity)
	}

	price := req.RefPrice
	if p.slippageBps > 0 {
		slip := price * p.slippageBps / 10000
		if isBuy(req.Action) {
			price += slip // buy higher
		} else {
			price -= slip // sell lower
		}
	}

	p.mu.Lock()
	p.orderSeq++
	fill := model.Fill{
		OrderID:          fmt.Sprintf("PAPER-%d", p.orderSeq),
		Symbol:           req.Symbol,
		Action:           req.Action,
		Time:             req.Time,
		Price:            price,
		ExecutedQuantity: req.Quantity,
		ExecutedNotional: price * req.Quantity,
		Status:           "FILLED",
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	p.log.Debug("paper fill",
		slog.String("order_id", fill.OrderID),
		slog.String("action", string(req.Action)),
		slog.String("symbol", req.Symbol),
		slog.Float64("qty", req.Quantity),
		slog.Float64("price", price),
	)
	return fill, nil
}
