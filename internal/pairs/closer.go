package pairs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trading-replay/internal/model"
)

// CloseReport summarizes one closer cycle.
type CloseReport struct {
	Checked  int                  `json:"checked"`
	Closed   []model.PairPosition `json:"closed"`
	Failures map[string]string    `json:"failures,omitempty"`
}

// Closer checks every OPEN pair for mean reversion or a stop breach and
// unwinds the ones that qualify.
type Closer struct {
	cycle
}

// NewCloser creates a closer cycle.
func NewCloser(cfg Config, md model.MarketData, exec model.Executor, store model.PairStore, log *slog.Logger, opts ...Option) *Closer {
	return &Closer{cycle: newCycle(cfg, md, exec, store, log, "pairs-closer", opts)}
}

// Run evaluates all OPEN rows once. Each closed pair gets its terminal
// status written to its row and a CLOSING_TRADE row appended. If either
// leg fails to unwind the row stays OPEN and is retried next cycle.
func (c *Closer) Run(ctx context.Context) (CloseReport, error) {
	rows, err := c.store.LoadPairs(ctx)
	if err != nil {
		return CloseReport{}, fmt.Errorf("load pairs: %w", err)
	}
	rep := CloseReport{Failures: make(map[string]string)}
	var changed []model.PairPosition

	for _, row := range rows {
		if row.Status != model.PairOpen {
			continue
		}
		rep.Checked++
		h := Hedge{SymbolY: row.SymbolY, SymbolX: row.SymbolX, Coeff: row.OLSCoeff, Constant: row.OLSConstant}

		updated, closing, ok, err := c.evaluate(ctx, h, row)
		if err != nil {
			c.log.Error("pair close failed", "pair", h.name(), "id", row.ID, "error", err)
			rep.Failures[row.ID] = err.Error()
			continue
		}
		if !ok {
			continue
		}
		changed = append(changed, updated, closing)
		rep.Closed = append(rep.Closed, updated)

		// the row keeps its entry spread; observers see the one that closed it
		seen := updated
		seen.Spread, seen.UpperBand, seen.LowerBand = closing.Spread, closing.UpperBand, closing.LowerBand
		seen.RecordedAt = closing.RecordedAt
		c.notify(seen, model.PairOpen)
	}

	if len(changed) > 0 {
		if err := c.store.SavePairs(ctx, changed); err != nil {
			return rep, fmt.Errorf("save pairs: %w", err)
		}
	}
	return rep, nil
}

func (c *Closer) evaluate(ctx context.Context, h Hedge, row model.PairPosition) (updated, closing model.PairPosition, ok bool, err error) {
	m, err := c.fetch(ctx, h)
	if err != nil {
		return row, closing, false, err
	}
	if len(m.obs) < 2 {
		return row, closing, false, fmt.Errorf("%w: need 2 observations, got %d", model.ErrDataMismatch, len(m.obs))
	}
	prev, latest := m.obs[len(m.obs)-2], m.obs[len(m.obs)-1]
	to, hit := EvaluateClose(prev, latest)
	if !hit {
		c.log.Info("spread normal", "pair", h.name(), "spread", latest.Spread, "mean", latest.RollingMean)
		return row, closing, false, nil
	}
	if !row.Status.CanTransition(to) {
		return row, closing, false, fmt.Errorf("%w: %s -> %s", model.ErrValidation, row.Status, to)
	}
	c.log.Info("close condition", "pair", h.name(), "to", to, "spread", latest.Spread)

	longPx, shortPx := m.pxX, m.pxY
	if row.LongLeg.Symbol == h.SymbolY {
		longPx, shortPx = m.pxY, m.pxX
	}

	sold, longErr := c.leg(ctx, row.LongLeg.Symbol, model.Long, model.ActionSell, row.LongLeg.Quantity, longPx)
	if longErr != nil {
		return row, closing, false, longErr
	}
	bought, shortErr := c.leg(ctx, row.ShortLeg.Symbol, model.Short, model.ActionShortClose, row.ShortLeg.Quantity, shortPx)
	if shortErr != nil {
		c.log.Error("partial pair unwind",
			"pair", h.name(),
			"id", row.ID,
			"sold_symbol", sold.Symbol,
			"sold_order_id", sold.OrderID,
			"error", shortErr,
		)
		return row, closing, false, errors.Join(fmt.Errorf("partial unwind of %s", row.ID), shortErr)
	}

	updated = row
	updated.Status = to
	closing = model.PairPosition{
		ID:          newID(),
		ParentID:    row.ID,
		Status:      model.PairClosingTrade,
		SymbolY:     row.SymbolY,
		SymbolX:     row.SymbolX,
		OLSCoeff:    row.OLSCoeff,
		OLSConstant: row.OLSConstant,
		LongLeg:     sold,
		ShortLeg:    bought,
		Spread:      latest.Spread,
		UpperBand:   latest.UpperBand,
		LowerBand:   latest.LowerBand,
		RecordedAt:  c.now(),
	}
	return updated, closing, true, nil
}
