package pairs

import (
	"context"
	"fmt"
	"log/slog"

	"trading-replay/internal/model"
)

// OpenReport summarizes one opener cycle.
type OpenReport struct {
	Checked  int                  `json:"checked"`
	Skipped  int                  `json:"skipped"`
	Standby  int                  `json:"standby"`
	Opened   []model.PairPosition `json:"opened"`
	Failures map[string]string    `json:"failures,omitempty"`
}

// Opener scans candidate pairs and enters the ones whose latest spread sits
// outside the signal band.
type Opener struct {
	cycle
}

// NewOpener creates an opener cycle.
func NewOpener(cfg Config, md model.MarketData, exec model.Executor, store model.PairStore, log *slog.Logger, opts ...Option) *Opener {
	return &Opener{cycle: newCycle(cfg, md, exec, store, log, "pairs-opener", opts)}
}

// blocksEntry reports statuses that keep a pair from being entered again.
func blocksEntry(s model.PairStatus) bool {
	return s == model.PairOpen || s == model.PairUpperStopped || s == model.PairLowerStopped
}

// Run evaluates every candidate once. A failing pair is logged and
// recorded in the report; the others still run. New OPEN rows are appended
// to the ledger at the end of the cycle.
func (o *Opener) Run(ctx context.Context, candidates []model.PairCandidate) (OpenReport, error) {
	rows, err := o.store.LoadPairs(ctx)
	if err != nil {
		return OpenReport{}, fmt.Errorf("load pairs: %w", err)
	}
	rep := OpenReport{Failures: make(map[string]string)}

	for _, cand := range candidates {
		h := Hedge{SymbolY: cand.SymbolY, SymbolX: cand.SymbolX, Coeff: cand.OLSCoeff, Constant: cand.OLSConstant}
		log := o.log.With("pair", h.name())

		if !o.cfg.Eligible(cand) {
			rep.Skipped++
			continue
		}
		if st, ok := active(rows, h); ok {
			log.Info("already traded", "status", st)
			rep.Skipped++
			continue
		}
		rep.Checked++

		row, opened, err := o.evaluate(ctx, h)
		if err != nil {
			log.Error("pair open failed", "error", err)
			rep.Failures[h.name()] = err.Error()
			continue
		}
		if !opened {
			rep.Standby++
			continue
		}
		rows = append(rows, row)
		rep.Opened = append(rep.Opened, row)
		o.notify(row, model.PairStandby)
	}

	if len(rep.Opened) > 0 {
		if err := o.store.SavePairs(ctx, rep.Opened); err != nil {
			return rep, fmt.Errorf("save pairs: %w", err)
		}
	}
	return rep, nil
}

func active(rows []model.PairPosition, h Hedge) (model.PairStatus, bool) {
	for _, r := range rows {
		if r.SameSet(h.SymbolY, h.SymbolX) && blocksEntry(r.Status) {
			return r.Status, true
		}
	}
	return "", false
}

func (o *Opener) evaluate(ctx context.Context, h Hedge) (model.PairPosition, bool, error) {
	m, err := o.fetch(ctx, h)
	if err != nil {
		return model.PairPosition{}, false, err
	}
	latest := m.obs[len(m.obs)-1]
	dir := Signal(latest)
	o.log.Info("spread",
		"pair", h.name(),
		"spread", latest.Spread,
		"upper", latest.UpperBand,
		"lower", latest.LowerBand,
		"signal", string(dir),
	)
	if dir == Standby {
		return model.PairPosition{}, false, nil
	}

	sz, err := Size(o.cfg.TotalPerTrade, m.pxY, m.pxX, h.Coeff)
	if err != nil {
		return model.PairPosition{}, false, err
	}

	longSym, longQty, longPx := h.SymbolX, sz.QtyX, m.pxX
	shortSym, shortQty, shortPx := h.SymbolY, sz.QtyY, m.pxY
	if dir == LongYShortX {
		longSym, longQty, longPx = h.SymbolY, sz.QtyY, m.pxY
		shortSym, shortQty, shortPx = h.SymbolX, sz.QtyX, m.pxX
	}

	long, err := o.leg(ctx, longSym, model.Long, model.ActionBuy, longQty, longPx)
	if err != nil {
		return model.PairPosition{}, false, err
	}
	short, err := o.leg(ctx, shortSym, model.Short, model.ActionShortSell, shortQty, shortPx)
	if err != nil {
		// the long leg stays held; nothing is written so the pair can be retried
		o.log.Error("partial pair entry",
			"pair", h.name(),
			"long_symbol", longSym,
			"long_order_id", long.OrderID,
			"error", err,
		)
		return model.PairPosition{}, false, err
	}

	return model.PairPosition{
		ID:          newID(),
		Status:      model.PairOpen,
		SymbolY:     h.SymbolY,
		SymbolX:     h.SymbolX,
		OLSCoeff:    h.Coeff,
		OLSConstant: h.Constant,
		LongLeg:     long,
		ShortLeg:    short,
		Spread:      latest.Spread,
		UpperBand:   latest.UpperBand,
		LowerBand:   latest.LowerBand,
		RecordedAt:  o.now(),
	}, true, nil
}
