package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trading-replay/internal/ledger"
	"trading-replay/internal/model"
)

// Intervals names the series a strategy reads. A zero Extra computes the
// extra indicators on the indicator series.
type Intervals struct {
	Trade     model.Interval
	Indicator model.Interval
	Extra     model.Interval
}

// CycleReport summarizes one scheduled cycle.
type CycleReport struct {
	Symbols    int               `json:"symbols"`
	Executions []model.Execution `json:"executions"`
	Open       int               `json:"open"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// Cycle runs one decision step per symbol on the latest market data
// against the ledger persisted in a LedgerStore. Nothing is force-closed:
// orders stay OPEN across cycles until the strategy closes them.
type Cycle struct {
	cfg    Config
	limits ledger.Limits
	strat  Strategy
	iv     Intervals
	md     model.MarketData
	exec   model.Executor
	store  model.LedgerStore
	log    *slog.Logger
	opts   []Option
}

// NewCycle creates a cycle. opts are passed to the engine of every run.
func NewCycle(cfg Config, limits ledger.Limits, s Strategy, iv Intervals, md model.MarketData, exec model.Executor, store model.LedgerStore, log *slog.Logger, opts ...Option) *Cycle {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "cycle", "strategy", s.Name())
	return &Cycle{
		cfg: cfg, limits: limits, strat: s, iv: iv,
		md: md, exec: exec, store: store, log: log,
		opts: append([]Option{WithLogger(log)}, opts...),
	}
}

// Run restores the strategy's OPEN orders, steps every symbol and saves
// the touched orders and new executions. A symbol that fails is logged
// and skipped; store errors abort the cycle.
func (c *Cycle) Run(ctx context.Context, symbols []string) (CycleReport, error) {
	stored, err := c.store.LoadOrders(ctx, c.strat.Name(), "")
	if err != nil {
		return CycleReport{}, fmt.Errorf("load orders: %w", err)
	}
	var open []model.OpenOrder
	for _, o := range stored {
		if o.Status == model.OrderOpen {
			open = append(open, o)
		}
	}
	orders := ledger.New(c.limits)
	if err := orders.Restore(open); err != nil {
		return CycleReport{}, err
	}
	execs := ledger.NewExecutionLog()
	eng := NewEngine(c.cfg, c.strat, c.exec, orders, execs, c.opts...)

	rep := CycleReport{Failures: make(map[string]string)}
	for _, sym := range symbols {
		bars, err := c.bars(ctx, sym)
		if err == nil {
			_, err = eng.Step(ctx, bars)
		}
		if err != nil {
			c.log.Error("symbol skipped", "symbol", sym, "error", err)
			rep.Failures[sym] = err.Error()
			continue
		}
		rep.Symbols++
	}

	rep.Executions = execs.All()
	rep.Open = orders.OpenCount()
	var errs []error
	if err := c.store.SaveOrders(ctx, orders.Orders()); err != nil {
		errs = append(errs, fmt.Errorf("save orders: %w", err))
	}
	if err := c.store.AppendExecutions(ctx, rep.Executions); err != nil {
		errs = append(errs, fmt.Errorf("append executions: %w", err))
	}
	c.log.Info("cycle complete",
		"symbols", rep.Symbols,
		"executions", len(rep.Executions),
		"open", rep.Open,
		"failures", len(rep.Failures),
	)
	return rep, errors.Join(errs...)
}

func (c *Cycle) bars(ctx context.Context, sym string) ([]model.Bar, error) {
	trade, err := c.md.Candles(ctx, sym, c.iv.Trade)
	if err != nil {
		return nil, err
	}
	ind := trade
	if c.iv.Indicator != c.iv.Trade {
		if ind, err = c.md.Candles(ctx, sym, c.iv.Indicator); err != nil {
			return nil, err
		}
	}
	var extra *model.Frame
	if c.iv.Extra != 0 {
		candles, err := c.md.Candles(ctx, sym, c.iv.Extra)
		if err != nil {
			return nil, err
		}
		extra = model.NewFrame(sym, c.iv.Extra, candles)
	}
	return Prepare(c.strat,
		model.NewFrame(sym, c.iv.Trade, trade),
		model.NewFrame(sym, c.iv.Indicator, ind),
		extra)
}
