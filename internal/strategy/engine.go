package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading-replay/internal/align"
	"trading-replay/internal/ledger"
	"trading-replay/internal/model"
	"trading-replay/internal/ringbuf"
)

// minBars is the number of bars needed before any decision is taken
// (current and previous).
const minBars = 2

// Config controls a replay.
type Config struct {
	TradeNotional float64 // dollars committed per opened order
	Lookback      int     // bars kept in the decision window
}

// DefaultConfig returns the replay defaults.
func DefaultConfig() Config {
	return Config{TradeNotional: 1000, Lookback: 5}
}

// Observer is notified of ledger activity. Implementations must not block.
type Observer interface {
	OnExecution(strategy string, e model.Execution)
	OnOrderClosed(strategy string, o model.OpenOrder)
	OnExecutionError(strategy, symbol string, err error)
	OnReplay(strategy, symbol string, bars int, elapsed time.Duration)
}

// Result summarizes one replay.
type Result struct {
	Strategy   string            `json:"strategy"`
	Bars       int               `json:"bars"`
	Opened     int               `json:"opened"`
	Closed     int               `json:"closed"`
	Forced     int               `json:"forced"`
	Orders     []model.OpenOrder `json:"orders"`
	Executions []model.Execution `json:"executions"`
}

// Engine walks bars forward and applies one strategy's decisions to a
// ledger. An engine is not safe for concurrent replays; callers serialize
// per instrument.
type Engine struct {
	cfg       Config
	strat     Strategy
	exec      model.Executor
	orders    *ledger.Ledger
	execs     *ledger.ExecutionLog
	log       *slog.Logger
	observers []Observer

	opened, closed, forced int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine creates an engine over an existing ledger and execution log.
func NewEngine(cfg Config, s Strategy, exec model.Executor, orders *ledger.Ledger, execs *ledger.ExecutionLog, opts ...Option) *Engine {
	if cfg.Lookback < minBars {
		cfg.Lookback = minBars
	}
	e := &Engine{
		cfg:    cfg,
		strat:  s,
		exec:   exec,
		orders: orders,
		execs:  execs,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(slog.String("component", "strategy"), slog.String("strategy", s.Name()))
	return e
}

// Prepare computes the strategy's indicators and aligns them onto the trade
// series. When extra is nil the extra indicators are computed on the
// indicator series itself.
func Prepare(s Strategy, trade, ind, extra *model.Frame) ([]model.Bar, error) {
	if err := s.Indicators(ind); err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	if extra == nil {
		extra = model.NewFrame(ind.Symbol, ind.Interval, ind.Candles)
	}
	if err := s.ExtraIndicators(extra); err != nil {
		return nil, fmt.Errorf("extra indicators: %w", err)
	}

	sources := []align.Source{{Frame: ind}}
	if len(extra.Columns()) > 0 {
		sources = append(sources, align.Source{Frame: extra})
	}
	bars, err := align.Align(trade, sources...)
	if err != nil {
		return nil, fmt.Errorf("align %s: %w", trade.Symbol, err)
	}
	return bars, nil
}

// Replay runs every bar through the strategy and force-closes whatever is
// still OPEN at the last price of each symbol. On success no order touched
// by the replay is left OPEN.
func (e *Engine) Replay(ctx context.Context, bars []model.Bar) (Result, error) {
	start := time.Now()
	execStart := e.execs.Len()
	e.opened, e.closed, e.forced = 0, 0, 0

	window := ringbuf.New[model.Bar](e.cfg.Lookback)
	last := make(map[string]model.Bar)
	var symbols []string

	for _, bar := range bars {
		if _, seen := last[bar.Symbol]; !seen {
			symbols = append(symbols, bar.Symbol)
		}
		last[bar.Symbol] = bar
		window.Push(bar)
		if window.Len() < minBars {
			continue
		}
		e.step(ctx, Window(window.Slice()))
	}

	var errs []error
	for _, sym := range symbols {
		if err := e.liquidate(ctx, last[sym]); err != nil {
			errs = append(errs, err)
		}
	}

	res := Result{
		Strategy:   e.strat.Name(),
		Bars:       len(bars),
		Opened:     e.opened,
		Closed:     e.closed,
		Forced:     e.forced,
		Orders:     e.orders.Orders(),
		Executions: e.execs.Since(execStart),
	}
	for _, sym := range symbols {
		for _, o := range e.observers {
			o.OnReplay(res.Strategy, sym, len(bars), time.Since(start))
		}
	}
	e.log.Info("replay complete",
		slog.Int("bars", res.Bars),
		slog.Int("opened", res.Opened),
		slog.Int("closed", res.Closed),
		slog.Int("forced", res.Forced),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, errors.Join(errs...)
}

// Step runs one decision cycle on the newest bar of window without forced
// liquidation, for scheduled live cycles. Returns the executions it appended.
func (e *Engine) Step(ctx context.Context, window []model.Bar) ([]model.Execution, error) {
	if len(window) < minBars {
		return nil, fmt.Errorf("%w: step needs at least %d bars, got %d", model.ErrValidation, minBars, len(window))
	}
	if len(window) > e.cfg.Lookback {
		window = window[len(window)-e.cfg.Lookback:]
	}
	n := e.execs.Len()
	e.step(ctx, Window(window))
	return e.execs.Since(n), nil
}

func (e *Engine) step(ctx context.Context, w Window) {
	bar := w.Current()

	if ok, _ := e.orders.CanOpen(bar.Symbol); ok {
		if intent := e.strat.DecideOpen(w); intent != nil {
			e.open(ctx, bar, intent)
		}
	}

	for _, o := range e.orders.OpenFor(bar.Symbol) {
		e.orders.MarkPrice(o.ID, bar.Open)
		if bar.Open > o.HighSinceOpen {
			o.HighSinceOpen = bar.Open
		}
		if intent := e.strat.DecideClose(w, o); intent != nil {
			if _, err := e.close(ctx, bar.TS, o, intent.Price, intent.Reason); err == nil {
				e.closed++
			}
		}
	}
}

func (e *Engine) open(ctx context.Context, bar model.Bar, intent *OpenIntent) {
	price := intent.Price
	if price <= 0 {
		price = bar.Open
	}
	side := intent.Side
	if side == "" {
		side = model.Long
	}

	fill, err := e.exec.Execute(ctx, model.OrderRequest{
		Symbol:   bar.Symbol,
		Action:   side.OpenAction(),
		Quantity: e.cfg.TradeNotional / price,
		RefPrice: price,
		Time:     bar.TS,
	})
	if err != nil {
		e.executionFailed(bar.Symbol, err)
		return
	}

	o, err := e.orders.Open(model.OpenOrder{
		Strategy:   e.strat.Name(),
		Symbol:     bar.Symbol,
		Side:       side,
		EntryPrice: fill.Price,
		Quantity:   fill.ExecutedQuantity,
		Notional:   fill.ExecutedNotional,
		OpenedAt:   bar.TS,
		OpenReason: intent.Reason,
	})
	if err != nil {
		e.log.Error("filled but ledger rejected open", slog.String("symbol", bar.Symbol), slog.Any("err", err))
		return
	}
	e.opened++
	e.record(fillTime(fill, bar.TS), o.Symbol, side.OpenAction(), o.ID, fill)
	e.log.Debug("opened position",
		slog.String("symbol", o.Symbol),
		slog.Time("at", o.OpenedAt),
		slog.Float64("price", o.EntryPrice),
		slog.String("reason", intent.Reason),
	)
}

func (e *Engine) close(ctx context.Context, at time.Time, o model.OpenOrder, price float64, reason string) (model.OpenOrder, error) {
	fill, err := e.exec.Execute(ctx, model.OrderRequest{
		Symbol:   o.Symbol,
		Action:   o.Side.CloseAction(),
		Quantity: o.Quantity,
		RefPrice: price,
		Time:     at,
	})
	if err != nil {
		e.executionFailed(o.Symbol, err)
		return model.OpenOrder{}, err
	}

	closed, err := e.orders.Close(o.ID, at, fill.Price, reason)
	if err != nil {
		e.log.Error("filled but ledger rejected close", slog.String("order_id", o.ID), slog.Any("err", err))
		return model.OpenOrder{}, err
	}
	e.record(fillTime(fill, at), o.Symbol, o.Side.CloseAction(), o.ID, fill)
	for _, ob := range e.observers {
		ob.OnOrderClosed(e.strat.Name(), closed)
	}
	e.log.Debug("closed position",
		slog.String("symbol", o.Symbol),
		slog.Time("at", at),
		slog.Float64("price", fill.Price),
		slog.Float64("profit_pct", *closed.ProfitPct),
		slog.String("reason", reason),
	)
	return closed, nil
}

func (e *Engine) liquidate(ctx context.Context, last model.Bar) error {
	var errs []error
	for _, o := range e.orders.OpenFor(last.Symbol) {
		if _, err := e.close(ctx, last.TS, o, last.Close, model.ReasonForcedLiquidation); err != nil {
			errs = append(errs, fmt.Errorf("force close %s: %w", o.ID, err))
			continue
		}
		e.forced++
	}
	return errors.Join(errs...)
}

func (e *Engine) record(at time.Time, symbol string, action model.Action, orderID string, fill model.Fill) {
	ex := model.Execution{
		Time:     at,
		Action:   action,
		Symbol:   symbol,
		Price:    fill.Price,
		Quantity: fill.ExecutedQuantity,
		Notional: fill.ExecutedNotional,
		OrderID:  orderID,
	}
	if err := e.execs.Append(ex); err != nil {
		e.log.Error("execution log rejected fill", slog.String("order_id", orderID), slog.Any("err", err))
		return
	}
	for _, ob := range e.observers {
		ob.OnExecution(e.strat.Name(), ex)
	}
}

func (e *Engine) executionFailed(symbol string, err error) {
	if !errors.Is(err, model.ErrExecution) {
		err = fmt.Errorf("%w: %v", model.ErrExecution, err)
	}
	e.log.Warn("execution failed, order left unchanged", slog.String("symbol", symbol), slog.Any("err", err))
	for _, ob := range e.observers {
		ob.OnExecutionError(e.strat.Name(), symbol, err)
	}
}

func fillTime(f model.Fill, fallback time.Time) time.Time {
	if f.Time.IsZero() {
		return fallback
	}
	return f.Time
}
