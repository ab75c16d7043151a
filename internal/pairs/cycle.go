package pairs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trading-replay/internal/model"
)

// Observer is notified whenever a pair position changes status.
type Observer interface {
	OnPairTransition(p model.PairPosition, from model.PairStatus)
}

// cycle holds what the opener and closer share: market data, an executor
// and the pairs ledger.
type cycle struct {
	cfg       Config
	md        model.MarketData
	exec      model.Executor
	store     model.PairStore
	log       *slog.Logger
	observers []Observer
	now       func() time.Time
}

// Option configures a cycle.
type Option func(*cycle)

// WithObserver adds a transition observer.
func WithObserver(o Observer) Option {
	return func(c *cycle) { c.observers = append(c.observers, o) }
}

// WithClock overrides the wall clock used for rows without a fill time.
func WithClock(now func() time.Time) Option {
	return func(c *cycle) { c.now = now }
}

func newCycle(cfg Config, md model.MarketData, exec model.Executor, store model.PairStore, log *slog.Logger, component string, opts []Option) cycle {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", component)
	c := cycle{cfg: cfg, md: md, exec: exec, store: store, log: log, now: time.Now}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// market is the latest data for one pair.
type market struct {
	obs []model.SpreadObservation
	pxY float64
	pxX float64
}

func (c *cycle) fetch(ctx context.Context, h Hedge) (market, error) {
	load := func(sym string, iv model.Interval) ([]model.Candle, error) {
		cs, err := c.md.Candles(ctx, sym, iv)
		if err != nil {
			return nil, fmt.Errorf("%s %s candles: %w", sym, iv, err)
		}
		if len(cs) == 0 {
			return nil, fmt.Errorf("%w: no %s candles for %s", model.ErrDataMismatch, iv, sym)
		}
		return cs, nil
	}
	tradeY, err := load(h.SymbolY, c.cfg.TradeInterval)
	if err != nil {
		return market{}, err
	}
	tradeX, err := load(h.SymbolX, c.cfg.TradeInterval)
	if err != nil {
		return market{}, err
	}
	bandY, err := load(h.SymbolY, c.cfg.BandInterval)
	if err != nil {
		return market{}, err
	}
	bandX, err := load(h.SymbolX, c.cfg.BandInterval)
	if err != nil {
		return market{}, err
	}
	obs, err := Observe(h, c.cfg, tradeY, tradeX, bandY, bandX)
	if err != nil {
		return market{}, err
	}
	return market{
		obs: obs,
		pxY: tradeY[len(tradeY)-1].Close,
		pxX: tradeX[len(tradeX)-1].Close,
	}, nil
}

// leg executes one side and converts the fill into a ledger leg.
func (c *cycle) leg(ctx context.Context, symbol string, side model.Side, action model.Action, qty, ref float64) (model.Leg, error) {
	at := c.now()
	fill, err := c.exec.Execute(ctx, model.OrderRequest{
		Symbol:   symbol,
		Action:   action,
		Quantity: qty,
		RefPrice: ref,
		Time:     at,
	})
	if err != nil {
		return model.Leg{}, fmt.Errorf("%s %s: %w", action, symbol, err)
	}
	if !fill.Time.IsZero() {
		at = fill.Time
	}
	return model.Leg{
		Symbol:   symbol,
		Side:     side,
		Quantity: fill.ExecutedQuantity,
		Notional: fill.ExecutedNotional,
		Time:     at,
		OrderID:  fill.OrderID,
		Status:   fill.Status,
	}, nil
}

func (c *cycle) notify(p model.PairPosition, from model.PairStatus) {
	for _, o := range c.observers {
		o.OnPairTransition(p, from)
	}
}

func newID() string { return uuid.NewString() }
