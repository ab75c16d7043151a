package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"trading-replay/internal/model"
	"trading-replay/pkg/brokerapi"
)

// Broker is the subset of the broker client Live needs.
type Broker interface {
	PlaceOrder(ctx context.Context, p brokerapi.OrderParams) (string, error)
	OrderDetails(ctx context.Context, uniqueOrderID string) (brokerapi.OrderDetails, error)
}

// Live places market orders through a broker and confirms them.
type Live struct {
	broker      Broker
	instruments map[string]brokerapi.Instrument
	limiter     *rate.Limiter
	log         *slog.Logger
	now         func() time.Time
}

// NewLive creates a live executor. instruments maps engine symbols to broker
// instruments. ordersPerSecond paces order placement; <= 0 disables pacing.
func NewLive(b Broker, instruments map[string]brokerapi.Instrument, ordersPerSecond float64, log *slog.Logger) *Live {
	lim := rate.NewLimiter(rate.Inf, 1)
	if ordersPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(ordersPerSecond), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Live{
		broker:      b,
		instruments: instruments,
		limiter:     lim,
		log:         log.With(slog.String("component", "live")),
		now:         time.Now,
	}
}

// Execute places a market order for the requested quantity floored to whole
// lots and returns the confirmed fill. A quantity below one lot, any broker
// error or a non-complete status is a model.ErrExecution.
func (l *Live) Execute(ctx context.Context, req model.OrderRequest) (model.Fill, error) {
	inst, ok := l.instruments[req.Symbol]
	if !ok {
		return model.Fill{}, fmt.Errorf("%w: no broker instrument for %s", model.ErrExecution, req.Symbol)
	}
	units := inst.Units(req.Quantity)
	if units <= 0 {
		return model.Fill{}, fmt.Errorf("%w: %s quantity %g is below one lot of %d", model.ErrExecution, req.Symbol, req.Quantity, max(inst.LotSize, 1))
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return model.Fill{}, fmt.Errorf("%w: rate limit wait: %v", model.ErrExecution, err)
	}

	side := "SELL"
	if isBuy(req.Action) {
		side = "BUY"
	}
	id, err := l.broker.PlaceOrder(ctx, brokerapi.MarketOrder(inst, side, units))
	if err != nil {
		return model.Fill{}, fmt.Errorf("%w: %v", model.ErrExecution, err)
	}

	d, err := l.broker.OrderDetails(ctx, id)
	if err != nil {
		return model.Fill{}, fmt.Errorf("%w: %v", model.ErrExecution, err)
	}
	if !d.Complete() {
		return model.Fill{}, fmt.Errorf("%w: order %s %s: %s", model.ErrExecution, id, d.Status, d.Text)
	}

	qty := float64(units)
	if d.FilledShares != "" {
		if q, err := strconv.ParseFloat(d.FilledShares, 64); err == nil && q > 0 {
			qty = q
		}
	}
	price := d.AveragePrice
	if price <= 0 {
		price = req.RefPrice
	}

	l.log.Info("order filled",
		slog.String("order_id", id),
		slog.String("side", side),
		slog.String("symbol", req.Symbol),
		slog.Float64("qty", qty),
		slog.Float64("price", price),
	)
	return model.Fill{
		OrderID:          id,
		Symbol:           req.Symbol,
		Action:           req.Action,
		Time:             l.now().UTC(),
		Price:            price,
		ExecutedQuantity: qty,
		ExecutedNotional: price * qty,
		Status:           d.Status,
	}, nil
}
