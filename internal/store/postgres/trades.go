package postgres

import (
	"context"
	"fmt"

	"trading-replay/internal/model"
)

const createLatestTrades = `
	CREATE TABLE IF NOT EXISTS latest_trades (
		date TIMESTAMPTZ NOT NULL,
		symbol VARCHAR(20) NOT NULL,
		action VARCHAR(16) NOT NULL,
		dollar_amt NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		amt NUMERIC NOT NULL,
		UNIQUE (date, symbol)
	)`

// EnsureTradeLog creates the latest_trades table if it is missing.
func (s *Store) EnsureTradeLog(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLatestTrades); err != nil {
		return fmt.Errorf("postgres create latest_trades: %w", err)
	}
	return nil
}

// RecordFill implements model.FillSink. A second fill for the same symbol
// and timestamp is ignored.
func (s *Store) RecordFill(ctx context.Context, f model.Fill) error {
	if f.ExecutedQuantity <= 0 {
		return fmt.Errorf("%w: fill %s has no executed quantity", model.ErrValidation, f.OrderID)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price := f.ExecutedNotional / f.ExecutedQuantity
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO latest_trades (date, symbol, action, dollar_amt, price, amt)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date, symbol) DO NOTHING`,
		f.Time.UTC(), f.Symbol, string(f.Action), f.ExecutedNotional, price, f.ExecutedQuantity)
	if err != nil {
		return fmt.Errorf("postgres record fill %s: %w", f.OrderID, err)
	}
	s.log.Info("fill logged", "symbol", f.Symbol, "action", string(f.Action), "notional", f.ExecutedNotional)
	return nil
}
