package sqlite

import (
	"context"
	"fmt"

	"trading-replay/internal/model"
)

// RecordFill implements model.FillSink. A fill already journaled under the
// same order ID is ignored.
func (s *Store) RecordFill(ctx context.Context, f model.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills (order_id, symbol, action, time, price, quantity, notional, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.OrderID, f.Symbol, string(f.Action), millis(f.Time), f.Price, f.ExecutedQuantity, f.ExecutedNotional, f.Status)
	if err != nil {
		return fmt.Errorf("sqlite insert fill %s: %w", f.OrderID, err)
	}
	return nil
}

// Fills returns the journal in time order.
func (s *Store) Fills(ctx context.Context) ([]model.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, symbol, action, time, price, quantity, notional, status
		FROM fills ORDER BY time ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills: %w", err)
	}
	defer rows.Close()

	var out []model.Fill
	for rows.Next() {
		var f model.Fill
		var action string
		var ts int64
		if err := rows.Scan(&f.OrderID, &f.Symbol, &action, &ts, &f.Price, &f.ExecutedQuantity, &f.ExecutedNotional, &f.Status); err != nil {
			return nil, fmt.Errorf("sqlite scan fills: %w", err)
		}
		f.Action = model.Action(action)
		f.Time = fromMillis(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}
