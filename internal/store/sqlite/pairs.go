package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"trading-replay/internal/model"
)

type legRow struct {
	Symbol   sql.NullString
	Quantity sql.NullFloat64
	Notional sql.NullFloat64
	Time     sql.NullInt64
	OrderID  sql.NullString
	Status   sql.NullString
}

func (l legRow) leg(side model.Side) model.Leg {
	out := model.Leg{
		Symbol:   l.Symbol.String,
		Side:     side,
		Quantity: l.Quantity.Float64,
		Notional: l.Notional.Float64,
		OrderID:  l.OrderID.String,
		Status:   l.Status.String,
	}
	if l.Time.Valid {
		out.Time = fromMillis(l.Time.Int64)
	}
	return out
}

// LoadPairs implements model.PairStore. Rows come back in first-saved order.
func (s *Store) LoadPairs(ctx context.Context) ([]model.PairPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, status, symbol_y, symbol_x, ols_coeff, ols_constant,
		       long_symbol, long_quantity, long_notional, long_time, long_order_id, long_status,
		       short_symbol, short_quantity, short_notional, short_time, short_order_id, short_status,
		       COALESCE(spread, 0), COALESCE(upper_band, 0), COALESCE(lower_band, 0), recorded_at
		FROM pair_positions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query pair_positions: %w", err)
	}
	defer rows.Close()

	var out []model.PairPosition
	for rows.Next() {
		var p model.PairPosition
		var status string
		var long, short legRow
		var recorded int64
		if err := rows.Scan(&p.ID, &p.ParentID, &status, &p.SymbolY, &p.SymbolX, &p.OLSCoeff, &p.OLSConstant,
			&long.Symbol, &long.Quantity, &long.Notional, &long.Time, &long.OrderID, &long.Status,
			&short.Symbol, &short.Quantity, &short.Notional, &short.Time, &short.OrderID, &short.Status,
			&p.Spread, &p.UpperBand, &p.LowerBand, &recorded); err != nil {
			return nil, fmt.Errorf("sqlite scan pair_positions: %w", err)
		}
		p.Status = model.PairStatus(status)
		p.LongLeg = long.leg(model.Long)
		p.ShortLeg = short.leg(model.Short)
		p.RecordedAt = fromMillis(recorded)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePairs implements model.PairStore: new IDs are appended, existing IDs
// are updated in place and keep their position.
func (s *Store) SavePairs(ctx context.Context, positions []model.PairPosition) error {
	if len(positions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pair_positions (id, parent_id, status, symbol_y, symbol_x, ols_coeff, ols_constant,
			long_symbol, long_quantity, long_notional, long_time, long_order_id, long_status,
			short_symbol, short_quantity, short_notional, short_time, short_order_id, short_status,
			spread, upper_band, lower_band, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range positions {
		_, err := stmt.ExecContext(ctx, p.ID, p.ParentID, string(p.Status), p.SymbolY, p.SymbolX, p.OLSCoeff, p.OLSConstant,
			p.LongLeg.Symbol, p.LongLeg.Quantity, p.LongLeg.Notional, nullMillis(p.LongLeg.Time), p.LongLeg.OrderID, p.LongLeg.Status,
			p.ShortLeg.Symbol, p.ShortLeg.Quantity, p.ShortLeg.Notional, nullMillis(p.ShortLeg.Time), p.ShortLeg.OrderID, p.ShortLeg.Status,
			p.Spread, p.UpperBand, p.LowerBand, millis(p.RecordedAt))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite upsert pair %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}
