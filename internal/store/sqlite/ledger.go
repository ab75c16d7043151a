package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"trading-replay/internal/model"
)

// orderRow is the stored shape of model.OpenOrder.
type orderRow struct {
	ID            string          `db:"id"`
	Strategy      string          `db:"strategy"`
	Symbol        string          `db:"symbol"`
	Side          string          `db:"side"`
	Status        string          `db:"status"`
	EntryPrice    float64         `db:"entry_price"`
	Quantity      float64         `db:"quantity"`
	Notional      float64         `db:"notional"`
	HighSinceOpen float64         `db:"high_since_open"`
	OpenedAt      int64           `db:"opened_at"`
	OpenReason    string          `db:"open_reason"`
	ClosedAt      sql.NullInt64   `db:"closed_at"`
	ClosePrice    sql.NullFloat64 `db:"close_price"`
	CloseReason   string          `db:"close_reason"`
	ProfitPct     sql.NullFloat64 `db:"profit_pct"`
}

func toOrderRow(o model.OpenOrder) orderRow {
	r := orderRow{
		ID:            o.ID,
		Strategy:      o.Strategy,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Status:        string(o.Status),
		EntryPrice:    o.EntryPrice,
		Quantity:      o.Quantity,
		Notional:      o.Notional,
		HighSinceOpen: o.HighSinceOpen,
		OpenedAt:      millis(o.OpenedAt),
		OpenReason:    o.OpenReason,
		CloseReason:   o.CloseReason,
	}
	if o.ClosedAt != nil {
		r.ClosedAt = sql.NullInt64{Int64: millis(*o.ClosedAt), Valid: true}
	}
	if o.ClosePrice != nil {
		r.ClosePrice = sql.NullFloat64{Float64: *o.ClosePrice, Valid: true}
	}
	if o.ProfitPct != nil {
		r.ProfitPct = sql.NullFloat64{Float64: *o.ProfitPct, Valid: true}
	}
	return r
}

func (r orderRow) order() model.OpenOrder {
	o := model.OpenOrder{
		ID:            r.ID,
		Strategy:      r.Strategy,
		Symbol:        r.Symbol,
		Side:          model.Side(r.Side),
		Status:        model.OrderStatus(r.Status),
		EntryPrice:    r.EntryPrice,
		Quantity:      r.Quantity,
		Notional:      r.Notional,
		HighSinceOpen: r.HighSinceOpen,
		OpenedAt:      fromMillis(r.OpenedAt),
		OpenReason:    r.OpenReason,
		CloseReason:   r.CloseReason,
	}
	if r.ClosedAt.Valid {
		t := fromMillis(r.ClosedAt.Int64)
		o.ClosedAt = &t
	}
	if r.ClosePrice.Valid {
		v := r.ClosePrice.Float64
		o.ClosePrice = &v
	}
	if r.ProfitPct.Valid {
		v := r.ProfitPct.Float64
		o.ProfitPct = &v
	}
	return o
}

// LoadOrders returns the stored orders of one strategy and symbol in the
// order they were opened. An empty symbol loads every symbol.
func (s *Store) LoadOrders(ctx context.Context, strategy, symbol string) ([]model.OpenOrder, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, strategy, symbol, side, status, entry_price, quantity, notional,
		       high_since_open, opened_at, open_reason, closed_at, close_price,
		       close_reason, profit_pct
		FROM orders
		WHERE strategy = ? AND (? = '' OR symbol = ?)
		ORDER BY opened_at ASC, rowid ASC
	`, strategy, symbol, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite select orders: %w", err)
	}
	out := make([]model.OpenOrder, len(rows))
	for i, r := range rows {
		out[i] = r.order()
	}
	return out, nil
}

// SaveOrders upserts orders by ID in one transaction.
func (s *Store) SaveOrders(ctx context.Context, orders []model.OpenOrder) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, o := range orders {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO orders (id, strategy, symbol, side, status, entry_price, quantity, notional,
			                    high_since_open, opened_at, open_reason, closed_at, close_price,
			                    close_reason, profit_pct)
			VALUES (:id, :strategy, :symbol, :side, :status, :entry_price, :quantity, :notional,
			        :high_since_open, :opened_at, :open_reason, :closed_at, :close_price,
			        :close_reason, :profit_pct)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status,
				high_since_open = excluded.high_since_open,
				closed_at = excluded.closed_at,
				close_price = excluded.close_price,
				close_reason = excluded.close_reason,
				profit_pct = excluded.profit_pct
		`, toOrderRow(o))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite upsert order %s: %w", o.ID, err)
		}
	}
	return tx.Commit()
}

// AppendExecutions appends to the execution log in one transaction.
func (s *Store) AppendExecutions(ctx context.Context, execs []model.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO executions (time, action, symbol, price, quantity, notional, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range execs {
		if _, err := stmt.ExecContext(ctx, millis(e.Time), string(e.Action), e.Symbol, e.Price, e.Quantity, e.Notional, e.OrderID); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert execution: %w", err)
		}
	}
	return tx.Commit()
}

// LoadExecutions returns the execution log in submission order. An empty
// symbol loads every symbol.
func (s *Store) LoadExecutions(ctx context.Context, symbol string) ([]model.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, action, symbol, price, quantity, notional, order_id
		FROM executions
		WHERE ? = '' OR symbol = ?
		ORDER BY seq ASC
	`, symbol, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query executions: %w", err)
	}
	defer rows.Close()

	var out []model.Execution
	for rows.Next() {
		var e model.Execution
		var ts int64
		var action string
		if err := rows.Scan(&ts, &action, &e.Symbol, &e.Price, &e.Quantity, &e.Notional, &e.OrderID); err != nil {
			return nil, fmt.Errorf("sqlite scan executions: %w", err)
		}
		e.Time = fromMillis(ts)
		e.Action = model.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
