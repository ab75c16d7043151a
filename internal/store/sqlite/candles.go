package sqlite

import (
	"context"
	"fmt"
	"time"

	"trading-replay/internal/model"
)

// WriteCandles upserts a batch of candles of one interval in a single
// transaction.
func (s *Store) WriteCandles(ctx context.Context, iv model.Interval, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, iv.String(), c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert candle %s %s: %w", c.Symbol, c.TS.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("committed candles", "count", len(candles), "interval", iv.String(), "elapsed", time.Since(start))
	return nil
}

// ReadCandles implements model.CandleReader. Results are ascending by ts.
func (s *Store) ReadCandles(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	lo, hi := int64(0), int64(1<<62)
	if !from.IsZero() {
		lo = from.Unix()
	}
	if !to.IsZero() {
		hi = to.Unix()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, COALESCE(volume, 0)
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, iv.String(), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		c := model.Candle{Symbol: symbol}
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.Unix(ts, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastCandleTime returns the newest stored candle time, or zero if none.
func (s *Store) LastCandleTime(ctx context.Context, symbol string, iv model.Interval) (time.Time, error) {
	var ts *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND interval = ?`,
		symbol, iv.String(),
	).Scan(&ts)
	if err != nil || ts == nil {
		return time.Time{}, err
	}
	return time.Unix(*ts, 0).UTC(), nil
}
