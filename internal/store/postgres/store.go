// Package postgres reads candles from the historical price warehouse and
// logs every confirmed fill to the latest_trades table.
//
// The warehouse keeps one table per interval, e.g.
// binance_coin_historical_price (daily) and
// binance_coin_hourly_historical_price. A symbol of the form BASE/QUOTE
// is served as the ratio of the two instruments' bars on matching dates.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"trading-replay/internal/model"
)

// Config configures the warehouse connection.
type Config struct {
	DSN          string        `yaml:"dsn"`
	TablePrefix  string        `yaml:"table_prefix"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// DefaultConfig returns the warehouse defaults.
func DefaultConfig() Config {
	return Config{
		TablePrefix:  "binance_coin",
		QueryTimeout: 30 * time.Second,
		MaxOpenConns: 10,
	}
}

// Store implements model.CandleReader and model.FillSink on Postgres.
type Store struct {
	db      *sqlx.DB
	prefix  string
	timeout time.Duration
	log     *slog.Logger
}

// Open connects to the warehouse.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", model.ErrValidation)
	}
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return New(db, cfg, log), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB, cfg Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = def.TablePrefix
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	return &Store{db: db, prefix: cfg.TablePrefix, timeout: cfg.QueryTimeout, log: log.With("component", "postgres")}
}

// Close closes the handle.
func (s *Store) Close() error { return s.db.Close() }

// table infixes per interval; daily bars live in the unqualified table
var tableInfix = map[model.Interval]string{
	model.Interval1d: "",
	model.Interval4h: "4hours_",
	model.Interval1h: "hourly_",
	model.Interval5m: "5mins_",
}

// Table returns the history table holding candles of the interval.
func (s *Store) Table(iv model.Interval) (string, error) {
	infix, ok := tableInfix[iv]
	if !ok {
		return "", fmt.Errorf("%w: no history table for interval %s", model.ErrValidation, iv)
	}
	return s.prefix + "_" + infix + "historical_price", nil
}

var (
	unboundedFrom = time.Unix(0, 0).UTC()
	unboundedTo   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

type candleRow struct {
	Date   time.Time `db:"date"`
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume float64   `db:"volume"`
}

// ReadCandles implements model.CandleReader. Ratio symbols carry zero volume.
func (s *Store) ReadCandles(ctx context.Context, symbol string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	table, err := s.Table(iv)
	if err != nil {
		return nil, err
	}
	lo, hi := unboundedFrom, unboundedTo
	if !from.IsZero() {
		lo = from.UTC()
	}
	if !to.IsZero() {
		hi = to.UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		query string
		args  []interface{}
	)
	if base, quote, ok := strings.Cut(symbol, "/"); ok {
		if base == "" || quote == "" {
			return nil, fmt.Errorf("%w: bad ratio symbol %q", model.ErrValidation, symbol)
		}
		query = fmt.Sprintf(`
			SELECT a.date, a.open / b.open AS open, a.high / b.high AS high,
			       a.low / b.low AS low, a.close / b.close AS close, 0 AS volume
			FROM %[1]s a
			JOIN %[1]s b ON a.date = b.date
			WHERE a.symbol = $1 AND b.symbol = $2
			  AND a.date >= $3 AND a.date < $4
			ORDER BY a.date`, table)
		args = []interface{}{base, quote, lo, hi}
	} else {
		query = fmt.Sprintf(`
			SELECT date, open, high, low, close, COALESCE(volume, 0) AS volume
			FROM %s
			WHERE symbol = $1 AND date >= $2 AND date < $3
			ORDER BY date`, table)
		args = []interface{}{symbol, lo, hi}
	}

	var rows []candleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres read candles %s %s: %w", symbol, iv, err)
	}
	out := make([]model.Candle, len(rows))
	for i, r := range rows {
		out[i] = model.Candle{
			Symbol: symbol, TS: r.Date.UTC(),
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		}
	}
	s.log.Debug("read candles", "symbol", symbol, "interval", iv.String(), "count", len(out))
	return out, nil
}
