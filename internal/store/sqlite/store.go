// Package sqlite is the local store for replays and live cycles: candles,
// the order ledger, the execution log, the pairs ledger and a fill journal,
// all in one WAL-mode SQLite file.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Config configures the store.
type Config struct {
	Path string // database file, e.g. "data/replay.db"; ":memory:" for tests
}

// Store implements model.CandleReader, model.LedgerStore, model.PairStore
// and model.FillSink.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

// Open opens (or creates) the database with WAL mode and the schema.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sqlx.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log = log.With("component", "sqlite")
	log.Info("opened database", "path", cfg.Path)
	return &Store{db: db, log: log}, nil
}

// DB returns the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id              TEXT PRIMARY KEY,
			strategy        TEXT    NOT NULL,
			symbol          TEXT    NOT NULL,
			side            TEXT    NOT NULL,
			status          TEXT    NOT NULL,
			entry_price     REAL    NOT NULL,
			quantity        REAL    NOT NULL,
			notional        REAL    NOT NULL,
			high_since_open REAL    NOT NULL,
			opened_at       INTEGER NOT NULL,
			open_reason     TEXT    NOT NULL DEFAULT '',
			closed_at       INTEGER,
			close_price     REAL,
			close_reason    TEXT    NOT NULL DEFAULT '',
			profit_pct      REAL
		);
		CREATE INDEX IF NOT EXISTS orders_strategy_symbol ON orders (strategy, symbol);

		CREATE TABLE IF NOT EXISTS executions (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			time     INTEGER NOT NULL,
			action   TEXT    NOT NULL,
			symbol   TEXT    NOT NULL,
			price    REAL    NOT NULL,
			quantity REAL    NOT NULL,
			notional REAL    NOT NULL,
			order_id TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS executions_symbol ON executions (symbol);

		CREATE TABLE IF NOT EXISTS pair_positions (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT UNIQUE NOT NULL,
			parent_id      TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			symbol_y       TEXT NOT NULL,
			symbol_x       TEXT NOT NULL,
			ols_coeff      REAL NOT NULL,
			ols_constant   REAL NOT NULL,
			long_symbol    TEXT, long_quantity  REAL, long_notional  REAL,
			long_time      INTEGER, long_order_id TEXT, long_status TEXT,
			short_symbol   TEXT, short_quantity REAL, short_notional REAL,
			short_time     INTEGER, short_order_id TEXT, short_status TEXT,
			spread         REAL,
			upper_band     REAL,
			lower_band     REAL,
			recorded_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fills (
			order_id TEXT PRIMARY KEY,
			symbol   TEXT    NOT NULL,
			action   TEXT    NOT NULL,
			time     INTEGER NOT NULL,
			price    REAL    NOT NULL,
			quantity REAL    NOT NULL,
			notional REAL    NOT NULL,
			status   TEXT    NOT NULL
		);
	`)
	return err
}

// millis converts to the stored representation.
func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// nullMillis stores the zero time as NULL.
func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(t), Valid: true}
}
