package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the replay core from concrete storage and broker
// implementations (SQLite, Redis, Postgres, broker REST).

// CandleReader reads historical candles for replay and tuning.
type CandleReader interface {
	// ReadCandles returns candles for symbol at interval in [from, to),
	// ascending by TS. A zero from or to leaves that side unbounded.
	ReadCandles(ctx context.Context, symbol string, iv Interval, from, to time.Time) ([]Candle, error)
}

// MarketData returns the most recent candles for live cycles.
type MarketData interface {
	Candles(ctx context.Context, symbol string, iv Interval) ([]Candle, error)
}

// LedgerStore persists the order ledger and execution log between cycles.
type LedgerStore interface {
	LoadOrders(ctx context.Context, strategy, symbol string) ([]OpenOrder, error)
	SaveOrders(ctx context.Context, orders []OpenOrder) error
	AppendExecutions(ctx context.Context, execs []Execution) error
	LoadExecutions(ctx context.Context, symbol string) ([]Execution, error)
}

// PairStore persists the pairs ledger. LoadPairs returns rows in the order
// they were first saved; SavePairs inserts new rows and replaces rows whose
// ID already exists.
type PairStore interface {
	LoadPairs(ctx context.Context) ([]PairPosition, error)
	SavePairs(ctx context.Context, rows []PairPosition) error
}

// Executor fills order requests. Implementations may be simulated or live.
type Executor interface {
	Execute(ctx context.Context, req OrderRequest) (Fill, error)
}

// FillSink receives every confirmed fill (trade log, stream, websocket).
type FillSink interface {
	RecordFill(ctx context.Context, f Fill) error
}
