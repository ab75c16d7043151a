// Package redis hands the order ledger between scheduled cycles and
// streams executions and fills to downstream consumers.
//
// Keys:
//
//	orders:{strategy}:{symbol}   HASH  order ID -> OpenOrder JSON
//	orders:{strategy}:symbols    SET   symbols with stored orders
//	execs:{symbol}               STREAM execution log, field "data"
//	execs:symbols                SET   symbols with executions
//	fills                        STREAM every confirmed fill
//	pub:fill:{symbol}            PUBSUB fill notifications
//
// Every call goes through a circuit breaker so a dead Redis fails cycles
// fast instead of stalling each one on timeouts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-replay/internal/model"
)

const (
	defaultStreamMaxLen = 100000
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
)

// Config configures the Redis store.
type Config struct {
	Addr         string // e.g. "localhost:6379"
	Password     string
	DB           int
	StreamMaxLen int64 // approximate cap on each stream
}

// Store implements model.LedgerStore and model.FillSink on Redis.
type Store struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	maxLen  int64
	log     *slog.Logger
}

// New connects and pings the server.
func New(cfg Config, log *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := NewWithClient(client, cfg, log)
	s.log.Info("connected", "addr", cfg.Addr)
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	log = log.With("component", "redis")
	cb := NewCircuitBreaker(defaultMaxFailures, defaultResetTimeout, func(err error) bool {
		return errors.Is(err, goredis.Nil)
	})
	cb.OnStateChange = func(from, to State) {
		log.Warn("circuit breaker", "from", from.String(), "to", to.String())
	}
	return &Store{client: client, breaker: cb, maxLen: maxLen, log: log}
}

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the store's circuit breaker.
func (s *Store) Breaker() *CircuitBreaker { return s.breaker }

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

func ordersKey(strategy, symbol string) string { return "orders:" + strategy + ":" + symbol }
func symbolsKey(strategy string) string        { return "orders:" + strategy + ":symbols" }
func execsKey(symbol string) string            { return "execs:" + symbol }

const (
	execSymbolsKey = "execs:symbols"
	fillsKey       = "fills"
)

// LoadOrders implements model.LedgerStore. An empty symbol loads every
// symbol stored for the strategy.
func (s *Store) LoadOrders(ctx context.Context, strategy, symbol string) ([]model.OpenOrder, error) {
	symbols := []string{symbol}
	if symbol == "" {
		err := s.breaker.Execute(func() error {
			var err error
			symbols, err = s.client.SMembers(ctx, symbolsKey(strategy)).Result()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("redis SMEMBERS %s: %w", symbolsKey(strategy), err)
		}
		sort.Strings(symbols)
	}

	var out []model.OpenOrder
	for _, sym := range symbols {
		var fields map[string]string
		err := s.breaker.Execute(func() error {
			var err error
			fields, err = s.client.HGetAll(ctx, ordersKey(strategy, sym)).Result()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("redis HGETALL %s: %w", ordersKey(strategy, sym), err)
		}
		for id, raw := range fields {
			var o model.OpenOrder
			if err := json.Unmarshal([]byte(raw), &o); err != nil {
				return nil, fmt.Errorf("decode order %s: %w", id, err)
			}
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveOrders implements model.LedgerStore: orders are upserted by ID.
func (s *Store) SaveOrders(ctx context.Context, orders []model.OpenOrder) error {
	if len(orders) == 0 {
		return nil
	}
	type group struct{ strategy, symbol string }
	fields := make(map[group][]interface{})
	var groups []group
	for _, o := range orders {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode order %s: %w", o.ID, err)
		}
		g := group{o.Strategy, o.Symbol}
		if _, ok := fields[g]; !ok {
			groups = append(groups, g)
		}
		fields[g] = append(fields[g], o.ID, string(data))
	}

	return s.breaker.Execute(func() error {
		pipe := s.client.Pipeline()
		for _, g := range groups {
			pipe.HSet(ctx, ordersKey(g.strategy, g.symbol), fields[g]...)
			pipe.SAdd(ctx, symbolsKey(g.strategy), g.symbol)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis save orders: %w", err)
		}
		return nil
	})
}

// AppendExecutions implements model.LedgerStore.
func (s *Store) AppendExecutions(ctx context.Context, execs []model.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	return s.breaker.Execute(func() error {
		pipe := s.client.Pipeline()
		for _, e := range execs {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode execution: %w", err)
			}
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: execsKey(e.Symbol),
				MaxLen: s.maxLen,
				Approx: true,
				Values: map[string]interface{}{"data": string(data)},
			})
			pipe.SAdd(ctx, execSymbolsKey, e.Symbol)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis append executions: %w", err)
		}
		return nil
	})
}

// LoadExecutions implements model.LedgerStore. An empty symbol loads every
// symbol, merged by time.
func (s *Store) LoadExecutions(ctx context.Context, symbol string) ([]model.Execution, error) {
	symbols := []string{symbol}
	if symbol == "" {
		err := s.breaker.Execute(func() error {
			var err error
			symbols, err = s.client.SMembers(ctx, execSymbolsKey).Result()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("redis SMEMBERS %s: %w", execSymbolsKey, err)
		}
		sort.Strings(symbols)
	}

	var out []model.Execution
	for _, sym := range symbols {
		var msgs []goredis.XMessage
		err := s.breaker.Execute(func() error {
			var err error
			msgs, err = s.client.XRange(ctx, execsKey(sym), "-", "+").Result()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("redis XRANGE %s: %w", execsKey(sym), err)
		}
		for _, m := range msgs {
			raw, ok := m.Values["data"].(string)
			if !ok {
				return nil, fmt.Errorf("stream %s entry %s has no data", execsKey(sym), m.ID)
			}
			var e model.Execution
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				return nil, fmt.Errorf("decode execution %s: %w", m.ID, err)
			}
			out = append(out, e)
		}
	}
	if symbol == "" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	}
	return out, nil
}

// RecordFill implements model.FillSink: the fill is appended to the fills
// stream and published on the symbol's channel in one round trip.
func (s *Store) RecordFill(ctx context.Context, f model.Fill) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fill %s: %w", f.OrderID, err)
	}
	payload := string(data)
	return s.breaker.Execute(func() error {
		pipe := s.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: fillsKey,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Publish(ctx, "pub:fill:"+f.Symbol, payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis record fill: %w", err)
		}
		return nil
	})
}
