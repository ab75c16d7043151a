// Package app wires the stores, broker session, executors and observers
// shared by the command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trading-replay/config"
	"trading-replay/internal/execution"
	"trading-replay/internal/gateway"
	"trading-replay/internal/logger"
	"trading-replay/internal/marketdata"
	"trading-replay/internal/metrics"
	"trading-replay/internal/model"
	"trading-replay/internal/notification"
	"trading-replay/internal/store/postgres"
	redisstore "trading-replay/internal/store/redis"
	"trading-replay/internal/store/sqlite"
	"trading-replay/pkg/brokerapi"
)

// Candle sources accepted by CandleReader.
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Runtime holds the process-wide dependencies. Redis and Postgres are nil
// when their env vars are unset; Broker is nil until Login.
type Runtime struct {
	Env      *config.Env
	Log      *slog.Logger
	SQLite   *sqlite.Store
	Redis    *redisstore.Store
	Postgres *postgres.Store
	Broker   *brokerapi.Client

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Hub      *gateway.Hub
	Alerts   *notification.Dispatcher
}

// Open loads the environment, initialises logging and opens every
// configured store.
func Open(ctx context.Context, service string) (*Runtime, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(env.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.Init(service, level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt := &Runtime{
		Env:      env,
		Log:      log,
		Registry: reg,
		Metrics:  metrics.New(reg),
		Health:   metrics.NewHealthStatus(),
		Hub:      gateway.NewHub(log),
		Alerts:   newAlerts(env, log),
	}

	if rt.SQLite, err = sqlite.Open(sqlite.Config{Path: env.SQLitePath}, log); err != nil {
		rt.Close()
		return nil, err
	}
	if env.RedisAddr != "" {
		rt.Redis, err = redisstore.New(redisstore.Config{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		}, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis.Breaker().OnStateChange = func(from, to redisstore.State) {
			log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
			rt.Metrics.SetBreakerState(int(to))
		}
	}
	if env.PostgresDSN != "" {
		cfg := postgres.DefaultConfig()
		cfg.DSN = env.PostgresDSN
		if rt.Postgres, err = postgres.Open(cfg, log); err != nil {
			rt.Close()
			return nil, err
		}
		if err := rt.Postgres.EnsureTradeLog(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// newAlerts sends alerts to the configured webhook and Telegram chat, or
// to the log when neither is set.
func newAlerts(env *config.Env, log *slog.Logger) *notification.Dispatcher {
	var ns []notification.Notifier
	if env.AlertWebhookURL != "" {
		ns = append(ns, notification.NewWebhook(env.AlertWebhookURL))
	}
	if env.TelegramBotToken != "" && env.TelegramChatID != "" {
		ns = append(ns, notification.NewTelegram(env.TelegramBotToken, env.TelegramChatID))
	}
	if len(ns) == 0 {
		ns = append(ns, notification.NewLogNotifier(log))
	}
	return notification.NewDispatcher(notification.Level(strings.ToUpper(env.AlertLevel)), log, ns...)
}

// Close flushes pending alerts, releases every open store and disconnects
// websocket clients.
func (rt *Runtime) Close() {
	rt.Alerts.Close()
	rt.Hub.Close()
	if rt.Postgres != nil {
		rt.Postgres.Close()
	}
	if rt.Redis != nil {
		rt.Redis.Close()
	}
	if rt.SQLite != nil {
		rt.SQLite.Close()
	}
}

// CandleReader returns the historical candle source named by source.
func (rt *Runtime) CandleReader(source string) (model.CandleReader, error) {
	switch source {
	case SourceSQLite, "":
		return rt.SQLite, nil
	case SourcePostgres:
		if rt.Postgres == nil {
			return nil, fmt.Errorf("%w: postgres source needs POSTGRES_DSN", model.ErrValidation)
		}
		return rt.Postgres, nil
	default:
		return nil, fmt.Errorf("%w: unknown candle source %q", model.ErrValidation, source)
	}
}

// LedgerStore prefers Redis for handing the ledger between cycles and
// falls back to SQLite.
func (rt *Runtime) LedgerStore() model.LedgerStore {
	if rt.Redis != nil {
		return rt.Redis
	}
	return rt.SQLite
}

// Login opens a broker session with the credentials from the environment.
func (rt *Runtime) Login(ctx context.Context) error {
	if err := rt.Env.RequireBroker(); err != nil {
		return err
	}
	c := brokerapi.New(brokerapi.Config{
		APIKey:  rt.Env.BrokerAPIKey,
		RootURL: rt.Env.BrokerRootURL,
		Logger:  rt.Log,
	})
	if err := c.Login(ctx, rt.Env.BrokerClientCode, rt.Env.BrokerPassword, rt.Env.BrokerTOTPSecret); err != nil {
		return fmt.Errorf("broker login: %w", err)
	}
	rt.Broker = c
	return nil
}

// Executor returns the paper or live executor, journaled to every
// configured fill sink.
func (rt *Runtime) Executor(f *config.File, live bool) (model.Executor, error) {
	var next model.Executor
	if live {
		if rt.Broker == nil {
			return nil, errors.New("live executor needs a broker session")
		}
		next = execution.NewLive(rt.Broker, f.Instruments, rt.Env.OrdersPerSecond, rt.Log)
	} else {
		next = execution.NewPaper(f.SlippageBps, rt.Log)
	}
	sinks := []model.FillSink{rt.SQLite}
	if rt.Postgres != nil {
		sinks = append(sinks, rt.Postgres)
	}
	// with Redis the hub hears fills through the pub/sub relay
	if rt.Redis != nil {
		sinks = append(sinks, rt.Redis)
	} else {
		sinks = append(sinks, rt.Hub)
	}
	return execution.NewJournaled(next, rt.Log, sinks...), nil
}

// MarketData serves live cycles from the broker when a session is open,
// otherwise from the stored history.
func (rt *Runtime) MarketData(f *config.File, bars int) model.MarketData {
	if rt.Broker != nil {
		return marketdata.NewBroker(rt.Broker, f.Instruments, bars)
	}
	return marketdata.NewStored(marketdata.NewLoader(rt.SQLite, rt.Log), bars)
}

// Serve exposes metrics, health and the websocket gateway on METRICS_ADDR
// until ctx is done.
func (rt *Runtime) Serve(ctx context.Context) {
	srv := metrics.NewServer(rt.Env.MetricsAddr, rt.Registry, rt.Health, rt.Log)
	gw := http.NewServeMux()
	gateway.RegisterRoutes(gw, rt.Hub)
	srv.Handle("/ws", gw)
	srv.Handle("/api/", gw)
	srv.Start()

	var rdb *goredis.Client
	if rt.Redis != nil {
		rdb = rt.Redis.Client()
		go gateway.NewPubSubRouter(rt.Hub, rdb).Run(ctx)
	}
	rt.Health.StartLivenessChecker(ctx, rdb, rt.SQLite.DB().DB, 15*time.Second)

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			rt.Log.Error("metrics server shutdown", "error", err)
		}
	}()
}
