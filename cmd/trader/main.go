// Command trader runs the strategy's production cycle: one decision step
// per symbol on the latest candles against the persisted order ledger.
//
// Usage:
//
//	trader cycle --config config/backtest.yaml             # paper, once
//	trader cycle --config config/backtest.yaml --live --every 1h
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trading-replay/config"
	"trading-replay/internal/app"
	"trading-replay/internal/logger"
	"trading-replay/internal/strategy"
)

var (
	configPath string
	live       bool
	every      time.Duration
	bars       int
)

var rootCmd = &cobra.Command{
	Use:          "trader",
	Short:        "Run scheduled strategy cycles",
	SilenceUsage: true,
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Step the strategy on the latest candles of every symbol",
	Long: `Load the strategy's OPEN orders, step every symbol once on the latest
candles and save the ledger back. Orders are never force-closed; they stay
OPEN until the strategy exits them in a later cycle.

Without --live orders are paper-filled and candles come from the local
SQLite history. With --every the cycle repeats and metrics, health and the
websocket gateway are served on METRICS_ADDR.`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/backtest.yaml", "Path to the YAML run file")
	cycleCmd.Flags().BoolVar(&live, "live", false, "Trade through the broker (needs BROKER_* credentials)")
	cycleCmd.Flags().DurationVar(&every, "every", 0, "Repeat the cycle at this interval (0 = run once)")
	cycleCmd.Flags().IntVar(&bars, "bars", 500, "Candles fetched per series")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCycle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	f, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if err := f.ValidateBacktest(); err != nil {
		return err
	}
	rt, err := app.Open(ctx, "trader")
	if err != nil {
		return err
	}
	defer rt.Close()

	strat, err := strategy.NewRegistry().New(f.Strategy, f.Params)
	if err != nil {
		return err
	}
	if live {
		if err := rt.Login(ctx); err != nil {
			return err
		}
	}
	exec, err := rt.Executor(f, live)
	if err != nil {
		return err
	}

	c := strategy.NewCycle(f.TuningConfig().Engine, f.Limits, strat,
		strategy.Intervals{Trade: f.TradeInterval, Indicator: f.IndicatorInterval, Extra: f.ExtraInterval},
		rt.MarketData(f, bars), exec, rt.LedgerStore(), rt.Log,
		strategy.WithObserver(rt.Metrics), strategy.WithObserver(rt.Hub), strategy.WithObserver(rt.Alerts))

	step := func() error {
		runCtx := logger.WithRunID(ctx, logger.NewRunID())
		start := time.Now()
		_, err := c.Run(runCtx, f.Symbols)
		rt.Metrics.ObserveCycle("strategy", time.Since(start), err)
		rt.Health.RecordCycle(start, err)
		return err
	}

	if every <= 0 {
		return step()
	}

	session, err := f.MarketSession()
	if err != nil {
		return err
	}
	rt.Serve(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if now := time.Now(); !session.IsOpen(now) {
			rt.Log.Info("cycle skipped", "session", session.Status(now))
		} else if err := step(); err != nil {
			rt.Log.Error("cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
