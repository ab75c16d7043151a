// Command pairs runs the pairs-spread cycles: the opener enters candidate
// pairs whose spread leaves the signal band, the closer unwinds OPEN pairs
// on mean reversion or a stop-band breach.
//
// Usage:
//
//	pairs open  --config config/pairs.yaml
//	pairs close --config config/pairs.yaml --live
//	pairs serve --config config/pairs.yaml --every 1m
//	pairs pnl
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trading-replay/config"
	"trading-replay/internal/app"
	"trading-replay/internal/model"
	"trading-replay/internal/pairs"
)

var (
	configPath string
	live       bool
	bars       int
)

var rootCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Trade the hedged spread of cointegrated pairs",
	Long: `pairs moves pair positions through OPEN, PROFIT_CLOSED and the stop
states and keeps every transition in the SQLite pairs ledger.

Without --live legs are paper-filled and candles come from the local
SQLite history.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/pairs.yaml", "Path to the YAML run file")
	rootCmd.PersistentFlags().BoolVar(&live, "live", false, "Trade through the broker (needs BROKER_* credentials)")
	rootCmd.PersistentFlags().IntVar(&bars, "bars", 500, "Candles fetched per series")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cycles holds the wired opener and closer of one process.
type cycles struct {
	rt     *app.Runtime
	file   *config.File
	opener *pairs.Opener
	closer *pairs.Closer
}

// setup loads the run file, opens the runtime and wires both cycles. The
// caller closes rt.
func setup(ctx context.Context) (*cycles, error) {
	f, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	rt, err := app.Open(ctx, "pairs")
	if err != nil {
		return nil, err
	}
	if live {
		if err := rt.Login(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	exec, err := rt.Executor(f, live)
	if err != nil {
		rt.Close()
		return nil, err
	}
	md := rt.MarketData(f, bars)
	opts := []pairs.Option{pairs.WithObserver(rt.Metrics), pairs.WithObserver(rt.Hub), pairs.WithObserver(rt.Alerts)}
	return &cycles{
		rt:     rt,
		file:   f,
		opener: pairs.NewOpener(f.Pairs, md, exec, rt.SQLite, rt.Log, opts...),
		closer: pairs.NewCloser(f.Pairs, md, exec, rt.SQLite, rt.Log, opts...),
	}, nil
}

// refresh updates the open-pairs gauge from the ledger.
func (c *cycles) refresh(ctx context.Context) {
	rows, err := c.rt.SQLite.LoadPairs(ctx)
	if err != nil {
		c.rt.Log.Warn("pairs gauge not refreshed", "error", err)
		return
	}
	c.rt.Metrics.SetPairsOpen(rows)
}

func requireCandidates(f *config.File) error {
	if len(f.Candidates) == 0 {
		return fmt.Errorf("%w: no pair candidates in %s", model.ErrValidation, configPath)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
