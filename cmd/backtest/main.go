// Command backtest replays strategies over stored candle history.
//
// Usage:
//
//	backtest run  --config config/backtest.yaml
//	backtest tune --config config/backtest.yaml --top 10
//	backtest sync --config config/backtest.yaml
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
)

var (
	configPath string
	source     string
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay strategies over historical candles",
	Long: `backtest replays a strategy bar by bar over stored candles, closes
every open order at the end of the data and reports profit, win/loss and
drawdown statistics per symbol.

Infrastructure comes from the environment (SQLITE_PATH, POSTGRES_DSN,
REDIS_ADDR, LOG_LEVEL); trading parameters come from the YAML run file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/backtest.yaml", "Path to the YAML run file")
	rootCmd.PersistentFlags().StringVar(&source, "source", app.SourceSQLite, "Candle source: sqlite or postgres")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the run file and opens the runtime. The caller closes it.
func setup(ctx context.Context) (*app.Runtime, *config.File, error) {
	f, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := f.ValidateBacktest(); err != nil {
		return nil, nil, err
	}
	rt, err := app.Open(ctx, "backtest")
	if err != nil {
		return nil, nil, err
	}
	return rt, f, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
