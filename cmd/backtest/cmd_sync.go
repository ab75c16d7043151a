package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trading-replay/internal/logger"
	"trading-replay/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy candle history from Postgres into the local SQLite store",
	Long: `Copy the run file's symbols and intervals from the Postgres price
warehouse (POSTGRES_DSN) into SQLite so replays and paper cycles can run
offline. Each series resumes after the newest candle already stored.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, f, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.Postgres == nil {
		return fmt.Errorf("%w: sync needs POSTGRES_DSN", model.ErrValidation)
	}
	log := logger.FromContext(ctx, rt.Log).With("component", "sync")

	intervals := []model.Interval{f.TradeInterval}
	for _, iv := range []model.Interval{f.IndicatorInterval, f.ExtraInterval} {
		if iv.Known() && iv != f.TradeInterval {
			intervals = append(intervals, iv)
		}
	}

	var failed int
	for _, sym := range f.Symbols {
		for _, iv := range intervals {
			last, err := rt.SQLite.LastCandleTime(ctx, sym, iv)
			if err != nil {
				return err
			}
			from := f.StartDate
			if !last.IsZero() {
				from = last.Add(time.Second)
			}
			candles, err := rt.Postgres.ReadCandles(ctx, sym, iv, from, f.EndDate)
			if err != nil {
				log.Error("read failed", "symbol", sym, "interval", iv.String(), "error", err)
				failed++
				continue
			}
			for i := range candles {
				candles[i].Symbol = sym
			}
			if err := rt.SQLite.WriteCandles(ctx, iv, candles); err != nil {
				return err
			}
			log.Info("synced", "symbol", sym, "interval", iv.String(), "candles", len(candles))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d series failed to sync", failed)
	}
	return nil
}
