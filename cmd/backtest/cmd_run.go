package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trading-replay/internal/logger"
	"trading-replay/internal/marketdata"
	"trading-replay/internal/strategy"
	"trading-replay/internal/tuning"
)

var (
	runFormat string
	runSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay the configured strategy once per symbol",
	Long: `Replay the strategy with the params from the run file (the grid is
ignored) over every symbol and print one summary per symbol.

Examples:
  backtest run
  backtest run --format json
  backtest run --save              # keep the executions in the SQLite ledger`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table or json")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Append executions to the SQLite execution log")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	ctx := logger.WithRunID(cmd.Context(), logger.NewRunID())
	rt, f, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := logger.FromContext(ctx, rt.Log)

	reader, err := rt.CandleReader(source)
	if err != nil {
		return err
	}
	job := f.Job()
	job.Grid = tuning.Grid{}
	for k, v := range f.Params {
		job.Grid[k] = []float64{v}
	}

	start := time.Now()
	tuner := tuning.New(marketdata.NewLoader(reader, log), strategy.NewRegistry(), f.TuningConfig(), log, rt.Metrics)
	rep, err := tuner.Run(ctx, job)
	if err != nil {
		return err
	}
	log.Info("replay finished", "runs", len(rep.Runs), "failures", len(rep.Failures), "elapsed", time.Since(start))

	if runSave {
		for _, r := range rep.Runs {
			if err := rt.SQLite.AppendExecutions(ctx, r.Executions); err != nil {
				return fmt.Errorf("save %s executions: %w", r.Symbol, err)
			}
		}
	}

	if runFormat == "json" {
		return writeJSON(rep)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tTRADES\tOPEN\tNET PROFIT\tPROFIT%/TRADE\tWIN RATE\tWIN/LOSS\tBASELINE%")
	for _, r := range rep.Runs {
		if !r.Traded {
			fmt.Fprintf(w, "%s\t0\t%d\t-\t-\t-\t-\t%.2f\n", r.Symbol, r.Summary.OpenEntries, r.BaselineChange*100)
			continue
		}
		s := r.Summary
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.3f\t%.2f\t%.2f\t%.2f\n",
			r.Symbol, s.TotalTrades, s.OpenEntries, s.NetProfit, s.ProfitPctPerTrade*100,
			s.WinRate, s.WinLossRatio, r.BaselineChange*100)
	}
	for sym, msg := range rep.Failures {
		fmt.Fprintf(w, "%s\tFAILED\t%s\n", sym, msg)
	}
	return w.Flush()
}
