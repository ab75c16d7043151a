package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trading-replay/internal/logger"
	"trading-replay/internal/marketdata"
	"trading-replay/internal/strategy"
	"trading-replay/internal/tuning"
)

var (
	tuneTop    int
	tuneFormat string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Replay every parameter combination of the grid",
	Long: `Replay the strategy once per combination of the run file's grid on
every symbol, summarize each run over the full range and over rolling
windows, and rank the runs by profit per trade.

Examples:
  backtest tune
  backtest tune --top 20
  backtest tune --format json > tune.json`,
	RunE: runTune,
}

func init() {
	rootCmd.AddCommand(tuneCmd)
	tuneCmd.Flags().IntVar(&tuneTop, "top", 10, "Ranked runs to print (0 = all)")
	tuneCmd.Flags().StringVar(&tuneFormat, "format", "table", "Output format: table or json")
}

func runTune(cmd *cobra.Command, _ []string) error {
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
	tuner := tuning.New(marketdata.NewLoader(reader, log), strategy.NewRegistry(), f.TuningConfig(), log, rt.Metrics)
	rep, err := tuner.Run(ctx, f.Job())
	if err != nil {
		return err
	}

	ranked := rep.Ranked()
	if tuneTop > 0 && len(ranked) > tuneTop {
		ranked = ranked[:tuneTop]
	}
	if tuneFormat == "json" {
		for i := range ranked {
			ranked[i].Executions = nil
		}
		return writeJSON(struct {
			Strategy string            `json:"strategy"`
			Ranked   []tuning.Run      `json:"ranked"`
			Failures map[string]string `json:"failures,omitempty"`
		}{rep.Strategy, ranked, rep.Failures})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tPARAMS\tTRADES\tPROFIT%/TRADE\tROLLING%\tBASELINE%")
	for i, r := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.3f\t%.3f\t%.2f\n",
			i+1, r.Symbol, r.Params.String(), r.Summary.TotalTrades,
			r.Summary.ProfitPctPerTrade*100, rollingMean(r)*100, r.BaselineChange*100)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for k, msg := range rep.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s: %s\n", k, msg)
	}
	return nil
}

// rollingMean averages profit per trade over the traded rolling windows.
func rollingMean(r tuning.Run) float64 {
	var sum float64
	var n int
	for _, w := range r.Rolling {
		if w.Traded {
			sum += w.Summary.ProfitPctPerTrade
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
