package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trading-replay/internal/pairs"
)

const timeLayout = "2006-01-02 15:04"

var (
	pnlFormat     string
	pnlCommission float64
)

var pnlCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Report realized profit of closed pairs",
	Long: `Match every terminal pair row with the CLOSING_TRADE row that unwound
it and report per round-trip and total profit after commission.`,
	RunE: runPnL,
}

func init() {
	rootCmd.AddCommand(pnlCmd)
	pnlCmd.Flags().StringVar(&pnlFormat, "format", "table", "Output format: table or json")
	pnlCmd.Flags().Float64Var(&pnlCommission, "commission", 0.001, "Commission rate applied to round-trip volume")
}

func runPnL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.rt.Close()

	rows, err := c.rt.SQLite.LoadPairs(ctx)
	if err != nil {
		return err
	}
	sum := pairs.SummarizePnL(rows, pnlCommission)
	if pnlFormat == "json" {
		return writeJSON(sum)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tSTATUS\tOPENED\tCLOSED\tLONG PNL\tSHORT PNL\tPNL")
	for _, trip := range sum.RoundTrips {
		fmt.Fprintf(w, "%s/%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n",
			trip.Entry.SymbolY, trip.Entry.SymbolX, trip.Entry.Status,
			trip.Entry.RecordedAt.Format(timeLayout), trip.Exit.RecordedAt.Format(timeLayout),
			trip.LongPnL, trip.ShortPnL, trip.PnL)
	}
	fmt.Fprintf(w, "TOTAL\t%d trades\t\t\t\t\t%.2f (net %.2f, win rate %.2f)\n",
		sum.Trades, sum.TotalPnL, sum.NetPnL, sum.WinRate)
	return w.Flush()
}
