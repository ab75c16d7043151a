package summary

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"trading-replay/internal/model"
)

// noLossRatio is reported as the win/loss ratio when there were winning
// trades and no losing ones.
const noLossRatio = 999.0

// Config holds the constants the aggregates depend on.
type Config struct {
	CommissionRate float64 `yaml:"commission_pct"` // fraction of volume, e.g. 0.001
	TradeNotional  float64 `yaml:"tlt_dollar"`     // dollars committed per trade
}

// Summary aggregates one execution log.
type Summary struct {
	TotalTrades       int           `json:"total_trades"`
	OpenEntries       int           `json:"open_entries"`
	TotalProfit       float64       `json:"total_profit"`
	TotalVolume       float64       `json:"total_volume"`
	Commission        float64       `json:"commission"`
	NetProfit         float64       `json:"net_profit"`
	WinRate           float64       `json:"win_rate"`
	WinLossRatio      float64       `json:"win_loss_ratio"`
	MeanDuration      time.Duration `json:"mean_duration"`
	MedianDuration    time.Duration `json:"median_duration"`
	ProfitPctPerTrade float64       `json:"profit_pct_per_trade"`
	NetPctPerTrade    float64       `json:"net_pct_per_trade"`
	Trades            []Trade       `json:"trades,omitempty"`
}

// Summarize matches the log FIFO and aggregates the trades. Returns
// model.ErrNoTrades when nothing was matched.
func Summarize(execs []model.Execution, cfg Config) (Summary, error) {
	trades, open, err := MatchFIFO(execs)
	if err != nil {
		return Summary{}, err
	}
	if len(trades) == 0 {
		return Summary{OpenEntries: len(open)}, model.ErrNoTrades
	}

	s := Summary{
		TotalTrades: len(trades),
		OpenEntries: len(open),
		Trades:      trades,
	}
	for _, e := range execs {
		s.TotalVolume += e.Notional
	}
	s.Commission = s.TotalVolume * cfg.CommissionRate

	var wins, losses float64
	var nWins int
	durations := make([]time.Duration, len(trades))
	var totalDur time.Duration
	for i, t := range trades {
		s.TotalProfit += t.Profit
		switch {
		case t.Profit > 0:
			wins += t.Profit
			nWins++
		case t.Profit < 0:
			losses += -t.Profit
		}
		durations[i] = t.Duration
		totalDur += t.Duration
	}
	s.NetProfit = s.TotalProfit - s.Commission
	s.WinRate = float64(nWins) / float64(len(trades))
	switch {
	case losses > 0:
		s.WinLossRatio = wins / losses
	case wins > 0:
		s.WinLossRatio = noLossRatio
	}
	s.MeanDuration = totalDur / time.Duration(len(trades))
	s.MedianDuration = median(durations)
	if cfg.TradeNotional > 0 {
		s.ProfitPctPerTrade = s.TotalProfit / float64(s.TotalTrades) / cfg.TradeNotional
		s.NetPctPerTrade = s.NetProfit / float64(s.TotalTrades) / cfg.TradeNotional
	}
	return s, nil
}

func median(d []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(d))
	copy(sorted, d)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Between returns the executions with Time in [from, to).
func Between(execs []model.Execution, from, to time.Time) []model.Execution {
	var out []model.Execution
	for _, e := range execs {
		if !e.Time.Before(from) && e.Time.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

// Window is one rolling summary range.
type Window struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Summary Summary   `json:"summary"`
	Traded  bool      `json:"traded"`
}

// Rolling summarizes [start, start+length), [start+step, start+step+length), ...
// up to end. Ranges with no matched trade are reported with Traded=false.
// Exits whose entry precedes the range start are not counted in that range.
func Rolling(execs []model.Execution, cfg Config, start, end time.Time, length, step time.Duration) ([]Window, error) {
	if length <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: rolling length and step must be positive", model.ErrValidation)
	}
	var out []Window
	for from := start; from.Add(length).Compare(end) <= 0; from = from.Add(step) {
		to := from.Add(length)
		sub := dropOrphanExits(Between(execs, from, to))
		s, err := Summarize(sub, cfg)
		switch {
		case err == nil:
			out = append(out, Window{From: from, To: to, Summary: s, Traded: true})
		case errors.Is(err, model.ErrNoTrades):
			out = append(out, Window{From: from, To: to})
		default:
			return nil, fmt.Errorf("window %s: %w", from.Format("2006-01-02"), err)
		}
	}
	return out, nil
}

// dropOrphanExits removes exits whose entry fell outside the slice.
func dropOrphanExits(execs []model.Execution) []model.Execution {
	openCount := make(map[queueKey]int)
	out := make([]model.Execution, 0, len(execs))
	for _, e := range execs {
		switch e.Action {
		case model.ActionBuy:
			openCount[queueKey{e.Symbol, model.Long}]++
		case model.ActionShortSell:
			openCount[queueKey{e.Symbol, model.Short}]++
		case model.ActionSell:
			k := queueKey{e.Symbol, model.Long}
			if openCount[k] == 0 {
				continue
			}
			openCount[k]--
		case model.ActionShortClose:
			k := queueKey{e.Symbol, model.Short}
			if openCount[k] == 0 {
				continue
			}
			openCount[k]--
		}
		out = append(out, e)
	}
	return out
}
