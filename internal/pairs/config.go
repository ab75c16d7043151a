// Package pairs runs the pairs-spread state machine: it computes the hedged
// spread of two instruments, derives mean-reversion and stop-loss bands on a
// slower series, and moves pair positions through their lifecycle.
package pairs

import (
	"fmt"

	"trading-replay/internal/model"
)

// Config holds the pairs parameters.
type Config struct {
	BBWindow       int     `yaml:"bb_window" json:"bb_window"`
	SignalStdMult  float64 `yaml:"bb_signal_std_mult" json:"bb_signal_std_mult"`
	StopLossStdMul float64 `yaml:"bb_stoploss_std_mult" json:"bb_stoploss_std_mult"`

	MinRecentCoint     float64 `yaml:"min_recent_coint" json:"min_recent_coint"`
	MinRSquared        float64 `yaml:"min_r_squared" json:"min_r_squared"`
	MinPotentialWinPct float64 `yaml:"min_potential_win_pct" json:"min_potential_win_pct"`
	TotalPerTrade      float64 `yaml:"total_per_trade" json:"total_per_trade"`

	TradeInterval model.Interval `yaml:"trade_interval" json:"trade_interval"`
	BandInterval  model.Interval `yaml:"band_interval" json:"band_interval"`
}

// DefaultConfig returns the production pairs parameters.
func DefaultConfig() Config {
	return Config{
		BBWindow:           20,
		SignalStdMult:      1.8,
		StopLossStdMul:     2.8,
		MinRecentCoint:     0.75,
		MinRSquared:        0.65,
		MinPotentialWinPct: 0.01,
		TotalPerTrade:      50,
		TradeInterval:      model.Interval1m,
		BandInterval:       model.Interval1d,
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	switch {
	case c.BBWindow < 2:
		return fmt.Errorf("%w: bb_window must be >= 2, got %d", model.ErrValidation, c.BBWindow)
	case c.SignalStdMult <= 0:
		return fmt.Errorf("%w: bb_signal_std_mult must be positive", model.ErrValidation)
	case c.StopLossStdMul < c.SignalStdMult:
		return fmt.Errorf("%w: bb_stoploss_std_mult %.2f below signal mult %.2f",
			model.ErrValidation, c.StopLossStdMul, c.SignalStdMult)
	case c.TotalPerTrade <= 0:
		return fmt.Errorf("%w: total_per_trade must be positive", model.ErrValidation)
	case !c.TradeInterval.Known() || !c.BandInterval.Known():
		return fmt.Errorf("%w: unknown pairs interval", model.ErrValidation)
	}
	return nil
}

// Eligible reports whether a candidate passes the selection thresholds.
func (c Config) Eligible(p model.PairCandidate) bool {
	return p.RecentCoint >= c.MinRecentCoint &&
		p.RSquared >= c.MinRSquared &&
		p.PotentialWinPc >= c.MinPotentialWinPct
}
