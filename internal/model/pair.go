package model

import "time"

// PairStatus is the lifecycle state of a pairs position.
type PairStatus string

const (
	PairStandby      PairStatus = "STANDBY"
	PairOpen         PairStatus = "OPEN"
	PairProfitClosed PairStatus = "PROFIT_CLOSED"
	PairUpperStopped PairStatus = "UPPER_STOPPED"
	PairLowerStopped PairStatus = "LOWER_STOPPED"
	PairClosingTrade PairStatus = "CLOSING_TRADE"
)

// Terminal reports whether no further transition is allowed.
func (s PairStatus) Terminal() bool {
	switch s {
	case PairProfitClosed, PairUpperStopped, PairLowerStopped, PairClosingTrade:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func (s PairStatus) CanTransition(to PairStatus) bool {
	switch s {
	case PairStandby:
		return to == PairOpen
	case PairOpen:
		return to == PairProfitClosed || to == PairUpperStopped || to == PairLowerStopped
	}
	return false
}

// Leg is one side of a pairs position.
type Leg struct {
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Notional float64   `json:"notional"`
	Time     time.Time `json:"time"`
	OrderID  string    `json:"order_id"`
	Status   string    `json:"status"`
}

// PairPosition is one row of the pairs ledger.
type PairPosition struct {
	ID          string     `json:"id"`
	ParentID    string     `json:"parent_id,omitempty"` // CLOSING_TRADE rows: the position they unwound
	Status      PairStatus `json:"status"`
	SymbolY     string     `json:"symbol_y"`
	SymbolX     string     `json:"symbol_x"`
	OLSCoeff    float64    `json:"ols_coeff"`
	OLSConstant float64    `json:"ols_constant"`
	LongLeg     Leg        `json:"long_leg"`
	ShortLeg    Leg        `json:"short_leg"`
	Spread      float64    `json:"spread"`
	UpperBand   float64    `json:"upper_band"`
	LowerBand   float64    `json:"lower_band"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

// SameSet reports whether two positions trade the same two symbols.
func (p *PairPosition) SameSet(y, x string) bool {
	return (p.SymbolY == y && p.SymbolX == x) || (p.SymbolY == x && p.SymbolX == y)
}

// SpreadObservation is the spread and its bands at one timestamp.
type SpreadObservation struct {
	TS            time.Time `json:"ts"`
	Spread        float64   `json:"spread"`
	RollingMean   float64   `json:"rolling_mean"`
	RollingStd    float64   `json:"rolling_std"`
	UpperBand     float64   `json:"upper_band"`
	LowerBand     float64   `json:"lower_band"`
	UpperStopLoss float64   `json:"upper_stop_loss"`
	LowerStopLoss float64   `json:"lower_stop_loss"`
}

// PairCandidate is a cointegrated pair produced by an upstream screen.
type PairCandidate struct {
	SymbolY        string  `json:"symbol_y" yaml:"symbol_y"`
	SymbolX        string  `json:"symbol_x" yaml:"symbol_x"`
	OLSCoeff       float64 `json:"ols_coeff" yaml:"ols_coeff"`
	OLSConstant    float64 `json:"ols_constant" yaml:"ols_constant"`
	RecentCoint    float64 `json:"recent_coint" yaml:"recent_coint"`
	RSquared       float64 `json:"r_squared" yaml:"r_squared"`
	PotentialWinPc float64 `json:"potential_win_pct" yaml:"potential_win_pct"`
}
