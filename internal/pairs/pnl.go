package pairs

import (
	"trading-replay/internal/model"
)

// RoundTrip is one closed pair: the entry row and its closing trade.
type RoundTrip struct {
	Entry    model.PairPosition `json:"entry"`
	Exit     model.PairPosition `json:"exit"`
	LongPnL  float64            `json:"long_pnl"`
	ShortPnL float64            `json:"short_pnl"`
	PnL      float64            `json:"pnl"`
	Volume   float64            `json:"volume"`
}

// PnLSummary aggregates pair round trips.
type PnLSummary struct {
	Trades     int         `json:"trades"`
	TotalPnL   float64     `json:"total_pnl"`
	Volume     float64     `json:"volume"`
	Commission float64     `json:"commission"`
	NetPnL     float64     `json:"net_pnl"`
	WinRate    float64     `json:"win_rate"`
	RoundTrips []RoundTrip `json:"round_trips,omitempty"`
}

// MatchRoundTrips pairs each terminal row with the CLOSING_TRADE row that
// unwound it. Closing rows without a parent ID fall back to the first later
// closing row for the same two symbols.
func MatchRoundTrips(rows []model.PairPosition) []RoundTrip {
	byParent := make(map[string]int)
	used := make(map[int]bool)
	for i, r := range rows {
		if r.Status == model.PairClosingTrade && r.ParentID != "" {
			byParent[r.ParentID] = i
		}
	}

	var out []RoundTrip
	for i, r := range rows {
		switch r.Status {
		case model.PairProfitClosed, model.PairUpperStopped, model.PairLowerStopped:
		default:
			continue
		}
		j, ok := byParent[r.ID]
		if !ok {
			j = -1
			for k := i + 1; k < len(rows); k++ {
				c := rows[k]
				if c.Status == model.PairClosingTrade && c.ParentID == "" && !used[k] && c.SameSet(r.SymbolY, r.SymbolX) {
					j = k
					break
				}
			}
			if j < 0 {
				continue
			}
		}
		used[j] = true
		out = append(out, roundTrip(r, rows[j]))
	}
	return out
}

func roundTrip(entry, exit model.PairPosition) RoundTrip {
	long := exit.LongLeg.Notional - entry.LongLeg.Notional
	short := entry.ShortLeg.Notional - exit.ShortLeg.Notional
	return RoundTrip{
		Entry:    entry,
		Exit:     exit,
		LongPnL:  long,
		ShortPnL: short,
		PnL:      long + short,
		Volume:   entry.LongLeg.Notional + entry.ShortLeg.Notional,
	}
}

// SummarizePnL aggregates matched round trips. Commission is charged on
// entry volume.
func SummarizePnL(rows []model.PairPosition, commissionRate float64) PnLSummary {
	trips := MatchRoundTrips(rows)
	s := PnLSummary{Trades: len(trips), RoundTrips: trips}
	wins := 0
	for _, t := range trips {
		s.TotalPnL += t.PnL
		s.Volume += t.Volume
		if t.PnL > 0 {
			wins++
		}
	}
	s.Commission = s.Volume * commissionRate
	s.NetPnL = s.TotalPnL - s.Commission
	if len(trips) > 0 {
		s.WinRate = float64(wins) / float64(len(trips))
	}
	return s
}
