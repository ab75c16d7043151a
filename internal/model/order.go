package model

import "time"

// OrderStatus is the lifecycle state of an OpenOrder. OPEN -> CLOSED is terminal.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Action is the type of an execution record.
type Action string

const (
	ActionBuy        Action = "BUY"
	ActionSell       Action = "SELL"
	ActionShortSell  Action = "SHORT_SELL"
	ActionShortClose Action = "SHORT_CLOSE"
)

// OpenAction returns the execution action that opens a position on this side.
func (s Side) OpenAction() Action {
	if s == Short {
		return ActionShortSell
	}
	return ActionBuy
}

// CloseAction returns the execution action that closes a position on this side.
func (s Side) CloseAction() Action {
	if s == Short {
		return ActionShortClose
	}
	return ActionSell
}

// ReasonForcedLiquidation closes every order still OPEN at the end of a replay.
const ReasonForcedLiquidation = "forced liquidation"

// OpenOrder is one position tracked by the order ledger.
type OpenOrder struct {
	ID            string      `json:"id" db:"id"`
	Strategy      string      `json:"strategy" db:"strategy"`
	Symbol        string      `json:"symbol" db:"symbol"`
	Side          Side        `json:"side" db:"side"`
	Status        OrderStatus `json:"status" db:"status"`
	EntryPrice    float64     `json:"entry_price" db:"entry_price"`
	Quantity      float64     `json:"quantity" db:"quantity"`
	Notional      float64     `json:"notional" db:"notional"`
	HighSinceOpen float64     `json:"high_since_open" db:"high_since_open"`
	OpenedAt      time.Time   `json:"opened_at" db:"opened_at"`
	OpenReason    string      `json:"open_reason,omitempty" db:"open_reason"`

	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	ClosePrice  *float64   `json:"close_price,omitempty" db:"close_price"`
	CloseReason string     `json:"close_reason,omitempty" db:"close_reason"`
	ProfitPct   *float64   `json:"profit_pct,omitempty" db:"profit_pct"`
}

// ProfitPctAt returns the fractional profit of the order at price.
func (o *OpenOrder) ProfitPctAt(price float64) float64 {
	if o.EntryPrice == 0 {
		return 0
	}
	if o.Side == Short {
		return (o.EntryPrice - price) / o.EntryPrice
	}
	return (price - o.EntryPrice) / o.EntryPrice
}

// Execution is one fill recorded in the append-only execution log.
type Execution struct {
	Time     time.Time `json:"time" db:"time"`
	Action   Action    `json:"action" db:"action"`
	Symbol   string    `json:"symbol" db:"symbol"`
	Price    float64   `json:"price" db:"price"`
	Quantity float64   `json:"quantity" db:"quantity"`
	Notional float64   `json:"notional" db:"notional"`
	OrderID  string    `json:"order_id" db:"order_id"`
}

// OrderRequest is what the engine asks an execution adapter to fill.
type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Action   Action    `json:"action"`
	Quantity float64   `json:"quantity"`
	RefPrice float64   `json:"ref_price"`
	Time     time.Time `json:"time"`
}

// Fill is an execution adapter's confirmation.
type Fill struct {
	OrderID          string    `json:"order_id"`
	Symbol           string    `json:"symbol"`
	Action           Action    `json:"action"`
	Time             time.Time `json:"time"`
	Price            float64   `json:"price"`
	ExecutedQuantity float64   `json:"executed_quantity"`
	ExecutedNotional float64   `json:"executed_notional"`
	Status           string    `json:"status"`
}
