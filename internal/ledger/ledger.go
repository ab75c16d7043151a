// Package ledger holds the order ledger and the execution log of a strategy
// run.
//
// The order ledger is append-only: orders are opened, mutated while OPEN and
// closed exactly once, never removed. It is indexed by ID and by symbol so
// that "all OPEN orders for a symbol" does not scan history.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-replay/internal/model"
)

// Ledger tracks every order of a run and enforces the open order caps.
type Ledger struct {
	mu     sync.RWMutex
	limits Limits

	orders    []*model.OpenOrder
	byID      map[string]*model.OpenOrder
	open      map[string][]*model.OpenOrder // symbol -> OPEN orders, oldest first
	openTotal int
}

// New creates an empty ledger with the given caps.
func New(limits Limits) *Ledger {
	return &Ledger{
		limits: limits,
		orders: make([]*model.OpenOrder, 0, 64),
		byID:   make(map[string]*model.OpenOrder),
		open:   make(map[string][]*model.OpenOrder),
	}
}

// Limits returns the ledger's caps.
func (l *Ledger) Limits() Limits { return l.limits }

// CanOpen checks whether one more OPEN order on symbol stays within caps.
// Returns false with a reason if not.
func (l *Ledger) CanOpen(symbol string) (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.canOpenLocked(symbol)
}

func (l *Ledger) canOpenLocked(symbol string) (bool, string) {
	if l.openTotal >= l.limits.MaxTotal {
		return false, "max open orders reached"
	}
	if len(l.open[symbol]) >= l.limits.MaxPerSymbol {
		return false, "max open orders for symbol reached"
	}
	return true, ""
}

// Open records a new OPEN order. ID is generated when empty; HighSinceOpen
// starts at the entry price. The ledger is unchanged when a cap would be
// exceeded.
func (l *Ledger) Open(o model.OpenOrder) (model.OpenOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok, reason := l.canOpenLocked(o.Symbol); !ok {
		return model.OpenOrder{}, fmt.Errorf("%w: %s (%s)", model.ErrCapacity, reason, o.Symbol)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, dup := l.byID[o.ID]; dup {
		return model.OpenOrder{}, fmt.Errorf("%w: duplicate order id %s", model.ErrValidation, o.ID)
	}
	if o.Side == "" {
		o.Side = model.Long
	}
	o.Status = model.OrderOpen
	o.HighSinceOpen = o.EntryPrice

	l.insertLocked(&o)
	return o, nil
}

func (l *Ledger) insertLocked(o *model.OpenOrder) {
	l.orders = append(l.orders, o)
	l.byID[o.ID] = o
	if o.Status == model.OrderOpen {
		l.open[o.Symbol] = append(l.open[o.Symbol], o)
		l.openTotal++
	}
}

// MarkPrice raises HighSinceOpen of an OPEN order to price if higher.
func (l *Ledger) MarkPrice(id string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.byID[id]; ok && o.Status == model.OrderOpen && price > o.HighSinceOpen {
		o.HighSinceOpen = price
	}
}

// Close transitions an OPEN order to CLOSED. The reason must be non-empty.
func (l *Ledger) Close(id string, at time.Time, price float64, reason string) (model.OpenOrder, error) {
	if reason == "" {
		return model.OpenOrder{}, fmt.Errorf("%w: close reason required for order %s", model.ErrValidation, id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.byID[id]
	if !ok {
		return model.OpenOrder{}, fmt.Errorf("%w: unknown order id %s", model.ErrValidation, id)
	}
	if o.Status != model.OrderOpen {
		return model.OpenOrder{}, fmt.Errorf("%w: %s", model.ErrOrderClosed, id)
	}

	pct := o.ProfitPctAt(price)
	closedAt := at
	closePrice := price
	o.Status = model.OrderClosed
	o.ClosedAt = &closedAt
	o.ClosePrice = &closePrice
	o.CloseReason = reason
	o.ProfitPct = &pct

	open := l.open[o.Symbol]
	for i, p := range open {
		if p.ID == id {
			l.open[o.Symbol] = append(open[:i:i], open[i+1:]...)
			break
		}
	}
	if len(l.open[o.Symbol]) == 0 {
		delete(l.open, o.Symbol)
	}
	l.openTotal--
	return *o, nil
}

// OpenFor returns a snapshot of OPEN orders for symbol, oldest first.
func (l *Ledger) OpenFor(symbol string) []model.OpenOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.OpenOrder, len(l.open[symbol]))
	for i, o := range l.open[symbol] {
		out[i] = *o
	}
	return out
}

// OpenAll returns a snapshot of every OPEN order in ledger order.
func (l *Ledger) OpenAll() []model.OpenOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.OpenOrder, 0, l.openTotal)
	for _, o := range l.orders {
		if o.Status == model.OrderOpen {
			out = append(out, *o)
		}
	}
	return out
}

// Orders returns a snapshot of every order in ledger order.
func (l *Ledger) Orders() []model.OpenOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.OpenOrder, len(l.orders))
	for i, o := range l.orders {
		out[i] = *o
	}
	return out
}

// OpenCount returns the number of OPEN orders across all symbols.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.openTotal
}

// OpenCountFor returns the number of OPEN orders for symbol.
func (l *Ledger) OpenCountFor(symbol string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open[symbol])
}

// Restore loads persisted orders into an empty ledger, keeping their
// status. Restored OPEN orders count toward the caps but are not rejected
// by them.
func (l *Ledger) Restore(orders []model.OpenOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.orders) > 0 {
		return fmt.Errorf("%w: restore into non-empty ledger", model.ErrValidation)
	}
	for i := range orders {
		o := orders[i]
		if o.ID == "" {
			return fmt.Errorf("%w: restored order %d has no id", model.ErrValidation, i)
		}
		if _, dup := l.byID[o.ID]; dup {
			return fmt.Errorf("%w: duplicate order id %s", model.ErrValidation, o.ID)
		}
		if o.Status == model.OrderClosed && o.CloseReason == "" {
			return fmt.Errorf("%w: closed order %s has no reason", model.ErrValidation, o.ID)
		}
		l.insertLocked(&o)
	}
	return nil
}
