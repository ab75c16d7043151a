package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/execution"
	"trading-replay/internal/ledger"
	"trading-replay/internal/model"
)

type daysMarket struct {
	days int
	fail map[string]bool
}

func (m *daysMarket) Candles(_ context.Context, symbol string, _ model.Interval) ([]model.Candle, error) {
	if m.fail[symbol] {
		return nil, errors.New("no data")
	}
	return risingDaily(symbol, m.days), nil
}

type memLedger struct {
	orders map[string]model.OpenOrder
	seq    []string
	execs  []model.Execution
}

func newMemLedger() *memLedger { return &memLedger{orders: make(map[string]model.OpenOrder)} }

func (m *memLedger) LoadOrders(_ context.Context, strategy, symbol string) ([]model.OpenOrder, error) {
	var out []model.OpenOrder
	for _, id := range m.seq {
		o := m.orders[id]
		if o.Strategy == strategy && (symbol == "" || o.Symbol == symbol) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memLedger) SaveOrders(_ context.Context, orders []model.OpenOrder) error {
	for _, o := range orders {
		if _, ok := m.orders[o.ID]; !ok {
			m.seq = append(m.seq, o.ID)
		}
		m.orders[o.ID] = o
	}
	return nil
}

func (m *memLedger) AppendExecutions(_ context.Context, execs []model.Execution) error {
	m.execs = append(m.execs, execs...)
	return nil
}

func (m *memLedger) LoadExecutions(context.Context, string) ([]model.Execution, error) {
	return m.execs, nil
}

func TestCycle_PersistsAcrossRuns(t *testing.T) {
	md := &daysMarket{days: 10, fail: map[string]bool{"BAD": true}}
	store := newMemLedger()
	iv := Intervals{Trade: model.Interval1d, Indicator: model.Interval1d}
	newCycle := func() *Cycle {
		return NewCycle(DefaultConfig(), ledger.DefaultLimits(), &churn{holdBars: 3}, iv, md, execution.NewPaper(0, nil), store, nil)
	}

	rep, err := newCycle().Run(context.Background(), []string{"AAA", "BAD"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Symbols)
	assert.Contains(t, rep.Failures, "BAD")
	require.Len(t, rep.Executions, 1)
	assert.Equal(t, model.ActionBuy, rep.Executions[0].Action)
	assert.Equal(t, 1, rep.Open)
	require.Len(t, store.seq, 1)
	first := store.orders[store.seq[0]]
	assert.Equal(t, model.OrderOpen, first.Status)
	assert.Equal(t, "churn", first.Strategy)

	// same data again: the cap blocks a second entry and the order is too young to close
	rep, err = newCycle().Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Empty(t, rep.Executions)
	assert.Equal(t, 1, rep.Open)

	// five days later the restored order is closed, never force-liquidated
	md.days = 15
	rep, err = newCycle().Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	require.Len(t, rep.Executions, 1)
	assert.Equal(t, model.ActionSell, rep.Executions[0].Action)
	assert.Equal(t, 0, rep.Open)

	closed := store.orders[first.ID]
	assert.Equal(t, model.OrderClosed, closed.Status)
	assert.Equal(t, "held", closed.CloseReason)
	assert.Len(t, store.execs, 2)
}

func TestCycle_ShortWindow(t *testing.T) {
	md := &daysMarket{days: 1}
	store := newMemLedger()
	c := NewCycle(DefaultConfig(), ledger.DefaultLimits(), &churn{holdBars: 3},
		Intervals{Trade: model.Interval1d, Indicator: model.Interval1d}, md, execution.NewPaper(0, nil), store, nil)

	rep, err := c.Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Symbols)
	assert.Contains(t, rep.Failures["AAA"], "validation")
}
