package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
)

var t0 = time.Date(2024, 2, 1, 9, 15, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	s := NewWithClient(db, Config{StreamMaxLen: 1000}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return s, mock
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func order(id, symbol string, opened time.Time) model.OpenOrder {
	return model.OpenOrder{
		ID: id, Strategy: "simple_sma", Symbol: symbol, Side: model.Long, Status: model.OrderOpen,
		EntryPrice: 100, Quantity: 10, Notional: 1000, HighSinceOpen: 100, OpenedAt: opened,
	}
}

func TestStore_SaveOrders(t *testing.T) {
	s, mock := newTestStore(t)
	o := order("o1", "AAA", t0)

	mock.ExpectHSet("orders:simple_sma:AAA", "o1", mustJSON(t, o)).SetVal(1)
	mock.ExpectSAdd("orders:simple_sma:symbols", "AAA").SetVal(1)

	require.NoError(t, s.SaveOrders(context.Background(), []model.OpenOrder{o}))
}

func TestStore_LoadOrders(t *testing.T) {
	s, mock := newTestStore(t)
	first := order("o1", "AAA", t0)
	second := order("o2", "AAA", t0.Add(time.Hour))
	other := order("o3", "BBB", t0.Add(30*time.Minute))

	mock.ExpectHGetAll("orders:simple_sma:AAA").SetVal(map[string]string{
		"o2": mustJSON(t, second),
		"o1": mustJSON(t, first),
	})
	got, err := s.LoadOrders(context.Background(), "simple_sma", "AAA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].ID)
	assert.True(t, got[1].OpenedAt.Equal(second.OpenedAt))

	mock.ExpectSMembers("orders:simple_sma:symbols").SetVal([]string{"BBB", "AAA"})
	mock.ExpectHGetAll("orders:simple_sma:AAA").SetVal(map[string]string{"o1": mustJSON(t, first)})
	mock.ExpectHGetAll("orders:simple_sma:BBB").SetVal(map[string]string{"o3": mustJSON(t, other)})
	got, err = s.LoadOrders(context.Background(), "simple_sma", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"o1", "o3"}, []string{got[0].ID, got[1].ID})
}

func TestStore_LoadOrders_BadPayload(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectHGetAll("orders:simple_sma:AAA").SetVal(map[string]string{"o1": "{not json"})
	_, err := s.LoadOrders(context.Background(), "simple_sma", "AAA")
	require.Error(t, err)
}

func TestStore_Executions(t *testing.T) {
	s, mock := newTestStore(t)
	buy := model.Execution{Time: t0, Action: model.ActionBuy, Symbol: "AAA", Price: 100, Quantity: 1, Notional: 100, OrderID: "o1"}
	sell := model.Execution{Time: t0.Add(time.Hour), Action: model.ActionSell, Symbol: "AAA", Price: 110, Quantity: 1, Notional: 110, OrderID: "o1"}

	for _, e := range []model.Execution{buy, sell} {
		mock.ExpectXAdd(&goredis.XAddArgs{
			Stream: "execs:AAA",
			MaxLen: 1000,
			Approx: true,
			Values: map[string]interface{}{"data": mustJSON(t, e)},
		}).SetVal("1-0")
		mock.ExpectSAdd("execs:symbols", "AAA").SetVal(1)
	}
	require.NoError(t, s.AppendExecutions(context.Background(), []model.Execution{buy, sell}))

	mock.ExpectXRange("execs:AAA", "-", "+").SetVal([]goredis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"data": mustJSON(t, buy)}},
		{ID: "2-0", Values: map[string]interface{}{"data": mustJSON(t, sell)}},
	})
	got, err := s.LoadExecutions(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ActionBuy, got[0].Action)
	assert.Equal(t, 110.0, got[1].Notional)
	assert.True(t, got[1].Time.Equal(sell.Time))
}

func TestStore_RecordFill(t *testing.T) {
	s, mock := newTestStore(t)
	f := model.Fill{OrderID: "PAPER-1", Symbol: "AAA", Action: model.ActionBuy, Time: t0, Price: 100, ExecutedQuantity: 1, ExecutedNotional: 100, Status: "FILLED"}
	payload := mustJSON(t, f)

	mock.ExpectXAdd(&goredis.XAddArgs{
		Stream: "fills",
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{"data": payload},
	}).SetVal("1-0")
	mock.ExpectPublish("pub:fill:AAA", payload).SetVal(0)

	require.NoError(t, s.RecordFill(context.Background(), f))
}

func TestStore_BreakerTripsOnFailures(t *testing.T) {
	s, mock := newTestStore(t)
	boom := errors.New("connection refused")

	// a miss is not a failure
	mock.ExpectSMembers("orders:simple_sma:symbols").RedisNil()
	_, err := s.LoadOrders(context.Background(), "simple_sma", "")
	assert.ErrorIs(t, err, goredis.Nil)

	for i := 0; i < defaultMaxFailures; i++ {
		mock.ExpectHGetAll("orders:simple_sma:AAA").SetErr(boom)
		_, err := s.LoadOrders(context.Background(), "simple_sma", "AAA")
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, s.Breaker().CurrentState())

	_, err = s.LoadOrders(context.Background(), "simple_sma", "AAA")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
