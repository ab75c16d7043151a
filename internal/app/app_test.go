package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/config"
	"trading-replay/internal/marketdata"
	"trading-replay/internal/model"
)

func openTest(t *testing.T) *Runtime {
	t.Helper()
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")

	rt, err := Open(context.Background(), "test")
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func TestOpen_LocalOnly(t *testing.T) {
	rt := openTest(t)
	assert.NotNil(t, rt.SQLite)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.Postgres)
	assert.Nil(t, rt.Broker)
	assert.Same(t, rt.SQLite, rt.LedgerStore())
}

func TestOpen_BadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	_, err := Open(context.Background(), "test")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestCandleReader(t *testing.T) {
	rt := openTest(t)

	r, err := rt.CandleReader("")
	require.NoError(t, err)
	assert.Same(t, rt.SQLite, r)

	_, err = rt.CandleReader(SourcePostgres)
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = rt.CandleReader("parquet")
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestExecutor_PaperJournalsFills(t *testing.T) {
	rt := openTest(t)
	f := config.DefaultFile()
	ctx := context.Background()

	exec, err := rt.Executor(&f, false)
	require.NoError(t, err)
	fill, err := exec.Execute(ctx, model.OrderRequest{
		Symbol: "AAA", Action: model.ActionBuy, Quantity: 2, RefPrice: 50,
		Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	fills, err := rt.SQLite.Fills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, fill.OrderID, fills[0].OrderID)
	assert.Contains(t, rt.Hub.Latest(), "fill:AAA")

	_, err = rt.Executor(&f, true)
	assert.Error(t, err)
}

func TestLogin_NeedsCredentials(t *testing.T) {
	rt := openTest(t)
	rt.Env.BrokerAPIKey = ""
	err := rt.Login(context.Background())
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Nil(t, rt.Broker)
}

func TestMarketData_StoredWithoutBroker(t *testing.T) {
	rt := openTest(t)
	f := config.DefaultFile()
	_, ok := rt.MarketData(&f, 10).(*marketdata.Stored)
	assert.True(t, ok)
}
