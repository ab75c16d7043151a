package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
	"trading-replay/pkg/brokerapi"
)

var t0 = time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

func TestPaper_FillsAtReference(t *testing.T) {
	p := NewPaper(0, nil)
	f, err := p.Execute(context.Background(), model.OrderRequest{
		Symbol: "A", Action: model.ActionBuy, Quantity: 10, RefPrice: 100, Time: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAPER-1", f.OrderID)
	assert.Equal(t, 100.0, f.Price)
	assert.Equal(t, 1000.0, f.ExecutedNotional)
	assert.Equal(t, t0, f.Time)
	assert.Len(t, p.Fills(), 1)
}

func TestPaper_Slippage(t *testing.T) {
	p := NewPaper(50, nil) // 0.5%
	ctx := context.Background()

	buy, err := p.Execute(ctx, model.OrderRequest{Symbol: "A", Action: model.ActionBuy, Quantity: 1, RefPrice: 100})
	require.NoError(t, err)
	assert.InDelta(t, 100.5, buy.Price, 1e-9)

	sell, err := p.Execute(ctx, model.OrderRequest{Symbol: "A", Action: model.ActionSell, Quantity: 1, RefPrice: 100})
	require.NoError(t, err)
	assert.InDelta(t, 99.5, sell.Price, 1e-9)

	cover, err := p.Execute(ctx, model.OrderRequest{Symbol: "A", Action: model.ActionShortClose, Quantity: 1, RefPrice: 100})
	require.NoError(t, err)
	assert.InDelta(t, 100.5, cover.Price, 1e-9)
}

func TestPaper_RejectsBadRequest(t *testing.T) {
	_, err := NewPaper(0, nil).Execute(context.Background(), model.OrderRequest{Symbol: "A", Quantity: 0, RefPrice: 10})
	assert.ErrorIs(t, err, model.ErrExecution)
}

type fakeBroker struct {
	placed   []brokerapi.OrderParams
	status   string
	placeErr error
}

func (f *fakeBroker) PlaceOrder(_ context.Context, p brokerapi.OrderParams) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, p)
	return "u-1", nil
}

func (f *fakeBroker) OrderDetails(_ context.Context, id string) (brokerapi.OrderDetails, error) {
	return brokerapi.OrderDetails{UniqueOrderID: id, Status: f.status, AveragePrice: 101, FilledShares: "2", Text: "rms reject"}, nil
}

func TestLive_Execute(t *testing.T) {
	b := &fakeBroker{status: "complete"}
	inst := map[string]brokerapi.Instrument{"SBIN": {Exchange: "NSE", TradingSymbol: "SBIN-EQ", Token: "3045"}}
	l := NewLive(b, inst, 0, nil)
	l.now = func() time.Time { return t0 }

	f, err := l.Execute(context.Background(), model.OrderRequest{Symbol: "SBIN", Action: model.ActionSell, Quantity: 2, RefPrice: 100})
	require.NoError(t, err)
	assert.Equal(t, "u-1", f.OrderID)
	assert.Equal(t, 202.0, f.ExecutedNotional)
	assert.Equal(t, t0, f.Time)
	require.Len(t, b.placed, 1)
	assert.Equal(t, "SELL", b.placed[0].TransactionType)
	assert.Equal(t, "SBIN-EQ", b.placed[0].TradingSymbol)
}

func TestLive_Failures(t *testing.T) {
	inst := map[string]brokerapi.Instrument{"SBIN": {TradingSymbol: "SBIN-EQ"}}
	ctx := context.Background()
	req := model.OrderRequest{Symbol: "SBIN", Action: model.ActionBuy, Quantity: 1, RefPrice: 100}

	_, err := NewLive(&fakeBroker{status: "complete"}, inst, 0, nil).Execute(ctx, model.OrderRequest{Symbol: "UNKNOWN"})
	assert.ErrorIs(t, err, model.ErrExecution)

	_, err = NewLive(&fakeBroker{placeErr: errors.New("timeout")}, inst, 0, nil).Execute(ctx, req)
	assert.ErrorIs(t, err, model.ErrExecution)

	_, err = NewLive(&fakeBroker{status: "rejected"}, inst, 0, nil).Execute(ctx, req)
	assert.ErrorIs(t, err, model.ErrExecution)
	assert.Contains(t, err.Error(), "rms reject")
}

type recordingSink struct {
	fills []model.Fill
	err   error
}

func (r *recordingSink) RecordFill(_ context.Context, f model.Fill) error {
	r.fills = append(r.fills, f)
	return r.err
}

func TestJournaled_RecordsFills(t *testing.T) {
	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("db down")}
	j := NewJournaled(NewPaper(0, nil), nil, broken, ok)

	f, err := j.Execute(context.Background(), model.OrderRequest{Symbol: "A", Action: model.ActionBuy, Quantity: 1, RefPrice: 5})
	require.NoError(t, err, "sink failure does not fail the fill")
	assert.Equal(t, []model.Fill{f}, ok.fills)
	assert.Len(t, broken.fills, 1)

	failing := Func(func(context.Context, model.OrderRequest) (model.Fill, error) {
		return model.Fill{}, model.ErrExecution
	})
	_, err = NewJournaled(failing, nil, ok).Execute(context.Background(), model.OrderRequest{})
	assert.ErrorIs(t, err, model.ErrExecution)
	assert.Len(t, ok.fills, 1, "failed fills are not recorded")
}
