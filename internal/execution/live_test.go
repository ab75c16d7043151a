package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
	"trading-replay/pkg/brokerapi"
)

// smartAPI serves placeOrder and order details, recording every order body.
func smartAPI(t *testing.T) (*brokerapi.Client, *[]brokerapi.OrderParams) {
	t.Helper()
	var orders []brokerapi.OrderParams
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/secure/angelbroking/order/v1/placeOrder", func(w http.ResponseWriter, r *http.Request) {
		var p brokerapi.OrderParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		orders = append(orders, p)
		w.Write([]byte(`{"status":true,"data":{"orderid":"1","uniqueorderid":"u-1"}}`))
	})
	mux.HandleFunc("/rest/secure/angelbroking/order/v1/details/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"uniqueorderid":"u-1","status":"complete","averageprice":26}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return brokerapi.New(brokerapi.Config{RootURL: srv.URL}), &orders
}

func TestLive_QuantityFlooredToLots(t *testing.T) {
	tests := []struct {
		name    string
		lotSize int
		qty     float64
		want    string
	}{
		{"equity fraction", 0, 3.84615, "3"},
		{"whole shares", 1, 7, "7"},
		{"lot multiple", 50, 130, "100"},
		{"float noise", 25, 74.99999999999, "75"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, orders := smartAPI(t)
			inst := map[string]brokerapi.Instrument{"SBIN": {Exchange: "NSE", TradingSymbol: "SBIN-EQ", Token: "3045", LotSize: tt.lotSize}}
			l := NewLive(c, inst, 0, nil)

			f, err := l.Execute(context.Background(), model.OrderRequest{Symbol: "SBIN", Action: model.ActionBuy, Quantity: tt.qty, RefPrice: 26})
			require.NoError(t, err)
			require.Len(t, *orders, 1)
			assert.Equal(t, tt.want, (*orders)[0].Quantity)
			assert.Equal(t, "BUY", (*orders)[0].TransactionType)
			assert.Equal(t, (*orders)[0].Quantity, formatQty(f.ExecutedQuantity))
		})
	}
}

func TestLive_BelowOneLot(t *testing.T) {
	c, orders := smartAPI(t)
	inst := map[string]brokerapi.Instrument{
		"SBIN":  {TradingSymbol: "SBIN-EQ"},
		"NIFTY": {TradingSymbol: "NIFTY-FUT", LotSize: 75},
	}
	l := NewLive(c, inst, 0, nil)
	ctx := context.Background()

	_, err := l.Execute(ctx, model.OrderRequest{Symbol: "SBIN", Action: model.ActionBuy, Quantity: 0.6, RefPrice: 1500})
	assert.ErrorIs(t, err, model.ErrExecution)

	_, err = l.Execute(ctx, model.OrderRequest{Symbol: "NIFTY", Action: model.ActionSell, Quantity: 74, RefPrice: 100})
	assert.ErrorIs(t, err, model.ErrExecution)
	assert.Contains(t, err.Error(), "below one lot of 75")

	assert.Empty(t, *orders, "nothing reaches the broker")
}

func formatQty(q float64) string {
	b, _ := json.Marshal(q)
	return string(b)
}
