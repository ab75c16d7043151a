// Package brokerapi is a REST client for the Angel One SmartAPI broker.
// It covers the calls the trading cycles need: TOTP login, market order
// placement, order status and historical candles.
//
// Usage example:
//
//	c := brokerapi.New(brokerapi.Config{APIKey: "your_api_key"})
//	if err := c.Login(ctx, "CLIENTID", "PASSWORD", "TOTPSECRET"); err != nil { ... }
//	id, err := c.PlaceOrder(ctx, brokerapi.MarketOrder(inst, "BUY", 1))
package brokerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// ErrAPI marks a response the broker flagged as failed.
var ErrAPI = errors.New("broker api error")

// ---- Config & client ----

type Config struct {
	APIKey         string
	RootURL        string        // default: https://apiconnect.angelone.in
	Timeout        time.Duration // default: 7s
	ClientLocalIP  string        // default: 127.0.0.1
	ClientPublicIP string        // default: 127.0.0.1
	ClientMAC      string        // default: 00:11:22:33:44:55
	HTTPClient     *http.Client  // optional, overrides Timeout
	Logger         *slog.Logger
}

type Client struct {
	apiKey       string
	accessToken  string
	refreshToken string

	rootURL    string
	httpClient *http.Client
	log        *slog.Logger

	clientLocalIP  string
	clientPublicIP string
	clientMAC      string
}

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":                    "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.order.place":              "/rest/secure/angelbroking/order/v1/placeOrder",
	"api.individual.order.details": "/rest/secure/angelbroking/order/v1/details/",
	"api.ltp.data":                 "/rest/secure/angelbroking/order/v1/getLtpData",
	"api.candle.data":              "/rest/secure/angelbroking/historical/v1/getCandleData",
}

// New creates a client. No network calls are made until Login.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		apiKey:         cfg.APIKey,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		httpClient:     hc,
		log:            lg.With(slog.String("component", "brokerapi")),
		clientLocalIP:  firstNonEmpty(cfg.ClientLocalIP, "127.0.0.1"),
		clientPublicIP: firstNonEmpty(cfg.ClientPublicIP, "127.0.0.1"),
		clientMAC:      firstNonEmpty(cfg.ClientMAC, "00:11:22:33:44:55"),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ---- Helpers ----

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", c.clientLocalIP)
	h.Set("X-ClientPublicIP", c.clientPublicIP)
	h.Set("X-MACAddress", c.clientMAC)
	h.Set("X-PrivateKey", c.apiKey)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
	if c.accessToken != "" {
		h.Set("Authorization", "Bearer "+c.accessToken)
	}
	return h
}

// envelope is the common SmartAPI response shape.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, route, suffix string, params any, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route: %s", route)
	}
	reqURL := c.rootURL + uri + url.PathEscape(suffix)

	var body io.Reader
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s: %w", route, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.Header = c.requestHeaders()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", route, err)
	}
	c.log.Debug("broker response", slog.String("route", route), slog.Int("code", resp.StatusCode))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("couldn't parse JSON response (%d): %w", resp.StatusCode, err)
	}
	if env.ErrorType != "" {
		return fmt.Errorf("%w: %s: %s", ErrAPI, env.ErrorType, env.Message)
	}
	if !env.Status {
		return fmt.Errorf("%w: %s %s: %s", ErrAPI, route, env.ErrorCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", route, err)
		}
	}
	return nil
}

// ---- API Methods ----

// Login generates a TOTP from secret and opens a session.
func (c *Client) Login(ctx context.Context, clientCode, password, totpSecret string) error {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generate totp: %w", err)
	}
	var data struct {
		JWTToken     string `json:"jwtToken"`
		RefreshToken string `json:"refreshToken"`
	}
	params := map[string]string{"clientcode": clientCode, "password": password, "totp": code}
	if err := c.do(ctx, http.MethodPost, "api.login", "", params, &data); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if data.JWTToken == "" {
		return errors.New("login: response has no jwt token")
	}
	c.accessToken = data.JWTToken
	c.refreshToken = data.RefreshToken
	c.log.Info("broker session opened", slog.String("client", clientCode))
	return nil
}

// Instrument identifies a tradable symbol at the broker.
type Instrument struct {
	Exchange      string `yaml:"exchange" json:"exchange"`
	TradingSymbol string `yaml:"trading_symbol" json:"tradingsymbol"`
	Token         string `yaml:"token" json:"symboltoken"`
	LotSize       int    `yaml:"lot_size" json:"-"` // <= 0 means 1
}

// Units floors qty to a whole number of lots and returns the share count.
func (i Instrument) Units(qty float64) int64 {
	if math.IsNaN(qty) || qty <= 0 {
		return 0
	}
	lot := int64(i.LotSize)
	if lot < 1 {
		lot = 1
	}
	return int64(math.Floor(qty/float64(lot)+1e-9)) * lot
}

// OrderParams is the placeOrder payload.
type OrderParams struct {
	Variety         string `json:"variety"`
	TradingSymbol   string `json:"tradingsymbol"`
	SymbolToken     string `json:"symboltoken"`
	TransactionType string `json:"transactiontype"` // BUY, SELL
	Exchange        string `json:"exchange"`
	OrderType       string `json:"ordertype"`
	ProductType     string `json:"producttype"`
	Duration        string `json:"duration"`
	Quantity        string `json:"quantity"`
}

// MarketOrder builds a NORMAL delivery market order.
func MarketOrder(inst Instrument, side string, qty int64) OrderParams {
	return OrderParams{
		Variety:         "NORMAL",
		TradingSymbol:   inst.TradingSymbol,
		SymbolToken:     inst.Token,
		TransactionType: side,
		Exchange:        inst.Exchange,
		OrderType:       "MARKET",
		ProductType:     "DELIVERY",
		Duration:        "DAY",
		Quantity:        strconv.FormatInt(qty, 10),
	}
}

// PlaceOrder submits an order and returns its unique order id.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (string, error) {
	var data struct {
		OrderID       string `json:"orderid"`
		UniqueOrderID string `json:"uniqueorderid"`
	}
	if err := c.do(ctx, http.MethodPost, "api.order.place", "", p, &data); err != nil {
		return "", fmt.Errorf("place order %s %s: %w", p.TransactionType, p.TradingSymbol, err)
	}
	if data.UniqueOrderID != "" {
		return data.UniqueOrderID, nil
	}
	if data.OrderID == "" {
		return "", errors.New("place order: response has no order id")
	}
	return data.OrderID, nil
}

// OrderDetails is the status of one order.
type OrderDetails struct {
	OrderID       string  `json:"orderid"`
	UniqueOrderID string  `json:"uniqueorderid"`
	Status        string  `json:"status"` // complete, rejected, open, ...
	AveragePrice  float64 `json:"averageprice"`
	FilledShares  string  `json:"filledshares"`
	Text          string  `json:"text"`
	UpdateTime    string  `json:"updatetime"`
}

// Complete reports whether the order is fully executed.
func (d OrderDetails) Complete() bool {
	return strings.EqualFold(d.Status, "complete")
}

// OrderDetails fetches one order by unique order id.
func (c *Client) OrderDetails(ctx context.Context, uniqueOrderID string) (OrderDetails, error) {
	var d OrderDetails
	if err := c.do(ctx, http.MethodGet, "api.individual.order.details", uniqueOrderID, nil, &d); err != nil {
		return OrderDetails{}, fmt.Errorf("order details %s: %w", uniqueOrderID, err)
	}
	return d, nil
}

// LTP returns the last traded price of an instrument.
func (c *Client) LTP(ctx context.Context, inst Instrument) (float64, error) {
	var data struct {
		LTP float64 `json:"ltp"`
	}
	if err := c.do(ctx, http.MethodPost, "api.ltp.data", "", inst, &data); err != nil {
		return 0, fmt.Errorf("ltp %s: %w", inst.TradingSymbol, err)
	}
	return data.LTP, nil
}

// Candle is one historical bar.
type Candle struct {
	TS                     time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

// CandleParams is the getCandleData payload. Interval uses broker names
// (ONE_MINUTE, FIVE_MINUTE, ONE_HOUR, ONE_DAY, ...).
type CandleParams struct {
	Exchange    string `json:"exchange"`
	SymbolToken string `json:"symboltoken"`
	Interval    string `json:"interval"`
	FromDate    string `json:"fromdate"` // "2006-01-02 15:04"
	ToDate      string `json:"todate"`
}

// CandleData fetches historical candles, oldest first.
func (c *Client) CandleData(ctx context.Context, p CandleParams) ([]Candle, error) {
	var rows [][]any
	if err := c.do(ctx, http.MethodPost, "api.candle.data", "", p, &rows); err != nil {
		return nil, fmt.Errorf("candle data %s: %w", p.SymbolToken, err)
	}
	out := make([]Candle, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("candle row %d: expected 6 fields, got %d", i, len(r))
		}
		ts, ok := r[0].(string)
		if !ok {
			return nil, fmt.Errorf("candle row %d: timestamp is %T", i, r[0])
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05-0700", ts)
			if err != nil {
				return nil, fmt.Errorf("candle row %d: %w", i, err)
			}
		}
		vals := make([]float64, 5)
		for j := range vals {
			f, ok := r[j+1].(float64)
			if !ok {
				return nil, fmt.Errorf("candle row %d field %d: %T", i, j+1, r[j+1])
			}
			vals[j] = f
		}
		out = append(out, Candle{TS: t.UTC(), Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})
	}
	return out, nil
}
