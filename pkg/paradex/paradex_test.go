package paradex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/pkg/apperr"
)

type fakeSigner struct {
	err    error
	auth   []AuthMessage
	orders []OrderMessage
}

func (f *fakeSigner) SignAuth(_ context.Context, m AuthMessage) (string, error) {
	f.auth = append(f.auth, m)
	return "0xauthsig", f.err
}

func (f *fakeSigner) SignOnboarding(context.Context, OnboardingMessage) (string, error) {
	return "0xonboardsig", f.err
}

func (f *fakeSigner) SignOrder(_ context.Context, m OrderMessage) (string, error) {
	f.orders = append(f.orders, m)
	return "0xordersig", f.err
}

// fakeExchange records requests and replies from a per-path table
type fakeExchange struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	replies  map[string]reply
}

type reply struct {
	status int
	body   string
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)

	rep, ok := f.replies[r.Method+" "+r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rep.status != 0 {
		w.WriteHeader(rep.status)
	}
	fmt.Fprint(w, rep.body)
}

func newTestClient(t *testing.T, replies map[string]reply) (*Client, *fakeExchange, *fakeSigner) {
	t.Helper()
	ex := &fakeExchange{replies: replies}
	srv := httptest.NewServer(ex)
	t.Cleanup(srv.Close)

	signer := &fakeSigner{}
	c, err := NewClient(Config{
		Network:         "testnet",
		BaseURL:         srv.URL,
		AccountAddress:  "0xaccount",
		PublicKey:       "0xpub",
		EthereumAccount: "0xeth",
	}, signer)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c, ex, signer
}

func session() *Session {
	return &Session{Account: "0xaccount", JWT: "jwt-token"}
}

func TestEnvironmentFor(t *testing.T) {
	prod, err := EnvironmentFor("mainnet")
	require.NoError(t, err)
	assert.Equal(t, ProdBaseURL, prod.BaseURL)
	assert.Equal(t, ShortString("PRIVATE_SN_PARACLEAR_MAINNET"), prod.ChainID)

	test, err := EnvironmentFor("")
	require.NoError(t, err)
	assert.Equal(t, TestnetBaseURL, test.BaseURL)

	_, err = EnvironmentFor("devnet")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestShortString(t *testing.T) {
	assert.Equal(t, "0x414243", ShortString("ABC"))
}

func TestFormatSize(t *testing.T) {
	for in, want := range map[string]string{
		"1":           "1.00000000",
		"0.123456789": "0.12345679",
		"2.5":         "2.50000000",
	} {
		got := FormatSize(decimal.RequireFromString(in))
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, FormatSize(decimal.RequireFromString(got)), "idempotent for %s", in)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		price, tick, want string
	}{
		{"65000.04", "0.1", "65000.0"},
		{"65000.05", "0.1", "65000.1"},
		{"1.2345", "0.01", "1.23"},
		{"103", "5", "105"},
		{"0.5", "0", "0.5"},
	}
	for _, tc := range cases {
		tick := decimal.RequireFromString(tc.tick)
		got := FormatPrice(decimal.RequireFromString(tc.price), tick)
		assert.Equal(t, tc.want, got, tc.price)
		assert.Equal(t, got, FormatPrice(decimal.RequireFromString(got), tick), "idempotent for %s", tc.price)
	}
}

func TestAuthenticate(t *testing.T) {
	c, ex, signer := newTestClient(t, map[string]reply{
		"POST /auth": {body: `{"jwt_token":"jwt-123"}`},
	})

	s, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jwt-123", s.JWT)
	assert.Equal(t, "0xaccount", s.Account)
	assert.True(t, s.Valid(time.Unix(1700000001, 0)))

	require.Len(t, ex.requests, 1)
	h := ex.requests[0].Header
	assert.Equal(t, "0xaccount", h.Get(headerAccount))
	assert.Equal(t, "0xauthsig", h.Get(headerSignature))
	assert.Equal(t, "1700000000", h.Get(headerTimestamp))
	assert.Equal(t, "1700086400", h.Get(headerExpiration))

	require.Len(t, signer.auth, 1)
	assert.Equal(t, ShortString("PRIVATE_SN_POTC_SEPOLIA"), signer.auth[0].ChainID)
}

func TestAuthenticateFailures(t *testing.T) {
	c, _, signer := newTestClient(t, map[string]reply{
		"POST /auth": {status: http.StatusUnauthorized, body: `{"error":"INVALID_SIGNATURE"}`},
	})

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	e, _ := apperr.As(err)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Contains(t, e.Body, "INVALID_SIGNATURE")

	signer.err = errors.New("sidecar down")
	_, err = c.Authenticate(context.Background())
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestOnboard(t *testing.T) {
	c, ex, _ := newTestClient(t, map[string]reply{
		"POST /onboarding": {body: `{}`},
	})
	require.NoError(t, c.Onboard(context.Background()))
	require.Len(t, ex.requests, 1)
	assert.Equal(t, "0xeth", ex.requests[0].Header.Get(headerEthAccount))
	assert.Equal(t, "0xpub", ex.bodies[0]["public_key"])
}

func TestPlaceOrderRequiresSession(t *testing.T) {
	c, ex, _ := newTestClient(t, nil)
	_, err := c.PlaceOrder(context.Background(), nil, OrderRequest{
		Market: "BTC-USD-PERP", Side: SideBuy, Type: OrderMarket, Size: decimal.NewFromInt(1),
	})
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	assert.Empty(t, ex.requests)
}

func TestPlaceOrderValidation(t *testing.T) {
	c, ex, _ := newTestClient(t, nil)
	one := decimal.NewFromInt(1)
	cases := map[string]OrderRequest{
		"limit without price": {Market: "ETH-USD-PERP", Side: SideBuy, Type: OrderLimit, Size: one},
		"zero size":           {Market: "ETH-USD-PERP", Side: SideBuy, Type: OrderMarket},
		"bad side":            {Market: "ETH-USD-PERP", Side: "HOLD", Type: OrderMarket, Size: one},
		"bad type":            {Market: "ETH-USD-PERP", Side: SideBuy, Type: "STOP", Size: one},
		"no market":           {Side: SideBuy, Type: OrderMarket, Size: one},
	}
	for name, req := range cases {
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(c.ValidateOrder(req)), name)
		_, err := c.PlaceOrder(context.Background(), session(), req)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
	}
	assert.Empty(t, ex.requests)

	assert.NoError(t, c.ValidateOrder(OrderRequest{Market: "ETH-USD-PERP", Side: SideSell, Type: OrderMarket, Size: one, Price: one}))
}

func TestPlaceLimitOrder(t *testing.T) {
	c, ex, signer := newTestClient(t, map[string]reply{
		"POST /orders": {body: `{"id":"order-1","market":"ETH-USD-PERP","side":"BUY","type":"LIMIT","size":"0.5","price":"3000.1","status":"NEW"}`},
	})

	order, err := c.PlaceOrder(context.Background(), session(), OrderRequest{
		Market: "ETH-USD-PERP",
		Side:   "long",
		Type:   "limit",
		Size:   decimal.RequireFromString("0.5"),
		Price:  decimal.RequireFromString("3000.12"),
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)

	require.Len(t, ex.bodies, 1)
	body := ex.bodies[0]
	assert.Equal(t, "BUY", body["side"])
	assert.Equal(t, "LIMIT", body["type"])
	assert.Equal(t, "0.50000000", body["size"])
	assert.Equal(t, "3000.1", body["price"])
	assert.Equal(t, "GTC", body["instruction"])
	assert.Equal(t, "0xordersig", body["signature"])
	assert.EqualValues(t, 1700000000000, body["signature_timestamp"])
	assert.Equal(t, "Bearer jwt-token", ex.requests[0].Header.Get("Authorization"))

	require.Len(t, signer.orders, 1)
	assert.Equal(t, "3000.1", signer.orders[0].Price)
}

func TestPlaceMarketOrderDropsPrice(t *testing.T) {
	c, ex, signer := newTestClient(t, map[string]reply{
		"POST /orders": {body: `{"id":"order-2","status":"NEW"}`},
	})

	_, err := c.PlaceOrder(context.Background(), session(), OrderRequest{
		Market: "BTC-USD-PERP",
		Side:   SideSell,
		Type:   OrderMarket,
		Size:   decimal.RequireFromString("0.01"),
		Price:  decimal.RequireFromString("65000"),
	})
	require.NoError(t, err)
	_, hasPrice := ex.bodies[0]["price"]
	assert.False(t, hasPrice)
	assert.Equal(t, "0", signer.orders[0].Price)
}

func TestPlaceOrderRejected(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]reply{
		"POST /orders": {status: http.StatusBadRequest, body: `{"error":"ORDER_SIZE_BELOW_MIN"}`},
	})

	_, err := c.PlaceOrder(context.Background(), session(), OrderRequest{
		Market: "BTC-USD-PERP", Side: SideBuy, Type: OrderMarket, Size: decimal.RequireFromString("0.00001"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindOrder, apperr.KindOf(err))
	e, _ := apperr.As(err)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Contains(t, e.Body, "ORDER_SIZE_BELOW_MIN")
}

func TestCancelOrders(t *testing.T) {
	c, ex, _ := newTestClient(t, map[string]reply{
		"DELETE /orders/order-1": {status: http.StatusNoContent},
		"DELETE /orders":         {status: http.StatusNoContent},
	})
	require.NoError(t, c.CancelOrder(context.Background(), session(), "order-1"))
	require.NoError(t, c.CancelAllOrders(context.Background(), session(), "ETH-USD-PERP"))
	require.Len(t, ex.requests, 2)
	assert.Equal(t, "ETH-USD-PERP", ex.requests[1].URL.Query().Get("market"))

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(c.CancelOrder(context.Background(), session(), "")))
}

func TestPositionsFiltersClosed(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]reply{
		"GET /positions": {body: `{"results":[
			{"market":"ETH-USD-PERP","side":"LONG","size":"1.5","status":"OPEN"},
			{"market":"BTC-USD-PERP","side":"SHORT","size":"0","status":"OPEN"},
			{"market":"SOL-USD-PERP","side":"LONG","size":"3","status":"CLOSED"}]}`},
	})
	positions, err := c.Positions(context.Background(), session(), "")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "ETH-USD-PERP", positions[0].Market)
}

func TestBalancesAndOpenOrders(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]reply{
		"GET /balance": {body: `{"results":[{"token":"USDC","size":"1250.5","last_updated_at":1700000000}]}`},
		"GET /orders":  {body: `{"results":[{"id":"o1","market":"ETH-USD-PERP","status":"OPEN","remaining_size":"0.2"}]}`},
	})
	balances, err := c.Balances(context.Background(), session())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "1250.5", balances[0].Size.String())

	orders, err := c.OpenOrders(context.Background(), session(), "ETH-USD-PERP")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "0.2", orders[0].RemainingSize.String())
}

func TestMarketsSortedAndTickSize(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]reply{
		"GET /markets": {body: `{"results":[
			{"symbol":"SOL-USD-PERP","price_tick_size":"0.001"},
			{"symbol":"BTC-USD-PERP","price_tick_size":"1"}]}`},
	})
	markets, err := c.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "BTC-USD-PERP", markets[0].Symbol)

	assert.Equal(t, "0.001", c.TickSize(context.Background(), "SOL-USD-PERP").String())
	assert.Equal(t, "0.1", c.TickSize(context.Background(), "DOGE-USD-PERP").String())
}

func TestBBOSpread(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]reply{
		"GET /bbo/ETH-USD-PERP": {body: `{"market":"ETH-USD-PERP","bid":"2000","ask":"2002","bid_size":"3","ask_size":"4"}`},
	})
	bbo, err := c.BBO(context.Background(), session(), "ETH-USD-PERP")
	require.NoError(t, err)

	spread, pct := bbo.Spread()
	assert.Equal(t, "2", spread.String())
	assert.Equal(t, "0.1", pct.String())
}

func TestRemoteSigner(t *testing.T) {
	var got AuthMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sign/auth", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"signature":"0xsig"}`)
	}))
	defer srv.Close()

	s, err := NewRemoteSigner(srv.URL, time.Second)
	require.NoError(t, err)
	sig, err := s.SignAuth(context.Background(), AuthMessage{Account: "0xabc", Timestamp: 1})
	require.NoError(t, err)
	assert.Equal(t, "0xsig", sig)
	assert.Equal(t, "0xabc", got.Account)

	_, err = NewRemoteSigner("", time.Second)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}
