package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/layerswap"
	"agent-tools/pkg/paradex"
	"agent-tools/pkg/tools"
	"agent-tools/pkg/types"
)

type stubSigner struct{}

func (stubSigner) SignAuth(context.Context, paradex.AuthMessage) (string, error) { return "sig", nil }
func (stubSigner) SignOnboarding(context.Context, paradex.OnboardingMessage) (string, error) {
	return "sig", nil
}
func (stubSigner) SignOrder(context.Context, paradex.OrderMessage) (string, error) { return "sig", nil }

// exchange is a minimal Paradex API
type exchange struct {
	mu         sync.Mutex
	auths      int
	marketGets int
	orderBody  map[string]any
	orderPosts int
}

func (e *exchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch r.Method + " " + r.URL.Path {
	case "POST /auth":
		e.auths++
		fmt.Fprint(w, `{"jwt_token":"jwt"}`)
	case "GET /markets":
		e.marketGets++
		fmt.Fprint(w, `{"results":[{"symbol":"BTC-USD-PERP","price_tick_size":"1"},{"symbol":"ETH-USD-PERP","price_tick_size":"0.01"}]}`)
	case "POST /orders":
		e.orderPosts++
		_ = json.NewDecoder(r.Body).Decode(&e.orderBody)
		fmt.Fprint(w, `{"id":"o-1","status":"NEW","market":"BTC-USD-PERP"}`)
	case "GET /bbo/ETH-USD-PERP":
		fmt.Fprint(w, `{"market":"ETH-USD-PERP","bid":"2000","ask":"2001","bid_size":"1","ask_size":"2"}`)
	default:
		http.NotFound(w, r)
	}
}

func paradexRegistry(t *testing.T) (*tools.Registry, *exchange) {
	t.Helper()
	ex := &exchange{}
	srv := httptest.NewServer(ex)
	t.Cleanup(srv.Close)

	c, err := paradex.NewClient(paradex.Config{Network: "testnet", BaseURL: srv.URL, AccountAddress: "0xacc"}, stubSigner{})
	require.NoError(t, err)

	r := tools.NewRegistry()
	require.NoError(t, r.Register(ParadexTools(c)...))
	return r, ex
}

func TestPlaceLimitOrderUsesMarketTick(t *testing.T) {
	r, ex := paradexRegistry(t)

	res := r.Invoke(context.Background(), "place_order_limit",
		json.RawMessage(`{"market":"BTC-USD-PERP","side":"long","size":"0.01","price":"65000.6"}`))
	require.Equal(t, types.StatusSuccess, res.Status, "%+v", res.Error)
	assert.Equal(t, "o-1", res.Result.(*paradex.Order).ID)

	assert.Equal(t, 1, ex.auths)
	assert.Equal(t, "65001", ex.orderBody["price"])
	assert.Equal(t, "BUY", ex.orderBody["side"])
	assert.Equal(t, "0.01000000", ex.orderBody["size"])
}

func TestLimitOrderWithoutPriceNeverReachesExchange(t *testing.T) {
	r, ex := paradexRegistry(t)

	res := r.Invoke(context.Background(), "place_order_limit",
		json.RawMessage(`{"market":"BTC-USD-PERP","side":"buy","size":"1","price":"0"}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, apperr.KindValidation, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "price is required for limit orders")
	assert.Equal(t, 0, ex.orderPosts)
	assert.Equal(t, 0, ex.auths)
	assert.Equal(t, 0, ex.marketGets)
}

func TestMarketOrderIgnoresPrice(t *testing.T) {
	r, ex := paradexRegistry(t)

	res := r.Invoke(context.Background(), "place_order_market",
		json.RawMessage(`{"market":"BTC-USD-PERP","side":"short","size":"0.5","price":"65000"}`))
	require.Equal(t, types.StatusSuccess, res.Status, "%+v", res.Error)
	assert.Equal(t, 1, ex.orderPosts)
	assert.Equal(t, "MARKET", ex.orderBody["type"])
	assert.Equal(t, "SELL", ex.orderBody["side"])
	assert.NotContains(t, ex.orderBody, "price")
}

func TestMarketOrderWithoutSizeNeverAuthenticates(t *testing.T) {
	r, ex := paradexRegistry(t)

	res := r.Invoke(context.Background(), "place_order_market",
		json.RawMessage(`{"market":"BTC-USD-PERP","side":"long","size":"0"}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, apperr.KindValidation, res.Error.Kind)
	assert.Equal(t, 0, ex.auths)
}

func TestBBOTool(t *testing.T) {
	r, _ := paradexRegistry(t)

	res := r.Invoke(context.Background(), "get_bbo", json.RawMessage(`{"market":"ETH-USD-PERP"}`))
	require.Equal(t, types.StatusSuccess, res.Status, "%+v", res.Error)
	out := res.Result.(*BBOResult)
	assert.Equal(t, "1", out.Spread.String())
	assert.Equal(t, "0.0500%", out.SpreadPercent)
}

func TestListMarketsTool(t *testing.T) {
	r, _ := paradexRegistry(t)

	res := r.Invoke(context.Background(), "list_markets", nil)
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, []string{"BTC-USD-PERP", "ETH-USD-PERP"}, res.Result)
}

func TestNewWithoutBridgeKey(t *testing.T) {
	cfg := &config.Config{
		Paradex: config.ParadexConfig{Network: "testnet", DefaultTickSize: "0.5"},
		Journal: config.JournalConfig{Backend: "file", Path: filepath.Join(t.TempDir(), "journal.json")},
	}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Bridge)
	_, ok := a.Tools.Get("bridge")
	assert.False(t, ok)
	_, ok = a.Tools.Get("get_bbo")
	assert.True(t, ok)
	_, ok = a.Tools.Get("oneclick_quote")
	assert.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.5").Equal(a.Paradex.DefaultTickSize()))

	// authenticated tools need a signer
	res := a.Tools.Invoke(context.Background(), "get_balance", nil)
	require.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, apperr.KindConfig, res.Error.Kind)
}

func TestNewRestrictsTools(t *testing.T) {
	cfg := &config.Config{
		Layerswap: config.LayerswapConfig{APIKey: "key", BaseURL: "http://127.0.0.1:0"},
		Paradex:   config.ParadexConfig{Network: "testnet"},
		Journal:   config.JournalConfig{Backend: "file", Path: filepath.Join(t.TempDir(), "journal.json")},
		Tools:     []string{"layerswap", "get_bbo"},
	}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	names := make([]string, 0)
	for _, tool := range a.Tools.List() {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "bridge")
	assert.Contains(t, names, "get_bridge_history")
	assert.Contains(t, names, "get_bbo")
	assert.NotContains(t, names, "place_order_limit")
	assert.NotContains(t, names, "oneclick_quote")
}

// bridgeAPI serves the Layerswap endpoints behind the swap tools
type bridgeAPI struct {
	mu          sync.Mutex
	swapPayload map[string]any
	actionQuery string
}

func (b *bridgeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.Method + " " + r.URL.Path {
	case "POST /swaps":
		_ = json.NewDecoder(r.Body).Decode(&b.swapPayload)
		fmt.Fprint(w, `{"data":{"swap":{"id":"swap-9","status":"user_transfer_pending"}}}`)
	case "GET /swaps/swap-9/deposit_actions":
		b.actionQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"data":[
			{"type":"transfer","to_address":"0xlater","amount":0.1,"order":2},
			{"type":"transfer","to_address":"0xfirst","amount":0.1,"order":0}]}`)
	default:
		http.NotFound(w, r)
	}
}

func layerswapRegistry(t *testing.T) (*tools.Registry, *bridgeAPI) {
	t.Helper()
	api := &bridgeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := layerswap.NewClient(layerswap.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	r := tools.NewRegistry()
	require.NoError(t, r.Register(LayerswapTools(c, nil, nil)...))
	return r, api
}

func TestCreateBridgeSwapTool(t *testing.T) {
	r, api := layerswapRegistry(t)

	res := r.Invoke(context.Background(), "create_bridge_swap", json.RawMessage(`{
		"source_network":"ARBITRUM_MAINNET","source_token":"ETH",
		"destination_network":"PARADEX_MAINNET","destination_token":"ETH",
		"amount":"0.1","destination_address":"0xdest","reference_id":"ref-manual"}`))
	require.Equal(t, types.StatusSuccess, res.Status, "%+v", res.Error)
	assert.Equal(t, "swap-9", res.Result.(*types.Swap).ID)
	assert.Equal(t, "ref-manual", api.swapPayload["reference_id"])
	assert.Equal(t, "0xdest", api.swapPayload["destination_address"])

	res = r.Invoke(context.Background(), "create_bridge_swap", json.RawMessage(`{
		"source_network":"ARBITRUM_MAINNET","source_token":"ETH",
		"destination_network":"PARADEX_MAINNET","destination_token":"ETH","amount":"0.1"}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Contains(t, res.Error.Message, "destination_address is required")
}

func TestBridgeDepositActionsToolSortsByOrder(t *testing.T) {
	r, api := layerswapRegistry(t)

	res := r.Invoke(context.Background(), "get_bridge_deposit_actions",
		json.RawMessage(`{"swap_id":"swap-9","source_address":"0xsender"}`))
	require.Equal(t, types.StatusSuccess, res.Status, "%+v", res.Error)
	actions := res.Result.([]types.DepositAction)
	require.Len(t, actions, 2)
	assert.Equal(t, "0xfirst", actions[0].ToAddress)
	assert.Equal(t, "source_address=0xsender", api.actionQuery)
}

func TestBridgeToolPollBounds(t *testing.T) {
	r, _ := layerswapRegistry(t)
	base := `"source_network":"ARBITRUM_MAINNET","source_token":"ETH","destination_network":"BASE_MAINNET","destination_token":"ETH","amount":"0.1","destination_address":"0xdest"`

	res := r.Invoke(context.Background(), "bridge", json.RawMessage(`{`+base+`,"max_poll_attempts":31}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, apperr.KindValidation, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "max_poll_attempts must be at most 30")

	res = r.Invoke(context.Background(), "bridge", json.RawMessage(`{`+base+`,"poll_interval_seconds":3600}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Contains(t, res.Error.Message, "poll_interval_seconds must be at most 10")
}

func TestBridgeToolValidation(t *testing.T) {
	cfg := &config.Config{
		Layerswap: config.LayerswapConfig{APIKey: "key", BaseURL: "http://127.0.0.1:0"},
		Paradex:   config.ParadexConfig{Network: "testnet"},
		Journal:   config.JournalConfig{Backend: "file", Path: filepath.Join(t.TempDir(), "journal.json")},
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	res := a.Tools.Invoke(context.Background(), "bridge",
		json.RawMessage(`{"source_network":"ARBITRUM_MAINNET","source_token":"ETH","destination_network":"BASE_MAINNET","destination_token":"ETH","amount":"0.1"}`))
	require.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, apperr.KindValidation, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "destination_address is required")
}
