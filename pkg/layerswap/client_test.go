package layerswap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "ls-key", BaseURL: srv.URL, AccountAddress: "0xsource"})
	require.NoError(t, err)
	return c
}

func testRoute() types.Route {
	return types.Route{
		SourceNetwork:      "STARKNET_MAINNET",
		SourceToken:        "ETH",
		DestinationNetwork: "PARADEX_MAINNET",
		DestinationToken:   "ETH",
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestGetLimits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/limits", r.URL.Path)
		assert.Equal(t, "ls-key", r.Header.Get("X-LS-APIKEY"))
		assert.Equal(t, "STARKNET_MAINNET", r.URL.Query().Get("source_network"))
		assert.Equal(t, "true", r.URL.Query().Get("refuel"))
		_, _ = io.WriteString(w, `{"data":{"min_amount":0.001,"max_amount":"5"}}`)
	})

	limits, err := c.GetLimits(context.Background(), testRoute(), true)
	require.NoError(t, err)
	assert.Equal(t, "0.001", limits.MinAmount.String())
	assert.Equal(t, "5", limits.MaxAmount.String())
}

func TestGetLimitsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":"ROUTE_NOT_FOUND","message":"no route"}}`)
	})

	_, err := c.GetLimits(context.Background(), testRoute(), false)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstream, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Contains(t, e.Body, "ROUTE_NOT_FOUND")
}

func TestEnvelopeErrorOn200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":null,"error":{"code":"INVALID","message":"bad token"}}`)
	})

	_, err := c.GetLimits(context.Background(), testRoute(), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "bad token")
}

func TestGetQuoteFallsBackToAccountAddress(t *testing.T) {
	var gotSource, gotAmount string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotSource = r.URL.Query().Get("source_address")
		gotAmount = r.URL.Query().Get("amount")
		_, _ = io.WriteString(w, `{"data":{"quote":{"total_fee":0.0001,"destination_amount":0.0999}}}`)
	})

	q, err := c.GetQuote(context.Background(), QuoteRequest{Route: testRoute(), Amount: decimal.RequireFromString("0.1")})
	require.NoError(t, err)
	assert.Equal(t, "0xsource", gotSource)
	assert.Equal(t, "0.1", gotAmount)
	assert.Equal(t, "0.0999", q.DestinationAmount.String())
}

func TestGetQuoteRequiresSourceAddress(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.GetQuote(context.Background(), QuoteRequest{Route: testRoute(), Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateSwapOmitsUnsetOptionalKeys(t *testing.T) {
	var payload map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{"data":{"swap":{"id":"swap-1","status":"user_transfer_pending"}}}`)
	})

	swap, err := c.CreateSwap(context.Background(), types.BridgeRequest{
		Route:              testRoute(),
		DestinationAddress: "0xdest",
		Amount:             decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, "swap-1", swap.ID)

	for _, key := range []string{"refuel", "reference_id", "source_address"} {
		_, present := payload[key]
		assert.False(t, present, "unexpected key %s", key)
	}
	assert.Equal(t, "0.25", string(payload["amount"]))
	assert.Equal(t, `"0xdest"`, string(payload["destination_address"]))
}

func TestCreateSwapIncludesSetOptionalKeys(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{"data":{"swap":{"id":"swap-2"}}}`)
	})

	_, err := c.CreateSwap(context.Background(), types.BridgeRequest{
		Route:              testRoute(),
		DestinationAddress: "0xdest",
		SourceAddress:      "0xsrc",
		Amount:             decimal.NewFromInt(1),
		Refuel:             true,
		ReferenceID:        "ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, true, payload["refuel"])
	assert.Equal(t, "ref-1", payload["reference_id"])
	assert.Equal(t, "0xsrc", payload["source_address"])
}

func TestGetDepositActions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swaps/swap-1/deposit_actions", r.URL.Path)
		assert.Equal(t, "0xsource", r.URL.Query().Get("source_address"))
		_, _ = io.WriteString(w, `{"data":[{"type":"transfer","to_address":"0xdeposit","amount":0.1,
			"amount_in_base_units":"100000000000000000","order":0,
			"token":{"symbol":"ETH","decimals":18},"network":{"name":"ARBITRUM_MAINNET","chain_id":"42161"}}]}`)
	})

	actions, err := c.GetDepositActions(context.Background(), "swap-1", "")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "0xdeposit", actions[0].ToAddress)
	assert.Equal(t, "100000000000000000", actions[0].AmountInBaseUnits)
	assert.True(t, actions[0].IsNative())
}

func TestGetSwapsByReference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref-9", r.URL.Query().Get("reference_id"))
		_, _ = io.WriteString(w, `{"data":[{"swap":{"id":"a","status":"failed"}},{"swap":{"id":"b","status":"completed"}}]}`)
	})

	swaps, err := c.GetSwapsByReference(context.Background(), "ref-9")
	require.NoError(t, err)
	require.Len(t, swaps, 2)
	assert.Equal(t, types.SwapFailed, swaps[0].Status)
	assert.Equal(t, "b", swaps[1].ID)
}

func TestListNetworksFiltersBySource(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"name":"STARKNET_MAINNET"},{"name":"ARBITRUM_MAINNET"}]}`)
	})

	all, err := c.ListNetworks(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := c.ListNetworks(context.Background(), "starknet_mainnet")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "STARKNET_MAINNET", filtered[0].Name)
}
