package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

type echoParams struct {
	Market string          `json:"market" validate:"required" jsonschema:"description=Market symbol"`
	Side   string          `json:"side" validate:"required,oneof=BUY SELL"`
	Size   decimal.Decimal `json:"size"`
	Note   string          `json:"note,omitempty"`
}

func echoTool(plugin, name string) Tool {
	return New(plugin, name, "echoes its input", func(_ context.Context, p echoParams) (any, error) {
		return p, nil
	})
}

func TestNewReflectsSchema(t *testing.T) {
	tool := echoTool("paradex", "echo")
	require.NotNil(t, tool.Schema)
	assert.Equal(t, "object", tool.Schema.Type)
	assert.ElementsMatch(t, []string{"market", "side", "size"}, tool.Schema.Required)

	size, ok := tool.Schema.Properties.Get("size")
	require.True(t, ok)
	assert.Equal(t, "string", size.Type)

	market, ok := tool.Schema.Properties.Get("market")
	require.True(t, ok)
	assert.Equal(t, "Market symbol", market.Description)
}

func TestExecuteValidatesParams(t *testing.T) {
	tool := echoTool("paradex", "echo")

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"market":"ETH-USD-PERP","side":"BUY","size":"0.5"}`))
	require.NoError(t, err)
	assert.Equal(t, "0.5", out.(echoParams).Size.String())

	for _, raw := range []string{
		`{"side":"BUY"}`,
		`{"market":"ETH-USD-PERP","side":"HOLD"}`,
		`{"market":"ETH-USD-PERP","side":"BUY","extra":1}`,
		`not json`,
	} {
		_, err := tool.Execute(context.Background(), json.RawMessage(raw))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), raw)
	}

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"side":"BUY"}`))
	assert.Contains(t, err.Error(), "market is required")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("paradex", "b"), echoTool("layerswap", "a")))
	assert.Error(t, r.Register(echoTool("paradex", "b")))
	assert.Error(t, r.Register(Tool{Name: "broken"}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	_, ok := r.Get("b")
	assert.True(t, ok)
}

func TestAllowed(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("paradex", "place_order_limit"), echoTool("paradex", "get_bbo"), echoTool("layerswap", "bridge")))

	assert.Len(t, r.Allowed(nil).List(), 3)
	assert.Len(t, r.Allowed([]string{"Paradex"}).List(), 2)

	only := r.Allowed([]string{"bridge", "get_bbo"})
	assert.Len(t, only.List(), 2)
	_, ok := only.Get("place_order_limit")
	assert.False(t, ok)
}

func TestInvokeEnvelope(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		echoTool("test", "echo"),
		New("test", "fail", "always fails", func(context.Context, struct{}) (any, error) {
			return nil, apperr.New(apperr.KindOrder, "paradex order", "rejected")
		}),
		New("test", "pending", "returns its own envelope", func(context.Context, struct{}) (any, error) {
			return types.Pending(map[string]string{"swapId": "s1"}), nil
		}),
		New("test", "plain", "plain error", func(context.Context, struct{}) (any, error) {
			return nil, errors.New("boom")
		}),
	))

	ok := r.Invoke(context.Background(), "echo", json.RawMessage(`{"market":"m","side":"SELL","size":"1"}`))
	assert.Equal(t, types.StatusSuccess, ok.Status)

	fail := r.Invoke(context.Background(), "fail", nil)
	require.Equal(t, types.StatusError, fail.Status)
	assert.Equal(t, apperr.KindOrder, fail.Error.Kind)

	pending := r.Invoke(context.Background(), "pending", nil)
	assert.Equal(t, types.StatusPending, pending.Status)

	plain := r.Invoke(context.Background(), "plain", nil)
	assert.Equal(t, apperr.KindUnknown, plain.Error.Kind)

	missing := r.Invoke(context.Background(), "nope", nil)
	assert.Equal(t, apperr.KindValidation, missing.Error.Kind)
}
