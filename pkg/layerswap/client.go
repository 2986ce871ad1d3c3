package layerswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/httpapi"
	"agent-tools/pkg/types"
)

const (
	// APIVersion is the only Layerswap contract this client speaks
	APIVersion = "v2"

	DefaultBaseURL = "https://api.layerswap.io/api/" + APIVersion

	apiKeyHeader = "X-LS-APIKEY"
)

// Config holds what a Client needs. One Config per client, no globals.
type Config struct {
	APIKey         string
	BaseURL        string
	AccountAddress string
	Timeout        time.Duration
}

// Client talks to the Layerswap REST API
type Client struct {
	http           *httpapi.Client
	accountAddress string
}

// NewClient creates a Layerswap client. A missing API key is a config error.
func NewClient(cfg Config, opts ...httpapi.Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.New(apperr.KindConfig, "layerswap", "API key is not set (layerswap.api_key)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	options := []httpapi.Option{httpapi.WithTimeout(cfg.Timeout), httpapi.WithHeader(apiKeyHeader, cfg.APIKey)}
	options = append(options, opts...)

	return &Client{
		http:           httpapi.New("layerswap", baseURL, options...),
		accountAddress: cfg.AccountAddress,
	}, nil
}

// AccountAddress returns the configured source account, if any
func (c *Client) AccountAddress() string {
	return c.accountAddress
}

// apiError is the error half of the response envelope
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope wraps every v2 response
type envelope[T any] struct {
	Data  T         `json:"data"`
	Error *apiError `json:"error"`
}

// swapData is the payload of the swap endpoints
type swapData struct {
	Swap           types.Swap            `json:"swap"`
	Quote          *types.Quote          `json:"quote,omitempty"`
	DepositActions []types.DepositAction `json:"deposit_actions,omitempty"`
}

type quoteData struct {
	Quote types.Quote `json:"quote"`
}

// Network is a Layerswap network with its tokens
type Network struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	ChainID     string          `json:"chain_id"`
	Type        string          `json:"type"`
	Tokens      []NetworkToken  `json:"tokens"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// NetworkToken is a token listed under a network
type NetworkToken struct {
	Symbol   string `json:"symbol"`
	Contract string `json:"contract"`
	Decimals int32  `json:"decimals"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.http.Get(ctx, path, query, nil, out)
}

func unwrap[T any](op string, env *envelope[T]) error {
	if env.Error != nil && (env.Error.Code != "" || env.Error.Message != "") {
		return apperr.Newf(apperr.KindUpstream, op, "%s: %s", env.Error.Code, env.Error.Message)
	}
	return nil
}

func routeQuery(route types.Route, refuel bool) url.Values {
	q := url.Values{}
	q.Set("source_network", route.SourceNetwork)
	q.Set("source_token", route.SourceToken)
	q.Set("destination_network", route.DestinationNetwork)
	q.Set("destination_token", route.DestinationToken)
	q.Set("use_deposit_address", "true")
	q.Set("refuel", fmt.Sprintf("%t", refuel))
	return q
}

// GetLimits returns the min and max amounts accepted for a route
func (c *Client) GetLimits(ctx context.Context, route types.Route, refuel bool) (*types.Limits, error) {
	if err := route.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "layerswap limits", err, "invalid route")
	}

	var env envelope[types.Limits]
	if err := c.get(ctx, "/limits", routeQuery(route, refuel), &env); err != nil {
		return nil, err
	}
	if err := unwrap("layerswap limits", &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// QuoteRequest describes a prospective transfer
type QuoteRequest struct {
	types.Route
	Amount        decimal.Decimal
	Refuel        bool
	SourceAddress string
}

// GetQuote prices a prospective transfer. The source address falls back to the
// configured account address.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	const op = "layerswap quote"
	if err := req.Route.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err, "invalid route")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, op, "amount must be greater than 0")
	}
	source := req.SourceAddress
	if source == "" {
		source = c.accountAddress
	}
	if source == "" {
		return nil, apperr.New(apperr.KindValidation, op, "source address is required (no account address configured)")
	}

	q := routeQuery(req.Route, req.Refuel)
	q.Set("amount", req.Amount.String())
	q.Set("source_address", source)

	var env envelope[quoteData]
	if err := c.get(ctx, "/quote", q, &env); err != nil {
		return nil, err
	}
	if err := unwrap(op, &env); err != nil {
		return nil, err
	}
	return &env.Data.Quote, nil
}

// createSwapPayload carries only the keys the API requires; optional keys are
// left out entirely when unset.
type createSwapPayload struct {
	SourceNetwork      string      `json:"source_network"`
	SourceToken        string      `json:"source_token"`
	DestinationNetwork string      `json:"destination_network"`
	DestinationToken   string      `json:"destination_token"`
	DestinationAddress string      `json:"destination_address"`
	Amount             json.Number `json:"amount"`
	UseDepositAddress  bool        `json:"use_deposit_address"`
	Refuel             bool        `json:"refuel,omitempty"`
	ReferenceID        string      `json:"reference_id,omitempty"`
	SourceAddress      string      `json:"source_address,omitempty"`
}

// CreateSwap creates a new swap. Not idempotent: two calls create two swaps.
func (c *Client) CreateSwap(ctx context.Context, req types.BridgeRequest) (*types.Swap, error) {
	const op = "layerswap create swap"
	if err := req.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err, "invalid bridge request")
	}

	payload := createSwapPayload{
		SourceNetwork:      req.SourceNetwork,
		SourceToken:        req.SourceToken,
		DestinationNetwork: req.DestinationNetwork,
		DestinationToken:   req.DestinationToken,
		DestinationAddress: req.DestinationAddress,
		Amount:             json.Number(req.Amount.String()),
		UseDepositAddress:  true,
		Refuel:             req.Refuel,
		ReferenceID:        req.ReferenceID,
		SourceAddress:      req.SourceAddress,
	}

	var env envelope[swapData]
	if err := c.http.Post(ctx, "/swaps", nil, payload, &env); err != nil {
		return nil, err
	}
	if err := unwrap(op, &env); err != nil {
		return nil, err
	}
	if env.Data.Swap.ID == "" {
		return nil, apperr.New(apperr.KindUpstream, op, "response did not include a swap id")
	}

	zap.L().Info("Swap created",
		zap.String("swap_id", env.Data.Swap.ID),
		zap.String("route", req.Route.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("reference_id", req.ReferenceID))
	return &env.Data.Swap, nil
}

// GetDepositActions returns the on-chain instructions that fund a swap,
// ordered by their Order field as sent by the API.
func (c *Client) GetDepositActions(ctx context.Context, swapID, sourceAddress string) ([]types.DepositAction, error) {
	if swapID == "" {
		return nil, apperr.New(apperr.KindValidation, "layerswap deposit actions", "swap id is required")
	}
	if sourceAddress == "" {
		sourceAddress = c.accountAddress
	}
	q := url.Values{}
	if sourceAddress != "" {
		q.Set("source_address", sourceAddress)
	}

	var env envelope[[]types.DepositAction]
	if err := c.get(ctx, "/swaps/"+url.PathEscape(swapID)+"/deposit_actions", q, &env); err != nil {
		return nil, err
	}
	if err := unwrap("layerswap deposit actions", &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetSwap fetches the current snapshot of a swap
func (c *Client) GetSwap(ctx context.Context, swapID string) (*types.Swap, error) {
	if swapID == "" {
		return nil, apperr.New(apperr.KindValidation, "layerswap swap", "swap id is required")
	}
	var env envelope[swapData]
	if err := c.get(ctx, "/swaps/"+url.PathEscape(swapID), nil, &env); err != nil {
		return nil, err
	}
	if err := unwrap("layerswap swap", &env); err != nil {
		return nil, err
	}
	return &env.Data.Swap, nil
}

// GetSwapsByReference lists swaps created with the given reference id
func (c *Client) GetSwapsByReference(ctx context.Context, referenceID string) ([]types.Swap, error) {
	if referenceID == "" {
		return nil, apperr.New(apperr.KindValidation, "layerswap swaps by reference", "reference id is required")
	}
	var env envelope[[]swapData]
	if err := c.get(ctx, "/swaps", url.Values{"reference_id": {referenceID}}, &env); err != nil {
		return nil, err
	}
	if err := unwrap("layerswap swaps by reference", &env); err != nil {
		return nil, err
	}
	swaps := make([]types.Swap, 0, len(env.Data))
	for _, d := range env.Data {
		swaps = append(swaps, d.Swap)
	}
	return swaps, nil
}

// ListNetworks returns the supported networks. A non-empty sourceNetwork keeps
// only that network (case-insensitive).
func (c *Client) ListNetworks(ctx context.Context, sourceNetwork string) ([]Network, error) {
	var env envelope[[]Network]
	if err := c.get(ctx, "/networks", nil, &env); err != nil {
		return nil, err
	}
	if err := unwrap("layerswap networks", &env); err != nil {
		return nil, err
	}
	if sourceNetwork == "" {
		return env.Data, nil
	}

	var filtered []Network
	for _, n := range env.Data {
		if strings.EqualFold(n.Name, sourceNetwork) {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}
