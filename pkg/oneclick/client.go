package oneclick

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
)

const (
	DefaultBaseURL = "https://1click.chaindefuser.com"

	// slippageBps is 1%
	slippageBps = 100

	quoteDeadline = 24 * time.Hour
)

// Token is a token the aggregator can route
type Token struct {
	AssetID         string `json:"assetId"`
	Symbol          string `json:"symbol"`
	Blockchain      string `json:"blockchain"`
	Decimals        int32  `json:"decimals"`
	ContractAddress string `json:"contractAddress,omitempty"`
}

// QuoteParams is a fully resolved quote request
type QuoteParams struct {
	Dry         bool
	Origin      Token
	Destination Token
	Amount      string // base units
	Recipient   string
	RefundTo    string
	Deadline    time.Time
}

// Quote is the aggregator's answer. DepositAddress is empty for dry quotes.
type Quote struct {
	DepositAddress     string        `json:"depositAddress,omitempty"`
	DepositMemo        string        `json:"depositMemo,omitempty"`
	AmountInFormatted  string        `json:"amountIn"`
	AmountOutFormatted string        `json:"amountOut"`
	TimeEstimate       time.Duration `json:"timeEstimate"`
}

// Status is the execution state of a swap identified by its deposit address
type Status struct {
	DepositAddress      string    `json:"depositAddress"`
	Status              string    `json:"status"`
	UpdatedAt           time.Time `json:"updatedAt"`
	AmountInFormatted   string    `json:"amountIn,omitempty"`
	AmountOutFormatted  string    `json:"amountOut,omitempty"`
	OriginTxHashes      []string  `json:"originTxHashes,omitempty"`
	DestinationTxHashes []string  `json:"destinationTxHashes,omitempty"`
}

// IsTerminal reports SUCCESS, FAILED or REFUNDED
func (s Status) IsTerminal() bool {
	switch strings.ToUpper(s.Status) {
	case "SUCCESS", "COMPLETED", "FAILED", "REFUNDED":
		return true
	}
	return false
}

// Config holds the 1Click credentials
type Config struct {
	JWTToken string
	BaseURL  string
	Timeout  time.Duration
}

// Client resolves tokens and quotes through the 1Click API
type Client struct {
	api API
	now func() time.Time
}

// NewClient creates a client backed by the SDK
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return NewClientWithAPI(newSDKAPI(cfg.JWTToken, cfg.BaseURL, cfg.Timeout))
}

// NewClientWithAPI creates a client over any API implementation
func NewClientWithAPI(api API) *Client {
	return &Client{api: api, now: time.Now}
}

// Tokens lists supported tokens, optionally filtered by chain and by a
// symbol substring.
func (c *Client) Tokens(ctx context.Context, chain, symbol string) ([]Token, error) {
	all, err := c.api.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	if chain == "" && symbol == "" {
		return all, nil
	}

	symbol = strings.ToUpper(symbol)
	var out []Token
	for _, t := range all {
		if chain != "" && !strings.EqualFold(t.Blockchain, chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), symbol) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// findToken matches symbol exactly, then as a substring. When chain is set
// only an exact match on that chain counts.
func findToken(tokens []Token, symbol, chain string) (*Token, error) {
	symbol = strings.ToUpper(symbol)
	if chain != "" {
		for i, t := range tokens {
			if strings.ToUpper(t.Symbol) == symbol && strings.EqualFold(t.Blockchain, chain) {
				return &tokens[i], nil
			}
		}
		return nil, apperr.Newf(apperr.KindValidation, "oneclick", "token '%s' not found on chain '%s'", symbol, chain)
	}

	for i, t := range tokens {
		if strings.ToUpper(t.Symbol) == symbol {
			return &tokens[i], nil
		}
	}
	for i, t := range tokens {
		if strings.Contains(strings.ToUpper(t.Symbol), symbol) {
			return &tokens[i], nil
		}
	}
	return nil, apperr.Newf(apperr.KindValidation, "oneclick", "token '%s' not found", symbol)
}

// QuoteRequest is a quote in human units
type QuoteRequest struct {
	SourceToken string
	SourceChain string
	DestToken   string
	DestChain   string
	Amount      decimal.Decimal
	Recipient   string
	RefundTo    string
	Dry         bool
}

// BaseUnits converts amount to the token's smallest unit
func BaseUnits(amount decimal.Decimal, decimals int32) (string, error) {
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", apperr.Newf(apperr.KindValidation, "oneclick",
			"amount %s has more than %d decimals", amount.String(), decimals)
	}
	return shifted.String(), nil
}

// Quote resolves both tokens and asks for a quote. The refund address
// defaults to the recipient.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "oneclick", "amount must be greater than 0")
	}
	if req.Recipient == "" {
		return nil, apperr.New(apperr.KindValidation, "oneclick", "recipient address is required")
	}

	tokens, err := c.api.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	origin, err := findToken(tokens, req.SourceToken, req.SourceChain)
	if err != nil {
		return nil, err
	}
	dest, err := findToken(tokens, req.DestToken, req.DestChain)
	if err != nil {
		return nil, err
	}
	amount, err := BaseUnits(req.Amount, origin.Decimals)
	if err != nil {
		return nil, err
	}

	refund := req.RefundTo
	if refund == "" {
		refund = req.Recipient
	}

	q, err := c.api.Quote(ctx, QuoteParams{
		Dry:         req.Dry,
		Origin:      *origin,
		Destination: *dest,
		Amount:      amount,
		Recipient:   req.Recipient,
		RefundTo:    refund,
		Deadline:    c.now().Add(quoteDeadline),
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("1Click quote received",
		zap.String("origin", origin.AssetID),
		zap.String("destination", dest.AssetID),
		zap.String("amount_in", q.AmountInFormatted),
		zap.String("amount_out", q.AmountOutFormatted),
		zap.Bool("dry", req.Dry))
	return q, nil
}

// Status returns the execution status for a deposit address
func (c *Client) Status(ctx context.Context, depositAddress string) (*Status, error) {
	if depositAddress == "" {
		return nil, apperr.New(apperr.KindValidation, "oneclick", "deposit address is required")
	}
	return c.api.Status(ctx, depositAddress)
}

// SubmitDeposit tells the aggregator about a deposit transaction
func (c *Client) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	if depositAddress == "" || txHash == "" {
		return apperr.New(apperr.KindValidation, "oneclick", "deposit address and tx hash are required")
	}
	return c.api.SubmitDeposit(ctx, depositAddress, txHash)
}
