package agent

import (
	"context"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/oneclick"
	"agent-tools/pkg/tools"
)

const oneclickPlugin = "oneclick"

type tokensParams struct {
	Chain  string `json:"chain,omitempty" jsonschema:"description=Blockchain id e.g. eth or sol"`
	Symbol string `json:"symbol,omitempty" jsonschema:"description=Symbol substring"`
}

type oneclickQuoteParams struct {
	SourceToken      string          `json:"source_token" validate:"required"`
	SourceChain      string          `json:"source_chain,omitempty"`
	DestinationToken string          `json:"destination_token" validate:"required"`
	DestinationChain string          `json:"destination_chain,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Recipient        string          `json:"recipient" validate:"required"`
	RefundTo         string          `json:"refund_to,omitempty"`
}

type depositAddressParams struct {
	DepositAddress string `json:"deposit_address" validate:"required"`
}

// OneClickTools exposes the 1Click aggregator. Quotes are dry so the agent
// never receives a live deposit address.
func OneClickTools(c *oneclick.Client) []tools.Tool {
	return []tools.Tool{
		tools.New(oneclickPlugin, "oneclick_list_tokens",
			"List tokens the 1Click aggregator can swap.",
			func(ctx context.Context, p tokensParams) (any, error) {
				return c.Tokens(ctx, p.Chain, p.Symbol)
			}),

		tools.New(oneclickPlugin, "oneclick_quote",
			"Get an indicative cross-chain swap quote from 1Click.",
			func(ctx context.Context, p oneclickQuoteParams) (any, error) {
				return c.Quote(ctx, oneclick.QuoteRequest{
					SourceToken: p.SourceToken,
					SourceChain: p.SourceChain,
					DestToken:   p.DestinationToken,
					DestChain:   p.DestinationChain,
					Amount:      p.Amount,
					Recipient:   p.Recipient,
					RefundTo:    p.RefundTo,
					Dry:         true,
				})
			}),

		tools.New(oneclickPlugin, "oneclick_status",
			"Get the execution status of a 1Click swap by deposit address.",
			func(ctx context.Context, p depositAddressParams) (any, error) {
				return c.Status(ctx, p.DepositAddress)
			}),
	}
}
