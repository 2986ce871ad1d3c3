package agent

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/bridge"
	"agent-tools/pkg/journal"
	"agent-tools/pkg/layerswap"
	"agent-tools/pkg/tools"
	"agent-tools/pkg/types"
)

const layerswapPlugin = "layerswap"

type routeParams struct {
	SourceNetwork      string `json:"source_network" validate:"required" jsonschema:"description=Layerswap network name e.g. ARBITRUM_MAINNET"`
	SourceToken        string `json:"source_token" validate:"required" jsonschema:"description=Token symbol on the source network"`
	DestinationNetwork string `json:"destination_network" validate:"required" jsonschema:"description=Layerswap network name e.g. PARADEX_MAINNET"`
	DestinationToken   string `json:"destination_token" validate:"required" jsonschema:"description=Token symbol on the destination network"`
}

func (p routeParams) route() types.Route {
	return types.Route{
		SourceNetwork:      p.SourceNetwork,
		SourceToken:        p.SourceToken,
		DestinationNetwork: p.DestinationNetwork,
		DestinationToken:   p.DestinationToken,
	}
}

type limitsParams struct {
	routeParams
	Refuel bool `json:"refuel,omitempty"`
}

type quoteParams struct {
	routeParams
	Amount        decimal.Decimal `json:"amount" jsonschema:"description=Amount of the source token"`
	Refuel        bool            `json:"refuel,omitempty"`
	SourceAddress string          `json:"source_address,omitempty"`
}

type bridgeParams struct {
	routeParams
	Amount             decimal.Decimal `json:"amount" jsonschema:"description=Amount of the source token"`
	DestinationAddress string          `json:"destination_address" validate:"required"`
	SourceAddress      string          `json:"source_address,omitempty"`
	Refuel             bool            `json:"refuel,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty" jsonschema:"description=Idempotency key; generated when empty"`
	MaxPollAttempts    int             `json:"max_poll_attempts,omitempty" validate:"gte=0,lte=30" jsonschema:"maximum=30,description=Status checks before giving up (default 30)"`
	PollIntervalSec    int             `json:"poll_interval_seconds,omitempty" validate:"gte=0,lte=10" jsonschema:"maximum=10,description=Seconds between status checks (default 10)"`
}

type createSwapParams struct {
	routeParams
	Amount             decimal.Decimal `json:"amount" jsonschema:"description=Amount of the source token"`
	DestinationAddress string          `json:"destination_address" validate:"required"`
	SourceAddress      string          `json:"source_address,omitempty"`
	Refuel             bool            `json:"refuel,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
}

type depositActionsParams struct {
	SwapID        string `json:"swap_id" validate:"required"`
	SourceAddress string `json:"source_address,omitempty" jsonschema:"description=Address the deposit is sent from"`
}

type swapIDParams struct {
	SwapID string `json:"swap_id" validate:"required"`
}

type networksParams struct {
	SourceNetwork string `json:"source_network,omitempty"`
}

// LayerswapTools exposes the bridge client and orchestrator
func LayerswapTools(c *layerswap.Client, orch *bridge.Orchestrator, store journal.Store) []tools.Tool {
	list := []tools.Tool{
		tools.New(layerswapPlugin, "bridge",
			"Bridge tokens between networks: checks limits, quotes, creates the swap, funds the deposit and waits for completion.",
			func(ctx context.Context, p bridgeParams) (any, error) {
				return orch.Execute(ctx, bridge.ExecuteParams{
					BridgeRequest: types.BridgeRequest{
						Route:              p.route(),
						SourceAddress:      p.SourceAddress,
						DestinationAddress: p.DestinationAddress,
						Amount:             p.Amount,
						Refuel:             p.Refuel,
						ReferenceID:        p.ReferenceID,
					},
					PollInterval:    time.Duration(p.PollIntervalSec) * time.Second,
					MaxPollAttempts: p.MaxPollAttempts,
				}), nil
			}),

		tools.New(layerswapPlugin, "get_bridge_limits",
			"Get the minimum and maximum amount for a bridge route.",
			func(ctx context.Context, p limitsParams) (any, error) {
				return c.GetLimits(ctx, p.route(), p.Refuel)
			}),

		tools.New(layerswapPlugin, "get_bridge_quote",
			"Quote fees and the received amount for a bridge route.",
			func(ctx context.Context, p quoteParams) (any, error) {
				return c.GetQuote(ctx, layerswap.QuoteRequest{
					Route:         p.route(),
					Amount:        p.Amount,
					Refuel:        p.Refuel,
					SourceAddress: p.SourceAddress,
				})
			}),

		tools.New(layerswapPlugin, "create_bridge_swap",
			"Create a bridge swap without funding it. Use get_bridge_deposit_actions for the transaction to send.",
			func(ctx context.Context, p createSwapParams) (any, error) {
				return c.CreateSwap(ctx, types.BridgeRequest{
					Route:              p.route(),
					SourceAddress:      p.SourceAddress,
					DestinationAddress: p.DestinationAddress,
					Amount:             p.Amount,
					Refuel:             p.Refuel,
					ReferenceID:        p.ReferenceID,
				})
			}),

		tools.New(layerswapPlugin, "get_bridge_deposit_actions",
			"Get the on-chain transfers that fund a bridge swap, lowest order first.",
			func(ctx context.Context, p depositActionsParams) (any, error) {
				actions, err := c.GetDepositActions(ctx, p.SwapID, p.SourceAddress)
				if err != nil {
					return nil, err
				}
				sort.SliceStable(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })
				return actions, nil
			}),

		tools.New(layerswapPlugin, "get_bridge_status",
			"Get the current status and transactions of a bridge swap.",
			func(ctx context.Context, p swapIDParams) (any, error) {
				return c.GetSwap(ctx, p.SwapID)
			}),

		tools.New(layerswapPlugin, "list_bridge_routes",
			"List bridge networks and their tokens, optionally only one source network.",
			func(ctx context.Context, p networksParams) (any, error) {
				return c.ListNetworks(ctx, p.SourceNetwork)
			}),
	}

	if store != nil {
		list = append(list, tools.New(layerswapPlugin, "get_bridge_history",
			"List bridges started from this agent, newest first.",
			func(ctx context.Context, _ noParams) (any, error) {
				return store.List(ctx)
			}))
	}
	return list
}
