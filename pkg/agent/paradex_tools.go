package agent

import (
	"context"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/paradex"
	"agent-tools/pkg/tools"
)

const paradexPlugin = "paradex"

type limitOrderParams struct {
	Market      string          `json:"market" validate:"required" jsonschema:"description=Market symbol e.g. ETH-USD-PERP"`
	Side        string          `json:"side" validate:"required,oneof=long short buy sell LONG SHORT BUY SELL" jsonschema:"enum=long,enum=short,enum=buy,enum=sell"`
	Size        decimal.Decimal `json:"size" jsonschema:"description=Order size in base asset"`
	Price       decimal.Decimal `json:"price" jsonschema:"description=Limit price"`
	Instruction string          `json:"instruction,omitempty" validate:"omitempty,oneof=GTC IOC POST_ONLY" jsonschema:"enum=GTC,enum=IOC,enum=POST_ONLY"`
	ClientID    string          `json:"client_id,omitempty"`
}

type marketOrderParams struct {
	Market   string          `json:"market" validate:"required" jsonschema:"description=Market symbol e.g. ETH-USD-PERP"`
	Side     string          `json:"side" validate:"required,oneof=long short buy sell LONG SHORT BUY SELL" jsonschema:"enum=long,enum=short,enum=buy,enum=sell"`
	Size     decimal.Decimal `json:"size" jsonschema:"description=Order size in base asset"`
	Price    decimal.Decimal `json:"price,omitempty" jsonschema:"description=Ignored. Market orders fill at the best available price"`
	ClientID string          `json:"client_id,omitempty"`
}

type orderIDParams struct {
	OrderID string `json:"order_id" validate:"required"`
}

type optionalMarketParams struct {
	Market string `json:"market,omitempty" jsonschema:"description=Restrict to one market"`
}

type marketParams struct {
	Market string `json:"market" validate:"required" jsonschema:"description=Market symbol e.g. BTC-USD-PERP"`
}

type noParams struct{}

// BBOResult is a quote with its spread
type BBOResult struct {
	Market        string          `json:"market"`
	Bid           decimal.Decimal `json:"bid"`
	BidSize       decimal.Decimal `json:"bid_size"`
	Ask           decimal.Decimal `json:"ask"`
	AskSize       decimal.Decimal `json:"ask_size"`
	Spread        decimal.Decimal `json:"spread"`
	SpreadPercent string          `json:"spread_percentage"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

// authed authenticates and runs fn. Every call gets a fresh session.
func authed[T any](ctx context.Context, c *paradex.Client, fn func(*paradex.Session) (T, error)) (T, error) {
	s, err := c.Authenticate(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(s)
}

// ParadexTools exposes the exchange client
func ParadexTools(c *paradex.Client) []tools.Tool {
	return []tools.Tool{
		tools.New(paradexPlugin, "place_order_limit",
			"Place a limit order on Paradex. The price is rounded to the market tick size.",
			func(ctx context.Context, p limitOrderParams) (any, error) {
				side, _ := paradex.ParseSide(p.Side)
				req := paradex.OrderRequest{
					Market:      p.Market,
					Side:        side,
					Type:        paradex.OrderLimit,
					Size:        p.Size,
					Price:       p.Price,
					Instruction: paradex.Instruction(p.Instruction),
					ClientID:    p.ClientID,
				}
				if err := c.ValidateOrder(req); err != nil {
					return nil, err
				}
				return authed(ctx, c, func(s *paradex.Session) (*paradex.Order, error) {
					req.TickSize = c.TickSize(ctx, p.Market)
					return c.PlaceOrder(ctx, s, req)
				})
			}),

		tools.New(paradexPlugin, "place_order_market",
			"Place a market order on Paradex.",
			func(ctx context.Context, p marketOrderParams) (any, error) {
				side, _ := paradex.ParseSide(p.Side)
				req := paradex.OrderRequest{
					Market:   p.Market,
					Side:     side,
					Type:     paradex.OrderMarket,
					Size:     p.Size,
					ClientID: p.ClientID,
				}
				if err := c.ValidateOrder(req); err != nil {
					return nil, err
				}
				return authed(ctx, c, func(s *paradex.Session) (*paradex.Order, error) {
					return c.PlaceOrder(ctx, s, req)
				})
			}),

		tools.New(paradexPlugin, "cancel_order",
			"Cancel an open Paradex order by id.",
			func(ctx context.Context, p orderIDParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) (map[string]string, error) {
					if err := c.CancelOrder(ctx, s, p.OrderID); err != nil {
						return nil, err
					}
					return map[string]string{"order_id": p.OrderID, "status": "cancel_requested"}, nil
				})
			}),

		tools.New(paradexPlugin, "cancel_all_orders",
			"Cancel every open Paradex order, optionally for one market.",
			func(ctx context.Context, p optionalMarketParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) (map[string]string, error) {
					if err := c.CancelAllOrders(ctx, s, p.Market); err != nil {
						return nil, err
					}
					return map[string]string{"market": p.Market, "status": "cancel_requested"}, nil
				})
			}),

		tools.New(paradexPlugin, "get_open_orders",
			"List open Paradex orders.",
			func(ctx context.Context, p optionalMarketParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) ([]paradex.Order, error) {
					return c.OpenOrders(ctx, s, p.Market)
				})
			}),

		tools.New(paradexPlugin, "get_open_positions",
			"List open Paradex positions with a non-zero size.",
			func(ctx context.Context, p optionalMarketParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) ([]paradex.Position, error) {
					return c.Positions(ctx, s, p.Market)
				})
			}),

		tools.New(paradexPlugin, "get_balance",
			"Get the Paradex account token balances.",
			func(ctx context.Context, _ noParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) ([]paradex.Balance, error) {
					return c.Balances(ctx, s)
				})
			}),

		tools.New(paradexPlugin, "get_account",
			"Get the Paradex account margin summary.",
			func(ctx context.Context, _ noParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) (*paradex.Account, error) {
					return c.Account(ctx, s)
				})
			}),

		tools.New(paradexPlugin, "get_bbo",
			"Get the best bid and offer for a Paradex market.",
			func(ctx context.Context, p marketParams) (any, error) {
				return authed(ctx, c, func(s *paradex.Session) (*BBOResult, error) {
					bbo, err := c.BBO(ctx, s, p.Market)
					if err != nil {
						return nil, err
					}
					spread, pct := bbo.Spread()
					return &BBOResult{
						Market:        bbo.Market,
						Bid:           bbo.Bid,
						BidSize:       bbo.BidSize,
						Ask:           bbo.Ask,
						AskSize:       bbo.AskSize,
						Spread:        spread,
						SpreadPercent: pct.StringFixed(4) + "%",
						LastUpdatedAt: bbo.LastUpdatedAt,
					}, nil
				})
			}),

		tools.New(paradexPlugin, "list_markets",
			"List Paradex market symbols.",
			func(ctx context.Context, _ noParams) (any, error) {
				markets, err := c.Markets(ctx)
				if err != nil {
					return nil, err
				}
				symbols := make([]string, 0, len(markets))
				for _, m := range markets {
					symbols = append(symbols, m.Symbol)
				}
				return symbols, nil
			}),

		tools.New(paradexPlugin, "get_market_details",
			"Get the configuration of a Paradex market: tick size, size increment and limits.",
			func(ctx context.Context, p marketParams) (any, error) {
				return c.Market(ctx, p.Market)
			}),

		tools.New(paradexPlugin, "get_market_trading_info",
			"Get live trading data for a Paradex market: mark price, volume, open interest and funding.",
			func(ctx context.Context, p marketParams) (any, error) {
				return c.MarketSummary(ctx, p.Market)
			}),
	}
}
