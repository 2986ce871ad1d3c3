package paradex

import (
	"context"
	"net/url"
	"sort"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/apperr"
)

// Markets lists every market, sorted by symbol. Public endpoint.
func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	var resp results[Market]
	if err := c.api.Get(ctx, "/markets", nil, nil, &resp); err != nil {
		return nil, err
	}
	sort.Slice(resp.Results, func(i, j int) bool { return resp.Results[i].Symbol < resp.Results[j].Symbol })
	return resp.Results, nil
}

// Market returns the configuration of one market
func (c *Client) Market(ctx context.Context, market string) (*Market, error) {
	var resp results[Market]
	if err := c.api.Get(ctx, "/markets", url.Values{"market": {market}}, nil, &resp); err != nil {
		return nil, err
	}
	for _, m := range resp.Results {
		if m.Symbol == market {
			return &m, nil
		}
	}
	return nil, apperr.Newf(apperr.KindValidation, "paradex markets", "market %s not found", market)
}

// TickSize returns the market's price tick, or the default tick when the
// market cannot be resolved.
func (c *Client) TickSize(ctx context.Context, market string) decimal.Decimal {
	m, err := c.Market(ctx, market)
	if err != nil || !m.PriceTickSize.IsPositive() {
		return c.cfg.DefaultTickSize
	}
	return m.PriceTickSize
}

// MarketSummary returns the live trading state of one market
func (c *Client) MarketSummary(ctx context.Context, market string) (*MarketSummary, error) {
	var resp results[MarketSummary]
	if err := c.api.Get(ctx, "/markets/summary", url.Values{"market": {market}}, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, apperr.Newf(apperr.KindValidation, "paradex markets", "no summary for market %s", market)
	}
	return &resp.Results[0], nil
}

// BBO returns the best bid and offer of a market
func (c *Client) BBO(ctx context.Context, s *Session, market string) (*BBO, error) {
	h, err := bearer(s, "paradex bbo")
	if err != nil {
		return nil, err
	}
	if market == "" {
		return nil, apperr.New(apperr.KindValidation, "paradex bbo", "market is required")
	}
	var bbo BBO
	if err := c.api.Get(ctx, "/bbo/"+url.PathEscape(market), nil, h, &bbo); err != nil {
		return nil, err
	}
	if bbo.Market == "" {
		bbo.Market = market
	}
	return &bbo, nil
}
