package paradex

import (
	"context"
	"net/url"
)

// Balances returns every token balance of the account
func (c *Client) Balances(ctx context.Context, s *Session) ([]Balance, error) {
	h, err := bearer(s, "paradex balance")
	if err != nil {
		return nil, err
	}
	var resp results[Balance]
	if err := c.api.Get(ctx, "/balance", nil, h, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Positions returns open positions with a non-zero size
func (c *Client) Positions(ctx context.Context, s *Session, market string) ([]Position, error) {
	h, err := bearer(s, "paradex positions")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if market != "" {
		q.Set("market", market)
	}
	var resp results[Position]
	if err := c.api.Get(ctx, "/positions", q, h, &resp); err != nil {
		return nil, err
	}

	open := make([]Position, 0, len(resp.Results))
	for _, p := range resp.Results {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open, nil
}

// Account returns the margin summary
func (c *Client) Account(ctx context.Context, s *Session) (*Account, error) {
	h, err := bearer(s, "paradex account")
	if err != nil {
		return nil, err
	}
	var acct Account
	if err := c.api.Get(ctx, "/account", nil, h, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}
