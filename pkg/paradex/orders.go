package paradex

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
)

// sizeDecimals is the precision the exchange accepts for order sizes
const sizeDecimals = 8

// FormatSize renders a size with eight decimals
func FormatSize(size decimal.Decimal) string {
	return size.StringFixed(sizeDecimals)
}

// FormatPrice rounds price to the nearest multiple of tick and renders it
// with the tick's precision. A non-positive tick uses DefaultTickSize.
func FormatPrice(price, tick decimal.Decimal) string {
	if !tick.IsPositive() {
		tick = DefaultTickSize
	}
	rounded := price.DivRound(tick, 16).Round(0).Mul(tick)
	places := int32(0)
	if exp := tick.Exponent(); exp < 0 {
		places = -exp
	}
	return rounded.StringFixed(places)
}

// normalize validates req and fills defaults. Market orders lose their price.
func (c *Client) normalize(req OrderRequest) (OrderRequest, error) {
	const op = "paradex order"
	if req.Market == "" {
		return req, apperr.New(apperr.KindValidation, op, "market is required")
	}
	side, ok := ParseSide(string(req.Side))
	if !ok {
		return req, apperr.Newf(apperr.KindValidation, op, "invalid side %q", req.Side)
	}
	req.Side = side

	typ, ok := ParseOrderType(string(req.Type))
	if !ok {
		return req, apperr.Newf(apperr.KindValidation, op, "invalid order type %q", req.Type)
	}
	req.Type = typ

	if !req.Size.IsPositive() {
		return req, apperr.New(apperr.KindValidation, op, "size must be greater than 0")
	}
	switch req.Type {
	case OrderLimit:
		if !req.Price.IsPositive() {
			return req, apperr.New(apperr.KindValidation, op, "price is required for limit orders")
		}
	case OrderMarket:
		req.Price = decimal.Zero
	}

	if req.Instruction == "" {
		req.Instruction = InstructionGTC
	}
	if !req.TickSize.IsPositive() {
		req.TickSize = c.cfg.DefaultTickSize
	}
	return req, nil
}

// ValidateOrder runs the checks PlaceOrder makes before it signs, without
// any network call
func (c *Client) ValidateOrder(req OrderRequest) error {
	_, err := c.normalize(req)
	return err
}

// PlaceOrder signs and submits an order
func (c *Client) PlaceOrder(ctx context.Context, s *Session, req OrderRequest) (*Order, error) {
	const op = "paradex order"
	h, err := bearer(s, op)
	if err != nil {
		return nil, err
	}
	req, err = c.normalize(req)
	if err != nil {
		return nil, err
	}
	if c.signer == nil {
		return nil, apperr.New(apperr.KindConfig, op, "no signer configured (paradex.signer_url)")
	}

	size := FormatSize(req.Size)
	price := "0"
	if req.Type == OrderLimit {
		price = FormatPrice(req.Price, req.TickSize)
	}

	ts := c.now().UnixMilli()
	sig, err := c.signer.SignOrder(ctx, OrderMessage{
		ChainID:   c.env.ChainID,
		Account:   s.Account,
		Timestamp: ts,
		Market:    req.Market,
		Side:      string(req.Side),
		OrderType: string(req.Type),
		Size:      size,
		Price:     price,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOrder, op, err, "failed to sign order")
	}

	body := map[string]any{
		"market":              req.Market,
		"side":                req.Side,
		"type":                req.Type,
		"size":                size,
		"instruction":         req.Instruction,
		"signature":           sig,
		"signature_timestamp": ts,
	}
	if req.Type == OrderLimit {
		body["price"] = price
	}
	if req.ClientID != "" {
		body["client_id"] = req.ClientID
	}

	var order Order
	if err := c.api.Post(ctx, "/orders", h, body, &order); err != nil {
		return nil, asKind(err, apperr.KindOrder)
	}

	zap.L().Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("market", req.Market),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.String("size", size),
		zap.String("price", price))
	return &order, nil
}

// CancelOrder cancels one order by id
func (c *Client) CancelOrder(ctx context.Context, s *Session, orderID string) error {
	h, err := bearer(s, "paradex cancel")
	if err != nil {
		return err
	}
	if orderID == "" {
		return apperr.New(apperr.KindValidation, "paradex cancel", "order id is required")
	}
	if err := c.api.Delete(ctx, "/orders/"+url.PathEscape(orderID), nil, h, nil); err != nil {
		return asKind(err, apperr.KindOrder)
	}
	return nil
}

// CancelAllOrders cancels every open order, or only those on market
func (c *Client) CancelAllOrders(ctx context.Context, s *Session, market string) error {
	h, err := bearer(s, "paradex cancel")
	if err != nil {
		return err
	}
	q := url.Values{}
	if market != "" {
		q.Set("market", market)
	}
	if err := c.api.Delete(ctx, "/orders", q, h, nil); err != nil {
		return asKind(err, apperr.KindOrder)
	}
	return nil
}

// OpenOrders lists open orders, optionally for one market
func (c *Client) OpenOrders(ctx context.Context, s *Session, market string) ([]Order, error) {
	h, err := bearer(s, "paradex orders")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if market != "" {
		q.Set("market", market)
	}
	var resp results[Order]
	if err := c.api.Get(ctx, "/orders", q, h, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
