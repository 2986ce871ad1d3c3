package paradex

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Session is an authenticated JWT. It is never persisted.
type Session struct {
	Account   string
	JWT       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the session carries a token that has not expired
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.JWT != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// ParseSide accepts buy/sell and long/short in any case
func ParseSide(s string) (OrderSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return SideBuy, true
	case "SELL", "SHORT":
		return SideSell, true
	}
	return "", false
}

type OrderType string

const (
	OrderLimit  OrderType = "LIMIT"
	OrderMarket OrderType = "MARKET"
)

// ParseOrderType accepts limit or market in any case
func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderLimit:
		return OrderLimit, true
	case OrderMarket:
		return OrderMarket, true
	}
	return "", false
}

type Instruction string

const (
	InstructionGTC      Instruction = "GTC"
	InstructionIOC      Instruction = "IOC"
	InstructionPostOnly Instruction = "POST_ONLY"
)

// OrderRequest is what a caller wants to trade. Price is ignored for market
// orders. A zero TickSize uses the client default.
type OrderRequest struct {
	Market      string
	Side        OrderSide
	Type        OrderType
	Size        decimal.Decimal
	Price       decimal.Decimal
	Instruction Instruction
	ClientID    string
	TickSize    decimal.Decimal
}

// Order is an order as reported by the exchange
type Order struct {
	ID            string          `json:"id"`
	Account       string          `json:"account,omitempty"`
	Market        string          `json:"market"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	RemainingSize decimal.Decimal `json:"remaining_size"`
	Status        string          `json:"status"`
	Instruction   string          `json:"instruction,omitempty"`
	ClientID      string          `json:"client_id,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CreatedAt     int64           `json:"created_at,omitempty"`
	LastUpdatedAt int64           `json:"last_updated_at,omitempty"`
	AvgFillPrice  string          `json:"avg_fill_price,omitempty"`
}

// Position is an open or closed position on one market
type Position struct {
	ID                string          `json:"id,omitempty"`
	Market            string          `json:"market"`
	Side              string          `json:"side"`
	Size              decimal.Decimal `json:"size"`
	Status            string          `json:"status"`
	AverageEntryPrice decimal.Decimal `json:"average_entry_price"`
	UnrealizedPnl     decimal.Decimal `json:"unrealized_pnl"`
	LiquidationPrice  string          `json:"liquidation_price,omitempty"`
	Leverage          string          `json:"leverage,omitempty"`
	CreatedAt         int64           `json:"created_at,omitempty"`
	LastUpdatedAt     int64           `json:"last_updated_at,omitempty"`
}

// IsOpen reports an OPEN position with a non-zero size
func (p Position) IsOpen() bool {
	return strings.EqualFold(p.Status, "OPEN") && !p.Size.IsZero()
}

// Balance is one token balance
type Balance struct {
	Token         string          `json:"token"`
	Size          decimal.Decimal `json:"size"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

// Account summarizes margin state
type Account struct {
	Account           string          `json:"account"`
	AccountValue      decimal.Decimal `json:"account_value"`
	FreeCollateral    decimal.Decimal `json:"free_collateral"`
	InitialMargin     decimal.Decimal `json:"initial_margin_requirement"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin_requirement"`
	MarginCushion     decimal.Decimal `json:"margin_cushion"`
	TotalCollateral   decimal.Decimal `json:"total_collateral"`
	Status            string          `json:"status"`
	UpdatedAt         int64           `json:"updated_at,omitempty"`
}

// Market is the static configuration of a market
type Market struct {
	Symbol        string          `json:"symbol"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	AssetKind     string          `json:"asset_kind,omitempty"`
	PriceTickSize decimal.Decimal `json:"price_tick_size"`
	OrderSizeIncr decimal.Decimal `json:"order_size_increment"`
	MinNotional   decimal.Decimal `json:"min_notional"`
	MaxOrderSize  decimal.Decimal `json:"max_order_size"`
}

// MarketSummary is the live trading state of a market
type MarketSummary struct {
	Symbol          string          `json:"symbol"`
	MarkPrice       decimal.Decimal `json:"mark_price"`
	LastTradedPrice decimal.Decimal `json:"last_traded_price"`
	Bid             decimal.Decimal `json:"bid"`
	Ask             decimal.Decimal `json:"ask"`
	Volume24h       decimal.Decimal `json:"volume_24h"`
	OpenInterest    decimal.Decimal `json:"open_interest"`
	FundingRate     decimal.Decimal `json:"funding_rate"`
	PriceChange24h  decimal.Decimal `json:"price_change_rate_24h"`
}

// BBO is the best bid and offer of a market
type BBO struct {
	Market        string          `json:"market"`
	Bid           decimal.Decimal `json:"bid"`
	BidSize       decimal.Decimal `json:"bid_size"`
	Ask           decimal.Decimal `json:"ask"`
	AskSize       decimal.Decimal `json:"ask_size"`
	LastUpdatedAt int64           `json:"last_updated_at"`
	SeqNo         int64           `json:"seq_no,omitempty"`
}

// Spread returns the ask minus bid and that gap as a percentage of the bid
func (b BBO) Spread() (decimal.Decimal, decimal.Decimal) {
	spread := b.Ask.Sub(b.Bid)
	if b.Bid.IsZero() {
		return spread, decimal.Zero
	}
	return spread, spread.Div(b.Bid).Mul(decimal.NewFromInt(100))
}

// results is the list wrapper used by every collection endpoint
type results[T any] struct {
	Results []T `json:"results"`
}
