package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Route identifies a source/destination network and token pair
type Route struct {
	SourceNetwork      string `json:"source_network"`
	SourceToken        string `json:"source_token"`
	DestinationNetwork string `json:"destination_network"`
	DestinationToken   string `json:"destination_token"`
}

// Validate checks that every leg of the route is set
func (r Route) Validate() error {
	switch {
	case strings.TrimSpace(r.SourceNetwork) == "":
		return fmt.Errorf("source network is required")
	case strings.TrimSpace(r.SourceToken) == "":
		return fmt.Errorf("source token is required")
	case strings.TrimSpace(r.DestinationNetwork) == "":
		return fmt.Errorf("destination network is required")
	case strings.TrimSpace(r.DestinationToken) == "":
		return fmt.Errorf("destination token is required")
	}
	return nil
}

func (r Route) String() string {
	return fmt.Sprintf("%s:%s -> %s:%s", r.SourceNetwork, r.SourceToken, r.DestinationNetwork, r.DestinationToken)
}

// BridgeRequest represents a request to move funds across networks
type BridgeRequest struct {
	Route
	SourceAddress      string          `json:"source_address,omitempty"`
	DestinationAddress string          `json:"destination_address"`
	Amount             decimal.Decimal `json:"amount"`
	Refuel             bool            `json:"refuel,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
}

// Validate checks the invariants that do not need the remote service
func (r *BridgeRequest) Validate() error {
	if err := r.Route.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.DestinationAddress) == "" {
		return fmt.Errorf("destination address is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}
	return nil
}

// Limits are the min/max transferable amounts for a route
type Limits struct {
	MinAmount decimal.Decimal `json:"min_amount"`
	MaxAmount decimal.Decimal `json:"max_amount"`
}

// Contains reports whether amount lies within [min, max]
func (l Limits) Contains(amount decimal.Decimal) bool {
	return !amount.LessThan(l.MinAmount) && !amount.GreaterThan(l.MaxAmount)
}

// Quote is a momentary price for a prospective transfer
type Quote struct {
	Fee               decimal.Decimal `json:"fee"`
	DestinationAmount decimal.Decimal `json:"destination_amount"`
	BlockchainFee     decimal.Decimal `json:"blockchain_fee"`
	ServiceFee        decimal.Decimal `json:"service_fee"`
	TotalFee          decimal.Decimal `json:"total_fee"`
	AvgCompletionTime string          `json:"avg_completion_time,omitempty"`
}

// SwapStatus is the lifecycle state reported by the bridge
type SwapStatus string

const (
	SwapPending    SwapStatus = "user_transfer_pending"
	SwapProcessing SwapStatus = "ls_transfer_pending"
	SwapCompleted  SwapStatus = "completed"
	SwapFailed     SwapStatus = "failed"
	SwapCancelled  SwapStatus = "cancelled"
	SwapExpired    SwapStatus = "expired"
	SwapRefunded   SwapStatus = "refunded"
)

// IsTerminal reports whether no further transitions will happen
func (s SwapStatus) IsTerminal() bool {
	return s == SwapCompleted || s.IsFailure()
}

// IsFailure reports whether the swap ended without delivering funds
func (s SwapStatus) IsFailure() bool {
	switch s {
	case SwapFailed, SwapCancelled, SwapExpired, SwapRefunded:
		return true
	}
	return false
}

// Transaction is one on-chain leg of a swap
type Transaction struct {
	Type            string          `json:"type"` // input, output, refuel
	TransactionHash string          `json:"transaction_hash"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status,omitempty"`
	From            string          `json:"from,omitempty"`
	To              string          `json:"to,omitempty"`
}

// Swap is a read-only snapshot of a remote swap
type Swap struct {
	ID                 string          `json:"id"`
	Status             SwapStatus      `json:"status"`
	SourceNetwork      string          `json:"source_network"`
	SourceToken        string          `json:"source_token"`
	DestinationNetwork string          `json:"destination_network"`
	DestinationToken   string          `json:"destination_token"`
	RequestedAmount    decimal.Decimal `json:"requested_amount"`
	DestinationAddress string          `json:"destination_address"`
	DepositAddress     string          `json:"deposit_address,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
	CreatedDate        string          `json:"created_date,omitempty"`
	Transactions       []Transaction   `json:"transactions,omitempty"`
}

// InputTransaction returns the source-chain transaction, if any
func (s *Swap) InputTransaction() *Transaction {
	return s.transaction("input")
}

// OutputTransaction returns the destination-chain transaction, if any
func (s *Swap) OutputTransaction() *Transaction {
	return s.transaction("output")
}

func (s *Swap) transaction(kind string) *Transaction {
	for i := range s.Transactions {
		if strings.EqualFold(s.Transactions[i].Type, kind) {
			return &s.Transactions[i]
		}
	}
	return nil
}

// DepositToken describes the asset a deposit action moves. Decimals is nil
// when the bridge did not state it; 0 is a valid precision.
type DepositToken struct {
	Symbol   string `json:"symbol"`
	Contract string `json:"contract,omitempty"`
	Decimals *int32 `json:"decimals,omitempty"`
}

// DecimalsOr returns the stated decimals or fallback when unset
func (t DepositToken) DecimalsOr(fallback int32) int32 {
	if t.Decimals == nil {
		return fallback
	}
	return *t.Decimals
}

// DepositNetwork describes the chain a deposit action runs on
type DepositNetwork struct {
	Name    string `json:"name"`
	ChainID string `json:"chain_id,omitempty"`
}

// DepositAction is the instruction the client must execute on-chain to fund a swap
type DepositAction struct {
	Type              string          `json:"type"`
	ToAddress         string          `json:"to_address"`
	CallData          string          `json:"call_data,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	AmountInBaseUnits string          `json:"amount_in_base_units,omitempty"`
	Order             int             `json:"order"`
	Token             DepositToken    `json:"token"`
	Network           DepositNetwork  `json:"network"`
}

// IsNative reports whether the action moves the chain's native asset
func (d *DepositAction) IsNative() bool {
	c := strings.TrimSpace(d.Token.Contract)
	return c == "" || strings.TrimLeft(strings.TrimPrefix(strings.ToLower(c), "0x"), "0") == ""
}
