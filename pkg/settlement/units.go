package settlement

import (
	"fmt"
	"math/big"
	"strings"

	"agent-tools/pkg/types"
)

// DefaultDecimals is assumed for EVM tokens when a deposit action does not
// state token decimals
const DefaultDecimals = 18

// BaseUnits returns the integer amount the transaction must move. An explicit
// base-unit amount wins; otherwise the decimal amount is shifted by the token
// decimals (fallback when unset) and must not carry a fractional remainder.
// The result is always positive.
func BaseUnits(action types.DepositAction, fallback int32) (*big.Int, error) {
	if s := strings.TrimSpace(action.AmountInBaseUnits); s != "" {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid base unit amount: %s", s)
		}
		if v.Sign() <= 0 {
			return nil, fmt.Errorf("base unit amount must be greater than 0: %s", s)
		}
		return v, nil
	}

	decimals := action.Token.DecimalsOr(fallback)
	if decimals < 0 {
		return nil, fmt.Errorf("invalid token decimals: %d", decimals)
	}
	if !action.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than 0")
	}

	shifted := action.Amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", action.Amount.String(), decimals)
	}
	return shifted.BigInt(), nil
}
