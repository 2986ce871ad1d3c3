package paradex

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/apperr"
)

const (
	ProdBaseURL    = "https://api.prod.paradex.trade/v1"
	TestnetBaseURL = "https://api.testnet.paradex.trade/v1"

	prodChain    = "PRIVATE_SN_PARACLEAR_MAINNET"
	testnetChain = "PRIVATE_SN_POTC_SEPOLIA"

	// DefaultAuthExpiry is how long a signed auth request stays valid
	DefaultAuthExpiry = 24 * time.Hour
)

// DefaultTickSize is used when the market's tick is unknown
var DefaultTickSize = decimal.RequireFromString("0.1")

// Environment is one Paradex deployment
type Environment struct {
	Name    string
	BaseURL string
	ChainID string
}

// EnvironmentFor resolves prod, mainnet or testnet
func EnvironmentFor(network string) (Environment, error) {
	switch strings.ToLower(network) {
	case "prod", "mainnet":
		return Environment{Name: "prod", BaseURL: ProdBaseURL, ChainID: ShortString(prodChain)}, nil
	case "", "testnet":
		return Environment{Name: "testnet", BaseURL: TestnetBaseURL, ChainID: ShortString(testnetChain)}, nil
	default:
		return Environment{}, apperr.Newf(apperr.KindConfig, "paradex", "unknown network %q (want prod or testnet)", network)
	}
}

// ShortString encodes an ASCII string as a Starknet felt in hex
func ShortString(s string) string {
	return "0x" + hex.EncodeToString([]byte(s))
}

// Config holds the account and endpoint settings
type Config struct {
	Network         string
	BaseURL         string
	AccountAddress  string
	PublicKey       string
	EthereumAccount string
	AuthExpiry      time.Duration
	DefaultTickSize decimal.Decimal
	Timeout         time.Duration
}
