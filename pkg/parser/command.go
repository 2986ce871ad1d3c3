package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"agent-tools/pkg/types"
)

// Command is a parsed transfer shorthand. Networks are empty when the
// command did not name them.
type Command struct {
	Amount             decimal.Decimal
	SourceToken        string
	SourceNetwork      string
	DestinationToken   string
	DestinationNetwork string
}

// <amount> <token> [from|on <network>] to <token|network> [on <network>]
var commandPattern = regexp.MustCompile(
	`^(?:(?:SWAP|BRIDGE)\s+)?(\d+(?:\.\d+)?)\s+([A-Z0-9.]+)(?:\s+(FROM|ON)\s+([A-Z0-9_]+))?\s+TO\s+([A-Z0-9_.]+)(?:\s+ON\s+([A-Z0-9_]+))?$`)

// ParseCommand parses shorthand such as
//   - "swap 1 SOL to USDC"
//   - "bridge 0.1 ETH from ARBITRUM_MAINNET to BASE_MAINNET"
//   - "25 USDC on ARBITRUM_MAINNET to ETH on PARADEX_MAINNET"
func ParseCommand(command string) (*Command, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	m := commandPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("invalid command format. Expected: '<amount> <token> from <network> to <network>' or '<amount> <token> to <token>'")
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", m[1], err)
	}

	cmd := &Command{
		Amount:        amount,
		SourceToken:   m[2],
		SourceNetwork: m[4],
	}
	switch {
	case m[3] == "FROM" && m[6] == "":
		// same token moved between networks
		cmd.DestinationToken = m[2]
		cmd.DestinationNetwork = m[5]
	default:
		cmd.DestinationToken = m[5]
		cmd.DestinationNetwork = m[6]
	}
	return cmd, nil
}

// IsBridge reports whether both networks are known
func (c *Command) IsBridge() bool {
	return c.SourceNetwork != "" && c.DestinationNetwork != ""
}

// BridgeRequest turns the command into a bridge request for destination
func (c *Command) BridgeRequest(destinationAddress string) (types.BridgeRequest, error) {
	if !c.IsBridge() {
		return types.BridgeRequest{}, fmt.Errorf("source and destination networks are required for a bridge")
	}
	req := types.BridgeRequest{
		Route: types.Route{
			SourceNetwork:      c.SourceNetwork,
			SourceToken:        c.SourceToken,
			DestinationNetwork: c.DestinationNetwork,
			DestinationToken:   c.DestinationToken,
		},
		DestinationAddress: destinationAddress,
		Amount:             c.Amount,
	}
	return req, req.Validate()
}
