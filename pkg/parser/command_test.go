package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in                                     string
		amount, srcTok, srcNet, dstTok, dstNet string
	}{
		{"swap 1 SOL to USDC", "1", "SOL", "", "USDC", ""},
		{"1.5 eth to btc", "1.5", "ETH", "", "BTC", ""},
		{"bridge 0.1 ETH from ARBITRUM_MAINNET to BASE_MAINNET", "0.1", "ETH", "ARBITRUM_MAINNET", "ETH", "BASE_MAINNET"},
		{"25  usdc on arbitrum_mainnet to eth on paradex_mainnet", "25", "USDC", "ARBITRUM_MAINNET", "ETH", "PARADEX_MAINNET"},
		{"10 USDC.E from POLYGON_MAINNET to USDC on BASE_MAINNET", "10", "USDC.E", "POLYGON_MAINNET", "USDC", "BASE_MAINNET"},
	}
	for _, tc := range cases {
		cmd, err := ParseCommand(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.amount, cmd.Amount.String(), tc.in)
		assert.Equal(t, tc.srcTok, cmd.SourceToken, tc.in)
		assert.Equal(t, tc.srcNet, cmd.SourceNetwork, tc.in)
		assert.Equal(t, tc.dstTok, cmd.DestinationToken, tc.in)
		assert.Equal(t, tc.dstNet, cmd.DestinationNetwork, tc.in)
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, in := range []string{"", "swap SOL to USDC", "1 SOL", "1 SOL into USDC", "-1 SOL to USDC"} {
		_, err := ParseCommand(in)
		assert.Error(t, err, in)
	}
}

func TestBridgeRequest(t *testing.T) {
	cmd, err := ParseCommand("0.1 ETH from ARBITRUM_MAINNET to BASE_MAINNET")
	require.NoError(t, err)
	require.True(t, cmd.IsBridge())

	req, err := cmd.BridgeRequest("0xdest")
	require.NoError(t, err)
	assert.Equal(t, "ARBITRUM_MAINNET:ETH -> BASE_MAINNET:ETH", req.Route.String())
	assert.Equal(t, "0xdest", req.DestinationAddress)

	swap, err := ParseCommand("1 SOL to USDC")
	require.NoError(t, err)
	_, err = swap.BridgeRequest("0xdest")
	assert.Error(t, err)
}
