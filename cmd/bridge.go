package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/bridge"
	"agent-tools/pkg/journal"
	"agent-tools/pkg/layerswap"
	"agent-tools/pkg/parser"
	"agent-tools/pkg/types"
)

var (
	bridgeTo          string
	bridgeFrom        string
	bridgeRefuel      bool
	bridgeReference   string
	bridgeMaxAttempts int
	bridgeInterval    time.Duration
	bridgeYes         bool

	routeSourceNetwork string
	routeSourceToken   string
	routeDestNetwork   string
	routeDestToken     string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Move tokens between networks with Layerswap",
	Long: `Bridge commands talk to the Layerswap API. Amount-bearing commands take the shorthand
'<amount> <token> from <network> to <network>' or
'<amount> <token> on <network> to <token> on <network>'.

Examples:
  agent-tools bridge routes --source-network ARBITRUM_MAINNET
  agent-tools bridge limits --source-network ARBITRUM_MAINNET --source-token ETH --destination-network BASE_MAINNET --destination-token ETH
  agent-tools bridge quote 0.1 ETH from ARBITRUM_MAINNET to BASE_MAINNET
  agent-tools bridge execute 0.1 ETH from ARBITRUM_MAINNET to PARADEX_MAINNET --to 0xabc...
  agent-tools bridge watch <swap-id>`,
}

var bridgeRoutesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List bridge networks and tokens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ls := layerswapClient()
		networks, err := withSpinner(cmd, "Fetching networks...", func() ([]layerswap.Network, error) {
			return ls.ListNetworks(cmd.Context(), routeSourceNetwork)
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(networks)
			return
		}
		displayNetworks(networks)
	},
}

var bridgeLimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the minimum and maximum amount for a route",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		route := types.Route{
			SourceNetwork:      routeSourceNetwork,
			SourceToken:        routeSourceToken,
			DestinationNetwork: routeDestNetwork,
			DestinationToken:   routeDestToken,
		}
		if err := route.Validate(); err != nil {
			fail(err)
		}
		ls := layerswapClient()
		limits, err := withSpinner(cmd, "Fetching limits...", func() (*types.Limits, error) {
			return ls.GetLimits(cmd.Context(), route, bridgeRefuel)
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(limits)
			return
		}
		fmt.Printf("\n  Route:  %s\n", color.CyanString(route.String()))
		fmt.Printf("  Min:    %s %s\n", limits.MinAmount.String(), route.SourceToken)
		fmt.Printf("  Max:    %s %s\n\n", limits.MaxAmount.String(), route.SourceToken)
	},
}

var bridgeQuoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> from <network> to <network>",
	Short: "Quote fees and received amount",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := bridgeRequest(args)
		ls := layerswapClient()
		quote, err := withSpinner(cmd, "Fetching quote...", func() (*types.Quote, error) {
			return ls.GetQuote(cmd.Context(), layerswap.QuoteRequest{
				Route:         req.Route,
				Amount:        req.Amount,
				Refuel:        req.Refuel,
				SourceAddress: bridgeFrom,
			})
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(quote)
			return
		}
		displayBridgeQuote(req, quote)
	},
}

var bridgeCreateCmd = &cobra.Command{
	Use:   "create <amount> <token> from <network> to <network>",
	Short: "Create a swap without funding it",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := bridgeRequest(args)
		req.SourceAddress = bridgeFrom
		ls := layerswapClient()
		swap, err := withSpinner(cmd, "Creating swap...", func() (*types.Swap, error) {
			return ls.CreateSwap(cmd.Context(), req)
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(swap)
			return
		}
		displaySwap(swap)
		fmt.Println("Fetch the deposit transaction with:")
		color.Cyan("  agent-tools bridge deposit-actions %s\n", swap.ID)
	},
}

var bridgeDepositActionsCmd = &cobra.Command{
	Use:   "deposit-actions <swap-id>",
	Short: "Show the transfers that fund a swap",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ls := layerswapClient()
		actions, err := withSpinner(cmd, "Fetching deposit actions...", func() ([]types.DepositAction, error) {
			return ls.GetDepositActions(cmd.Context(), args[0], bridgeFrom)
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(actions)
			return
		}
		for _, a := range actions {
			fmt.Printf("\n  #%d %s on %s\n", a.Order, a.Type, a.Network.Name)
			fmt.Printf("    To:       %s\n", color.CyanString(a.ToAddress))
			fmt.Printf("    Amount:   %s %s\n", a.Amount.String(), a.Token.Symbol)
			if a.CallData != "" {
				fmt.Printf("    Calldata: %s\n", color.HiBlackString(truncate(a.CallData, 66)))
			}
		}
		fmt.Println()
	},
}

var bridgeStatusCmd = &cobra.Command{
	Use:   "status <swap-id>",
	Short: "Show the status of a swap",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ls := layerswapClient()
		swap, err := withSpinner(cmd, "Checking swap status...", func() (*types.Swap, error) {
			return ls.GetSwap(cmd.Context(), args[0])
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(swap)
			return
		}
		displaySwap(swap)
	},
}

var bridgeWatchCmd = &cobra.Command{
	Use:   "watch <swap-id>",
	Short: "Poll a swap until it completes or fails",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ls := layerswapClient()
		poller := layerswap.NewPoller(ls)
		if bridgeInterval > 0 {
			poller.Interval = bridgeInterval
		}
		if bridgeMaxAttempts > 0 {
			poller.MaxAttempts = bridgeMaxAttempts
		}

		if !jsonFlag(cmd) {
			fmt.Printf("\nWatching swap %s\n", color.CyanString(args[0]))
			fmt.Printf("Checking every %s, at most %d times. Press Ctrl+C to stop.\n", poller.Interval, poller.MaxAttempts)
		}
		swap, err := poller.PollUntilTerminal(cmd.Context(), args[0])
		switch {
		case err == nil:
			if jsonFlag(cmd) {
				printJSON(swap)
				return
			}
			displaySwap(swap)
		case errors.Is(err, layerswap.ErrPollBudgetExhausted) && swap != nil:
			color.Yellow("\n%s", bridge.PendingMessage)
			displaySwap(swap)
		default:
			fail(err)
		}
	},
}

var bridgeExecuteCmd = &cobra.Command{
	Use:   "execute <amount> <token> from <network> to <network>",
	Short: "Run the whole bridge: limits, quote, swap, deposit and polling",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := bridgeRequest(args)
		req.SourceAddress = bridgeFrom
		req.ReferenceID = bridgeReference

		a := loadAgent(cmd.Context())
		defer a.Close()
		if a.Bridge == nil {
			fail(apperr.New(apperr.KindConfig, "bridge", "Layerswap API key is not set (layerswap.api_key)"))
		}

		if !jsonFlag(cmd) && !bridgeYes {
			fmt.Printf("\n  Route:        %s\n", color.CyanString(req.Route.String()))
			fmt.Printf("  Amount:       %s %s\n", req.Amount.String(), color.YellowString(req.SourceToken))
			fmt.Printf("  Destination:  %s\n", req.DestinationAddress)
			if !confirm("Proceed with bridge?") {
				fail(fmt.Errorf("bridge cancelled by user"))
			}
		}

		res, _ := withSpinner(cmd, "Bridging...", func() (types.Result, error) {
			return a.Bridge.Execute(cmd.Context(), bridge.ExecuteParams{
				BridgeRequest:   req,
				PollInterval:    bridgeInterval,
				MaxPollAttempts: bridgeMaxAttempts,
			}), nil
		})
		printResult(cmd, res)
	},
}

var bridgeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List bridges started from this machine",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := journal.Open(cmd.Context(), appConfig.Journal)
		if err != nil {
			fail(err)
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("\nNo bridges recorded yet.")
			return
		}
		fmt.Println("\n" + strings.Repeat("=", 90))
		for _, e := range entries {
			fmt.Printf("  %s  %-10s %s  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				coloredJournalStatus(e.Status),
				color.CyanString(e.ReferenceID),
				e.Route)
			if e.SwapID != "" {
				fmt.Printf("      swap %s  tx %s\n", e.SwapID, color.HiBlackString(e.SourceTx))
			}
			if e.Error != "" {
				fmt.Printf("      %s\n", color.RedString(truncate(e.Error, 80)))
			}
		}
		fmt.Println(strings.Repeat("=", 90) + "\n")
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.AddCommand(bridgeRoutesCmd, bridgeLimitsCmd, bridgeQuoteCmd, bridgeCreateCmd,
		bridgeDepositActionsCmd, bridgeStatusCmd, bridgeWatchCmd, bridgeExecuteCmd, bridgeHistoryCmd)

	bridgeRoutesCmd.Flags().StringVar(&routeSourceNetwork, "source-network", "", "Only show this network")

	bridgeLimitsCmd.Flags().StringVar(&routeSourceNetwork, "source-network", "", "Source network (required)")
	bridgeLimitsCmd.Flags().StringVar(&routeSourceToken, "source-token", "", "Source token (required)")
	bridgeLimitsCmd.Flags().StringVar(&routeDestNetwork, "destination-network", "", "Destination network (required)")
	bridgeLimitsCmd.Flags().StringVar(&routeDestToken, "destination-token", "", "Destination token (required)")

	for _, c := range []*cobra.Command{bridgeLimitsCmd, bridgeQuoteCmd, bridgeCreateCmd, bridgeExecuteCmd} {
		c.Flags().BoolVar(&bridgeRefuel, "refuel", false, "Also deliver native gas on the destination")
	}
	for _, c := range []*cobra.Command{bridgeQuoteCmd, bridgeCreateCmd, bridgeDepositActionsCmd, bridgeExecuteCmd} {
		c.Flags().StringVar(&bridgeFrom, "from", "", "Source address (defaults to the configured wallet)")
	}
	for _, c := range []*cobra.Command{bridgeCreateCmd, bridgeExecuteCmd} {
		c.Flags().StringVar(&bridgeTo, "to", "", "Destination address (REQUIRED)")
	}
	for _, c := range []*cobra.Command{bridgeWatchCmd, bridgeExecuteCmd} {
		c.Flags().IntVar(&bridgeMaxAttempts, "max-attempts", 0, "Maximum status polls (default from config)")
		c.Flags().DurationVar(&bridgeInterval, "interval", 0, "Delay between status polls (default from config)")
	}
	bridgeCreateCmd.Flags().StringVar(&bridgeReference, "reference-id", "", "Reference id attached to the swap")
	bridgeExecuteCmd.Flags().StringVar(&bridgeReference, "reference-id", "", "Idempotency key (generated when empty)")
	bridgeExecuteCmd.Flags().BoolVarP(&bridgeYes, "yes", "y", false, "Skip confirmation prompt")
}

// bridgeRequest parses the shorthand args into a request
func bridgeRequest(args []string) types.BridgeRequest {
	parsed, err := parser.ParseCommand(strings.Join(args, " "))
	if err != nil {
		fail(err)
	}
	if !parsed.IsBridge() {
		fail(fmt.Errorf("both networks are required, e.g. '0.1 ETH from ARBITRUM_MAINNET to BASE_MAINNET'"))
	}
	req := types.BridgeRequest{
		Route: types.Route{
			SourceNetwork:      parsed.SourceNetwork,
			SourceToken:        parsed.SourceToken,
			DestinationNetwork: parsed.DestinationNetwork,
			DestinationToken:   parsed.DestinationToken,
		},
		DestinationAddress: bridgeTo,
		Amount:             parsed.Amount,
		Refuel:             bridgeRefuel,
		ReferenceID:        bridgeReference,
	}
	return req
}

func layerswapClient() *layerswap.Client {
	ls, err := layerswap.NewClient(layerswap.Config{
		APIKey:         appConfig.Layerswap.APIKey,
		BaseURL:        appConfig.Layerswap.BaseURL,
		AccountAddress: appConfig.Layerswap.AccountAddress,
		Timeout:        appConfig.HTTP.Timeout,
	})
	if err != nil {
		fail(err)
	}
	return ls
}

func displayNetworks(networks []layerswap.Network) {
	if len(networks) == 0 {
		fmt.Println("\nNo networks found matching the criteria.")
		return
	}
	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            BRIDGE NETWORKS")
	fmt.Println(strings.Repeat("=", 90))
	for _, n := range networks {
		color.Cyan("\n%s (%s)", n.Name, n.DisplayName)
		symbols := make([]string, 0, len(n.Tokens))
		for _, t := range n.Tokens {
			symbols = append(symbols, t.Symbol)
		}
		fmt.Printf("  %s\n", strings.Join(symbols, ", "))
	}
	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}

func displayBridgeQuote(req types.BridgeRequest, q *types.Quote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     BRIDGE QUOTE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Route:             %s\n", color.CyanString(req.Route.String()))
	fmt.Printf("  Send:              %s %s\n", req.Amount.String(), color.YellowString(req.SourceToken))
	fmt.Printf("  Receive:           ~%s %s\n", q.DestinationAmount.String(), color.YellowString(req.DestinationToken))
	fmt.Printf("  Total Fee:         %s\n", q.TotalFee.String())
	if q.AvgCompletionTime != "" {
		fmt.Printf("  Estimated Time:    %s\n", q.AvgCompletionTime)
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displaySwap(s *types.Swap) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Swap ID:         %s\n", color.CyanString(s.ID))
	fmt.Printf("  Status:          %s\n", coloredSwapStatus(s.Status))
	if s.SourceNetwork != "" {
		fmt.Printf("  Route:           %s:%s -> %s:%s\n", s.SourceNetwork, s.SourceToken, s.DestinationNetwork, s.DestinationToken)
	}
	if !s.RequestedAmount.IsZero() {
		fmt.Printf("  Amount:          %s\n", s.RequestedAmount.String())
	}
	if in := s.InputTransaction(); in != nil {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(in.TransactionHash))
	}
	if out := s.OutputTransaction(); out != nil {
		fmt.Printf("  Payout Tx:       %s\n", color.HiBlackString(out.TransactionHash))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredSwapStatus(s types.SwapStatus) string {
	switch {
	case s == types.SwapCompleted:
		return color.GreenString(string(s))
	case s.IsFailure():
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func coloredJournalStatus(s journal.Status) string {
	switch s {
	case journal.StatusSuccess:
		return color.GreenString(string(s))
	case journal.StatusError:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
