package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"agent-tools/pkg/agent"
	"agent-tools/pkg/paradex"
)

var (
	orderMarket      string
	orderInstruction string
	orderClientID    string
	orderYes         bool
)

var paradexCmd = &cobra.Command{
	Use:   "paradex",
	Short: "Trade perpetuals on Paradex",
	Long: `Paradex commands. Private commands authenticate through the signer configured
in paradex.signer_url.

Examples:
  agent-tools paradex markets
  agent-tools paradex bbo ETH-USD-PERP
  agent-tools paradex place ETH-USD-PERP long 0.5 3000.12
  agent-tools paradex place BTC-USD-PERP short 0.01
  agent-tools paradex cancel-all --market ETH-USD-PERP`,
}

var paradexOnboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Register the configured account with Paradex",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		if _, err := withSpinner(cmd, "Onboarding...", func() (struct{}, error) {
			return struct{}{}, c.Onboard(cmd.Context())
		}); err != nil {
			fail(err)
		}
		printSuccess(color.GreenString("✓ Account %s onboarded on %s", appConfig.Paradex.AccountAddress, c.Environment().Name))
	},
}

var paradexMarketsCmd = &cobra.Command{
	Use:   "markets [market]",
	Short: "List markets, or show one market with its trading info",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		if len(args) == 1 {
			showMarket(cmd, c, args[0])
			return
		}
		markets, err := withSpinner(cmd, "Fetching markets...", func() ([]paradex.Market, error) {
			return c.Markets(cmd.Context())
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(markets)
			return
		}
		fmt.Println("\n" + strings.Repeat("=", 70))
		color.Green("                        PARADEX MARKETS")
		fmt.Println(strings.Repeat("=", 70))
		for _, m := range markets {
			fmt.Printf("  %-20s tick %-10s min notional %s\n",
				color.YellowString(m.Symbol), m.PriceTickSize.String(), m.MinNotional.String())
		}
		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("\nTotal: %d markets\n\n", len(markets))
	},
}

var paradexBBOCmd = &cobra.Command{
	Use:   "bbo <market>",
	Short: "Show the best bid and offer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		bbo, err := withSpinner(cmd, "Fetching BBO...", func() (*paradex.BBO, error) {
			return authed(cmd, c, func(s *paradex.Session) (*paradex.BBO, error) {
				return c.BBO(cmd.Context(), s, args[0])
			})
		})
		if err != nil {
			fail(err)
		}
		spread, pct := bbo.Spread()
		if jsonFlag(cmd) {
			printJSON(agent.BBOResult{
				Market: bbo.Market, Bid: bbo.Bid, BidSize: bbo.BidSize, Ask: bbo.Ask, AskSize: bbo.AskSize,
				Spread: spread, SpreadPercent: pct.StringFixed(4) + "%", LastUpdatedAt: bbo.LastUpdatedAt,
			})
			return
		}
		fmt.Printf("\n  Market:  %s\n", color.CyanString(bbo.Market))
		fmt.Printf("  Bid:     %s  (%s)\n", color.GreenString(bbo.Bid.String()), bbo.BidSize.String())
		fmt.Printf("  Ask:     %s  (%s)\n", color.RedString(bbo.Ask.String()), bbo.AskSize.String())
		fmt.Printf("  Spread:  %s (%s%%)\n\n", spread.String(), pct.StringFixed(4))
	},
}

var paradexBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show token balances and account margin",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		type summary struct {
			Balances []paradex.Balance `json:"balances"`
			Account  *paradex.Account  `json:"account"`
		}
		out, err := withSpinner(cmd, "Fetching balances...", func() (summary, error) {
			return authed(cmd, c, func(s *paradex.Session) (summary, error) {
				balances, err := c.Balances(cmd.Context(), s)
				if err != nil {
					return summary{}, err
				}
				account, err := c.Account(cmd.Context(), s)
				return summary{Balances: balances, Account: account}, err
			})
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(out)
			return
		}
		fmt.Println()
		for _, b := range out.Balances {
			fmt.Printf("  %-8s %s\n", color.YellowString(b.Token), b.Size.String())
		}
		if out.Account != nil {
			fmt.Printf("\n  Account value:    %s\n", out.Account.AccountValue.String())
			fmt.Printf("  Free collateral:  %s\n", out.Account.FreeCollateral.String())
			fmt.Printf("  Status:           %s\n", out.Account.Status)
		}
		fmt.Println()
	},
}

var paradexPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		positions, err := withSpinner(cmd, "Fetching positions...", func() ([]paradex.Position, error) {
			return authed(cmd, c, func(s *paradex.Session) ([]paradex.Position, error) {
				return c.Positions(cmd.Context(), s, orderMarket)
			})
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(positions)
			return
		}
		if len(positions) == 0 {
			fmt.Println("\nNo open positions.")
			return
		}
		fmt.Println()
		for _, p := range positions {
			pnl := color.GreenString(p.UnrealizedPnl.String())
			if p.UnrealizedPnl.IsNegative() {
				pnl = color.RedString(p.UnrealizedPnl.String())
			}
			fmt.Printf("  %-16s %-6s size %-12s entry %-12s pnl %s\n",
				color.YellowString(p.Market), p.Side, p.Size.String(), p.AverageEntryPrice.String(), pnl)
		}
		fmt.Println()
	},
}

var paradexOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List open orders",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		orders, err := withSpinner(cmd, "Fetching orders...", func() ([]paradex.Order, error) {
			return authed(cmd, c, func(s *paradex.Session) ([]paradex.Order, error) {
				return c.OpenOrders(cmd.Context(), s, orderMarket)
			})
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(orders)
			return
		}
		if len(orders) == 0 {
			fmt.Println("\nNo open orders.")
			return
		}
		fmt.Println()
		for _, o := range orders {
			fmt.Printf("  %s  %-16s %-4s %-6s %s @ %s  (%s left)\n",
				color.HiBlackString(o.ID), color.YellowString(o.Market), o.Side, o.Type,
				o.Size.String(), o.Price.String(), o.RemainingSize.String())
		}
		fmt.Println()
	},
}

var paradexPlaceCmd = &cobra.Command{
	Use:   "place <market> <long|short> <size> [price]",
	Short: "Place a limit order, or a market order when no price is given",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		side, ok := paradex.ParseSide(args[1])
		if !ok {
			fail(fmt.Errorf("invalid side %q: use long, short, buy or sell", args[1]))
		}
		size, err := decimal.NewFromString(args[2])
		if err != nil {
			fail(fmt.Errorf("invalid size %q: %w", args[2], err))
		}
		req := paradex.OrderRequest{
			Market:      strings.ToUpper(args[0]),
			Side:        side,
			Type:        paradex.OrderMarket,
			Size:        size,
			Instruction: paradex.Instruction(strings.ToUpper(orderInstruction)),
			ClientID:    orderClientID,
		}
		if len(args) == 4 {
			if req.Price, err = decimal.NewFromString(args[3]); err != nil {
				fail(fmt.Errorf("invalid price %q: %w", args[3], err))
			}
			req.Type = paradex.OrderLimit
		}

		c := paradexClient()
		if err := c.ValidateOrder(req); err != nil {
			fail(err)
		}
		if req.Type == paradex.OrderLimit {
			req.TickSize = c.TickSize(cmd.Context(), req.Market)
		}

		if !orderYes && !jsonFlag(cmd) {
			fmt.Printf("\n  %s %s %s %s", req.Type, req.Side, paradex.FormatSize(req.Size), color.YellowString(req.Market))
			if req.Type == paradex.OrderLimit {
				fmt.Printf(" @ %s", paradex.FormatPrice(req.Price, req.TickSize))
			}
			fmt.Println()
			if !confirm("Place order?") {
				fail(fmt.Errorf("order cancelled by user"))
			}
		}

		order, err := withSpinner(cmd, "Placing order...", func() (*paradex.Order, error) {
			return authed(cmd, c, func(s *paradex.Session) (*paradex.Order, error) {
				return c.PlaceOrder(cmd.Context(), s, req)
			})
		})
		if err != nil {
			fail(err)
		}
		if jsonFlag(cmd) {
			printJSON(order)
			return
		}
		printSuccess(fmt.Sprintf("%s Order %s %s", color.GreenString("✓"), color.CyanString(order.ID), order.Status))
	},
}

var paradexCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel one order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		if _, err := withSpinner(cmd, "Cancelling order...", func() (struct{}, error) {
			return authed(cmd, c, func(s *paradex.Session) (struct{}, error) {
				return struct{}{}, c.CancelOrder(cmd.Context(), s, args[0])
			})
		}); err != nil {
			fail(err)
		}
		printSuccess(color.GreenString("✓ Cancel requested for %s", args[0]))
	},
}

var paradexCancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Cancel all open orders, optionally on one market",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := paradexClient()
		if _, err := withSpinner(cmd, "Cancelling orders...", func() (struct{}, error) {
			return authed(cmd, c, func(s *paradex.Session) (struct{}, error) {
				return struct{}{}, c.CancelAllOrders(cmd.Context(), s, orderMarket)
			})
		}); err != nil {
			fail(err)
		}
		printSuccess(color.GreenString("✓ Cancel requested for all open orders"))
	},
}

func init() {
	rootCmd.AddCommand(paradexCmd)
	paradexCmd.AddCommand(paradexOnboardCmd, paradexMarketsCmd, paradexBBOCmd, paradexBalanceCmd,
		paradexPositionsCmd, paradexOrdersCmd, paradexPlaceCmd, paradexCancelCmd, paradexCancelAllCmd)

	for _, c := range []*cobra.Command{paradexPositionsCmd, paradexOrdersCmd, paradexCancelAllCmd} {
		c.Flags().StringVar(&orderMarket, "market", "", "Restrict to one market")
	}
	paradexPlaceCmd.Flags().StringVar(&orderInstruction, "instruction", "GTC", "Time in force: GTC, IOC or POST_ONLY")
	paradexPlaceCmd.Flags().StringVar(&orderClientID, "client-id", "", "Client order id")
	paradexPlaceCmd.Flags().BoolVarP(&orderYes, "yes", "y", false, "Skip confirmation prompt")
}

func paradexClient() *paradex.Client {
	c, err := agent.NewParadexClient(appConfig)
	if err != nil {
		fail(err)
	}
	return c
}

// authed opens a session and runs fn with it
func authed[T any](cmd *cobra.Command, c *paradex.Client, fn func(*paradex.Session) (T, error)) (T, error) {
	s, err := c.Authenticate(cmd.Context())
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(s)
}

func showMarket(cmd *cobra.Command, c *paradex.Client, symbol string) {
	type details struct {
		Market  *paradex.Market        `json:"market"`
		Summary *paradex.MarketSummary `json:"summary"`
	}
	out, err := withSpinner(cmd, "Fetching market...", func() (details, error) {
		m, err := c.Market(cmd.Context(), symbol)
		if err != nil {
			return details{}, err
		}
		summary, err := c.MarketSummary(cmd.Context(), symbol)
		return details{Market: m, Summary: summary}, err
	})
	if err != nil {
		fail(err)
	}
	if jsonFlag(cmd) {
		printJSON(out)
		return
	}
	m, s := out.Market, out.Summary
	fmt.Printf("\n  Market:         %s (%s/%s)\n", color.CyanString(m.Symbol), m.BaseCurrency, m.QuoteCurrency)
	fmt.Printf("  Tick size:      %s\n", m.PriceTickSize.String())
	fmt.Printf("  Size step:      %s\n", m.OrderSizeIncr.String())
	fmt.Printf("  Min notional:   %s\n", m.MinNotional.String())
	fmt.Printf("  Mark price:     %s\n", s.MarkPrice.String())
	fmt.Printf("  Bid / Ask:      %s / %s\n", s.Bid.String(), s.Ask.String())
	fmt.Printf("  24h volume:     %s\n", s.Volume24h.String())
	fmt.Printf("  Funding rate:   %s\n\n", s.FundingRate.String())
}
