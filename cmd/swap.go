package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-tools/pkg/oneclick"
	"agent-tools/pkg/parser"
)

var (
	fromChain     string
	toChain       string
	recipientAddr string
	refundAddr    string
	executeQuote  bool
	noConfirm     bool
)

var swapCmd = &cobra.Command{
	Use:     "oneclick-quote <amount> <source-token> to <dest-token>",
	Aliases: []string{"swap"},
	Short:   "Quote a cross-chain swap through the 1Click aggregator",
	Long: `Quote a swap using the NEAR Intents 1Click API.

By default the quote is a dry run and reserves nothing. With --execute the
aggregator issues a deposit address and the swap starts once it is funded.

IMPORTANT:
  - You MUST specify --recipient (where you'll receive tokens)
  - You SHOULD specify --refund-to for cross-chain swaps (defaults to the recipient)

Examples:
  agent-tools oneclick-quote 1 SOL to USDC --from-chain sol --to-chain near --recipient your.near
  agent-tools oneclick-quote 0.5 ETH to USDC --from-chain eth --to-chain eth --recipient 0x123... --execute`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source blockchain (optional)")
	swapCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination blockchain (optional)")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (REQUIRED - where you'll receive tokens)")
	swapCmd.Flags().StringVar(&refundAddr, "refund-to", "", "Refund address on source chain (optional - where refunds go if swap fails)")
	swapCmd.Flags().BoolVar(&executeQuote, "execute", false, "Request a real quote with a deposit address")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	parsed, err := parser.ParseCommand(strings.Join(args, " "))
	if err != nil {
		fail(err)
	}

	req := oneclick.QuoteRequest{
		SourceToken: parsed.SourceToken,
		SourceChain: firstNonEmpty(fromChain, parsed.SourceNetwork),
		DestToken:   parsed.DestinationToken,
		DestChain:   firstNonEmpty(toChain, parsed.DestinationNetwork),
		Amount:      parsed.Amount,
		Recipient:   recipientAddr,
		RefundTo:    refundAddr,
		Dry:         !executeQuote,
	}

	if executeQuote && !noConfirm && !jsonFlag(cmd) {
		fmt.Printf("\n  Swap %s %s to %s for %s\n", req.Amount.String(), req.SourceToken, req.DestToken, req.Recipient)
		if !confirm("Request a deposit address for this swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	c := oneclickClient()
	quote, err := withSpinner(cmd, "Fetching quote...", func() (*oneclick.Quote, error) {
		return c.Quote(cmd.Context(), req)
	})
	if err != nil {
		fail(err)
	}

	if jsonFlag(cmd) {
		printJSON(quote)
		return
	}
	displayQuote(quote, req)
	if quote.DepositAddress == "" {
		fmt.Println("This was a dry run. Re-run with --execute to get a deposit address.")
		return
	}
	displayDepositInstructions(quote, req)
	fmt.Println("You can monitor the swap status using:")
	color.Cyan("  agent-tools oneclick-status %s\n", quote.DepositAddress)
}

func oneclickClient() *oneclick.Client {
	return oneclick.NewClient(oneclick.Config{
		JWTToken: appConfig.OneClick.JWTToken,
		BaseURL:  appConfig.OneClick.BaseURL,
		Timeout:  appConfig.HTTP.Timeout,
	})
}

func displayQuote(quote *oneclick.Quote, req oneclick.QuoteRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	if quote.DepositAddress != "" {
		fmt.Printf("\n  Deposit Address:   %s\n", color.CyanString(quote.DepositAddress))
	} else {
		fmt.Println()
	}
	fmt.Printf("  From:              %s %s\n", quote.AmountInFormatted, color.YellowString(req.SourceToken))
	fmt.Printf("  To:                ~%s %s\n", quote.AmountOutFormatted, color.YellowString(req.DestToken))
	fmt.Printf("  Estimated Time:    %s\n", quote.TimeEstimate)

	if req.SourceChain != "" {
		fmt.Printf("  Source Chain:      %s\n", req.SourceChain)
	}
	if req.DestChain != "" {
		fmt.Printf("  Destination Chain: %s\n", req.DestChain)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayDepositInstructions(quote *oneclick.Quote, req oneclick.QuoteRequest) {
	fmt.Println(strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the swap, send %s %s to:\n\n", quote.AmountInFormatted, req.SourceToken)
	color.Cyan("  %s\n", quote.DepositAddress)

	if quote.DepositMemo != "" {
		fmt.Printf("\nMemo (REQUIRED): %s\n", color.MagentaString(quote.DepositMemo))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
