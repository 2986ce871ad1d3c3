package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-tools/pkg/oneclick"
)

var (
	watchStatus   bool
	watchInterval int
	depositTx     string
)

var statusCmd = &cobra.Command{
	Use:   "oneclick-status <deposit-address>",
	Short: "Check the status of a 1Click swap",
	Long: `Check the execution status of a 1Click swap by its deposit address.

Examples:
  agent-tools oneclick-status 0x1234...abcd
  agent-tools oneclick-status 0x1234...abcd --deposit-tx 0xfeed...
  agent-tools oneclick-status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap finishes")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().StringVar(&depositTx, "deposit-tx", "", "Report this deposit transaction hash before checking")
}

func runStatus(cmd *cobra.Command, args []string) {
	depositAddress := args[0]
	c := oneclickClient()

	if depositTx != "" {
		_, err := withSpinner(cmd, "Submitting deposit...", func() (struct{}, error) {
			return struct{}{}, c.SubmitDeposit(cmd.Context(), depositAddress, depositTx)
		})
		if err != nil {
			fail(err)
		}
		if !jsonFlag(cmd) {
			color.Green("\n✓ Deposit %s submitted", depositTx)
		}
	}

	if watchStatus {
		watchSwapStatus(cmd, c, depositAddress)
		return
	}

	status, err := withSpinner(cmd, "Checking swap status...", func() (*oneclick.Status, error) {
		return c.Status(cmd.Context(), depositAddress)
	})
	if err != nil {
		fail(err)
	}
	if jsonFlag(cmd) {
		printJSON(status)
		return
	}
	displayStatus(status)
}

func watchSwapStatus(cmd *cobra.Command, c *oneclick.Client, depositAddress string) {
	if jsonFlag(cmd) {
		fail(fmt.Errorf("watch mode not supported with JSON output"))
	}

	fmt.Printf("\nWatching swap status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := c.Status(cmd.Context(), depositAddress)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(status)
			if status.IsTerminal() {
				return
			}
		}

		select {
		case <-cmd.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func displayStatus(status *oneclick.Status) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(status.DepositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if !status.UpdatedAt.IsZero() {
		fmt.Printf("  Last Updated:    %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	for _, hash := range status.OriginTxHashes {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
	}
	for _, hash := range status.DestinationTxHashes {
		fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(hash))
	}

	if status.AmountInFormatted != "" {
		fmt.Printf("  Amount In:       %s\n", status.AmountInFormatted)
	}
	if status.AmountOutFormatted != "" {
		fmt.Printf("  Amount Out:      %s\n", status.AmountOutFormatted)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING", "KNOWN_DEPOSIT_TX":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
