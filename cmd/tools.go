package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-tools/pkg/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and invoke agent tools",
	Long: `Tools are the operations an LLM agent can call. Each takes a JSON object and
returns a {status, result, error} envelope.

Examples:
  agent-tools tools list
  agent-tools tools call get_bbo '{"market":"ETH-USD-PERP"}'
  echo '{"market":"BTC-USD-PERP"}' | agent-tools tools call get_market_details -`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools with their input schemas",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := loadAgent(cmd.Context())
		defer a.Close()

		list := a.Tools.List()
		if jsonFlag(cmd) {
			printJSON(list)
			return
		}
		plugin := ""
		for _, t := range list {
			if t.Plugin != plugin {
				plugin = t.Plugin
				color.Cyan("\n%s", strings.ToUpper(plugin))
				fmt.Println(strings.Repeat("-", 70))
			}
			fmt.Printf("  %-26s %s\n", color.YellowString(t.Name), t.Description)
		}
		fmt.Printf("\nTotal: %d tools\n\n", len(list))
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name> [json|-]",
	Short: "Invoke a tool with JSON parameters",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		params, err := toolParams(args[1:])
		if err != nil {
			fail(err)
		}

		a := loadAgent(cmd.Context())
		defer a.Close()

		res, _ := withSpinner(cmd, "Calling "+args[0]+"...", func() (types.Result, error) {
			return a.Tools.Invoke(cmd.Context(), args[0], params), nil
		})
		printResult(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
}

// toolParams reads the parameters from the argument or stdin for "-"
func toolParams(args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return json.RawMessage("{}"), nil
	}
	raw := []byte(args[0])
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameters: %w", err)
		}
		raw = data
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("parameters are not valid JSON")
	}
	return raw, nil
}
