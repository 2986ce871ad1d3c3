package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agent-tools/config"
	"agent-tools/pkg/agent"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/logging"
	"agent-tools/pkg/types"
)

var (
	configFile string
	appConfig  *config.Config
	logCleanup = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "agent-tools",
	Short: "Bridge, trade and swap tools for an on-chain agent",
	Long: `agent-tools exposes a Layerswap bridge orchestrator, a Paradex trading client
and the 1Click swap aggregator as CLI commands and as tools for an LLM agent.

Examples:
  agent-tools bridge execute 0.1 ETH from ARBITRUM_MAINNET to PARADEX_MAINNET --to 0xabc...
  agent-tools paradex bbo ETH-USD-PERP
  agent-tools list-tokens --chain sol
  agent-tools tools call get_bbo '{"market":"BTC-USD-PERP"}'
  agent-tools serve`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		_, cleanup, err := logging.Init(level, cfg.Log.Development)
		if err != nil {
			return err
		}
		appConfig = cfg
		logCleanup = cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCleanup()
	},
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $HOME/.agent-tools.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// fail prints err with a hint and exits
func fail(err error) {
	printError(err)
	if hint := errorHint(err); hint != "" {
		color.Yellow("%s\n", hint)
	}
	logCleanup()
	os.Exit(1)
}

// confirm asks a yes/no question on stdin
func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

func jsonFlag(cmd *cobra.Command) bool {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return jsonOutput
}

// withSpinner runs fn behind a spinner unless output is JSON
func withSpinner[T any](cmd *cobra.Command, suffix string, fn func() (T, error)) (T, error) {
	if jsonFlag(cmd) {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

// loadAgent builds every client from the loaded configuration
func loadAgent(ctx context.Context) *agent.Agent {
	a, err := agent.New(ctx, appConfig)
	if err != nil {
		fail(err)
	}
	return a
}

// printResult renders an envelope and exits non-zero on error
func printResult(cmd *cobra.Command, res types.Result) {
	if jsonFlag(cmd) {
		printJSON(res)
	} else {
		switch res.Status {
		case types.StatusSuccess:
			color.Green("\n✓ Success")
			printJSON(res.Result)
		case types.StatusPending:
			color.Yellow("\n… Pending")
			printJSON(res.Result)
		default:
			color.Red("\n✗ Error (%s)", res.Error.Kind)
			fmt.Println(res.Error.Message)
			if res.Error.Details != "" {
				fmt.Println(color.HiBlackString(res.Error.Details))
			}
		}
	}
	if res.Status == types.StatusError {
		logCleanup()
		os.Exit(1)
	}
}

// errorHint adds a next step for common failures
func errorHint(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConfig:
		return "Check your config file or AGENT_TOOLS_* environment variables."
	case apperr.KindAuthentication:
		return "Check paradex.account_address and that the signer is reachable."
	case apperr.KindDuplicate:
		return "Use a new --reference-id or check 'agent-tools bridge history'."
	}
	return ""
}
