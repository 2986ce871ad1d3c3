package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agent-tools/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools over HTTP",
	Long: `Start the tool server.

Routes:
  GET  /healthz
  GET  /tools
  POST /tools/{name}
  GET  /metrics`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := loadAgent(cmd.Context())
		defer a.Close()

		addr := appConfig.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		color.Green("\nServing %d tools on %s\n", len(a.Tools.List()), addr)

		if err := server.New(addr, a.Tools).Start(cmd.Context()); err != nil {
			zap.L().Error("Tool server stopped", zap.Error(err))
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}
