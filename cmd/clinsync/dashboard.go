package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/dashboard"
	"github.com/clinsync/clinsync/internal/logging"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "maint",
	Short:   "Start the WebSocket dashboard server",
	Long: `Start a WebSocket server broadcasting sync activity in real time.

WebSocket messages include:
- sync_complete: a reconciliation pass finished
- archive_complete: an archive run finished
- error: an error was recorded in the ledger
- status: connectivity changed

This standalone mode serves the endpoints without a running daemon; use
'clinsync daemon --dashboard' to stream live events.

Example usage:
  clinsync dashboard              # Default port from config.yaml
  clinsync dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:8372/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		if port == 0 {
			port = e.cfg.DashboardPort
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: logging.New("[dashboard] ", e.cfg.Log),
		})
		if err := server.Start(); err != nil {
			return err
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
