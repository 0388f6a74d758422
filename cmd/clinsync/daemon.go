package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/daemon"
	"github.com/clinsync/clinsync/internal/dashboard"
	"github.com/clinsync/clinsync/internal/logging"
	"github.com/clinsync/clinsync/internal/netstatus"
	"github.com/clinsync/clinsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run clinsync as a long-lived process.

The daemon watches the remote directory for changes, re-syncs when
connectivity returns, and periodically archives old records. With
--dashboard it also serves the WebSocket dashboard.

Example usage:
  clinsync daemon
  clinsync daemon --dashboard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		coord, err := e.coordinator(logging.New("[sync] ", e.cfg.Log))
		if err != nil {
			return err
		}

		monitor := netstatus.NewMonitor(e.checker, 0, logging.New("[netstatus] ", e.cfg.Log))

		var notifier daemon.Notifier
		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   e.cfg.DashboardPort,
				Logger: logging.New("[dashboard] ", e.cfg.Log),
			})
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()
			notifier = server
			fmt.Printf("%s Dashboard on http://localhost:%d\n", ui.RenderAccent("📊"), e.cfg.DashboardPort)
		}

		cfg := daemon.DefaultConfig()
		cfg.DebounceInterval = e.cfg.SyncDebounce
		cfg.ArchiveInterval = e.cfg.ArchiveInterval
		cfg.ArchiveSettings = e.cfg.Archive
		cfg.Logger = logging.New("[daemon] ", e.cfg.Log)

		d, err := daemon.New(coord, e.remote, monitor, e.archiver(), e.ledger, notifier, cfg)
		if err != nil {
			return err
		}

		fmt.Printf("%s Daemon watching %s (Ctrl+C to stop)\n", ui.RenderAccent("🚀"), e.cfg.RemoteDir)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the WebSocket dashboard")
	rootCmd.AddCommand(daemonCmd)
}
