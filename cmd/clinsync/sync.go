package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/logging"
	"github.com/clinsync/clinsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile the local store with the remote",
	Long: `Run one sync pass against the configured remote.

Pending local changes are pushed, remote changes are pulled, and diverged
copies are resolved by last writer wins (ties go to the remote). Local
deletions are propagated and then purged. Without connectivity the run
aborts, records a retryable NETWORK error, and changes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		coord, err := e.coordinator(logging.New("[sync] ", e.cfg.Log))
		if err != nil {
			return err
		}

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("🔄"), e.cfg.RemoteDir)
		res, err := coord.Sync(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), res.Duration.Round(time.Millisecond))
		fmt.Printf("  Pushed:    %d\n", res.Pushed)
		fmt.Printf("  Pulled:    %d\n", res.Pulled)
		fmt.Printf("  Conflicts: %d\n", res.Conflicts)
		fmt.Printf("  Deleted:   %d\n", res.Deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
