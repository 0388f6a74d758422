package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store, sync, and error ledger status",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		ctx := cmd.Context()

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Clinsync Status"))
		fmt.Printf("Data dir: %s\n", e.dataDir)

		if e.remote == nil {
			fmt.Printf("Remote:   %s\n", ui.RenderMuted("not configured"))
		} else {
			online := e.checker.Check(ctx)
			state := ui.RenderPass("online")
			if !online {
				state = ui.RenderFail("offline")
			}
			fmt.Printf("Remote:   %s (%s)\n", e.cfg.RemoteDir, state)
		}

		fmt.Printf("\n%-17s %8s %8s\n", "Collection", "Active", "Pending")
		for _, key := range record.AllCollections() {
			items, err := e.store.Get(ctx, key)
			if err != nil {
				return err
			}
			pending := 0
			for _, item := range items {
				if !item.Synced {
					pending++
				}
			}
			fmt.Printf("%-17s %8d %8d\n", key, len(items), pending)
		}

		if n := len(e.ledger.Pending()); n > 0 {
			fmt.Printf("\n%s %d unhandled errors (see 'clinsync errors')\n", ui.RenderWarn("⚠"), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
