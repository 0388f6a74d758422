// Command clinsync is the offline-first data layer for the clinic tools.
//
// It keeps patients, appointments, and medical records in a local SQLite
// cache, reconciles them with a shared remote directory when connectivity
// allows, and archives old synced records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clinsync",
	Short: "Offline-first clinic data sync",
	Long: `clinsync keeps clinic records available offline.

All reads and writes go to a local store under .clinsync/ and work without
connectivity. When the remote share is reachable, 'clinsync sync' (or the
daemon) reconciles local and remote copies with last-writer-wins semantics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Record Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)
	rootCmd.PersistentFlags().String("dir", "", "Data directory (default: nearest .clinsync)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
