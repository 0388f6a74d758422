package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/ui"
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	GroupID: "maint",
	Short:   "Archive old synced records",
}

var archiveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one archiving pass",
	Long: `Move old, synced, non-deleted records into compressed archive blobs.

The cutoff and eligible collections come from the archive section of
config.yaml. Archived records disappear from active reads but can be
restored with 'clinsync archive restore'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		res, err := e.archiver().Run(cmd.Context(), e.cfg.Archive)
		if err != nil {
			return err
		}

		fmt.Printf("%s Archived %d items in %v\n", ui.RenderPass("✓"), res.Archived, res.Duration.Round(time.Millisecond))
		for key, n := range res.PerCollection {
			fmt.Printf("  %-17s %d\n", key, n)
		}
		if res.Evicted > 0 {
			fmt.Printf("%s Evicted %d oldest archived items (cap %d)\n",
				ui.RenderWarn("⚠"), res.Evicted, e.cfg.Archive.MaxArchivedItems)
		}
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List archived records of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := record.CollectionKey(args[0])
		if !key.IsValid() {
			return fmt.Errorf("unknown collection: %s", args[0])
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		items, err := e.archiver().Items(cmd.Context(), key)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("%s No archived %s\n", ui.RenderMuted("∅"), key)
			return nil
		}
		for _, item := range items {
			archived := ""
			if item.ArchivedAt != nil {
				archived = item.ArchivedAt.Format("2006-01-02")
			}
			fmt.Printf("%s  archived %s  updated %s\n",
				item.ID, archived, item.UpdatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <collection> <id>",
	Short: "Restore an archived record to the active store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := record.CollectionKey(args[0])
		if !key.IsValid() {
			return fmt.Errorf("unknown collection: %s", args[0])
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		item, err := e.archiver().Restore(cmd.Context(), key, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s Restored %s/%s\n", ui.RenderPass("✓"), key, item.ID)
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveRunCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}
