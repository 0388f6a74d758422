package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/clinsync"
	"github.com/clinsync/clinsync/internal/config"
	"github.com/clinsync/clinsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "maint",
	Short:   "Create the .clinsync data directory and default config",
	Long: `Initialize clinsync in the current directory.

Creates .clinsync/ with a default config.yaml. With --remote the remote
share is set directly; otherwise an interactive prompt asks for it.

Example usage:
  clinsync init --remote /mnt/clinic-share
  clinsync init --no-input      # Accept all defaults`,
	RunE: func(cmd *cobra.Command, args []string) error {
		remoteDir, _ := cmd.Flags().GetString("remote")
		noInput, _ := cmd.Flags().GetBool("no-input")

		root, err := os.Getwd()
		if err != nil {
			return err
		}
		dataDir, err := clinsync.EnsureDataDir(root)
		if err != nil {
			return err
		}

		cfg := config.Default()
		cfg.RemoteDir = remoteDir

		if !noInput && remoteDir == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Remote directory").
					Description("Path to the shared remote (leave empty for local-only use)").
					Value(&cfg.RemoteDir),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}

		if err := config.Write(dataDir, cfg); err != nil {
			return err
		}

		fmt.Printf("%s Initialized %s\n", ui.RenderPass("✓"), dataDir)
		if cfg.RemoteDir == "" {
			fmt.Printf("%s No remote configured; sync is disabled until remote_dir is set\n", ui.RenderWarn("⚠"))
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("remote", "", "Remote directory to sync against")
	initCmd.Flags().Bool("no-input", false, "Skip interactive prompts")
	rootCmd.AddCommand(initCmd)
}
