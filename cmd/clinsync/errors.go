package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/ui"
)

var errorsCmd = &cobra.Command{
	Use:     "errors",
	GroupID: "maint",
	Short:   "Show the error ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		entries := e.ledger.Entries()
		if pendingOnly {
			entries = e.ledger.Pending()
		}
		if len(entries) == 0 {
			fmt.Printf("%s No errors recorded\n", ui.RenderPass("✓"))
			return nil
		}

		for _, entry := range entries {
			marker := ui.RenderWarn("●")
			if entry.Handled {
				marker = ui.RenderMuted("○")
			}
			fmt.Printf("%s %s  [%s/%s] %s\n", marker,
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Type, entry.Severity, entry.Message)
		}
		return nil
	},
}

var errorsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the error ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		if n := e.ledger.Len(); n == 0 {
			fmt.Printf("%s Ledger already empty\n", ui.RenderMuted("∅"))
			return nil
		}

		if !force {
			confirmed := false
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Clear %d recorded errors?", e.ledger.Len())).
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		e.ledger.Clear()
		fmt.Printf("%s Ledger cleared\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	errorsCmd.Flags().Bool("pending", false, "Show only unhandled retryable errors")
	errorsClearCmd.Flags().BoolP("force", "f", false, "Skip confirmation")
	errorsCmd.AddCommand(errorsClearCmd)
	rootCmd.AddCommand(errorsCmd)
}
