package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add",
	GroupID: "records",
	Short:   "Add a patient record",
	Long: `Create a patient record in the local store.

Fields can be passed as flags; missing required fields are prompted for.
The record is created unsynced and reaches the remote on the next sync.

Example usage:
  clinsync add --name "Ada Nowak" --dob 1984-03-12
  clinsync add                       # Interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patient := record.Patient{}
		patient.Name, _ = cmd.Flags().GetString("name")
		patient.DateOfBirth, _ = cmd.Flags().GetString("dob")
		patient.Phone, _ = cmd.Flags().GetString("phone")
		patient.Email, _ = cmd.Flags().GetString("email")

		if patient.Name == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Name").Value(&patient.Name),
				huh.NewInput().Title("Date of birth (YYYY-MM-DD)").Value(&patient.DateOfBirth),
				huh.NewInput().Title("Phone").Value(&patient.Phone),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}
		if err := patient.Validate(); err != nil {
			return err
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		item, err := record.NewItem(uuid.New().String(), patient)
		if err != nil {
			return err
		}
		if err := e.store.Put(cmd.Context(), record.Patients, item); err != nil {
			return err
		}

		fmt.Printf("%s Added patient %s (%s)\n", ui.RenderPass("✓"), patient.Name, item.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list <collection>",
	GroupID: "records",
	Short:   "List active records of a collection",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := record.CollectionKey(args[0])
		if !key.IsValid() {
			return fmt.Errorf("unknown collection: %s (want one of %v)", args[0], record.AllCollections())
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		items, err := e.store.Get(cmd.Context(), key)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("%s No active %s\n", ui.RenderMuted("∅"), key)
			return nil
		}
		for _, item := range items {
			state := ui.RenderPass(string(item.State()))
			if !item.Synced {
				state = ui.RenderWarn(string(item.State()))
			}
			fmt.Printf("%s  %s  updated %s\n", item.ID, state, item.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <collection> <id>",
	GroupID: "records",
	Short:   "Soft-delete a record",
	Long: `Mark a record deleted.

The record disappears from reads but stays stored until a sync confirms
the remote deletion, after which it is purged.`,
	Args: cobra.ExactArgs(2),
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

		if err := e.store.SoftDelete(cmd.Context(), key, args[1]); err != nil {
			return err
		}
		fmt.Printf("%s Deleted %s/%s (pending sync)\n", ui.RenderPass("✓"), key, args[1])
		return nil
	},
}

func init() {
	addCmd.Flags().String("name", "", "Patient name")
	addCmd.Flags().String("dob", "", "Date of birth (YYYY-MM-DD)")
	addCmd.Flags().String("phone", "", "Phone number")
	addCmd.Flags().String("email", "", "Email address")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}
