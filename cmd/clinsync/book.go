package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinsync/clinsync/internal/clinic"
	"github.com/clinsync/clinsync/internal/logging"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/ui"
)

var bookCmd = &cobra.Command{
	Use:     "book",
	GroupID: "records",
	Short:   "Book an appointment",
	Long: `Book an appointment slot with a provider.

The slot must start on the working-hours grid from config.yaml and must
not overlap another scheduled appointment of the same provider.

Example usage:
  clinsync book --patient <id> --provider dr-osei --at 2026-09-14T10:00:00Z
  clinsync book --provider dr-osei --slots 2026-09-14   # Show free slots`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patientID, _ := cmd.Flags().GetString("patient")
		provider, _ := cmd.Flags().GetString("provider")
		at, _ := cmd.Flags().GetString("at")
		slotsDay, _ := cmd.Flags().GetString("slots")
		duration, _ := cmd.Flags().GetInt("duration")
		reason, _ := cmd.Flags().GetString("reason")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		scheduler := clinic.NewScheduler(e.store, e.cfg.Hours, logging.New("[clinic] ", e.cfg.Log))

		if slotsDay != "" {
			day, err := time.Parse("2006-01-02", slotsDay)
			if err != nil {
				return fmt.Errorf("invalid day %q: %w", slotsDay, err)
			}
			free, err := scheduler.Available(cmd.Context(), provider, day)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				fmt.Printf("%s No free slots for %s on %s\n", ui.RenderWarn("⚠"), provider, slotsDay)
				return nil
			}
			fmt.Printf("Free slots for %s on %s:\n", ui.RenderAccent(provider), slotsDay)
			for _, slot := range free {
				fmt.Printf("  %s - %s\n", slot.StartsAt.Format("15:04"), slot.EndsAt.Format("15:04"))
			}
			return nil
		}

		startsAt, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at %q (want RFC3339): %w", at, err)
		}
		if duration == 0 {
			duration = e.cfg.Hours.SlotMinutes
		}

		item, err := scheduler.Book(cmd.Context(), record.Appointment{
			PatientID:       patientID,
			Provider:        provider,
			StartsAt:        startsAt,
			DurationMinutes: duration,
			Reason:          reason,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Booked %s with %s at %s\n", ui.RenderPass("✓"),
			item.ID, provider, startsAt.Format("2006-01-02 15:04"))
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:     "cancel <id>",
	GroupID: "records",
	Short:   "Cancel an appointment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		scheduler := clinic.NewScheduler(e.store, e.cfg.Hours, logging.New("[clinic] ", e.cfg.Log))
		if err := scheduler.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Cancelled appointment %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

func init() {
	bookCmd.Flags().String("patient", "", "Patient record ID")
	bookCmd.Flags().String("provider", "", "Provider identifier")
	bookCmd.Flags().String("at", "", "Start time (RFC3339)")
	bookCmd.Flags().Int("duration", 0, "Duration in minutes (default: one slot)")
	bookCmd.Flags().String("reason", "", "Visit reason")
	bookCmd.Flags().String("slots", "", "Show free slots for a day (YYYY-MM-DD) instead of booking")
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(cancelCmd)
}
