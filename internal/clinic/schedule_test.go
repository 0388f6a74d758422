package clinic

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/store"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	st := store.New(kv.NewMemory(), testLogger())
	return NewScheduler(st, DefaultHours(), testLogger())
}

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
}

func TestSlotsGeneration(t *testing.T) {
	slots, err := Slots(day(t), Hours{Open: "09:00", Close: "11:00", SlotMinutes: 30})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(slots))
	}
	if got := slots[0].StartsAt.Format("15:04"); got != "09:00" {
		t.Errorf("first slot starts %s, want 09:00", got)
	}
	if got := slots[3].EndsAt.Format("15:04"); got != "11:00" {
		t.Errorf("last slot ends %s, want 11:00", got)
	}
}

func TestSlotsPartialTrailingWindowDropped(t *testing.T) {
	// 09:00-10:45 in 30m slots: the 10:30-11:00 window doesn't fit.
	slots, err := Slots(day(t), Hours{Open: "09:00", Close: "10:45", SlotMinutes: 30})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 3 {
		t.Errorf("got %d slots, want 3", len(slots))
	}
}

func TestHoursValidate(t *testing.T) {
	tests := []struct {
		name    string
		hours   Hours
		wantErr bool
	}{
		{"valid", Hours{Open: "09:00", Close: "17:00", SlotMinutes: 30}, false},
		{"open after close", Hours{Open: "17:00", Close: "09:00", SlotMinutes: 30}, true},
		{"bad open", Hours{Open: "9am", Close: "17:00", SlotMinutes: 30}, true},
		{"zero slot", Hours{Open: "09:00", Close: "17:00", SlotMinutes: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hours.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBookCreatesPendingRecord(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	item, err := s.Book(ctx, record.Appointment{
		PatientID:       "p1",
		Provider:        "dr-osei",
		StartsAt:        day(t).Add(10 * time.Hour),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if item.Synced {
		t.Error("new booking must start unsynced")
	}
	if item.State() != record.StateLocalOnly {
		t.Errorf("state = %s, want LOCAL_ONLY", item.State())
	}
	var appt record.Appointment
	if err := item.Decode(&appt); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if appt.Status != record.AppointmentScheduled {
		t.Errorf("status = %s, want scheduled", appt.Status)
	}
}

func TestBookRejectsDoubleBooking(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()
	start := day(t).Add(10 * time.Hour)

	if _, err := s.Book(ctx, record.Appointment{
		PatientID: "p1", Provider: "dr-osei", StartsAt: start, DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("first Book: %v", err)
	}

	_, err := s.Book(ctx, record.Appointment{
		PatientID: "p2", Provider: "dr-osei", StartsAt: start, DurationMinutes: 30,
	})
	if err == nil {
		t.Fatal("expected double-booking to be rejected")
	}
	if !strings.Contains(err.Error(), "already booked") {
		t.Errorf("unexpected error: %v", err)
	}

	// A different provider can take the same slot.
	if _, err := s.Book(ctx, record.Appointment{
		PatientID: "p2", Provider: "dr-lindqvist", StartsAt: start, DurationMinutes: 30,
	}); err != nil {
		t.Errorf("other provider rejected: %v", err)
	}
}

func TestBookRejectsOutOfHours(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		start time.Time
		mins  int
	}{
		{"before open", day(t).Add(8 * time.Hour), 30},
		{"after close", day(t).Add(18 * time.Hour), 30},
		{"off grid", day(t).Add(10*time.Hour + 15*time.Minute), 30},
		{"runs past close", day(t).Add(16*time.Hour + 30*time.Minute), 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Book(ctx, record.Appointment{
				PatientID: "p1", Provider: "dr-osei", StartsAt: tt.start, DurationMinutes: tt.mins,
			})
			if err == nil {
				t.Error("expected out-of-hours booking to be rejected")
			}
		})
	}
}

func TestAvailableExcludesBookedSlots(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()
	start := day(t).Add(10 * time.Hour)

	all, err := s.Available(ctx, "dr-osei", day(t))
	if err != nil {
		t.Fatalf("Available: %v", err)
	}

	if _, err := s.Book(ctx, record.Appointment{
		PatientID: "p1", Provider: "dr-osei", StartsAt: start, DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("Book: %v", err)
	}

	free, err := s.Available(ctx, "dr-osei", day(t))
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if len(free) != len(all)-1 {
		t.Errorf("got %d free slots, want %d", len(free), len(all)-1)
	}
	for _, slot := range free {
		if slot.StartsAt.Equal(start) {
			t.Error("booked slot still listed as available")
		}
	}
}

func TestCancelFreesSlot(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()
	start := day(t).Add(10 * time.Hour)

	item, err := s.Book(ctx, record.Appointment{
		PatientID: "p1", Provider: "dr-osei", StartsAt: start, DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if err := s.Cancel(ctx, item.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// Cancelled appointments don't block the slot.
	if _, err := s.Book(ctx, record.Appointment{
		PatientID: "p2", Provider: "dr-osei", StartsAt: start, DurationMinutes: 30,
	}); err != nil {
		t.Errorf("rebooking cancelled slot: %v", err)
	}

	// Cancel is idempotent.
	if err := s.Cancel(ctx, item.ID); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
}
