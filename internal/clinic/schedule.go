// Package clinic implements appointment scheduling on top of the local
// store: working-day slot generation, availability filtering, and booking
// with provider double-booking rejection. Bookings are plain local writes;
// they sync like any other record.
package clinic

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/store"
)

// Hours describes a provider's working day. Open and Close are wall-clock
// times in "15:04" form.
type Hours struct {
	Open        string `json:"open" yaml:"open" mapstructure:"open"`
	Close       string `json:"close" yaml:"close" mapstructure:"close"`
	SlotMinutes int    `json:"slot_minutes" yaml:"slot_minutes" mapstructure:"slot_minutes"`
}

// DefaultHours is a 9-to-5 day in 30 minute slots.
func DefaultHours() Hours {
	return Hours{Open: "09:00", Close: "17:00", SlotMinutes: 30}
}

// Validate checks the hours are well formed.
func (h Hours) Validate() error {
	open, err := parseClock(h.Open)
	if err != nil {
		return fmt.Errorf("invalid open time %q: %w", h.Open, err)
	}
	closeTime, err := parseClock(h.Close)
	if err != nil {
		return fmt.Errorf("invalid close time %q: %w", h.Close, err)
	}
	if !open.Before(closeTime) {
		return fmt.Errorf("open %s must be before close %s", h.Open, h.Close)
	}
	if h.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive (got %d)", h.SlotMinutes)
	}
	return nil
}

func parseClock(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}

// Slot is one bookable window in a provider's day.
type Slot struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Slots generates the bookable windows of a working day. Day is truncated
// to midnight in its own location before the hours are applied.
func Slots(day time.Time, hours Hours) ([]Slot, error) {
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	open, _ := parseClock(hours.Open)
	closeTime, _ := parseClock(hours.Close)

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start := midnight.Add(time.Duration(open.Hour())*time.Hour + time.Duration(open.Minute())*time.Minute)
	end := midnight.Add(time.Duration(closeTime.Hour())*time.Hour + time.Duration(closeTime.Minute())*time.Minute)
	step := time.Duration(hours.SlotMinutes) * time.Minute

	var slots []Slot
	for t := start; !t.Add(step).After(end); t = t.Add(step) {
		slots = append(slots, Slot{StartsAt: t, EndsAt: t.Add(step)})
	}
	return slots, nil
}

// Scheduler books and cancels appointments against the local store.
type Scheduler struct {
	store  *store.Store
	hours  Hours
	logger *log.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. If logger is nil, a default logger
// writing to stderr is used.
func NewScheduler(st *store.Store, hours Hours, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[clinic] ", log.LstdFlags)
	}
	return &Scheduler{store: st, hours: hours, logger: logger, now: time.Now}
}

// Available returns the free slots of a provider's day: the generated
// windows minus any that overlap a scheduled appointment.
func (s *Scheduler) Available(ctx context.Context, provider string, day time.Time) ([]Slot, error) {
	slots, err := Slots(day, s.hours)
	if err != nil {
		return nil, err
	}
	booked, err := s.providerAppointments(ctx, provider)
	if err != nil {
		return nil, err
	}

	var free []Slot
	for _, slot := range slots {
		window := record.Appointment{
			StartsAt:        slot.StartsAt,
			DurationMinutes: int(slot.EndsAt.Sub(slot.StartsAt) / time.Minute),
		}
		taken := false
		for _, appt := range booked {
			if appt.Overlaps(&window) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Book creates an appointment record. The new record starts unsynced and
// reaches the remote on the next sync run. A slot outside working hours or
// overlapping another appointment of the same provider is rejected.
func (s *Scheduler) Book(ctx context.Context, appt record.Appointment) (*record.Item, error) {
	if appt.Status == "" {
		appt.Status = record.AppointmentScheduled
	}
	if err := appt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid appointment: %w", err)
	}
	if err := s.checkHours(appt); err != nil {
		return nil, err
	}

	booked, err := s.providerAppointments(ctx, appt.Provider)
	if err != nil {
		return nil, err
	}
	for _, existing := range booked {
		if existing.Overlaps(&appt) {
			return nil, fmt.Errorf("provider %s is already booked at %s",
				appt.Provider, existing.StartsAt.Format(time.RFC3339))
		}
	}

	item, err := record.NewItem(uuid.New().String(), appt)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, record.Appointments, item); err != nil {
		return nil, err
	}
	s.logger.Printf("Booked %s with %s at %s", item.ID, appt.Provider, appt.StartsAt.Format(time.RFC3339))
	return item, nil
}

// Cancel marks an appointment cancelled. The record stays visible with
// status cancelled; use the store's SoftDelete to remove it entirely.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	item, err := s.store.GetByID(ctx, record.Appointments, id)
	if err != nil {
		return err
	}
	var appt record.Appointment
	if err := item.Decode(&appt); err != nil {
		return err
	}
	if appt.Status == record.AppointmentCancelled {
		return nil
	}
	appt.Status = record.AppointmentCancelled
	if err := item.SetPayload(appt); err != nil {
		return err
	}
	item.UpdateTimestamp()
	if err := s.store.Put(ctx, record.Appointments, item); err != nil {
		return err
	}
	s.logger.Printf("Cancelled appointment %s", id)
	return nil
}

// checkHours verifies the appointment fits inside a generated slot grid.
func (s *Scheduler) checkHours(appt record.Appointment) error {
	slots, err := Slots(appt.StartsAt, s.hours)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.StartsAt.Equal(appt.StartsAt) && !appt.EndsAt().After(slot.EndsAt) {
			return nil
		}
	}
	return fmt.Errorf("slot %s is outside working hours (%s-%s every %dm)",
		appt.StartsAt.Format("15:04"), s.hours.Open, s.hours.Close, s.hours.SlotMinutes)
}

// providerAppointments returns the provider's active scheduled appointments.
func (s *Scheduler) providerAppointments(ctx context.Context, provider string) ([]*record.Appointment, error) {
	items, err := s.store.Get(ctx, record.Appointments)
	if err != nil {
		return nil, err
	}
	var out []*record.Appointment
	for _, item := range items {
		var appt record.Appointment
		if err := item.Decode(&appt); err != nil {
			s.logger.Printf("Warning: skipping undecodable appointment %s: %v", item.ID, err)
			continue
		}
		if appt.Provider != provider || appt.Status != record.AppointmentScheduled {
			continue
		}
		out = append(out, &appt)
	}
	return out, nil
}
