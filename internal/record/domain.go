package record

import (
	"fmt"
	"time"
)

// AppointmentStatus values for Appointment.Status.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Patient is the domain payload for the patients collection.
type Patient struct {
	Name        string   `json:"name"`
	DateOfBirth string   `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
}

// Validate checks required patient fields.
func (p *Patient) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", p.DateOfBirth); err != nil {
			return fmt.Errorf("invalid date_of_birth %q: %w", p.DateOfBirth, err)
		}
	}
	return nil
}

// Appointment is the domain payload for the appointments collection.
type Appointment struct {
	PatientID       string    `json:"patient_id"`
	Provider        string    `json:"provider"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason,omitempty"`
	Status          string    `json:"status"` // scheduled, completed, cancelled, no_show
}

// Validate checks required appointment fields.
func (a *Appointment) Validate() error {
	if a.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if a.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if a.StartsAt.IsZero() {
		return fmt.Errorf("starts_at is required")
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive (got %d)", a.DurationMinutes)
	}
	switch a.Status {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
	default:
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	return nil
}

// EndsAt returns the end of the appointment window.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two appointment windows intersect.
func (a *Appointment) Overlaps(other *Appointment) bool {
	return a.StartsAt.Before(other.EndsAt()) && other.StartsAt.Before(a.EndsAt())
}

// MedicalRecord is the domain payload for the medical_records collection.
type MedicalRecord struct {
	PatientID  string    `json:"patient_id"`
	Kind       string    `json:"kind"` // diagnosis, prescription, lab_result, note
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Validate checks required medical record fields.
func (m *MedicalRecord) Validate() error {
	if m.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if m.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
