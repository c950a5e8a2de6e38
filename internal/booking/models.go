// Package booking defines appointment records and their persistence.
package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// Status tracks a booking's approval lifecycle.
type Status string

const (
	// StatusPending means the booking awaits clinic approval.
	StatusPending Status = "pending"
	// StatusConfirmed means the clinic approved the booking.
	StatusConfirmed Status = "confirmed"
)

// Type categorizes the appointment.
type Type string

const (
	TypeCheckup      Type = "checkup"
	TypeConsultation Type = "consultation"
	TypeVaccination  Type = "vaccination"
)

// Booking is one appointment occupying a [start, start+duration) interval
// for a doctor on a calendar day.
type Booking struct {
	ID              uuid.UUID           `json:"id"`
	UserID          string              `json:"user_id"`
	DoctorID        int64               `json:"doctor_id"`
	ClinicID        string              `json:"clinic_id"`
	ServiceID       string              `json:"service_id"`
	Type            Type                `json:"type"`
	Details         string              `json:"details,omitempty"`
	Date            timeparse.Date      `json:"date"`
	Start           timeparse.TimeOfDay `json:"start"`
	DurationMinutes int                 `json:"duration_minutes"`
	Status          Status              `json:"status"`
	NotifiedDoctors []int64             `json:"notified_doctors,omitempty"`
	ReminderOptIn   bool                `json:"reminder_opt_in"`
	CreatedAt       time.Time           `json:"created_at"`
}

// End returns the exclusive end of the booking's interval in minutes since
// midnight.
func (b Booking) End() int {
	return b.Start.Minutes() + b.DurationMinutes
}

// Overlaps reports whether the booking's interval intersects
// [startMin, startMin+durationMin) on the same day.
func (b Booking) Overlaps(startMin, durationMin int) bool {
	return b.Start.Minutes() < startMin+durationMin && startMin < b.End()
}

// Error taxonomy for the booking flow. Callers classify with errors.Is.
var (
	// ErrSlotTaken means the slot was no longer free at insert time.
	ErrSlotTaken = errors.New("booking: slot already taken")
	// ErrNotFound means the referenced booking does not exist.
	ErrNotFound = errors.New("booking: not found")
)
