// Package reschedule stores clinic-initiated reschedule requests and their
// lifecycle: a clinic proposes a new slot for an existing booking, the
// patient accepts or declines over chat.
package reschedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// RequestStatus is the lifecycle state of a reschedule request.
type RequestStatus string

const (
	// StatusPending means the patient has not answered yet.
	StatusPending RequestStatus = "pending"
	// StatusAccepted means the patient took the proposed slot.
	StatusAccepted RequestStatus = "accepted"
	// StatusDeclined means the patient kept the original slot.
	StatusDeclined RequestStatus = "declined"
)

// Request is a proposed slot change for an existing booking.
type Request struct {
	ID              uuid.UUID           `json:"id"`
	BookingID       uuid.UUID           `json:"booking_id"`
	UserID          string              `json:"user_id"`
	DoctorID        int64               `json:"doctor_id"`
	OrigDate        timeparse.Date      `json:"orig_date"`
	OrigStart       timeparse.TimeOfDay `json:"orig_start"`
	ProposedDate    timeparse.Date      `json:"proposed_date"`
	ProposedStart   timeparse.TimeOfDay `json:"proposed_start"`
	DurationMinutes int                 `json:"duration_minutes"`
	Reason          string              `json:"reason,omitempty"`
	Status          RequestStatus       `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
