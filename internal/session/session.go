// Package session holds per-user conversation state for the booking flow.
// Sessions are keyed by the user's phone number and live in an explicit
// store so the state machine is decoupled from storage lifetime.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// State enumerates the booking conversation states. Transitions happen only
// through the flow engine's dispatch table.
type State int

const (
	StateIdle State = iota
	StateRemarkYesNo
	StateRemarkInput
	StateSelectDoctor
	StateSelectDate
	StateAwaitingFutureDate
	StateConfirmFutureDate
	StateAwaitingTimeInput
	StateConfirmTime
	StateConfirmClosestTime
	StateRetryTimeOrHelp
	StateSelectPeriod
	StateSelectHour
	StateSelectTimeSlot
	StateConfirmBooking
	StateEditBooking
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateRemarkYesNo:        "remark_yes_no",
	StateRemarkInput:        "remark_input",
	StateSelectDoctor:       "select_doctor",
	StateSelectDate:         "select_date",
	StateAwaitingFutureDate: "awaiting_future_date",
	StateConfirmFutureDate:  "confirm_future_date",
	StateAwaitingTimeInput:  "awaiting_time_input",
	StateConfirmTime:        "confirm_time",
	StateConfirmClosestTime: "confirm_closest_time",
	StateRetryTimeOrHelp:    "retry_time_or_help",
	StateSelectPeriod:       "select_period",
	StateSelectHour:         "select_hour",
	StateSelectTimeSlot:     "select_time_slot",
	StateConfirmBooking:     "confirm_booking",
	StateEditBooking:        "edit_booking",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// All returns every defined state, for totality tests.
func All() []State {
	states := make([]State, 0, len(stateNames))
	for s := StateIdle; s <= StateEditBooking; s++ {
		states = append(states, s)
	}
	return states
}

// Draft is the partially collected booking held by a session before commit.
type Draft struct {
	DoctorID        int64                `json:"doctor_id,omitempty"`
	AnyDoctor       bool                 `json:"any_doctor,omitempty"`
	Date            *timeparse.Date      `json:"date,omitempty"`
	TimeSlot        *timeparse.TimeOfDay `json:"time_slot,omitempty"`
	DurationMinutes int                  `json:"duration_minutes,omitempty"`
	Details         string               `json:"details,omitempty"`
	ServiceID       string               `json:"service_id,omitempty"`
	ClinicID        string               `json:"clinic_id,omitempty"`
	BookingType     string               `json:"booking_type,omitempty"`
	ReminderOptIn   bool                 `json:"reminder_opt_in,omitempty"`

	// Closest-slot offer awaiting the user's accept.
	SuggestedDoctor int64                `json:"suggested_doctor,omitempty"`
	SuggestedTime   *timeparse.TimeOfDay `json:"suggested_time,omitempty"`

	// Manual browse narrowing.
	BrowsePeriod string `json:"browse_period,omitempty"`
	BrowseHour   int    `json:"browse_hour,omitempty"`

	// Set when revising an already persisted booking.
	EditingBookingID uuid.UUID `json:"editing_booking_id,omitempty"`
}

// Session is one user's conversation state.
type Session struct {
	UserID    string    `json:"user_id"`
	State     State     `json:"state"`
	Module    string    `json:"module"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session for the user.
func New(userID string) *Session {
	return &Session{
		UserID:    userID,
		State:     StateIdle,
		UpdatedAt: time.Now().UTC(),
	}
}

// Reset clears the draft and returns the session to idle.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Module = ""
	s.Draft = Draft{}
	s.UpdatedAt = time.Now().UTC()
}
