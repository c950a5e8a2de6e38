package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction labels an audit log entry.
type AuditAction string

const (
	AuditCommitted   AuditAction = "booking.committed"
	AuditCancelled   AuditAction = "booking.cancelled"
	AuditRescheduled AuditAction = "booking.rescheduled"
)

// AuditLog appends denormalized booking events to a log table. Writes are
// best-effort: the commit protocol never rolls back a booking because the
// log append failed. A nil *AuditLog is safe to call.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates an audit log over the given database, or returns nil
// when no database is configured.
func NewAuditLog(db *sql.DB) *AuditLog {
	if db == nil {
		return nil
	}
	return &AuditLog{db: db}
}

type auditDetails struct {
	DoctorID        int64  `json:"doctor_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	BookingType     string `json:"booking_type"`
	Details         string `json:"details,omitempty"`
}

// Record appends one entry for the booking.
func (l *AuditLog) Record(ctx context.Context, action AuditAction, b Booking) error {
	if l == nil || l.db == nil {
		return nil
	}

	details, err := json.Marshal(auditDetails{
		DoctorID:        b.DoctorID,
		Date:            b.Date.ISO(),
		Start:           b.Start.String(),
		DurationMinutes: b.DurationMinutes,
		BookingType:     string(b.Type),
		Details:         b.Details,
	})
	if err != nil {
		return fmt.Errorf("booking: encode audit details: %w", err)
	}

	// id is BIGSERIAL; the sequence assigns it.
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO booking_audit_log (booking_id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID.String(), b.UserID, string(action), details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("booking: append audit log: %w", err)
	}
	return nil
}
