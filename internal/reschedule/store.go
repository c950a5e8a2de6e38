package reschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for reschedule_requests.
type Store struct {
	db DB
}

// NewStore creates a new reschedule store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const requestColumns = `id, booking_id, user_id, doctor_id, orig_date, orig_start_min, proposed_date, proposed_start_min, duration_min, reason, status, created_at, updated_at`

// Create inserts a new pending reschedule request.
func (s *Store) Create(ctx context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO reschedule_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.BookingID, r.UserID, r.DoctorID,
		r.OrigDate.Time(time.UTC), r.OrigStart.Minutes(),
		r.ProposedDate.Time(time.UTC), r.ProposedStart.Minutes(),
		r.DurationMinutes, r.Reason, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("reschedule: create request: %w", err)
	}
	return nil
}

// FindPendingByUser returns the oldest unanswered request for a user, or
// nil when there is none.
func (s *Store) FindPendingByUser(ctx context.Context, userID string) (*Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at ASC LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("reschedule: find pending: %w", err)
	}
	defer rows.Close()
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// MarkAccepted transitions a pending request to accepted.
func (s *Store) MarkAccepted(ctx context.Context, id uuid.UUID) error {
	return s.mark(ctx, id, StatusAccepted)
}

// MarkDeclined transitions a pending request to declined.
func (s *Store) MarkDeclined(ctx context.Context, id uuid.UUID) error {
	return s.mark(ctx, id, StatusDeclined)
}

func (s *Store) mark(ctx context.Context, id uuid.UUID, status RequestStatus) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE reschedule_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'`, string(status), now, id)
	if err != nil {
		return fmt.Errorf("reschedule: mark %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reschedule: mark %s: no pending request with id %s", status, id)
	}
	return nil
}

// DeleteByBooking removes any requests tied to a booking, used when the
// booking itself is cancelled.
func (s *Store) DeleteByBooking(ctx context.Context, bookingID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM reschedule_requests WHERE booking_id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("reschedule: delete by booking: %w", err)
	}
	return nil
}

func scanRequests(rows pgx.Rows) ([]Request, error) {
	var result []Request
	for rows.Next() {
		var r Request
		var origDate, proposedDate time.Time
		var origStart, proposedStart int
		var status string
		err := rows.Scan(
			&r.ID, &r.BookingID, &r.UserID, &r.DoctorID,
			&origDate, &origStart, &proposedDate, &proposedStart,
			&r.DurationMinutes, &r.Reason, &status,
			&r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("reschedule: scan request: %w", err)
		}
		r.OrigDate = timeparse.DateOf(origDate)
		r.OrigStart = timeparse.FromMinutes(origStart)
		r.ProposedDate = timeparse.DateOf(proposedDate)
		r.ProposedStart = timeparse.FromMinutes(proposedStart)
		r.Status = RequestStatus(status)
		result = append(result, r)
	}
	return result, rows.Err()
}
