package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// uniqueViolation is the Postgres error code raised when the slot unique
// index rejects a concurrent insert.
const uniqueViolation = "23505"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides transactional persistence for bookings.
//
// The availability check that precedes an insert reads a possibly-stale
// snapshot, so Insert takes a per-(doctor, day) advisory lock, re-checks
// overlap inside its own transaction, and the schema carries a unique index
// on (doctor_id, date, start_min). Any of these defenses surfaces as
// ErrSlotTaken; the flow falls back to a nearest-slot suggestion instead of
// double-booking.
type Repository struct {
	db DB
}

// NewRepository creates a repository over the given connection pool.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("booking: db required")
	}
	return &Repository{db: db}
}

const bookingColumns = `id, user_id, doctor_id, clinic_id, service_id, booking_type, details,
date, start_min, duration_min, status, notified_doctors, reminder_opt_in, created_at`

// Insert persists a booking, guaranteeing at most one booking per slot.
// Returns ErrSlotTaken when the interval is no longer free.
func (r *Repository) Insert(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize inserts per (doctor, day). Under READ COMMITTED the overlap
	// re-check cannot see a racing transaction's uncommitted row, so without
	// this lock two overlapping intervals with different start_min could both
	// pass the check.
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		fmt.Sprintf("bookings:%d:%s", b.DoctorID, b.Date.ISO()))
	if err != nil {
		return fmt.Errorf("booking: slot lock: %w", err)
	}

	// Re-check overlap under the transaction; the earlier availability read
	// may be stale by now.
	var clash uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM bookings
		WHERE doctor_id = $1 AND date = $2
		  AND start_min < $3 AND start_min + duration_min > $4
		LIMIT 1
		FOR UPDATE`,
		b.DoctorID, b.Date.Time(time.UTC), b.Start.Minutes()+b.DurationMinutes, b.Start.Minutes(),
	).Scan(&clash)
	if err == nil {
		return ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("booking: overlap check: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.UserID, b.DoctorID, b.ClinicID, b.ServiceID, string(b.Type), b.Details,
		b.Date.Time(time.UTC), b.Start.Minutes(), b.DurationMinutes, string(b.Status),
		b.NotifiedDoctors, b.ReminderOptIn, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("booking: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit insert: %w", err)
	}
	return nil
}

// GetByID loads a booking. Returns ErrNotFound when no row exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("booking: get %s: %w", id, err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, ErrNotFound
	}
	return &bookings[0], nil
}

// FindOverlapping returns bookings for any of the given doctors on the date
// whose intervals intersect [startMin, startMin+durationMin). Pending and
// confirmed bookings both block the slot.
func (r *Repository) FindOverlapping(ctx context.Context, doctorIDs []int64, date timeparse.Date, startMin, durationMin int) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE doctor_id = ANY($1) AND date = $2
		  AND start_min < $3 AND start_min + duration_min > $4
		ORDER BY start_min ASC, doctor_id ASC`,
		doctorIDs, date.Time(time.UTC), startMin+durationMin, startMin)
	if err != nil {
		return nil, fmt.Errorf("booking: find overlapping: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListByUser returns a user's bookings ordered soonest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1
		ORDER BY date ASC, start_min ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("booking: list by user: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// UpdateSlot moves a booking to a new date and start time. The slot unique
// index still applies; a clash surfaces as ErrSlotTaken.
func (r *Repository) UpdateSlot(ctx context.Context, id uuid.UUID, newDate timeparse.Date, newStart timeparse.TimeOfDay) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET date = $1, start_min = $2 WHERE id = $3`,
		newDate.Time(time.UTC), newStart.Minutes(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("booking: update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking. Returns ErrNotFound when no row exists.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("booking: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		var b Booking
		var bookingType, status string
		var date time.Time
		var startMin int
		err := rows.Scan(
			&b.ID, &b.UserID, &b.DoctorID, &b.ClinicID, &b.ServiceID, &bookingType, &b.Details,
			&date, &startMin, &b.DurationMinutes, &status,
			&b.NotifiedDoctors, &b.ReminderOptIn, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		b.Type = Type(bookingType)
		b.Status = Status(status)
		b.Date = timeparse.DateOf(date)
		b.Start = timeparse.FromMinutes(startMin)
		result = append(result, b)
	}
	return result, rows.Err()
}
