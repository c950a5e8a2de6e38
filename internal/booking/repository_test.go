package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// anyArgs returns n wildcard matchers; pgxmock requires the expected argument
// count to match even when the values don't matter.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func sampleBooking() *Booking {
	return &Booking{
		UserID:          "27820000001",
		DoctorID:        3,
		ClinicID:        "main",
		ServiceID:       "checkup",
		Type:            TypeCheckup,
		Details:         "recurring headaches",
		Date:            timeparse.Date{Year: 2025, Month: time.March, Day: 10},
		Start:           timeparse.TimeOfDay{Hour: 14, Minute: 0},
		DurationMinutes: 30,
	}
}

func TestInsertCommitsWhenSlotFree(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := sampleBooking()

	mock.ExpectBegin()
	// The insert serializes per doctor and day before re-checking overlap.
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("bookings:3:2025-03-10").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id FROM bookings").
		WithArgs(int64(3), b.Date.Time(time.UTC), 870, 840).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	err := repo.Insert(context.Background(), b)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, b.ID, "insert assigns an id")
	assert.Equal(t, StatusPending, b.Status)
	assert.False(t, b.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDetectsOverlapUnderTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id FROM bookings").
		WithArgs(int64(3), b.Date.Time(time.UTC), 870, 840).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), b)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMapsUniqueViolationToSlotTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id FROM bookings").
		WithArgs(anyArgs(4)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(anyArgs(14)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "bookings_slot_key"})
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), b)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWrapsStorageErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id FROM bookings").
		WithArgs(anyArgs(4)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(anyArgs(14)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), b)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotTaken)
	assert.Contains(t, err.Error(), "booking: insert")
}

func TestFindOverlapping(t *testing.T) {
	repo, mock := newMockRepo(t)
	date := timeparse.Date{Year: 2025, Month: time.March, Day: 10}
	id := uuid.New()
	created := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "doctor_id", "clinic_id", "service_id", "booking_type", "details",
		"date", "start_min", "duration_min", "status", "notified_doctors", "reminder_opt_in", "created_at",
	}).AddRow(
		id, "27820000001", int64(3), "main", "checkup", "checkup", "",
		date.Time(time.UTC), 840, 30, "pending", []int64{3}, false, created,
	)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs([]int64{3}, date.Time(time.UTC), 870, 840).
		WillReturnRows(rows)

	got, err := repo.FindOverlapping(context.Background(), []int64{3}, date, 840, 30)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "14:00", got[0].Start.String())
	assert.Equal(t, date, got[0].Date)
	assert.True(t, got[0].Overlaps(840, 30))
}

func TestUpdateSlotNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE bookings SET").
		WithArgs(anyArgs(3)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateSlot(context.Background(), id,
		timeparse.Date{Year: 2025, Month: time.March, Day: 12}, timeparse.TimeOfDay{Hour: 9})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSlotConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE bookings SET").
		WithArgs(anyArgs(3)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.UpdateSlot(context.Background(), uuid.New(),
		timeparse.Date{Year: 2025, Month: time.March, Day: 12}, timeparse.TimeOfDay{Hour: 9})
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM bookings").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), uuid.New()))

	mock.ExpectExec("DELETE FROM bookings").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), ErrNotFound)
}

func TestOverlapPredicate(t *testing.T) {
	b := Booking{Start: timeparse.TimeOfDay{Hour: 14}, DurationMinutes: 30}

	assert.True(t, b.Overlaps(840, 30), "identical interval")
	assert.True(t, b.Overlaps(855, 30), "straddles the end")
	assert.True(t, b.Overlaps(825, 30), "straddles the start")
	assert.False(t, b.Overlaps(870, 30), "adjacent after")
	assert.False(t, b.Overlaps(810, 30), "adjacent before")
}
