package reschedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

func TestCreateDefaultsPendingAndID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO reschedule_requests").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "2348001112222", int64(3),
			pgxmock.AnyArg(), 840, pgxmock.AnyArg(), 900,
			30, "doctor unavailable", "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	req := &Request{
		BookingID:       uuid.New(),
		UserID:          "2348001112222",
		DoctorID:        3,
		OrigDate:        timeparse.Date{Year: 2026, Month: 9, Day: 14},
		OrigStart:       timeparse.TimeOfDay{Hour: 14},
		ProposedDate:    timeparse.Date{Year: 2026, Month: 9, Day: 14},
		ProposedStart:   timeparse.TimeOfDay{Hour: 15},
		DurationMinutes: 30,
		Reason:          "doctor unavailable",
	}
	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.Equal(t, StatusPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPendingByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	bookingID := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "booking_id", "user_id", "doctor_id",
		"orig_date", "orig_start_min", "proposed_date", "proposed_start_min",
		"duration_min", "reason", "status", "created_at", "updated_at",
	}).AddRow(id, bookingID, "2348001112222", int64(3),
		time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), 840,
		time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), 600,
		30, "", "pending", now, now)
	mock.ExpectQuery("SELECT (.+) FROM reschedule_requests").
		WithArgs("2348001112222").
		WillReturnRows(rows)

	store := NewStore(mock)
	req, err := store.FindPendingByUser(context.Background(), "2348001112222")
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if req == nil {
		t.Fatal("expected a request")
	}
	assert.Equal(t, id, req.ID)
	assert.Equal(t, "14/09/2026", req.OrigDate.String())
	assert.Equal(t, "14:00", req.OrigStart.String())
	assert.Equal(t, "10:00", req.ProposedStart.String())
	assert.Equal(t, StatusPending, req.Status)
}

func TestFindPendingByUserNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM reschedule_requests").
		WithArgs("2348009998888").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "booking_id", "user_id", "doctor_id",
			"orig_date", "orig_start_min", "proposed_date", "proposed_start_min",
			"duration_min", "reason", "status", "created_at", "updated_at",
		}))

	store := NewStore(mock)
	req, err := store.FindPendingByUser(context.Background(), "2348009998888")
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	assert.Nil(t, req)
}

func TestMarkAccepted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE reschedule_requests SET status").
		WithArgs("accepted", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	if err := store.MarkAccepted(context.Background(), id); err != nil {
		t.Fatalf("mark accepted: %v", err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeclinedAlreadyAnswered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE reschedule_requests SET status").
		WithArgs("declined", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewStore(mock)
	err = store.MarkDeclined(context.Background(), id)
	if err == nil {
		t.Fatal("expected error for already-answered request")
	}
	assert.Contains(t, err.Error(), "no pending request")
}

func TestDeleteByBooking(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	bookingID := uuid.New()
	mock.ExpectExec("DELETE FROM reschedule_requests").
		WithArgs(bookingID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	store := NewStore(mock)
	if err := store.DeleteByBooking(context.Background(), bookingID); err != nil {
		t.Fatalf("delete by booking: %v", err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
