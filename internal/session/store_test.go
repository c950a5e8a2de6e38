package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swandust/clinic-concierge/internal/timeparse"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func sampleSession() *Session {
	date := timeparse.Date{Year: 2025, Month: time.March, Day: 10}
	slot := timeparse.TimeOfDay{Hour: 14, Minute: 0}
	return &Session{
		UserID: "27820000001",
		State:  StateConfirmBooking,
		Module: "booking",
		Draft: Draft{
			DoctorID:        3,
			Date:            &date,
			TimeSlot:        &slot,
			DurationMinutes: 30,
			Details:         "recurring headaches",
			ServiceID:       "checkup",
			ClinicID:        "main",
			BookingType:     "checkup",
		},
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleSession()))

	got, err := store.Get(ctx, "27820000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StateConfirmBooking, got.State)
	assert.Equal(t, int64(3), got.Draft.DoctorID)
	require.NotNil(t, got.Draft.Date)
	assert.Equal(t, "2025-03-10", got.Draft.Date.ISO())
	require.NotNil(t, got.Draft.TimeSlot)
	assert.Equal(t, "14:00", got.Draft.TimeSlot.String())
	assert.Equal(t, "recurring headaches", got.Draft.Details)
}

func TestRedisStoreMissingSession(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)

	got, err := store.Get(context.Background(), "27829999999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleSession()))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "27820000001")
	require.NoError(t, err)
	assert.Nil(t, got, "expired session should read as absent")
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleSession()))
	require.NoError(t, store.Delete(ctx, "27820000001"))

	got, err := store.Get(ctx, "27820000001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := sampleSession()
	require.NoError(t, store.Put(ctx, s))

	// Mutating the original after Put must not leak into the store.
	s.State = StateIdle

	got, err := store.Get(ctx, "27820000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StateConfirmBooking, got.State)

	// Mutating the returned copy must not affect a later read.
	got.Draft.Details = "changed"
	again, err := store.Get(ctx, "27820000001")
	require.NoError(t, err)
	assert.Equal(t, "recurring headaches", again.Draft.Details)
}

func TestMemoryStoreKeysDoNotLeakAcrossUsers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := sampleSession()
	b := sampleSession()
	b.UserID = "27820000002"
	b.Draft.DoctorID = 9

	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, b))

	gotA, err := store.Get(ctx, a.UserID)
	require.NoError(t, err)
	gotB, err := store.Get(ctx, b.UserID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), gotA.Draft.DoctorID)
	assert.Equal(t, int64(9), gotB.Draft.DoctorID)
}

func TestReset(t *testing.T) {
	s := sampleSession()
	s.Reset()

	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, Draft{}, s.Draft)
	assert.Equal(t, "", s.Module)
}

func TestStateStrings(t *testing.T) {
	for _, st := range All() {
		assert.NotEqual(t, "unknown", st.String(), "state %d has no name", int(st))
	}
	assert.Equal(t, "unknown", State(99).String())
}
