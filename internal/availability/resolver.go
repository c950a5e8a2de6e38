// Package availability answers whether a slot is free and, when it is not,
// finds the nearest free alternatives. It is a read-only query layer over
// the booking repository and the clinic's operating-hours policy.
package availability

import (
	"context"
	"fmt"
	"sort"

	"github.com/swandust/clinic-concierge/internal/booking"
	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// Doctor is a clinician able to perform a service.
type Doctor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DoctorDirectory resolves the doctors eligible to perform a service at a
// clinic. Results must be ordered by ascending doctor id.
type DoctorDirectory interface {
	EligibleDoctors(ctx context.Context, clinicID, serviceID string) ([]Doctor, error)
}

// Hours describes one day's operating window and slot granularity.
type Hours struct {
	Open            timeparse.TimeOfDay
	Close           timeparse.TimeOfDay
	GranularityMins int
}

// HoursPolicy supplies operating hours per clinic and date.
type HoursPolicy interface {
	OperatingHours(ctx context.Context, clinicID string, date timeparse.Date) (Hours, error)
}

// StaticHours is an HoursPolicy serving the same window every day.
type StaticHours struct {
	Hours Hours
}

// OperatingHours returns the fixed window.
func (s StaticHours) OperatingHours(_ context.Context, _ string, _ timeparse.Date) (Hours, error) {
	return s.Hours, nil
}

// BookingFinder is the read side of the booking repository the resolver
// queries.
type BookingFinder interface {
	FindOverlapping(ctx context.Context, doctorIDs []int64, date timeparse.Date, startMin, durationMin int) ([]booking.Booking, error)
}

// Slot is a candidate (doctor, date, time) triple. DistanceMinutes is the
// absolute distance from the originally requested time; zero for exact
// matches.
type Slot struct {
	DoctorID        int64
	Date            timeparse.Date
	Start           timeparse.TimeOfDay
	DurationMinutes int
	DistanceMinutes int
}

// Resolver computes slot availability. It never mutates anything.
type Resolver struct {
	bookings BookingFinder
	hours    HoursPolicy
}

// NewResolver creates a resolver over the booking read model and hours
// policy.
func NewResolver(bookings BookingFinder, hours HoursPolicy) *Resolver {
	if bookings == nil {
		panic("availability: booking finder required")
	}
	if hours == nil {
		panic("availability: hours policy required")
	}
	return &Resolver{bookings: bookings, hours: hours}
}

// Check reports whether any of the given doctors is free for the interval
// [start, start+duration) on the date. With several doctors the slot is free
// if at least one is; the free doctor with the lowest id is returned for a
// deterministic "any doctor" resolution. Times outside operating hours are
// never free.
func (r *Resolver) Check(ctx context.Context, clinicID string, doctors []Doctor, date timeparse.Date, start timeparse.TimeOfDay, durationMin int) (int64, bool, error) {
	if len(doctors) == 0 {
		return 0, false, nil
	}

	hours, err := r.hours.OperatingHours(ctx, clinicID, date)
	if err != nil {
		return 0, false, fmt.Errorf("availability: operating hours: %w", err)
	}
	if !withinHours(hours, start.Minutes(), durationMin) {
		return 0, false, nil
	}

	free, err := r.freeDoctors(ctx, doctors, date, start.Minutes(), durationMin)
	if err != nil {
		return 0, false, err
	}
	if len(free) == 0 {
		return 0, false, nil
	}
	return free[0], true, nil
}

// SuggestNearest scans outward from the requested time in the policy's
// granularity increments, within operating hours and maxSearchMin of the
// request, returning up to limit free slots. Ordering is deterministic:
// distance ascending, earlier time first on ties, lowest doctor id last.
func (r *Resolver) SuggestNearest(ctx context.Context, clinicID string, doctors []Doctor, date timeparse.Date, start timeparse.TimeOfDay, durationMin, maxSearchMin, limit int) ([]Slot, error) {
	if len(doctors) == 0 || limit <= 0 {
		return nil, nil
	}

	hours, err := r.hours.OperatingHours(ctx, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: operating hours: %w", err)
	}
	step := hours.GranularityMins
	if step <= 0 {
		step = 30
	}

	var slots []Slot
	requested := start.Minutes()
	for offset := step; offset <= maxSearchMin; offset += step {
		// Earlier candidate first: ties on distance break toward the
		// earlier time.
		for _, candidate := range []int{requested - offset, requested + offset} {
			if candidate < 0 || !withinHours(hours, candidate, durationMin) {
				continue
			}
			free, err := r.freeDoctors(ctx, doctors, date, candidate, durationMin)
			if err != nil {
				return nil, err
			}
			if len(free) == 0 {
				continue
			}
			slots = append(slots, Slot{
				DoctorID:        free[0],
				Date:            date,
				Start:           timeparse.FromMinutes(candidate),
				DurationMinutes: durationMin,
				DistanceMinutes: offset,
			})
			if len(slots) >= limit {
				return slots, nil
			}
		}
	}
	return slots, nil
}

// FreeSlots lists every free slot between fromMin and toMin (clamped to
// operating hours) at the policy granularity, ordered by time then doctor
// id. Used by the manual period/hour browse fallback.
func (r *Resolver) FreeSlots(ctx context.Context, clinicID string, doctors []Doctor, date timeparse.Date, fromMin, toMin, durationMin int) ([]Slot, error) {
	if len(doctors) == 0 {
		return nil, nil
	}

	hours, err := r.hours.OperatingHours(ctx, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("availability: operating hours: %w", err)
	}
	step := hours.GranularityMins
	if step <= 0 {
		step = 30
	}
	if fromMin < hours.Open.Minutes() {
		fromMin = hours.Open.Minutes()
	}
	if toMin > hours.Close.Minutes() {
		toMin = hours.Close.Minutes()
	}

	var slots []Slot
	for candidate := fromMin; candidate+durationMin <= toMin; candidate += step {
		free, err := r.freeDoctors(ctx, doctors, date, candidate, durationMin)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			continue
		}
		slots = append(slots, Slot{
			DoctorID:        free[0],
			Date:            date,
			Start:           timeparse.FromMinutes(candidate),
			DurationMinutes: durationMin,
		})
	}
	return slots, nil
}

// freeDoctors returns the subset of doctors with no overlapping booking for
// the interval, ordered by ascending id.
func (r *Resolver) freeDoctors(ctx context.Context, doctors []Doctor, date timeparse.Date, startMin, durationMin int) ([]int64, error) {
	ids := make([]int64, len(doctors))
	for i, d := range doctors {
		ids[i] = d.ID
	}

	overlapping, err := r.bookings.FindOverlapping(ctx, ids, date, startMin, durationMin)
	if err != nil {
		return nil, fmt.Errorf("availability: query bookings: %w", err)
	}

	busy := make(map[int64]struct{}, len(overlapping))
	for _, b := range overlapping {
		busy[b.DoctorID] = struct{}{}
	}

	var free []int64
	for _, id := range ids {
		if _, taken := busy[id]; !taken {
			free = append(free, id)
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i] < free[j] })
	return free, nil
}

func withinHours(h Hours, startMin, durationMin int) bool {
	return startMin >= h.Open.Minutes() && startMin+durationMin <= h.Close.Minutes()
}
