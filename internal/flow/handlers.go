package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/availability"
	"github.com/swandust/clinic-concierge/internal/booking"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/internal/session"
	"github.com/swandust/clinic-concierge/internal/timeparse"
)

// handleIdle starts a new booking flow: loads the user's service context and
// asks whether they want to attach a note.
func (e *Engine) handleIdle(ctx context.Context, sess *session.Session, _ gateway.Inbound) (Result, error) {
	svc, err := e.profiles.ServiceContext(ctx, sess.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("flow: service context: %w", err)
	}
	duration := svc.DurationMinutes
	if duration <= 0 {
		duration = e.opts.DefaultDurationMinutes
	}
	sess.Module = "booking"
	sess.Draft = session.Draft{
		ClinicID:        svc.ClinicID,
		ServiceID:       svc.ServiceID,
		BookingType:     svc.BookingType,
		DurationMinutes: duration,
		ReminderOptIn:   svc.ReminderOptIn,
	}
	sess.State = session.StateRemarkYesNo
	e.sendButtons(ctx, sess.UserID, msgAskRemark,
		map[string]string{"service": svc.ServiceID}, yesNoChoices())
	return Result{Handled: true}, nil
}

func (e *Engine) handleRemarkYesNo(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case choiceYes:
		sess.State = session.StateRemarkInput
		e.sendText(ctx, sess.UserID, msgAskRemarkText, nil)
	case choiceNo:
		return e.promptDoctor(ctx, sess)
	default:
		e.sendButtons(ctx, sess.UserID, msgAskRemark,
			map[string]string{"service": sess.Draft.ServiceID}, yesNoChoices())
	}
	return Result{Handled: true}, nil
}

func (e *Engine) handleRemarkInput(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	body, ok := textOf(msg)
	if !ok || body == "" {
		e.sendText(ctx, sess.UserID, msgAskRemarkText, nil)
		return Result{Handled: true}, nil
	}
	sess.Draft.Details = body
	return e.promptDoctor(ctx, sess)
}

// promptDoctor shows the eligible doctor list plus the "any doctor" option
// and moves to doctor selection.
func (e *Engine) promptDoctor(ctx context.Context, sess *session.Session) (Result, error) {
	doctors, err := e.directory.EligibleDoctors(ctx, sess.Draft.ClinicID, sess.Draft.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("flow: list doctors: %w", err)
	}
	choices := make([]gateway.Choice, 0, len(doctors)+1)
	choices = append(choices, gateway.Choice{ID: doctorAnyID, Title: msgAnyDoctorLabel})
	for _, d := range doctors {
		choices = append(choices, gateway.Choice{
			ID:    doctorPrefix + strconv.FormatInt(d.ID, 10),
			Title: d.Name,
		})
	}
	sess.State = session.StateSelectDoctor
	e.sendList(ctx, sess.UserID, msgPickDoctor, nil, choices)
	return Result{Handled: true}, nil
}

func (e *Engine) handleSelectDoctor(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	choice := choiceOf(msg)
	switch {
	case choice == doctorAnyID:
		sess.Draft.AnyDoctor = true
		sess.Draft.DoctorID = 0
	case strings.HasPrefix(choice, doctorPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(choice, doctorPrefix), 10, 64)
		if err != nil {
			return e.promptDoctor(ctx, sess)
		}
		sess.Draft.AnyDoctor = false
		sess.Draft.DoctorID = id
	default:
		return e.promptDoctor(ctx, sess)
	}
	return e.promptDate(ctx, sess)
}

func (e *Engine) promptDate(ctx context.Context, sess *session.Session) (Result, error) {
	sess.State = session.StateSelectDate
	e.sendList(ctx, sess.UserID, msgPickDate, nil, []gateway.Choice{
		{ID: dateTodayID, Title: "Today"},
		{ID: dateTomorrowID, Title: "Tomorrow"},
		{ID: dateOtherID, Title: "Another date"},
	})
	return Result{Handled: true}, nil
}

func (e *Engine) handleSelectDate(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	today := timeparse.DateOf(e.now().In(e.opts.Location))
	switch choiceOf(msg) {
	case dateTodayID:
		sess.Draft.Date = &today
		return e.promptTime(ctx, sess)
	case dateTomorrowID:
		tomorrow := timeparse.DateOf(today.Time(e.opts.Location).AddDate(0, 0, 1))
		sess.Draft.Date = &tomorrow
		return e.promptTime(ctx, sess)
	case dateOtherID:
		sess.State = session.StateAwaitingFutureDate
		e.sendText(ctx, sess.UserID, msgAskDate, nil)
		return Result{Handled: true}, nil
	default:
		return e.promptDate(ctx, sess)
	}
}

// handleAwaitingFutureDate parses a typed date. Parse failures re-prompt in
// place, naming the offending token, never guessing.
func (e *Engine) handleAwaitingFutureDate(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	body, ok := textOf(msg)
	if !ok {
		e.sendText(ctx, sess.UserID, msgAskDate, nil)
		return Result{Handled: true}, nil
	}
	date, err := timeparse.ParseDate(body, e.now().In(e.opts.Location))
	if err != nil {
		var perr *timeparse.ParseError
		if errors.As(err, &perr) {
			e.sendText(ctx, sess.UserID, msgBadDate, map[string]string{"token": perr.Token})
			return Result{Handled: true}, nil
		}
		return Result{}, fmt.Errorf("flow: parse date: %w", err)
	}
	sess.Draft.Date = &date
	sess.State = session.StateConfirmFutureDate
	e.sendButtons(ctx, sess.UserID, msgConfirmDate,
		map[string]string{"date": date.String()}, yesNoChoices())
	return Result{Handled: true}, nil
}

func (e *Engine) handleConfirmFutureDate(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case choiceYes:
		return e.promptTime(ctx, sess)
	case choiceNo:
		sess.Draft.Date = nil
		sess.State = session.StateAwaitingFutureDate
		e.sendText(ctx, sess.UserID, msgAskDate, nil)
	default:
		date := ""
		if sess.Draft.Date != nil {
			date = sess.Draft.Date.String()
		}
		e.sendButtons(ctx, sess.UserID, msgConfirmDate,
			map[string]string{"date": date}, yesNoChoices())
	}
	return Result{Handled: true}, nil
}

func (e *Engine) promptTime(ctx context.Context, sess *session.Session) (Result, error) {
	sess.State = session.StateAwaitingTimeInput
	e.sendText(ctx, sess.UserID, msgAskTime, nil)
	return Result{Handled: true}, nil
}

// handleAwaitingTimeInput parses the requested time and resolves it against
// availability: exact match, nearest suggestion, or the retry/help fork.
func (e *Engine) handleAwaitingTimeInput(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	body, ok := textOf(msg)
	if !ok {
		e.sendText(ctx, sess.UserID, msgAskTime, nil)
		return Result{Handled: true}, nil
	}
	slot, err := timeparse.ParseTime(body)
	if err != nil {
		var perr *timeparse.ParseError
		if errors.As(err, &perr) {
			e.sendText(ctx, sess.UserID, msgBadTime, map[string]string{"token": perr.Token})
			return Result{Handled: true}, nil
		}
		return Result{}, fmt.Errorf("flow: parse time: %w", err)
	}
	return e.resolveSlot(ctx, sess, slot)
}

// resolveSlot runs the availability check for a concrete time and routes to
// the matching confirmation state.
func (e *Engine) resolveSlot(ctx context.Context, sess *session.Session, slot timeparse.TimeOfDay) (Result, error) {
	doctors, err := e.candidateDoctors(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	date := *sess.Draft.Date
	duration := sess.Draft.DurationMinutes

	freeDoctor, free, err := e.resolver.Check(ctx, sess.Draft.ClinicID, doctors, date, slot, duration)
	if err != nil {
		return Result{}, fmt.Errorf("flow: availability check: %w", err)
	}
	if free {
		sess.Draft.TimeSlot = &slot
		if sess.Draft.AnyDoctor {
			sess.Draft.DoctorID = freeDoctor
		}
		sess.State = session.StateConfirmTime
		e.sendButtons(ctx, sess.UserID, msgSlotFree,
			map[string]string{"time": slot.String(), "date": date.String()},
			[]gateway.Choice{
				{ID: confirmID, Title: "Book it"},
				{ID: findAnotherID, Title: "Find another"},
			})
		return Result{Handled: true}, nil
	}

	suggestions, err := e.resolver.SuggestNearest(ctx, sess.Draft.ClinicID, doctors, date, slot,
		duration, e.opts.NearestSearchMinutes, 1)
	if err != nil {
		return Result{}, fmt.Errorf("flow: suggest nearest: %w", err)
	}
	if len(suggestions) > 0 {
		s := suggestions[0]
		start := s.Start
		sess.Draft.SuggestedTime = &start
		sess.Draft.SuggestedDoctor = s.DoctorID
		sess.State = session.StateConfirmClosestTime
		e.sendButtons(ctx, sess.UserID, msgSlotTakenNearest,
			map[string]string{"time": slot.String(), "suggested": start.String()},
			[]gateway.Choice{
				{ID: acceptID, Title: "Take " + start.String()},
				{ID: findAnotherID, Title: "Find another"},
			})
		return Result{Handled: true}, nil
	}

	sess.State = session.StateRetryTimeOrHelp
	e.sendText(ctx, sess.UserID, msgNoSlotNearby,
		map[string]string{"time": slot.String(), "date": date.String()})
	e.sendButtons(ctx, sess.UserID, msgRetryOrBrowse, nil, []gateway.Choice{
		{ID: tryAgainID, Title: "Try another time"},
		{ID: helpChooseID, Title: "Help me choose"},
	})
	return Result{Handled: true}, nil
}

func (e *Engine) handleConfirmTime(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case confirmID:
		return e.promptSummary(ctx, sess)
	case findAnotherID:
		return e.promptPeriod(ctx, sess)
	default:
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
}

func (e *Engine) handleConfirmClosestTime(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case acceptID:
		sess.Draft.TimeSlot = sess.Draft.SuggestedTime
		if sess.Draft.AnyDoctor {
			sess.Draft.DoctorID = sess.Draft.SuggestedDoctor
		}
		sess.Draft.SuggestedTime = nil
		sess.Draft.SuggestedDoctor = 0
		return e.promptSummary(ctx, sess)
	case findAnotherID:
		return e.promptPeriod(ctx, sess)
	default:
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
}

func (e *Engine) handleRetryTimeOrHelp(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case tryAgainID:
		return e.promptTime(ctx, sess)
	case helpChooseID:
		return e.promptPeriod(ctx, sess)
	default:
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
}

// Manual browse fallback: period → hour → slot.

var browsePeriods = []struct {
	id       string
	title    string
	from, to int // minutes from midnight
}{
	{"morning", "Morning", 9 * 60, 12 * 60},
	{"afternoon", "Afternoon", 12 * 60, 16 * 60},
	{"evening", "Evening", 16 * 60, 20 * 60},
}

func (e *Engine) promptPeriod(ctx context.Context, sess *session.Session) (Result, error) {
	choices := make([]gateway.Choice, 0, len(browsePeriods))
	for _, p := range browsePeriods {
		choices = append(choices, gateway.Choice{ID: periodPrefix + p.id, Title: p.title})
	}
	sess.State = session.StateSelectPeriod
	e.sendList(ctx, sess.UserID, msgPickPeriod, nil, choices)
	return Result{Handled: true}, nil
}

func (e *Engine) handleSelectPeriod(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	choice := strings.TrimPrefix(choiceOf(msg), periodPrefix)
	for _, p := range browsePeriods {
		if p.id != choice {
			continue
		}
		sess.Draft.BrowsePeriod = p.id
		choices := make([]gateway.Choice, 0, (p.to-p.from)/60)
		for h := p.from / 60; h*60 < p.to; h++ {
			start := timeparse.TimeOfDay{Hour: h}
			choices = append(choices, gateway.Choice{
				ID:    hourPrefix + strconv.Itoa(h),
				Title: start.String(),
			})
		}
		sess.State = session.StateSelectHour
		e.sendList(ctx, sess.UserID, msgPickHour, nil, choices)
		return Result{Handled: true}, nil
	}
	return e.promptPeriod(ctx, sess)
}

func (e *Engine) handleSelectHour(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	choice := choiceOf(msg)
	if !strings.HasPrefix(choice, hourPrefix) {
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
	hour, err := strconv.Atoi(strings.TrimPrefix(choice, hourPrefix))
	if err != nil || hour < 0 || hour > 23 {
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}

	doctors, err := e.candidateDoctors(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	slots, err := e.resolver.FreeSlots(ctx, sess.Draft.ClinicID, doctors, *sess.Draft.Date,
		hour*60, (hour+1)*60, sess.Draft.DurationMinutes)
	if err != nil {
		return Result{}, fmt.Errorf("flow: free slots: %w", err)
	}
	if len(slots) == 0 {
		e.sendText(ctx, sess.UserID, msgHourFull, nil)
		return Result{Handled: true}, nil
	}

	sess.Draft.BrowseHour = hour
	choices := make([]gateway.Choice, 0, len(slots))
	for _, s := range slots {
		choices = append(choices, gateway.Choice{
			ID:    fmt.Sprintf("%s%d:%d", slotPrefix, s.Start.Minutes(), s.DoctorID),
			Title: s.Start.String(),
		})
	}
	sess.State = session.StateSelectTimeSlot
	e.sendList(ctx, sess.UserID, msgPickSlot, nil, choices)
	return Result{Handled: true}, nil
}

func (e *Engine) handleSelectTimeSlot(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	choice := choiceOf(msg)
	if !strings.HasPrefix(choice, slotPrefix) {
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
	parts := strings.Split(strings.TrimPrefix(choice, slotPrefix), ":")
	if len(parts) != 2 {
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
	startMin, err1 := strconv.Atoi(parts[0])
	doctorID, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || startMin < 0 || startMin >= 24*60 {
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
	slot := timeparse.FromMinutes(startMin)
	sess.Draft.TimeSlot = &slot
	if sess.Draft.AnyDoctor {
		sess.Draft.DoctorID = doctorID
	}
	return e.promptSummary(ctx, sess)
}

// promptSummary shows the assembled draft and the confirm/edit/cancel fork.
func (e *Engine) promptSummary(ctx context.Context, sess *session.Session) (Result, error) {
	doctorName, err := e.doctorName(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	sess.State = session.StateConfirmBooking
	e.sendButtons(ctx, sess.UserID, msgSummary, map[string]string{
		"service": sess.Draft.ServiceID,
		"doctor":  doctorName,
		"date":    sess.Draft.Date.String(),
		"time":    sess.Draft.TimeSlot.String(),
	}, []gateway.Choice{
		{ID: confirmID, Title: "Confirm"},
		{ID: editID, Title: "Edit"},
		{ID: cancelID, Title: "Cancel"},
	})
	return Result{Handled: true}, nil
}

func (e *Engine) handleConfirmBooking(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case confirmID:
		return e.commit(ctx, sess)
	case editID:
		sess.State = session.StateEditBooking
		e.sendButtons(ctx, sess.UserID, msgPickEditField, nil, []gateway.Choice{
			{ID: editDoctorID, Title: "Doctor"},
			{ID: editDateID, Title: "Date"},
			{ID: editTimeID, Title: "Time"},
		})
		return Result{Handled: true}, nil
	case cancelID:
		return e.cancelDraft(ctx, sess)
	default:
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
}

// handleEditBooking jumps back to the state owning the chosen field; every
// other draft field is retained.
func (e *Engine) handleEditBooking(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error) {
	switch choiceOf(msg) {
	case editDoctorID:
		sess.Draft.TimeSlot = nil // a new doctor invalidates the checked slot
		return e.promptDoctor(ctx, sess)
	case editDateID:
		sess.Draft.TimeSlot = nil
		return e.promptDate(ctx, sess)
	case editTimeID:
		sess.Draft.TimeSlot = nil
		return e.promptTime(ctx, sess)
	default:
		e.sendText(ctx, sess.UserID, msgInvalidChoice, nil)
		return Result{Handled: true}, nil
	}
}

// commit persists the draft. A conflict at insert time (the slot was taken
// between check and insert) falls back to the nearest-slot suggestion
// instead of failing hard.
func (e *Engine) commit(ctx context.Context, sess *session.Session) (Result, error) {
	if sess.Draft.Date == nil || sess.Draft.TimeSlot == nil {
		e.metrics.ObserveCommit("incomplete")
		e.sendText(ctx, sess.UserID, msgGenericTrouble, nil)
		sess.Reset()
		return Result{Handled: true}, nil
	}
	date := *sess.Draft.Date
	slot := *sess.Draft.TimeSlot

	// Revising a persisted booking moves the existing record.
	if sess.Draft.EditingBookingID != uuid.Nil {
		return e.commitSlotUpdate(ctx, sess, sess.Draft.EditingBookingID, date, slot)
	}

	b := &booking.Booking{
		ID:              uuid.New(),
		UserID:          sess.UserID,
		DoctorID:        sess.Draft.DoctorID,
		ClinicID:        sess.Draft.ClinicID,
		ServiceID:       sess.Draft.ServiceID,
		Type:            booking.Type(sess.Draft.BookingType),
		Details:         sess.Draft.Details,
		Date:            date,
		Start:           slot,
		DurationMinutes: sess.Draft.DurationMinutes,
		Status:          booking.StatusPending,
		ReminderOptIn:   sess.Draft.ReminderOptIn,
	}
	if err := e.bookings.Insert(ctx, b); err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			e.metrics.ObserveCommit("conflict")
			return e.conflictFallback(ctx, sess, date, slot)
		}
		e.metrics.ObserveCommit("error")
		return Result{}, fmt.Errorf("flow: insert booking: %w", err)
	}

	// Best-effort secondary write; never rolls back the insert.
	if e.audit != nil {
		if err := e.audit.Record(ctx, booking.AuditCommitted, *b); err != nil {
			e.logger.Warn("audit record", "booking_id", b.ID, "error", err)
		}
	}
	e.metrics.ObserveCommit("committed")

	e.sendText(ctx, sess.UserID, msgBookedOK,
		map[string]string{"date": date.String(), "time": slot.String()})
	sess.Reset()
	return Result{Handled: true, Committed: true}, nil
}

func (e *Engine) commitSlotUpdate(ctx context.Context, sess *session.Session, id uuid.UUID, date timeparse.Date, slot timeparse.TimeOfDay) (Result, error) {
	err := e.bookings.UpdateSlot(ctx, id, date, slot)
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrSlotTaken):
		e.metrics.ObserveCommit("conflict")
		return e.conflictFallback(ctx, sess, date, slot)
	case errors.Is(err, booking.ErrNotFound):
		e.metrics.ObserveCommit("not_found")
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
		sess.Reset()
		return Result{Handled: true}, nil
	default:
		e.metrics.ObserveCommit("error")
		return Result{}, fmt.Errorf("flow: update slot: %w", err)
	}

	if e.audit != nil {
		if b, getErr := e.bookings.GetByID(ctx, id); getErr == nil {
			if recErr := e.audit.Record(ctx, booking.AuditRescheduled, *b); recErr != nil {
				e.logger.Warn("audit record", "booking_id", id, "error", recErr)
			}
		}
	}
	e.metrics.ObserveCommit("committed")

	e.sendText(ctx, sess.UserID, msgRescheduledOK,
		map[string]string{"date": date.String(), "time": slot.String()})
	sess.Reset()
	return Result{Handled: true, Committed: true}, nil
}

// conflictFallback re-runs the nearest-slot search after a commit conflict.
func (e *Engine) conflictFallback(ctx context.Context, sess *session.Session, date timeparse.Date, slot timeparse.TimeOfDay) (Result, error) {
	doctors, err := e.candidateDoctors(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	suggestions, err := e.resolver.SuggestNearest(ctx, sess.Draft.ClinicID, doctors, date, slot,
		sess.Draft.DurationMinutes, e.opts.NearestSearchMinutes, 1)
	if err != nil {
		return Result{}, fmt.Errorf("flow: suggest after conflict: %w", err)
	}
	if len(suggestions) == 0 {
		sess.State = session.StateRetryTimeOrHelp
		e.sendText(ctx, sess.UserID, msgNoSlotNearby,
			map[string]string{"time": slot.String(), "date": date.String()})
		e.sendButtons(ctx, sess.UserID, msgRetryOrBrowse, nil, []gateway.Choice{
			{ID: tryAgainID, Title: "Try another time"},
			{ID: helpChooseID, Title: "Help me choose"},
		})
		return Result{Handled: true}, nil
	}
	s := suggestions[0]
	start := s.Start
	sess.Draft.TimeSlot = nil
	sess.Draft.SuggestedTime = &start
	sess.Draft.SuggestedDoctor = s.DoctorID
	sess.State = session.StateConfirmClosestTime
	e.sendButtons(ctx, sess.UserID, msgSlotTakenNearest,
		map[string]string{"time": slot.String(), "suggested": start.String()},
		[]gateway.Choice{
			{ID: acceptID, Title: "Take " + start.String()},
			{ID: findAnotherID, Title: "Find another"},
		})
	return Result{Handled: true}, nil
}

// cancelDraft discards an unpersisted draft or deletes the persisted record
// being revised.
func (e *Engine) cancelDraft(ctx context.Context, sess *session.Session) (Result, error) {
	if id := sess.Draft.EditingBookingID; id != uuid.Nil {
		return e.cancelPersisted(ctx, sess, id)
	}
	e.sendText(ctx, sess.UserID, msgDraftDiscarded, nil)
	sess.Reset()
	return Result{Handled: true}, nil
}

func (e *Engine) cancelPersisted(ctx context.Context, sess *session.Session, id uuid.UUID) (Result, error) {
	b, err := e.bookings.GetByID(ctx, id)
	if err != nil && !errors.Is(err, booking.ErrNotFound) {
		return Result{}, fmt.Errorf("flow: load booking: %w", err)
	}
	if err := e.bookings.Delete(ctx, id); err != nil && !errors.Is(err, booking.ErrNotFound) {
		return Result{}, fmt.Errorf("flow: delete booking: %w", err)
	}
	if e.reschedules != nil {
		if err := e.reschedules.DeleteByBooking(ctx, id); err != nil {
			e.logger.Warn("delete reschedule requests", "booking_id", id, "error", err)
		}
	}
	if e.audit != nil && b != nil {
		if err := e.audit.Record(ctx, booking.AuditCancelled, *b); err != nil {
			e.logger.Warn("audit record", "booking_id", id, "error", err)
		}
	}
	e.sendText(ctx, sess.UserID, msgCancelled, nil)
	sess.Reset()
	return Result{Handled: true}, nil
}

// candidateDoctors resolves the doctor set the draft applies to: the whole
// eligible roster for "any doctor", otherwise the single chosen one.
func (e *Engine) candidateDoctors(ctx context.Context, sess *session.Session) ([]availability.Doctor, error) {
	if !sess.Draft.AnyDoctor {
		return []availability.Doctor{{ID: sess.Draft.DoctorID}}, nil
	}
	doctors, err := e.directory.EligibleDoctors(ctx, sess.Draft.ClinicID, sess.Draft.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("flow: list doctors: %w", err)
	}
	return doctors, nil
}

func (e *Engine) doctorName(ctx context.Context, sess *session.Session) (string, error) {
	doctors, err := e.directory.EligibleDoctors(ctx, sess.Draft.ClinicID, sess.Draft.ServiceID)
	if err != nil {
		return "", fmt.Errorf("flow: list doctors: %w", err)
	}
	for _, d := range doctors {
		if d.ID == sess.Draft.DoctorID {
			return d.Name, nil
		}
	}
	if sess.Draft.AnyDoctor {
		return msgAnyDoctorLabel, nil
	}
	return fmt.Sprintf("doctor #%d", sess.Draft.DoctorID), nil
}
