package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/booking"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/internal/session"
)

// handleOutOfBand processes choice ids that are valid from any state:
// managing an already persisted booking and answering a clinic-proposed
// reschedule. These arrive from prompts an external process sent, so they
// cannot rely on the session being in any particular state. Returns
// handled=false when the message is a normal in-flow input.
func (e *Engine) handleOutOfBand(ctx context.Context, sess *session.Session, msg gateway.Inbound) (bool, Result, error) {
	choice := gateway.ChoiceID(msg)
	if choice == "" {
		return false, Result{}, nil
	}
	switch {
	case strings.HasPrefix(choice, manageEditPrefix):
		res, err := e.enterBookingEdit(ctx, sess, strings.TrimPrefix(choice, manageEditPrefix))
		return true, res, err
	case strings.HasPrefix(choice, manageCancelPrefix):
		res, err := e.cancelBookingByID(ctx, sess, strings.TrimPrefix(choice, manageCancelPrefix))
		return true, res, err
	case strings.HasPrefix(choice, rescheduleAcceptPrefix):
		res, err := e.answerReschedule(ctx, sess, strings.TrimPrefix(choice, rescheduleAcceptPrefix), true)
		return true, res, err
	case strings.HasPrefix(choice, rescheduleDeclinePrefix):
		res, err := e.answerReschedule(ctx, sess, strings.TrimPrefix(choice, rescheduleDeclinePrefix), false)
		return true, res, err
	}
	return false, Result{}, nil
}

// enterBookingEdit loads a persisted booking into the draft and opens the
// edit menu, so a confirmed appointment can be revised field by field.
func (e *Engine) enterBookingEdit(ctx context.Context, sess *session.Session, rawID string) (Result, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
		return Result{Handled: true}, nil
	}
	b, err := e.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
			return Result{Handled: true}, nil
		}
		return Result{}, fmt.Errorf("flow: load booking: %w", err)
	}
	if b.UserID != sess.UserID {
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
		return Result{Handled: true}, nil
	}

	date := b.Date
	start := b.Start
	sess.Module = "booking"
	sess.Draft = session.Draft{
		DoctorID:         b.DoctorID,
		Date:             &date,
		TimeSlot:         &start,
		DurationMinutes:  b.DurationMinutes,
		Details:          b.Details,
		ServiceID:        b.ServiceID,
		ClinicID:         b.ClinicID,
		BookingType:      string(b.Type),
		ReminderOptIn:    b.ReminderOptIn,
		EditingBookingID: b.ID,
	}
	sess.State = session.StateEditBooking
	e.sendButtons(ctx, sess.UserID, msgPickEditField, nil, []gateway.Choice{
		{ID: editDateID, Title: "Date"},
		{ID: editTimeID, Title: "Time"},
	})
	return Result{Handled: true}, nil
}

func (e *Engine) cancelBookingByID(ctx context.Context, sess *session.Session, rawID string) (Result, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
		return Result{Handled: true}, nil
	}
	b, err := e.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
			return Result{Handled: true}, nil
		}
		return Result{}, fmt.Errorf("flow: load booking: %w", err)
	}
	if b.UserID != sess.UserID {
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
		return Result{Handled: true}, nil
	}
	return e.cancelPersisted(ctx, sess, id)
}

// answerReschedule closes a clinic-proposed move. Accept shifts the original
// booking to the proposed slot and marks the request accepted; decline only
// marks the request, leaving the booking untouched.
func (e *Engine) answerReschedule(ctx context.Context, sess *session.Session, rawID string, accept bool) (Result, error) {
	if e.reschedules == nil {
		e.sendText(ctx, sess.UserID, msgRescheduleGone, nil)
		return Result{Handled: true}, nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		e.sendText(ctx, sess.UserID, msgRescheduleGone, nil)
		return Result{Handled: true}, nil
	}
	req, err := e.reschedules.FindPendingByUser(ctx, sess.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("flow: find reschedule: %w", err)
	}
	if req == nil || req.ID != id {
		e.sendText(ctx, sess.UserID, msgRescheduleGone, nil)
		return Result{Handled: true}, nil
	}

	if !accept {
		if err := e.reschedules.MarkDeclined(ctx, req.ID); err != nil {
			return Result{}, fmt.Errorf("flow: decline reschedule: %w", err)
		}
		e.sendText(ctx, sess.UserID, msgRescheduleDeclined, nil)
		return Result{Handled: true}, nil
	}

	if err := e.bookings.UpdateSlot(ctx, req.BookingID, req.ProposedDate, req.ProposedStart); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
			return Result{Handled: true}, nil
		}
		return Result{}, fmt.Errorf("flow: apply reschedule: %w", err)
	}
	if err := e.reschedules.MarkAccepted(ctx, req.ID); err != nil {
		e.logger.Warn("mark reschedule accepted", "request_id", req.ID, "error", err)
	}
	if e.audit != nil {
		if b, getErr := e.bookings.GetByID(ctx, req.BookingID); getErr == nil {
			if recErr := e.audit.Record(ctx, booking.AuditRescheduled, *b); recErr != nil {
				e.logger.Warn("audit record", "booking_id", req.BookingID, "error", recErr)
			}
		}
	}
	e.sendText(ctx, sess.UserID, msgRescheduleAccepted, map[string]string{
		"date": req.ProposedDate.String(),
		"time": req.ProposedStart.String(),
	})
	return Result{Handled: true, Committed: true}, nil
}
