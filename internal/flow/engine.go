// Package flow drives the booking conversation: one finite-state machine per
// user, fed one inbound message at a time. Each message is handled
// synchronously to completion; the session store carries state between
// messages.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/availability"
	"github.com/swandust/clinic-concierge/internal/booking"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/internal/observability/metrics"
	"github.com/swandust/clinic-concierge/internal/reschedule"
	"github.com/swandust/clinic-concierge/internal/session"
	"github.com/swandust/clinic-concierge/internal/timeparse"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

// BookingStore is the persistence surface the flow mutates.
type BookingStore interface {
	Insert(ctx context.Context, b *booking.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]booking.Booking, error)
	UpdateSlot(ctx context.Context, id uuid.UUID, newDate timeparse.Date, newStart timeparse.TimeOfDay) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SlotResolver answers availability questions. Read-only.
type SlotResolver interface {
	Check(ctx context.Context, clinicID string, doctors []availability.Doctor, date timeparse.Date, start timeparse.TimeOfDay, durationMin int) (int64, bool, error)
	SuggestNearest(ctx context.Context, clinicID string, doctors []availability.Doctor, date timeparse.Date, start timeparse.TimeOfDay, durationMin, maxSearchMin, limit int) ([]availability.Slot, error)
	FreeSlots(ctx context.Context, clinicID string, doctors []availability.Doctor, date timeparse.Date, fromMin, toMin, durationMin int) ([]availability.Slot, error)
}

// RescheduleStore is the accept/decline surface for clinic-proposed moves.
type RescheduleStore interface {
	FindPendingByUser(ctx context.Context, userID string) (*reschedule.Request, error)
	MarkAccepted(ctx context.Context, id uuid.UUID) error
	MarkDeclined(ctx context.Context, id uuid.UUID) error
	DeleteByBooking(ctx context.Context, bookingID uuid.UUID) error
}

// AuditLogger records booking lifecycle events best-effort.
type AuditLogger interface {
	Record(ctx context.Context, action booking.AuditAction, b booking.Booking) error
}

// Result tells the outer layer what happened with one inbound message.
type Result struct {
	Handled   bool
	Committed bool
}

// Options tunes flow behaviour.
type Options struct {
	// NearestSearchMinutes bounds the outward nearest-slot scan.
	NearestSearchMinutes int
	// DefaultDurationMinutes is used when the profile supplies none.
	DefaultDurationMinutes int
	// Location resolves "today"/"tomorrow" and past-date checks.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.NearestSearchMinutes <= 0 {
		o.NearestSearchMinutes = 180
	}
	if o.DefaultDurationMinutes <= 0 {
		o.DefaultDurationMinutes = 30
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Engine is the per-conversation booking state machine.
type Engine struct {
	sessions    session.Store
	bookings    BookingStore
	resolver    SlotResolver
	reschedules RescheduleStore
	directory   availability.DoctorDirectory
	messenger   gateway.Messenger
	renderer    gateway.Renderer
	profiles    gateway.ProfileStore
	audit       AuditLogger
	metrics     *metrics.FlowMetrics
	logger      *logging.Logger
	opts        Options

	now func() time.Time

	handlers map[session.State]handlerFunc
}

type handlerFunc func(ctx context.Context, sess *session.Session, msg gateway.Inbound) (Result, error)

// Deps bundles the engine's collaborators.
type Deps struct {
	Sessions    session.Store
	Bookings    BookingStore
	Resolver    SlotResolver
	Reschedules RescheduleStore
	Directory   availability.DoctorDirectory
	Messenger   gateway.Messenger
	Renderer    gateway.Renderer
	Profiles    gateway.ProfileStore
	Audit       AuditLogger
	Metrics     *metrics.FlowMetrics
	Logger      *logging.Logger
}

// NewEngine wires the state machine. Sessions, bookings, resolver, messenger,
// renderer and profiles are required; the rest may be nil.
func NewEngine(deps Deps, opts Options) *Engine {
	for name, missing := range map[string]bool{
		"sessions":  deps.Sessions == nil,
		"bookings":  deps.Bookings == nil,
		"resolver":  deps.Resolver == nil,
		"messenger": deps.Messenger == nil,
		"renderer":  deps.Renderer == nil,
		"profiles":  deps.Profiles == nil,
		"directory": deps.Directory == nil,
	} {
		if missing {
			panic("flow: " + name + " dependency required")
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions:    deps.Sessions,
		bookings:    deps.Bookings,
		resolver:    deps.Resolver,
		reschedules: deps.Reschedules,
		directory:   deps.Directory,
		messenger:   deps.Messenger,
		renderer:    deps.Renderer,
		profiles:    deps.Profiles,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      logger,
		opts:        opts.withDefaults(),
		now:         time.Now,
	}
	e.handlers = map[session.State]handlerFunc{
		session.StateIdle:               e.handleIdle,
		session.StateRemarkYesNo:        e.handleRemarkYesNo,
		session.StateRemarkInput:        e.handleRemarkInput,
		session.StateSelectDoctor:       e.handleSelectDoctor,
		session.StateSelectDate:         e.handleSelectDate,
		session.StateAwaitingFutureDate: e.handleAwaitingFutureDate,
		session.StateConfirmFutureDate:  e.handleConfirmFutureDate,
		session.StateAwaitingTimeInput:  e.handleAwaitingTimeInput,
		session.StateConfirmTime:        e.handleConfirmTime,
		session.StateConfirmClosestTime: e.handleConfirmClosestTime,
		session.StateRetryTimeOrHelp:    e.handleRetryTimeOrHelp,
		session.StateSelectPeriod:       e.handleSelectPeriod,
		session.StateSelectHour:         e.handleSelectHour,
		session.StateSelectTimeSlot:     e.handleSelectTimeSlot,
		session.StateConfirmBooking:     e.handleConfirmBooking,
		session.StateEditBooking:        e.handleEditBooking,
	}
	return e
}

// HandleMessage processes one inbound message for a user. It never panics
// upward: unexpected failures log, tell the user, and force the session back
// to idle so the conversation can always continue.
func (e *Engine) HandleMessage(ctx context.Context, userID string, msg gateway.Inbound) (result Result, err error) {
	started := e.now()

	sess, loadErr := e.sessions.Get(ctx, userID)
	if loadErr != nil {
		e.logger.Error("load session", "user_id", userID, "error", loadErr)
		return Result{}, fmt.Errorf("flow: load session: %w", loadErr)
	}
	if sess == nil {
		sess = session.New(userID)
	}
	fromState := sess.State

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panic", "user_id", userID, "state", fromState.String(), "panic", r)
			e.sendText(ctx, userID, msgGenericTrouble, nil)
			sess.Reset()
			if putErr := e.sessions.Put(ctx, sess); putErr != nil {
				e.logger.Error("reset session after panic", "user_id", userID, "error", putErr)
			}
			result = Result{Handled: true}
			err = nil
		}
		e.metrics.ObserveHandleLatency(fromState.String(), e.now().Sub(started).Seconds())
	}()

	// Out-of-band entries work from any state: managing an existing booking
	// or answering a clinic-proposed reschedule.
	if handled, res, obErr := e.handleOutOfBand(ctx, sess, msg); handled {
		if obErr != nil {
			return e.failSafe(ctx, sess, fromState, obErr)
		}
		if putErr := e.sessions.Put(ctx, sess); putErr != nil {
			return Result{}, fmt.Errorf("flow: save session: %w", putErr)
		}
		e.metrics.ObserveTransition(fromState.String(), sess.State.String())
		return res, nil
	}

	handler, ok := e.handlers[sess.State]
	if !ok {
		// Undefined state in the store, e.g. after a bad deploy. Recover to
		// idle rather than wedging the conversation.
		e.logger.Warn("unknown session state", "user_id", userID, "state", int(sess.State))
		sess.Reset()
		handler = e.handleIdle
	}

	res, handleErr := handler(ctx, sess, msg)
	if handleErr != nil {
		return e.failSafe(ctx, sess, fromState, handleErr)
	}

	if putErr := e.sessions.Put(ctx, sess); putErr != nil {
		return Result{}, fmt.Errorf("flow: save session: %w", putErr)
	}
	e.metrics.ObserveTransition(fromState.String(), sess.State.String())
	return res, nil
}

// failSafe is the uniform unhappy path: classify the error, tell the user,
// reset to idle. Storage errors are never silently retried, that is how
// duplicate bookings happen.
func (e *Engine) failSafe(ctx context.Context, sess *session.Session, fromState session.State, cause error) (Result, error) {
	switch {
	case errors.Is(cause, booking.ErrNotFound):
		e.sendText(ctx, sess.UserID, msgBookingNotFound, nil)
	case errors.Is(cause, booking.ErrSlotTaken):
		// Conflicts are normally handled inline by the commit path; one
		// reaching here means the fallback itself failed.
		e.sendText(ctx, sess.UserID, msgStorageTrouble, nil)
	default:
		e.sendText(ctx, sess.UserID, msgStorageTrouble, nil)
	}
	e.logger.Error("flow handler failed", "user_id", sess.UserID, "state", fromState.String(), "error", cause)
	sess.Reset()
	if putErr := e.sessions.Put(ctx, sess); putErr != nil {
		e.logger.Error("reset session after failure", "user_id", sess.UserID, "error", putErr)
	}
	e.metrics.ObserveTransition(fromState.String(), sess.State.String())
	return Result{Handled: true}, cause
}

// choiceOf extracts the selected option id. Free text matching an option id
// is accepted so typed "yes"/"no" works alongside the buttons.
func choiceOf(msg gateway.Inbound) string {
	if id := gateway.ChoiceID(msg); id != "" {
		return id
	}
	if t, ok := msg.(gateway.Text); ok {
		return strings.ToLower(strings.TrimSpace(t.Body))
	}
	return ""
}

func textOf(msg gateway.Inbound) (string, bool) {
	t, ok := msg.(gateway.Text)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(t.Body), true
}

// Delivery failures are logged, not fatal: losing one outbound message must
// not corrupt conversation state.
func (e *Engine) sendText(ctx context.Context, userID, template string, vars map[string]string) {
	body := e.renderer.Render(ctx, userID, template, vars)
	if err := e.messenger.SendText(ctx, userID, body); err != nil {
		e.logger.Warn("send text", "user_id", userID, "error", err)
	}
}

func (e *Engine) sendButtons(ctx context.Context, userID, template string, vars map[string]string, choices []gateway.Choice) {
	body := e.renderer.Render(ctx, userID, template, vars)
	if err := e.messenger.SendButtons(ctx, userID, body, choices); err != nil {
		e.logger.Warn("send buttons", "user_id", userID, "error", err)
	}
}

func (e *Engine) sendList(ctx context.Context, userID, template string, vars map[string]string, choices []gateway.Choice) {
	body := e.renderer.Render(ctx, userID, template, vars)
	if err := e.messenger.SendList(ctx, userID, body, choices); err != nil {
		e.logger.Warn("send list", "user_id", userID, "error", err)
	}
}

func yesNoChoices() []gateway.Choice {
	return []gateway.Choice{{ID: choiceYes, Title: "Yes"}, {ID: choiceNo, Title: "No"}}
}
