package domain

import (
	"time"

	"github.com/google/uuid"
)

// Guard is the single place that decides which transitions an event admits in
// its current state. Every handler path (cancel, edit, reactivate, clone,
// RSVP, unsubscribe, comment, calendar, activity, carpool, invites) consults
// it instead of re-deriving the cancelled/past checks per route.
type Guard struct {
	Now func() time.Time
}

func NewGuard() Guard {
	return Guard{Now: time.Now}
}

// Today returns the current calendar date at midnight UTC.
func (g Guard) Today() time.Time {
	now := g.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CanCancel: active -> cancelled. Repeated cancels fail loudly rather than
// succeeding silently; the invariant is deliberate.
func (g Guard) CanCancel(e *Event, callerID uuid.UUID) error {
	if !e.IsCreator(callerID) {
		return ErrNotCreator
	}
	if e.Status == EventCancelled {
		return ErrAlreadyCancelled
	}
	if e.IsPast(g.Today()) {
		return ErrEventPast
	}
	return nil
}

// CanEdit: field mutations are only legal while the event is effectively
// active.
func (g Guard) CanEdit(e *Event, callerID uuid.UUID) error {
	if !e.IsCreator(callerID) {
		return ErrNotCreator
	}
	if e.Status == EventCancelled {
		return ErrEditCancelled
	}
	if e.IsPast(g.Today()) {
		return ErrEventCompleted
	}
	return nil
}

// CanReactivate: cancelled -> active, creator only, date still upcoming.
func (g Guard) CanReactivate(e *Event, callerID uuid.UUID) error {
	if !e.IsCreator(callerID) {
		return ErrNotCreator
	}
	if e.Status != EventCancelled {
		return ErrNotCancelled
	}
	if e.IsPast(g.Today()) {
		return ErrReactivatePast
	}
	return nil
}

// CanClone only constrains the target date. Cloning a cancelled source event
// is allowed; that is how a dead outing gets rescheduled.
func (g Guard) CanClone(targetDate time.Time) error {
	if targetDate.Before(g.Today()) {
		return &ValidationError{Field: "eventDate", Reason: "must be today or later"}
	}
	return nil
}

// CanRSVP guards RSVP creation and updates. The creator is implicitly going
// by ownership and never holds an attendee row.
func (g Guard) CanRSVP(e *Event, callerID uuid.UUID) error {
	if e.Status == EventCancelled {
		return ErrEventCancelled
	}
	if e.IsPast(g.Today()) {
		return ErrEventPast
	}
	if e.IsCreator(callerID) {
		return ErrCreatorRSVP
	}
	return nil
}

// CanUnsubscribe guards RSVP removal, both self-initiated and owner-initiated.
func (g Guard) CanUnsubscribe(e *Event, callerID uuid.UUID) error {
	if e.IsCreator(callerID) {
		return ErrCreatorUnsubscribe
	}
	if e.Status == EventCancelled {
		return ErrEventInactive
	}
	if e.IsPast(g.Today()) {
		return ErrEventPast
	}
	return nil
}

// CanRemoveAttendee guards the owner-initiated removal of someone else's
// RSVP. The creator themselves never holds a row to remove.
func (g Guard) CanRemoveAttendee(e *Event, actorID uuid.UUID) error {
	if !e.IsCreator(actorID) {
		return ErrNotCreator
	}
	if e.Status == EventCancelled {
		return ErrEventInactive
	}
	if e.IsPast(g.Today()) {
		return ErrEventPast
	}
	return nil
}

// CanComment rejects writes on unavailable events. The message distinguishes
// a cancelled event from one that has simply ended.
func (g Guard) CanComment(e *Event) error {
	if e.Status == EventCancelled {
		return ErrEventCancelled
	}
	if e.IsPast(g.Today()) {
		return ErrEventClosed
	}
	return nil
}

// CanExportCalendar: cancelled events produce no calendar entry. Past events
// remain exportable.
func (g Guard) CanExportCalendar(e *Event) error {
	if e.Status == EventCancelled {
		return ErrEventCancelled
	}
	return nil
}

// Unavailable is the read-side counterpart to the write guards: read-only
// dashboard views on a cancelled or ended event degrade to an empty 200
// payload carrying the returned message instead of erroring.
func (g Guard) Unavailable(e *Event) (string, bool) {
	if e.Status == EventCancelled {
		return "this event has been cancelled", true
	}
	if e.IsPast(g.Today()) {
		return "this event has ended", true
	}
	return "", false
}

// InviteValid reports whether a token still grants access: unexpired, under
// its use limit, and pointing at an active upcoming event.
func (g Guard) InviteValid(inv *Invite, e *Event) bool {
	if inv.Expired(g.Now().UTC()) || inv.Exhausted() {
		return false
	}
	if e.Status != EventActive || e.IsPast(g.Today()) {
		return false
	}
	return true
}
