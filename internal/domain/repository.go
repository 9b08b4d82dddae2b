package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository owns the transactional read-modify-write paths. Attendance
// mutations are serialized per event by the implementation (the event row is
// locked before any attendee row is touched), so two concurrent RSVPs can
// never compute the same waitlist position and a delete-triggered promotion
// can never race a capacity-filling RSVP.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (Event, error)
	GetEventOwnerID(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)

	CancelEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error
	UpdateEvent(ctx context.Context, eventID, callerID uuid.UUID, patch *EventPatch) (Event, error)
	ReactivateEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error
	CloneEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID, eventDate string) (Event, error)

	SaveRSVP(ctx context.Context, traceID string, eventID, userID uuid.UUID, req RSVPRequest) (RSVPResult, error)
	RemoveRSVP(ctx context.Context, traceID string, eventID, userID uuid.UUID) error
	RemoveAttendee(ctx context.Context, traceID string, eventID, targetUserID, actorID uuid.UUID) error
	ListAttendees(ctx context.Context, eventID uuid.UUID, limit int, cursor *KeysetCursor) ([]Attendee, *KeysetCursor, error)

	AddComment(ctx context.Context, eventID, userID uuid.UUID, content string) (Comment, error)
	ListActivity(ctx context.Context, eventID uuid.UUID, limit int) ([]ActivityItem, error)
	GetCarpoolSummary(ctx context.Context, eventID uuid.UUID) (CarpoolSummary, error)

	GetInvite(ctx context.Context, token string) (Invite, Event, error)
	RedeemInvite(ctx context.Context, traceID, token string, userID uuid.UUID) (uuid.UUID, error)
}

// CacheRepository fronts the hot-path checks that don't need the database:
// a short-lived event status snapshot for fast-failing writes against
// cancelled events, and the fixed-window request rate limiter.
type CacheRepository interface {
	GetEventStatus(ctx context.Context, eventID uuid.UUID) (EventStatus, error)
	SetEventStatus(ctx context.Context, eventID uuid.UUID, status EventStatus) error
	InvalidateEvent(ctx context.Context, eventID uuid.UUID) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}
