package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"

	// EventCompleted is derived from the event date being in the past.
	// It is never written to storage.
	EventCompleted EventStatus = "completed"
)

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPDeclined RSVPStatus = "declined"
	RSVPWaitlist RSVPStatus = "waitlist"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrMountainNotFound = errors.New("mountain not found")
	ErrInviteNotFound   = errors.New("invite not found")
	ErrNotAttending     = errors.New("no RSVP found for this event")

	ErrAlreadyCancelled = errors.New("event is already cancelled")
	ErrEventCancelled   = errors.New("event is cancelled")
	ErrEventCompleted   = errors.New("event already completed")
	ErrEventPast        = errors.New("event date is in the past")
	ErrEventInactive    = errors.New("event is inactive")
	ErrEventClosed      = errors.New("event is cancelled or completed")
	ErrEditCancelled    = errors.New("event is cancelled; reactivate it before editing")
	ErrNotCancelled     = errors.New("only cancelled events can be reactivated")
	ErrReactivatePast   = errors.New("cannot reactivate a past event; clone it with a new date instead")

	ErrNotCreator         = errors.New("must be the event creator")
	ErrCreatorRSVP        = errors.New("creator cannot RSVP to own event")
	ErrCreatorUnsubscribe = errors.New("creator cannot remove RSVP; cancel the event instead")
	ErrInvalidRSVPStatus  = errors.New("invalid RSVP status")

	ErrInviteInvalid = errors.New("invite no longer valid")

	ErrCacheMiss = errors.New("cache miss")
)

// ValidationError reports a single offending field. An empty Field means the
// request as a whole was unusable (e.g. no recognized fields at all).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

// CapacityBelowGoingError rejects a maxAttendees reduction under the current
// going count. The count is part of the user-facing message.
type CapacityBelowGoingError struct {
	Requested int
	Going     int
}

func (e *CapacityBelowGoingError) Error() string {
	return fmt.Sprintf("maxAttendees cannot be set below current attendees (%d going)", e.Going)
}

type Event struct {
	ID         uuid.UUID
	CreatorID  uuid.UUID
	MountainID uuid.UUID

	Title             string
	Notes             *string
	EventDate         time.Time // calendar date, midnight UTC
	DepartureTime     *string   // "HH:MM"
	DepartureLocation *string
	SkillLevel        *string
	CarpoolAvailable  bool
	CarpoolSeats      int
	MaxAttendees      *int // nil = unlimited

	Status EventStatus

	GoingCount    int
	MaybeCount    int
	WaitlistCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *Event) IsCreator(userID uuid.UUID) bool {
	return e.CreatorID == userID
}

// IsPast reports whether the event date is strictly before today.
// Events dated today are still mutable.
func (e *Event) IsPast(today time.Time) bool {
	return e.EventDate.Before(today)
}

// EffectiveStatus folds the event date into the stored status: a past-dated
// active event reads as completed.
func (e *Event) EffectiveStatus(today time.Time) EventStatus {
	if e.Status == EventCancelled {
		return EventCancelled
	}
	if e.IsPast(today) {
		return EventCompleted
	}
	return EventActive
}

// AtCapacity reports whether the going count has reached the attendee limit.
// Unlimited events are never at capacity.
func (e *Event) AtCapacity() bool {
	return e.MaxAttendees != nil && e.GoingCount >= *e.MaxAttendees
}

type Attendee struct {
	ID      uuid.UUID
	EventID uuid.UUID
	UserID  uuid.UUID

	Status           RSVPStatus
	WaitlistPosition *int // set only while Status == RSVPWaitlist
	IsDriver         bool
	NeedsRide        bool
	PickupLocation   *string

	RespondedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Comment struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    uuid.UUID
	Content   string
	CreatedAt time.Time
}

type Invite struct {
	Token     string
	EventID   uuid.UUID
	CreatedBy uuid.UUID
	Uses      int
	MaxUses   *int
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

func (i *Invite) Exhausted() bool {
	return i.MaxUses != nil && i.Uses >= *i.MaxUses
}

type KeysetCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// RSVPRequest is the caller's raw RSVP payload; Status is validated by
// ParseRSVPStatus before any decision is made.
type RSVPRequest struct {
	Status         string
	IsDriver       bool
	NeedsRide      bool
	PickupLocation *string
}

type RSVPResult struct {
	Attendee      Attendee
	WasWaitlisted bool
}

type ActivityItem struct {
	UserID      uuid.UUID
	Status      RSVPStatus
	RespondedAt time.Time
}

type CarpoolDriver struct {
	UserID         uuid.UUID
	PickupLocation *string
}

// CarpoolSummary aggregates the carpool view: going attendees who drive,
// attendees needing a ride, and the seat count offered on the event itself.
type CarpoolSummary struct {
	Drivers      []CarpoolDriver
	Riders       []uuid.UUID
	SeatsOffered int
}
