package notify

import "time"

// Envelope is the canonical envelope published to the notification exchange.
// The notification service owns delivery; this service only emits.
type Envelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

// Routing keys on the notification exchange.
const (
	RKRSVPCreated      = "notify.rsvp_created"
	RKRSVPUpdated      = "notify.rsvp_updated"
	RKRSVPRemoved      = "notify.rsvp_removed"
	RKWaitlistPromoted = "notify.waitlist_promoted"
	RKEventCancelled   = "notify.event_cancelled"
	RKEventReactivated = "notify.event_reactivated"
	RKInviteRedeemed   = "notify.invite_redeemed"
)

// RSVPPayload notifies the event creator about a new or changed RSVP.
type RSVPPayload struct {
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	WasWaitlisted bool   `json:"was_waitlisted,omitempty"`
}

// PromotionPayload notifies a user they moved off the waitlist.
type PromotionPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason,omitempty"`
}

// InviteRedeemedPayload notifies the creator that a shared link was used.
type InviteRedeemedPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// LifecyclePayload notifies attendees about event-level transitions.
type LifecyclePayload struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	ActorID string `json:"actor_id,omitempty"`
}
