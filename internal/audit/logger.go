package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/domain"
	appCtx "github.com/powderplans/event-service/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// RSVPSaved logs an RSVP create or update, including a capacity redirect to
// the waitlist.
func (l *Logger) RSVPSaved(ctx context.Context, eventID, userID uuid.UUID, status domain.RSVPStatus, wasWaitlisted bool) {
	l.log.Info().
		Str("action", "rsvp_saved").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("status", string(status)).
		Bool("was_waitlisted", wasWaitlisted).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("RSVP saved")
}

// RSVPRemoved logs a withdrawal, self-initiated or by the event creator.
func (l *Logger) RSVPRemoved(ctx context.Context, eventID, userID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "rsvp_removed").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("RSVP removed")
}

// EventCancelled logs the active -> cancelled transition.
func (l *Logger) EventCancelled(ctx context.Context, eventID, actorID uuid.UUID) {
	l.log.Warn().
		Str("action", "event_cancelled").
		Str("event_id", eventID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Event cancelled")
}

// EventReactivated logs the cancelled -> active transition.
func (l *Logger) EventReactivated(ctx context.Context, eventID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "event_reactivated").
		Str("event_id", eventID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Event reactivated")
}

// EventCloned logs a clone, carrying both the source and the new event id.
func (l *Logger) EventCloned(ctx context.Context, sourceID, cloneID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "event_cloned").
		Str("source_event_id", sourceID.String()).
		Str("event_id", cloneID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Event cloned")
}

// InviteRedeemed logs a successful invite redemption.
func (l *Logger) InviteRedeemed(ctx context.Context, eventID, userID uuid.UUID) {
	l.log.Info().
		Str("action", "invite_redeemed").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Invite redeemed")
}

// OutboxMessageSent logs when an outbox message is successfully published
func (l *Logger) OutboxMessageSent(ctx context.Context, messageID, routingKey string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Msg("Outbox message sent")
}

// OutboxMessageDead logs when an outbox message is moved to dead status
func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
