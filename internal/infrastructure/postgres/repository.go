package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/powderplans/event-service/internal/audit"
	"github.com/powderplans/event-service/internal/contracts/notify"
	"github.com/powderplans/event-service/internal/domain"
)

type Repository struct {
	pool  *pgxpool.Pool
	guard domain.Guard
	audit *audit.Logger
}

func New(pool *pgxpool.Pool, auditLog *audit.Logger) *Repository {
	return &Repository{pool: pool, guard: domain.NewGuard(), audit: auditLog}
}

// NewWithGuard is used by tests that pin the clock.
func NewWithGuard(pool *pgxpool.Pool, auditLog *audit.Logger, g domain.Guard) *Repository {
	return &Repository{pool: pool, guard: g, audit: auditLog}
}

// -------------------------
// Deadlock policy:
// Every attendance mutation locks rows for the same event in this order:
//   1) events row (FOR UPDATE) - this serializes all mutations per event
//   2) attendees row for (event_id,user_id) if needed (FOR UPDATE)
// Invite redemption locks the invites row before the events row; no other
// path locks invites, so no cycle is possible.
// -------------------------

const eventColumns = `id, creator_id, mountain_id, title, notes, event_date,
	departure_time, departure_location, skill_level, carpool_available,
	carpool_seats, max_attendees, status, going_count, maybe_count,
	waitlist_count, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.CreatorID, &e.MountainID, &e.Title, &e.Notes, &e.EventDate,
		&e.DepartureTime, &e.DepartureLocation, &e.SkillLevel,
		&e.CarpoolAvailable, &e.CarpoolSeats, &e.MaxAttendees, &e.Status,
		&e.GoingCount, &e.MaybeCount, &e.WaitlistCount,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, domain.ErrEventNotFound
	}
	return e, err
}

const attendeeColumns = `id, event_id, user_id, status, waitlist_position,
	is_driver, needs_ride, pickup_location, responded_at, created_at, updated_at`

func scanAttendee(row pgx.Row) (domain.Attendee, error) {
	var a domain.Attendee
	err := row.Scan(
		&a.ID, &a.EventID, &a.UserID, &a.Status, &a.WaitlistPosition,
		&a.IsDriver, &a.NeedsRide, &a.PickupLocation,
		&a.RespondedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *Repository) GetEvent(ctx context.Context, eventID uuid.UUID) (domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
}

func (r *Repository) GetEventOwnerID(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT creator_id FROM events WHERE id = $1`, eventID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, domain.ErrEventNotFound
	}
	return owner, err
}

// lockEvent takes the per-event serialization lock.
func (r *Repository) lockEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (domain.Event, error) {
	return scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
}

// recount recomputes the cached counters from the attendee set inside the
// caller's transaction. Counters are never incremented blind.
func recount(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE events SET
			going_count    = (SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND status = 'going'),
			maybe_count    = (SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND status = 'maybe'),
			waitlist_count = (SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND status = 'waitlist'),
			updated_at     = NOW()
		WHERE id = $1
	`, eventID)
	return err
}

// insertOutbox stages a notification in the same transaction as the state
// transition. Delivery is the outbox worker's problem; a publish failure
// never rolls the transition back.
func insertOutbox(ctx context.Context, tx pgx.Tx, traceID, routingKey string, payload any) {
	messageID := uuid.New()
	env := notify.Envelope[any]{
		Version:    1,
		Producer:   "event-service",
		TraceID:    traceID,
		MessageID:  messageID.String(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return
	}
	_, _ = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1, $2, $3, $4, NOW(), 'pending')
	`, messageID, traceID, routingKey, body)
}
