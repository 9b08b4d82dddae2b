package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/contracts/notify"
	"github.com/powderplans/event-service/internal/domain"
)

func (r *Repository) CancelEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error {
	traceID = strings.TrimSpace(traceID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := r.lockEvent(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if err := r.guard.CanCancel(&e, callerID); err != nil {
		return err
	}

	// soft transition: the row persists, attendee rows persist
	_, err = tx.Exec(ctx,
		`UPDATE events SET status = 'cancelled', updated_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return err
	}

	insertOutbox(ctx, tx, traceID, notify.RKEventCancelled, notify.LifecyclePayload{
		EventID: eventID.String(),
		Status:  string(domain.EventCancelled),
		ActorID: callerID.String(),
	})

	return tx.Commit(ctx)
}

func (r *Repository) ReactivateEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error {
	traceID = strings.TrimSpace(traceID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := r.lockEvent(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if err := r.guard.CanReactivate(&e, callerID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET status = 'active', updated_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return err
	}

	insertOutbox(ctx, tx, traceID, notify.RKEventReactivated, notify.LifecyclePayload{
		EventID: eventID.String(),
		Status:  string(domain.EventActive),
		ActorID: callerID.String(),
	})

	return tx.Commit(ctx)
}

func (r *Repository) UpdateEvent(ctx context.Context, eventID, callerID uuid.UUID, patch *domain.EventPatch) (domain.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := r.lockEvent(ctx, tx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := r.guard.CanEdit(&e, callerID); err != nil {
		return domain.Event{}, err
	}
	// validated against the going count under the event lock, so a racing
	// RSVP cannot slip past a capacity reduction
	if err := patch.Validate(r.guard.Today(), e.GoingCount); err != nil {
		return domain.Event{}, err
	}
	patch.Apply(&e)

	row := tx.QueryRow(ctx, `
		UPDATE events SET
			title = $2,
			notes = $3,
			event_date = $4,
			departure_time = $5,
			departure_location = $6,
			skill_level = $7,
			carpool_available = $8,
			carpool_seats = $9,
			max_attendees = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+eventColumns,
		e.ID, e.Title, e.Notes, e.EventDate, e.DepartureTime,
		e.DepartureLocation, e.SkillLevel, e.CarpoolAvailable,
		e.CarpoolSeats, e.MaxAttendees,
	)
	updated, err := scanEvent(row)
	if err != nil {
		return domain.Event{}, err
	}

	return updated, tx.Commit(ctx)
}

func (r *Repository) CloneEvent(ctx context.Context, traceID string, eventID, callerID uuid.UUID, eventDate string) (domain.Event, error) {
	date, err := domain.ParseEventDate(eventDate, r.guard.Today())
	if err != nil {
		return domain.Event{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// cancelled sources are valid clone material
	src, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if err != nil {
		return domain.Event{}, err
	}

	var mountainExists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM mountains WHERE id = $1)`, src.MountainID).Scan(&mountainExists)
	if err != nil {
		return domain.Event{}, err
	}
	if !mountainExists {
		return domain.Event{}, domain.ErrMountainNotFound
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO events (
			id, creator_id, mountain_id, title, notes, event_date,
			departure_time, departure_location, skill_level,
			carpool_available, carpool_seats, max_attendees,
			status, going_count, maybe_count, waitlist_count,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			'active', 0, 0, 0, NOW(), NOW())
		RETURNING `+eventColumns,
		uuid.New(), callerID, src.MountainID, src.Title, src.Notes, date,
		src.DepartureTime, src.DepartureLocation, src.SkillLevel,
		src.CarpoolAvailable, src.CarpoolSeats, src.MaxAttendees,
	)
	clone, err := scanEvent(row)
	if err != nil {
		return domain.Event{}, err
	}

	return clone, tx.Commit(ctx)
}
