package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/powderplans/event-service/internal/contracts/notify"
	"github.com/powderplans/event-service/internal/domain"
)

func (r *Repository) SaveRSVP(ctx context.Context, traceID string, eventID, userID uuid.UUID, req domain.RSVPRequest) (domain.RSVPResult, error) {
	traceID = strings.TrimSpace(traceID)

	status, err := domain.ParseRSVPStatus(req.Status)
	if err != nil {
		return domain.RSVPResult{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.RSVPResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) lock the event row first; this serializes every attendance
	//    mutation for the event
	e, err := r.lockEvent(ctx, tx, eventID)
	if err != nil {
		return domain.RSVPResult{}, err
	}
	if err := r.guard.CanRSVP(&e, userID); err != nil {
		return domain.RSVPResult{}, err
	}

	// 2) lock the caller's attendee row second, if one exists
	var existingID uuid.UUID
	var existingStatus domain.RSVPStatus
	var existingPos *int
	found := true
	err = tx.QueryRow(ctx, `
		SELECT id, status, waitlist_position
		FROM attendees
		WHERE event_id = $1 AND user_id = $2
		FOR UPDATE
	`, eventID, userID).Scan(&existingID, &existingStatus, &existingPos)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.RSVPResult{}, err
		}
		found = false
	}

	var maxPos int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(waitlist_position), 0)
		FROM attendees
		WHERE event_id = $1 AND status = 'waitlist'
	`, eventID).Scan(&maxPos)
	if err != nil {
		return domain.RSVPResult{}, err
	}

	wasGoing := found && existingStatus == domain.RSVPGoing
	decision := domain.DecideRSVP(&e, status, wasGoing, maxPos)

	// a waitlisted attendee keeps their position; positions are stable
	// identifiers, not a dense rank
	if found && existingStatus == domain.RSVPWaitlist &&
		decision.Status == domain.RSVPWaitlist && existingPos != nil {
		decision.WaitlistPosition = existingPos
	}

	var att domain.Attendee
	if found {
		att, err = scanAttendee(tx.QueryRow(ctx, `
			UPDATE attendees SET
				status = $2,
				waitlist_position = $3,
				is_driver = $4,
				needs_ride = $5,
				pickup_location = $6,
				responded_at = NOW(),
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+attendeeColumns,
			existingID, decision.Status, decision.WaitlistPosition,
			req.IsDriver, req.NeedsRide, req.PickupLocation,
		))
	} else {
		att, err = scanAttendee(tx.QueryRow(ctx, `
			INSERT INTO attendees (
				id, event_id, user_id, status, waitlist_position,
				is_driver, needs_ride, pickup_location,
				responded_at, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), NOW())
			RETURNING `+attendeeColumns,
			uuid.New(), eventID, userID, decision.Status,
			decision.WaitlistPosition, req.IsDriver, req.NeedsRide,
			req.PickupLocation,
		))
	}
	if err != nil {
		return domain.RSVPResult{}, err
	}

	if err := recount(ctx, tx, eventID); err != nil {
		return domain.RSVPResult{}, err
	}

	rk := notify.RKRSVPCreated
	if found {
		rk = notify.RKRSVPUpdated
	}
	insertOutbox(ctx, tx, traceID, rk, notify.RSVPPayload{
		EventID:       eventID.String(),
		UserID:        userID.String(),
		Status:        string(att.Status),
		WasWaitlisted: decision.WasWaitlisted,
	})

	if err := tx.Commit(ctx); err != nil {
		return domain.RSVPResult{}, err
	}
	return domain.RSVPResult{Attendee: att, WasWaitlisted: decision.WasWaitlisted}, nil
}

func (r *Repository) RemoveRSVP(ctx context.Context, traceID string, eventID, userID uuid.UUID) error {
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
	if err := r.guard.CanUnsubscribe(&e, userID); err != nil {
		return err
	}

	if err := r.deleteAndPromote(ctx, tx, traceID, &e, userID); err != nil {
		return err
	}

	insertOutbox(ctx, tx, traceID, notify.RKRSVPRemoved, notify.RSVPPayload{
		EventID: eventID.String(),
		UserID:  userID.String(),
	})

	return tx.Commit(ctx)
}

// RemoveAttendee is the owner-initiated variant of RemoveRSVP and shares the
// promotion cascade.
func (r *Repository) RemoveAttendee(ctx context.Context, traceID string, eventID, targetUserID, actorID uuid.UUID) error {
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
	if err := r.guard.CanRemoveAttendee(&e, actorID); err != nil {
		return err
	}

	if err := r.deleteAndPromote(ctx, tx, traceID, &e, targetUserID); err != nil {
		return err
	}

	insertOutbox(ctx, tx, traceID, notify.RKRSVPRemoved, notify.RSVPPayload{
		EventID: eventID.String(),
		UserID:  targetUserID.String(),
	})

	return tx.Commit(ctx)
}

// deleteAndPromote removes one attendee row and, when that frees a going
// slot on a capacity-limited event, promotes the lowest-positioned
// waitlisted attendee inside the same transaction. The caller already holds
// the event lock, so no racing RSVP can double-fill the freed slot.
func (r *Repository) deleteAndPromote(ctx context.Context, tx pgx.Tx, traceID string, e *domain.Event, userID uuid.UUID) error {
	var removed domain.RSVPStatus
	err := tx.QueryRow(ctx, `
		SELECT status
		FROM attendees
		WHERE event_id = $1 AND user_id = $2
		FOR UPDATE
	`, e.ID, userID).Scan(&removed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotAttending
		}
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM attendees WHERE event_id = $1 AND user_id = $2`, e.ID, userID)
	if err != nil {
		return err
	}

	if domain.ShouldPromote(removed, e) {
		var promoted uuid.UUID
		err = tx.QueryRow(ctx, `
			SELECT user_id
			FROM attendees
			WHERE event_id = $1 AND status = 'waitlist'
			ORDER BY waitlist_position ASC
			LIMIT 1
			FOR UPDATE
		`, e.ID).Scan(&promoted)
		switch {
		case err == nil:
			// position cleared, remaining positions keep their gaps
			_, err = tx.Exec(ctx, `
				UPDATE attendees
				SET status = 'going', waitlist_position = NULL,
				    responded_at = NOW(), updated_at = NOW()
				WHERE event_id = $1 AND user_id = $2
			`, e.ID, promoted)
			if err != nil {
				return err
			}
			insertOutbox(ctx, tx, traceID, notify.RKWaitlistPromoted, notify.PromotionPayload{
				EventID: e.ID.String(),
				UserID:  promoted.String(),
				Reason:  "slot_freed",
			})
		case errors.Is(err, pgx.ErrNoRows):
			// nobody waitlisted; the slot simply opens up
		default:
			return err
		}
	}

	return recount(ctx, tx, e.ID)
}

// ListAttendees: ORDER BY created_at DESC, id DESC with a keyset cursor
// meaning "start after this item".
func (r *Repository) ListAttendees(ctx context.Context, eventID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Attendee, *domain.KeysetCursor, error) {
	limit = clampLimit(limit)

	args := []any{eventID}
	where := "WHERE event_id = $1"
	argN := 2
	if cursor != nil {
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argN, argN+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argN += 2
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM attendees
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, attendeeColumns, where, argN), args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []domain.Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.KeysetCursor
	if len(items) == limit {
		last := items[len(items)-1]
		next = &domain.KeysetCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return items, next, nil
}

func (r *Repository) ListActivity(ctx context.Context, eventID uuid.UUID, limit int) ([]domain.ActivityItem, error) {
	limit = clampLimit(limit)

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, status, responded_at
		FROM attendees
		WHERE event_id = $1
		ORDER BY responded_at DESC
		LIMIT $2
	`, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ActivityItem
	for rows.Next() {
		var it domain.ActivityItem
		if err := rows.Scan(&it.UserID, &it.Status, &it.RespondedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) GetCarpoolSummary(ctx context.Context, eventID uuid.UUID) (domain.CarpoolSummary, error) {
	e, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return domain.CarpoolSummary{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, is_driver, needs_ride, pickup_location
		FROM attendees
		WHERE event_id = $1 AND status = 'going' AND (is_driver OR needs_ride)
		ORDER BY responded_at ASC
	`, eventID)
	if err != nil {
		return domain.CarpoolSummary{}, err
	}
	defer rows.Close()

	var s domain.CarpoolSummary
	for rows.Next() {
		var userID uuid.UUID
		var isDriver, needsRide bool
		var pickup *string
		if err := rows.Scan(&userID, &isDriver, &needsRide, &pickup); err != nil {
			return domain.CarpoolSummary{}, err
		}
		if isDriver {
			s.Drivers = append(s.Drivers, domain.CarpoolDriver{UserID: userID, PickupLocation: pickup})
		}
		if needsRide {
			s.Riders = append(s.Riders, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.CarpoolSummary{}, err
	}

	if e.CarpoolAvailable {
		s.SeatsOffered = e.CarpoolSeats
	}
	return s, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
