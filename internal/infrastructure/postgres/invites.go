package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/powderplans/event-service/internal/contracts/notify"
	"github.com/powderplans/event-service/internal/domain"
)

const inviteColumns = `token, event_id, created_by, uses, max_uses, expires_at, created_at`

func scanInvite(row pgx.Row) (domain.Invite, error) {
	var i domain.Invite
	err := row.Scan(&i.Token, &i.EventID, &i.CreatedBy, &i.Uses, &i.MaxUses, &i.ExpiresAt, &i.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return i, domain.ErrInviteNotFound
	}
	return i, err
}

func (r *Repository) GetInvite(ctx context.Context, token string) (domain.Invite, domain.Event, error) {
	inv, err := scanInvite(r.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE token = $1`, strings.TrimSpace(token)))
	if err != nil {
		return domain.Invite{}, domain.Event{}, err
	}

	e, err := r.GetEvent(ctx, inv.EventID)
	if err != nil {
		return domain.Invite{}, domain.Event{}, err
	}
	return inv, e, nil
}

// RedeemInvite re-checks validity and bumps the use counter under row locks,
// so two concurrent redemptions cannot both consume the last use.
func (r *Repository) RedeemInvite(ctx context.Context, traceID, token string, userID uuid.UUID) (uuid.UUID, error) {
	traceID = strings.TrimSpace(traceID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, err := scanInvite(tx.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE token = $1 FOR UPDATE`, strings.TrimSpace(token)))
	if err != nil {
		return uuid.Nil, err
	}

	e, err := r.lockEvent(ctx, tx, inv.EventID)
	if err != nil {
		return uuid.Nil, err
	}

	// redemption is a write: no degraded path, hard reject
	if !r.guard.InviteValid(&inv, &e) {
		return uuid.Nil, domain.ErrInviteInvalid
	}

	_, err = tx.Exec(ctx,
		`UPDATE invites SET uses = uses + 1 WHERE token = $1`, inv.Token)
	if err != nil {
		return uuid.Nil, err
	}

	insertOutbox(ctx, tx, traceID, notify.RKInviteRedeemed, notify.InviteRedeemedPayload{
		EventID: inv.EventID.String(),
		UserID:  userID.String(),
	})

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return inv.EventID, nil
}
