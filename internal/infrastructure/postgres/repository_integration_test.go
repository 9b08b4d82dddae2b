//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/powderplans/event-service/internal/audit"
	"github.com/powderplans/event-service/internal/domain"
	"github.com/powderplans/event-service/internal/infrastructure/postgres"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper: Setup DB connection, run migrations, and reset state.
func setupRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DB_DSN not set")
	}

	require.NoError(t, postgres.Migrate(dsn))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE attendees, comments, invites, outbox, events, mountains RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return postgres.New(pool, audit.New(zerolog.Nop())), pool
}

func seedMountain(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO mountains (id, name, region) VALUES ($1, 'Whistler', 'BC')`, id)
	require.NoError(t, err)
	return id
}

func seedEvent(t *testing.T, pool *pgxpool.Pool, mountainID, creatorID uuid.UUID, maxAttendees *int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	date := time.Now().UTC().AddDate(0, 0, 7)
	_, err := pool.Exec(context.Background(), `
		INSERT INTO events (id, creator_id, mountain_id, title, event_date, max_attendees, status)
		VALUES ($1, $2, $3, 'Powder day', $4, $5, 'active')
	`, id, creatorID, mountainID, date, maxAttendees)
	require.NoError(t, err)
	return id
}

func intp(v int) *int { return &v }

// TestRSVPFlow_CapacityRedirectsToWaitlist verifies the standard flow:
// going until capacity, then automatic waitlist with increasing positions.
func TestRSVPFlow_CapacityRedirectsToWaitlist(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	eventID := seedEvent(t, pool, mountain, creator, intp(2))

	u1, u2, u3, u4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	res, err := repo.SaveRSVP(ctx, "trace-1", eventID, u1, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPGoing, res.Attendee.Status)
	assert.False(t, res.WasWaitlisted)

	res, err = repo.SaveRSVP(ctx, "trace-2", eventID, u2, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPGoing, res.Attendee.Status)

	// capacity reached: the third going request lands on the waitlist
	res, err = repo.SaveRSVP(ctx, "trace-3", eventID, u3, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPWaitlist, res.Attendee.Status)
	assert.True(t, res.WasWaitlisted)
	require.NotNil(t, res.Attendee.WaitlistPosition)
	assert.Equal(t, 1, *res.Attendee.WaitlistPosition)

	res, err = repo.SaveRSVP(ctx, "trace-4", eventID, u4, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	require.NotNil(t, res.Attendee.WaitlistPosition)
	assert.Equal(t, 2, *res.Attendee.WaitlistPosition)

	e, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.GoingCount)
	assert.Equal(t, 2, e.WaitlistCount)

	// a notification was staged for every RSVP
	var count int
	pool.QueryRow(ctx, "SELECT count(*) FROM outbox WHERE routing_key='notify.rsvp_created'").Scan(&count)
	assert.Equal(t, 4, count)
}

// TestRemoveRSVP_PromotesLowestPosition verifies that a withdrawal frees the
// slot for the longest-waiting attendee and stages a promotion notification.
func TestRemoveRSVP_PromotesLowestPosition(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	eventID := seedEvent(t, pool, mountain, creator, intp(1))

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	_, err := repo.SaveRSVP(ctx, "t1", eventID, u1, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	_, err = repo.SaveRSVP(ctx, "t2", eventID, u2, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)
	_, err = repo.SaveRSVP(ctx, "t3", eventID, u3, domain.RSVPRequest{Status: "going"})
	require.NoError(t, err)

	require.NoError(t, repo.RemoveRSVP(ctx, "t4", eventID, u1))

	var status string
	var pos *int
	err = pool.QueryRow(ctx,
		`SELECT status, waitlist_position FROM attendees WHERE event_id = $1 AND user_id = $2`,
		eventID, u2).Scan(&status, &pos)
	require.NoError(t, err)
	assert.Equal(t, "going", status)
	assert.Nil(t, pos, "promotion clears the waitlist position")

	// u3 keeps position 2; positions are stable, not renumbered
	err = pool.QueryRow(ctx,
		`SELECT status, waitlist_position FROM attendees WHERE event_id = $1 AND user_id = $2`,
		eventID, u3).Scan(&status, &pos)
	require.NoError(t, err)
	assert.Equal(t, "waitlist", status)
	require.NotNil(t, pos)
	assert.Equal(t, 2, *pos)

	e, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.GoingCount)
	assert.Equal(t, 1, e.WaitlistCount)

	var count int
	pool.QueryRow(ctx, "SELECT count(*) FROM outbox WHERE routing_key='notify.waitlist_promoted'").Scan(&count)
	assert.Equal(t, 1, count)
}

// TestGetEvent_CarpoolSeatsDefaultsToZero inserts a row without the carpool
// columns; the schema defaults must keep the row scannable.
func TestGetEvent_CarpoolSeatsDefaultsToZero(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	eventID := seedEvent(t, pool, mountain, uuid.New(), nil)

	e, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, e.CarpoolSeats)
	assert.False(t, e.CarpoolAvailable)
}

func TestCancelEvent_NotIdempotent(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	eventID := seedEvent(t, pool, mountain, creator, nil)

	require.NoError(t, repo.CancelEvent(ctx, "t1", eventID, creator))

	err := repo.CancelEvent(ctx, "t2", eventID, creator)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	// attendee rows survive a cancellation
	_, err = repo.SaveRSVP(ctx, "t3", eventID, uuid.New(), domain.RSVPRequest{Status: "going"})
	assert.ErrorIs(t, err, domain.ErrEventCancelled)
}

func TestUpdateEvent_CapacityBelowGoingRejected(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	eventID := seedEvent(t, pool, mountain, creator, intp(10))

	for i := 0; i < 3; i++ {
		_, err := repo.SaveRSVP(ctx, "seed", eventID, uuid.New(), domain.RSVPRequest{Status: "going"})
		require.NoError(t, err)
	}

	patch := &domain.EventPatch{MaxAttendees: intp(2)}
	_, err := repo.UpdateEvent(ctx, eventID, creator, patch)

	var capErr *domain.CapacityBelowGoingError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.Going)
}

func TestRedeemInvite_ExhaustedRejected(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	eventID := seedEvent(t, pool, mountain, creator, nil)

	_, err := pool.Exec(ctx, `
		INSERT INTO invites (token, event_id, created_by, uses, max_uses)
		VALUES ('tok-1', $1, $2, 0, 1)
	`, eventID, creator)
	require.NoError(t, err)

	got, err := repo.RedeemInvite(ctx, "t1", "tok-1", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, eventID, got)

	_, err = repo.RedeemInvite(ctx, "t2", "tok-1", uuid.New())
	assert.ErrorIs(t, err, domain.ErrInviteInvalid)
}

// TestConcurrentRSVP_DoesNotOversellCapacity hammers one capacity-limited
// event and checks the core invariant: going never exceeds maxAttendees, and
// the cached counters match the attendee rows.
func TestConcurrentRSVP_DoesNotOversellCapacity(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, pool := setupRepo(t)

	mountain := seedMountain(t, pool)
	creator := uuid.New()
	capacity := 5
	eventID := seedEvent(t, pool, mountain, creator, intp(capacity))

	n := 40
	var wg sync.WaitGroup
	wg.Add(n)

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.SaveRSVP(ctx, "trace-concurrent", eventID, uuid.New(),
				domain.RSVPRequest{Status: "going"})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for e := range errs {
		require.NoError(t, e)
	}

	e, err := repo.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, capacity, e.GoingCount, "must not oversell capacity")
	assert.Equal(t, n-capacity, e.WaitlistCount)

	// positions are unique per event
	var distinct, total int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT waitlist_position), COUNT(*)
		FROM attendees
		WHERE event_id = $1 AND status = 'waitlist'
	`, eventID).Scan(&distinct, &total)
	require.NoError(t, err)
	assert.Equal(t, total, distinct, "waitlist positions must be unique")
}
