package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/domain"
	"github.com/powderplans/event-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) GetEvent(ctx context.Context, eid uuid.UUID) (domain.Event, error) {
	args := m.Called(ctx, eid)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockRepo) GetEventOwnerID(ctx context.Context, eid uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, eid)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
func (m *MockRepo) CancelEvent(ctx context.Context, tid string, eid, caller uuid.UUID) error {
	return m.Called(ctx, tid, eid, caller).Error(0)
}
func (m *MockRepo) UpdateEvent(ctx context.Context, eid, caller uuid.UUID, patch *domain.EventPatch) (domain.Event, error) {
	args := m.Called(ctx, eid, caller, patch)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockRepo) ReactivateEvent(ctx context.Context, tid string, eid, caller uuid.UUID) error {
	return m.Called(ctx, tid, eid, caller).Error(0)
}
func (m *MockRepo) CloneEvent(ctx context.Context, tid string, eid, caller uuid.UUID, date string) (domain.Event, error) {
	args := m.Called(ctx, tid, eid, caller, date)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockRepo) SaveRSVP(ctx context.Context, tid string, eid, uid uuid.UUID, req domain.RSVPRequest) (domain.RSVPResult, error) {
	args := m.Called(ctx, tid, eid, uid, req)
	return args.Get(0).(domain.RSVPResult), args.Error(1)
}
func (m *MockRepo) RemoveRSVP(ctx context.Context, tid string, eid, uid uuid.UUID) error {
	return m.Called(ctx, tid, eid, uid).Error(0)
}
func (m *MockRepo) RemoveAttendee(ctx context.Context, tid string, eid, target, actor uuid.UUID) error {
	return m.Called(ctx, tid, eid, target, actor).Error(0)
}
func (m *MockRepo) ListAttendees(ctx context.Context, eid uuid.UUID, limit int, c *domain.KeysetCursor) ([]domain.Attendee, *domain.KeysetCursor, error) {
	args := m.Called(ctx, eid, limit, c)
	var items []domain.Attendee
	if v := args.Get(0); v != nil {
		items = v.([]domain.Attendee)
	}
	var next *domain.KeysetCursor
	if v := args.Get(1); v != nil {
		next = v.(*domain.KeysetCursor)
	}
	return items, next, args.Error(2)
}
func (m *MockRepo) AddComment(ctx context.Context, eid, uid uuid.UUID, content string) (domain.Comment, error) {
	args := m.Called(ctx, eid, uid, content)
	return args.Get(0).(domain.Comment), args.Error(1)
}
func (m *MockRepo) ListActivity(ctx context.Context, eid uuid.UUID, limit int) ([]domain.ActivityItem, error) {
	args := m.Called(ctx, eid, limit)
	var items []domain.ActivityItem
	if v := args.Get(0); v != nil {
		items = v.([]domain.ActivityItem)
	}
	return items, args.Error(1)
}
func (m *MockRepo) GetCarpoolSummary(ctx context.Context, eid uuid.UUID) (domain.CarpoolSummary, error) {
	args := m.Called(ctx, eid)
	return args.Get(0).(domain.CarpoolSummary), args.Error(1)
}
func (m *MockRepo) GetInvite(ctx context.Context, token string) (domain.Invite, domain.Event, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.Invite), args.Get(1).(domain.Event), args.Error(2)
}
func (m *MockRepo) RedeemInvite(ctx context.Context, tid, token string, uid uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, tid, token, uid)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) GetEventStatus(ctx context.Context, eid uuid.UUID) (domain.EventStatus, error) {
	args := m.Called(ctx, eid)
	return args.Get(0).(domain.EventStatus), args.Error(1)
}
func (m *MockCache) SetEventStatus(ctx context.Context, eid uuid.UUID, status domain.EventStatus) error {
	return m.Called(ctx, eid, status).Error(0)
}
func (m *MockCache) InvalidateEvent(ctx context.Context, eid uuid.UUID) error {
	return m.Called(ctx, eid).Error(0)
}
func (m *MockCache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, ip, limit, window)
	return args.Bool(0), args.Error(1)
}

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newService(repo *MockRepo, cache *MockCache) *service.EventService {
	g := domain.Guard{Now: func() time.Time { return testNow }}
	var c domain.CacheRepository
	if cache != nil {
		c = cache
	}
	return service.NewEventServiceWithGuard(repo, c, nil, g)
}

func upcomingEvent(creator uuid.UUID) domain.Event {
	return domain.Event{
		ID:        uuid.New(),
		CreatorID: creator,
		Title:     "Powder day",
		EventDate: time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC),
		Status:    domain.EventActive,
	}
}

func TestRSVP_CacheFastFail_OnCancelledStatus(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	eventID, userID := uuid.New(), uuid.New()
	cache.On("GetEventStatus", mock.Anything, eventID).Return(domain.EventCancelled, nil)

	_, err := svc.RSVP(context.Background(), "t1", eventID, userID, domain.RSVPRequest{Status: "going"})
	assert.ErrorIs(t, err, domain.ErrEventCancelled)

	// the database was never consulted
	repo.AssertNotCalled(t, "SaveRSVP", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRSVP_CacheMiss_FallsThroughToRepo(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	eventID, userID := uuid.New(), uuid.New()
	req := domain.RSVPRequest{Status: "going"}

	cache.On("GetEventStatus", mock.Anything, eventID).Return(domain.EventStatus(""), domain.ErrCacheMiss)
	repo.On("SaveRSVP", mock.Anything, "t1", eventID, userID, req).
		Return(domain.RSVPResult{Attendee: domain.Attendee{Status: domain.RSVPGoing}}, nil)

	res, err := svc.RSVP(context.Background(), "t1", eventID, userID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPGoing, res.Attendee.Status)
	repo.AssertExpectations(t)
}

func TestRSVP_CacheErrorFallsThroughToRepo(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	eventID, userID := uuid.New(), uuid.New()
	req := domain.RSVPRequest{Status: "going"}

	cache.On("GetEventStatus", mock.Anything, eventID).
		Return(domain.EventStatus(""), errors.New("redis: connection refused"))
	repo.On("SaveRSVP", mock.Anything, "t1", eventID, userID, req).
		Return(domain.RSVPResult{Attendee: domain.Attendee{Status: domain.RSVPGoing}}, nil)

	res, err := svc.RSVP(context.Background(), "t1", eventID, userID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPGoing, res.Attendee.Status)
	repo.AssertExpectations(t)
}

func TestCancel_UpdatesStatusCache(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	eventID, creator := uuid.New(), uuid.New()
	repo.On("CancelEvent", mock.Anything, "t1", eventID, creator).Return(nil)
	cache.On("SetEventStatus", mock.Anything, eventID, domain.EventCancelled).Return(nil)

	require.NoError(t, svc.Cancel(context.Background(), "t1", eventID, creator))
	cache.AssertExpectations(t)
}

func TestCancel_RepoErrorSkipsCache(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	eventID, caller := uuid.New(), uuid.New()
	repo.On("CancelEvent", mock.Anything, "t1", eventID, caller).Return(domain.ErrAlreadyCancelled)

	err := svc.Cancel(context.Background(), "t1", eventID, caller)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	cache.AssertNotCalled(t, "SetEventStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestListAttendees_CreatorOnly(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	eventID := uuid.New()
	owner, stranger := uuid.New(), uuid.New()
	repo.On("GetEventOwnerID", mock.Anything, eventID).Return(owner, nil)

	_, _, err := svc.ListAttendees(context.Background(), eventID, stranger, 20, nil)
	assert.ErrorIs(t, err, domain.ErrNotCreator)
	repo.AssertNotCalled(t, "ListAttendees", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestComment_RejectedOnCancelledEvent(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	e := upcomingEvent(uuid.New())
	e.Status = domain.EventCancelled
	repo.On("GetEvent", mock.Anything, e.ID).Return(e, nil)

	_, err := svc.Comment(context.Background(), e.ID, uuid.New(), "see you there")
	assert.ErrorIs(t, err, domain.ErrEventCancelled)
}

func TestActivity_DegradesOnEndedEvent(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	e := upcomingEvent(uuid.New())
	e.EventDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.On("GetEvent", mock.Anything, e.ID).Return(e, nil)

	feed, err := svc.Activity(context.Background(), e.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
	assert.Equal(t, "this event has ended", feed.Message)
	repo.AssertNotCalled(t, "ListActivity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCarpool_DegradesOnCancelledEvent(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	e := upcomingEvent(uuid.New())
	e.Status = domain.EventCancelled
	repo.On("GetEvent", mock.Anything, e.ID).Return(e, nil)

	view, err := svc.Carpool(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "this event has been cancelled", view.Message)
	assert.Empty(t, view.Summary.Drivers)
	assert.Zero(t, view.Summary.SeatsOffered)
}

func TestPreviewInvite_ValidExposesDetail(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	e := upcomingEvent(uuid.New())
	e.GoingCount = 4
	inv := domain.Invite{Token: "tok", EventID: e.ID}
	repo.On("GetInvite", mock.Anything, "tok").Return(inv, e, nil)

	preview, err := svc.PreviewInvite(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, preview.IsValid)
	assert.Equal(t, e.ID, preview.Event.EventID)
	require.NotNil(t, preview.Event.GoingCount)
	assert.Equal(t, 4, *preview.Event.GoingCount)
	require.NotNil(t, preview.Event.EventDate)
	assert.Equal(t, "2026-03-21", *preview.Event.EventDate)
}

func TestPreviewInvite_ExhaustedStripsDetail(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	e := upcomingEvent(uuid.New())
	notes := "meet at the gondola"
	e.Notes = &notes
	maxUses := 1
	inv := domain.Invite{Token: "tok", EventID: e.ID, Uses: 1, MaxUses: &maxUses}
	repo.On("GetInvite", mock.Anything, "tok").Return(inv, e, nil)

	preview, err := svc.PreviewInvite(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, preview.IsValid)
	assert.Equal(t, e.Title, preview.Event.Title)
	assert.Nil(t, preview.Event.Notes)
	assert.Nil(t, preview.Event.CreatorID)
	assert.Nil(t, preview.Event.GoingCount)
	assert.Nil(t, preview.Event.EventDate)
}

func TestPreviewInvite_UnknownTokenPropagates(t *testing.T) {
	repo := new(MockRepo)
	svc := newService(repo, nil)

	repo.On("GetInvite", mock.Anything, "nope").
		Return(domain.Invite{}, domain.Event{}, domain.ErrInviteNotFound)

	_, err := svc.PreviewInvite(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := newService(repo, cache)

	e := upcomingEvent(uuid.New())
	patch := &domain.EventPatch{}
	repo.On("UpdateEvent", mock.Anything, e.ID, e.CreatorID, patch).Return(e, nil)
	cache.On("InvalidateEvent", mock.Anything, e.ID).Return(nil)

	_, err := svc.Update(context.Background(), e.ID, e.CreatorID, patch)
	require.NoError(t, err)
	cache.AssertExpectations(t)
}
