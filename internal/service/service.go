package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/audit"
	"github.com/powderplans/event-service/internal/domain"
)

type EventService struct {
	repo  domain.EventRepository
	cache domain.CacheRepository
	guard domain.Guard
	audit *audit.Logger
}

func NewEventService(repo domain.EventRepository, cache domain.CacheRepository, auditLog *audit.Logger) *EventService {
	return &EventService{repo: repo, cache: cache, guard: domain.NewGuard(), audit: auditLog}
}

// NewEventServiceWithGuard is used by tests that pin the clock.
func NewEventServiceWithGuard(repo domain.EventRepository, cache domain.CacheRepository, auditLog *audit.Logger, g domain.Guard) *EventService {
	return &EventService{repo: repo, cache: cache, guard: g, audit: auditLog}
}

func (s *EventService) requireCreator(ctx context.Context, eventID, callerID uuid.UUID) error {
	owner, err := s.repo.GetEventOwnerID(ctx, eventID)
	if err != nil {
		return err
	}
	if owner != callerID {
		return domain.ErrNotCreator
	}
	return nil
}

// ---- lifecycle ----

func (s *EventService) Cancel(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error {
	if err := s.repo.CancelEvent(ctx, traceID, eventID, callerID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.SetEventStatus(ctx, eventID, domain.EventCancelled)
	}
	if s.audit != nil {
		s.audit.EventCancelled(ctx, eventID, callerID)
	}
	return nil
}

func (s *EventService) Update(ctx context.Context, eventID, callerID uuid.UUID, patch *domain.EventPatch) (domain.Event, error) {
	e, err := s.repo.UpdateEvent(ctx, eventID, callerID, patch)
	if err != nil {
		return domain.Event{}, err
	}
	// the date may have moved; drop any cached status snapshot
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}
	return e, nil
}

func (s *EventService) Reactivate(ctx context.Context, traceID string, eventID, callerID uuid.UUID) error {
	if err := s.repo.ReactivateEvent(ctx, traceID, eventID, callerID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.SetEventStatus(ctx, eventID, domain.EventActive)
	}
	if s.audit != nil {
		s.audit.EventReactivated(ctx, eventID, callerID)
	}
	return nil
}

func (s *EventService) Clone(ctx context.Context, traceID string, eventID, callerID uuid.UUID, eventDate string) (domain.Event, error) {
	clone, err := s.repo.CloneEvent(ctx, traceID, eventID, callerID, eventDate)
	if err != nil {
		return domain.Event{}, err
	}
	if s.audit != nil {
		s.audit.EventCloned(ctx, eventID, clone.ID, callerID)
	}
	return clone, nil
}

// ---- attendance ----

// RSVP fast-fails on a cached cancelled status before touching the database.
// Cache errors are ignored; the repository re-checks under the event lock.
func (s *EventService) RSVP(ctx context.Context, traceID string, eventID, userID uuid.UUID, req domain.RSVPRequest) (domain.RSVPResult, error) {
	if s.cache != nil {
		status, err := s.cache.GetEventStatus(ctx, eventID)
		if err == nil && status == domain.EventCancelled {
			return domain.RSVPResult{}, domain.ErrEventCancelled
		}
	}

	res, err := s.repo.SaveRSVP(ctx, traceID, eventID, userID, req)
	if err != nil {
		return domain.RSVPResult{}, err
	}
	if s.audit != nil {
		s.audit.RSVPSaved(ctx, eventID, userID, res.Attendee.Status, res.WasWaitlisted)
	}
	return res, nil
}

func (s *EventService) Unsubscribe(ctx context.Context, traceID string, eventID, userID uuid.UUID) error {
	if err := s.repo.RemoveRSVP(ctx, traceID, eventID, userID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.RSVPRemoved(ctx, eventID, userID, userID)
	}
	return nil
}

func (s *EventService) RemoveAttendee(ctx context.Context, traceID string, eventID, targetUserID, actorID uuid.UUID) error {
	if err := s.repo.RemoveAttendee(ctx, traceID, eventID, targetUserID, actorID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.RSVPRemoved(ctx, eventID, targetUserID, actorID)
	}
	return nil
}

// ListAttendees is creator-only; attendee identities are not public.
func (s *EventService) ListAttendees(ctx context.Context, eventID, callerID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Attendee, *domain.KeysetCursor, error) {
	if err := s.requireCreator(ctx, eventID, callerID); err != nil {
		return nil, nil, err
	}
	return s.repo.ListAttendees(ctx, eventID, limit, cursor)
}

// ---- comments ----

func (s *EventService) Comment(ctx context.Context, eventID, userID uuid.UUID, content string) (domain.Comment, error) {
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.guard.CanComment(&e); err != nil {
		return domain.Comment{}, err
	}
	return s.repo.AddComment(ctx, eventID, userID, content)
}

// ---- calendar ----

// CalendarEntry is the JSON calendar payload for one event.
type CalendarEntry struct {
	EventID           uuid.UUID `json:"eventId"`
	Title             string    `json:"title"`
	EventDate         string    `json:"eventDate"`
	DepartureTime     *string   `json:"departureTime,omitempty"`
	DepartureLocation *string   `json:"departureLocation,omitempty"`
	Notes             *string   `json:"notes,omitempty"`
	Status            string    `json:"status"`
}

func (s *EventService) Calendar(ctx context.Context, eventID uuid.UUID) (CalendarEntry, error) {
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return CalendarEntry{}, err
	}
	if err := s.guard.CanExportCalendar(&e); err != nil {
		return CalendarEntry{}, err
	}
	return CalendarEntry{
		EventID:           e.ID,
		Title:             e.Title,
		EventDate:         e.EventDate.Format("2006-01-02"),
		DepartureTime:     e.DepartureTime,
		DepartureLocation: e.DepartureLocation,
		Notes:             e.Notes,
		Status:            string(e.EffectiveStatus(s.guard.Today())),
	}, nil
}

// ---- degraded reads ----

// ActivityFeed degrades to an empty item list plus a message on cancelled or
// ended events instead of erroring.
type ActivityFeed struct {
	Items   []domain.ActivityItem `json:"items"`
	Message string                `json:"message,omitempty"`
}

func (s *EventService) Activity(ctx context.Context, eventID uuid.UUID, limit int) (ActivityFeed, error) {
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return ActivityFeed{}, err
	}
	if msg, down := s.guard.Unavailable(&e); down {
		return ActivityFeed{Items: []domain.ActivityItem{}, Message: msg}, nil
	}

	items, err := s.repo.ListActivity(ctx, eventID, limit)
	if err != nil {
		return ActivityFeed{}, err
	}
	if items == nil {
		items = []domain.ActivityItem{}
	}
	return ActivityFeed{Items: items}, nil
}

// CarpoolView degrades to a zeroed summary plus a message on cancelled or
// ended events.
type CarpoolView struct {
	Summary domain.CarpoolSummary `json:"summary"`
	Message string                `json:"message,omitempty"`
}

func (s *EventService) Carpool(ctx context.Context, eventID uuid.UUID) (CarpoolView, error) {
	e, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return CarpoolView{}, err
	}
	if msg, down := s.guard.Unavailable(&e); down {
		return CarpoolView{Summary: emptyCarpool(), Message: msg}, nil
	}

	summary, err := s.repo.GetCarpoolSummary(ctx, eventID)
	if err != nil {
		return CarpoolView{}, err
	}
	if summary.Drivers == nil {
		summary.Drivers = []domain.CarpoolDriver{}
	}
	if summary.Riders == nil {
		summary.Riders = []uuid.UUID{}
	}
	return CarpoolView{Summary: summary}, nil
}

func emptyCarpool() domain.CarpoolSummary {
	return domain.CarpoolSummary{Drivers: []domain.CarpoolDriver{}, Riders: []uuid.UUID{}}
}

// ---- invites ----

// InviteEventView is the event detail embedded in an invite preview. For an
// invalid invite the payload is stripped to id, title and status; notes,
// creator and counts are withheld from whoever holds a stale link.
type InviteEventView struct {
	EventID       uuid.UUID  `json:"eventId"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	EventDate     *string    `json:"eventDate,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatorID     *uuid.UUID `json:"creatorId,omitempty"`
	GoingCount    *int       `json:"goingCount,omitempty"`
	MaxAttendees  *int       `json:"maxAttendees,omitempty"`
	WaitlistCount *int       `json:"waitlistCount,omitempty"`
}

type InvitePreview struct {
	IsValid bool            `json:"isValid"`
	Event   InviteEventView `json:"event"`
}

// PreviewInvite is the only unauthenticated read. An expired or exhausted
// token still previews with 200; only an unknown token is a 404.
func (s *EventService) PreviewInvite(ctx context.Context, token string) (InvitePreview, error) {
	inv, e, err := s.repo.GetInvite(ctx, token)
	if err != nil {
		return InvitePreview{}, err
	}

	status := string(e.EffectiveStatus(s.guard.Today()))
	view := InviteEventView{EventID: e.ID, Title: e.Title, Status: status}

	if !s.guard.InviteValid(&inv, &e) {
		return InvitePreview{IsValid: false, Event: view}, nil
	}

	date := e.EventDate.Format("2006-01-02")
	view.EventDate = &date
	view.Notes = e.Notes
	creator := e.CreatorID
	view.CreatorID = &creator
	going := e.GoingCount
	view.GoingCount = &going
	view.MaxAttendees = e.MaxAttendees
	waitlist := e.WaitlistCount
	view.WaitlistCount = &waitlist

	return InvitePreview{IsValid: true, Event: view}, nil
}

func (s *EventService) RedeemInvite(ctx context.Context, traceID, token string, userID uuid.UUID) (uuid.UUID, error) {
	eventID, err := s.repo.RedeemInvite(ctx, traceID, token, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if s.audit != nil {
		s.audit.InviteRedeemed(ctx, eventID, userID)
	}
	return eventID, nil
}
