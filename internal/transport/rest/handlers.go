package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/domain"
	appCtx "github.com/powderplans/event-service/internal/pkg/context"
	"github.com/powderplans/event-service/internal/service"
	"github.com/powderplans/event-service/internal/transport/rest/response"
)

type Handler struct {
	svc *service.EventService
}

func NewHandler(svc *service.EventService) *Handler {
	return &Handler{svc: svc}
}

// ---- views ----

type eventView struct {
	ID                uuid.UUID `json:"id"`
	CreatorID         uuid.UUID `json:"creatorId"`
	MountainID        uuid.UUID `json:"mountainId"`
	Title             string    `json:"title"`
	Notes             *string   `json:"notes,omitempty"`
	EventDate         string    `json:"eventDate"`
	DepartureTime     *string   `json:"departureTime,omitempty"`
	DepartureLocation *string   `json:"departureLocation,omitempty"`
	SkillLevel        *string   `json:"skillLevel,omitempty"`
	CarpoolAvailable  bool      `json:"carpoolAvailable"`
	CarpoolSeats      int       `json:"carpoolSeats"`
	MaxAttendees      *int      `json:"maxAttendees,omitempty"`
	Status            string    `json:"status"`
	GoingCount        int       `json:"goingCount"`
	MaybeCount        int       `json:"maybeCount"`
	WaitlistCount     int       `json:"waitlistCount"`
}

func toEventView(e domain.Event, status domain.EventStatus) eventView {
	return eventView{
		ID:                e.ID,
		CreatorID:         e.CreatorID,
		MountainID:        e.MountainID,
		Title:             e.Title,
		Notes:             e.Notes,
		EventDate:         e.EventDate.Format("2006-01-02"),
		DepartureTime:     e.DepartureTime,
		DepartureLocation: e.DepartureLocation,
		SkillLevel:        e.SkillLevel,
		CarpoolAvailable:  e.CarpoolAvailable,
		CarpoolSeats:      e.CarpoolSeats,
		MaxAttendees:      e.MaxAttendees,
		Status:            string(status),
		GoingCount:        e.GoingCount,
		MaybeCount:        e.MaybeCount,
		WaitlistCount:     e.WaitlistCount,
	}
}

type attendeeView struct {
	ID               uuid.UUID `json:"id"`
	EventID          uuid.UUID `json:"eventId"`
	UserID           uuid.UUID `json:"userId"`
	Status           string    `json:"status"`
	WaitlistPosition *int      `json:"waitlistPosition,omitempty"`
	IsDriver         bool      `json:"isDriver"`
	NeedsRide        bool      `json:"needsRide"`
	PickupLocation   *string   `json:"pickupLocation,omitempty"`
	RespondedAt      string    `json:"respondedAt"`
}

func toAttendeeView(a domain.Attendee) attendeeView {
	return attendeeView{
		ID:               a.ID,
		EventID:          a.EventID,
		UserID:           a.UserID,
		Status:           string(a.Status),
		WaitlistPosition: a.WaitlistPosition,
		IsDriver:         a.IsDriver,
		NeedsRide:        a.NeedsRide,
		PickupLocation:   a.PickupLocation,
		RespondedAt:      a.RespondedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ---- helpers ----

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func traceID(r *http.Request) string {
	tid := appCtx.GetRequestID(r.Context())
	if tid == "" {
		tid = "no-request-id"
	}
	return tid
}

func mustAuth(w http.ResponseWriter, r *http.Request) (AuthContext, bool) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
	}
	return auth, ok
}

// ---- lifecycle ----

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), traceID(r), eventID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"message": "event cancelled",
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Title             *string `json:"title"`
		Notes             *string `json:"notes"`
		EventDate         *string `json:"eventDate"`
		DepartureTime     *string `json:"departureTime"`
		DepartureLocation *string `json:"departureLocation"`
		SkillLevel        *string `json:"skillLevel"`
		CarpoolAvailable  *bool   `json:"carpoolAvailable"`
		CarpoolSeats      *int    `json:"carpoolSeats"`
		MaxAttendees      *int    `json:"maxAttendees"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	patch := &domain.EventPatch{
		Title:             req.Title,
		Notes:             req.Notes,
		EventDate:         req.EventDate,
		DepartureTime:     req.DepartureTime,
		DepartureLocation: req.DepartureLocation,
		SkillLevel:        req.SkillLevel,
		CarpoolAvailable:  req.CarpoolAvailable,
		CarpoolSeats:      req.CarpoolSeats,
		MaxAttendees:      req.MaxAttendees,
	}

	e, err := h.svc.Update(r.Context(), eventID, auth.UserID, patch)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"event": toEventView(e, domain.EventActive),
	})
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.svc.Reactivate(r.Context(), traceID(r), eventID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"message": "event reactivated",
	})
}

func (h *Handler) Clone(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		EventDate string `json:"eventDate"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	clone, err := h.svc.Clone(r.Context(), traceID(r), eventID, auth.UserID, req.EventDate)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]any{
		"event": toEventView(clone, domain.EventActive),
	})
}

// ---- attendance ----

func (h *Handler) RSVP(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Status         string  `json:"status"`
		IsDriver       bool    `json:"isDriver"`
		NeedsRide      bool    `json:"needsRide"`
		PickupLocation *string `json:"pickupLocation"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	res, err := h.svc.RSVP(r.Context(), traceID(r), eventID, auth.UserID, domain.RSVPRequest{
		Status:         req.Status,
		IsDriver:       req.IsDriver,
		NeedsRide:      req.NeedsRide,
		PickupLocation: req.PickupLocation,
	})
	if err != nil {
		handleErr(w, r, err)
		return
	}

	msg := "RSVP saved"
	if res.WasWaitlisted {
		msg = "event is full; you have been added to the waitlist"
	}

	response.Data(w, http.StatusOK, map[string]any{
		"attendee":      toAttendeeView(res.Attendee),
		"wasWaitlisted": res.WasWaitlisted,
		"message":       msg,
	})
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), traceID(r), eventID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"message": "RSVP removed",
	})
}

func (h *Handler) RemoveAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	targetUserID, ok := pathUUID(r, "userID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid userID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveAttendee(r.Context(), traceID(r), eventID, targetUserID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"message": "attendee removed",
	})
}

func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cur, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid cursor", nil)
		return
	}

	items, next, err := h.svc.ListAttendees(r.Context(), eventID, auth.UserID, limit, cur)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	views := make([]attendeeView, 0, len(items))
	for _, a := range items {
		views = append(views, toAttendeeView(a))
	}

	response.Data(w, http.StatusOK, map[string]any{
		"items":       views,
		"next_cursor": encodeCursor(next),
	})
}

// ---- comments ----

func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		fail(w, r, http.StatusBadRequest, "request.invalid", "content must not be empty", map[string]string{
			"content": "required",
		})
		return
	}

	c, err := h.svc.Comment(r.Context(), eventID, auth.UserID, content)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]any{
		"comment": map[string]any{
			"id":        c.ID,
			"eventId":   c.EventID,
			"userId":    c.UserID,
			"content":   c.Content,
			"createdAt": c.CreatedAt.UTC(),
		},
	})
}

// ---- calendar & degraded reads ----

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	if _, ok := mustAuth(w, r); !ok {
		return
	}

	entry, err := h.svc.Calendar(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, entry)
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	if _, ok := mustAuth(w, r); !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	feed, err := h.svc.Activity(r.Context(), eventID, limit)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, feed)
}

func (h *Handler) Carpool(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}
	if _, ok := mustAuth(w, r); !ok {
		return
	}

	view, err := h.svc.Carpool(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, view)
}

// ---- invites ----

func (h *Handler) InvitePreview(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		fail(w, r, http.StatusNotFound, "invite.not_found", domain.ErrInviteNotFound.Error(), nil)
		return
	}

	preview, err := h.svc.PreviewInvite(r.Context(), token)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"invite": preview,
	})
}

func (h *Handler) InviteRedeem(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		fail(w, r, http.StatusNotFound, "invite.not_found", domain.ErrInviteNotFound.Error(), nil)
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	eventID, err := h.svc.RedeemInvite(r.Context(), traceID(r), token, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]string{
		"eventId": eventID.String(),
	})
}

// ---- error mapping ----

// handleErr maps domain errors onto the contractual status codes. State
// conflicts (wrong status or date for the requested transition) are 400s,
// not 409s: the client sent a request the current state cannot admit.
func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	var capErr *domain.CapacityBelowGoingError

	switch {
	case errors.As(err, &vErr):
		fail(w, r, http.StatusBadRequest, "request.validation", vErr.Error(), nil)
	case errors.As(err, &capErr):
		fail(w, r, http.StatusBadRequest, "request.validation", capErr.Error(), map[string]string{
			"maxAttendees": "below going count",
		})
	case errors.Is(err, domain.ErrInvalidRSVPStatus):
		fail(w, r, http.StatusBadRequest, "request.validation", err.Error(), nil)

	case errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrEventCancelled),
		errors.Is(err, domain.ErrEventCompleted),
		errors.Is(err, domain.ErrEventPast),
		errors.Is(err, domain.ErrEventInactive),
		errors.Is(err, domain.ErrEventClosed),
		errors.Is(err, domain.ErrEditCancelled),
		errors.Is(err, domain.ErrNotCancelled),
		errors.Is(err, domain.ErrReactivatePast):
		fail(w, r, http.StatusBadRequest, "event.state_conflict", err.Error(), nil)

	case errors.Is(err, domain.ErrCreatorRSVP),
		errors.Is(err, domain.ErrCreatorUnsubscribe):
		fail(w, r, http.StatusBadRequest, "event.creator_conflict", err.Error(), nil)

	case errors.Is(err, domain.ErrInviteInvalid):
		fail(w, r, http.StatusBadRequest, "invite.invalid", err.Error(), nil)

	case errors.Is(err, domain.ErrNotCreator):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)

	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrMountainNotFound):
		fail(w, r, http.StatusNotFound, "mountain.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrInviteNotFound):
		fail(w, r, http.StatusNotFound, "invite.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrNotAttending):
		fail(w, r, http.StatusNotFound, "rsvp.not_found", err.Error(), nil)

	default:
		// do not leak internals
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}

func parseLimit(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 20
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 20
	}
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}
