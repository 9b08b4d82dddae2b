package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/powderplans/event-service/internal/domain"
	"github.com/powderplans/event-service/internal/security"
)

type RouterDeps struct {
	Cache     domain.CacheRepository
	Handler   *Handler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string

	RateLimitDisabled bool
	RateLimit         int
	RateLimitWindow   time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Cache == nil {
		panic("rest.NewRouter: nil cache")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.RateLimit <= 0 {
		d.RateLimit = 100
	}
	if d.RateLimitWindow <= 0 {
		d.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	if !d.RateLimitDisabled {
		r.Use(RateLimitMiddleware(d.Cache, d.RateLimit, d.RateLimitWindow))
	}
	r.Use(SecurityHeaders)

	r.Route("/api/v1", func(r chi.Router) {
		// Invite preview is the one unauthenticated read: the link is shared
		// with people who don't have an account yet.
		r.Get("/invites/{token}", d.Handler.InvitePreview)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

			// lifecycle
			r.Delete("/events/{eventID}", d.Handler.Cancel)
			r.Patch("/events/{eventID}", d.Handler.Update)
			r.Post("/events/{eventID}/reactivate", d.Handler.Reactivate)
			r.Post("/events/{eventID}/clone", d.Handler.Clone)

			// attendance
			r.Post("/events/{eventID}/rsvp", d.Handler.RSVP)
			r.Delete("/events/{eventID}/rsvp", d.Handler.Unsubscribe)
			r.Delete("/events/{eventID}/attendees/{userID}", d.Handler.RemoveAttendee)
			r.Get("/events/{eventID}/attendees", d.Handler.ListAttendees)

			// comments & views
			r.Post("/events/{eventID}/comments", d.Handler.Comment)
			r.Get("/events/{eventID}/calendar", d.Handler.Calendar)
			r.Get("/events/{eventID}/activity", d.Handler.Activity)
			r.Get("/events/{eventID}/carpool", d.Handler.Carpool)

			// invites
			r.Post("/invites/{token}/redeem", d.Handler.InviteRedeem)
		})
	})

	return r
}
