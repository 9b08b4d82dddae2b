package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMinLen     = 3
	TitleMaxLen     = 100
	NotesMaxLen     = 2000
	CarpoolSeatsMax = 8
	MaxAttendeesMin = 1
	MaxAttendeesMax = 1000

	eventDateLayout = "2006-01-02"
)

var departureTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// SkillLevels is the fixed set accepted for the skill-level tag.
var SkillLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
	"expert":       true,
	"any":          true,
}

func ParseRSVPStatus(s string) (RSVPStatus, error) {
	switch RSVPStatus(strings.TrimSpace(s)) {
	case RSVPGoing:
		return RSVPGoing, nil
	case RSVPMaybe:
		return RSVPMaybe, nil
	case RSVPDeclined:
		return RSVPDeclined, nil
	case RSVPWaitlist:
		return RSVPWaitlist, nil
	default:
		return "", ErrInvalidRSVPStatus
	}
}

// ParseEventDate parses a calendar date and requires it not to be behind
// today.
func ParseEventDate(s string, today time.Time) (time.Time, error) {
	d, err := time.ParseInLocation(eventDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "eventDate", Reason: "must be a YYYY-MM-DD date"}
	}
	if d.Before(today) {
		return time.Time{}, &ValidationError{Field: "eventDate", Reason: "must be today or later"}
	}
	return d, nil
}

// EventPatch is a partial update; nil fields were absent from the request.
// A set Notes/DepartureTime/DepartureLocation/SkillLevel containing only
// whitespace clears the field.
type EventPatch struct {
	Title             *string
	Notes             *string
	EventDate         *string
	DepartureTime     *string
	DepartureLocation *string
	SkillLevel        *string
	CarpoolAvailable  *bool
	CarpoolSeats      *int
	MaxAttendees      *int

	parsedDate time.Time
}

func (p *EventPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.EventDate == nil &&
		p.DepartureTime == nil && p.DepartureLocation == nil &&
		p.SkillLevel == nil && p.CarpoolAvailable == nil &&
		p.CarpoolSeats == nil && p.MaxAttendees == nil
}

// Validate checks every present field. goingCount is the event's current
// going count; a capacity reduction below it is rejected with the count in
// the error.
func (p *EventPatch) Validate(today time.Time, goingCount int) error {
	if p.Empty() {
		return &ValidationError{Reason: "no valid fields to update"}
	}
	if p.Title != nil {
		// bounds are characters, not bytes
		t := strings.TrimSpace(*p.Title)
		if n := utf8.RuneCountInString(t); n < TitleMinLen || n > TitleMaxLen {
			return &ValidationError{Field: "title", Reason: "must be between 3 and 100 characters"}
		}
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > NotesMaxLen {
		return &ValidationError{Field: "notes", Reason: "must be at most 2000 characters"}
	}
	if p.EventDate != nil {
		d, err := ParseEventDate(*p.EventDate, today)
		if err != nil {
			return err
		}
		p.parsedDate = d
	}
	if p.DepartureTime != nil {
		v := strings.TrimSpace(*p.DepartureTime)
		if v != "" && !departureTimeRe.MatchString(v) {
			return &ValidationError{Field: "departureTime", Reason: "must be a HH:MM 24-hour time"}
		}
	}
	if p.SkillLevel != nil {
		v := strings.TrimSpace(*p.SkillLevel)
		if v != "" && !SkillLevels[v] {
			return &ValidationError{Field: "skillLevel", Reason: "is not a recognized skill level"}
		}
	}
	if p.CarpoolSeats != nil {
		if *p.CarpoolSeats < 0 || *p.CarpoolSeats > CarpoolSeatsMax {
			return &ValidationError{Field: "carpoolSeats", Reason: "must be between 0 and 8"}
		}
	}
	if p.MaxAttendees != nil {
		n := *p.MaxAttendees
		if n < MaxAttendeesMin || n > MaxAttendeesMax {
			return &ValidationError{Field: "maxAttendees", Reason: "must be between 1 and 1000"}
		}
		if n < goingCount {
			return &CapacityBelowGoingError{Requested: n, Going: goingCount}
		}
	}
	return nil
}

// Apply writes the validated patch onto the event. Must be called after a
// successful Validate.
func (p *EventPatch) Apply(e *Event) {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		e.Title = t
	}
	if p.Notes != nil {
		e.Notes = optional(*p.Notes)
	}
	if p.EventDate != nil {
		e.EventDate = p.parsedDate
	}
	if p.DepartureTime != nil {
		e.DepartureTime = optional(*p.DepartureTime)
	}
	if p.DepartureLocation != nil {
		e.DepartureLocation = optional(*p.DepartureLocation)
	}
	if p.SkillLevel != nil {
		e.SkillLevel = optional(*p.SkillLevel)
	}
	if p.CarpoolAvailable != nil {
		e.CarpoolAvailable = *p.CarpoolAvailable
	}
	if p.CarpoolSeats != nil {
		e.CarpoolSeats = *p.CarpoolSeats
	}
	if p.MaxAttendees != nil {
		n := *p.MaxAttendees
		e.MaxAttendees = &n
	}
}

func optional(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return &v
}
