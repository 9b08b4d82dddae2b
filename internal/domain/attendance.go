package domain

// RSVPDecision is the computed outcome of an RSVP request: the status that
// will actually be stored, and the waitlist position when that status is
// waitlist.
type RSVPDecision struct {
	Status           RSVPStatus
	WaitlistPosition *int
	WasWaitlisted    bool
}

// DecideRSVP resolves a requested status against the event's capacity.
// A request for "going" on a full event is silently redirected to the
// waitlist rather than rejected; going_count never exceeds max_attendees.
//
// wasGoing tells whether the caller already holds a going slot (an update
// that keeps them going must not be redirected). maxWaitlistPos is the
// highest position currently assigned for the event, 0 if none; positions
// grow by insertion order and are never compacted.
func DecideRSVP(e *Event, requested RSVPStatus, wasGoing bool, maxWaitlistPos int) RSVPDecision {
	if requested == RSVPGoing && !wasGoing && e.AtCapacity() {
		pos := maxWaitlistPos + 1
		return RSVPDecision{Status: RSVPWaitlist, WaitlistPosition: &pos, WasWaitlisted: true}
	}
	if requested == RSVPWaitlist {
		pos := maxWaitlistPos + 1
		return RSVPDecision{Status: RSVPWaitlist, WaitlistPosition: &pos}
	}
	return RSVPDecision{Status: requested}
}

// ShouldPromote reports whether removing an attendee frees a capacity slot
// that the waitlist head should take. Unlimited events never waitlist, so
// there is nothing to promote into.
func ShouldPromote(removed RSVPStatus, e *Event) bool {
	return removed == RSVPGoing && e.MaxAttendees != nil
}
