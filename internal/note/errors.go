package note

import "errors"

var (
	// ErrInvalidTransition is returned when an event does not fit the note it is
	// applied to: wrong note, wrong revision, or a change to a note that was
	// never created.
	ErrInvalidTransition = errors.New("note: invalid transition")

	// ErrIllegalState is returned when an event contradicts the note's
	// history, e.g. creating a note twice.
	ErrIllegalState = errors.New("note: illegal state")
)
