package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNotStarted marks calls before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrNoRecordSource marks a service constructed without a source.
	ErrNoRecordSource = errors.New("no record source configured")
	// ErrNoCompetitions marks a service with nothing to serve.
	ErrNoCompetitions = errors.New("no competitions configured")
	// ErrUnknownParticipant marks membership reads for identities
	// outside the roster.
	ErrUnknownParticipant = errors.New("unknown participant")
)
