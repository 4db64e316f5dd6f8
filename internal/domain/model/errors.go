package model

import "errors"

// Sentinel kinds for model errors.
var (
	// ErrInconsistentRoster marks a roster entry missing required
	// fields; fatal to constructing that roster.
	ErrInconsistentRoster = errors.New("inconsistent roster")
)
