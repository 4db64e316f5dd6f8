package repository

import "errors"

// Sentinel kinds for snapshot errors.
var (
	// ErrUnknownCompetition marks reads for a competition this
	// instance does not serve.
	ErrUnknownCompetition = errors.New("unknown competition")
)
