package source

import "errors"

// Sentinel kinds for source errors.
var (
	// ErrNoSources marks a multi-source constructed without backends.
	ErrNoSources = errors.New("no record sources configured")
	// ErrAllSourcesFailed marks a fetch where every backend failed;
	// the caller falls back to its last good snapshot.
	ErrAllSourcesFailed = errors.New("all record sources failed")
	// ErrClosed marks operations on a closed source.
	ErrClosed = errors.New("source closed")
)
