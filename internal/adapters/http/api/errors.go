package api

import (
	"errors"

	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/adapters/repository"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrQueueFull  = errors.New("refresh queue full")
)

// notFoundKinds are upstream errors the API maps to 404.
var notFoundKinds = []error{
	repository.ErrUnknownCompetition,
	service.ErrUnknownParticipant,
}
