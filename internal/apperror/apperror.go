// Package apperror holds the user-facing error taxonomy. Messages are shown
// to end users as-is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)

// Messages shown for vote and account failures
const (
	MsgAlreadyVoted       = "Već ste glasali za ovaj problem"
	MsgSelfVote           = "Ne možete glasati za sopstvene probleme"
	MsgProblemGone        = "Problem više ne postoji"
	MsgVoteGone           = "Vote ne postoji"
	MsgLoginRequired      = "Morate biti ulogovani da biste glasali"
	MsgInvalidCredentials = "Pogrešan email ili lozinka"
	MsgEmailTaken         = "Email adresa je već registrovana"
	MsgAdminOnly          = "Samo administrator može menjati status problema"
	MsgTryAgain           = "Sistem je zauzet, pokušajte ponovo"
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // shown to the user
	Field   string // optional: offending field
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a custom message
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable marks a transient failure the caller may retry
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
