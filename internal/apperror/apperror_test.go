package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		kind error
	}{
		{"not found", NotFound("problem", "p1"), ErrNotFound},
		{"not found message", NotFoundMessage(MsgProblemGone), ErrNotFound},
		{"validation", ValidationFailed("email", "Neispravan email"), ErrValidation},
		{"conflict", Conflict(MsgAlreadyVoted), ErrConflict},
		{"forbidden", Forbidden(MsgSelfVote), ErrForbidden},
		{"unauthorized", Unauthorized(MsgLoginRequired), ErrUnauthorized},
		{"unavailable", Unavailable(MsgTryAgain), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("voting: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)

			var appErr *AppError
			assert.True(t, errors.As(wrapped, &appErr))
			assert.Equal(t, tt.err.Message, appErr.Message)
		})
	}
}

func TestAppError_FieldAndMessage(t *testing.T) {
	err := ValidationFailed("password", "Lozinka mora imati najmanje 6 karaktera")
	assert.Equal(t, "password", err.Field)
	assert.Equal(t, "Lozinka mora imati najmanje 6 karaktera", err.Error())
	assert.Equal(t, "problem not found with id p1", NotFound("problem", "p1").Error())
}
