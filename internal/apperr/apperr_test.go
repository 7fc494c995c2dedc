package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesOnReason(t *testing.T) {
	err := fmt.Errorf("redeem: %w", ErrInvitationExpired.WithMessage("expired yesterday"))

	assert.True(t, errors.Is(err, ErrInvitationExpired))
	assert.False(t, errors.Is(err, ErrInvitationDisabled))
	assert.Equal(t, "redeem: expired yesterday", err.Error())
}

func TestValidation(t *testing.T) {
	err := Validation("amount must be positive")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "amount must be positive", err.Message)
	// the sentinel itself is untouched
	assert.Equal(t, "invalid request", ErrValidation.Message)
}

func TestKindOf_UnknownIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("disk on fire")))
	assert.Equal(t, http.StatusInternalServerError, KindOf(errors.New("x")).HTTPStatus())
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := ErrInternal.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		ErrValidation:               http.StatusBadRequest,
		ErrUnsupported:              http.StatusBadRequest,
		ErrUnauthorized:             http.StatusUnauthorized,
		ErrNoPermission:             http.StatusForbidden,
		ErrLedgerNotFound:           http.StatusNotFound,
		ErrAlreadyMember:            http.StatusConflict,
		ErrInvitationMaxUsesReached: http.StatusUnprocessableEntity,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.Kind.HTTPStatus(), e.Reason)
	}
}
