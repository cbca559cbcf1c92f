package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("apply decision: %w", StaleState(12))

	assert.True(t, errors.Is(err, ErrStaleState))
	assert.False(t, errors.Is(err, ErrTransitionFailed))
	assert.Equal(t, KindStaleState, KindOf(err))
}

func TestTransitionFailed_UnwrapsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := TransitionFailed(3, cause)

	assert.True(t, errors.Is(err, ErrTransitionFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestValidation_ListsFields(t *testing.T) {
	err := Validation(
		FieldError{Field: "amount", Message: "must be greater than 0"},
		FieldError{Field: "payee_name", Message: "is required"},
	)

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "amount, payee_name")

	fields := FieldsOf(fmt.Errorf("wrapped: %w", err))
	assert.Len(t, fields, 2)
	assert.Equal(t, "payee_name", fields[1].Field)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Nil(t, FieldsOf(errors.New("boom")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"unauthorized", Unauthorized("role %s cannot act", "Officer"), ErrUnauthorized},
		{"unauthenticated", Unauthenticated("missing credentials"), ErrUnauthenticated},
		{"not found", NotFound("request", 5), ErrNotFound},
		{"no approver", NoApproverConfigured("Supervisor", 4), ErrNoApproverConfigured},
		{"delivery", DeliveryFailed("email", errors.New("dial tcp")), ErrNotificationDeliveryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}

	assert.Contains(t, NoApproverConfigured("Supervisor", 4).Error(), "department 4")
}
