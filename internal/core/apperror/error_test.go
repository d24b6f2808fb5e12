package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInsufficientStock_Shortfall(t *testing.T) {
	err := NewInsufficientStock("p/w/l", 6, 5)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, 1.0, err.Details["shortfall"])
	assert.Contains(t, err.Message, "p/w/l")
	assert.Contains(t, err.Message, "requested 6")
}

func TestNewInsufficientAvailableStock_NeverNegativeShortfall(t *testing.T) {
	err := NewInsufficientAvailableStock("k", 3, 10)
	assert.Equal(t, 0.0, err.Details["shortfall"])
}

func TestShortfallOf_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", NewInsufficientStock("k", 12, 4.5))

	shortfall, ok := ShortfallOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, 7.5, shortfall)
	assert.True(t, IsStockShortage(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"transition", NewInvalidStateTransition("transfer", "ship", "DRAFT"), CodeInvalidStateTransition, true},
		{"not found", NewNotFound("batch", "B-1"), CodeNotFound, true},
		{"plain error", fmt.Errorf("boom"), CodeInternal, false},
		{"nil", nil, CodeInternal, false},
		{"wrapped", fmt.Errorf("ship: %w", NewValidation("bad")), CodeValidation, true},
		{"joined first", errors.Join(NewValidation("bad"), NewInternal(fmt.Errorf("undo"))), CodeValidation, true},
		{"joined second", errors.Join(NewValidation("bad"), NewInternal(fmt.Errorf("undo"))), CodeInternal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.code))
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewInvalidStateTransition("x", "y", "z")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(NewInvariantViolation("bad")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(fmt.Errorf("raw")))
}
