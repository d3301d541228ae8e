package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoriesCarryStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"validation", NewValidation("bad"), CodeValidation, http.StatusBadRequest},
		{"not found", NewNotFound("sale", "s-1"), CodeNotFound, http.StatusNotFound},
		{"stock", NewInsufficientStock("p-1", "5", "2"), CodeInsufficientStock, http.StatusUnprocessableEntity},
		{"closed register", NewRegisterClosed("2024-03-15"), CodeRegisterClosed, http.StatusUnprocessableEntity},
		{"business rule", NewBusinessRule(CodeSaleNotEditable, "no"), CodeSaleNotEditable, http.StatusUnprocessableEntity},
		{"maintenance", NewMaintenance("user-1"), CodeMaintenance, http.StatusLocked},
		{"conflict", NewConflict("dup"), CodeConflict, http.StatusConflict},
		{"internal", NewInternal(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	cause := errors.New("no rows")
	err := fmt.Errorf("load sale: %w", NewNotFound("sale", "s-1").WithCause(cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, appErr.Code)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsNotFound(nil))
}

func TestNotFoundHidesOwnership(t *testing.T) {
	err := NewNotFound("customer", "c-9")

	assert.Contains(t, err.Message, "not found or access denied")
}
