package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadRequest("x").Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").Status)
	assert.Equal(t, http.StatusNotFound, NotFound("x").Status)
	assert.Equal(t, http.StatusConflict, Conflict("x").Status)
	assert.Equal(t, http.StatusInternalServerError, Internal("x", nil).Status)
}

func TestStatusOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Conflict("user already exists"))

	assert.Equal(t, http.StatusConflict, StatusOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(&Error{Message: "no status"}))
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("failed to create user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to create user: db down", err.Error())
	assert.Equal(t, "not found", NotFound("not found").Error())
}
