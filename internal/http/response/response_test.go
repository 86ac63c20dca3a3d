package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKWithData(t *testing.T) {
	resp := OKWithData(map[string]int{"deleted": 1})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]int{"deleted": 1}, resp.Data)
}

func TestPaywall(t *testing.T) {
	resp := Paywall("trial expired")
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "/subscription", resp.Paywall)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
		Priority string `validate:"omitempty,oneof=low medium high"`
	}

	err := validator.New().Struct(request{Email: "nope", Password: "123", Priority: "urgent"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email must be a valid email")
	assert.Contains(t, resp.Error, "field Password must be at least 6 characters")
	assert.Contains(t, resp.Error, "field Priority must be one of: low medium high")
}
