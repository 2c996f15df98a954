package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	Name  string `json:"name" validate:"required,min=3,max=5"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	v := NewValidator()

	require.NoError(t, ValidateStruct(v, sampleForm{Name: "abcd"}))

	err := ValidateStruct(v, sampleForm{})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Contains(t, err.Error(), "name is required")

	err = ValidateStruct(v, sampleForm{Name: "abcdefg"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Contains(t, err.Error(), "name must be at most 5 characters")

	err = ValidateStruct(v, sampleForm{Name: "abc", Email: "nope"})
	require.Contains(t, err.Error(), "email must be a valid email address")
}
