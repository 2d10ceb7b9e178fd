package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("saving order: %w", Persistence("store.UpsertOne", base))

	assert.True(t, IsKind(err, KindPersistence))
	assert.False(t, IsKind(err, KindRemote))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "persistence error: disk full")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestValidationFields(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}
	err := validator.New().Struct(payload{})
	require.Error(t, err)

	fields := ValidationFields(Validation("test", err))
	assert.Equal(t, map[string]string{"Name": "required"}, fields)
	assert.Nil(t, ValidationFields(errors.New("other")))
}
